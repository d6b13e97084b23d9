package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObjectWritesUnderRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "exports/products-abc.csv", "text/csv", []byte("data"))
	require.NoError(t, err)

	target := filepath.Join(root, "exports", "products-abc.csv")
	require.Equal(t, "file://"+target, uri)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}

func TestPutObjectRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "  ", "text/csv", nil)
	require.Error(t, err)
}

func TestPutObjectConfinesTraversal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "../escape.csv", "text/csv", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(root, "escape.csv"), uri)
}

func TestNewRequiresRoot(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
}

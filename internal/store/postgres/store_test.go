package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
)

func testRecord() crawler.ProductRecord {
	return crawler.ProductRecord{
		ID:          "0192f1f0-0000-7000-8000-000000000001",
		Site:        "Ulta",
		Name:        "Alpha Cream",
		Brand:       "BrandA",
		Price:       "$20.00",
		Ingredients: []string{"Water", "Glycerin"},
		ImageURLs:   []string{"https://img.example.com/1.jpg"},
		RunID:       "a1b2c3d4",
		ScrapedAt:   time.Unix(1700000000, 0).UTC(),
	}
}

func TestInsertRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "product")
	require.NoError(t, err)

	rec := testRecord()
	mock.ExpectExec("INSERT INTO product").
		WithArgs(rec.ID, rec.Site, rec.Name, rec.Brand, rec.Price,
			rec.Ingredients, rec.ImageURLs, rec.RunID, rec.ScrapedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertRecord(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRecordRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "product")
	require.NoError(t, err)

	rec := testRecord()
	rec.ID = ""
	require.Error(t, store.InsertRecord(context.Background(), rec))
}

func TestInsertRecordPropagatesError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "product")
	require.NoError(t, err)

	rec := testRecord()
	mock.ExpectExec("INSERT INTO product").
		WithArgs(rec.ID, rec.Site, rec.Name, rec.Brand, rec.Price,
			rec.Ingredients, rec.ImageURLs, rec.RunID, rec.ScrapedAt).
		WillReturnError(errors.New("connection reset"))

	err = store.InsertRecord(context.Background(), rec)
	require.Error(t, err)
	require.Contains(t, err.Error(), "insert product")
}

func TestRecordsByRun(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "product")
	require.NoError(t, err)

	scrapedAt := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"id", "site", "name", "brand", "price",
		"ingredients", "image_urls", "run_id", "scraped_at",
	}).
		AddRow("id-1", "Ulta", "Alpha Cream", "BrandA", "$20.00",
			[]string{}, []string{"https://img.example.com/a.jpg"}, "a1b2c3d4", scrapedAt).
		AddRow("id-2", "Ulta", "Zeta Serum", "BrandZ", "$30.00",
			[]string{"Water", "Glycerin"}, []string{}, "a1b2c3d4", scrapedAt)

	mock.ExpectQuery("SELECT id, site, name, brand, price, ingredients, image_urls, run_id, scraped_at").
		WithArgs("a1b2c3d4").
		WillReturnRows(rows)

	records, err := store.RecordsByRun(context.Background(), "a1b2c3d4")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Alpha Cream", records[0].Name)
	require.Equal(t, []string{"Water", "Glycerin"}, records[1].Ingredients)
	require.Equal(t, scrapedAt, records[0].ScrapedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordsByRunRequiresRunID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "product")
	require.NoError(t, err)

	_, err = store.RecordsByRun(context.Background(), "")
	require.Error(t, err)
}

func TestNewStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewStoreWithPool(mock, "products; DROP TABLE users")
	require.Error(t, err)

	store, err := NewStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, "product", store.table)
}

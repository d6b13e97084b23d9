package static

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
)

const listingHTML = `
<div class="ProductCard">
	<span class="ProductCard__product">Alpha Cream</span>
	<a href="/p/alpha">view</a>
</div>`

func newRenderer(t *testing.T, cfg Config, transport *httpmock.MockTransport) *Renderer {
	t.Helper()
	cfg.Transport = transport
	r, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRenderFetchesAndParses(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://example.com/shop",
		httpmock.NewStringResponder(200, listingHTML))

	r := newRenderer(t, Config{NavTimeout: time.Second}, transport)
	doc, err := r.Render(context.Background(), crawler.RenderRequest{URL: "https://example.com/shop"})
	require.NoError(t, err)
	defer doc.Close()

	cards, err := doc.QueryAll(".ProductCard")
	require.NoError(t, err)
	require.Len(t, cards, 1)

	name, err := cards[0].Text(".ProductCard__product")
	require.NoError(t, err)
	require.Equal(t, "Alpha Cream", name)
}

func TestRenderSetsUserAgent(t *testing.T) {
	t.Parallel()

	var gotUA string
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://example.com/shop",
		func(req *http.Request) (*http.Response, error) {
			gotUA = req.Header.Get("User-Agent")
			return httpmock.NewStringResponse(200, listingHTML), nil
		})

	r := newRenderer(t, Config{UserAgents: []string{"agent-a"}}, transport)
	doc, err := r.Render(context.Background(), crawler.RenderRequest{URL: "https://example.com/shop"})
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, "agent-a", gotUA)
}

func TestRenderServesFromCache(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://example.com/shop",
		httpmock.NewStringResponder(200, listingHTML))

	r := newRenderer(t, Config{CacheSize: 8}, transport)
	ctx := context.Background()
	req := crawler.RenderRequest{URL: "https://example.com/shop"}

	for i := 0; i < 3; i++ {
		doc, err := r.Render(ctx, req)
		require.NoError(t, err)
		require.NoError(t, doc.Close())
	}

	info := transport.GetCallCountInfo()
	require.Equal(t, 1, info["GET https://example.com/shop"], "repeat renders hit the cache")
}

func TestRenderErrorOnHTTPFailure(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://example.com/down",
		httpmock.NewStringResponder(503, "unavailable"))

	r := newRenderer(t, Config{}, transport)
	_, err := r.Render(context.Background(), crawler.RenderRequest{URL: "https://example.com/down"})
	require.Error(t, err)
}

func TestRenderRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	r := newRenderer(t, Config{}, httpmock.NewMockTransport())
	_, err := r.Render(context.Background(), crawler.RenderRequest{URL: "::not-a-url"})
	require.Error(t, err)
}

func TestRenderRespectsAllowedHost(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://other.example.org/shop",
		httpmock.NewStringResponder(200, listingHTML))

	r := newRenderer(t, Config{AllowedHost: "example.com"}, transport)
	_, err := r.Render(context.Background(), crawler.RenderRequest{URL: "https://other.example.org/shop"})
	require.Error(t, err)
}

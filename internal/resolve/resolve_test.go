package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/filings-cli/internal/fetcher"
)

const registryJSON = `{
	"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
	"1": {"cik_str": 789019, "ticker": "MSFT", "title": "Microsoft Corp"},
	"2": {"cik_str": 1652044, "ticker": "GOOGL", "title": "Alphabet Inc."},
	"3": {"cik_str": 1652044, "ticker": "GOOG", "title": "Alphabet Inc."},
	"4": {"cik_str": 1018724, "ticker": "AMZN", "title": "Amazon.com, Inc."},
	"5": {"cik_str": 96223, "ticker": "AIG", "title": "American International Group, Inc."},
	"6": {"cik_str": 5272, "ticker": "AXP", "title": "American Express Co"}
}`

func newRegistryServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(registryJSON))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(t *testing.T, url string, opts ...Option) *Resolver {
	t.Helper()
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: "test test@example.com",
		Timeout:   5 * time.Second,
		RateLimit: 100,
		Burst:     100,
	})
	return NewResolver(f, append([]Option{WithRegistryURL(url)}, opts...)...)
}

func TestResolveTicker(t *testing.T) {
	srv := newRegistryServer(t, nil)
	r := newTestResolver(t, srv.URL)

	c, err := r.ResolveTicker(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", c.CIK)
	assert.Equal(t, "Apple Inc.", c.Name)
}

func TestResolveTickerNotFound(t *testing.T) {
	srv := newRegistryServer(t, nil)
	r := newTestResolver(t, srv.URL)

	_, err := r.ResolveTicker(context.Background(), "ZZZZ")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ZZZZ", nf.Lookup)
}

func TestResolveCIK(t *testing.T) {
	srv := newRegistryServer(t, nil)
	r := newTestResolver(t, srv.URL)

	c, err := r.ResolveCIK(context.Background(), "320193")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", c.CIK)

	_, err = r.ResolveCIK(context.Background(), "999999999")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestResolveNameReturnsAllCandidates(t *testing.T) {
	srv := newRegistryServer(t, nil)
	r := newTestResolver(t, srv.URL)

	matches, err := r.ResolveName(context.Background(), "american")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	ciks := []string{matches[0].CIK, matches[1].CIK}
	assert.Contains(t, ciks, "0000096223")
	assert.Contains(t, ciks, "0000005272")
}

func TestResolveNameCollapsesShareClasses(t *testing.T) {
	srv := newRegistryServer(t, nil)
	r := newTestResolver(t, srv.URL)

	// Alphabet is listed under both GOOGL and GOOG with the same CIK.
	matches, err := r.ResolveName(context.Background(), "alphabet")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "0001652044", matches[0].CIK)
}

func TestResolveOneAmbiguous(t *testing.T) {
	srv := newRegistryServer(t, nil)
	r := newTestResolver(t, srv.URL)

	_, err := r.ResolveOne(context.Background(), "american")
	var amb *AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.Len(t, amb.Candidates, 2)
}

func TestResolvePrefersTickerOverName(t *testing.T) {
	srv := newRegistryServer(t, nil)
	r := newTestResolver(t, srv.URL)

	matches, err := r.Resolve(context.Background(), "AIG")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "0000096223", matches[0].CIK)
}

func TestRegistryFetchedOnce(t *testing.T) {
	var hits atomic.Int32
	srv := newRegistryServer(t, &hits)
	r := newTestResolver(t, srv.URL)

	ctx := context.Background()
	_, err := r.ResolveTicker(ctx, "AAPL")
	require.NoError(t, err)
	_, err = r.ResolveTicker(ctx, "MSFT")
	require.NoError(t, err)
	_, err = r.ResolveName(ctx, "amazon")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
}

func TestRegistryCacheConditionalGet(t *testing.T) {
	var conditional atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(registryJSON))
	}))
	defer srv.Close()

	dir := t.TempDir()
	ctx := context.Background()

	first := newTestResolver(t, srv.URL, WithCacheDir(dir))
	_, err := first.ResolveTicker(ctx, "AAPL")
	require.NoError(t, err)

	// Fresh resolver simulates a new process reusing the cache.
	second := newTestResolver(t, srv.URL, WithCacheDir(dir))
	c, err := second.ResolveTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", c.CIK)
	assert.Equal(t, int32(1), conditional.Load())
}

func TestResolutionErrorOnUnreachableRegistry(t *testing.T) {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  "test test@example.com",
		Timeout:    500 * time.Millisecond,
		MaxRetries: 1,
		RateLimit:  100,
		Burst:      100,
	})
	r := NewResolver(f, WithRegistryURL("http://127.0.0.1:1/company_tickers.json"))

	_, err := r.ResolveTicker(context.Background(), "AAPL")
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "APPLE", NormalizeName("Apple Inc."))
	assert.Equal(t, "AMAZONCOM", NormalizeName("Amazon.com, Inc."))
	assert.Equal(t, "JOHNSON AND JOHNSON", NormalizeName("Johnson & Johnson"))
	assert.Equal(t, "SOCIETE GENERALE", NormalizeName("Société Générale S.A."))
	assert.Equal(t, "", NormalizeName("   "))
}

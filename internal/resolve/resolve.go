// Package resolve maps tickers, company names, and raw CIKs to canonical
// EDGAR identifiers using the SEC's company ticker registry.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/fetcher"
	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/query"
)

// DefaultRegistryURL is the SEC's ticker-to-CIK mapping file.
const DefaultRegistryURL = "https://www.sec.gov/files/company_tickers.json"

// NotFoundError reports a lookup with no match in the registry.
type NotFoundError struct {
	Lookup string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no registry match for %q", e.Lookup)
}

// AmbiguousError reports a name lookup that matched multiple companies
// when a unique identifier was required. Candidates holds every match.
type AmbiguousError struct {
	Lookup     string
	Candidates []model.Company
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("lookup %q matched %d companies", e.Lookup, len(e.Candidates))
}

// ResolutionError reports a lookup that failed because the registry could
// not be fetched after retries.
type ResolutionError struct {
	Lookup string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %q: %v", e.Lookup, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithRegistryURL overrides the registry location.
func WithRegistryURL(url string) Option {
	return func(r *Resolver) { r.url = url }
}

// WithCacheDir enables an on-disk registry cache refreshed with ETag
// conditional requests.
func WithCacheDir(dir string) Option {
	return func(r *Resolver) { r.cacheDir = dir }
}

// Resolver loads the ticker registry once per process and answers lookups
// from the in-memory copy.
type Resolver struct {
	fetcher  fetcher.Fetcher
	url      string
	cacheDir string

	mu        sync.Mutex
	companies []model.Company
}

// NewResolver creates a Resolver backed by the given fetcher.
func NewResolver(f fetcher.Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: f,
		url:     DefaultRegistryURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// registry file rows look like {"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."},...}
type registryEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

func (r *Resolver) load(ctx context.Context) ([]model.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.companies != nil {
		return r.companies, nil
	}

	data, err := r.fetchRegistry(ctx)
	if err != nil {
		return nil, err
	}

	var entries map[string]registryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "decode registry")
	}

	companies := make([]model.Company, 0, len(entries))
	for _, e := range entries {
		cik, err := query.NormalizeCIK(fmt.Sprintf("%d", e.CIK))
		if err != nil {
			continue
		}
		companies = append(companies, model.Company{
			CIK:    cik,
			Name:   e.Title,
			Ticker: e.Ticker,
		})
	}
	sort.Slice(companies, func(i, j int) bool {
		if companies[i].CIK != companies[j].CIK {
			return companies[i].CIK < companies[j].CIK
		}
		return companies[i].Ticker < companies[j].Ticker
	})

	zap.L().Debug("loaded ticker registry", zap.Int("companies", len(companies)))
	r.companies = companies
	return companies, nil
}

// fetchRegistry downloads the registry, using the on-disk cache and ETag
// conditional requests when a cache dir is configured.
func (r *Resolver) fetchRegistry(ctx context.Context) ([]byte, error) {
	cf, conditional := r.fetcher.(fetcher.ConditionalFetcher)
	if r.cacheDir == "" || !conditional {
		body, err := r.fetcher.Download(ctx, r.url)
		if err != nil {
			return nil, err
		}
		defer body.Close() //nolint:errcheck
		return io.ReadAll(body)
	}

	cachePath := filepath.Join(r.cacheDir, "company_tickers.json")
	etagPath := cachePath + ".etag"

	etag := ""
	if b, err := os.ReadFile(etagPath); err == nil {
		etag = strings.TrimSpace(string(b))
	}

	body, newETag, changed, err := cf.DownloadIfChanged(ctx, r.url, etag)
	if err != nil {
		return nil, err
	}

	if !changed {
		if cached, readErr := os.ReadFile(cachePath); readErr == nil {
			zap.L().Debug("registry unchanged, using cache", zap.String("path", cachePath))
			return cached, nil
		}
		// Cache file lost; refetch unconditionally.
		body, err = r.fetcher.Download(ctx, r.url)
		if err != nil {
			return nil, err
		}
		newETag = ""
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "read registry")
	}

	if err := os.MkdirAll(r.cacheDir, 0o755); err == nil {
		_ = os.WriteFile(cachePath, data, 0o644)
		if newETag != "" {
			_ = os.WriteFile(etagPath, []byte(newETag), 0o644)
		}
	}

	return data, nil
}

// ResolveTicker returns the single company registered under the ticker.
func (r *Resolver) ResolveTicker(ctx context.Context, ticker string) (model.Company, error) {
	companies, err := r.load(ctx)
	if err != nil {
		return model.Company{}, &ResolutionError{Lookup: ticker, Err: err}
	}

	want := strings.ToUpper(strings.TrimSpace(ticker))
	for _, c := range companies {
		if c.Ticker == want {
			return c, nil
		}
	}
	return model.Company{}, &NotFoundError{Lookup: ticker}
}

// ResolveCIK confirms a raw identifier against the registry and returns
// its canonical entry.
func (r *Resolver) ResolveCIK(ctx context.Context, raw string) (model.Company, error) {
	cik, err := query.NormalizeCIK(raw)
	if err != nil {
		return model.Company{}, err
	}

	companies, err := r.load(ctx)
	if err != nil {
		return model.Company{}, &ResolutionError{Lookup: raw, Err: err}
	}

	for _, c := range companies {
		if c.CIK == cik {
			return c, nil
		}
	}
	return model.Company{}, &NotFoundError{Lookup: raw}
}

// ResolveName returns every company whose normalized name contains the
// normalized lookup. Multiple matches are legitimate and always returned
// in full; zero matches is a NotFoundError.
func (r *Resolver) ResolveName(ctx context.Context, name string) ([]model.Company, error) {
	companies, err := r.load(ctx)
	if err != nil {
		return nil, &ResolutionError{Lookup: name, Err: err}
	}

	want := NormalizeName(name)
	if want == "" {
		return nil, eris.New("empty name lookup")
	}

	var matches []model.Company
	seen := make(map[string]bool)
	for _, c := range companies {
		if !strings.Contains(NormalizeName(c.Name), want) {
			continue
		}
		// Registry lists one row per ticker; collapse share classes of
		// the same filer.
		if seen[c.CIK] {
			continue
		}
		seen[c.CIK] = true
		matches = append(matches, c)
	}

	if len(matches) == 0 {
		return nil, &NotFoundError{Lookup: name}
	}
	return matches, nil
}

// Resolve interprets the lookup as a raw CIK, then a ticker, then a
// company name, returning all matches.
func (r *Resolver) Resolve(ctx context.Context, lookup string) ([]model.Company, error) {
	trimmed := strings.TrimSpace(lookup)
	if trimmed == "" {
		return nil, eris.New("empty lookup")
	}

	if isDigits(trimmed) {
		c, err := r.ResolveCIK(ctx, trimmed)
		if err != nil {
			return nil, err
		}
		return []model.Company{c}, nil
	}

	if c, err := r.ResolveTicker(ctx, trimmed); err == nil {
		return []model.Company{c}, nil
	} else {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}
	}

	return r.ResolveName(ctx, trimmed)
}

// ResolveOne resolves the lookup to exactly one company, turning a
// multi-match into an AmbiguousError rather than picking arbitrarily.
func (r *Resolver) ResolveOne(ctx context.Context, lookup string) (model.Company, error) {
	matches, err := r.Resolve(ctx, lookup)
	if err != nil {
		return model.Company{}, err
	}
	if len(matches) > 1 {
		return model.Company{}, &AmbiguousError{Lookup: lookup, Candidates: matches}
	}
	return matches[0], nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

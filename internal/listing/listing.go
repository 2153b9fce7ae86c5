// Package listing turns request descriptors into a lazy, bounded stream of
// filing references by walking the remote index pages.
package listing

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/fetcher"
	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/query"
)

// ParseError reports a malformed index page. Only the offending page is
// lost; references yielded from earlier pages remain valid.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed listing page %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Iterator produces FilingReference values one at a time. It fetches index
// pages lazily: a page is requested only once the previous page's entries
// are drained and the count limit has not been reached.
type Iterator struct {
	fetch fetcher.Fetcher
	max   int

	buf     []model.FilingReference
	yielded int
	done    bool

	// company mode
	company   *query.CompanyQuery
	nextStart int

	// daily mode
	daily *query.DailyQuery
	form  query.FormType
}

// NewCompanyIterator iterates a company's filings. max <= 0 means
// unbounded.
func NewCompanyIterator(f fetcher.Fetcher, q query.CompanyQuery, max int) *Iterator {
	return &Iterator{fetch: f, max: max, company: &q}
}

// NewDailyIterator iterates one day's master index, filtered by form type.
// max <= 0 means unbounded.
func NewDailyIterator(f fetcher.Fetcher, q query.DailyQuery, form query.FormType, max int) *Iterator {
	return &Iterator{fetch: f, max: max, daily: &q, form: form}
}

// Next returns the next reference, or (nil, nil) once the listing is
// exhausted or the count limit is reached.
func (it *Iterator) Next(ctx context.Context) (*model.FilingReference, error) {
	if it.max > 0 && it.yielded >= it.max {
		return nil, nil
	}

	for len(it.buf) == 0 && !it.done {
		if err := it.fill(ctx); err != nil {
			it.done = true
			return nil, err
		}
	}
	if len(it.buf) == 0 {
		return nil, nil
	}

	ref := it.buf[0]
	it.buf = it.buf[1:]
	it.yielded++
	return &ref, nil
}

// Collect drains the iterator. On error it returns the references yielded
// so far along with the error.
func (it *Iterator) Collect(ctx context.Context) ([]model.FilingReference, error) {
	var refs []model.FilingReference
	for {
		ref, err := it.Next(ctx)
		if err != nil {
			return refs, err
		}
		if ref == nil {
			return refs, nil
		}
		refs = append(refs, *ref)
	}
}

func (it *Iterator) fill(ctx context.Context) error {
	if it.daily != nil {
		return it.fillDaily(ctx)
	}
	return it.fillCompany(ctx)
}

func (it *Iterator) fillCompany(ctx context.Context) error {
	req, err := it.company.Descriptor(it.nextStart)
	if err != nil {
		return err
	}

	zap.L().Debug("fetching listing page",
		zap.String("url", req.URL),
		zap.Int("start", req.Start),
	)

	body, err := it.fetch.Download(ctx, req.URL)
	if err != nil {
		return eris.Wrap(err, "fetch listing page")
	}
	defer body.Close() //nolint:errcheck

	cik, err := query.NormalizeCIK(it.company.CIK)
	if err != nil {
		return err
	}

	entries, err := parseCompanyPage(body, cik)
	if err != nil {
		return &ParseError{URL: req.URL, Err: err}
	}

	if len(entries) == 0 {
		it.done = true
		return nil
	}

	// The server applies form and date filters; re-check locally so a
	// misbehaving page cannot leak entries outside the session's bounds.
	for _, e := range entries {
		if !it.company.Form.Matches(e.FormType) {
			continue
		}
		if !it.company.Dates.Contains(e.FilingDate) {
			continue
		}
		it.buf = append(it.buf, e)
	}

	batch := it.company.BatchSize
	if batch <= 0 {
		batch = 10
	}
	it.nextStart += batch
	if len(entries) < batch {
		it.done = true
	}
	return nil
}

func (it *Iterator) fillDaily(ctx context.Context) error {
	// The daily index is a single page.
	it.done = true

	req, err := it.daily.Descriptor()
	if err != nil {
		return err
	}

	zap.L().Debug("fetching daily index", zap.String("url", req.URL))

	body, err := it.fetch.Download(ctx, req.URL)
	if err != nil {
		return eris.Wrap(err, "fetch daily index")
	}
	defer body.Close() //nolint:errcheck

	entries, err := parseMasterIdx(body, it.daily.BaseURL)
	if err != nil {
		return &ParseError{URL: req.URL, Err: err}
	}

	for _, e := range entries {
		if !it.form.Matches(e.FormType) {
			continue
		}
		it.buf = append(it.buf, e)
	}
	return nil
}

// Package query builds request descriptors for the EDGAR company browse
// and daily index endpoints. Construction is pure: identical inputs yield
// byte-identical URLs, so everything here is testable without a network.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the EDGAR archive root.
const DefaultBaseURL = "https://www.sec.gov/"

const browsePath = "cgi-bin/browse-edgar"

// DateRange bounds a filing query. Zero values leave the corresponding
// side open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate enforces start <= end when both bounds are present.
func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return eris.Errorf("invalid date range: start %s after end %s",
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
	return nil
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Request is one fully-encoded index request. Start is the pagination
// offset for company-mode requests.
type Request struct {
	URL   string
	Start int
}

// NormalizeCIK validates a raw CIK and pads it to the canonical 10-digit
// form. CIKs are looked up, never computed; the only local rule is that
// they are all digits and at most ten of them.
func NormalizeCIK(raw string) (string, error) {
	trimmed := strings.TrimLeft(strings.TrimSpace(raw), "0")
	if trimmed == "" {
		return "", eris.Errorf("invalid CIK %q", raw)
	}
	if len(trimmed) > 10 {
		return "", eris.Errorf("invalid CIK %q: longer than 10 digits", raw)
	}
	for _, c := range trimmed {
		if c < '0' || c > '9' {
			return "", eris.Errorf("invalid CIK %q: non-digit character", raw)
		}
	}
	return fmt.Sprintf("%010s", trimmed), nil
}

// CompanyQuery enumerates filings for one company via the browse-edgar
// endpoint.
type CompanyQuery struct {
	BaseURL   string
	CIK       string
	Form      FormType
	Dates     DateRange
	BatchSize int
}

// Validate checks the query before any descriptor is produced.
func (q CompanyQuery) Validate() error {
	if !q.Form.Valid() {
		return &UnsupportedFilingTypeError{Value: string(q.Form)}
	}
	if _, err := NormalizeCIK(q.CIK); err != nil {
		return err
	}
	return q.Dates.Validate()
}

// Descriptor produces the request for one result page beginning at the
// given offset.
func (q CompanyQuery) Descriptor(start int) (Request, error) {
	if err := q.Validate(); err != nil {
		return Request{}, err
	}

	cik, err := NormalizeCIK(q.CIK)
	if err != nil {
		return Request{}, err
	}

	batch := q.BatchSize
	if batch <= 0 {
		batch = 10
	}

	params := url.Values{}
	params.Set("action", "getcompany")
	params.Set("CIK", cik)
	params.Set("owner", "include")
	params.Set("output", "xml")
	params.Set("count", strconv.Itoa(batch))
	params.Set("start", strconv.Itoa(start))
	if q.Form != FormTypeAll {
		params.Set("type", q.Form.Code())
	}
	if !q.Dates.Start.IsZero() {
		params.Set("datea", q.Dates.Start.Format("20060102"))
	}
	if !q.Dates.End.IsZero() {
		params.Set("dateb", q.Dates.End.Format("20060102"))
	}

	// url.Values.Encode sorts keys, keeping descriptors deterministic.
	return Request{
		URL:   q.baseURL() + browsePath + "?" + params.Encode(),
		Start: start,
	}, nil
}

func (q CompanyQuery) baseURL() string {
	base := q.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// Quarter returns the calendar quarter (1-4) containing t.
func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// DailyQuery enumerates every filing accepted on a single calendar day via
// the daily master index.
type DailyQuery struct {
	BaseURL string
	Date    time.Time
}

// Validate checks the query before any descriptor is produced.
func (q DailyQuery) Validate() error {
	if q.Date.IsZero() {
		return eris.New("daily query requires a date")
	}
	return nil
}

// IdxFilename returns the master index filename for the query date. EDGAR
// changed the embedded date format twice: MMDDYY before 1995, YYMMDD until
// 1998-03-31, YYYYMMDD after.
func (q DailyQuery) IdxFilename() string {
	switch {
	case q.Date.Year() < 1995:
		return "master." + q.Date.Format("010206") + ".idx"
	case q.Date.Before(time.Date(1998, 3, 31, 0, 0, 0, 0, time.UTC)):
		return "master." + q.Date.Format("060102") + ".idx"
	default:
		return "master." + q.Date.Format("20060102") + ".idx"
	}
}

// Descriptor produces the single request for the day's master index.
func (q DailyQuery) Descriptor() (Request, error) {
	if err := q.Validate(); err != nil {
		return Request{}, err
	}
	path := fmt.Sprintf("Archives/edgar/daily-index/%d/QTR%d/%s",
		q.Date.Year(), Quarter(q.Date), q.IdxFilename())
	return Request{URL: q.baseURL() + path}, nil
}

func (q DailyQuery) baseURL() string {
	base := q.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// BulkArchivePath returns the feed path of the day's .nc.tar.gz bulk
// archive, mirrored over both HTTPS and the legacy anonymous FTP feed.
// Bulk archives only exist from 1995 Q3 onward.
func (q DailyQuery) BulkArchivePath() (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	year, quarter := q.Date.Year(), Quarter(q.Date)
	if year < 1995 || (year == 1995 && quarter < 3) {
		return "", eris.New("bulk archives are only available from 1995 Q3 onward")
	}
	return fmt.Sprintf("Archives/edgar/Feed/%d/QTR%d/%s.nc.tar.gz",
		year, quarter, q.Date.Format("20060102")), nil
}

// Package session orchestrates one retrieval run end to end: resolving the
// requested company, building the listing query, walking the index pages,
// and persisting the documents.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/filings-cli/internal/fetcher"
	"github.com/sells-group/filings-cli/internal/listing"
	"github.com/sells-group/filings-cli/internal/manifest"
	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/persist"
	"github.com/sells-group/filings-cli/internal/query"
	"github.com/sells-group/filings-cli/internal/resolve"
)

// ConfigurationError reports invalid session options, detected before any
// network request is made.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// State is the lifecycle phase of a session.
type State string

const (
	StateCreated    State = "created"
	StateResolving  State = "resolving"
	StateQuerying   State = "querying"
	StateIterating  State = "iterating"
	StatePersisting State = "persisting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Mode selects what a session retrieves.
type Mode string

const (
	// ModeCompany retrieves one company's filings.
	ModeCompany Mode = "company"
	// ModeDaily retrieves every filing from one day's master index.
	ModeDaily Mode = "daily"
)

// Options configures a session.
type Options struct {
	// UserAgent identifies the caller to the remote host. Required.
	UserAgent string
	// BaseURL overrides the archive root. Defaults to the public host.
	BaseURL string
	// RegistryURL overrides the ticker registry location.
	RegistryURL string
	// CacheDir enables on-disk registry caching.
	CacheDir string

	// Lookup selects company mode: a ticker, CIK, or company name.
	Lookup string
	// Date selects daily mode. Exactly one of Lookup and Date is set.
	Date time.Time

	// Form restricts results to one filing type. Empty means all types.
	Form string
	// Dates bounds company-mode results by filing date.
	Dates query.DateRange
	// Count caps how many filings are retrieved. <= 0 means unbounded.
	Count int
	// BatchSize is the listing page size.
	BatchSize int

	// Dest is the destination directory root. Required.
	Dest string
	// Parallel bounds concurrent document downloads.
	Parallel int
	// FailFast aborts the batch on the first persistence failure.
	FailFast bool

	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	Burst      int

	// Manifest, when set, records the run and its documents.
	Manifest *manifest.Manifest
	// SkipSeen skips documents the manifest has already recorded.
	SkipSeen bool
}

// ItemReport is the outcome of one document in the run summary.
type ItemReport struct {
	CIK        string `yaml:"cik"`
	FormType   string `yaml:"form_type"`
	FilingDate string `yaml:"filing_date"`
	Accession  string `yaml:"accession"`
	Path       string `yaml:"path,omitempty"`
	Bytes      int64  `yaml:"bytes,omitempty"`
	Skipped    bool   `yaml:"skipped,omitempty"`
	Error      string `yaml:"error,omitempty"`
}

// Summary describes a finished run.
type Summary struct {
	SessionID string       `yaml:"session_id,omitempty"`
	Mode      Mode         `yaml:"mode"`
	Criteria  string       `yaml:"criteria"`
	Company   string       `yaml:"company,omitempty"`
	Form      string       `yaml:"form,omitempty"`
	State     State        `yaml:"state"`
	Listed    int          `yaml:"listed"`
	Saved     int          `yaml:"saved"`
	Skipped   int          `yaml:"skipped,omitempty"`
	Failed    int          `yaml:"failed"`
	PageError string       `yaml:"page_error,omitempty"`
	StartedAt time.Time    `yaml:"started_at"`
	Duration  string       `yaml:"duration"`
	Items     []ItemReport `yaml:"items,omitempty"`
}

// Session runs one retrieval from identifier to files on disk. A session
// is single-use: Run may be called once.
type Session struct {
	opts  Options
	mode  Mode
	form  query.FormType
	fetch fetcher.Fetcher
	state State
	ran   bool
}

// New validates the options and prepares a session. It makes no network
// requests; a misconfigured session fails here with a ConfigurationError.
func New(opts Options) (*Session, error) {
	if opts.UserAgent == "" {
		return nil, &ConfigurationError{Field: "user_agent", Reason: "must identify the caller (e.g. \"Name email@example.com\")"}
	}
	if opts.Dest == "" {
		return nil, &ConfigurationError{Field: "dest", Reason: "destination directory is required"}
	}

	hasLookup := opts.Lookup != ""
	hasDate := !opts.Date.IsZero()
	if hasLookup == hasDate {
		return nil, &ConfigurationError{Field: "criteria", Reason: "exactly one of a company lookup and a date is required"}
	}
	mode := ModeCompany
	if hasDate {
		mode = ModeDaily
	}

	form, err := query.ParseFormType(opts.Form)
	if err != nil {
		return nil, err
	}
	if err := opts.Dates.Validate(); err != nil {
		return nil, &ConfigurationError{Field: "dates", Reason: err.Error()}
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  opts.UserAgent,
		Timeout:    opts.Timeout,
		MaxRetries: opts.MaxRetries,
		RateLimit:  rate.Limit(opts.RateLimit),
		Burst:      opts.Burst,
	})

	return &Session{
		opts:  opts,
		mode:  mode,
		form:  form,
		fetch: f,
		state: StateCreated,
	}, nil
}

// State returns the session's current lifecycle phase.
func (s *Session) State() State {
	return s.state
}

// Mode returns what the session retrieves.
func (s *Session) Mode() Mode {
	return s.mode
}

// Run executes the session. The summary is returned even on failure so the
// caller can report partial progress.
func (s *Session) Run(ctx context.Context) (*Summary, error) {
	if s.ran {
		return nil, eris.New("session already ran")
	}
	s.ran = true

	started := time.Now()
	criteria := s.opts.Lookup
	if s.mode == ModeDaily {
		criteria = s.opts.Date.Format("2006-01-02")
	}
	summary := &Summary{
		Mode:      s.mode,
		Criteria:  criteria,
		Form:      s.form.Code(),
		StartedAt: started,
	}

	var manifestID string
	if s.opts.Manifest != nil {
		id, err := s.opts.Manifest.StartSession(ctx, string(s.mode), criteria, s.form.Code())
		if err != nil {
			zap.L().Warn("manifest unavailable", zap.Error(err))
		} else {
			manifestID = id
			summary.SessionID = id
		}
	}

	err := s.run(ctx, summary, manifestID)
	summary.Duration = time.Since(started).Round(time.Millisecond).String()

	if err != nil {
		s.state = StateFailed
		summary.State = StateFailed
		if manifestID != "" {
			if ferr := s.opts.Manifest.FailSession(ctx, manifestID, err.Error()); ferr != nil {
				zap.L().Warn("manifest update failed", zap.Error(ferr))
			}
		}
		return summary, err
	}

	s.state = StateCompleted
	summary.State = StateCompleted
	if manifestID != "" {
		if cerr := s.opts.Manifest.CompleteSession(ctx, manifestID, int64(summary.Saved), int64(summary.Failed)); cerr != nil {
			zap.L().Warn("manifest update failed", zap.Error(cerr))
		}
	}
	return summary, nil
}

func (s *Session) run(ctx context.Context, summary *Summary, manifestID string) error {
	it, err := s.buildIterator(ctx, summary)
	if err != nil {
		return err
	}

	s.state = StateIterating
	refs, err := it.Collect(ctx)
	summary.Listed = len(refs)
	if err != nil {
		var pe *listing.ParseError
		if !errors.As(err, &pe) {
			return err
		}
		// A malformed page loses only its own entries. Everything listed
		// before it is still persisted; the page failure goes in the
		// summary.
		summary.PageError = err.Error()
		zap.L().Warn("listing page failed", zap.Error(err))
	}
	if len(refs) == 0 {
		return nil
	}

	if s.opts.SkipSeen && s.opts.Manifest != nil {
		refs = s.filterSeen(ctx, refs, summary)
		if len(refs) == 0 {
			return nil
		}
	}

	s.state = StatePersisting
	saver, err := persist.NewSaver(s.fetch, persist.Options{
		Dir:      s.opts.Dest,
		Parallel: s.opts.Parallel,
		FailFast: s.opts.FailFast,
	})
	if err != nil {
		return err
	}

	results, saveErr := saver.Save(ctx, refs)
	for _, res := range results {
		item := ItemReport{
			CIK:        res.Ref.CIK,
			FormType:   res.Ref.FormType,
			FilingDate: res.Ref.FilingDate.Format("2006-01-02"),
			Accession:  res.Ref.AccessionNumber,
			Path:       res.Path,
			Bytes:      res.Bytes,
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
			item.Path = ""
			item.Bytes = 0
			summary.Failed++
		} else {
			summary.Saved++
			if manifestID != "" {
				doc := manifest.Document{
					SessionID:  manifestID,
					CIK:        res.Ref.CIK,
					FormType:   res.Ref.FormType,
					FilingDate: res.Ref.FilingDate,
					URL:        res.Ref.DocumentURL,
					Path:       res.Path,
					Bytes:      res.Bytes,
				}
				if rerr := s.opts.Manifest.RecordDocument(ctx, doc); rerr != nil {
					zap.L().Warn("manifest record failed", zap.Error(rerr))
				}
			}
		}
		summary.Items = append(summary.Items, item)
	}
	return saveErr
}

func (s *Session) buildIterator(ctx context.Context, summary *Summary) (*listing.Iterator, error) {
	if s.mode == ModeDaily {
		s.state = StateQuerying
		q := query.DailyQuery{BaseURL: s.opts.BaseURL, Date: s.opts.Date}
		if err := q.Validate(); err != nil {
			return nil, err
		}
		return listing.NewDailyIterator(s.fetch, q, s.form, s.opts.Count), nil
	}

	s.state = StateResolving
	var resolveOpts []resolve.Option
	if s.opts.RegistryURL != "" {
		resolveOpts = append(resolveOpts, resolve.WithRegistryURL(s.opts.RegistryURL))
	}
	if s.opts.CacheDir != "" {
		resolveOpts = append(resolveOpts, resolve.WithCacheDir(s.opts.CacheDir))
	}
	r := resolve.NewResolver(s.fetch, resolveOpts...)

	company, err := r.ResolveOne(ctx, s.opts.Lookup)
	if err != nil {
		return nil, err
	}
	summary.Company = company.Name
	zap.L().Info("resolved company",
		zap.String("lookup", s.opts.Lookup),
		zap.String("cik", company.CIK),
		zap.String("name", company.Name),
	)

	s.state = StateQuerying
	q := query.CompanyQuery{
		BaseURL:   s.opts.BaseURL,
		CIK:       company.CIK,
		Form:      s.form,
		Dates:     s.opts.Dates,
		BatchSize: s.opts.BatchSize,
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return listing.NewCompanyIterator(s.fetch, q, s.opts.Count), nil
}

// filterSeen drops references the manifest has already recorded, noting
// them as skipped in the summary.
func (s *Session) filterSeen(ctx context.Context, refs []model.FilingReference, summary *Summary) []model.FilingReference {
	kept := refs[:0]
	for _, ref := range refs {
		seen, err := s.opts.Manifest.Seen(ctx, ref.DocumentURL)
		if err != nil {
			zap.L().Warn("manifest lookup failed", zap.Error(err))
			kept = append(kept, ref)
			continue
		}
		if seen {
			summary.Skipped++
			summary.Items = append(summary.Items, ItemReport{
				CIK:        ref.CIK,
				FormType:   ref.FormType,
				FilingDate: ref.FilingDate.Format("2006-01-02"),
				Accession:  ref.AccessionNumber,
				Skipped:    true,
			})
			continue
		}
		kept = append(kept, ref)
	}
	return kept
}

// Package persist downloads filing documents and writes them under a
// deterministic directory layout.
package persist

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/filings-cli/internal/fetcher"
	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/query"
)

// PersistError reports a local write failure for one document.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persisting %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Options configures a Saver.
type Options struct {
	// Dir is the destination root. Required.
	Dir string
	// Parallel bounds concurrent downloads. <= 1 means sequential.
	Parallel int
	// FailFast aborts the whole batch on the first failure instead of
	// collecting per-item errors.
	FailFast bool
}

// Result is the outcome of persisting one reference.
type Result struct {
	Ref   model.FilingReference
	Path  string
	Bytes int64
	Err   error
}

// Saver fetches documents and stores them under
// {dir}/{cik}/{form}/{date}-{seq}{ext}. Documents are independent, so the
// batch can run with bounded parallelism.
type Saver struct {
	fetch fetcher.Fetcher
	opts  Options
}

// NewSaver creates a Saver writing under opts.Dir.
func NewSaver(f fetcher.Fetcher, opts Options) (*Saver, error) {
	if opts.Dir == "" {
		return nil, eris.New("destination directory is required")
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	return &Saver{fetch: f, opts: opts}, nil
}

// DestPath returns the destination for a reference. seq disambiguates
// multiple same-form filings on the same date, keeping distinct references
// on distinct paths.
func DestPath(dir string, ref model.FilingReference, seq int) string {
	ext := ".txt"
	if u, err := url.Parse(ref.DocumentURL); err == nil {
		if e := path.Ext(u.Path); e != "" {
			ext = e
		}
	}
	name := fmt.Sprintf("%s-%d%s", ref.FilingDate.Format("2006-01-02"), seq, ext)
	return filepath.Join(dir, ref.CIK, query.PathSegment(ref.FormType), name)
}

// assignPaths gives every reference a unique destination, numbering
// same-day same-form filings in input order.
func (s *Saver) assignPaths(refs []model.FilingReference) []string {
	paths := make([]string, len(refs))
	counts := make(map[string]int)
	for i, ref := range refs {
		key := ref.CIK + "\x00" + ref.FormType + "\x00" + ref.FilingDate.Format("2006-01-02")
		paths[i] = DestPath(s.opts.Dir, ref, counts[key])
		counts[key]++
	}
	return paths
}

// Save downloads and writes every reference. Per-item failures are
// recorded in the results unless FailFast is set, in which case the first
// failure cancels the rest of the batch.
func (s *Saver) Save(ctx context.Context, refs []model.FilingReference) ([]Result, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	paths := s.assignPaths(refs)
	results := make([]Result, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallel)

	for i, ref := range refs {
		g.Go(func() error {
			res := s.saveOne(gctx, ref, paths[i])
			results[i] = res
			if res.Err != nil && s.opts.FailFast {
				return res.Err
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

func (s *Saver) saveOne(ctx context.Context, ref model.FilingReference, dest string) Result {
	res := Result{Ref: ref, Path: dest}

	body, err := s.fetch.Download(ctx, ref.DocumentURL)
	if err != nil {
		res.Err = eris.Wrapf(err, "download %s", ref.DocumentURL)
		return res
	}
	defer body.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		res.Err = &PersistError{Path: dest, Err: err}
		return res
	}

	file, err := os.Create(dest)
	if err != nil {
		res.Err = &PersistError{Path: dest, Err: err}
		return res
	}

	n, err := io.Copy(file, body)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		res.Err = &PersistError{Path: dest, Err: err}
		return res
	}

	res.Bytes = n
	zap.L().Debug("saved filing",
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return res
}

package persist

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/filings-cli/internal/fetcher"
	"github.com/sells-group/filings-cli/internal/model"
)

func newTestFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: "test test@example.com",
		Timeout:   5 * time.Second,
		RateLimit: 100,
		Burst:     100,
	})
}

func ref(srvURL, cik, form, date, accession string) model.FilingReference {
	d, _ := time.Parse("2006-01-02", date)
	return model.FilingReference{
		CIK:             cik,
		FormType:        form,
		FilingDate:      d,
		AccessionNumber: accession,
		DocumentURL:     srvURL + "/Archives/edgar/data/" + accession + ".txt",
	}
}

func TestDestPathLayout(t *testing.T) {
	r := ref("https://www.sec.gov", "0000320193", "10-Q", "2021-06-30", "0000320193-21-000056")
	p := DestPath("out", r, 0)
	assert.Equal(t, filepath.Join("out", "0000320193", "10-Q", "2021-06-30-0.txt"), p)

	r.FormType = "10-K/A"
	p = DestPath("out", r, 1)
	assert.Equal(t, filepath.Join("out", "0000320193", "10-KA", "2021-06-30-1.txt"), p)
}

func TestDestPathsDistinct(t *testing.T) {
	a := ref("https://www.sec.gov", "0000320193", "10-Q", "2021-06-30", "a")
	b := ref("https://www.sec.gov", "0000320193", "10-K", "2021-06-30", "b")
	c := ref("https://www.sec.gov", "0000320193", "10-Q", "2021-03-31", "c")

	assert.NotEqual(t, DestPath("out", a, 0), DestPath("out", b, 0))
	assert.NotEqual(t, DestPath("out", a, 0), DestPath("out", c, 0))
}

func TestSaveWritesFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "contents of %s", r.URL.Path)
	}))
	defer srv.Close()

	dir := t.TempDir()
	s, err := NewSaver(newTestFetcher(), Options{Dir: dir, Parallel: 2})
	require.NoError(t, err)

	refs := []model.FilingReference{
		ref(srv.URL, "0000320193", "10-Q", "2021-06-30", "acc-1"),
		ref(srv.URL, "0000320193", "10-Q", "2021-06-30", "acc-2"),
		ref(srv.URL, "0000789019", "8-K", "2021-06-30", "acc-3"),
	}

	results, err := s.Save(context.Background(), refs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Same-day same-form filings get distinct sequence numbers.
	assert.Equal(t, filepath.Join(dir, "0000320193", "10-Q", "2021-06-30-0.txt"), results[0].Path)
	assert.Equal(t, filepath.Join(dir, "0000320193", "10-Q", "2021-06-30-1.txt"), results[1].Path)
	assert.Equal(t, filepath.Join(dir, "0000789019", "8-K", "2021-06-30-0.txt"), results[2].Path)

	for _, res := range results {
		require.NoError(t, res.Err)
		data, err := os.ReadFile(res.Path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		assert.Equal(t, int64(len(data)), res.Bytes)
	}
}

func TestSaveIsolatesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Archives/edgar/data/bad.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	dir := t.TempDir()
	s, err := NewSaver(newTestFetcher(), Options{Dir: dir})
	require.NoError(t, err)

	refs := []model.FilingReference{
		ref(srv.URL, "0000320193", "10-Q", "2021-06-30", "good"),
		ref(srv.URL, "0000320193", "10-Q", "2021-06-29", "bad"),
		ref(srv.URL, "0000320193", "10-Q", "2021-06-28", "also-good"),
	}

	results, err := s.Save(context.Background(), refs)
	require.NoError(t, err)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)

	// The failed item left nothing behind; the others are on disk.
	assert.NoFileExists(t, results[1].Path)
	assert.FileExists(t, results[0].Path)
	assert.FileExists(t, results[2].Path)
}

func TestSaveFailFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	s, err := NewSaver(newTestFetcher(), Options{Dir: dir, FailFast: true})
	require.NoError(t, err)

	refs := []model.FilingReference{
		ref(srv.URL, "0000320193", "10-Q", "2021-06-30", "x"),
	}

	_, err = s.Save(context.Background(), refs)
	require.Error(t, err)
}

func TestSavePersistError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	// A file where the destination directory should be forces a local
	// write failure.
	dir := t.TempDir()
	blocked := filepath.Join(dir, "0000320193")
	require.NoError(t, os.WriteFile(blocked, []byte("in the way"), 0o644))

	s, err := NewSaver(newTestFetcher(), Options{Dir: dir})
	require.NoError(t, err)

	results, err := s.Save(context.Background(), []model.FilingReference{
		ref(srv.URL, "0000320193", "10-Q", "2021-06-30", "x"),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	var pe *PersistError
	require.ErrorAs(t, results[0].Err, &pe)
}

func TestNewSaverRequiresDir(t *testing.T) {
	_, err := NewSaver(newTestFetcher(), Options{})
	require.Error(t, err)
}

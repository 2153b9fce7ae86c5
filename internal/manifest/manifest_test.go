package manifest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := Open(filepath.Join(t.TempDir(), "filings.db"))
	require.NoError(t, err)
	require.NoError(t, m.Migrate(context.Background()))
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newTestManifest(t)

	id, err := m.StartSession(ctx, "company", "AAPL", "10-Q")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sessions, err := m.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "running", sessions[0].Status)
	assert.Equal(t, "AAPL", sessions[0].Criteria)

	require.NoError(t, m.CompleteSession(ctx, id, 15, 0))

	sessions, err = m.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "complete", sessions[0].Status)
	assert.Equal(t, int64(15), sessions[0].Saved)
	assert.NotNil(t, sessions[0].CompletedAt)
}

func TestFailSession(t *testing.T) {
	ctx := context.Background()
	m := newTestManifest(t)

	id, err := m.StartSession(ctx, "daily", "2021-06-30", "")
	require.NoError(t, err)
	require.NoError(t, m.FailSession(ctx, id, "registry unreachable"))

	sessions, err := m.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "failed", sessions[0].Status)
	assert.Equal(t, "registry unreachable", sessions[0].Error)
}

func TestListSessionsOrdering(t *testing.T) {
	ctx := context.Background()
	m := newTestManifest(t)

	first, err := m.StartSession(ctx, "company", "AAPL", "10-Q")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := m.StartSession(ctx, "company", "MSFT", "8-K")
	require.NoError(t, err)

	sessions, err := m.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second, sessions[0].ID)
	assert.Equal(t, first, sessions[1].ID)

	limited, err := m.ListSessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestRecordAndQueryDocuments(t *testing.T) {
	ctx := context.Background()
	m := newTestManifest(t)

	id, err := m.StartSession(ctx, "company", "AAPL", "10-Q")
	require.NoError(t, err)

	doc := Document{
		SessionID:  id,
		CIK:        "0000320193",
		FormType:   "10-Q",
		FilingDate: time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC),
		URL:        "https://www.sec.gov/Archives/edgar/data/320193/0000320193-21-000056.txt",
		Path:       "filings/0000320193/10-Q/2021-06-30-0.txt",
		Bytes:      1234,
	}
	require.NoError(t, m.RecordDocument(ctx, doc))

	docs, err := m.SessionDocuments(ctx, id)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.URL, docs[0].URL)
	assert.Equal(t, doc.Path, docs[0].Path)
	assert.Equal(t, int64(1234), docs[0].Bytes)
	assert.True(t, doc.FilingDate.Equal(docs[0].FilingDate))

	seen, err := m.Seen(ctx, doc.URL)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = m.Seen(ctx, "https://www.sec.gov/Archives/edgar/data/320193/other.txt")
	require.NoError(t, err)
	assert.False(t, seen)
}

package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFTPURL(t *testing.T) {
	host, path, err := parseFTPURL("ftp://ftp.sec.gov/edgar/full-index/2020/QTR1/master.idx")
	require.NoError(t, err)
	assert.Equal(t, "ftp.sec.gov:21", host)
	assert.Equal(t, "/edgar/full-index/2020/QTR1/master.idx", path)

	host, _, err = parseFTPURL("ftp://ftp.sec.gov:2121/edgar/file.idx")
	require.NoError(t, err)
	assert.Equal(t, "ftp.sec.gov:2121", host)

	_, _, err = parseFTPURL("https://www.sec.gov/index.json")
	require.Error(t, err)

	_, _, err = parseFTPURL("ftp://ftp.sec.gov")
	require.Error(t, err)
}

func TestNewFTPFetcherDefaults(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	assert.Equal(t, 30*time.Second, f.opts.Timeout)
	assert.Equal(t, 3, f.opts.MaxRetries)
}

func TestFTPDownloadRejectsNonFTPURL(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	_, err := f.Download(context.Background(), "https://www.sec.gov/file.idx")
	require.Error(t, err)
}

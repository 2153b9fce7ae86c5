package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/resilience"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout    time.Duration
	MaxRetries int
}

// FTPFetcher downloads files over anonymous FTP. The historical bulk feed
// (ftp.sec.gov) predates the HTTPS archive and still mirrors the daily
// dissemination archives.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return &FTPFetcher{opts: opts}
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", eris.New("empty path in ftp url")
	}

	return host, path, nil
}

// feedReader ties the FTP data connection lifetime to the reader: closing
// it closes the transfer and disconnects.
type feedReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *feedReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *feedReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "quit ftp connection")
	}
	return nil
}

// Download connects anonymously and retrieves the file, retrying transient
// connection failures the same way the HTTP path does. The caller must
// close the returned ReadCloser to release the connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	policy := resilience.DefaultPolicy()
	policy.Attempts = f.opts.MaxRetries

	return resilience.DoVal(ctx, policy, "ftp retrieve", func(ctx context.Context) (io.ReadCloser, error) {
		zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", path))

		conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
		if err != nil {
			return nil, resilience.NewNetworkError(eris.Wrap(err, "ftp dial"), 0)
		}

		if err := conn.Login("anonymous", "anonymous@"); err != nil {
			_ = conn.Quit()
			return nil, eris.Wrap(err, "ftp login")
		}

		// A missing file (550) is permanent; only dial failures retry.
		resp, err := conn.Retr(path)
		if err != nil {
			_ = conn.Quit()
			return nil, eris.Wrapf(err, "ftp retrieve %s", path)
		}

		return &feedReader{resp: resp, conn: conn}, nil
	})
}

// DownloadToFile downloads the FTP URL to a local file, creating parent
// directories as needed. Returns bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	rc, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrap(err, "create directory")
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, rc)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}

	return n, nil
}

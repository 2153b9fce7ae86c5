package main

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/filings-cli/internal/fetcher"
	"github.com/sells-group/filings-cli/internal/query"
)

var bulkCmd = &cobra.Command{
	Use:   "bulk <YYYY-MM-DD>",
	Short: "Download a day's bulk feed archive",
	Long:  "Downloads the day's complete .nc.tar.gz dissemination archive. With --ftp the legacy anonymous FTP feed is used instead of HTTPS.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		date, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return eris.Wrapf(err, "parse date %s", args[0])
		}

		q := query.DailyQuery{Date: date}
		archivePath, err := q.BulkArchivePath()
		if err != nil {
			return err
		}

		dest, _ := cmd.Flags().GetString("dest")
		if dest == "" {
			dest = cfg.Fetch.Dest
		}
		local := filepath.Join(dest, path.Base(archivePath))

		var n int64
		if useFTP, _ := cmd.Flags().GetBool("ftp"); useFTP {
			host, _ := cmd.Flags().GetString("ftp-host")
			f := fetcher.NewFTPFetcher(fetcher.FTPOptions{
				Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
				MaxRetries: cfg.Fetch.MaxRetries,
			})
			n, err = f.DownloadToFile(ctx, "ftp://"+host+"/"+archivePath, local)
		} else {
			if cfg.Edgar.UserAgent == "" {
				return eris.New("edgar.user_agent is required (set FILINGS_EDGAR_USER_AGENT)")
			}
			base := cfg.Edgar.BaseURL
			if !strings.HasSuffix(base, "/") {
				base += "/"
			}
			n, err = newFetcher().DownloadToFile(ctx, base+archivePath, local)
		}
		if err != nil {
			return eris.Wrapf(err, "bulk %s", args[0])
		}

		fmt.Printf("%s: %d bytes\n", local, n)
		return nil
	},
}

func init() {
	bulkCmd.Flags().String("dest", "", "destination directory (defaults to fetch.dest)")
	bulkCmd.Flags().Bool("ftp", false, "download over the legacy anonymous FTP feed")
	bulkCmd.Flags().String("ftp-host", "ftp.sec.gov", "FTP host for --ftp")
	rootCmd.AddCommand(bulkCmd)
}

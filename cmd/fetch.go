package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/filings-cli/internal/manifest"
	"github.com/sells-group/filings-cli/internal/query"
	"github.com/sells-group/filings-cli/internal/session"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <ticker|cik|name>",
	Short: "Download a company's filings",
	Long:  "Resolves the identifier, lists the company's filings, and downloads the documents under the destination directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts, err := sessionOptions(cmd)
		if err != nil {
			return err
		}
		opts.Lookup = args[0]

		m, err := openManifest(ctx)
		if err != nil {
			return err
		}
		defer m.Close() //nolint:errcheck
		opts.Manifest = m

		s, err := session.New(opts)
		if err != nil {
			return err
		}

		summary, runErr := s.Run(ctx)
		if summary != nil {
			if err := writeSummary(cmd, summary); err != nil {
				return err
			}
		}
		return runErr
	},
}

var dailyCmd = &cobra.Command{
	Use:   "daily <YYYY-MM-DD>",
	Short: "Download all filings from one day",
	Long:  "Fetches the day's master index and downloads every listed filing, optionally restricted to one form type.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		date, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return eris.Wrapf(err, "parse date %s", args[0])
		}

		opts, err := sessionOptions(cmd)
		if err != nil {
			return err
		}
		opts.Date = date

		m, err := openManifest(ctx)
		if err != nil {
			return err
		}
		defer m.Close() //nolint:errcheck
		opts.Manifest = m

		s, err := session.New(opts)
		if err != nil {
			return err
		}

		summary, runErr := s.Run(ctx)
		if summary != nil {
			if err := writeSummary(cmd, summary); err != nil {
				return err
			}
		}
		return runErr
	},
}

// sessionOptions assembles session options from config and the flags shared
// by fetch and daily.
func sessionOptions(cmd *cobra.Command) (session.Options, error) {
	form, _ := cmd.Flags().GetString("form")
	count, _ := cmd.Flags().GetInt("count")
	dest, _ := cmd.Flags().GetString("dest")
	skipSeen, _ := cmd.Flags().GetBool("skip-seen")

	if dest == "" {
		dest = cfg.Fetch.Dest
	}

	opts := session.Options{
		UserAgent:  cfg.Edgar.UserAgent,
		BaseURL:    cfg.Edgar.BaseURL,
		Form:       form,
		Count:      count,
		BatchSize:  cfg.Fetch.BatchSize,
		Dest:       dest,
		Parallel:   cfg.Fetch.Parallel,
		FailFast:   cfg.Fetch.FailFast,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		RateLimit:  cfg.Edgar.RateLimit,
		Burst:      cfg.Edgar.Burst,
		SkipSeen:   skipSeen,
	}

	if cacheDir, err := os.UserCacheDir(); err == nil {
		opts.CacheDir = cacheDir + "/filings-cli"
	}

	var dates query.DateRange
	if after, _ := cmd.Flags().GetString("after"); after != "" {
		t, err := time.Parse("2006-01-02", after)
		if err != nil {
			return opts, eris.Wrapf(err, "parse --after %s", after)
		}
		dates.Start = t
	}
	if before, _ := cmd.Flags().GetString("before"); before != "" {
		t, err := time.Parse("2006-01-02", before)
		if err != nil {
			return opts, eris.Wrapf(err, "parse --before %s", before)
		}
		dates.End = t
	}
	opts.Dates = dates

	return opts, nil
}

func openManifest(ctx context.Context) (*manifest.Manifest, error) {
	m, err := manifest.Open(cfg.Manifest.Path)
	if err != nil {
		return nil, err
	}
	if err := m.Migrate(ctx); err != nil {
		m.Close() //nolint:errcheck
		return nil, err
	}
	return m, nil
}

func writeSummary(cmd *cobra.Command, summary *session.Summary) error {
	if report, _ := cmd.Flags().GetString("report"); report != "" {
		f, err := os.Create(report)
		if err != nil {
			return eris.Wrapf(err, "create report %s", report)
		}
		defer f.Close() //nolint:errcheck
		if err := summary.WriteReport(f); err != nil {
			return err
		}
	}

	fmt.Printf("%s: listed %d, saved %d, skipped %d, failed %d (%s)\n",
		summary.Criteria, summary.Listed, summary.Saved, summary.Skipped, summary.Failed, summary.Duration)
	return nil
}

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().String("form", "", "filing type to retrieve (e.g. 10-K, 10-Q, 8-K); empty means all")
	cmd.Flags().Int("count", 0, "max filings to retrieve; 0 means all")
	cmd.Flags().String("dest", "", "destination directory (defaults to fetch.dest)")
	cmd.Flags().String("report", "", "write a YAML run report to this path")
	cmd.Flags().Bool("skip-seen", false, "skip documents already recorded in the manifest")
}

func init() {
	addFetchFlags(fetchCmd)
	fetchCmd.Flags().String("after", "", "only filings on or after this date (YYYY-MM-DD)")
	fetchCmd.Flags().String("before", "", "only filings on or before this date (YYYY-MM-DD)")

	addFetchFlags(dailyCmd)

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(dailyCmd)
}

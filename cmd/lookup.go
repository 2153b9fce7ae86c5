package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/sells-group/filings-cli/internal/fetcher"
	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/resolve"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <ticker|cik|name>",
	Short: "Resolve a company identifier",
	Long:  "Resolves a ticker symbol, CIK, or company name against the ticker registry and prints every match.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Edgar.UserAgent == "" {
			return eris.New("edgar.user_agent is required (set FILINGS_EDGAR_USER_AGENT)")
		}

		f := newFetcher()
		var opts []resolve.Option
		if cacheDir, err := os.UserCacheDir(); err == nil {
			opts = append(opts, resolve.WithCacheDir(cacheDir+"/filings-cli"))
		}
		r := resolve.NewResolver(f, opts...)

		matches, err := r.Resolve(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "lookup %s", args[0])
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(matches)
		}

		formatCompanies(matches)
		return nil
	},
}

func newFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Edgar.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		RateLimit:  rate.Limit(cfg.Edgar.RateLimit),
		Burst:      cfg.Edgar.Burst,
	})
}

func formatCompanies(companies []model.Company) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CIK\tTICKER\tNAME")
	for _, c := range companies {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.CIK, c.Ticker, c.Name)
	}
	w.Flush() //nolint:errcheck
}

func init() {
	lookupCmd.Flags().Bool("json", false, "print matches as JSON")
	rootCmd.AddCommand(lookupCmd)
}

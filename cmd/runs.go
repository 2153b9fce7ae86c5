package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/filings-cli/internal/manifest"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect retrieval run history",
	Long:  "Commands for listing past retrieval sessions and the documents they downloaded.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retrieval sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		m, err := openManifest(ctx)
		if err != nil {
			return err
		}
		defer m.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		sessions, err := m.ListSessions(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(sessions) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatSessions(sessions)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the documents downloaded by a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		m, err := openManifest(ctx)
		if err != nil {
			return err
		}
		defer m.Close() //nolint:errcheck

		docs, err := m.SessionDocuments(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	},
}

func formatSessions(sessions []manifest.Session) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tCRITERIA\tFORM\tSTATUS\tSTARTED\tSAVED\tFAILED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			s.ID, s.Mode, s.Criteria, s.FormType, s.Status,
			s.StartedAt.Format("2006-01-02 15:04"), s.Saved, s.Failed)
	}
	w.Flush() //nolint:errcheck
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of sessions to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

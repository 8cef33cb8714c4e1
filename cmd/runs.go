package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/metro-proximity/internal/dataset"
	"github.com/sells-group/metro-proximity/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded run history",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("runs"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{Kind: store.Kind(kind), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its per-station counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("runs"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return eris.Errorf("run %s not found", args[0])
		}
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			return dataset.WriteYAML(cmd.OutOrStdout(), run)
		}
		return dataset.WriteJSON(cmd.OutOrStdout(), run)
	},
}

func init() {
	runsListCmd.Flags().String("kind", "", "filter by run kind (filter, counts, compare)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().Bool("yaml", false, "print YAML instead of JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []store.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tMETHOD\tRADIUS\tINCIDENTS\tSTATIONS\tMATCHED\tSIMILARITY\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t------\t---------\t--------\t-------\t----------\t-------")

	for _, r := range runs {
		sim := "-"
		if r.Similarity != nil {
			sim = fmt.Sprintf("%.2f%%", *r.Similarity)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%d\t%d\t%d\t%s\t%s\n",
			r.ID,
			r.Kind,
			r.Method,
			r.Radius,
			r.Incidents,
			r.Stations,
			r.Matched,
			sim,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

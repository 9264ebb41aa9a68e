package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trialsim/domain/core"
	"trialsim/domain/run"
	"trialsim/models"
)

func newRunsCmd(opts *options) *cobra.Command {
	var kind string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [RUN_ID]",
		Short: "List stored simulation runs or show one report",
		Long: `Without arguments, list the most recent runs. With a run ID, print that
run's stored report. Runs persist only when DATABASE_URL is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			if len(args) == 1 {
				id, err := core.ParseRunID(args[0])
				if err != nil {
					return err
				}
				r, err := c.Runs.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				return emit(cmd, opts, r, func(w io.Writer) {
					fmt.Fprint(w, r.Report)
				})
			}

			runs, err := c.Runs.ListRuns(cmd.Context(), run.Kind(kind), limit)
			if err != nil {
				return err
			}
			return emit(cmd, opts, runs, func(w io.Writer) {
				printRuns(w, runs)
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only list runs of this kind")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

func printRuns(w io.Writer, runs []*models.SimulationRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tkind\tseed\tduration\tcreated")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%dms\t%s\n", r.ID, r.Kind, r.Seed, r.DurationMS, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}

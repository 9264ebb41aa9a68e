package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"trialsim/adapters/excel"
	"trialsim/internal/testkit"
)

func newGenerateCmd() *cobra.Command {
	config := testkit.DefaultParticipantConfig()
	var out string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic participant-level data file",
		Long: `Generate one row per participant (id, site, arm, enrolment date, response)
with Bernoulli responses at the given true rates. The file can be read back
with "bayesian --data".`,
		Example: `  trialsim-cli generate --out participants.xlsx --control-n 120 --treatment-n 120
  trialsim-cli generate --out participants.csv --treatment-rate 0.5 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			participants, err := testkit.NewParticipantGenerator(config).Generate()
			if err != nil {
				return err
			}

			switch strings.ToLower(filepath.Ext(out)) {
			case ".xlsx":
				sheet := excel.Sheet{Name: "Participants", Headers: testkit.ParticipantHeaders}
				for _, p := range participants {
					sheet.Rows = append(sheet.Rows, p.Row())
				}
				err = excel.NewWriter().AddSheet(sheet).Save(out)
			case ".csv":
				err = writeParticipantsCSV(out, participants)
			default:
				return fmt.Errorf("unsupported output format %q (use .xlsx or .csv)", filepath.Ext(out))
			}
			if err != nil {
				return err
			}

			control, treatment := testkit.Count(participants)
			fmt.Fprintf(cmd.OutOrStdout(), "✅ wrote %d participants to %s (control %d/%d, treatment %d/%d)\n",
				len(participants), out, control.Successes, control.N(), treatment.Successes, treatment.N())
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "participants.xlsx", "Output file (.xlsx or .csv)")
	cmd.Flags().IntVar(&config.ControlN, "control-n", config.ControlN, "Control arm size")
	cmd.Flags().IntVar(&config.TreatmentN, "treatment-n", config.TreatmentN, "Treatment arm size")
	cmd.Flags().Float64Var(&config.ControlRate, "control-rate", config.ControlRate, "True control response rate")
	cmd.Flags().Float64Var(&config.TreatmentRate, "treatment-rate", config.TreatmentRate, "True treatment response rate")
	cmd.Flags().IntVar(&config.Sites, "sites", config.Sites, "Number of enrolling sites")
	cmd.Flags().Int64Var(&config.Seed, "seed", config.Seed, "Random seed for deterministic operations")
	return cmd
}

func writeParticipantsCSV(path string, participants []testkit.Participant) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(testkit.ParticipantHeaders); err != nil {
		return err
	}
	for _, p := range participants {
		row := p.Row()
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprint(v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"trialsim/adapters/excel"
	"trialsim/app"
	"trialsim/domain/trial"
)

func newBayesianCmd(opts *options) *cobra.Command {
	var (
		seed                   int64
		prior, data, xlsx      string
		controlN, treatmentN   int
		controlR, treatmentR   int
		samples                int
		level                  float64
		controlRate, treatRate float64
		simulate               bool
	)

	cmd := &cobra.Command{
		Use:   "bayesian",
		Short: "Beta-Binomial comparison of two arms",
		Long: `Update a preset Beta prior with observed responses in each arm and report
posterior summaries together with P(treatment better).

Counts come from flags, from a participant-level file (--data, xlsx or csv
with arm and response columns), or are simulated from true rates (--simulate).`,
		Example: `  trialsim-cli bayesian --control-n 50 --control-responses 12 --treatment-n 50 --treatment-responses 21
  trialsim-cli bayesian --data participants.xlsx --prior skeptical
  trialsim-cli bayesian --simulate --control-n 100 --treatment-n 100 --control-rate 0.3 --treatment-rate 0.45`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())
			svc := app.NewBayesianService(c.Deps())

			var result *app.BayesianResult
			switch {
			case simulate:
				result, err = svc.Simulate(cmd.Context(), app.BayesianSimulationRequest{
					Prior:         trial.PriorName(prior),
					ControlN:      controlN,
					TreatmentN:    treatmentN,
					ControlRate:   floatFlag(cmd, "control-rate", controlRate),
					TreatmentRate: floatFlag(cmd, "treatment-rate", treatRate),
					CredibleLevel: level,
					Samples:       samples,
					Seed:          seedFlag(cmd, seed),
				})
			default:
				req := app.BayesianRequest{
					Prior:              trial.PriorName(prior),
					ControlN:           controlN,
					ControlResponses:   controlR,
					TreatmentN:         treatmentN,
					TreatmentResponses: treatmentR,
					CredibleLevel:      level,
					Samples:            samples,
					Seed:               seedFlag(cmd, seed),
				}
				if data != "" {
					arms, err := excel.NewDataReader(data).ReadArmOutcomes()
					if err != nil {
						return err
					}
					req.ControlN, req.ControlResponses = arms.Control.N(), arms.Control.Successes
					req.TreatmentN, req.TreatmentResponses = arms.Treatment.N(), arms.Treatment.Successes
				}
				result, err = svc.Analyze(cmd.Context(), req)
			}
			if err != nil {
				return err
			}

			if err := saveWorkbook(cmd, xlsx, bayesianSheet(result)); err != nil {
				return err
			}
			return emit(cmd, opts, result, func(w io.Writer) {
				fmt.Fprint(w, app.RenderBayesianMarkdown(result))
			})
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic operations")
	cmd.Flags().StringVar(&prior, "prior", string(trial.PriorUniform), "Prior: uniform|weak|informative|skeptical")
	cmd.Flags().IntVar(&controlN, "control-n", 0, "Control arm size")
	cmd.Flags().IntVar(&controlR, "control-responses", 0, "Control arm responders")
	cmd.Flags().IntVar(&treatmentN, "treatment-n", 0, "Treatment arm size")
	cmd.Flags().IntVar(&treatmentR, "treatment-responses", 0, "Treatment arm responders")
	cmd.Flags().StringVar(&data, "data", "", "Participant-level xlsx/csv file with arm and response columns")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Simulate responses from --control-rate and --treatment-rate")
	cmd.Flags().Float64Var(&controlRate, "control-rate", app.DefaultControlRate, "True control response rate for --simulate")
	cmd.Flags().Float64Var(&treatRate, "treatment-rate", app.DefaultTreatmentRate, "True treatment response rate for --simulate")
	cmd.Flags().Float64Var(&level, "level", 0, "Credible level (default from configuration)")
	cmd.Flags().IntVar(&samples, "samples", 0, "Monte Carlo draws (default from configuration)")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "Also write the summary to this Excel file")
	cmd.MarkFlagsMutuallyExclusive("data", "simulate")
	return cmd
}

func bayesianSheet(r *app.BayesianResult) excel.Sheet {
	return excel.KeyValueSheet("Posterior", [][2]interface{}{
		{"Run", string(r.RunID)},
		{"Seed", r.Seed},
		{"Prior", string(r.Prior.Name)},
		{"Control responders", r.Control.Observed.Successes},
		{"Control N", r.Control.Observed.N()},
		{"Control posterior mean", r.Control.Mean},
		{"Control interval lower", r.Control.Interval.Lower},
		{"Control interval upper", r.Control.Interval.Upper},
		{"Treatment responders", r.Treatment.Observed.Successes},
		{"Treatment N", r.Treatment.Observed.N()},
		{"Treatment posterior mean", r.Treatment.Mean},
		{"Treatment interval lower", r.Treatment.Interval.Lower},
		{"Treatment interval upper", r.Treatment.Interval.Upper},
		{"P(treatment better)", r.ProbabilityTreatmentBetter},
		{"Monte Carlo std error", r.MonteCarloStdError},
	})
}

func newAdaptiveCmd(opts *options) *cobra.Command {
	var (
		seed                   int64
		controlRate, treatRate float64
		tuning                 float64
		totalN, recordEvery    int
		samples                int
		replicates, workers    int
		xlsx                   string
	)

	cmd := &cobra.Command{
		Use:   "adaptive",
		Short: "Simulate a response-adaptive randomized trial",
		Long: `Enrol participants one at a time, allocating each to treatment with the
tempered posterior probability that treatment is better.

With --replicates the trial is repeated independently and the distribution
of its operating characteristics is reported instead of one trajectory.`,
		Example: `  trialsim-cli adaptive --n 200 --tuning 0.5
  trialsim-cli adaptive --replicates 500 --samples 1000 --xlsx replicates.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())
			svc := app.NewAdaptiveService(c.Deps())

			req := app.AdaptiveRequest{
				ControlRate:   floatFlag(cmd, "control-rate", controlRate),
				TreatmentRate: floatFlag(cmd, "treatment-rate", treatRate),
				TotalN:        totalN,
				Tuning:        floatFlag(cmd, "tuning", tuning),
				RecordEvery:   recordEvery,
				Samples:       samples,
				Seed:          seedFlag(cmd, seed),
			}

			if cmd.Flags().Changed("replicates") {
				result, err := svc.Replicate(cmd.Context(), app.ReplicateRequest{
					AdaptiveRequest: req,
					Replicates:      replicates,
					Concurrency:     workers,
				})
				if err != nil {
					return err
				}
				if err := saveWorkbook(cmd, xlsx, replicateSheet(result)); err != nil {
					return err
				}
				result.Runs = nil
				return emit(cmd, opts, result, func(w io.Writer) {
					fmt.Fprint(w, app.RenderReplicateMarkdown(result))
				})
			}

			result, err := svc.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := saveWorkbook(cmd, xlsx, excel.TrajectorySheet(result.Trajectory)); err != nil {
				return err
			}
			return emit(cmd, opts, result, func(w io.Writer) {
				fmt.Fprint(w, app.RenderAdaptiveMarkdown(result))
			})
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic operations")
	cmd.Flags().Float64Var(&controlRate, "control-rate", app.DefaultControlRate, "True control response rate")
	cmd.Flags().Float64Var(&treatRate, "treatment-rate", app.DefaultTreatmentRate, "True treatment response rate")
	cmd.Flags().Float64Var(&tuning, "tuning", 0.5, "Allocation tuning parameter in [0, 1]")
	cmd.Flags().IntVar(&totalN, "n", 0, "Participants to enrol")
	cmd.Flags().IntVar(&recordEvery, "record-every", 0, "Record the trajectory every k participants")
	cmd.Flags().IntVar(&samples, "samples", 0, "Monte Carlo draws per allocation (default from configuration)")
	cmd.Flags().IntVar(&replicates, "replicates", 0, "Repeat the trial this many times and summarise")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent replicates (default from configuration)")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "Also write the trajectory or replicate summary to this Excel file")
	return cmd
}

func replicateSheet(r *app.ReplicateResult) excel.Sheet {
	s := excel.Sheet{Name: "Replicates", Headers: []string{"Quantity", "Mean", "Std dev", "P05", "Median", "P95"}}
	add := func(name string, d app.Distribution) {
		s.Rows = append(s.Rows, []interface{}{name, d.Mean, d.StdDev, d.P05, d.Median, d.P95})
	}
	add("Treatment share", r.TreatmentShare)
	add("Final allocation probability", r.FinalAllocation)
	add("Observed difference", r.ObservedDifference)
	add("Total responses", r.TotalResponses)
	return s
}

func newInterimCmd(opts *options) *cobra.Command {
	var (
		seed                   int64
		targetN, analyses      int
		controlRate, treatRate float64
		boundary, xlsx         string
		alpha                  float64
		stop                   bool
	)

	cmd := &cobra.Command{
		Use:   "interim",
		Short: "Simulate a group-sequential trial with interim looks",
		Example: `  trialsim-cli interim --n 400 --analyses 4 --boundary pocock
  trialsim-cli interim --stop --xlsx looks.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			result, err := app.NewInterimService(c.Deps()).Run(cmd.Context(), app.InterimRequest{
				TargetN:        targetN,
				Analyses:       analyses,
				ControlRate:    floatFlag(cmd, "control-rate", controlRate),
				TreatmentRate:  floatFlag(cmd, "treatment-rate", treatRate),
				Boundary:       trial.BoundaryFamily(boundary),
				Alpha:          alpha,
				StopAtBoundary: stop,
				Seed:           seedFlag(cmd, seed),
			})
			if err != nil {
				return err
			}

			if err := saveWorkbook(cmd, xlsx, excel.InterimSheet(result.Looks)); err != nil {
				return err
			}
			return emit(cmd, opts, result, func(w io.Writer) {
				fmt.Fprint(w, app.RenderInterimMarkdown(result))
			})
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic operations")
	cmd.Flags().IntVar(&targetN, "n", 0, "Target total sample size")
	cmd.Flags().IntVar(&analyses, "analyses", 0, "Number of looks including the final one")
	cmd.Flags().Float64Var(&controlRate, "control-rate", app.DefaultInterimControlRate, "True control response rate")
	cmd.Flags().Float64Var(&treatRate, "treatment-rate", app.DefaultInterimTreatmentRate, "True treatment response rate")
	cmd.Flags().StringVar(&boundary, "boundary", "", "Boundary family: obrien-fleming|pocock")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Two-sided significance level (default from configuration)")
	cmd.Flags().BoolVar(&stop, "stop", false, "Stop at the first look that crosses a boundary")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "Also write the looks to this Excel file")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trialsim/adapters/excel"
	"trialsim/adapters/rng"
	"trialsim/adapters/stats/engine"
	"trialsim/app"
	"trialsim/domain/trial"
)

func newBetaCmd(opts *options) *cobra.Command {
	var level float64

	cmd := &cobra.Command{
		Use:   "beta ALPHA BETA",
		Short: "Summarise a Beta distribution",
		Long: `Print the mean, variance and central credible interval of Beta(ALPHA, BETA).
The normal-approximation interval is shown next to the exact one.

Example: trialsim-cli beta 20 80 --level 0.95`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseFloats(args)
			if err != nil {
				return err
			}
			a, b := v[0], v[1]
			mean, err := engine.Mean(a, b)
			if err != nil {
				return err
			}
			variance, err := engine.Variance(a, b)
			if err != nil {
				return err
			}
			approx, err := engine.CredibleInterval(a, b, level)
			if err != nil {
				return err
			}
			exact, err := engine.ExactCredibleInterval(a, b, level)
			if err != nil {
				return err
			}

			result := map[string]interface{}{
				"alpha": a, "beta": b, "mean": mean, "variance": variance,
				"level": level, "interval": approx, "exact_interval": exact,
			}
			return emit(cmd, opts, result, func(w io.Writer) {
				fmt.Fprintf(w, "Beta(%g, %g)\n", a, b)
				fmt.Fprintf(w, "  mean      %.4f\n", mean)
				fmt.Fprintf(w, "  variance  %.6f\n", variance)
				fmt.Fprintf(w, "  %.0f%% CrI  [%.4f, %.4f] (normal approximation)\n", level*100, approx.Lower, approx.Upper)
				fmt.Fprintf(w, "  %.0f%% CrI  [%.4f, %.4f] (exact)\n", level*100, exact.Lower, exact.Upper)
			})
		},
	}

	cmd.Flags().Float64Var(&level, "level", 0.95, "Credible level")
	return cmd
}

func newCompareCmd(opts *options) *cobra.Command {
	var seed int64
	var samples, workers int

	cmd := &cobra.Command{
		Use:   "compare CONTROL_ALPHA CONTROL_BETA TREATMENT_ALPHA TREATMENT_BETA",
		Short: "Estimate P(treatment rate > control rate) by Monte Carlo",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseFloats(args)
			if err != nil {
				return err
			}
			control := trial.BetaParams{Alpha: v[0], Beta: v[1]}
			treatment := trial.BetaParams{Alpha: v[2], Beta: v[3]}

			p, err := engine.ProbabilityTreatmentBetterParallel(cmd.Context(), seed, control, treatment, samples, workers)
			if err != nil {
				return err
			}
			se := engine.MonteCarloStdError(p, samples)
			result := map[string]interface{}{"probability_treatment_better": p, "monte_carlo_std_error": se, "samples": samples, "seed": seed}
			return emit(cmd, opts, result, func(w io.Writer) {
				fmt.Fprintf(w, "P(treatment better) = %.4f ± %.4f (%d draws, seed %d)\n", p, se, samples, seed)
			})
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic operations")
	cmd.Flags().IntVar(&samples, "samples", engine.DefaultSamples, "Monte Carlo draws")
	cmd.Flags().IntVar(&workers, "workers", 4, "Parallel workers")
	return cmd
}

func newAllocateCmd(opts *options) *cobra.Command {
	var seed int64
	var samples int
	var tuning float64

	cmd := &cobra.Command{
		Use:   "allocate CONTROL_ALPHA CONTROL_BETA TREATMENT_ALPHA TREATMENT_BETA",
		Short: "Response-adaptive allocation probability for the next participant",
		Long: `Probability of allocating the next participant to treatment, p^t / (p^t + (1-p)^t)
where p = P(treatment better) and t is the tuning parameter.

Example: trialsim-cli allocate 5 5 9 3 --tuning 0.5`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseFloats(args)
			if err != nil {
				return err
			}
			src, err := rng.New().SeededStream(cmd.Context(), "allocation", seed)
			if err != nil {
				return err
			}
			p, err := engine.AdaptiveAllocationProbabilityN(src,
				trial.BetaParams{Alpha: v[0], Beta: v[1]}, trial.BetaParams{Alpha: v[2], Beta: v[3]}, tuning, samples)
			if err != nil {
				return err
			}
			result := map[string]interface{}{"allocation_probability": p, "tuning": tuning, "seed": seed}
			return emit(cmd, opts, result, func(w io.Writer) {
				fmt.Fprintf(w, "P(allocate to treatment) = %.4f (tuning %.2f)\n", p, tuning)
			})
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic operations")
	cmd.Flags().IntVar(&samples, "samples", engine.DefaultSamples, "Monte Carlo draws")
	cmd.Flags().Float64Var(&tuning, "tuning", 0.5, "Tuning parameter in [0, 1]")
	return cmd
}

func newBoundsCmd(opts *options) *cobra.Command {
	var family string
	var analyses int
	var alpha float64
	var xlsx string

	cmd := &cobra.Command{
		Use:   "bounds",
		Short: "Group-sequential efficacy bounds and alpha spending",
		Example: `  trialsim-cli bounds --family obrien-fleming --analyses 4
  trialsim-cli bounds --family pocock --analyses 3 --xlsx bounds.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := app.BoundsTable(trial.BoundaryFamily(family), analyses, alpha)
			if err != nil {
				return err
			}

			sheet := excel.Sheet{Name: "Bounds", Headers: []string{"Analysis", "Information fraction", "Efficacy bound", "Alpha spent"}}
			for _, r := range rows {
				sheet.Rows = append(sheet.Rows, []interface{}{r.Analysis, r.InformationFraction, r.EfficacyBound, r.AlphaSpent})
			}
			if err := saveWorkbook(cmd, xlsx, sheet); err != nil {
				return err
			}

			return emit(cmd, opts, rows, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "look\tinfo\tbound\talpha spent")
				for _, r := range rows {
					fmt.Fprintln(tw, r.String())
				}
				tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&family, "family", string(trial.BoundaryOBrienFleming), "Boundary family: obrien-fleming|pocock")
	cmd.Flags().IntVar(&analyses, "analyses", 3, "Number of equally spaced analyses")
	cmd.Flags().Float64Var(&alpha, "alpha", 0.05, "Two-sided significance level")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "Also write the table to this Excel file")
	return cmd
}

func newPowerCmd(opts *options) *cobra.Command {
	var critical, alpha, effect float64

	cmd := &cobra.Command{
		Use:   "power Z INFORMATION_FRACTION",
		Short: "Conditional power at an interim look",
		Long: `Conditional power of crossing the final critical value given the current Z
statistic. By default the observed trend is assumed to continue; --effect
fixes the drift instead.

Example: trialsim-cli power 1.4 0.5 --alpha 0.05`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseFloats(args)
			if err != nil {
				return err
			}
			crit := critical
			if !cmd.Flags().Changed("critical") {
				if crit, err = engine.InverseNormalCDF(1 - alpha/2); err != nil {
					return err
				}
			}
			drift := trial.CurrentTrend()
			if cmd.Flags().Changed("effect") {
				drift = trial.AssumedEffect(effect)
			}

			cp, err := engine.ConditionalPower(v[0], v[1], crit, drift)
			if err != nil {
				return err
			}
			result := map[string]interface{}{"conditional_power": cp, "critical_value": crit, "drift": drift}
			return emit(cmd, opts, result, func(w io.Writer) {
				fmt.Fprintf(w, "Conditional power = %.2f%% (critical value %.3f, %s drift)\n", cp*100, crit, drift.Mode)
			})
		},
	}

	cmd.Flags().Float64Var(&critical, "critical", 0, "Final critical value (default Φ⁻¹(1-alpha/2))")
	cmd.Flags().Float64Var(&alpha, "alpha", 0.05, "Two-sided significance level")
	cmd.Flags().Float64Var(&effect, "effect", 0, "Assumed drift instead of the current trend")
	return cmd
}

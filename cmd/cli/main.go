package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"trialsim/adapters/excel"
	"trialsim/internal/config"
	"trialsim/internal/container"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options are the persistent flags shared by every command.
type options struct {
	json bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "trialsim-cli",
		Short:         "Bayesian and group-sequential clinical trial simulations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newBetaCmd(opts),
		newCompareCmd(opts),
		newAllocateCmd(opts),
		newBoundsCmd(opts),
		newPowerCmd(opts),
		newBayesianCmd(opts),
		newAdaptiveCmd(opts),
		newInterimCmd(opts),
		newRunsCmd(opts),
		newGenerateCmd(),
	)
	return rootCmd
}

// openContainer loads configuration from the environment and wires storage.
func openContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return container.Open(ctx, cfg)
}

// emit prints v as JSON when --json is set and calls text otherwise.
func emit(cmd *cobra.Command, opts *options, v interface{}, text func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}

// seedFlag returns nil when --seed was not given so the configured default applies.
func seedFlag(cmd *cobra.Command, seed int64) *int64 {
	if !cmd.Flags().Changed("seed") {
		return nil
	}
	return &seed
}

func floatFlag(cmd *cobra.Command, name string, v float64) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%q) is not a number", i+1, a)
		}
		out[i] = v
	}
	return out, nil
}

func saveWorkbook(cmd *cobra.Command, path string, sheets ...excel.Sheet) error {
	if path == "" {
		return nil
	}
	w := excel.NewWriter()
	for _, s := range sheets {
		w.AddSheet(s)
	}
	if err := w.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "📄 wrote %s\n", path)
	return nil
}

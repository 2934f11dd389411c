package cmd

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CraigKelly/greta/sampler"
)

// startupParams collects the flags shared by every command
type startupParams struct {
	cfgFile     string
	verbose     bool
	logFormat   string
	modelFile   string
	traceFile   string
	monitorAddr string
	randomSeed  int64
	seedSet     bool

	out    *log.Logger  // results for the user
	trace  io.Writer    // trace output, nil unless traceFile is set
	logger *slog.Logger // diagnostics
}

var sp = &startupParams{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "greta",
	Short: "Bayesian models as array graphs, sampled with HMC",
	Long: `greta fits Bayesian models described as graphs of arrays.
Among other features:

  - Models read from YAML files (with whitespace separated data files)
  - Hamiltonian Monte Carlo with step size and mass matrix adaptation
  - Ctrl-C keeps the draws collected so far
  - Prometheus metrics while sampling
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		sp.seedSet = cmd.Flags().Changed("seed")
		return sp.setup(os.Stdout, os.Stderr)
	},
}

// newLogger builds the diagnostic logger from the verbose and format flags
func newLogger(verbose bool, format string, w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, errors.Errorf("Unknown log format %q (use text or json)", format)
}

func (sp *startupParams) setup(stdout, stderr io.Writer) error {
	logger, err := newLogger(sp.verbose, sp.logFormat, stderr)
	if err != nil {
		return err
	}
	sp.logger = logger
	sp.out = log.New(stdout, "", 0)
	return nil
}

// samplerConfig loads the config file if given and applies flag overrides
func (sp *startupParams) samplerConfig() (sampler.Config, error) {
	cfg := sampler.DefaultConfig()
	if len(sp.cfgFile) > 0 {
		var err error
		cfg, err = sampler.LoadConfig(sp.cfgFile)
		if err != nil {
			return cfg, err
		}
	}
	if sp.seedSet {
		cfg.Seed = sp.randomSeed
	}
	cfg.Logger = sp.logger
	return cfg, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&sp.cfgFile, "config", "c", "", "sampler config file (YAML)")
	pf.BoolVarP(&sp.verbose, "verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	pf.StringVar(&sp.logFormat, "log-format", "text", "Log format: text or json")
	pf.StringVarP(&sp.modelFile, "model", "m", "", "YAML model file to read")
	pf.StringVarP(&sp.traceFile, "trace", "t", "", "File for trace output")
	pf.Int64VarP(&sp.randomSeed, "seed", "r", 1, "Random seed to use (overrides the config file)")

	rootCmd.MarkPersistentFlagRequired("model")

	rootCmd.AddCommand(newSampleCmd(), newDotCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

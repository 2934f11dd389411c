package cmd

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/CraigKelly/greta/model"
	"github.com/CraigKelly/greta/sampler"
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw posterior samples from a model with HMC",
		Long: `Compile the model and run warmup and sampling. A parameter summary is
printed and, with --trace, every draw is written as CSV. Interrupting the
run (Ctrl-C) keeps the draws collected so far.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return SampleModel(sp)
		},
	}
	cmd.Flags().StringVar(&sp.monitorAddr, "monitor", "", "Serve Prometheus metrics on this address (e.g. :8000)")
	return cmd
}

func loadModel(sp *startupParams) (*model.Model, error) {
	sp.logger.Info("reading model", "file", sp.modelFile)
	reader := model.YAMLReader{Dir: filepath.Dir(sp.modelFile)}
	mod, err := model.NewModelFromFile(reader, sp.modelFile)
	if err != nil {
		return nil, err
	}
	sp.logger.Info("model compiled", "name", mod.Name, "params", mod.Dim(), "targets", len(mod.Targets()))
	return mod, nil
}

// SampleModel reads, compiles and samples the model named in sp
func SampleModel(sp *startupParams) error {
	mod, err := loadModel(sp)
	if err != nil {
		return err
	}

	cfg, err := sp.samplerConfig()
	if err != nil {
		return err
	}

	if len(sp.monitorAddr) > 0 {
		reg := prometheus.NewRegistry()
		cfg.Metrics = sampler.NewMetrics(reg)
		mon := &monitor{log: sp.logger}
		if err := mon.Start(sp.monitorAddr, reg); err != nil {
			return err
		}
		defer mon.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	samp, err := sampler.New(mod, cfg, nil)
	if err != nil {
		return err
	}

	draws, err := samp.Run(ctx)
	if err != nil {
		if !errors.Is(err, sampler.ErrInterrupted) || draws == nil {
			return err
		}
		sp.logger.Warn("reporting the draws collected before the interrupt", "draws", draws.Len())
	}

	sp.out.Printf("Model %s: %d draws, step size %.4g, accept rate %.3f, %d divergent\n",
		mod.Name, draws.Len(), draws.StepSize, draws.AcceptRate(), draws.Divergences())
	if err := writeSummary(sp.out.Writer(), draws); err != nil {
		return err
	}

	if len(sp.traceFile) > 0 {
		if err := writeTraceFile(sp.traceFile, draws); err != nil {
			return err
		}
		sp.logger.Info("trace written", "file", sp.traceFile)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// writeSummary renders the per parameter summary as a table
func writeSummary(w io.Writer, draws *sampler.Draws) error {
	summary := draws.Summary()
	if summary == nil {
		_, err := io.WriteString(w, "No draws to summarize\n")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"param", "mean", "sd", "2.5%", "50%", "97.5%"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, s := range summary {
		table.Append([]string{
			s.Name,
			formatFloat(s.Mean),
			formatFloat(s.SD),
			formatFloat(s.Lower),
			formatFloat(s.Median),
			formatFloat(s.Upper),
		})
	}
	table.Render()
	return nil
}

// writeTrace writes one CSV row per draw with the diagnostics after the
// parameter columns
func writeTrace(w io.Writer, draws *sampler.Draws) error {
	cw := csv.NewWriter(w)

	header := append([]string{"iteration"}, draws.Names...)
	header = append(header, "log_density", "accept_prob", "accepted", "divergent")
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, row := range draws.Values {
		rec := make([]string, 0, len(header))
		rec = append(rec, strconv.Itoa(i+1))
		for _, v := range row {
			rec = append(rec, formatFloat(v))
		}
		rec = append(rec,
			formatFloat(draws.LogDensity[i]),
			formatFloat(draws.AcceptProb[i]),
			strconv.FormatBool(draws.Accepted[i]),
			strconv.FormatBool(draws.Divergent[i]),
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeTraceFile(filename string, draws *sampler.Draws) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "Could not CREATE trace file %s", filename)
	}
	if err := writeTrace(f, draws); err != nil {
		f.Close()
		return errors.Wrapf(err, "Could not WRITE trace file %s", filename)
	}
	return f.Close()
}

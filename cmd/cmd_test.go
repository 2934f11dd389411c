package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CraigKelly/greta/model"
	"github.com/CraigKelly/greta/sampler"
)

const normalYAML = `
targets: [mu]
nodes:
  - name: y
    data: [4.5, 5.5, 5.0]
  - name: mu
    distribution: {family: normal, params: [0, 10]}
  - observe: y
    distribution: {family: normal, params: [mu, 1]}
`

func testParams(t *testing.T) (*startupParams, *bytes.Buffer) {
	dir := t.TempDir()
	modelFile := filepath.Join(dir, "normal.yaml")
	require.NoError(t, os.WriteFile(modelFile, []byte(normalYAML), 0o644))
	cfgFile := filepath.Join(dir, "hmc.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("warmup: 50\nsamples: 100\n"), 0o644))

	var out bytes.Buffer
	p := &startupParams{
		cfgFile:   cfgFile,
		modelFile: modelFile,
		logFormat: "text",
	}
	require.NoError(t, p.setup(&out, io.Discard))
	return p, &out
}

func TestNewLogger(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	logger, err := newLogger(false, "json", &buf)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown", "k", 1)
	assert.NotContains(buf.String(), "hidden")
	assert.Contains(buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger, err = newLogger(true, "text", &buf)
	require.NoError(t, err)
	logger.Debug("detail")
	assert.Contains(buf.String(), "msg=detail")

	_, err = newLogger(false, "xml", &buf)
	assert.Error(err)
}

func TestSamplerConfigOverrides(t *testing.T) {
	assert := assert.New(t)

	p, _ := testParams(t)
	cfg, err := p.samplerConfig()
	require.NoError(t, err)
	assert.Equal(50, cfg.Warmup)
	assert.Equal(int64(1), cfg.Seed)
	assert.NotNil(cfg.Logger)

	p.seedSet = true
	p.randomSeed = 99
	cfg, err = p.samplerConfig()
	require.NoError(t, err)
	assert.Equal(int64(99), cfg.Seed)

	p.cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = p.samplerConfig()
	assert.Error(err)
}

func TestSampleModel(t *testing.T) {
	assert := assert.New(t)

	p, out := testParams(t)
	p.traceFile = filepath.Join(t.TempDir(), "trace.csv")
	require.NoError(t, SampleModel(p))

	assert.Contains(out.String(), "Model normal: 100 draws")
	assert.Contains(out.String(), "97.5%")

	f, err := os.Open(p.traceFile)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 101)
	assert.Equal([]string{"iteration", "mu", "log_density", "accept_prob", "accepted", "divergent"}, records[0])
	assert.Equal("1", records[1][0])

	p.modelFile = filepath.Join(t.TempDir(), "missing.yaml")
	assert.Error(SampleModel(p))
}

func TestWriteTraceAndSummary(t *testing.T) {
	assert := assert.New(t)

	g := model.NewGraph()
	d, err := g.Normal(0, 1)
	require.NoError(t, err)
	x, err := d.NewVariable()
	require.NoError(t, err)
	m, err := model.Compile(g, x)
	require.NoError(t, err)

	cfg := sampler.DefaultConfig()
	cfg.Warmup = 10
	cfg.Samples = 0
	s, err := sampler.New(m, cfg, nil)
	require.NoError(t, err)
	draws, err := s.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, draws))
	assert.Equal("No draws to summarize\n", buf.String())

	buf.Reset()
	require.NoError(t, writeTrace(&buf, draws))
	assert.Equal(1, strings.Count(buf.String(), "\n"))
}

func TestDotOutput(t *testing.T) {
	assert := assert.New(t)

	p, out := testParams(t)
	require.NoError(t, DotOutput(p))

	dot := out.String()
	assert.True(strings.HasPrefix(dot, `digraph "normal" {`))
	assert.Contains(dot, "->")
	assert.Contains(dot, "[style=dashed]")
	assert.Contains(dot, "penwidth=2")
	assert.True(strings.HasSuffix(dot, "}\n"))

	p.traceFile = filepath.Join(t.TempDir(), "model.dot")
	require.NoError(t, DotOutput(p))
	written, err := os.ReadFile(p.traceFile)
	require.NoError(t, err)
	assert.Equal(dot, string(written))
}

func TestMonitor(t *testing.T) {
	assert := assert.New(t)

	reg := prometheus.NewRegistry()
	metrics := sampler.NewMetrics(reg)
	metrics.StepSize.Set(0.25)

	p, _ := testParams(t)
	mon := &monitor{log: p.logger}
	require.NoError(t, mon.Start("127.0.0.1:0", reg))
	defer mon.Stop()
	assert.Error(mon.Start("127.0.0.1:0", reg))

	resp, err := http.Get("http://" + mon.addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Contains(string(body), "greta_hmc_step_size 0.25")
}

package cmd

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// monitor serves sampler metrics over HTTP while a run is in progress
type monitor struct {
	log     *slog.Logger
	stopped chan struct{}
	server  *http.Server
	addr    string // actual listen address once started
}

// Start begins serving reg on addr at /metrics
func (m *monitor) Start(addr string, reg *prometheus.Registry) error {
	if m.server != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "Could not LISTEN on %s", addr)
	}
	m.addr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	// Help the user and redirect to the only thing currently available
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/metrics", http.StatusTemporaryRedirect)
	})

	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		defer close(m.stopped)
		if err := m.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			m.log.Error("metrics server failed", "error", err)
		}
	}()

	m.log.Info("metrics available", "url", "http://"+m.addr+"/metrics")
	return nil
}

// Stop closes the server, waiting briefly for it to exit
func (m *monitor) Stop() {
	if m.server == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		m.log.Debug("metrics server stopped")
	case <-time.After(2 * time.Second):
		m.log.Warn("metrics server would NOT stop: just continuing on")
	}
}

package sampler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/CraigKelly/greta/buffer"
	"github.com/CraigKelly/greta/model"
	"github.com/CraigKelly/greta/rand"
)

// Sampler errors. Rejections and divergences are diagnostics, not errors.
var (
	ErrNumericalInstability = errors.New("Numerical instability")
	ErrInterrupted          = errors.New("Sampling interrupted")
)

// Target is a differentiable log density over an unconstrained space. A
// compiled *model.Model is a Target.
type Target interface {
	Dim() int
	ParamNames() []string
	LogDensity(theta []float64) (float64, []float64, error)
	Constrain(theta []float64) ([]float64, error)
	Unconstrain(x []float64) ([]float64, error)
	InitialValues(src model.Source) []float64
}

// Phase of a sampling run
type Phase int

// Run phases. Interrupted is reachable from Warmup and Sampling.
const (
	Idle Phase = iota
	Warmup
	Sampling
	Done
	Interrupted
)

func (p Phase) String() string {
	switch p {
	case Warmup:
		return "warmup"
	case Sampling:
		return "sampling"
	case Done:
		return "done"
	case Interrupted:
		return "interrupted"
	}
	return "idle"
}

// Sampler is a single chain Hamiltonian Monte Carlo sampler. Run is
// sequential; Stashed and Phase may be called from other goroutines while it
// runs.
type Sampler struct {
	target Target
	cfg    Config
	gen    *rand.Generator
	log    *slog.Logger

	mu            sync.RWMutex
	phase         Phase
	interruptedIn Phase
	draws         *Draws
}

// New validates the configuration. A nil gen is created from cfg.Seed.
func New(target Target, cfg Config, gen *rand.Generator) (*Sampler, error) {
	if target == nil {
		return nil, errors.Errorf("No target supplied")
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if cfg.InvMass != nil && len(cfg.InvMass) != target.Dim() {
		return nil, errors.Errorf("InvMass has %d entries for %d parameters", len(cfg.InvMass), target.Dim())
	}
	if cfg.Initial != nil && len(cfg.Initial) != target.Dim() {
		return nil, errors.Errorf("Initial has %d entries for %d parameters", len(cfg.Initial), target.Dim())
	}

	if gen == nil {
		var err error
		gen, err = rand.NewGenerator(cfg.Seed)
		if err != nil {
			return nil, err
		}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Sampler{
		target: target,
		cfg:    cfg,
		gen:    gen,
		log:    log,
	}, nil
}

// Phase reports where the sampler is
func (s *Sampler) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *Sampler) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

// Stashed returns a copy of the sampling draws completed so far. It is nil
// until at least one sampling iteration has finished, and stays nil for a
// run interrupted during warmup.
func (s *Sampler) Stashed() *Draws {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.draws == nil || s.draws.Len() < 1 {
		return nil
	}
	return s.draws.prefix(s.draws.Len())
}

func (s *Sampler) interrupt(log *slog.Logger, cause error) (*Draws, error) {
	s.mu.Lock()
	s.interruptedIn = s.phase
	s.phase = Interrupted
	s.mu.Unlock()

	stashed := s.Stashed()
	n := 0
	if stashed != nil {
		n = stashed.Len()
	}
	log.Warn("sampling interrupted", "during", s.interruptedIn.String(), "draws", n)
	return stashed, errors.Wrapf(ErrInterrupted, "%v during %s", cause, s.interruptedIn)
}

// initialPoint uses the configured values or tries random starting points
// until the density and gradient are finite
func (s *Sampler) initialPoint() (point, error) {
	if s.cfg.Initial != nil {
		theta, err := s.target.Unconstrain(s.cfg.Initial)
		if err != nil {
			return point{}, errors.Wrapf(err, "Bad initial values")
		}
		lp, grad, err := s.target.LogDensity(theta)
		if err != nil {
			return point{}, err
		}
		if !finitePoint(lp, grad) {
			return point{}, errors.Wrapf(ErrNumericalInstability, "Log density is not finite at the initial values")
		}
		return point{theta: theta, lp: lp, grad: grad}, nil
	}

	for try := 0; try < s.cfg.InitTries; try++ {
		theta := s.target.InitialValues(s.gen)
		lp, grad, err := s.target.LogDensity(theta)
		if err != nil {
			return point{}, err
		}
		if finitePoint(lp, grad) {
			return point{theta: theta, lp: lp, grad: grad}, nil
		}
	}
	return point{}, errors.Wrapf(ErrNumericalInstability, "No finite starting point in %d tries", s.cfg.InitTries)
}

// Run performs warmup then sampling and returns the sampling draws. When ctx
// is cancelled the run stops between iterations and returns the stashed
// draws (nil during warmup) with an error wrapping ErrInterrupted.
func (s *Sampler) Run(ctx context.Context) (*Draws, error) {
	s.mu.Lock()
	s.phase = Idle
	s.draws = nil
	s.mu.Unlock()

	runID := uuid.NewString()
	log := s.log.With("run", runID)
	cfg := s.cfg
	dim := s.target.Dim()

	cur, err := s.initialPoint()
	if err != nil {
		return nil, err
	}

	invMass := append([]float64(nil), cfg.InvMass...)
	if len(invMass) == 0 {
		invMass = make([]float64, dim)
		for i := range invMass {
			invMass[i] = 1
		}
	}
	eps := cfg.StepSize

	log.Info("sampling started", "params", dim, "warmup", cfg.Warmup, "samples", cfg.Samples, "step_size", eps)
	progress := rate.NewLimiter(rate.Every(2*time.Second), 1)
	failures := 0

	// record applies the bookkeeping common to both phases
	record := func(phase Phase, i, total int, tr transition, eps float64) error {
		if tr.nonFinite {
			failures++
			if failures >= cfg.FailureWindow {
				return errors.Wrapf(ErrNumericalInstability, "%d consecutive non-finite proposals during %s", failures, phase)
			}
		} else {
			failures = 0
		}
		if tr.divergent {
			log.Debug("divergent transition", "phase", phase.String(), "iteration", i+1, "step_size", eps)
		}
		cfg.Metrics.observe(phase, tr, eps)
		if progress.Allow() {
			log.Info("sampling progress", "phase", phase.String(), "iteration", i+1, "of", total, "step_size", eps, "log_density", tr.lp)
		}
		if cfg.Progress != nil {
			cfg.Progress(Progress{
				Phase:     phase,
				Iteration: i + 1,
				Total:     total,
				Accepted:  tr.accepted,
				Divergent: tr.divergent,
			})
		}
		return nil
	}

	// warmup
	s.setPhase(Warmup)
	adapter := newStepSizeAdapter(eps, cfg.TargetAccept)
	estimator := newVarianceEstimator(dim)
	winStart, winEnd := massWindow(cfg.Warmup)
	driftSize := cfg.DriftWindow
	if driftSize > cfg.Warmup {
		driftSize = cfg.Warmup
	}
	drift := buffer.NewCircularFloat(driftSize)

	for i := 0; i < cfg.Warmup; i++ {
		if err := ctx.Err(); err != nil {
			return s.interrupt(log, err)
		}

		tr, err := s.step(cur, eps, invMass)
		if err != nil {
			return nil, errors.Wrapf(err, "Warmup iteration %d", i+1)
		}
		cur = tr.next
		stepUsed := eps
		eps = adapter.update(tr.acceptProb)

		if i >= winStart && i < winEnd {
			estimator.add(cur.theta)
			if i == winEnd-1 && estimator.n >= 3 {
				invMass = estimator.variance()
				adapter.restart(eps)
				log.Debug("mass matrix updated", "window", estimator.n, "inv_mass", invMass)
			}
		}
		drift.Add(cur.lp)

		if err := record(Warmup, i, cfg.Warmup, tr, stepUsed); err != nil {
			return nil, err
		}
	}
	if cfg.Warmup > 0 {
		eps = adapter.final()
	}

	draws := newDraws(runID, s.target.ParamNames(), cfg.Samples)
	draws.StepSize = eps
	draws.InvMass = append([]float64(nil), invMass...)
	if first, second, ok := drift.HalfMeans(); ok {
		draws.WarmupDrift = second - first
	}
	log.Info("warmup finished", "step_size", eps, "drift", draws.WarmupDrift)

	// sampling
	s.mu.Lock()
	s.phase = Sampling
	s.draws = draws
	s.mu.Unlock()

	for i := 0; i < cfg.Samples; i++ {
		if err := ctx.Err(); err != nil {
			return s.interrupt(log, err)
		}

		tr, err := s.step(cur, eps, invMass)
		if err != nil {
			return nil, errors.Wrapf(err, "Sampling iteration %d", i+1)
		}
		cur = tr.next

		x, err := s.target.Constrain(cur.theta)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		draws.append(x, cur.lp, tr.acceptProb, tr.accepted, tr.divergent)
		s.mu.Unlock()

		if err := record(Sampling, i, cfg.Samples, tr, eps); err != nil {
			return nil, err
		}
	}

	s.setPhase(Done)

	s.mu.RLock()
	result := draws.prefix(draws.Len())
	s.mu.RUnlock()
	log.Info("sampling finished", "draws", result.Len(), "accept_rate", result.AcceptRate(), "divergences", result.Divergences())
	return result, nil
}

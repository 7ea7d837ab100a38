// Package supervisor owns the lifecycle of every running pipeline and
// storage sink, and the process-level shutdown sequence (spec.md §4.8).
// Grounded on the teacher's pkg/shutdown.Shutdown: signal-triggered
// cancellation plus named, optionally time-boxed shutdown callbacks run
// concurrently.
package supervisor

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/anselumana/binance-etl/internal/pipeline"
)

type callback struct {
	name    string
	f       func() error
	timeout time.Duration
}

// Supervisor starts and independently monitors a set of pipelines, and
// runs registered shutdown callbacks (storage flush/close, sink teardown)
// on a terminating signal or a manual Stop.
type Supervisor struct {
	log       zerolog.Logger
	pipelines []pipeline.Pipeline

	mu        sync.Mutex
	callbacks []callback
	sigCh     chan os.Signal
	stopped   chan struct{}

	pipelineFailed atomic.Bool
}

// New constructs an empty Supervisor. Every log line it emits is tagged
// with a fresh run ID so that log aggregation can distinguish concurrent
// or restarted process instances, the same correlation-id role
// uuid.UUID plays on the teacher's pkg/eventbus.Event.
func New(log zerolog.Logger) *Supervisor {
	runID := uuid.New()
	return &Supervisor{
		log:     log.With().Str("runId", runID.String()).Logger(),
		sigCh:   make(chan os.Signal, 1),
		stopped: make(chan struct{}),
	}
}

// Register adds a pipeline to be started by Start and stopped by Stop.
// Each pipeline runs independently: one pipeline failing to start does
// not prevent the others from running (spec.md §4.8, "per-pipeline
// independent failure isolation").
func (s *Supervisor) Register(p pipeline.Pipeline) {
	s.pipelines = append(s.pipelines, p)
}

// HookShutdown registers a named callback to run during shutdown. A
// timeout of 0 means the callback runs without a deadline.
func (s *Supervisor) HookShutdown(name string, f func() error, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback{name: name, f: f, timeout: timeout})
}

// Start launches every registered pipeline. A pipeline that fails to
// start is logged and skipped; the rest still run. Each running pipeline
// is watched for fatal failure (spec.md §4.8, "Running → Stopping ...
// by pipeline-local fatal error"): one pipeline dying does not stop the
// others, but it is recorded so the process can exit non-zero later
// (spec.md §6, "Exit codes").
func (s *Supervisor) Start() {
	for _, p := range s.pipelines {
		if err := p.Start(); err != nil {
			s.log.Error().Err(err).Str("pipeline", p.Name()).Msg("pipeline failed to start")
			continue
		}
		s.log.Info().Str("pipeline", p.Name()).Msg("pipeline started")
		go s.watchFailure(p)
	}
}

func (s *Supervisor) watchFailure(p pipeline.Pipeline) {
	select {
	case <-p.Failed():
		s.log.Error().Str("pipeline", p.Name()).Msg("pipeline failed fatally")
		s.pipelineFailed.Store(true)
	case <-s.stopped:
	}
}

// ExitCode reports the process exit code implied by the current state:
// 0 on clean shutdown, non-zero if any pipeline failed fatally
// (spec.md §6, "non-zero on pipeline fatal error propagated to the
// supervisor").
func (s *Supervisor) ExitCode() int {
	if s.pipelineFailed.Load() {
		return 1
	}
	return 0
}

// WaitForShutdown blocks until one of sigs is received (SIGINT/SIGTERM by
// convention) and then runs Stop.
func (s *Supervisor) WaitForShutdown(sigs ...os.Signal) {
	signal.Notify(s.sigCh, sigs...)
	select {
	case <-s.sigCh:
		s.log.Info().Msg("shutdown signal received")
	case <-s.stopped:
		return
	}
	s.Stop()
}

// Stop halts every pipeline and then runs every shutdown callback
// concurrently, each under its own timeout if one was given.
func (s *Supervisor) Stop() {
	select {
	case <-s.stopped:
		return
	default:
		close(s.stopped)
	}

	for _, p := range s.pipelines {
		if err := p.Stop(); err != nil {
			s.log.Error().Err(err).Str("pipeline", p.Name()).Msg("pipeline failed to stop cleanly")
		}
	}

	s.mu.Lock()
	callbacks := append([]callback(nil), s.callbacks...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, cb := range callbacks {
		wg.Add(1)
		go func(cb callback) {
			defer wg.Done()
			s.runCallback(cb)
		}(cb)
	}
	wg.Wait()
	s.log.Info().Msg("shutdown complete")
}

func (s *Supervisor) runCallback(cb callback) {
	s.log.Info().Str("callback", cb.name).Msg("running shutdown callback")

	done := make(chan error, 1)
	go func() { done <- cb.f() }()

	if cb.timeout <= 0 {
		if err := <-done; err != nil {
			s.log.Error().Err(err).Str("callback", cb.name).Msg("shutdown callback failed")
		}
		return
	}

	select {
	case err := <-done:
		if err != nil {
			s.log.Error().Err(err).Str("callback", cb.name).Msg("shutdown callback failed")
		}
	case <-time.After(cb.timeout):
		s.log.Error().Str("callback", cb.name).Dur("timeout", cb.timeout).Msg("shutdown callback timed out")
	}
}

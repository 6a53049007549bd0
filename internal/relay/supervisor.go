package relay

import (
	"context"
	"log/slog"
	"sync"

	"hls-relay/internal/channel"
)

// Runner is a long-lived task bound to one channel; it returns once ctx is done.
type Runner interface {
	Run(ctx context.Context)
}

// RunnerFactory builds the Runner for a channel. Production code passes a
// closure around NewWorker.
type RunnerFactory func(src channel.Source) Runner

// Supervisor keeps at most one running worker per channel ID.
// Start and Stop are safe for concurrent use.
type Supervisor struct {
	newRunner RunnerFactory
	log       *slog.Logger

	mu      sync.Mutex
	workers map[channel.ID]context.CancelFunc
	closed  bool

	wg sync.WaitGroup
}

// NewSupervisor returns a Supervisor that launches runners built by factory.
func NewSupervisor(factory RunnerFactory, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		newRunner: factory,
		log:       log,
		workers:   make(map[channel.ID]context.CancelFunc),
	}
}

// Start launches a worker for src unless one is already running for src.ID.
// It reports whether a new worker was started.
func (s *Supervisor) Start(src channel.Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if _, running := s.workers[src.ID]; running {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.workers[src.ID] = cancel

	runner := s.newRunner(src)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runner.Run(ctx)
	}()

	s.log.Debug("worker launched", slog.String("channel", src.ID.String()))
	return true
}

// Stop signals the worker for id to exit and forgets it. It does not wait for
// the worker; an in-flight fetch finishes or times out first. Stop reports
// whether a worker was running.
func (s *Supervisor) Stop(id channel.ID) bool {
	s.mu.Lock()
	cancel, running := s.workers[id]
	delete(s.workers, id)
	s.mu.Unlock()

	if !running {
		return false
	}
	cancel()
	s.log.Debug("worker cancelled", slog.String("channel", id.String()))
	return true
}

// Running reports whether a worker is registered for id.
func (s *Supervisor) Running(id channel.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workers[id]
	return ok
}

// Len returns the number of registered workers.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Shutdown cancels every worker, refuses further Starts and waits until all
// worker goroutines, including ones already stopped, have returned or ctx ends.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for id, cancel := range s.workers {
		cancel()
		delete(s.workers, id)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-poller/internal/observability"
	"github.com/i474232898/weather-poller/internal/weather"
)

// ErrAlreadyStarted is returned when Start is called more than once.
var ErrAlreadyStarted = errors.New("scheduler: already started")

// State is the lifecycle state of a Scheduler.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// CycleRunner runs one ingestion pass over a set of locations.
type CycleRunner interface {
	RunCycle(ctx context.Context, locations []weather.Location) weather.CycleReport
}

// Scheduler runs the ingestion pipeline immediately on start and then on a
// fixed interval. Cycles never overlap.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pipeline  CycleRunner
	registry  *weather.Registry
	interval  time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu       sync.Mutex
	state    State
	ctx      context.Context
	cancel   context.CancelFunc
	inFlight sync.WaitGroup
	done     chan struct{}

	busy   atomic.Bool
	cycles atomic.Int64
}

// New creates a new Scheduler.
func New(pipeline CycleRunner, registry *weather.Registry, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		pipeline:  pipeline,
		registry:  registry,
		interval:  interval,
		logger:    logger,
		metrics:   metrics,
		done:      make(chan struct{}),
	}
}

// Start schedules the polling job and returns without waiting for the first
// cycle. The scheduler stops by itself when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyStarted
	}
	if s.interval <= 0 {
		return fmt.Errorf("scheduler: invalid interval %s", s.interval)
	}
	if s.registry.Len() == 0 {
		s.logger.Warn("scheduler: no locations configured; cycles will be empty")
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.scheduler.SingletonModeAll()
	if _, err := s.scheduler.Every(s.interval).StartImmediately().Do(s.tick); err != nil {
		cancel()
		return fmt.Errorf("scheduler: schedule polling job: %w", err)
	}

	s.ctx = runCtx
	s.cancel = cancel
	s.state = StateRunning
	s.metrics.SchedulerRunning.Set(1)
	s.metrics.LocationsRegistry.Set(float64(s.registry.Len()))

	s.scheduler.StartAsync()
	s.logger.Info("weather polling scheduler started",
		"interval", s.interval,
		"locations", s.registry.Len(),
	)

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop cancels the in-flight cycle, waits for it to return and prevents any
// further cycles. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.state = StateStopped
		close(s.done)
		s.mu.Unlock()
		return
	case StateStopping:
		s.mu.Unlock()
		<-s.done
		return
	case StateStopped:
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	s.mu.Unlock()

	s.logger.Info("weather polling scheduler stopping")
	s.cancel()
	s.scheduler.Stop()
	s.inFlight.Wait()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.metrics.SchedulerRunning.Set(0)
	close(s.done)

	s.logger.Info("weather polling scheduler stopped", "cycles", s.cycles.Load())
}

// Done is closed once the scheduler has reached StateStopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cycles returns how many cycles have been run.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

// tick is the gocron job body.
func (s *Scheduler) tick() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.mu.Unlock()
		s.metrics.CyclesSkipped.Inc()
		s.logger.Warn("scheduler: previous cycle still running; skipping tick")
		return
	}
	s.inFlight.Add(1)
	ctx := s.ctx
	s.mu.Unlock()

	defer s.inFlight.Done()
	defer s.busy.Store(false)

	s.logger.Info("polling weather data", "cycle", s.cycles.Add(1))
	s.pipeline.RunCycle(ctx, s.registry.Locations())
}

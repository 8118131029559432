// Package simclock owns the fixed-period tick loop: phase ordering,
// timing instrumentation, and cooperative stop.
// See design doc Section 4.6.
package simclock

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Phases is the ordered set of simulation-phase callbacks a Scheduler
// invokes every tick, per design doc Section 2's data-flow order:
// Environment -> Pheromone decay -> Agent Behavior -> Colony Manager.
type Phases struct {
	Environment   func(tick uint64)
	Pheromone     func(tick uint64)
	AgentBehavior func(tick uint64) error
	Colony        func(tick uint64)

	// Opportunistic, lower-frequency work.
	Persist   func(tick uint64)
	Broadcast func(tick uint64)
}

// Config controls cadence, bound from design doc Section 6.
type Config struct {
	TickPeriod              time.Duration
	PersistenceSyncInterval uint64
	BroadcastInterval       uint64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TickPeriod:              50 * time.Millisecond,
		PersistenceSyncInterval: 100,
		BroadcastInterval:       1,
	}
}

// Scheduler drives the simulation forward at a fixed period.
type Scheduler struct {
	tick    uint64 // atomic
	running int32  // atomic bool

	cfg    Config
	phases Phases
	stop   chan struct{}
}

// New creates a Scheduler starting at tick 0.
func New(cfg Config, phases Phases) *Scheduler {
	return &Scheduler{cfg: cfg, phases: phases, stop: make(chan struct{})}
}

// Resume sets the starting tick, used when restoring from persistence.
func (s *Scheduler) Resume(tick uint64) {
	atomic.StoreUint64(&s.tick, tick)
}

// CurrentTick returns the tick counter: the tick in progress while a
// step runs, otherwise the most recently completed tick.
func (s *Scheduler) CurrentTick() uint64 {
	return atomic.LoadUint64(&s.tick)
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// Run starts the simulation loop. Blocks until Stop is called; the
// current tick always completes before the loop exits (design doc
// Section 5's cancellation contract).
func (s *Scheduler) Run() {
	atomic.StoreInt32(&s.running, 1)
	slog.Info("tick scheduler started", "tick", s.CurrentTick(), "period", s.cfg.TickPeriod)

	for {
		select {
		case <-s.stop:
			atomic.StoreInt32(&s.running, 0)
			slog.Info("tick scheduler stopped", "ticks_completed", humanize.Comma(int64(s.CurrentTick())))
			return
		default:
		}

		start := time.Now()
		s.step()
		elapsed := time.Since(start)

		if elapsed > s.cfg.TickPeriod {
			slog.Warn("tick overrun", "tick", s.CurrentTick(), "elapsed", elapsed, "budget", s.cfg.TickPeriod)
			continue
		}

		select {
		case <-s.stop:
			atomic.StoreInt32(&s.running, 0)
			slog.Info("tick scheduler stopped", "ticks_completed", humanize.Comma(int64(s.CurrentTick())))
			return
		case <-time.After(s.cfg.TickPeriod - elapsed):
		}
	}
}

// Stop requests the loop exit at the next phase boundary. The current
// tick completes and Run returns; the final persistence sync is the
// caller's FinalSync call (design doc Section 5).
func (s *Scheduler) Stop() {
	close(s.stop)
}

// step advances the simulation by exactly one tick in the fixed phase
// order, then opportunistically invokes persistence and broadcast.
func (s *Scheduler) step() {
	tick := atomic.AddUint64(&s.tick, 1)

	if s.phases.Environment != nil {
		s.phases.Environment(tick)
	}
	if s.phases.Pheromone != nil {
		s.phases.Pheromone(tick)
	}
	if s.phases.AgentBehavior != nil {
		if err := s.phases.AgentBehavior(tick); err != nil {
			slog.Error("agent behavior phase failed", "tick", tick, "error", err)
		}
	}
	if s.phases.Colony != nil {
		s.phases.Colony(tick)
	}

	interval := s.cfg.PersistenceSyncInterval
	if interval == 0 {
		interval = 100
	}
	if s.phases.Persist != nil && tick%interval == 0 {
		s.phases.Persist(tick)
	}

	broadcastInterval := s.cfg.BroadcastInterval
	if broadcastInterval == 0 {
		broadcastInterval = 1
	}
	if s.phases.Broadcast != nil && tick%broadcastInterval == 0 {
		s.phases.Broadcast(tick)
	}
}

// FinalSync runs the persistence phase one last time, used by callers
// after Run returns to guarantee the "final persistence sync" part of
// the cancellation contract even if Stop raced the sleep window.
func (s *Scheduler) FinalSync() {
	if s.phases.Persist != nil {
		s.phases.Persist(s.CurrentTick())
	}
}

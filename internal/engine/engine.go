// Package engine runs the simulation scheduler: a fixed-rate tick loop that
// owns all world mutation. Commands cross in through a bounded queue, state
// leaves through read-locked snapshots and the persistence bridge, and every
// other goroutine stays out of the world entirely.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/stellarion/server/internal/core/event"
	"github.com/stellarion/server/internal/core/system"
	"github.com/stellarion/server/internal/persist"
	"github.com/stellarion/server/internal/world"
)

// Clock abstracts wall time so tests can drive ticks manually.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock is the production clock.
var SystemClock Clock = realClock{}

// Saver receives state batches from the scheduler without blocking it.
// Enqueue returns false when the batch was not accepted; its consume-once
// rows are then handed back to the world for the next flush.
type Saver interface {
	Enqueue(b persist.Batch) bool
	Close(ctx context.Context) error
}

// Config tunes the scheduler.
type Config struct {
	TickInterval    time.Duration
	QueueCapacity   int
	PersistInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 1024
	}
	if c.PersistInterval <= 0 {
		c.PersistInterval = time.Minute
	}
	return c
}

// Engine owns the tick loop. Construct with New, then Start. All exported
// methods are safe for concurrent use.
type Engine struct {
	cfg     Config
	log     *zap.Logger
	state   *world.State
	bus     *event.Bus
	runner  *system.Runner
	queue   *CommandQueue
	metrics *Metrics
	saver   Saver
	clock   Clock

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	tick        atomic.Uint64
	lastTickAt  time.Time
	lastPersist time.Time
}

func New(cfg Config, state *world.State, bus *event.Bus, runner *system.Runner, saver Saver, metrics *Metrics, log *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:     cfg,
		log:     log,
		state:   state,
		bus:     bus,
		runner:  runner,
		queue:   NewCommandQueue(cfg.QueueCapacity),
		metrics: metrics,
		saver:   saver,
		clock:   SystemClock,
	}
}

// SetClock replaces the engine's clock. Call before Start.
func (e *Engine) SetClock(c Clock) { e.clock = c }

// State exposes the world for snapshot readers.
func (e *Engine) State() *world.State { return e.state }

// Bus exposes the event bus for subscribers. Subscribe before Start to avoid
// missing early events.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Submit stages a command for the next tick. Returns ErrQueueFull under
// backpressure.
func (e *Engine) Submit(cmd Command) error {
	err := e.queue.Push(cmd)
	if err != nil && e.metrics != nil {
		e.metrics.QueueOverflows.Inc()
	}
	return err
}

// Start launches the tick loop. Calling Start on a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	e.lastTickAt = e.clock.Now()
	e.lastPersist = e.lastTickAt
	go e.loop(e.stop, e.done)
	e.log.Info("engine started",
		zap.Duration("tick_interval", e.cfg.TickInterval),
		zap.Int("queue_capacity", e.queue.Capacity()))
}

// Stop halts the loop, runs one final tick to settle pending commands, and
// flushes outstanding state through the saver. Blocks until done.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	close(e.stop)
	done := e.done
	e.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Final settle: apply whatever was queued, then force a full flush.
	e.RunTick(e.clock.Now())
	e.flushPersist(e.clock.Now(), true)
	if e.saver != nil {
		if err := e.saver.Close(ctx); err != nil {
			return err
		}
	}
	e.log.Info("engine stopped", zap.Uint64("ticks", e.tick.Load()))
	return nil
}

func (e *Engine) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := e.clock.Now()
			e.RunTick(now)
			e.flushPersist(now, false)
		}
	}
}

// RunTick executes exactly one tick at the given time. Exposed so tests and
// the shutdown path can drive the loop deterministically.
func (e *Engine) RunTick(now time.Time) {
	started := time.Now()
	tick := e.tick.Add(1)

	// Deliver last tick's events before mutating state again.
	e.bus.SwapBuffers()
	e.bus.DispatchAll()

	commands := e.queue.Drain()
	if e.metrics != nil {
		e.metrics.QueueDepth.Set(float64(len(commands)))
	}

	e.state.Lock()
	for _, cmd := range commands {
		if err := e.applyCommand(cmd, now); err != nil {
			e.bus.Emit(event.CommandRejected{
				UserID:  cmd.UserID,
				Command: string(cmd.Kind),
				Reason:  err.Error(),
				At:      now,
			})
			if e.metrics != nil {
				e.metrics.CommandsRejected.WithLabelValues(rejectionReason(err)).Inc()
			}
			e.log.Debug("command rejected",
				zap.String("kind", string(cmd.Kind)),
				zap.Int64("user_id", cmd.UserID),
				zap.Error(err))
		} else if e.metrics != nil {
			e.metrics.CommandsApplied.Inc()
		}
	}

	for _, ev := range e.runner.Tick(e.state, now, tick) {
		e.bus.Emit(ev)
		if e.metrics != nil {
			e.metrics.EventsEmitted.WithLabelValues(event.Kind(ev)).Inc()
		}
	}
	e.state.FlushDestroyed()
	e.state.Unlock()

	duration := time.Since(started)
	drift := time.Duration(0)
	if !e.lastTickAt.IsZero() {
		drift = now.Sub(e.lastTickAt) - e.cfg.TickInterval
	}
	e.lastTickAt = now

	if e.metrics != nil {
		e.metrics.Ticks.Inc()
		e.metrics.TickDuration.Observe(duration.Seconds())
		e.metrics.TickDrift.Set(drift.Seconds())
	}
	if duration > e.cfg.TickInterval {
		if e.metrics != nil {
			e.metrics.TickOverruns.Inc()
		}
		e.log.Warn("tick overrun",
			zap.Uint64("tick", tick),
			zap.Duration("duration", duration),
			zap.Duration("interval", e.cfg.TickInterval))
	}
}

// flushPersist hands changed state to the saver on the persistence cadence.
// force skips the cadence check, used at shutdown.
func (e *Engine) flushPersist(now time.Time, force bool) {
	if e.saver == nil {
		return
	}
	if !force && now.Sub(e.lastPersist) < e.cfg.PersistInterval {
		return
	}
	e.lastPersist = now

	e.state.Lock()
	planets, players := e.state.DrainDirty()
	if len(planets) == 0 && len(players) == 0 && !force {
		e.state.Unlock()
		return
	}
	batch := persist.BuildBatch(e.state, planets, players, now)
	batch.Force = force
	e.state.Unlock()

	if e.metrics != nil {
		e.metrics.PersistBatches.Inc()
	}
	if !e.saver.Enqueue(batch) {
		e.state.Lock()
		persist.Restage(e.state, batch)
		e.state.Unlock()
		if e.metrics != nil {
			e.metrics.PersistRejected.Inc()
		}
	}
}

// Tick reports the number of completed ticks.
func (e *Engine) Tick() uint64 { return e.tick.Load() }

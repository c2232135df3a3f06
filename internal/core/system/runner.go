package system

import (
	"runtime/debug"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/stellarion/server/internal/core/event"
	"github.com/stellarion/server/internal/world"
)

// Runner executes registered systems in phase order once per tick. A panic in
// one system is recovered and logged; the remaining systems still run, so a
// single faulty subsystem cannot halt the simulation.
type Runner struct {
	log     *zap.Logger
	systems []registered
}

type registered struct {
	sys     System
	lastRun time.Time
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{log: log}
}

// Register adds a system. Systems sharing a phase run in registration order.
func (r *Runner) Register(sys System) {
	r.systems = append(r.systems, registered{sys: sys})
	sort.SliceStable(r.systems, func(i, j int) bool {
		return r.systems[i].sys.Phase() < r.systems[j].sys.Phase()
	})
}

// Tick runs every system once against w and returns all events they produced.
// Each system receives the time elapsed since its own last successful or
// failed run, so work skipped during a stall is made up on the next tick.
func (r *Runner) Tick(w *world.State, now time.Time, tick uint64) []event.Event {
	var out []event.Event
	for i := range r.systems {
		reg := &r.systems[i]
		elapsed := time.Duration(0)
		if !reg.lastRun.IsZero() {
			elapsed = now.Sub(reg.lastRun)
		}
		reg.lastRun = now
		out = append(out, r.run(reg.sys, w, now, elapsed, tick)...)
	}
	return out
}

func (r *Runner) run(sys System, w *world.State, now time.Time, elapsed time.Duration, tick uint64) (evs []event.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("system panicked",
				zap.Stringer("phase", sys.Phase()),
				zap.Uint64("tick", tick),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			evs = nil
		}
	}()
	return sys.Process(w, now, elapsed)
}

package system

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stellarion/server/internal/core/event"
	"github.com/stellarion/server/internal/world"
)

type stubSystem struct {
	phase   Phase
	process func(w *world.State, now time.Time, elapsed time.Duration) []event.Event
}

func (s stubSystem) Phase() Phase { return s.phase }

func (s stubSystem) Process(w *world.State, now time.Time, elapsed time.Duration) []event.Event {
	return s.process(w, now, elapsed)
}

type marker struct{ name string }

func TestRunnerOrdersByPhase(t *testing.T) {
	r := NewRunner(zap.NewNop())
	var order []string
	add := func(name string, p Phase) {
		r.Register(stubSystem{phase: p, process: func(*world.State, time.Time, time.Duration) []event.Event {
			order = append(order, name)
			return []event.Event{marker{name}}
		}})
	}
	// Registered out of phase order; two movement systems keep their
	// relative registration order.
	add("battle", PhaseBattle)
	add("movement-a", PhaseMovement)
	add("production", PhaseProduction)
	add("movement-b", PhaseMovement)

	evs := r.Tick(nil, time.Now(), 1)

	want := []string{"production", "movement-a", "movement-b", "battle"}
	if len(order) != len(want) {
		t.Fatalf("ran %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("run order %v, expected %v", order, want)
		}
	}
	if len(evs) != 4 || evs[0].(marker).name != "production" {
		t.Fatalf("events: %+v", evs)
	}
}

func TestRunnerIsolatesPanics(t *testing.T) {
	r := NewRunner(zap.NewNop())
	r.Register(stubSystem{phase: PhaseProduction, process: func(*world.State, time.Time, time.Duration) []event.Event {
		return []event.Event{marker{"before"}}
	}})
	r.Register(stubSystem{phase: PhaseConstruction, process: func(*world.State, time.Time, time.Duration) []event.Event {
		panic("bad pointer")
	}})
	ran := false
	r.Register(stubSystem{phase: PhaseBattle, process: func(*world.State, time.Time, time.Duration) []event.Event {
		ran = true
		return []event.Event{marker{"after"}}
	}})

	evs := r.Tick(nil, time.Now(), 7)

	if !ran {
		t.Fatalf("system after the panicking one did not run")
	}
	if len(evs) != 2 || evs[0].(marker).name != "before" || evs[1].(marker).name != "after" {
		t.Fatalf("events around panic: %+v", evs)
	}
}

func TestRunnerReportsElapsedSinceLastRun(t *testing.T) {
	r := NewRunner(zap.NewNop())
	var seen []time.Duration
	r.Register(stubSystem{phase: PhaseProduction, process: func(_ *world.State, _ time.Time, elapsed time.Duration) []event.Event {
		seen = append(seen, elapsed)
		return nil
	}})

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.Tick(nil, t0, 1)
	r.Tick(nil, t0.Add(time.Second), 2)
	// A stalled scheduler hands the full gap to the system.
	r.Tick(nil, t0.Add(11*time.Second), 3)

	want := []time.Duration{0, time.Second, 10 * time.Second}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("elapsed[%d] = %v, expected %v", i, seen[i], want[i])
		}
	}
}

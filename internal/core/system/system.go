package system

import (
	"time"

	"github.com/stellarion/server/internal/core/event"
	"github.com/stellarion/server/internal/world"
)

// Phase orders subsystems within a tick. Lower phases run first; the order is
// fixed so that resources accrue before construction spends them, ships exist
// before fleets move, and fleets arrive before battles resolve.
type Phase int

const (
	PhaseProduction Phase = iota
	PhaseConstruction
	PhaseResearch
	PhaseShipyard
	PhaseMovement
	PhaseBattle
	PhaseUpkeep
)

func (p Phase) String() string {
	switch p {
	case PhaseProduction:
		return "production"
	case PhaseConstruction:
		return "construction"
	case PhaseResearch:
		return "research"
	case PhaseShipyard:
		return "shipyard"
	case PhaseMovement:
		return "movement"
	case PhaseBattle:
		return "battle"
	case PhaseUpkeep:
		return "upkeep"
	default:
		return "unknown"
	}
}

// System is one stage of the simulation pipeline. Process runs on the
// scheduler goroutine with the world write lock held; it mutates state and
// returns the events produced this tick. elapsed is the wall time since this
// system last ran, which exceeds the tick interval after stalls or restarts.
type System interface {
	Phase() Phase
	Process(w *world.State, now time.Time, elapsed time.Duration) []event.Event
}

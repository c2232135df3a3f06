package system

import (
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/core/event"
	coresys "github.com/stellarion/server/internal/core/system"
	"github.com/stellarion/server/internal/world"
)

// ShipyardSystem finishes ship batches and moves them into the planet hangar.
// Like construction, batches run serially and chain off the previous batch's
// finish time.
type ShipyardSystem struct{}

func NewShipyardSystem() *ShipyardSystem { return &ShipyardSystem{} }

func (*ShipyardSystem) Phase() coresys.Phase { return coresys.PhaseShipyard }

func (s *ShipyardSystem) Process(w *world.State, now time.Time, _ time.Duration) []event.Event {
	var events []event.Event

	w.ShipyardQueues.Each(func(e ecs.EntityID, q *world.ShipyardQueue) {
		changed := false
		for len(q.Orders) > 0 {
			head := &q.Orders[0]
			if head.CompleteAt.IsZero() {
				head.CompleteAt = now.Add(head.Duration)
			}
			if now.Before(head.CompleteAt) {
				break
			}

			hangar := w.Hangars.Get(e)
			planet := w.Planets.Get(e)
			coords := w.Positions.Get(e)
			finishedAt := head.CompleteAt

			hangar.Ships[head.Ship] += head.Count
			events = append(events, event.ShipsBuilt{
				UserID: planet.OwnerID,
				Planet: *coords,
				Ship:   head.Ship,
				Count:  head.Count,
				At:     finishedAt,
			})

			q.Orders = q.Orders[1:]
			if len(q.Orders) > 0 {
				q.Orders[0].CompleteAt = finishedAt.Add(q.Orders[0].Duration)
			}
			changed = true
		}
		if changed {
			w.MarkPlanetDirty(e)
		}
	})
	return events
}

package system

import (
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/core/event"
	coresys "github.com/stellarion/server/internal/core/system"
	"github.com/stellarion/server/internal/world"
)

// Construction completes building orders. Queues are serial: the next order
// starts the moment the previous one finishes, anchored to the finish time so
// chained completions survive stalls without losing progress.
type Construction struct{}

func NewConstruction() *Construction { return &Construction{} }

func (*Construction) Phase() coresys.Phase { return coresys.PhaseConstruction }

func (c *Construction) Process(w *world.State, now time.Time, _ time.Duration) []event.Event {
	var events []event.Event

	w.BuildQueues.Each(func(e ecs.EntityID, q *world.BuildQueue) {
		changed := false
		for len(q.Orders) > 0 {
			head := &q.Orders[0]
			if head.CompleteAt.IsZero() {
				head.CompleteAt = now.Add(head.Duration)
			}
			if now.Before(head.CompleteAt) {
				break
			}

			planet := w.Planets.Get(e)
			levels := w.BuildingLevels.Get(e)
			coords := w.Positions.Get(e)
			finishedAt := head.CompleteAt

			levels.Levels[head.Building] = head.TargetLevel
			if head.Demolish {
				refund := w.Balance.DemolishRefund(head.Building, head.TargetLevel+1)
				w.Stockpiles.Get(e).Credit(refund)
				events = append(events, event.BuildingDemolished{
					UserID:   planet.OwnerID,
					Planet:   *coords,
					Building: head.Building,
					NewLevel: head.TargetLevel,
					At:       finishedAt,
				})
			} else {
				events = append(events, event.BuildingComplete{
					UserID:   planet.OwnerID,
					Planet:   *coords,
					Building: head.Building,
					NewLevel: head.TargetLevel,
					At:       finishedAt,
				})
			}

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

package system

import (
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/core/event"
	coresys "github.com/stellarion/server/internal/core/system"
	"github.com/stellarion/server/internal/world"
)

// ResearchSystem completes the single active research item per player and
// bumps the empire-wide level.
type ResearchSystem struct{}

func NewResearchSystem() *ResearchSystem { return &ResearchSystem{} }

func (*ResearchSystem) Phase() coresys.Phase { return coresys.PhaseResearch }

func (r *ResearchSystem) Process(w *world.State, now time.Time, _ time.Duration) []event.Event {
	var events []event.Event
	var done []ecs.EntityID

	ecs.Each3(w.Players, w.Researches, w.ResearchOrders,
		func(e ecs.EntityID, p *world.Player, res *world.Research, order *world.ResearchOrder) {
			if now.Before(order.CompleteAt) {
				return
			}
			res.Levels[order.Tech] = order.TargetLevel
			events = append(events, event.ResearchComplete{
				UserID:   p.UserID,
				Research: order.Tech,
				NewLevel: order.TargetLevel,
				At:       order.CompleteAt,
			})
			w.MarkPlayerDirty(p.UserID)
			done = append(done, e)
		})

	for _, e := range done {
		w.ResearchOrders.Remove(e)
	}
	return events
}

package system

import (
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/core/event"
	coresys "github.com/stellarion/server/internal/core/system"
	"github.com/stellarion/server/internal/world"
)

// Upkeep runs housekeeping at the end of the pipeline: the dormant-player
// sweep. The sweep is rate limited so the full player scan does not run every
// tick.
type Upkeep struct {
	inactiveAfter time.Duration
	sweepEvery    time.Duration
	lastSweep     time.Time
}

func NewUpkeep(inactiveAfter, sweepEvery time.Duration) *Upkeep {
	if sweepEvery <= 0 {
		sweepEvery = time.Hour
	}
	return &Upkeep{inactiveAfter: inactiveAfter, sweepEvery: sweepEvery}
}

func (*Upkeep) Phase() coresys.Phase { return coresys.PhaseUpkeep }

func (u *Upkeep) Process(w *world.State, now time.Time, _ time.Duration) []event.Event {
	if u.inactiveAfter <= 0 {
		return nil
	}
	if !u.lastSweep.IsZero() && now.Sub(u.lastSweep) < u.sweepEvery {
		return nil
	}
	u.lastSweep = now

	var events []event.Event
	var dormant []int64
	w.Players.Each(func(_ ecs.EntityID, p *world.Player) {
		if p.Retired {
			return
		}
		if now.Sub(p.LastActivity) >= u.inactiveAfter {
			dormant = append(dormant, p.UserID)
		}
	})
	for _, id := range dormant {
		w.RetirePlayer(id)
		events = append(events, event.PlayerRetired{UserID: id, At: now})
	}
	return events
}

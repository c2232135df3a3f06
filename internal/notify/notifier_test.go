package notify

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stellarion/server/internal/core/event"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

func newTestNotifier(t *testing.T) (*Notifier, *event.Bus) {
	t.Helper()
	n := New(nil, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := n.Close(ctx); err != nil {
			t.Errorf("close notifier: %v", err)
		}
	})
	bus := event.NewBus()
	n.Attach(bus)
	return n, bus
}

func deliver(bus *event.Bus, evs ...event.Event) {
	for _, ev := range evs {
		bus.Emit(ev)
	}
	bus.SwapBuffers()
	bus.DispatchAll()
}

func TestNotifierRoutesEvents(t *testing.T) {
	n, bus := newTestNotifier(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	planet := world.Coords{Galaxy: 1, System: 1, Position: 3}

	deliver(bus,
		event.BuildingComplete{UserID: 1, Planet: planet, Building: data.MetalMine, NewLevel: 2, At: at},
		event.ShipsBuilt{UserID: 1, Planet: planet, Ship: data.LightFighter, Count: 3, At: at},
	)

	got := n.For(1, 10, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	// Newest first.
	if got[0].Kind != "ships_built" || got[1].Kind != "building_complete" {
		t.Fatalf("unexpected order: %s, %s", got[0].Kind, got[1].Kind)
	}
	if got[1].Priority != PriorityNormal || got[0].Priority != PriorityInfo {
		t.Fatalf("unexpected priorities: %s, %s", got[1].Priority, got[0].Priority)
	}
	if got[1].Payload["level"] != 2 {
		t.Fatalf("payload lost: %+v", got[1].Payload)
	}
}

func TestNotifierBattleReachesBothSides(t *testing.T) {
	n, bus := newTestNotifier(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	deliver(bus, event.BattleResolved{
		ReportID: 7, AttackerID: 1, DefenderID: 2,
		Location: world.Coords{Galaxy: 1, System: 2, Position: 3},
		Winner:   world.OutcomeAttacker, At: at,
	})

	for _, userID := range []int64{1, 2} {
		got := n.For(userID, 10, 0)
		if len(got) != 1 || got[0].Kind != "battle_resolved" {
			t.Fatalf("user %d: %+v", userID, got)
		}
		if got[0].Priority != PriorityWarning {
			t.Fatalf("user %d priority: %s", userID, got[0].Priority)
		}
	}
}

func TestNotifierEnergyDeficitCooldown(t *testing.T) {
	n, bus := newTestNotifier(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	planet := world.Coords{Galaxy: 1, System: 1, Position: 3}

	ev := event.EnergyDeficit{UserID: 1, Planet: planet, Produced: 10, Required: 40, Factor: 0.25, At: at}
	deliver(bus, ev)

	// Repeats inside the cooldown window are suppressed.
	ev.At = at.Add(time.Minute)
	deliver(bus, ev)
	if got := n.For(1, 10, 0); len(got) != 1 {
		t.Fatalf("cooldown not applied: %d notifications", len(got))
	}

	// A different planet is a different condition.
	other := ev
	other.Planet = world.Coords{Galaxy: 1, System: 1, Position: 4}
	deliver(bus, other)
	if got := n.For(1, 10, 0); len(got) != 2 {
		t.Fatalf("distinct planets should not share a cooldown: %d", len(got))
	}

	// After the window passes the warning repeats.
	ev.At = at.Add(11 * time.Minute)
	deliver(bus, ev)
	if got := n.For(1, 10, 0); len(got) != 3 {
		t.Fatalf("cooldown never expired: %d", len(got))
	}
}

func TestNotifierInboxRingLimit(t *testing.T) {
	n, bus := newTestNotifier(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	planet := world.Coords{Galaxy: 1, System: 1, Position: 3}

	for i := 0; i < maxPerUser+20; i++ {
		deliver(bus, event.BuildingComplete{
			UserID: 1, Planet: planet, Building: data.MetalMine,
			NewLevel: i + 1, At: at.Add(time.Duration(i) * time.Second),
		})
	}

	got := n.For(1, maxPerUser*2, 0)
	if len(got) != maxPerUser {
		t.Fatalf("ring holds %d, expected %d", len(got), maxPerUser)
	}
	// The oldest entries fell off; the newest survives at the front.
	if got[0].Payload["level"] != maxPerUser+20 {
		t.Fatalf("newest entry missing: %+v", got[0].Payload)
	}
}

func TestNotifierMarkReadAndUnread(t *testing.T) {
	n, bus := newTestNotifier(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	deliver(bus,
		event.ResearchComplete{UserID: 1, Research: data.EnergyTech, NewLevel: 1, At: at},
		event.ResearchComplete{UserID: 1, Research: data.LaserTech, NewLevel: 1, At: at},
	)
	if n.Unread(1) != 2 {
		t.Fatalf("unread = %d", n.Unread(1))
	}

	first := n.For(1, 1, 1)
	if len(first) != 1 {
		t.Fatalf("pagination broken: %+v", first)
	}
	if !n.MarkRead(1, first[0].ID) {
		t.Fatalf("mark read failed")
	}
	if n.MarkRead(1, 999) {
		t.Fatalf("marked a phantom notification")
	}
	if n.MarkRead(2, first[0].ID) {
		t.Fatalf("marked another user's notification")
	}
	if n.Unread(1) != 1 {
		t.Fatalf("unread after read = %d", n.Unread(1))
	}
}

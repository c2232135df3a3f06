package system

import (
	"testing"
	"time"

	"github.com/stellarion/server/internal/core/event"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

func TestConstructionChainedCompletions(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w, planet := newWorld(t, t0)

	q := w.BuildQueues.Get(planet)
	q.Orders = []world.BuildOrder{
		{Building: data.MetalMine, TargetLevel: 1, Duration: time.Minute, CompleteAt: t0.Add(time.Minute)},
		{Building: data.MetalMine, TargetLevel: 2, Duration: 2 * time.Minute},
		{Building: data.SolarPlant, TargetLevel: 1, Duration: time.Minute},
	}

	// A single late tick completes everything whose chained finish time has
	// passed: 1m, then 1m+2m, then 1m+2m+1m.
	events := NewConstruction().Process(w, t0.Add(10*time.Minute), 10*time.Minute)

	if len(events) != 3 {
		t.Fatalf("expected 3 completion events, got %d", len(events))
	}
	times := []time.Time{t0.Add(time.Minute), t0.Add(3 * time.Minute), t0.Add(4 * time.Minute)}
	for i, ev := range events {
		bc, ok := ev.(event.BuildingComplete)
		if !ok {
			t.Fatalf("event %d is %T", i, ev)
		}
		if !bc.At.Equal(times[i]) {
			t.Fatalf("event %d finished at %v, expected %v", i, bc.At, times[i])
		}
	}
	levels := w.BuildingLevels.Get(planet)
	if levels.Level(data.MetalMine) != 2 || levels.Level(data.SolarPlant) != 1 {
		t.Fatalf("unexpected levels: mine=%d solar=%d",
			levels.Level(data.MetalMine), levels.Level(data.SolarPlant))
	}
	if len(w.BuildQueues.Get(planet).Orders) != 0 {
		t.Fatalf("queue not drained")
	}
}

func TestConstructionHeadNotDueYet(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w, planet := newWorld(t, t0)

	q := w.BuildQueues.Get(planet)
	q.Orders = []world.BuildOrder{
		{Building: data.MetalMine, TargetLevel: 1, Duration: time.Hour, CompleteAt: t0.Add(time.Hour)},
	}

	events := NewConstruction().Process(w, t0.Add(time.Minute), time.Minute)
	if len(events) != 0 {
		t.Fatalf("expected no events before completion, got %d", len(events))
	}
	if lvl := w.BuildingLevels.Get(planet).Level(data.MetalMine); lvl != 0 {
		t.Fatalf("level changed early: %d", lvl)
	}
}

func TestConstructionDemolishRefund(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w, planet := newWorld(t, t0)
	bal := w.Balance

	setLevel(w, planet, data.MetalMine, 3)
	setResources(w, planet, 0, 0, 0)

	q := w.BuildQueues.Get(planet)
	q.Orders = []world.BuildOrder{
		{Building: data.MetalMine, TargetLevel: 2, Duration: time.Minute, CompleteAt: t0.Add(time.Minute), Demolish: true},
	}

	events := NewConstruction().Process(w, t0.Add(2*time.Minute), 2*time.Minute)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	bd, ok := events[0].(event.BuildingDemolished)
	if !ok {
		t.Fatalf("expected demolition event, got %T", events[0])
	}
	if bd.NewLevel != 2 {
		t.Fatalf("expected level 2 after demolition, got %d", bd.NewLevel)
	}
	if lvl := w.BuildingLevels.Get(planet).Level(data.MetalMine); lvl != 2 {
		t.Fatalf("expected level 2, got %d", lvl)
	}

	// Refund is a fraction of what the removed level cost (the upgrade from
	// level 2 to 3).
	want := bal.BuildingCost(data.MetalMine, 2).Scale(bal.DemolishRefundFraction)
	res := w.Stockpiles.Get(planet)
	if !approxEqual(res.Metal, want.Metal, 1e-6) || !approxEqual(res.Crystal, want.Crystal, 1e-6) {
		t.Fatalf("expected refund %v/%v, got %v/%v", want.Metal, want.Crystal, res.Metal, res.Crystal)
	}
}

func TestResearchCompletes(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w, _ := newWorld(t, t0)

	pe, _ := w.PlayerEntity(1)
	w.ResearchOrders.Set(pe, world.ResearchOrder{
		Tech:        data.EnergyTech,
		TargetLevel: 1,
		CompleteAt:  t0.Add(time.Minute),
	})

	sys := NewResearchSystem()
	if events := sys.Process(w, t0.Add(30*time.Second), 30*time.Second); len(events) != 0 {
		t.Fatalf("research completed early")
	}
	events := sys.Process(w, t0.Add(2*time.Minute), 90*time.Second)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	rc := events[0].(event.ResearchComplete)
	if rc.Research != data.EnergyTech || rc.NewLevel != 1 {
		t.Fatalf("unexpected event: %+v", rc)
	}
	if lvl := w.Researches.Get(pe).Level(data.EnergyTech); lvl != 1 {
		t.Fatalf("expected energy tech 1, got %d", lvl)
	}
	if w.ResearchOrders.Has(pe) {
		t.Fatalf("research order not cleared")
	}
}

func TestShipyardChainedBatches(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w, planet := newWorld(t, t0)

	q := w.ShipyardQueues.Get(planet)
	q.Orders = []world.ShipOrder{
		{Ship: data.LightFighter, Count: 5, Duration: time.Minute, CompleteAt: t0.Add(time.Minute)},
		{Ship: data.Cruiser, Count: 2, Duration: 2 * time.Minute},
	}

	events := NewShipyardSystem().Process(w, t0.Add(5*time.Minute), 5*time.Minute)
	if len(events) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(events))
	}
	second := events[1].(event.ShipsBuilt)
	if !second.At.Equal(t0.Add(3 * time.Minute)) {
		t.Fatalf("second batch should chain off the first: %v", second.At)
	}
	hangar := w.Hangars.Get(planet)
	if hangar.Ships[data.LightFighter] != 5 || hangar.Ships[data.Cruiser] != 2 {
		t.Fatalf("unexpected hangar: %+v", hangar.Ships)
	}
}

func TestUpkeepRetiresDormantPlayers(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w, _ := newWorld(t, t0)
	addSecondPlayer(t, w, 2, world.Coords{Galaxy: 1, System: 2, Position: 3}, t0)

	// Player 2 stays active, player 1 goes dormant.
	w.TouchActivity(2, t0.Add(89*24*time.Hour))

	sys := NewUpkeep(90*24*time.Hour, time.Hour)
	events := sys.Process(w, t0.Add(91*24*time.Hour), time.Second)
	if len(events) != 1 {
		t.Fatalf("expected 1 retirement, got %d", len(events))
	}
	if ev := events[0].(event.PlayerRetired); ev.UserID != 1 {
		t.Fatalf("expected player 1 retired, got %d", ev.UserID)
	}

	pe, _ := w.PlayerEntity(1)
	if !w.Players.Get(pe).Retired {
		t.Fatalf("player 1 not flagged retired")
	}

	// Sweep is rate limited: immediately after, nothing runs.
	if events := sys.Process(w, t0.Add(91*24*time.Hour).Add(time.Second), time.Second); len(events) != 0 {
		t.Fatalf("sweep ran again inside the rate limit window")
	}
}

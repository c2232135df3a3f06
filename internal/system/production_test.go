package system

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stellarion/server/internal/core/event"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

func TestProductionCatchUpEquivalence(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	setup := func() (*world.State, *world.Resources) {
		w, planet := newWorld(t, t0)
		setLevel(w, planet, data.MetalMine, 3)
		setLevel(w, planet, data.CrystalMine, 2)
		setLevel(w, planet, data.DeuteriumSynthesizer, 1)
		setLevel(w, planet, data.SolarPlant, 6)
		return w, w.Stockpiles.Get(planet)
	}

	sys := NewProduction()

	// World A: sixty one-minute ticks.
	wa, resA := setup()
	for i := 1; i <= 60; i++ {
		sys.Process(wa, t0.Add(time.Duration(i)*time.Minute), time.Minute)
	}

	// World B: one catch-up tick covering the same hour.
	wb, resB := setup()
	sys.Process(wb, t0.Add(time.Hour), time.Hour)

	if !approxEqual(resA.Metal, resB.Metal, 1e-6) ||
		!approxEqual(resA.Crystal, resB.Crystal, 1e-6) ||
		!approxEqual(resA.Deuterium, resB.Deuterium, 1e-6) {
		t.Fatalf("catch-up mismatch: stepped %v/%v/%v vs single %v/%v/%v",
			resA.Metal, resA.Crystal, resA.Deuterium,
			resB.Metal, resB.Crystal, resB.Deuterium)
	}
	if resA.Metal <= 500 {
		t.Fatalf("expected metal growth, got %v", resA.Metal)
	}
}

func TestProductionEnergyDeficitSoftFloor(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w, planet := newWorld(t, t0)
	bal := w.Balance

	// Mines with no power plant at all: output is floored, not zeroed.
	setLevel(w, planet, data.MetalMine, 2)
	setResources(w, planet, 0, 0, 0)

	events := NewProduction().Process(w, t0.Add(time.Hour), time.Hour)

	var deficit *event.EnergyDeficit
	for _, ev := range events {
		if d, ok := ev.(event.EnergyDeficit); ok {
			deficit = &d
		}
	}
	if deficit == nil {
		t.Fatalf("expected an energy deficit event")
	}
	if deficit.Factor != bal.Energy.DeficitSoftFloor {
		t.Fatalf("expected factor %v, got %v", bal.Energy.DeficitSoftFloor, deficit.Factor)
	}

	wantMetal := bal.Production.BaseRates[data.MetalMine] * 1.1 * 1.1 * bal.Energy.DeficitSoftFloor
	res := w.Stockpiles.Get(planet)
	if !approxEqual(res.Metal, wantMetal, 1e-6) {
		t.Fatalf("expected %v metal at the soft floor, got %v", wantMetal, res.Metal)
	}
}

func TestProductionFullPowerNoDeficitEvent(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w, planet := newWorld(t, t0)

	setLevel(w, planet, data.MetalMine, 1)
	setLevel(w, planet, data.SolarPlant, 5)

	events := NewProduction().Process(w, t0.Add(time.Hour), time.Hour)
	for _, ev := range events {
		if _, ok := ev.(event.EnergyDeficit); ok {
			t.Fatalf("unexpected deficit event with surplus energy")
		}
	}
}

func TestProductionStorageClampAndEvent(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w, planet := newWorld(t, t0)

	// Solar covers the mine; metal sits just under the level-0 cap of 10000.
	setLevel(w, planet, data.MetalMine, 1)
	setLevel(w, planet, data.SolarPlant, 5)
	setResources(w, planet, 9990, 0, 0)

	sys := NewProduction()
	events := sys.Process(w, t0.Add(time.Hour), time.Hour)

	res := w.Stockpiles.Get(planet)
	if res.Metal != 10000 {
		t.Fatalf("expected metal clamped at 10000, got %v", res.Metal)
	}
	sawFull := false
	for _, ev := range events {
		if f, ok := ev.(event.StorageFull); ok && f.Resource == data.Metal {
			sawFull = true
			if f.Capacity != 10000 {
				t.Fatalf("expected capacity 10000, got %v", f.Capacity)
			}
		}
	}
	if !sawFull {
		t.Fatalf("expected a storage full event when crossing the cap")
	}

	// Already full: no repeat event, no overflow.
	events = sys.Process(w, t0.Add(2*time.Hour), time.Hour)
	for _, ev := range events {
		if f, ok := ev.(event.StorageFull); ok && f.Resource == data.Metal {
			t.Fatalf("storage full event repeated while already at cap")
		}
	}
	if res.Metal != 10000 {
		t.Fatalf("metal overflowed the cap: %v", res.Metal)
	}
}

func TestProductionRetiredOwnerSkipped(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w, planet := newWorld(t, t0)
	setLevel(w, planet, data.MetalMine, 4)
	setLevel(w, planet, data.SolarPlant, 8)
	w.RetirePlayer(1)

	NewProduction().Process(w, t0.Add(time.Hour), time.Hour)

	res := w.Stockpiles.Get(planet)
	if res.Metal != 500 {
		t.Fatalf("retired planet accrued resources: %v", res.Metal)
	}
	if got := w.Productions.Get(planet).LastUpdate; !got.Equal(t0.Add(time.Hour)) {
		t.Fatalf("retired planet must still advance its clock, got %v", got)
	}
}

func TestProductionFusionBurnsDeuterium(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w, planet := newWorld(t, t0)
	bal := w.Balance

	setLevel(w, planet, data.FusionReactor, 2)
	setResources(w, planet, 0, 0, 100)

	NewProduction().Process(w, t0.Add(time.Hour), time.Hour)

	// Baseline synthesizer output accrues, then the reactor burns its share.
	gain := bal.Production.BaseRates[data.DeuteriumSynthesizer] * data.TemperatureMultiplier(0)
	want := 100 + gain - bal.Energy.FusionDeutPerLvl*2
	res := w.Stockpiles.Get(planet)
	if !approxEqual(res.Deuterium, want, 1e-6) {
		t.Fatalf("expected %v deuterium after fusion burn, got %v", want, res.Deuterium)
	}
}

func TestProductionCatchUpEquivalenceVariedWorlds(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(1337))
	sys := NewProduction()

	for trial := 0; trial < 25; trial++ {
		levels := map[data.BuildingType]int{
			data.MetalMine:            rng.Intn(9),
			data.CrystalMine:          rng.Intn(9),
			data.DeuteriumSynthesizer: rng.Intn(6),
			data.SolarPlant:           rng.Intn(13), // low rolls force a deficit
		}
		steps := 2 + rng.Intn(59)
		stepDur := time.Duration(10+rng.Intn(110)) * time.Second
		total := time.Duration(steps) * stepDur

		build := func() (*world.State, *world.Resources) {
			w, planet := newWorld(t, t0)
			for b, lvl := range levels {
				setLevel(w, planet, b, lvl)
			}
			return w, w.Stockpiles.Get(planet)
		}

		wa, resA := build()
		for i := 1; i <= steps; i++ {
			sys.Process(wa, t0.Add(time.Duration(i)*stepDur), stepDur)
		}
		wb, resB := build()
		sys.Process(wb, t0.Add(total), total)

		if !approxEqual(resA.Metal, resB.Metal, 1e-6) ||
			!approxEqual(resA.Crystal, resB.Crystal, 1e-6) ||
			!approxEqual(resA.Deuterium, resB.Deuterium, 1e-6) {
			t.Fatalf("trial %d (levels %v, %d x %v): stepped %v/%v/%v vs single %v/%v/%v",
				trial, levels, steps, stepDur,
				resA.Metal, resA.Crystal, resA.Deuterium,
				resB.Metal, resB.Crystal, resB.Deuterium)
		}
		if resA.Metal < 0 || resA.Crystal < 0 || resA.Deuterium < 0 {
			t.Fatalf("trial %d: negative stock %v/%v/%v", trial, resA.Metal, resA.Crystal, resA.Deuterium)
		}
	}
}

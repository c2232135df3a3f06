package data

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBuildingCostCurve(t *testing.T) {
	b := Default()

	c0 := b.BuildingCost(MetalMine, 0)
	if c0.Metal != 60 || c0.Crystal != 15 {
		t.Fatalf("level 0 cost: %+v", c0)
	}
	c3 := b.BuildingCost(MetalMine, 3)
	want := 60 * math.Pow(1.5, 3)
	if math.Abs(c3.Metal-want) > 1e-9 {
		t.Fatalf("level 3 metal cost %v, expected %v", c3.Metal, want)
	}
}

func TestBuildingTimeModifiers(t *testing.T) {
	b := Default()

	base := b.BuildingTime(MetalMine, 0, 0, 0)
	if base != time.Minute {
		t.Fatalf("base time %v, expected 1m", base)
	}

	// Each robot factory level divides by 1 + 0.1 per level.
	robo := b.BuildingTime(MetalMine, 0, 5, 0)
	if want := time.Duration(60.0 / 1.5 * float64(time.Second)); robo != want {
		t.Fatalf("robot-adjusted time %v, expected %v", robo, want)
	}

	// Hyperspace reduction bottoms out at the minimum factor.
	capped := b.BuildingTime(MetalMine, 0, 0, 100)
	if want := time.Duration(60 * 0.5 * float64(time.Second)); capped != want {
		t.Fatalf("capped time %v, expected %v", capped, want)
	}
}

func TestDemolishRefund(t *testing.T) {
	b := Default()

	if r := b.DemolishRefund(MetalMine, 0); r != (Cost{}) {
		t.Fatalf("refund at level 0: %+v", r)
	}
	r := b.DemolishRefund(MetalMine, 3)
	want := b.BuildingCost(MetalMine, 2).Scale(b.DemolishRefundFraction)
	if math.Abs(r.Metal-want.Metal) > 1e-9 {
		t.Fatalf("refund %v, expected %v", r.Metal, want.Metal)
	}
}

func TestEnergyHelpers(t *testing.T) {
	b := Default()

	if got := b.SolarOutput(0); got != 0 {
		t.Fatalf("solar at level 0: %v", got)
	}
	if got := b.SolarOutput(1); got != 20 {
		t.Fatalf("solar at level 1: %v", got)
	}
	want := 20 * 3 * math.Pow(1.1, 2)
	if got := b.SolarOutput(3); math.Abs(got-want) > 1e-9 {
		t.Fatalf("solar at level 3: %v, expected %v", got, want)
	}

	if got := b.EnergyUse(MetalMine, 0); got != 0 {
		t.Fatalf("consumption at level 0: %v", got)
	}
	want = 3 * 4 * math.Pow(1.1, 3)
	if got := b.EnergyUse(MetalMine, 4); math.Abs(got-want) > 1e-9 {
		t.Fatalf("consumption at level 4: %v, expected %v", got, want)
	}
}

func TestStorageAndFleetCapacity(t *testing.T) {
	b := Default()

	if got := b.StorageCapacity(Metal, 0, 1.0); got != 10000 {
		t.Fatalf("base storage: %v", got)
	}
	want := 10000 * math.Pow(1.5, 2) * 1.2
	if got := b.StorageCapacity(Metal, 2, 1.2); math.Abs(got-want) > 1e-9 {
		t.Fatalf("storage at level 2: %v, expected %v", got, want)
	}

	if got := b.FleetCapacity(0); got != 50 {
		t.Fatalf("base fleet capacity: %v", got)
	}
	if got := b.FleetCapacity(4); got != 90 {
		t.Fatalf("fleet capacity with computer 4: %v", got)
	}
}

func TestPlanetMultipliers(t *testing.T) {
	if got := SizeMultiplier(163); got != 1.0 {
		t.Fatalf("neutral size multiplier: %v", got)
	}
	if got := SizeMultiplier(10); got != 0.5 {
		t.Fatalf("size multiplier floor: %v", got)
	}
	if got := SizeMultiplier(1000); got != 1.5 {
		t.Fatalf("size multiplier cap: %v", got)
	}

	if got := TemperatureMultiplier(110); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("hot planet multiplier: %v", got)
	}
	if got := TemperatureMultiplier(500); got != 0.5 {
		t.Fatalf("temperature floor: %v", got)
	}
	if got := TemperatureMultiplier(-200); got != 1.6 {
		t.Fatalf("temperature cap: %v", got)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	b, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if b.CostGrowth != 1.5 {
		t.Fatalf("defaults not returned: %+v", b.CostGrowth)
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balance.yaml")
	overlay := `
cost_growth: 1.8
fleet:
  base_max_size: 75
  size_per_computer_level: 10
  colonization_time_sec: 1
  max_planets_per_player: 9
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	b, err := Load(path)
	if err != nil {
		t.Fatalf("load overlay: %v", err)
	}
	if b.CostGrowth != 1.8 {
		t.Fatalf("overlay not applied: %v", b.CostGrowth)
	}
	if b.Fleet.BaseMaxSize != 75 {
		t.Fatalf("nested overlay not applied: %v", b.Fleet.BaseMaxSize)
	}
	// Untouched tables keep their defaults.
	if b.Ships[LightFighter].Attack != 50 {
		t.Fatalf("unrelated table changed: %v", b.Ships[LightFighter].Attack)
	}
}

func TestLoadRejectsInvalidTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("cost_growth: 0.9\n"), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("invalid growth factor accepted")
	}
}

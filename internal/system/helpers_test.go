package system

import (
	"testing"
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

// newWorld builds a state with one player whose homeworld sits at the neutral
// size and temperature, so production multipliers are 1.0.
func newWorld(t *testing.T, now time.Time) (*world.State, ecs.EntityID) {
	t.Helper()
	w := world.NewState(data.Default())
	if _, err := w.CreatePlayer(1, "tester", world.Coords{Galaxy: 1, System: 1, Position: 3}, 163, 0, now); err != nil {
		t.Fatalf("create player: %v", err)
	}
	planet, ok := w.ActivePlanet(1)
	if !ok {
		t.Fatalf("no homeworld")
	}
	return w, planet
}

func setLevel(w *world.State, planet ecs.EntityID, b data.BuildingType, level int) {
	w.BuildingLevels.Get(planet).Levels[b] = level
}

func setResources(w *world.State, planet ecs.EntityID, metal, crystal, deuterium float64) {
	res := w.Stockpiles.Get(planet)
	res.Metal, res.Crystal, res.Deuterium = metal, crystal, deuterium
}

func addSecondPlayer(t *testing.T, w *world.State, userID int64, c world.Coords, now time.Time) ecs.EntityID {
	t.Helper()
	if _, err := w.CreatePlayer(userID, "rival", c, 163, 0, now); err != nil {
		t.Fatalf("create player %d: %v", userID, err)
	}
	planet, ok := w.ActivePlanet(userID)
	if !ok {
		t.Fatalf("no homeworld for player %d", userID)
	}
	return planet
}

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

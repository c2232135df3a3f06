package persist

import (
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

// Batch is a point-in-time copy of changed state, built under the world lock
// and handed to the bridge so database writes never touch live structures.
type Batch struct {
	At    time.Time
	Force bool // bypass per-planet write throttling (shutdown flush)

	Planets []PlanetRecord
	Players []PlayerRecord
	Fleets  []FleetRecord

	Offers           []world.MarketOffer
	Trades           []world.TradeRecord
	BattleReports    []world.BattleReport
	EspionageReports []world.EspionageReport

	// Cursor positions before the report and trade rows above were taken.
	// Reports and trades are consumed from the world exactly once, so a
	// batch that never reaches the database must hand them back via Restage
	// or absorb.
	reportCursor int64
	tradeCursor  int64
}

// absorb prepends a superseded batch's consume-once rows. Planet, player,
// fleet, and offer rows are rebuilt from live state on every flush and are
// dropped with the old batch.
func (b *Batch) absorb(prev *Batch) {
	b.Trades = append(prev.Trades, b.Trades...)
	b.BattleReports = append(prev.BattleReports, b.BattleReports...)
	b.EspionageReports = append(prev.EspionageReports, b.EspionageReports...)
	if prev.reportCursor < b.reportCursor {
		b.reportCursor = prev.reportCursor
	}
	if prev.tradeCursor < b.tradeCursor {
		b.tradeCursor = prev.tradeCursor
	}
	b.Force = b.Force || prev.Force
}

// Restage returns a rejected batch's report and trade rows to the world by
// rewinding the persistence cursors, so the next BuildBatch offers them
// again. The caller must hold the world write lock.
func Restage(s *world.State, b Batch) {
	s.RewindSaveCursors(b.reportCursor, b.tradeCursor)
}

type PlanetRecord struct {
	Coords      world.Coords
	OwnerID     int64
	Name        string
	Size        int
	Temperature int
	Homeworld   bool

	Metal      float64
	Crystal    float64
	Deuterium  float64
	LastUpdate time.Time

	Buildings     map[data.BuildingType]int `json:"buildings"`
	BuildQueue    []world.BuildOrder        `json:"build_queue"`
	ShipyardQueue []world.ShipOrder         `json:"shipyard_queue"`
	Hangar        map[data.ShipType]int     `json:"hangar"`
}

type PlayerRecord struct {
	UserID       int64
	Name         string
	LastActivity time.Time
	Retired      bool
	ActivePlanet world.Coords

	Research map[data.ResearchType]int
	Order    *world.ResearchOrder
}

type FleetRecord struct {
	ID       int64
	OwnerID  int64
	Ships    map[data.ShipType]int
	Cargo    world.Resources
	Movement world.Movement
}

// BuildBatch copies the given dirty planets and players out of the world,
// along with all in-flight fleets and any unsaved market and report entries.
// The caller must hold the world write lock.
func BuildBatch(s *world.State, planets []ecs.EntityID, players []int64, now time.Time) Batch {
	b := Batch{At: now}

	for _, e := range planets {
		if !s.Alive(e) {
			continue
		}
		planet := s.Planets.Get(e)
		pos := s.Positions.Get(e)
		res := s.Stockpiles.Get(e)
		prod := s.Productions.Get(e)
		if planet == nil || pos == nil || res == nil || prod == nil {
			continue
		}
		rec := PlanetRecord{
			Coords:      *pos,
			OwnerID:     planet.OwnerID,
			Name:        planet.Name,
			Size:        planet.Size,
			Temperature: planet.Temperature,
			Homeworld:   planet.Homeworld,
			Metal:       res.Metal,
			Crystal:     res.Crystal,
			Deuterium:   res.Deuterium,
			LastUpdate:  prod.LastUpdate,
			Buildings:   map[data.BuildingType]int{},
			Hangar:      map[data.ShipType]int{},
		}
		for t, lvl := range s.BuildingLevels.Get(e).Levels {
			rec.Buildings[t] = lvl
		}
		rec.BuildQueue = append(rec.BuildQueue, s.BuildQueues.Get(e).Orders...)
		rec.ShipyardQueue = append(rec.ShipyardQueue, s.ShipyardQueues.Get(e).Orders...)
		for t, n := range s.Hangars.Get(e).Ships {
			rec.Hangar[t] = n
		}
		b.Planets = append(b.Planets, rec)
	}

	for _, id := range players {
		pe, ok := s.PlayerEntity(id)
		if !ok {
			continue
		}
		p := s.Players.Get(pe)
		rec := PlayerRecord{
			UserID:       p.UserID,
			Name:         p.Name,
			LastActivity: p.LastActivity,
			Retired:      p.Retired,
			Research:     map[data.ResearchType]int{},
		}
		if p.ActivePlanet != 0 && s.Alive(p.ActivePlanet) {
			if c := s.Positions.Get(p.ActivePlanet); c != nil {
				rec.ActivePlanet = *c
			}
		}
		if r := s.Researches.Get(pe); r != nil {
			for t, lvl := range r.Levels {
				rec.Research[t] = lvl
			}
		}
		if o := s.ResearchOrders.Get(pe); o != nil {
			cp := *o
			rec.Order = &cp
		}
		b.Players = append(b.Players, rec)
	}

	ecs.Each2(s.Fleets, s.Movements, func(_ ecs.EntityID, f *world.Fleet, mv *world.Movement) {
		rec := FleetRecord{
			ID:       f.ID,
			OwnerID:  f.OwnerID,
			Ships:    map[data.ShipType]int{},
			Cargo:    f.Cargo,
			Movement: *mv,
		}
		for t, n := range f.Ships {
			rec.Ships[t] = n
		}
		b.Fleets = append(b.Fleets, rec)
	})

	for _, o := range s.OffersByStatus("", 0, 0) {
		b.Offers = append(b.Offers, *o)
	}
	b.reportCursor, b.tradeCursor = s.SaveCursors()
	battles, spies, trades := s.TakeUnsavedReports()
	for _, r := range battles {
		b.BattleReports = append(b.BattleReports, *r)
	}
	for _, r := range spies {
		b.EspionageReports = append(b.EspionageReports, *r)
	}
	b.Trades = append(b.Trades, trades...)
	return b
}

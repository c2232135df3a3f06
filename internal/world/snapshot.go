package world

import (
	"fmt"
	"sort"
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/data"
)

// Views are deep copies taken under the read lock, safe to hand to other
// goroutines while the scheduler keeps mutating the world.

type BuildOrderView struct {
	Building    data.BuildingType
	TargetLevel int
	Demolish    bool
	CompleteAt  time.Time
}

type ShipOrderView struct {
	Ship       data.ShipType
	Count      int
	CompleteAt time.Time
}

type PlanetView struct {
	Coords        Coords
	Name          string
	Homeworld     bool
	Size          int
	Temperature   int
	Resources     Resources
	LastUpdate    time.Time
	Buildings     map[data.BuildingType]int
	BuildQueue    []BuildOrderView
	ShipyardQueue []ShipOrderView
	Hangar        map[data.ShipType]int
}

type FleetView struct {
	ID        int64
	Ships     map[data.ShipType]int
	Cargo     Resources
	Mission   Mission
	Origin    Coords
	Target    Coords
	ArrivalAt time.Time
	Recalled  bool
}

type ResearchOrderView struct {
	Tech        data.ResearchType
	TargetLevel int
	CompleteAt  time.Time
}

type PlayerView struct {
	UserID       int64
	Name         string
	LastActivity time.Time
	Retired      bool
	Research     map[data.ResearchType]int
	ActiveOrder  *ResearchOrderView
	ActivePlanet Coords
	Planets      []PlanetView
	Fleets       []FleetView
}

// Snapshot builds a consistent view of one player's empire. It takes the read
// lock itself; callers must not hold the write lock.
func (s *State) Snapshot(userID int64) (PlayerView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pe, ok := s.playersByID[userID]
	if !ok {
		return PlayerView{}, fmt.Errorf("player %d not found", userID)
	}
	p := s.Players.Get(pe)
	view := PlayerView{
		UserID:       p.UserID,
		Name:         p.Name,
		LastActivity: p.LastActivity,
		Retired:      p.Retired,
		Research:     map[data.ResearchType]int{},
	}
	if r := s.Researches.Get(pe); r != nil {
		for t, lvl := range r.Levels {
			view.Research[t] = lvl
		}
	}
	if o := s.ResearchOrders.Get(pe); o != nil {
		view.ActiveOrder = &ResearchOrderView{Tech: o.Tech, TargetLevel: o.TargetLevel, CompleteAt: o.CompleteAt}
	}
	if p.ActivePlanet != 0 && s.ents.Alive(p.ActivePlanet) {
		if c := s.Positions.Get(p.ActivePlanet); c != nil {
			view.ActivePlanet = *c
		}
	}
	for _, pl := range s.planetsByOwner[userID] {
		if !s.ents.Alive(pl) {
			continue
		}
		view.Planets = append(view.Planets, s.planetView(pl))
	}
	ecs.Each2(s.Fleets, s.Movements, func(e ecs.EntityID, f *Fleet, mv *Movement) {
		if f.OwnerID != userID {
			return
		}
		fv := FleetView{
			ID:        f.ID,
			Ships:     map[data.ShipType]int{},
			Cargo:     f.Cargo,
			Mission:   mv.Mission,
			Origin:    mv.Origin,
			Target:    mv.Target,
			ArrivalAt: mv.ArrivalAt,
			Recalled:  mv.Recalled,
		}
		for t, c := range f.Ships {
			fv.Ships[t] = c
		}
		view.Fleets = append(view.Fleets, fv)
	})
	sort.Slice(view.Fleets, func(i, j int) bool { return view.Fleets[i].ID < view.Fleets[j].ID })
	return view, nil
}

func (s *State) planetView(e ecs.EntityID) PlanetView {
	planet := s.Planets.Get(e)
	pos := s.Positions.Get(e)
	res := s.Stockpiles.Get(e)
	prod := s.Productions.Get(e)
	pv := PlanetView{
		Coords:      *pos,
		Name:        planet.Name,
		Homeworld:   planet.Homeworld,
		Size:        planet.Size,
		Temperature: planet.Temperature,
		Resources:   *res,
		LastUpdate:  prod.LastUpdate,
		Buildings:   map[data.BuildingType]int{},
		Hangar:      map[data.ShipType]int{},
	}
	for t, lvl := range s.BuildingLevels.Get(e).Levels {
		pv.Buildings[t] = lvl
	}
	for _, o := range s.BuildQueues.Get(e).Orders {
		pv.BuildQueue = append(pv.BuildQueue, BuildOrderView{
			Building: o.Building, TargetLevel: o.TargetLevel, Demolish: o.Demolish, CompleteAt: o.CompleteAt,
		})
	}
	for _, o := range s.ShipyardQueues.Get(e).Orders {
		pv.ShipyardQueue = append(pv.ShipyardQueue, ShipOrderView{Ship: o.Ship, Count: o.Count, CompleteAt: o.CompleteAt})
	}
	for t, c := range s.Hangars.Get(e).Ships {
		pv.Hangar[t] = c
	}
	return pv
}

package world

import (
	"fmt"
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/data"
)

// Restore methods rebuild a fresh State from persisted rows at boot. They
// bypass gameplay validation and dirty tracking: the data came from the
// database, so writing it straight back would be a wasted round trip.
// Callers run before the engine starts, with no lock needed.

// RestorePlayer recreates a player entity without a homeworld. Planets are
// restored separately and linked afterwards with LinkActivePlanet.
func (s *State) RestorePlayer(userID int64, name string, lastActivity time.Time, retired bool, research map[data.ResearchType]int, order *ResearchOrder) error {
	if _, ok := s.playersByID[userID]; ok {
		return fmt.Errorf("player %d restored twice", userID)
	}
	e := s.ents.CreateEntity()
	s.Players.Set(e, Player{UserID: userID, Name: name, LastActivity: lastActivity, Retired: retired})
	r := NewResearch()
	for t, lvl := range research {
		r.Levels[t] = lvl
	}
	s.Researches.Set(e, r)
	if order != nil {
		s.ResearchOrders.Set(e, *order)
	}
	s.playersByID[userID] = e
	return nil
}

// RestorePlanet recreates a planet entity with its full stored contents.
func (s *State) RestorePlanet(ownerID int64, c Coords, name string, size, temperature int, homeworld bool,
	res Resources, lastUpdate time.Time,
	buildings map[data.BuildingType]int, buildQueue []BuildOrder,
	shipyardQueue []ShipOrder, hangar map[data.ShipType]int) (ecs.EntityID, error) {
	if _, ok := s.playersByID[ownerID]; !ok {
		return 0, fmt.Errorf("planet %s references unknown player %d", c, ownerID)
	}
	if _, taken := s.planetsByCoords[c]; taken {
		return 0, fmt.Errorf("coordinates %s restored twice", c)
	}
	e := s.ents.CreateEntity()
	s.Planets.Set(e, Planet{OwnerID: ownerID, Name: name, Size: size, Temperature: temperature, Homeworld: homeworld})
	s.Positions.Set(e, c)
	s.Stockpiles.Set(e, res)
	s.Productions.Set(e, Production{LastUpdate: lastUpdate})
	b := NewBuildings()
	for t, lvl := range buildings {
		b.Levels[t] = lvl
	}
	s.BuildingLevels.Set(e, b)
	s.BuildQueues.Set(e, BuildQueue{Orders: append([]BuildOrder(nil), buildQueue...)})
	h := NewHangar()
	for t, n := range hangar {
		h.Ships[t] = n
	}
	s.Hangars.Set(e, h)
	s.ShipyardQueues.Set(e, ShipyardQueue{Orders: append([]ShipOrder(nil), shipyardQueue...)})
	s.planetsByCoords[c] = e
	s.planetsByOwner[ownerID] = append(s.planetsByOwner[ownerID], e)
	return e, nil
}

// LinkActivePlanet points a restored player at their selected planet, falling
// back to their first planet when the stored selection no longer resolves.
func (s *State) LinkActivePlanet(userID int64, c Coords) {
	pe, ok := s.playersByID[userID]
	if !ok {
		return
	}
	if e, found := s.planetsByCoords[c]; found && s.Planets.Get(e).OwnerID == userID {
		s.Players.Get(pe).ActivePlanet = e
		return
	}
	if owned := s.planetsByOwner[userID]; len(owned) > 0 {
		s.Players.Get(pe).ActivePlanet = owned[0]
	}
}

// RestoreFleet recreates an in-flight fleet under its persisted id.
func (s *State) RestoreFleet(id, ownerID int64, ships map[data.ShipType]int, cargo Resources, mv Movement) error {
	if _, ok := s.fleetsByID[id]; ok {
		return fmt.Errorf("fleet %d restored twice", id)
	}
	e := s.ents.CreateEntity()
	cp := make(map[data.ShipType]int, len(ships))
	for t, n := range ships {
		cp[t] = n
	}
	s.Fleets.Set(e, Fleet{ID: id, OwnerID: ownerID, Ships: cp, Cargo: cargo})
	s.Movements.Set(e, mv)
	s.fleetsByID[id] = e
	if id >= s.nextFleetID {
		s.nextFleetID = id + 1
	}
	return nil
}

// RestoreOffer reinstates a market offer under its persisted id.
func (s *State) RestoreOffer(o MarketOffer) {
	cp := o
	s.offers = append(s.offers, &cp)
	if o.ID >= s.nextOfferID {
		s.nextOfferID = o.ID + 1
	}
}

// SeedLedgerCursors positions the report and trade counters past everything
// already persisted, so new entries get fresh ids and old ones are not
// rewritten.
func (s *State) SeedLedgerCursors(maxReportID, maxTradeSeq int64) {
	if maxReportID >= s.nextReportID {
		s.nextReportID = maxReportID + 1
	}
	s.savedReportID = s.nextReportID - 1
	if maxTradeSeq >= s.nextTradeSeq {
		s.nextTradeSeq = maxTradeSeq + 1
	}
	s.savedTradeSeq = s.nextTradeSeq - 1
}

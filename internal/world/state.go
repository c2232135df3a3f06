// Package world holds the authoritative game state: an entity-component
// world plus the indexes and ledgers built on top of it. All mutation happens
// on the scheduler goroutine under the write lock; readers take snapshots
// under the read lock.
package world

import (
	"fmt"
	"sync"
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/data"
)

const maxReportsPerKind = 500

// State is the single authoritative world. The zero value is not usable;
// construct with NewState.
type State struct {
	mu      sync.RWMutex
	Balance *data.Balance

	ents *ecs.World

	Players        *ecs.Store[Player]
	Planets        *ecs.Store[Planet]
	Positions      *ecs.Store[Coords]
	Stockpiles     *ecs.Store[Resources]
	Productions    *ecs.Store[Production]
	BuildingLevels *ecs.Store[Buildings]
	BuildQueues    *ecs.Store[BuildQueue]
	Hangars        *ecs.Store[Hangar]
	ShipyardQueues *ecs.Store[ShipyardQueue]
	Researches     *ecs.Store[Research]
	ResearchOrders *ecs.Store[ResearchOrder]
	Fleets         *ecs.Store[Fleet]
	Movements      *ecs.Store[Movement]
	Battles        *ecs.Store[Battle]

	playersByID     map[int64]ecs.EntityID
	planetsByCoords map[Coords]ecs.EntityID
	planetsByOwner  map[int64][]ecs.EntityID
	fleetsByID      map[int64]ecs.EntityID

	nextFleetID  int64
	nextReportID int64
	nextOfferID  int64
	nextTradeSeq int64

	savedReportID int64
	savedTradeSeq int64

	battleReports    []*BattleReport
	espionageReports []*EspionageReport
	offers           []*MarketOffer
	tradeHistory     []TradeRecord

	dirtyPlanets map[ecs.EntityID]struct{}
	dirtyPlayers map[int64]struct{}
}

func NewState(bal *data.Balance) *State {
	s := &State{
		Balance:         bal,
		ents:            ecs.NewWorld(),
		playersByID:     make(map[int64]ecs.EntityID),
		planetsByCoords: make(map[Coords]ecs.EntityID),
		planetsByOwner:  make(map[int64][]ecs.EntityID),
		fleetsByID:      make(map[int64]ecs.EntityID),
		nextFleetID:     1,
		nextReportID:    1,
		nextOfferID:     1,
		nextTradeSeq:    1,
		dirtyPlanets:    make(map[ecs.EntityID]struct{}),
		dirtyPlayers:    make(map[int64]struct{}),
	}
	s.Players = ecs.NewStore[Player]()
	s.Planets = ecs.NewStore[Planet]()
	s.Positions = ecs.NewStore[Coords]()
	s.Stockpiles = ecs.NewStore[Resources]()
	s.Productions = ecs.NewStore[Production]()
	s.BuildingLevels = ecs.NewStore[Buildings]()
	s.BuildQueues = ecs.NewStore[BuildQueue]()
	s.Hangars = ecs.NewStore[Hangar]()
	s.ShipyardQueues = ecs.NewStore[ShipyardQueue]()
	s.Researches = ecs.NewStore[Research]()
	s.ResearchOrders = ecs.NewStore[ResearchOrder]()
	s.Fleets = ecs.NewStore[Fleet]()
	s.Movements = ecs.NewStore[Movement]()
	s.Battles = ecs.NewStore[Battle]()

	reg := s.ents.Registry()
	reg.Register(s.Players)
	reg.Register(s.Planets)
	reg.Register(s.Positions)
	reg.Register(s.Stockpiles)
	reg.Register(s.Productions)
	reg.Register(s.BuildingLevels)
	reg.Register(s.BuildQueues)
	reg.Register(s.Hangars)
	reg.Register(s.ShipyardQueues)
	reg.Register(s.Researches)
	reg.Register(s.ResearchOrders)
	reg.Register(s.Fleets)
	reg.Register(s.Movements)
	reg.Register(s.Battles)
	return s
}

// Lock acquires the write lock. The scheduler holds it for a whole tick.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the write lock.
func (s *State) Unlock() { s.mu.Unlock() }

// RLock acquires the read lock for snapshot queries.
func (s *State) RLock() { s.mu.RLock() }

// RUnlock releases the read lock.
func (s *State) RUnlock() { s.mu.RUnlock() }

// --- entity lifecycle (write lock held) ---

// CreatePlayer registers a new account with a homeworld at the given slot.
func (s *State) CreatePlayer(userID int64, name string, home Coords, size, temperature int, now time.Time) (ecs.EntityID, error) {
	if _, ok := s.playersByID[userID]; ok {
		return 0, fmt.Errorf("player %d already exists", userID)
	}
	if !home.Valid(s.Balance.Universe) {
		return 0, fmt.Errorf("coordinates %s out of range", home)
	}
	if _, taken := s.planetsByCoords[home]; taken {
		return 0, fmt.Errorf("coordinates %s already occupied", home)
	}

	pe := s.ents.CreateEntity()
	s.Players.Set(pe, Player{UserID: userID, Name: name, LastActivity: now})
	s.Researches.Set(pe, NewResearch())
	s.playersByID[userID] = pe

	start := s.Balance.Starter
	planet := s.createPlanet(userID, home, start.PlanetName, size, temperature, now)
	s.Stockpiles.Get(planet).Credit(start.Resources)
	s.Planets.Get(planet).Homeworld = true
	s.Players.Get(pe).ActivePlanet = planet
	s.MarkPlayerDirty(userID)
	return pe, nil
}

// CreateColony adds a planet for an existing player at a free slot.
func (s *State) CreateColony(ownerID int64, c Coords, name string, size, temperature int, now time.Time) (ecs.EntityID, error) {
	if _, ok := s.playersByID[ownerID]; !ok {
		return 0, fmt.Errorf("player %d not found", ownerID)
	}
	if !c.Valid(s.Balance.Universe) {
		return 0, fmt.Errorf("coordinates %s out of range", c)
	}
	if _, taken := s.planetsByCoords[c]; taken {
		return 0, fmt.Errorf("coordinates %s already occupied", c)
	}
	if max := s.Balance.Fleet.MaxPlanetsPerPlayer; max > 0 && len(s.planetsByOwner[ownerID]) >= max {
		return 0, fmt.Errorf("player %d at planet limit", ownerID)
	}
	if name == "" {
		name = "Colony"
	}
	return s.createPlanet(ownerID, c, name, size, temperature, now), nil
}

func (s *State) createPlanet(ownerID int64, c Coords, name string, size, temperature int, now time.Time) ecs.EntityID {
	e := s.ents.CreateEntity()
	s.Planets.Set(e, Planet{OwnerID: ownerID, Name: name, Size: size, Temperature: temperature})
	s.Positions.Set(e, c)
	s.Stockpiles.Set(e, Resources{})
	s.Productions.Set(e, Production{LastUpdate: now})
	s.BuildingLevels.Set(e, NewBuildings())
	s.BuildQueues.Set(e, BuildQueue{})
	s.Hangars.Set(e, NewHangar())
	s.ShipyardQueues.Set(e, ShipyardQueue{})
	s.planetsByCoords[c] = e
	s.planetsByOwner[ownerID] = append(s.planetsByOwner[ownerID], e)
	s.MarkPlanetDirty(e)
	return e
}

// SpawnFleet detaches ships into a new in-flight fleet entity.
func (s *State) SpawnFleet(ownerID int64, ships map[data.ShipType]int, cargo Resources, mv Movement) ecs.EntityID {
	e := s.ents.CreateEntity()
	id := s.nextFleetID
	s.nextFleetID++
	s.Fleets.Set(e, Fleet{ID: id, OwnerID: ownerID, Ships: ships, Cargo: cargo})
	s.Movements.Set(e, mv)
	s.fleetsByID[id] = e
	return e
}

// RemoveFleet destroys a fleet entity after its ships have been merged back
// into a hangar or lost in battle.
func (s *State) RemoveFleet(e ecs.EntityID) {
	if f := s.Fleets.Get(e); f != nil {
		delete(s.fleetsByID, f.ID)
	}
	s.ents.MarkForDestruction(e)
}

// RetirePlayer soft-deletes an inactive account: planets stay on the map but
// stop simulating.
func (s *State) RetirePlayer(userID int64) {
	e, ok := s.playersByID[userID]
	if !ok {
		return
	}
	s.Players.Get(e).Retired = true
	s.MarkPlayerDirty(userID)
}

// FlushDestroyed removes entities marked for destruction this tick.
func (s *State) FlushDestroyed() { s.ents.FlushDestroyQueue() }

// --- lookups ---

func (s *State) PlayerEntity(userID int64) (ecs.EntityID, bool) {
	e, ok := s.playersByID[userID]
	return e, ok
}

func (s *State) PlanetAt(c Coords) (ecs.EntityID, bool) {
	e, ok := s.planetsByCoords[c]
	return e, ok
}

func (s *State) PlanetsOf(userID int64) []ecs.EntityID {
	return s.planetsByOwner[userID]
}

func (s *State) FleetByID(id int64) (ecs.EntityID, bool) {
	e, ok := s.fleetsByID[id]
	return e, ok
}

// ActivePlanet resolves a player's currently selected planet.
func (s *State) ActivePlanet(userID int64) (ecs.EntityID, bool) {
	pe, ok := s.playersByID[userID]
	if !ok {
		return 0, false
	}
	p := s.Players.Get(pe)
	if p == nil || p.ActivePlanet == 0 || !s.ents.Alive(p.ActivePlanet) {
		return 0, false
	}
	return p.ActivePlanet, true
}

// TouchActivity records a player action for the inactivity sweep.
func (s *State) TouchActivity(userID int64, now time.Time) {
	if e, ok := s.playersByID[userID]; ok {
		s.Players.Get(e).LastActivity = now
	}
}

// --- reports ---

func (s *State) AddBattleReport(r *BattleReport) int64 {
	r.ID = s.nextReportID
	s.nextReportID++
	s.battleReports = append(s.battleReports, r)
	if len(s.battleReports) > maxReportsPerKind {
		s.battleReports = s.battleReports[len(s.battleReports)-maxReportsPerKind:]
	}
	return r.ID
}

func (s *State) AddEspionageReport(r *EspionageReport) int64 {
	r.ID = s.nextReportID
	s.nextReportID++
	s.espionageReports = append(s.espionageReports, r)
	if len(s.espionageReports) > maxReportsPerKind {
		s.espionageReports = s.espionageReports[len(s.espionageReports)-maxReportsPerKind:]
	}
	return r.ID
}

// BattleReportsFor lists a user's battle reports, newest first.
func (s *State) BattleReportsFor(userID int64, limit, offset int) []*BattleReport {
	var out []*BattleReport
	for i := len(s.battleReports) - 1; i >= 0; i-- {
		r := s.battleReports[i]
		if r.AttackerID != userID && r.DefenderID != userID {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// EspionageReportsFor lists reports authored by the user, newest first.
func (s *State) EspionageReportsFor(userID int64, limit, offset int) []*EspionageReport {
	var out []*EspionageReport
	for i := len(s.espionageReports) - 1; i >= 0; i-- {
		r := s.espionageReports[i]
		if r.AttackerID != userID {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// --- market ---

func (s *State) AddOffer(o *MarketOffer) int64 {
	o.ID = s.nextOfferID
	s.nextOfferID++
	s.offers = append(s.offers, o)
	return o.ID
}

func (s *State) OfferByID(id int64) *MarketOffer {
	for _, o := range s.offers {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// OffersByStatus lists offers, newest first. Empty status lists all.
func (s *State) OffersByStatus(status OfferStatus, limit, offset int) []*MarketOffer {
	var out []*MarketOffer
	for i := len(s.offers) - 1; i >= 0; i-- {
		o := s.offers[i]
		if status != "" && o.Status != status {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (s *State) RecordTrade(rec TradeRecord) {
	rec.Seq = s.nextTradeSeq
	s.nextTradeSeq++
	s.tradeHistory = append(s.tradeHistory, rec)
	if len(s.tradeHistory) > maxReportsPerKind {
		s.tradeHistory = s.tradeHistory[len(s.tradeHistory)-maxReportsPerKind:]
	}
}

// TradeHistoryFor lists market events the user participated in, newest first.
func (s *State) TradeHistoryFor(userID int64, limit, offset int) []TradeRecord {
	var out []TradeRecord
	for i := len(s.tradeHistory) - 1; i >= 0; i-- {
		rec := s.tradeHistory[i]
		if rec.SellerID != userID && rec.BuyerID != userID {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// --- persistence dirty tracking ---

// MarkPlanetDirty flags a planet for the next persistence flush.
func (s *State) MarkPlanetDirty(e ecs.EntityID) {
	s.dirtyPlanets[e] = struct{}{}
}

// MarkPlayerDirty flags a player row for the next persistence flush.
func (s *State) MarkPlayerDirty(userID int64) {
	s.dirtyPlayers[userID] = struct{}{}
}

// DrainDirty returns and clears the sets of changed planets and players.
func (s *State) DrainDirty() (planets []ecs.EntityID, players []int64) {
	for e := range s.dirtyPlanets {
		if s.ents.Alive(e) {
			planets = append(planets, e)
		}
	}
	for id := range s.dirtyPlayers {
		players = append(players, id)
	}
	s.dirtyPlanets = make(map[ecs.EntityID]struct{})
	s.dirtyPlayers = make(map[int64]struct{})
	return planets, players
}

// TakeUnsavedReports returns reports and trade records added since the last
// call and advances the persistence cursors. Write lock held by the caller.
func (s *State) TakeUnsavedReports() (battles []*BattleReport, spies []*EspionageReport, trades []TradeRecord) {
	for _, r := range s.battleReports {
		if r.ID > s.savedReportID {
			battles = append(battles, r)
		}
	}
	for _, r := range s.espionageReports {
		if r.ID > s.savedReportID {
			spies = append(spies, r)
		}
	}
	s.savedReportID = s.nextReportID - 1
	for _, rec := range s.tradeHistory {
		if rec.Seq > s.savedTradeSeq {
			trades = append(trades, rec)
		}
	}
	s.savedTradeSeq = s.nextTradeSeq - 1
	return battles, spies, trades
}

// SaveCursors returns the persistence cursor positions. Write lock held by
// the caller.
func (s *State) SaveCursors() (reportID, tradeSeq int64) {
	return s.savedReportID, s.savedTradeSeq
}

// RewindSaveCursors moves the persistence cursors back so rows taken after
// the given positions are offered again by the next TakeUnsavedReports.
// Never advances a cursor. Write lock held by the caller.
func (s *State) RewindSaveCursors(reportID, tradeSeq int64) {
	if reportID < s.savedReportID {
		s.savedReportID = reportID
	}
	if tradeSeq < s.savedTradeSeq {
		s.savedTradeSeq = tradeSeq
	}
}

// Alive reports whether an entity still exists.
func (s *State) Alive(e ecs.EntityID) bool { return s.ents.Alive(e) }

// CreateEntity exposes raw entity creation for battles and tests.
func (s *State) CreateEntity() ecs.EntityID { return s.ents.CreateEntity() }

// MarkForDestruction queues an entity for removal at end of tick.
func (s *State) MarkForDestruction(e ecs.EntityID) { s.ents.MarkForDestruction(e) }

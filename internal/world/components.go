package world

import (
	"fmt"
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/data"
)

// Coords addresses a planet slot in the universe.
type Coords struct {
	Galaxy   int `yaml:"galaxy" json:"galaxy"`
	System   int `yaml:"system" json:"system"`
	Position int `yaml:"position" json:"position"`
}

func (c Coords) String() string {
	return fmt.Sprintf("%d:%d:%d", c.Galaxy, c.System, c.Position)
}

func (c Coords) Valid(u data.UniverseParams) bool {
	return c.Galaxy >= 1 && c.Galaxy <= u.Galaxies &&
		c.System >= 1 && c.System <= u.SystemsPerGalaxy &&
		c.Position >= 1 && c.Position <= u.PositionsPerSystem
}

// Distance is the linearized travel distance between two slots, in abstract
// units. Crossing a system boundary costs one full system of positions,
// crossing a galaxy boundary one full galaxy of systems.
func (c Coords) Distance(o Coords, u data.UniverseParams) float64 {
	dg := abs(c.Galaxy - o.Galaxy)
	ds := abs(c.System - o.System)
	dp := abs(c.Position - o.Position)
	return float64(dg*u.SystemsPerGalaxy*u.PositionsPerSystem + ds*u.PositionsPerSystem + dp)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Resources is a planet's stockpile. Fractional amounts are kept so that
// accruing production in many small ticks equals one large catch-up.
type Resources struct {
	Metal     float64
	Crystal   float64
	Deuterium float64
}

func (r Resources) CanAfford(c data.Cost) bool {
	return r.Metal >= c.Metal && r.Crystal >= c.Crystal && r.Deuterium >= c.Deuterium
}

func (r *Resources) Spend(c data.Cost) {
	r.Metal -= c.Metal
	r.Crystal -= c.Crystal
	r.Deuterium -= c.Deuterium
}

func (r *Resources) Credit(c data.Cost) {
	r.Metal += c.Metal
	r.Crystal += c.Crystal
	r.Deuterium += c.Deuterium
}

func (r Resources) Amount(k data.ResourceKind) float64 {
	switch k {
	case data.Metal:
		return r.Metal
	case data.Crystal:
		return r.Crystal
	case data.Deuterium:
		return r.Deuterium
	}
	return 0
}

func (r *Resources) SetAmount(k data.ResourceKind, v float64) {
	switch k {
	case data.Metal:
		r.Metal = v
	case data.Crystal:
		r.Crystal = v
	case data.Deuterium:
		r.Deuterium = v
	}
}

func (r *Resources) Add(o Resources) {
	r.Metal += o.Metal
	r.Crystal += o.Crystal
	r.Deuterium += o.Deuterium
}

// AsCost converts a stockpile to a Cost for refund and transfer arithmetic.
func (r Resources) AsCost() data.Cost {
	return data.Cost{Metal: r.Metal, Crystal: r.Crystal, Deuterium: r.Deuterium}
}

// Player is the per-account component on the player entity.
type Player struct {
	UserID       int64
	Name         string
	LastActivity time.Time
	ActivePlanet ecs.EntityID
	Retired      bool
}

// Planet is the per-planet identity component on a planet entity.
type Planet struct {
	OwnerID     int64
	Name        string
	Size        int
	Temperature int
	Homeworld   bool
}

// Production tracks when a planet's resources were last accrued.
type Production struct {
	LastUpdate time.Time
}

// Buildings holds the level of every constructed building on a planet.
type Buildings struct {
	Levels map[data.BuildingType]int
}

func NewBuildings() Buildings {
	return Buildings{Levels: make(map[data.BuildingType]int)}
}

func (b Buildings) Level(t data.BuildingType) int {
	return b.Levels[t]
}

// BuildOrder is one entry in a planet's construction queue. Paid holds the
// resources deducted at queue time, for cancellation refunds. Demolish orders
// cost nothing and refund part of the removed level on completion.
type BuildOrder struct {
	Building    data.BuildingType
	TargetLevel int
	Paid        data.Cost
	Duration    time.Duration
	CompleteAt  time.Time // zero until the order reaches the head of the queue
	Demolish    bool
}

// BuildQueue runs orders serially; only the head has a completion time.
type BuildQueue struct {
	Orders []BuildOrder
}

// ShipOrder is one batch in a planet's shipyard queue.
type ShipOrder struct {
	Ship       data.ShipType
	Count      int
	Paid       data.Cost
	Duration   time.Duration
	CompleteAt time.Time // zero until the order reaches the head of the queue
}

// ShipyardQueue runs batches serially, like BuildQueue.
type ShipyardQueue struct {
	Orders []ShipOrder
}

// QueuedShips counts ships in the queue, used for fleet capacity checks.
func (q ShipyardQueue) QueuedShips() int {
	n := 0
	for _, o := range q.Orders {
		n += o.Count
	}
	return n
}

// Hangar holds the ships stationed at a planet.
type Hangar struct {
	Ships map[data.ShipType]int
}

func NewHangar() Hangar {
	return Hangar{Ships: make(map[data.ShipType]int)}
}

func (h Hangar) Total() int {
	n := 0
	for _, c := range h.Ships {
		n += c
	}
	return n
}

// Research holds a player's empire-wide research levels.
type Research struct {
	Levels map[data.ResearchType]int
}

func NewResearch() Research {
	return Research{Levels: make(map[data.ResearchType]int)}
}

func (r Research) Level(t data.ResearchType) int {
	return r.Levels[t]
}

// ResearchOrder is the single active research item on a player entity.
type ResearchOrder struct {
	Tech        data.ResearchType
	TargetLevel int
	Paid        data.Cost
	CompleteAt  time.Time
}

type Mission string

const (
	MissionAttack    Mission = "attack"
	MissionTransport Mission = "transport"
	MissionEspionage Mission = "espionage"
	MissionColonize  Mission = "colonize"
	MissionTransfer  Mission = "transfer"
)

func (m Mission) Valid() bool {
	switch m {
	case MissionAttack, MissionTransport, MissionEspionage, MissionColonize, MissionTransfer:
		return true
	}
	return false
}

// Fleet is an in-flight group of ships, detached from its origin hangar.
type Fleet struct {
	ID      int64
	OwnerID int64
	Ships   map[data.ShipType]int
	Cargo   Resources
}

func (f Fleet) Total() int {
	n := 0
	for _, c := range f.Ships {
		n += c
	}
	return n
}

// Movement is the flight plan attached to a fleet entity. ArrivalAt is the
// ETA of the current phase; colonize missions get a second phase after
// arrival, during which ColonizingUntil is set.
type Movement struct {
	Origin          Coords
	Target          Coords
	Mission         Mission
	DepartedAt      time.Time
	ArrivalAt       time.Time
	Speed           float64 // units per hour
	Recalled        bool    // player-initiated turnaround before arrival
	Returning       bool    // homebound leg after the mission resolved
	Engaged         bool    // parked at the target while a battle resolves
	ColonizingUntil time.Time
	ColonyName      string
}

// Homebound reports whether the fleet is on its way back to its origin.
func (m Movement) Homebound() bool { return m.Recalled || m.Returning }

type BattleOutcome string

const (
	OutcomeAttacker BattleOutcome = "attacker"
	OutcomeDefender BattleOutcome = "defender"
	OutcomeDraw     BattleOutcome = "draw"
)

// Battle is a pending combat engagement created on hostile arrival and
// resolved by the battle phase of the same tick.
type Battle struct {
	AttackerID    int64
	DefenderID    int64
	AttackerFleet ecs.EntityID
	TargetPlanet  ecs.EntityID
	Location      Coords
	ScheduledAt   time.Time
}

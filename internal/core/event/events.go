package event

import (
	"time"

	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

// BuildingComplete fires when a construction queue entry finishes.
type BuildingComplete struct {
	UserID   int64
	Planet   world.Coords
	Building data.BuildingType
	NewLevel int
	At       time.Time
}

// BuildingDemolished fires when a demolition finishes and the refund is paid.
type BuildingDemolished struct {
	UserID   int64
	Planet   world.Coords
	Building data.BuildingType
	NewLevel int
	At       time.Time
}

// ResearchComplete fires when a research queue entry finishes. Research levels
// are account-wide, not per planet.
type ResearchComplete struct {
	UserID   int64
	Research data.ResearchType
	NewLevel int
	At       time.Time
}

// ShipsBuilt fires when a shipyard batch finishes.
type ShipsBuilt struct {
	UserID int64
	Planet world.Coords
	Ship   data.ShipType
	Count  int
	At     time.Time
}

// FleetDispatched fires when a dispatch command is accepted.
type FleetDispatched struct {
	UserID  int64
	FleetID int64
	Mission world.Mission
	Origin  world.Coords
	Target  world.Coords
	ETA     time.Time
}

// FleetArrived fires when a fleet reaches its destination, before the mission
// effect (battle, colonization, espionage) is resolved.
type FleetArrived struct {
	UserID  int64
	FleetID int64
	Mission world.Mission
	Target  world.Coords
	At      time.Time
}

// FleetReturned fires when a returning or recalled fleet lands back home and
// its ships and cargo are merged into the origin planet.
type FleetReturned struct {
	UserID  int64
	FleetID int64
	Origin  world.Coords
	At      time.Time
}

// FleetRecalled fires when a recall command is accepted mid-flight.
type FleetRecalled struct {
	UserID    int64
	FleetID   int64
	ReturnETA time.Time
}

// IncomingAttack warns a defender that a hostile fleet is en route.
type IncomingAttack struct {
	DefenderID int64
	AttackerID int64
	Origin     world.Coords
	Target     world.Coords
	ETA        time.Time
}

// BattleResolved fires after combat at a planet has been fully resolved and
// the battle report stored.
type BattleResolved struct {
	ReportID   int64
	AttackerID int64
	DefenderID int64
	Location   world.Coords
	Winner     world.BattleOutcome
	Loot       world.Resources
	At         time.Time
}

// EspionageResolved fires when a spy mission produces a report.
type EspionageResolved struct {
	ReportID   int64
	AttackerID int64
	DefenderID int64
	Target     world.Coords
	At         time.Time
}

// ColonyEstablished fires when colonization completes and the new planet is
// added to the empire.
type ColonyEstablished struct {
	UserID int64
	Planet world.Coords
	Name   string
	At     time.Time
}

// ColonyAborted fires when a colonization fleet arrives but cannot found the
// colony (position taken, no colony ship, planet cap reached).
type ColonyAborted struct {
	UserID int64
	Target world.Coords
	Reason string
	At     time.Time
}

// EnergyDeficit fires when a planet's energy balance drops below demand and
// mine output is being throttled.
type EnergyDeficit struct {
	UserID   int64
	Planet   world.Coords
	Produced float64
	Required float64
	Factor   float64
	At       time.Time
}

// StorageFull fires when a resource hits its storage cap and further
// production of it is discarded.
type StorageFull struct {
	UserID   int64
	Planet   world.Coords
	Resource data.ResourceKind
	Capacity float64
	At       time.Time
}

// TradeOfferCreated fires when a market offer is listed and its goods escrowed.
type TradeOfferCreated struct {
	OfferID  int64
	SellerID int64
	At       time.Time
}

// TradeCompleted fires when an offer is accepted and both sides are paid.
type TradeCompleted struct {
	OfferID  int64
	SellerID int64
	BuyerID  int64
	At       time.Time
}

// TradeCancelled fires when a seller withdraws an offer and the escrow is
// returned.
type TradeCancelled struct {
	OfferID  int64
	SellerID int64
	At       time.Time
}

// CommandRejected fires when a queued command fails apply-time validation.
// Reason is the sentinel error's message.
type CommandRejected struct {
	UserID  int64
	Command string
	Reason  string
	At      time.Time
}

// PlayerRetired fires when the inactivity sweep removes a dormant player.
type PlayerRetired struct {
	UserID int64
	At     time.Time
}

// Kind returns a short stable label for an event, used for metrics and
// notification routing.
func Kind(ev Event) string {
	switch ev.(type) {
	case BuildingComplete:
		return "building_complete"
	case BuildingDemolished:
		return "building_demolished"
	case ResearchComplete:
		return "research_complete"
	case ShipsBuilt:
		return "ships_built"
	case FleetDispatched:
		return "fleet_dispatched"
	case FleetArrived:
		return "fleet_arrived"
	case FleetReturned:
		return "fleet_returned"
	case FleetRecalled:
		return "fleet_recalled"
	case IncomingAttack:
		return "incoming_attack"
	case BattleResolved:
		return "battle_resolved"
	case EspionageResolved:
		return "espionage_resolved"
	case ColonyEstablished:
		return "colony_established"
	case ColonyAborted:
		return "colony_aborted"
	case EnergyDeficit:
		return "energy_deficit"
	case StorageFull:
		return "storage_full"
	case TradeOfferCreated:
		return "trade_offer_created"
	case TradeCompleted:
		return "trade_completed"
	case TradeCancelled:
		return "trade_cancelled"
	case CommandRejected:
		return "command_rejected"
	case PlayerRetired:
		return "player_retired"
	default:
		return "unknown"
	}
}

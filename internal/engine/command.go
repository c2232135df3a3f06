package engine

import (
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

// CommandKind identifies a player intent crossing into the simulation.
type CommandKind string

const (
	CmdBuildBuilding    CommandKind = "build_building"
	CmdDemolishBuilding CommandKind = "demolish_building"
	CmdCancelBuild      CommandKind = "cancel_build"
	CmdStartResearch    CommandKind = "start_research"
	CmdBuildShips       CommandKind = "build_ships"
	CmdDispatchFleet    CommandKind = "dispatch_fleet"
	CmdRecallFleet      CommandKind = "recall_fleet"
	CmdColonize         CommandKind = "colonize"
	CmdTradeCreate      CommandKind = "trade_create_offer"
	CmdTradeAccept      CommandKind = "trade_accept_offer"
	CmdTradeCancel      CommandKind = "trade_cancel_offer"
	CmdSelectPlanet     CommandKind = "select_planet"
	CmdUpdateActivity   CommandKind = "update_activity"
)

// Command is a queued player action. Validation happens at apply time on the
// scheduler goroutine; queue admission checks capacity only, so a queued
// command can still be rejected when the world has changed underneath it.
type Command struct {
	Kind   CommandKind
	UserID int64

	// Planet the command targets; zero means the player's active planet.
	Planet world.Coords

	Building data.BuildingType // build / demolish
	Index    int               // cancel_build queue index

	Research data.ResearchType // start_research

	Ship  data.ShipType // build_ships
	Count int

	Target      world.Coords // dispatch_fleet / colonize
	Mission     world.Mission
	Ships       map[data.ShipType]int
	SpeedFactor float64 // 0 < f <= 1, 0 means full speed
	FleetID     int64   // recall_fleet
	ColonyName  string

	OfferID           int64 // trade accept / cancel
	OfferedResource   data.ResourceKind
	OfferedAmount     float64
	RequestedResource data.ResourceKind
	RequestedAmount   float64
}

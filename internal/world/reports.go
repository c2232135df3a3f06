package world

import (
	"time"

	"github.com/stellarion/server/internal/data"
)

// ShipLosses maps ship type to count destroyed or remaining.
type ShipLosses map[data.ShipType]int

// BattleReport is the stored record of a resolved battle, visible to both
// participants.
type BattleReport struct {
	ID                int64
	AttackerID        int64
	DefenderID        int64
	Location          Coords
	Winner            BattleOutcome
	AttackerPower     float64
	DefenderPower     float64
	AttackerRemaining ShipLosses
	DefenderRemaining ShipLosses
	AttackerLosses    ShipLosses
	DefenderLosses    ShipLosses
	Loot              Resources
	ResolvedAt        time.Time
}

// EspionageReport is a point-in-time snapshot of a scouted planet, visible to
// the attacker only.
type EspionageReport struct {
	ID         int64
	AttackerID int64
	DefenderID int64
	Location   Coords
	PlanetName string
	Size       int
	Temperature int
	Resources  Resources
	Buildings  map[data.BuildingType]int
	Ships      map[data.ShipType]int
	CreatedAt  time.Time
}

type OfferStatus string

const (
	OfferOpen      OfferStatus = "open"
	OfferAccepted  OfferStatus = "accepted"
	OfferCancelled OfferStatus = "cancelled"
)

// MarketOffer is a resource-for-resource trade listing. The offered amount is
// held in escrow: deducted from the seller at creation, returned on cancel.
type MarketOffer struct {
	ID                int64
	SellerID          int64
	OfferedResource   data.ResourceKind
	OfferedAmount     float64
	RequestedResource data.ResourceKind
	RequestedAmount   float64
	Status            OfferStatus
	AcceptedBy        int64
	CreatedAt         time.Time
	ClosedAt          time.Time
}

// TradeRecord is one entry in the market history ledger. Seq is assigned on
// insert and orders the ledger for persistence cursors.
type TradeRecord struct {
	Seq               int64
	Type              string // offer_created, trade_completed, offer_cancelled
	OfferID           int64
	SellerID          int64
	BuyerID           int64
	OfferedResource   data.ResourceKind
	OfferedAmount     float64
	RequestedResource data.ResourceKind
	RequestedAmount   float64
	At                time.Time
}

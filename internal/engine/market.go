package engine

import (
	"fmt"
	"time"

	"github.com/stellarion/server/internal/core/event"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

func validResource(k data.ResourceKind) bool {
	switch k {
	case data.Metal, data.Crystal, data.Deuterium:
		return true
	}
	return false
}

// applyTradeCreate lists an offer and moves the offered amount into escrow.
func (e *Engine) applyTradeCreate(cmd Command, now time.Time) error {
	s := e.state
	if !validResource(cmd.OfferedResource) || !validResource(cmd.RequestedResource) {
		return fmt.Errorf("%w: trade resources %q/%q", ErrInvalidCommand, cmd.OfferedResource, cmd.RequestedResource)
	}
	if cmd.OfferedAmount <= 0 || cmd.RequestedAmount <= 0 {
		return fmt.Errorf("%w: trade amounts must be positive", ErrInvalidCommand)
	}

	pe, err := e.resolvePlanet(cmd)
	if err != nil {
		return err
	}
	res := s.Stockpiles.Get(pe)
	if res.Amount(cmd.OfferedResource) < cmd.OfferedAmount {
		return fmt.Errorf("%w: %s %.0f offered", ErrInsufficientResources, cmd.OfferedResource, cmd.OfferedAmount)
	}
	res.SetAmount(cmd.OfferedResource, res.Amount(cmd.OfferedResource)-cmd.OfferedAmount)

	offer := &world.MarketOffer{
		SellerID:          cmd.UserID,
		OfferedResource:   cmd.OfferedResource,
		OfferedAmount:     cmd.OfferedAmount,
		RequestedResource: cmd.RequestedResource,
		RequestedAmount:   cmd.RequestedAmount,
		Status:            world.OfferOpen,
		CreatedAt:         now,
	}
	id := s.AddOffer(offer)
	s.RecordTrade(world.TradeRecord{
		Type:              "offer_created",
		OfferID:           id,
		SellerID:          cmd.UserID,
		OfferedResource:   cmd.OfferedResource,
		OfferedAmount:     cmd.OfferedAmount,
		RequestedResource: cmd.RequestedResource,
		RequestedAmount:   cmd.RequestedAmount,
		At:                now,
	})
	s.MarkPlanetDirty(pe)
	e.bus.Emit(event.TradeOfferCreated{OfferID: id, SellerID: cmd.UserID, At: now})
	return nil
}

// applyTradeAccept settles an open offer: the buyer pays the requested amount
// to the seller and receives the escrowed goods.
func (e *Engine) applyTradeAccept(cmd Command, now time.Time) error {
	s := e.state
	offer := s.OfferByID(cmd.OfferID)
	if offer == nil || offer.Status != world.OfferOpen {
		return fmt.Errorf("%w: open offer %d", ErrNotFound, cmd.OfferID)
	}
	if offer.SellerID == cmd.UserID {
		return fmt.Errorf("%w: cannot accept own offer", ErrInvalidCommand)
	}

	buyerPlanet, err := e.resolvePlanet(cmd)
	if err != nil {
		return err
	}
	sellerPlanet, ok := s.ActivePlanet(offer.SellerID)
	if !ok {
		return fmt.Errorf("%w: seller %d has no active planet", ErrNotFound, offer.SellerID)
	}

	buyerRes := s.Stockpiles.Get(buyerPlanet)
	if buyerRes.Amount(offer.RequestedResource) < offer.RequestedAmount {
		return fmt.Errorf("%w: %s %.0f requested", ErrInsufficientResources, offer.RequestedResource, offer.RequestedAmount)
	}

	sellerRes := s.Stockpiles.Get(sellerPlanet)
	buyerRes.SetAmount(offer.RequestedResource, buyerRes.Amount(offer.RequestedResource)-offer.RequestedAmount)
	sellerRes.SetAmount(offer.RequestedResource, sellerRes.Amount(offer.RequestedResource)+offer.RequestedAmount)
	buyerRes.SetAmount(offer.OfferedResource, buyerRes.Amount(offer.OfferedResource)+offer.OfferedAmount)

	offer.Status = world.OfferAccepted
	offer.AcceptedBy = cmd.UserID
	offer.ClosedAt = now

	s.RecordTrade(world.TradeRecord{
		Type:              "trade_completed",
		OfferID:           offer.ID,
		SellerID:          offer.SellerID,
		BuyerID:           cmd.UserID,
		OfferedResource:   offer.OfferedResource,
		OfferedAmount:     offer.OfferedAmount,
		RequestedResource: offer.RequestedResource,
		RequestedAmount:   offer.RequestedAmount,
		At:                now,
	})
	s.MarkPlanetDirty(buyerPlanet)
	s.MarkPlanetDirty(sellerPlanet)
	e.bus.Emit(event.TradeCompleted{OfferID: offer.ID, SellerID: offer.SellerID, BuyerID: cmd.UserID, At: now})
	return nil
}

// applyTradeCancel withdraws a seller's open offer and returns the escrow.
func (e *Engine) applyTradeCancel(cmd Command, now time.Time) error {
	s := e.state
	offer := s.OfferByID(cmd.OfferID)
	if offer == nil || offer.Status != world.OfferOpen {
		return fmt.Errorf("%w: open offer %d", ErrNotFound, cmd.OfferID)
	}
	if offer.SellerID != cmd.UserID {
		return fmt.Errorf("%w: offer %d", ErrNotFound, cmd.OfferID)
	}

	pe, ok := s.ActivePlanet(cmd.UserID)
	if !ok {
		return fmt.Errorf("%w: no active planet for player %d", ErrNotFound, cmd.UserID)
	}
	res := s.Stockpiles.Get(pe)
	res.SetAmount(offer.OfferedResource, res.Amount(offer.OfferedResource)+offer.OfferedAmount)

	offer.Status = world.OfferCancelled
	offer.ClosedAt = now

	s.RecordTrade(world.TradeRecord{
		Type:            "offer_cancelled",
		OfferID:         offer.ID,
		SellerID:        cmd.UserID,
		OfferedResource: offer.OfferedResource,
		OfferedAmount:   offer.OfferedAmount,
		At:              now,
	})
	s.MarkPlanetDirty(pe)
	e.bus.Emit(event.TradeCancelled{OfferID: offer.ID, SellerID: cmd.UserID, At: now})
	return nil
}

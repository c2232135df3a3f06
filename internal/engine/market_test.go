package engine

import (
	"testing"
	"time"

	"github.com/stellarion/server/internal/core/event"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

func TestTradeLifecycle(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng, state, bus := newTestEngine(t, nil)
	createPlayer(t, state, 1, world.Coords{Galaxy: 1, System: 1, Position: 3}, t0)
	createPlayer(t, state, 2, world.Coords{Galaxy: 1, System: 2, Position: 3}, t0)

	var completed []event.TradeCompleted
	event.Subscribe(bus, func(ev event.TradeCompleted) { completed = append(completed, ev) })

	// Seller lists 200 metal for 100 crystal; the metal goes into escrow.
	if err := eng.Submit(Command{
		Kind: CmdTradeCreate, UserID: 1,
		OfferedResource: data.Metal, OfferedAmount: 200,
		RequestedResource: data.Crystal, RequestedAmount: 100,
	}); err != nil {
		t.Fatalf("submit create: %v", err)
	}
	eng.RunTick(t0)

	sellerPlanet, _ := state.ActivePlanet(1)
	if got := state.Stockpiles.Get(sellerPlanet).Metal; got != 300 {
		t.Fatalf("escrow not taken: metal=%v", got)
	}
	offers := state.OffersByStatus(world.OfferOpen, 10, 0)
	if len(offers) != 1 {
		t.Fatalf("expected 1 open offer, got %d", len(offers))
	}
	offerID := offers[0].ID

	// Sellers cannot take their own offers.
	if err := eng.Submit(Command{Kind: CmdTradeAccept, UserID: 1, OfferID: offerID}); err != nil {
		t.Fatalf("submit self-accept: %v", err)
	}
	eng.RunTick(t0.Add(time.Hour))
	if state.OfferByID(offerID).Status != world.OfferOpen {
		t.Fatalf("seller accepted own offer")
	}

	// The buyer settles: crystal moves to the seller, escrowed metal to the
	// buyer.
	if err := eng.Submit(Command{Kind: CmdTradeAccept, UserID: 2, OfferID: offerID}); err != nil {
		t.Fatalf("submit accept: %v", err)
	}
	eng.RunTick(t0.Add(2 * time.Hour))

	offer := state.OfferByID(offerID)
	if offer.Status != world.OfferAccepted || offer.AcceptedBy != 2 {
		t.Fatalf("offer not settled: %+v", offer)
	}
	buyerPlanet, _ := state.ActivePlanet(2)
	if got := state.Stockpiles.Get(buyerPlanet).Metal; got != 700 {
		t.Fatalf("buyer metal %v, expected 700", got)
	}
	if got := state.Stockpiles.Get(buyerPlanet).Crystal; got != 200 {
		t.Fatalf("buyer crystal %v, expected 200", got)
	}
	if got := state.Stockpiles.Get(sellerPlanet).Crystal; got != 400 {
		t.Fatalf("seller crystal %v, expected 400", got)
	}

	// Events are delivered on the following tick.
	eng.RunTick(t0.Add(3 * time.Hour))
	if len(completed) != 1 || completed[0].OfferID != offerID {
		t.Fatalf("trade event: %+v", completed)
	}

	hist := state.TradeHistoryFor(2, 10, 0)
	if len(hist) != 1 || hist[0].Type != "trade_completed" {
		t.Fatalf("buyer trade history: %+v", hist)
	}
}

func TestTradeCreateRequiresStock(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng, state, _ := newTestEngine(t, nil)
	createPlayer(t, state, 1, world.Coords{Galaxy: 1, System: 1, Position: 3}, t0)

	// Starter stock is 500 metal; offering more must be rejected whole.
	if err := eng.Submit(Command{
		Kind: CmdTradeCreate, UserID: 1,
		OfferedResource: data.Metal, OfferedAmount: 10000,
		RequestedResource: data.Crystal, RequestedAmount: 1,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	eng.RunTick(t0)

	if got := state.OffersByStatus("", 10, 0); len(got) != 0 {
		t.Fatalf("offer listed without stock: %+v", got)
	}
	pe, _ := state.ActivePlanet(1)
	if got := state.Stockpiles.Get(pe).Metal; got != 500 {
		t.Fatalf("stock touched on rejection: %v", got)
	}
}

func TestTradeCancelReturnsEscrow(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng, state, _ := newTestEngine(t, nil)
	createPlayer(t, state, 1, world.Coords{Galaxy: 1, System: 1, Position: 3}, t0)
	createPlayer(t, state, 2, world.Coords{Galaxy: 1, System: 2, Position: 3}, t0)

	if err := eng.Submit(Command{
		Kind: CmdTradeCreate, UserID: 1,
		OfferedResource: data.Deuterium, OfferedAmount: 50,
		RequestedResource: data.Metal, RequestedAmount: 500,
	}); err != nil {
		t.Fatalf("submit create: %v", err)
	}
	eng.RunTick(t0)
	offerID := state.OffersByStatus(world.OfferOpen, 1, 0)[0].ID

	// Only the seller may cancel.
	if err := eng.Submit(Command{Kind: CmdTradeCancel, UserID: 2, OfferID: offerID}); err != nil {
		t.Fatalf("submit foreign cancel: %v", err)
	}
	eng.RunTick(t0.Add(time.Hour))
	if state.OfferByID(offerID).Status != world.OfferOpen {
		t.Fatalf("foreign cancel closed the offer")
	}

	if err := eng.Submit(Command{Kind: CmdTradeCancel, UserID: 1, OfferID: offerID}); err != nil {
		t.Fatalf("submit cancel: %v", err)
	}
	eng.RunTick(t0.Add(2 * time.Hour))

	if state.OfferByID(offerID).Status != world.OfferCancelled {
		t.Fatalf("offer not cancelled")
	}
	pe, _ := state.ActivePlanet(1)
	if got := state.Stockpiles.Get(pe).Deuterium; got != 100 {
		t.Fatalf("escrow not returned: deuterium=%v", got)
	}

	// A cancelled offer cannot be accepted afterwards.
	if err := eng.Submit(Command{Kind: CmdTradeAccept, UserID: 2, OfferID: offerID}); err != nil {
		t.Fatalf("submit late accept: %v", err)
	}
	eng.RunTick(t0.Add(3 * time.Hour))
	if state.OfferByID(offerID).Status != world.OfferCancelled {
		t.Fatalf("closed offer reopened")
	}
}

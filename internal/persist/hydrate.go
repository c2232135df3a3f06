package persist

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stellarion/server/internal/world"
)

// Hydrate loads the persisted universe into a fresh world state. Called once
// at boot, before the engine starts; any failure here is fatal to startup
// since running against a partial world would corrupt it on the next flush.
func Hydrate(ctx context.Context, db *DB, s *world.State, now time.Time, log *zap.Logger) error {
	players := NewPlayerRepo(db)
	planets := NewPlanetRepo(db)
	fleets := NewFleetRepo(db)
	reports := NewReportRepo(db)

	playerRows, err := players.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	for _, p := range playerRows {
		if err := s.RestorePlayer(p.UserID, p.Name, p.LastActivity, p.Retired, p.Research, p.ResearchOrder); err != nil {
			return fmt.Errorf("restore player: %w", err)
		}
	}

	planetRows, err := planets.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load planets: %w", err)
	}
	for _, p := range planetRows {
		lastUpdate := p.LastUpdate
		if lastUpdate.IsZero() {
			// Production accrual starts from now rather than the epoch.
			lastUpdate = now
		}
		res := world.Resources{Metal: p.Metal, Crystal: p.Crystal, Deuterium: p.Deuterium}
		if _, err := s.RestorePlanet(p.OwnerID, p.Coords, p.Name, p.Size, p.Temperature, p.Homeworld,
			res, lastUpdate, p.Buildings, p.BuildQueue, p.ShipyardQueue, p.Hangar); err != nil {
			return fmt.Errorf("restore planet: %w", err)
		}
	}
	for _, p := range playerRows {
		s.LinkActivePlanet(p.UserID, p.ActivePlanet)
	}

	fleetRows, err := fleets.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load fleets: %w", err)
	}
	for _, f := range fleetRows {
		if err := s.RestoreFleet(f.ID, f.OwnerID, f.Ships, f.Cargo, f.Movement); err != nil {
			return fmt.Errorf("restore fleet: %w", err)
		}
	}

	offers, err := reports.LoadOffers(ctx)
	if err != nil {
		return fmt.Errorf("load offers: %w", err)
	}
	for _, o := range offers {
		s.RestoreOffer(o)
	}

	maxReport, err := reports.MaxReportID(ctx)
	if err != nil {
		return fmt.Errorf("load report cursor: %w", err)
	}
	maxTrade, err := reports.MaxTradeSeq(ctx)
	if err != nil {
		return fmt.Errorf("load trade cursor: %w", err)
	}
	s.SeedLedgerCursors(maxReport, maxTrade)

	log.Info("world hydrated",
		zap.Int("players", len(playerRows)),
		zap.Int("planets", len(planetRows)),
		zap.Int("fleets", len(fleetRows)),
		zap.Int("offers", len(offers)))
	return nil
}

package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

// ReportRepo persists battle and espionage reports plus the market ledger.
// Reports are append only, so writes are plain inserts with conflict skips
// in case a batch is retried after a partial failure.
type ReportRepo struct {
	db *DB
}

func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

func (r *ReportRepo) SaveBattleReports(ctx context.Context, reports []world.BattleReport) error {
	for _, rep := range reports {
		payload, err := json.Marshal(rep)
		if err != nil {
			return fmt.Errorf("marshal battle report %d: %w", rep.ID, err)
		}
		if _, err := r.db.Pool.Exec(ctx,
			`INSERT INTO battle_reports (id, attacker_id, defender_id, galaxy, system, position, winner, payload, resolved_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (id) DO NOTHING`,
			rep.ID, rep.AttackerID, rep.DefenderID,
			rep.Location.Galaxy, rep.Location.System, rep.Location.Position,
			string(rep.Winner), payload, rep.ResolvedAt,
		); err != nil {
			return fmt.Errorf("insert battle report %d: %w", rep.ID, err)
		}
	}
	return nil
}

func (r *ReportRepo) SaveEspionageReports(ctx context.Context, reports []world.EspionageReport) error {
	for _, rep := range reports {
		payload, err := json.Marshal(rep)
		if err != nil {
			return fmt.Errorf("marshal espionage report %d: %w", rep.ID, err)
		}
		if _, err := r.db.Pool.Exec(ctx,
			`INSERT INTO espionage_reports (id, attacker_id, defender_id, galaxy, system, position, payload, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			rep.ID, rep.AttackerID, rep.DefenderID,
			rep.Location.Galaxy, rep.Location.System, rep.Location.Position,
			payload, rep.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert espionage report %d: %w", rep.ID, err)
		}
	}
	return nil
}

// SaveOffers upserts the full offer book. Offers flip status in place, so
// every batch carries them all and the upsert keeps the table current.
func (r *ReportRepo) SaveOffers(ctx context.Context, offers []world.MarketOffer) error {
	for _, o := range offers {
		var closedAt *time.Time
		if !o.ClosedAt.IsZero() {
			closedAt = &o.ClosedAt
		}
		if _, err := r.db.Pool.Exec(ctx,
			`INSERT INTO market_offers (id, seller_id, offered_resource, offered_amount, requested_resource, requested_amount, status, accepted_by, created_at, closed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO UPDATE SET
			     status = EXCLUDED.status,
			     accepted_by = EXCLUDED.accepted_by,
			     closed_at = EXCLUDED.closed_at`,
			o.ID, o.SellerID,
			string(o.OfferedResource), o.OfferedAmount,
			string(o.RequestedResource), o.RequestedAmount,
			string(o.Status), o.AcceptedBy, o.CreatedAt, closedAt,
		); err != nil {
			return fmt.Errorf("upsert offer %d: %w", o.ID, err)
		}
	}
	return nil
}

func (r *ReportRepo) SaveTrades(ctx context.Context, trades []world.TradeRecord) error {
	for _, t := range trades {
		if _, err := r.db.Pool.Exec(ctx,
			`INSERT INTO trade_events (seq, kind, offer_id, seller_id, buyer_id, offered_resource, offered_amount, requested_resource, requested_amount, at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (seq) DO NOTHING`,
			t.Seq, t.Type, t.OfferID, t.SellerID, t.BuyerID,
			string(t.OfferedResource), t.OfferedAmount,
			string(t.RequestedResource), t.RequestedAmount, t.At,
		); err != nil {
			return fmt.Errorf("insert trade event %d: %w", t.Seq, err)
		}
	}
	return nil
}

// LoadOffers returns every stored offer, oldest first, along with the highest
// trade event sequence seen so the ledger cursor can resume past it.
func (r *ReportRepo) LoadOffers(ctx context.Context) ([]world.MarketOffer, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, seller_id, offered_resource, offered_amount, requested_resource, requested_amount, status, accepted_by, created_at, closed_at
		 FROM market_offers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.MarketOffer
	for rows.Next() {
		var o world.MarketOffer
		var offered, requested, status string
		var closedAt *time.Time
		if err := rows.Scan(&o.ID, &o.SellerID, &offered, &o.OfferedAmount,
			&requested, &o.RequestedAmount, &status, &o.AcceptedBy,
			&o.CreatedAt, &closedAt); err != nil {
			return nil, err
		}
		o.OfferedResource = data.ResourceKind(offered)
		o.RequestedResource = data.ResourceKind(requested)
		o.Status = world.OfferStatus(status)
		if closedAt != nil {
			o.ClosedAt = *closedAt
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MaxTradeSeq returns the highest persisted trade event sequence, zero when
// the ledger is empty.
func (r *ReportRepo) MaxTradeSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM trade_events`).Scan(&seq)
	return seq, err
}

// MaxReportID returns the highest persisted report id across both report
// tables, zero when none exist.
func (r *ReportRepo) MaxReportID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT GREATEST(
		     (SELECT COALESCE(MAX(id), 0) FROM battle_reports),
		     (SELECT COALESCE(MAX(id), 0) FROM espionage_reports))`).Scan(&id)
	return id, err
}

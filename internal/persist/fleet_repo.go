package persist

import (
	"context"
	"encoding/json"
	"fmt"
)

type FleetRepo struct {
	db *DB
}

func NewFleetRepo(db *DB) *FleetRepo {
	return &FleetRepo{db: db}
}

// ReplaceAll rewrites the fleets table with the current in-flight set. Fleets
// land and dissolve constantly, so a full replace is simpler and safer than
// diffing.
func (r *FleetRepo) ReplaceAll(ctx context.Context, fleets []FleetRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("fleets begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM fleets`); err != nil {
		return fmt.Errorf("clear fleets: %w", err)
	}
	for _, f := range fleets {
		ships, err := json.Marshal(f.Ships)
		if err != nil {
			return fmt.Errorf("marshal ships for fleet %d: %w", f.ID, err)
		}
		cargo, err := json.Marshal(f.Cargo)
		if err != nil {
			return fmt.Errorf("marshal cargo for fleet %d: %w", f.ID, err)
		}
		movement, err := json.Marshal(f.Movement)
		if err != nil {
			return fmt.Errorf("marshal movement for fleet %d: %w", f.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO fleets (id, owner_id, ships, cargo, movement, updated_at)
			 VALUES ($1, $2, $3, $4, $5, now())`,
			f.ID, f.OwnerID, ships, cargo, movement,
		); err != nil {
			return fmt.Errorf("insert fleet %d: %w", f.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// LoadAll streams every persisted fleet.
func (r *FleetRepo) LoadAll(ctx context.Context) ([]FleetRecord, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, owner_id, ships, cargo, movement FROM fleets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FleetRecord
	for rows.Next() {
		var f FleetRecord
		var ships, cargo, movement []byte
		if err := rows.Scan(&f.ID, &f.OwnerID, &ships, &cargo, &movement); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(ships, &f.Ships); err != nil {
			return nil, fmt.Errorf("unmarshal ships for fleet %d: %w", f.ID, err)
		}
		if err := json.Unmarshal(cargo, &f.Cargo); err != nil {
			return nil, fmt.Errorf("unmarshal cargo for fleet %d: %w", f.ID, err)
		}
		if err := json.Unmarshal(movement, &f.Movement); err != nil {
			return nil, fmt.Errorf("unmarshal movement for fleet %d: %w", f.ID, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

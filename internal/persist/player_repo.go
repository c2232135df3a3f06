package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

type PlayerRow struct {
	UserID         int64
	Name           string
	LastActivity   time.Time
	Retired        bool
	ActivePlanet   world.Coords
	Research       map[data.ResearchType]int
	ResearchOrder  *world.ResearchOrder
}

type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// SaveBatch upserts player rows in one transaction.
func (r *PlayerRepo) SaveBatch(ctx context.Context, players []PlayerRecord) error {
	if len(players) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("players begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range players {
		research, err := json.Marshal(p.Research)
		if err != nil {
			return fmt.Errorf("marshal research for %d: %w", p.UserID, err)
		}
		var order []byte
		if p.Order != nil {
			if order, err = json.Marshal(p.Order); err != nil {
				return fmt.Errorf("marshal research order for %d: %w", p.UserID, err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO players (user_id, name, last_activity, retired,
			                      active_galaxy, active_system, active_position,
			                      research, research_order, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			 ON CONFLICT (user_id) DO UPDATE SET
			     name = EXCLUDED.name,
			     last_activity = EXCLUDED.last_activity,
			     retired = EXCLUDED.retired,
			     active_galaxy = EXCLUDED.active_galaxy,
			     active_system = EXCLUDED.active_system,
			     active_position = EXCLUDED.active_position,
			     research = EXCLUDED.research,
			     research_order = EXCLUDED.research_order,
			     updated_at = now()`,
			p.UserID, p.Name, p.LastActivity, p.Retired,
			p.ActivePlanet.Galaxy, p.ActivePlanet.System, p.ActivePlanet.Position,
			research, order,
		); err != nil {
			return fmt.Errorf("upsert player %d: %w", p.UserID, err)
		}
	}
	return tx.Commit(ctx)
}

// LoadAll streams every player row.
func (r *PlayerRepo) LoadAll(ctx context.Context) ([]PlayerRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT user_id, name, last_activity, retired,
		        active_galaxy, active_system, active_position,
		        research, research_order
		 FROM players ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerRow
	for rows.Next() {
		var p PlayerRow
		var research []byte
		var order []byte
		if err := rows.Scan(&p.UserID, &p.Name, &p.LastActivity, &p.Retired,
			&p.ActivePlanet.Galaxy, &p.ActivePlanet.System, &p.ActivePlanet.Position,
			&research, &order); err != nil {
			return nil, err
		}
		p.Research = map[data.ResearchType]int{}
		if len(research) > 0 {
			if err := json.Unmarshal(research, &p.Research); err != nil {
				return nil, fmt.Errorf("unmarshal research for %d: %w", p.UserID, err)
			}
		}
		if len(order) > 0 {
			p.ResearchOrder = &world.ResearchOrder{}
			if err := json.Unmarshal(order, p.ResearchOrder); err != nil {
				return nil, fmt.Errorf("unmarshal research order for %d: %w", p.UserID, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

package persist

import (
	"context"
	"encoding/json"
	"fmt"
)

type PlanetRepo struct {
	db *DB
}

func NewPlanetRepo(db *DB) *PlanetRepo {
	return &PlanetRepo{db: db}
}

// SaveBatch upserts planet rows in one transaction, keyed by coordinates.
func (r *PlanetRepo) SaveBatch(ctx context.Context, planets []PlanetRecord) error {
	if len(planets) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("planets begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range planets {
		buildings, err := json.Marshal(p.Buildings)
		if err != nil {
			return fmt.Errorf("marshal buildings for %s: %w", p.Coords, err)
		}
		buildQueue, err := json.Marshal(p.BuildQueue)
		if err != nil {
			return fmt.Errorf("marshal build queue for %s: %w", p.Coords, err)
		}
		shipQueue, err := json.Marshal(p.ShipyardQueue)
		if err != nil {
			return fmt.Errorf("marshal shipyard queue for %s: %w", p.Coords, err)
		}
		hangar, err := json.Marshal(p.Hangar)
		if err != nil {
			return fmt.Errorf("marshal hangar for %s: %w", p.Coords, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO planets (galaxy, system, position, owner_id, name, size, temperature, homeworld,
			                      metal, crystal, deuterium, last_update,
			                      buildings, build_queue, shipyard_queue, hangar, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
			 ON CONFLICT (galaxy, system, position) DO UPDATE SET
			     owner_id = EXCLUDED.owner_id,
			     name = EXCLUDED.name,
			     size = EXCLUDED.size,
			     temperature = EXCLUDED.temperature,
			     homeworld = EXCLUDED.homeworld,
			     metal = EXCLUDED.metal,
			     crystal = EXCLUDED.crystal,
			     deuterium = EXCLUDED.deuterium,
			     last_update = EXCLUDED.last_update,
			     buildings = EXCLUDED.buildings,
			     build_queue = EXCLUDED.build_queue,
			     shipyard_queue = EXCLUDED.shipyard_queue,
			     hangar = EXCLUDED.hangar,
			     updated_at = now()`,
			p.Coords.Galaxy, p.Coords.System, p.Coords.Position,
			p.OwnerID, p.Name, p.Size, p.Temperature, p.Homeworld,
			p.Metal, p.Crystal, p.Deuterium, p.LastUpdate,
			buildings, buildQueue, shipQueue, hangar,
		); err != nil {
			return fmt.Errorf("upsert planet %s: %w", p.Coords, err)
		}
	}
	return tx.Commit(ctx)
}

// LoadAll streams every planet row.
func (r *PlanetRepo) LoadAll(ctx context.Context) ([]PlanetRecord, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT galaxy, system, position, owner_id, name, size, temperature, homeworld,
		        metal, crystal, deuterium, last_update,
		        buildings, build_queue, shipyard_queue, hangar
		 FROM planets ORDER BY galaxy, system, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlanetRecord
	for rows.Next() {
		var p PlanetRecord
		var buildings, buildQueue, shipQueue, hangar []byte
		if err := rows.Scan(&p.Coords.Galaxy, &p.Coords.System, &p.Coords.Position,
			&p.OwnerID, &p.Name, &p.Size, &p.Temperature, &p.Homeworld,
			&p.Metal, &p.Crystal, &p.Deuterium, &p.LastUpdate,
			&buildings, &buildQueue, &shipQueue, &hangar); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(buildings, &p.Buildings); err != nil {
			return nil, fmt.Errorf("unmarshal buildings for %s: %w", p.Coords, err)
		}
		if err := json.Unmarshal(buildQueue, &p.BuildQueue); err != nil {
			return nil, fmt.Errorf("unmarshal build queue for %s: %w", p.Coords, err)
		}
		if err := json.Unmarshal(shipQueue, &p.ShipyardQueue); err != nil {
			return nil, fmt.Errorf("unmarshal shipyard queue for %s: %w", p.Coords, err)
		}
		if err := json.Unmarshal(hangar, &p.Hangar); err != nil {
			return nil, fmt.Errorf("unmarshal hangar for %s: %w", p.Coords, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

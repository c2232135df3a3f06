package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stellarion/server/internal/world"
)

const (
	writeRetries   = 3
	retryBackoff   = 250 * time.Millisecond
	limiterScanMax = 4096
)

// Bridge moves batches from the tick loop to Postgres on its own goroutine.
// The handoff slot holds at most one batch and a newer batch replaces an
// unclaimed older one, so the scheduler never blocks on a slow database and
// the writer always works on the freshest state.
//
// Planet rows are additionally throttled per planet so a hot planet that is
// dirtied every tick does not rewrite its row on every flush. Forced batches
// (shutdown) bypass the throttle.
type Bridge struct {
	log      *zap.Logger
	players  *PlayerRepo
	planets  *PlanetRepo
	fleets   *FleetRepo
	reports  *ReportRepo
	interval time.Duration

	mu       sync.Mutex
	pending  *Batch
	notify   chan struct{}
	closed   bool
	done     chan struct{}
	limiters map[world.Coords]*rate.Limiter
}

// NewBridge starts the writer goroutine. writeInterval is the minimum spacing
// between writes of the same planet row.
func NewBridge(db *DB, writeInterval time.Duration, log *zap.Logger) *Bridge {
	if writeInterval <= 0 {
		writeInterval = time.Minute
	}
	b := &Bridge{
		log:      log,
		players:  NewPlayerRepo(db),
		planets:  NewPlanetRepo(db),
		fleets:   NewFleetRepo(db),
		reports:  NewReportRepo(db),
		interval: writeInterval,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		limiters: make(map[world.Coords]*rate.Limiter),
	}
	go b.run()
	return b
}

// Enqueue stages a batch for the writer. A batch the writer has not yet
// claimed is superseded, but its report and trade rows are folded into the
// replacement first; those rows left the world when the batch was built and
// exist nowhere else. Returns false when the bridge is closed and the batch
// was not accepted, in which case the caller must restage it.
func (b *Bridge) Enqueue(batch Batch) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	if b.pending != nil {
		batch.absorb(b.pending)
	}
	b.pending = &batch
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting batches, waits for the writer to drain, and returns
// once the final write has landed or ctx expires.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) run() {
	defer close(b.done)
	for {
		<-b.notify

		for {
			b.mu.Lock()
			batch := b.pending
			b.pending = nil
			closed := b.closed
			b.mu.Unlock()

			if batch == nil {
				if closed {
					return
				}
				break
			}
			b.write(*batch)
			if closed && b.pendingEmpty() {
				return
			}
		}
	}
}

func (b *Bridge) pendingEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending == nil
}

func (b *Bridge) write(batch Batch) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	planets := batch.Planets
	if !batch.Force {
		planets = b.throttlePlanets(planets)
	}

	b.retry(ctx, "players", func() error { return b.players.SaveBatch(ctx, batch.Players) })
	b.retry(ctx, "planets", func() error { return b.planets.SaveBatch(ctx, planets) })
	b.retry(ctx, "fleets", func() error { return b.fleets.ReplaceAll(ctx, batch.Fleets) })
	b.retry(ctx, "offers", func() error { return b.reports.SaveOffers(ctx, batch.Offers) })
	b.retry(ctx, "trades", func() error { return b.reports.SaveTrades(ctx, batch.Trades) })
	b.retry(ctx, "battle_reports", func() error { return b.reports.SaveBattleReports(ctx, batch.BattleReports) })
	b.retry(ctx, "espionage_reports", func() error { return b.reports.SaveEspionageReports(ctx, batch.EspionageReports) })
}

// throttlePlanets keeps only planets whose limiter grants a token. Skipped
// planets are re-dirtied by production on the next tick and come around in a
// later batch, so nothing is lost, only delayed.
func (b *Bridge) throttlePlanets(planets []PlanetRecord) []PlanetRecord {
	if len(b.limiters) > limiterScanMax {
		// Colonies come and go. Reset rather than track tombstones.
		b.limiters = make(map[world.Coords]*rate.Limiter)
	}
	kept := planets[:0]
	for _, p := range planets {
		lim, ok := b.limiters[p.Coords]
		if !ok {
			lim = rate.NewLimiter(rate.Every(b.interval), 1)
			b.limiters[p.Coords] = lim
		}
		if lim.Allow() {
			kept = append(kept, p)
		}
	}
	return kept
}

func (b *Bridge) retry(ctx context.Context, what string, fn func() error) {
	var err error
	for attempt := 1; attempt <= writeRetries; attempt++ {
		if err = fn(); err == nil {
			return
		}
		b.log.Warn("persist write failed",
			zap.String("what", what),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	b.log.Error("persist write abandoned", zap.String("what", what), zap.Error(err))
}

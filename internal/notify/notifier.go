// Package notify turns simulation events into per-player notifications. An
// in-memory ring buffer per user is the source of truth for reads; rows are
// additionally persisted to the database on a best-effort background worker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stellarion/server/internal/core/event"
	"github.com/stellarion/server/internal/persist"
)

const (
	PriorityInfo     = "info"
	PriorityNormal   = "normal"
	PriorityWarning  = "warning"
	PriorityCritical = "critical"
)

const (
	maxPerUser      = 100
	defaultCooldown = 10 * time.Minute
	writeQueueSize  = 256
)

// Notification is one per-player message.
type Notification struct {
	ID        int64          `json:"id"`
	Kind      string         `json:"kind"`
	Priority  string         `json:"priority"`
	Payload   map[string]any `json:"payload"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

type dbWrite struct {
	userID   int64
	kind     string
	priority string
	payload  []byte
	at       time.Time
}

// Notifier subscribes to the event bus and fans events out to user inboxes.
// Repo may be nil, in which case notifications live in memory only.
type Notifier struct {
	log  *zap.Logger
	repo *persist.NotificationRepo

	mu        sync.Mutex
	inbox     map[int64][]Notification
	cooldowns map[string]time.Time
	cooldown  time.Duration
	nextID    int64

	writes chan dbWrite
	done   chan struct{}
}

func New(repo *persist.NotificationRepo, log *zap.Logger) *Notifier {
	n := &Notifier{
		log:       log,
		repo:      repo,
		inbox:     make(map[int64][]Notification),
		cooldowns: make(map[string]time.Time),
		cooldown:  defaultCooldown,
		nextID:    1,
		writes:    make(chan dbWrite, writeQueueSize),
		done:      make(chan struct{}),
	}
	go n.writer()
	return n
}

// Attach registers handlers for every event kind that players should hear
// about. Call before the engine starts.
func (n *Notifier) Attach(bus *event.Bus) {
	event.Subscribe(bus, func(ev event.BuildingComplete) {
		n.add(ev.UserID, "building_complete", PriorityNormal, map[string]any{
			"planet": ev.Planet.String(), "building": string(ev.Building), "level": ev.NewLevel,
		}, "", ev.At)
	})
	event.Subscribe(bus, func(ev event.BuildingDemolished) {
		n.add(ev.UserID, "building_demolished", PriorityNormal, map[string]any{
			"planet": ev.Planet.String(), "building": string(ev.Building), "level": ev.NewLevel,
		}, "", ev.At)
	})
	event.Subscribe(bus, func(ev event.ResearchComplete) {
		n.add(ev.UserID, "research_complete", PriorityNormal, map[string]any{
			"research": string(ev.Research), "level": ev.NewLevel,
		}, "", ev.At)
	})
	event.Subscribe(bus, func(ev event.ShipsBuilt) {
		n.add(ev.UserID, "ships_built", PriorityInfo, map[string]any{
			"planet": ev.Planet.String(), "ship": string(ev.Ship), "count": ev.Count,
		}, "", ev.At)
	})
	event.Subscribe(bus, func(ev event.FleetReturned) {
		n.add(ev.UserID, "fleet_returned", PriorityInfo, map[string]any{
			"fleet_id": ev.FleetID, "origin": ev.Origin.String(),
		}, "", ev.At)
	})
	event.Subscribe(bus, func(ev event.IncomingAttack) {
		n.add(ev.DefenderID, "under_attack", PriorityCritical, map[string]any{
			"attacker_id": ev.AttackerID, "origin": ev.Origin.String(),
			"target": ev.Target.String(), "eta": ev.ETA,
		}, "", ev.ETA)
	})
	event.Subscribe(bus, func(ev event.BattleResolved) {
		payload := map[string]any{
			"report_id": ev.ReportID, "location": ev.Location.String(), "winner": string(ev.Winner),
		}
		n.add(ev.AttackerID, "battle_resolved", PriorityWarning, payload, "", ev.At)
		n.add(ev.DefenderID, "battle_resolved", PriorityWarning, payload, "", ev.At)
	})
	event.Subscribe(bus, func(ev event.EspionageResolved) {
		n.add(ev.AttackerID, "espionage_report", PriorityInfo, map[string]any{
			"report_id": ev.ReportID, "target": ev.Target.String(),
		}, "", ev.At)
	})
	event.Subscribe(bus, func(ev event.ColonyEstablished) {
		n.add(ev.UserID, "colony_established", PriorityNormal, map[string]any{
			"planet": ev.Planet.String(), "name": ev.Name,
		}, "", ev.At)
	})
	event.Subscribe(bus, func(ev event.ColonyAborted) {
		n.add(ev.UserID, "colony_aborted", PriorityWarning, map[string]any{
			"target": ev.Target.String(), "reason": ev.Reason,
		}, "", ev.At)
	})
	event.Subscribe(bus, func(ev event.EnergyDeficit) {
		n.add(ev.UserID, "energy_deficit", PriorityWarning, map[string]any{
			"planet":          ev.Planet.String(),
			"energy_produced": ev.Produced,
			"energy_required": ev.Required,
			"factor":          ev.Factor,
		}, fmt.Sprintf("energy_deficit:%s", ev.Planet), ev.At)
	})
	event.Subscribe(bus, func(ev event.StorageFull) {
		n.add(ev.UserID, "storage_full", PriorityInfo, map[string]any{
			"planet": ev.Planet.String(), "resource": string(ev.Resource), "capacity": ev.Capacity,
		}, fmt.Sprintf("storage_full:%s:%s", ev.Resource, ev.Planet), ev.At)
	})
	event.Subscribe(bus, func(ev event.TradeCompleted) {
		payload := map[string]any{"offer_id": ev.OfferID}
		n.add(ev.SellerID, "trade_completed", PriorityInfo, payload, "", ev.At)
		n.add(ev.BuyerID, "trade_completed", PriorityInfo, payload, "", ev.At)
	})
	event.Subscribe(bus, func(ev event.TradeCancelled) {
		n.add(ev.SellerID, "trade_cancelled", PriorityInfo, map[string]any{
			"offer_id": ev.OfferID,
		}, "", ev.At)
	})
}

// add appends to the user's ring buffer and schedules a database write.
// A non-empty key suppresses repeats of the same condition within the
// cooldown window.
func (n *Notifier) add(userID int64, kind, priority string, payload map[string]any, key string, at time.Time) {
	if userID == 0 {
		return
	}
	n.mu.Lock()
	if key != "" {
		if last, ok := n.cooldowns[key]; ok && at.Sub(last) < n.cooldown {
			n.mu.Unlock()
			return
		}
		n.cooldowns[key] = at
	}
	rec := Notification{
		ID:        n.nextID,
		Kind:      kind,
		Priority:  priority,
		Payload:   payload,
		CreatedAt: at,
	}
	n.nextID++
	bucket := append(n.inbox[userID], rec)
	if len(bucket) > maxPerUser {
		bucket = bucket[len(bucket)-maxPerUser:]
	}
	n.inbox[userID] = bucket
	n.mu.Unlock()

	if n.repo == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Warn("notification payload not serializable",
			zap.String("kind", kind), zap.Error(err))
		return
	}
	select {
	case n.writes <- dbWrite{userID: userID, kind: kind, priority: priority, payload: body, at: at}:
	default:
		n.log.Warn("notification write queue full", zap.String("kind", kind))
	}
}

// For returns a page of the user's notifications, newest first.
func (n *Notifier) For(userID int64, limit, offset int) []Notification {
	if limit <= 0 {
		limit = 50
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	bucket := n.inbox[userID]
	var out []Notification
	for i := len(bucket) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, bucket[i])
	}
	return out
}

// MarkRead flags one of the user's notifications as read.
func (n *Notifier) MarkRead(userID, id int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	bucket := n.inbox[userID]
	for i := range bucket {
		if bucket[i].ID == id {
			bucket[i].Read = true
			return true
		}
	}
	return false
}

// Unread counts the user's unread notifications.
func (n *Notifier) Unread(userID int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, rec := range n.inbox[userID] {
		if !rec.Read {
			count++
		}
	}
	return count
}

func (n *Notifier) writer() {
	defer close(n.done)
	for w := range n.writes {
		if n.repo == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.repo.Insert(ctx, w.userID, w.kind, w.priority, w.payload, w.at); err != nil {
			n.log.Warn("notification insert failed",
				zap.Int64("user_id", w.userID),
				zap.String("kind", w.kind),
				zap.Error(err))
		}
		cancel()
	}
}

// Close drains pending database writes and stops the worker.
func (n *Notifier) Close(ctx context.Context) error {
	close(n.writes)
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

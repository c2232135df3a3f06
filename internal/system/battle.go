package system

import (
	"math"
	"math/rand"
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/core/event"
	coresys "github.com/stellarion/server/internal/core/system"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

// VolleyFunc computes the damage a side inflicts after shields, given the
// opposing totals and a deterministic roll. The bool reports whether the
// function produced a result; on false the built-in formula is used.
type VolleyFunc func(attack, shield, structure, roll float64) (float64, bool)

// BattleSystem resolves pending battles created by the movement phase.
// Resolution is a single deterministic volley: damage after shields destroys
// a proportional fraction of each side's hull mass. The same world and seed
// always produce the same outcome.
type BattleSystem struct {
	seed   int64
	volley VolleyFunc
}

// NewBattleSystem builds the combat resolver. volley may be nil to use the
// built-in formula only.
func NewBattleSystem(seed int64, volley VolleyFunc) *BattleSystem {
	return &BattleSystem{seed: seed, volley: volley}
}

func (*BattleSystem) Phase() coresys.Phase { return coresys.PhaseBattle }

func (b *BattleSystem) Process(w *world.State, now time.Time, _ time.Duration) []event.Event {
	var events []event.Event

	var due []ecs.EntityID
	w.Battles.Each(func(e ecs.EntityID, bt *world.Battle) {
		if !now.Before(bt.ScheduledAt) {
			due = append(due, e)
		}
	})
	for _, e := range due {
		if ev, ok := b.resolve(w, e); ok {
			events = append(events, ev)
		}
		w.Battles.Remove(e)
		w.MarkForDestruction(e)
	}
	return events
}

type sideStats struct {
	attack    float64
	shield    float64
	structure float64
}

func (b *BattleSystem) resolve(w *world.State, be ecs.EntityID) (event.Event, bool) {
	bt := w.Battles.Get(be)
	if bt == nil {
		return nil, false
	}
	fleet := w.Fleets.Get(bt.AttackerFleet)
	mv := w.Movements.Get(bt.AttackerFleet)
	if fleet == nil || mv == nil || !w.Alive(bt.TargetPlanet) {
		return nil, false
	}
	hangar := w.Hangars.Get(bt.TargetPlanet)

	atkShips := copyShips(fleet.Ships)
	defShips := copyShips(hangar.Ships)

	atk := b.sideTotals(w, bt.AttackerID, atkShips)
	def := b.sideTotals(w, bt.DefenderID, defShips)
	atkPower := basePower(w, atkShips)
	defPower := basePower(w, defShips)

	roll := battleRoll(b.seed, bt)
	dmgToDef := b.damage(atk.attack, def.shield, def.structure, roll)
	dmgToAtk := b.damage(def.attack, atk.shield, atk.structure, roll)

	defFrac := lossFraction(dmgToDef, def.structure)
	atkFrac := lossFraction(dmgToAtk, atk.structure)

	atkLosses, atkRemaining := applyLosses(atkShips, atkFrac)
	defLosses, defRemaining := applyLosses(defShips, defFrac)

	atkRemPower := basePower(w, atkRemaining)
	defRemPower := basePower(w, defRemaining)

	winner := world.OutcomeDraw
	switch {
	case atkRemPower > defRemPower:
		winner = world.OutcomeAttacker
	case defRemPower > atkRemPower:
		winner = world.OutcomeDefender
	case atkPower > defPower:
		winner = world.OutcomeAttacker
	case defPower > atkPower:
		winner = world.OutcomeDefender
	}

	hangar.Ships = defRemaining
	fleet.Ships = atkRemaining
	w.MarkPlanetDirty(bt.TargetPlanet)

	var loot world.Resources
	if winner == world.OutcomeAttacker && len(atkRemaining) > 0 {
		loot = plunder(w, bt.TargetPlanet, bt.AttackerID, atkRemaining)
		fleet.Cargo.Add(loot)
	}

	if len(atkRemaining) == 0 {
		w.RemoveFleet(bt.AttackerFleet)
	} else {
		turnAround(w, mv, bt.ScheduledAt)
	}

	report := &world.BattleReport{
		AttackerID:        bt.AttackerID,
		DefenderID:        bt.DefenderID,
		Location:          bt.Location,
		Winner:            winner,
		AttackerPower:     atkPower,
		DefenderPower:     defPower,
		AttackerRemaining: atkRemaining,
		DefenderRemaining: defRemaining,
		AttackerLosses:    atkLosses,
		DefenderLosses:    defLosses,
		Loot:              loot,
		ResolvedAt:        bt.ScheduledAt,
	}
	id := w.AddBattleReport(report)

	return event.BattleResolved{
		ReportID:   id,
		AttackerID: bt.AttackerID,
		DefenderID: bt.DefenderID,
		Location:   bt.Location,
		Winner:     winner,
		Loot:       loot,
		At:         bt.ScheduledAt,
	}, true
}

func (b *BattleSystem) damage(attack, shield, structure, roll float64) float64 {
	if b.volley != nil {
		if d, ok := b.volley(attack, shield, structure, roll); ok {
			return d
		}
	}
	return math.Max(0, attack-shield) * roll
}

// battleRoll derives a deterministic damage modifier in [0.95, 1.05] from the
// battle's identity, so replaying the same world yields the same outcome.
func battleRoll(seed int64, bt *world.Battle) float64 {
	src := rand.NewSource(seed ^ bt.AttackerID<<17 ^ bt.DefenderID<<5 ^ bt.ScheduledAt.UnixNano())
	return 0.95 + rand.New(src).Float64()*0.1
}

func (b *BattleSystem) sideTotals(w *world.State, userID int64, ships world.ShipLosses) sideStats {
	var laser, ion, hyper, plasma int
	if pe, ok := w.PlayerEntity(userID); ok {
		if r := w.Researches.Get(pe); r != nil {
			laser = r.Level(data.LaserTech)
			ion = r.Level(data.IonTech)
			hyper = r.Level(data.HyperspaceTech)
			plasma = r.Level(data.PlasmaTech)
		}
	}
	var out sideStats
	for t, n := range ships {
		st := w.Balance.EffectiveShipStats(t, laser, ion, hyper, plasma)
		out.attack += st.Attack * float64(n)
		out.shield += st.Shield * float64(n)
		out.structure += structurePerShip(w.Balance, t) * float64(n)
	}
	return out
}

// structurePerShip derives hull points from build cost, a tenth of the
// metal and crystal invested.
func structurePerShip(bal *data.Balance, t data.ShipType) float64 {
	c := bal.Ships[t].Cost
	return (c.Metal + c.Crystal) / 10
}

func basePower(w *world.State, ships world.ShipLosses) float64 {
	total := 0.0
	for t, n := range ships {
		total += w.Balance.Ships[t].Attack * float64(n)
	}
	return total
}

func lossFraction(damage, structure float64) float64 {
	if structure <= 0 {
		return 0
	}
	return math.Min(1, damage/structure)
}

func applyLosses(ships world.ShipLosses, frac float64) (losses, remaining world.ShipLosses) {
	losses = world.ShipLosses{}
	remaining = world.ShipLosses{}
	for t, n := range ships {
		lost := int(math.Floor(float64(n) * frac))
		if lost > n {
			lost = n
		}
		if lost > 0 {
			losses[t] = lost
		}
		if n-lost > 0 {
			remaining[t] = n - lost
		}
	}
	return losses, remaining
}

func copyShips(in map[data.ShipType]int) world.ShipLosses {
	out := world.ShipLosses{}
	for t, n := range in {
		if n > 0 {
			out[t] = n
		}
	}
	return out
}

// plunder takes up to half of each defender resource, bounded by the cargo
// capacity of the surviving attacker ships, filled metal first.
func plunder(w *world.State, planet ecs.EntityID, attackerID int64, remaining world.ShipLosses) world.Resources {
	var hyper int
	if pe, ok := w.PlayerEntity(attackerID); ok {
		if r := w.Researches.Get(pe); r != nil {
			hyper = r.Level(data.HyperspaceTech)
		}
	}
	capacity := 0.0
	for t, n := range remaining {
		st := w.Balance.EffectiveShipStats(t, 0, 0, hyper, 0)
		capacity += st.Cargo * float64(n)
	}

	res := w.Stockpiles.Get(planet)
	var loot world.Resources
	for _, kind := range []data.ResourceKind{data.Metal, data.Crystal, data.Deuterium} {
		if capacity <= 0 {
			break
		}
		take := math.Min(res.Amount(kind)/2, capacity)
		if take <= 0 {
			continue
		}
		res.SetAmount(kind, res.Amount(kind)-take)
		loot.SetAmount(kind, take)
		capacity -= take
	}
	return loot
}

// Package system implements the simulation pipeline stages. Each stage runs
// once per tick on the scheduler goroutine, in the order fixed by its phase.
package system

import (
	"math"
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/core/event"
	coresys "github.com/stellarion/server/internal/core/system"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

// Production accrues resources on every owned planet. Accrual is driven by
// each planet's own LastUpdate timestamp rather than the tick interval, so a
// single catch-up after downtime yields exactly what per-tick accrual would
// have.
type Production struct{}

func NewProduction() *Production { return &Production{} }

func (*Production) Phase() coresys.Phase { return coresys.PhaseProduction }

func (p *Production) Process(w *world.State, now time.Time, _ time.Duration) []event.Event {
	var events []event.Event
	bal := w.Balance

	ecs.Each4(w.Stockpiles, w.Productions, w.BuildingLevels, w.Planets,
		func(e ecs.EntityID, res *world.Resources, prod *world.Production, b *world.Buildings, planet *world.Planet) {
			hours := now.Sub(prod.LastUpdate).Hours()
			if hours <= 0 {
				return
			}
			if retired(w, planet.OwnerID) {
				prod.LastUpdate = now
				return
			}

			plasma, energyTech := ownerResearch(w, planet.OwnerID)
			coords := w.Positions.Get(e)

			produced := (bal.SolarOutput(b.Level(data.SolarPlant)) + bal.FusionOutput(b.Level(data.FusionReactor))) *
				(1 + bal.Energy.TechBonusPerLevel*float64(energyTech))
			required := bal.EnergyUse(data.MetalMine, b.Level(data.MetalMine)) +
				bal.EnergyUse(data.CrystalMine, b.Level(data.CrystalMine)) +
				bal.EnergyUse(data.DeuteriumSynthesizer, b.Level(data.DeuteriumSynthesizer))

			factorRaw, factor := 1.0, 1.0
			switch {
			case required <= 0:
			case produced <= 0:
				factorRaw, factor = 0, bal.Energy.DeficitSoftFloor
			default:
				factorRaw = math.Min(1, produced/required)
				factor = math.Max(bal.Energy.DeficitSoftFloor, factorRaw)
			}
			if factorRaw < 1 && factorRaw <= bal.Energy.DeficitNotifyAt && coords != nil {
				events = append(events, event.EnergyDeficit{
					UserID:   planet.OwnerID,
					Planet:   *coords,
					Produced: produced,
					Required: required,
					Factor:   factor,
					At:       now,
				})
			}

			sizeMult := data.SizeMultiplier(planet.Size)
			tempMult := data.TemperatureMultiplier(planet.Temperature)

			gain := func(mine data.BuildingType) float64 {
				return bal.Production.BaseRates[mine] *
					math.Pow(bal.Production.Growth, float64(b.Level(mine))) *
					hours * factor * sizeMult
			}
			dMetal := gain(data.MetalMine)
			dCrystal := gain(data.CrystalMine)
			dDeut := gain(data.DeuteriumSynthesizer) * tempMult

			if plasma > 0 {
				dMetal *= 1 + bal.Production.PlasmaBonus[data.Metal]*float64(plasma)
				dCrystal *= 1 + bal.Production.PlasmaBonus[data.Crystal]*float64(plasma)
				dDeut *= 1 + bal.Production.PlasmaBonus[data.Deuterium]*float64(plasma)
			}

			deltas := map[data.ResourceKind]float64{
				data.Metal:     dMetal,
				data.Crystal:   dCrystal,
				data.Deuterium: dDeut,
			}
			storageLevels := map[data.ResourceKind]int{
				data.Metal:     b.Level(data.MetalStorage),
				data.Crystal:   b.Level(data.CrystalStorage),
				data.Deuterium: b.Level(data.DeuteriumTank),
			}
			for _, kind := range []data.ResourceKind{data.Metal, data.Crystal, data.Deuterium} {
				cap := bal.StorageCapacity(kind, storageLevels[kind], sizeMult)
				before := res.Amount(kind)
				add := deltas[kind]
				if add <= 0 {
					continue
				}
				if before >= cap {
					continue // already full, overflow is discarded
				}
				if before+add >= cap {
					add = cap - before
					if coords != nil {
						events = append(events, event.StorageFull{
							UserID:   planet.OwnerID,
							Planet:   *coords,
							Resource: kind,
							Capacity: cap,
							At:       now,
						})
					}
				}
				res.SetAmount(kind, before+add)
			}

			// Fusion reactors burn deuterium for the elapsed window.
			if fr := b.Level(data.FusionReactor); fr > 0 {
				burn := bal.Energy.FusionDeutPerLvl * float64(fr) * hours
				res.Deuterium = math.Max(0, res.Deuterium-burn)
			}

			prod.LastUpdate = now
			w.MarkPlanetDirty(e)
		})
	return events
}

func ownerResearch(w *world.State, ownerID int64) (plasma, energy int) {
	pe, ok := w.PlayerEntity(ownerID)
	if !ok {
		return 0, 0
	}
	r := w.Researches.Get(pe)
	if r == nil {
		return 0, 0
	}
	return r.Level(data.PlasmaTech), r.Level(data.EnergyTech)
}

func retired(w *world.State, ownerID int64) bool {
	pe, ok := w.PlayerEntity(ownerID)
	if !ok {
		return true
	}
	p := w.Players.Get(pe)
	return p == nil || p.Retired
}

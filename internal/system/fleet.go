package system

import (
	"math/rand"
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/core/event"
	coresys "github.com/stellarion/server/internal/core/system"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

// FleetSystem advances in-flight fleets: arrivals, mission resolution for
// everything except combat (espionage, colonization, transport), and the
// return leg. Hostile arrivals are handed to the battle phase as pending
// Battle entities; the fleet stays parked until combat resolves.
type FleetSystem struct {
	rng *rand.Rand
}

func NewFleetSystem(seed int64) *FleetSystem {
	return &FleetSystem{rng: rand.New(rand.NewSource(seed))}
}

func (*FleetSystem) Phase() coresys.Phase { return coresys.PhaseMovement }

func (fs *FleetSystem) Process(w *world.State, now time.Time, _ time.Duration) []event.Event {
	var events []event.Event

	var due []ecs.EntityID
	ecs.Each2(w.Fleets, w.Movements, func(e ecs.EntityID, _ *world.Fleet, mv *world.Movement) {
		if mv.Engaged || now.Before(mv.ArrivalAt) {
			return
		}
		due = append(due, e)
	})

	for _, e := range due {
		fs.handleArrival(w, e, now, &events)
	}
	return events
}

func (fs *FleetSystem) handleArrival(w *world.State, e ecs.EntityID, now time.Time, events *[]event.Event) {
	f := w.Fleets.Get(e)
	mv := w.Movements.Get(e)
	if f == nil || mv == nil {
		return
	}

	if mv.Homebound() {
		fs.land(w, e, f, mv, events)
		return
	}

	arrivedAt := mv.ArrivalAt

	switch mv.Mission {
	case world.MissionColonize:
		fs.resolveColonize(w, e, f, mv, now, events)
		return

	case world.MissionAttack:
		*events = append(*events, event.FleetArrived{
			UserID: f.OwnerID, FleetID: f.ID, Mission: mv.Mission, Target: mv.Target, At: arrivedAt,
		})
		te, ok := w.PlanetAt(mv.Target)
		if ok {
			owner := w.Planets.Get(te).OwnerID
			if owner != 0 && owner != f.OwnerID {
				be := w.CreateEntity()
				w.Battles.Set(be, world.Battle{
					AttackerID:    f.OwnerID,
					DefenderID:    owner,
					AttackerFleet: e,
					TargetPlanet:  te,
					Location:      mv.Target,
					ScheduledAt:   arrivedAt,
				})
				mv.Engaged = true
				return
			}
		}
		turnAround(w, mv, arrivedAt)

	case world.MissionEspionage:
		*events = append(*events, event.FleetArrived{
			UserID: f.OwnerID, FleetID: f.ID, Mission: mv.Mission, Target: mv.Target, At: arrivedAt,
		})
		if te, ok := w.PlanetAt(mv.Target); ok {
			if owner := w.Planets.Get(te).OwnerID; owner != 0 && owner != f.OwnerID {
				id := w.AddEspionageReport(spyReport(w, te, f.OwnerID, owner, mv.Target, arrivedAt))
				*events = append(*events, event.EspionageResolved{
					ReportID:   id,
					AttackerID: f.OwnerID,
					DefenderID: owner,
					Target:     mv.Target,
					At:         arrivedAt,
				})
			}
		}
		turnAround(w, mv, arrivedAt)

	case world.MissionTransport, world.MissionTransfer:
		*events = append(*events, event.FleetArrived{
			UserID: f.OwnerID, FleetID: f.ID, Mission: mv.Mission, Target: mv.Target, At: arrivedAt,
		})
		if te, ok := w.PlanetAt(mv.Target); ok && w.Planets.Get(te).OwnerID == f.OwnerID {
			mergeIntoPlanet(w, te, f)
			*events = append(*events, event.FleetReturned{UserID: f.OwnerID, FleetID: f.ID, Origin: mv.Target, At: arrivedAt})
			w.RemoveFleet(e)
			return
		}
		turnAround(w, mv, arrivedAt)

	default:
		turnAround(w, mv, arrivedAt)
	}
}

// resolveColonize runs the two colonization phases: a settling delay after
// arrival, then founding the colony. The colony ship is consumed on success;
// escorts and cargo land at the new world.
func (fs *FleetSystem) resolveColonize(w *world.State, e ecs.EntityID, f *world.Fleet, mv *world.Movement, now time.Time, events *[]event.Event) {
	if mv.ColonizingUntil.IsZero() {
		*events = append(*events, event.FleetArrived{
			UserID: f.OwnerID, FleetID: f.ID, Mission: mv.Mission, Target: mv.Target, At: mv.ArrivalAt,
		})
		if f.Ships[data.ColonyShip] < 1 {
			*events = append(*events, event.ColonyAborted{
				UserID: f.OwnerID, Target: mv.Target, Reason: "no colony ship", At: mv.ArrivalAt,
			})
			turnAround(w, mv, mv.ArrivalAt)
			return
		}
		mv.ColonizingUntil = mv.ArrivalAt.Add(time.Duration(w.Balance.Fleet.ColonizationTimeSec * float64(time.Second)))
		mv.ArrivalAt = mv.ColonizingUntil
		if now.Before(mv.ColonizingUntil) {
			return
		}
		// Delay already elapsed (catch-up after a stall): fall through.
	}
	if now.Before(mv.ColonizingUntil) {
		return
	}

	foundedAt := mv.ColonizingUntil
	st := w.Balance.Starter
	size := st.SizeMin + fs.rng.Intn(st.SizeMax-st.SizeMin+1)
	temp := st.TemperatureMin + fs.rng.Intn(st.TemperatureMax-st.TemperatureMin+1)

	te, err := w.CreateColony(f.OwnerID, mv.Target, mv.ColonyName, size, temp, foundedAt)
	if err != nil {
		*events = append(*events, event.ColonyAborted{
			UserID: f.OwnerID, Target: mv.Target, Reason: err.Error(), At: foundedAt,
		})
		turnAround(w, mv, foundedAt)
		return
	}

	f.Ships[data.ColonyShip]--
	if f.Ships[data.ColonyShip] == 0 {
		delete(f.Ships, data.ColonyShip)
	}
	mergeIntoPlanet(w, te, f)
	*events = append(*events, event.ColonyEstablished{
		UserID: f.OwnerID,
		Planet: mv.Target,
		Name:   w.Planets.Get(te).Name,
		At:     foundedAt,
	})
	w.RemoveFleet(e)
}

// land merges a homebound fleet back into the planet it left from. If the
// origin no longer belongs to the owner the fleet is lost.
func (fs *FleetSystem) land(w *world.State, e ecs.EntityID, f *world.Fleet, mv *world.Movement, events *[]event.Event) {
	if te, ok := w.PlanetAt(mv.Target); ok && w.Planets.Get(te).OwnerID == f.OwnerID {
		mergeIntoPlanet(w, te, f)
		*events = append(*events, event.FleetReturned{
			UserID: f.OwnerID, FleetID: f.ID, Origin: mv.Target, At: mv.ArrivalAt,
		})
	}
	w.RemoveFleet(e)
}

func mergeIntoPlanet(w *world.State, planet ecs.EntityID, f *world.Fleet) {
	hangar := w.Hangars.Get(planet)
	for t, n := range f.Ships {
		hangar.Ships[t] += n
	}
	w.Stockpiles.Get(planet).Add(f.Cargo)
	w.MarkPlanetDirty(planet)
}

// turnAround points a fleet back at its origin. The return leg takes as long
// as the outbound distance at the fleet's speed, anchored at the given time.
func turnAround(w *world.State, mv *world.Movement, at time.Time) {
	travel := time.Duration(mv.Target.Distance(mv.Origin, w.Balance.Universe) / mv.Speed * float64(time.Hour))
	if travel < time.Second {
		travel = time.Second
	}
	mv.Target, mv.Origin = mv.Origin, mv.Target
	mv.Returning = true
	mv.Engaged = false
	mv.DepartedAt = at
	mv.ArrivalAt = at.Add(travel)
	mv.ColonizingUntil = time.Time{}
}

func spyReport(w *world.State, planet ecs.EntityID, attackerID, defenderID int64, loc world.Coords, at time.Time) *world.EspionageReport {
	p := w.Planets.Get(planet)
	rep := &world.EspionageReport{
		AttackerID:  attackerID,
		DefenderID:  defenderID,
		Location:    loc,
		PlanetName:  p.Name,
		Size:        p.Size,
		Temperature: p.Temperature,
		Resources:   *w.Stockpiles.Get(planet),
		Buildings:   map[data.BuildingType]int{},
		Ships:       map[data.ShipType]int{},
		CreatedAt:   at,
	}
	for t, lvl := range w.BuildingLevels.Get(planet).Levels {
		rep.Buildings[t] = lvl
	}
	for t, n := range w.Hangars.Get(planet).Ships {
		rep.Ships[t] = n
	}
	return rep
}

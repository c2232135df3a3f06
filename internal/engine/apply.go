package engine

import (
	"fmt"
	"time"

	"github.com/stellarion/server/internal/core/ecs"
	"github.com/stellarion/server/internal/core/event"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

// applyCommand validates and executes one queued command against the world.
// Runs on the scheduler goroutine with the write lock held. Validation is
// done here, not at queue time: the world may have changed since the command
// was staged.
func (e *Engine) applyCommand(cmd Command, now time.Time) error {
	s := e.state
	if _, ok := s.PlayerEntity(cmd.UserID); !ok {
		return fmt.Errorf("%w: player %d", ErrNotFound, cmd.UserID)
	}
	s.TouchActivity(cmd.UserID, now)

	switch cmd.Kind {
	case CmdBuildBuilding:
		return e.applyBuild(cmd, now)
	case CmdDemolishBuilding:
		return e.applyDemolish(cmd, now)
	case CmdCancelBuild:
		return e.applyCancelBuild(cmd, now)
	case CmdStartResearch:
		return e.applyStartResearch(cmd, now)
	case CmdBuildShips:
		return e.applyBuildShips(cmd, now)
	case CmdDispatchFleet, CmdColonize:
		return e.applyDispatch(cmd, now)
	case CmdRecallFleet:
		return e.applyRecall(cmd, now)
	case CmdTradeCreate:
		return e.applyTradeCreate(cmd, now)
	case CmdTradeAccept:
		return e.applyTradeAccept(cmd, now)
	case CmdTradeCancel:
		return e.applyTradeCancel(cmd, now)
	case CmdSelectPlanet:
		return e.applySelectPlanet(cmd)
	case CmdUpdateActivity:
		return nil // activity already touched above
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, cmd.Kind)
	}
}

// resolvePlanet finds the planet a command targets and checks ownership.
// A zero Planet field means the player's active planet.
func (e *Engine) resolvePlanet(cmd Command) (ecs.EntityID, error) {
	s := e.state
	if (cmd.Planet == world.Coords{}) {
		pe, ok := s.ActivePlanet(cmd.UserID)
		if !ok {
			return 0, fmt.Errorf("%w: no active planet for player %d", ErrNotFound, cmd.UserID)
		}
		return pe, nil
	}
	pe, ok := s.PlanetAt(cmd.Planet)
	if !ok {
		return 0, fmt.Errorf("%w: no planet at %s", ErrNotFound, cmd.Planet)
	}
	if s.Planets.Get(pe).OwnerID != cmd.UserID {
		return 0, fmt.Errorf("%w: planet %s not owned by player %d", ErrNotFound, cmd.Planet, cmd.UserID)
	}
	return pe, nil
}

// pendingLevel returns the building level a planet will reach once every
// queued order for that building completes.
func pendingLevel(levels world.Buildings, q *world.BuildQueue, t data.BuildingType) int {
	lvl := levels.Level(t)
	for _, o := range q.Orders {
		if o.Building != t {
			continue
		}
		if o.Demolish {
			lvl--
		} else {
			lvl++
		}
	}
	return lvl
}

func (e *Engine) applyBuild(cmd Command, now time.Time) error {
	s := e.state
	bal := s.Balance
	spec, ok := bal.Buildings[cmd.Building]
	if !ok {
		return fmt.Errorf("%w: unknown building %q", ErrInvalidCommand, cmd.Building)
	}
	pe, err := e.resolvePlanet(cmd)
	if err != nil {
		return err
	}
	levels := s.BuildingLevels.Get(pe)
	queue := s.BuildQueues.Get(pe)

	for req, min := range spec.Prereqs {
		if levels.Level(req) < min {
			return fmt.Errorf("%w: %s requires %s level %d", ErrPrerequisiteNotMet, cmd.Building, req, min)
		}
	}

	fromLevel := pendingLevel(*levels, queue, cmd.Building)
	cost := bal.BuildingCost(cmd.Building, fromLevel)
	res := s.Stockpiles.Get(pe)
	if !res.CanAfford(cost) {
		return fmt.Errorf("%w: %s level %d", ErrInsufficientResources, cmd.Building, fromLevel+1)
	}
	res.Spend(cost)

	robot := levels.Level(data.RobotFactory)
	hyper := e.researchLevel(cmd.UserID, data.HyperspaceTech)
	queue.Orders = append(queue.Orders, world.BuildOrder{
		Building:    cmd.Building,
		TargetLevel: fromLevel + 1,
		Paid:        cost,
		Duration:    bal.BuildingTime(cmd.Building, fromLevel, robot, hyper),
	})
	if len(queue.Orders) == 1 {
		queue.Orders[0].CompleteAt = now.Add(queue.Orders[0].Duration)
	}
	s.MarkPlanetDirty(pe)
	return nil
}

func (e *Engine) applyDemolish(cmd Command, now time.Time) error {
	s := e.state
	bal := s.Balance
	if _, ok := bal.Buildings[cmd.Building]; !ok {
		return fmt.Errorf("%w: unknown building %q", ErrInvalidCommand, cmd.Building)
	}
	pe, err := e.resolvePlanet(cmd)
	if err != nil {
		return err
	}
	levels := s.BuildingLevels.Get(pe)
	queue := s.BuildQueues.Get(pe)

	fromLevel := pendingLevel(*levels, queue, cmd.Building)
	if fromLevel <= 0 {
		return fmt.Errorf("%w: %s is at level 0", ErrInvalidCommand, cmd.Building)
	}
	// Refuse demolitions that would break another building's prerequisite.
	for other, spec := range bal.Buildings {
		min, needs := spec.Prereqs[cmd.Building]
		if !needs || levels.Level(other) <= 0 {
			continue
		}
		if fromLevel-1 < min {
			return fmt.Errorf("%w: %s requires %s level %d", ErrPrerequisiteNotMet, other, cmd.Building, min)
		}
	}

	robot := levels.Level(data.RobotFactory)
	hyper := e.researchLevel(cmd.UserID, data.HyperspaceTech)
	queue.Orders = append(queue.Orders, world.BuildOrder{
		Building:    cmd.Building,
		TargetLevel: fromLevel - 1,
		Duration:    bal.BuildingTime(cmd.Building, fromLevel-1, robot, hyper),
		Demolish:    true,
	})
	if len(queue.Orders) == 1 {
		queue.Orders[0].CompleteAt = now.Add(queue.Orders[0].Duration)
	}
	s.MarkPlanetDirty(pe)
	return nil
}

func (e *Engine) applyCancelBuild(cmd Command, now time.Time) error {
	s := e.state
	pe, err := e.resolvePlanet(cmd)
	if err != nil {
		return err
	}
	queue := s.BuildQueues.Get(pe)
	if cmd.Index < 0 || cmd.Index >= len(queue.Orders) {
		return fmt.Errorf("%w: build queue index %d", ErrNotFound, cmd.Index)
	}
	order := queue.Orders[cmd.Index]
	if !order.Demolish {
		refund := order.Paid.Scale(s.Balance.CancelRefundFraction)
		s.Stockpiles.Get(pe).Credit(refund)
	}
	queue.Orders = append(queue.Orders[:cmd.Index], queue.Orders[cmd.Index+1:]...)
	// The next order may have become the head without a completion time.
	if len(queue.Orders) > 0 && queue.Orders[0].CompleteAt.IsZero() {
		queue.Orders[0].CompleteAt = now.Add(queue.Orders[0].Duration)
	}
	s.MarkPlanetDirty(pe)
	return nil
}

func (e *Engine) researchLevel(userID int64, t data.ResearchType) int {
	if pe, ok := e.state.PlayerEntity(userID); ok {
		if r := e.state.Researches.Get(pe); r != nil {
			return r.Level(t)
		}
	}
	return 0
}

func (e *Engine) applyStartResearch(cmd Command, now time.Time) error {
	s := e.state
	bal := s.Balance
	spec, ok := bal.Research[cmd.Research]
	if !ok {
		return fmt.Errorf("%w: unknown research %q", ErrInvalidCommand, cmd.Research)
	}
	pe, _ := s.PlayerEntity(cmd.UserID)
	if s.ResearchOrders.Has(pe) {
		return fmt.Errorf("%w: research already in progress", ErrAlreadyActive)
	}
	research := s.Researches.Get(pe)
	for req, min := range spec.Prereqs {
		if research.Level(req) < min {
			return fmt.Errorf("%w: %s requires %s level %d", ErrPrerequisiteNotMet, cmd.Research, req, min)
		}
	}

	planet, err := e.resolvePlanet(cmd)
	if err != nil {
		return err
	}
	levels := s.BuildingLevels.Get(planet)
	for req, min := range spec.BuildingPrereq {
		if levels.Level(req) < min {
			return fmt.Errorf("%w: %s requires %s level %d", ErrPrerequisiteNotMet, cmd.Research, req, min)
		}
	}

	level := research.Level(cmd.Research)
	cost := bal.ResearchCost(cmd.Research, level)
	res := s.Stockpiles.Get(planet)
	if !res.CanAfford(cost) {
		return fmt.Errorf("%w: %s level %d", ErrInsufficientResources, cmd.Research, level+1)
	}
	res.Spend(cost)

	s.ResearchOrders.Set(pe, world.ResearchOrder{
		Tech:        cmd.Research,
		TargetLevel: level + 1,
		Paid:        cost,
		CompleteAt:  now.Add(bal.ResearchTime(cmd.Research, level)),
	})
	s.MarkPlanetDirty(planet)
	s.MarkPlayerDirty(cmd.UserID)
	return nil
}

func (e *Engine) applyBuildShips(cmd Command, now time.Time) error {
	s := e.state
	bal := s.Balance
	if _, ok := bal.Ships[cmd.Ship]; !ok {
		return fmt.Errorf("%w: unknown ship %q", ErrInvalidCommand, cmd.Ship)
	}
	if cmd.Count <= 0 {
		return fmt.Errorf("%w: ship count %d", ErrInvalidCommand, cmd.Count)
	}
	pe, err := e.resolvePlanet(cmd)
	if err != nil {
		return err
	}
	levels := s.BuildingLevels.Get(pe)
	if levels.Level(data.Shipyard) < 1 {
		return fmt.Errorf("%w: shipyard required", ErrPrerequisiteNotMet)
	}

	hangar := s.Hangars.Get(pe)
	queue := s.ShipyardQueues.Get(pe)
	capacity := bal.FleetCapacity(e.researchLevel(cmd.UserID, data.ComputerTech))
	if hangar.Total()+queue.QueuedShips()+cmd.Count > capacity {
		return fmt.Errorf("%w: capacity %d", ErrFleetCapacityExceeded, capacity)
	}

	cost := bal.ShipCost(cmd.Ship, cmd.Count)
	res := s.Stockpiles.Get(pe)
	if !res.CanAfford(cost) {
		return fmt.Errorf("%w: %d x %s", ErrInsufficientResources, cmd.Count, cmd.Ship)
	}
	res.Spend(cost)

	queue.Orders = append(queue.Orders, world.ShipOrder{
		Ship:     cmd.Ship,
		Count:    cmd.Count,
		Paid:     cost,
		Duration: bal.ShipTime(cmd.Ship, cmd.Count, levels.Level(data.RobotFactory)),
	})
	if len(queue.Orders) == 1 {
		queue.Orders[0].CompleteAt = now.Add(queue.Orders[0].Duration)
	}
	s.MarkPlanetDirty(pe)
	return nil
}

func (e *Engine) applyDispatch(cmd Command, now time.Time) error {
	s := e.state
	bal := s.Balance

	mission := cmd.Mission
	if cmd.Kind == CmdColonize {
		mission = world.MissionColonize
	}
	if !mission.Valid() {
		return fmt.Errorf("%w: mission %q", ErrInvalidCommand, cmd.Mission)
	}
	if !cmd.Target.Valid(bal.Universe) {
		return fmt.Errorf("%w: %s", ErrInvalidCoordinates, cmd.Target)
	}

	pe, err := e.resolvePlanet(cmd)
	if err != nil {
		return err
	}
	origin := *s.Positions.Get(pe)
	if origin == cmd.Target {
		return fmt.Errorf("%w: fleet target equals origin", ErrInvalidCoordinates)
	}

	ships := cmd.Ships
	if cmd.Kind == CmdColonize && len(ships) == 0 {
		ships = map[data.ShipType]int{data.ColonyShip: 1}
	}
	if len(ships) == 0 {
		return fmt.Errorf("%w: empty fleet composition", ErrInvalidCommand)
	}
	if mission == world.MissionColonize && ships[data.ColonyShip] < 1 {
		return fmt.Errorf("%w: colonization requires a colony ship", ErrPrerequisiteNotMet)
	}

	hangar := s.Hangars.Get(pe)
	for t, n := range ships {
		if n <= 0 {
			return fmt.Errorf("%w: %d x %s", ErrInvalidCommand, n, t)
		}
		if hangar.Ships[t] < n {
			return fmt.Errorf("%w: %d x %s available, %d requested", ErrInsufficientResources, hangar.Ships[t], t, n)
		}
	}

	// The slowest ship in the composition governs fleet speed.
	laser := e.researchLevel(cmd.UserID, data.LaserTech)
	ion := e.researchLevel(cmd.UserID, data.IonTech)
	hyper := e.researchLevel(cmd.UserID, data.HyperspaceTech)
	plasma := e.researchLevel(cmd.UserID, data.PlasmaTech)
	speed := 0.0
	for t := range ships {
		st := bal.EffectiveShipStats(t, laser, ion, hyper, plasma)
		if speed == 0 || st.Speed < speed {
			speed = st.Speed
		}
	}
	factor := cmd.SpeedFactor
	if factor <= 0 || factor > 1 {
		factor = 1
	}
	speed *= factor
	if speed < 1 {
		speed = 1
	}

	distance := origin.Distance(cmd.Target, bal.Universe)
	travel := time.Duration(distance / speed * float64(time.Hour))
	if travel < time.Second {
		travel = time.Second
	}

	detached := make(map[data.ShipType]int, len(ships))
	for t, n := range ships {
		hangar.Ships[t] -= n
		if hangar.Ships[t] == 0 {
			delete(hangar.Ships, t)
		}
		detached[t] = n
	}

	mv := world.Movement{
		Origin:     origin,
		Target:     cmd.Target,
		Mission:    mission,
		DepartedAt: now,
		ArrivalAt:  now.Add(travel),
		Speed:      speed,
		ColonyName: cmd.ColonyName,
	}
	fe := s.SpawnFleet(cmd.UserID, detached, world.Resources{}, mv)
	fleet := s.Fleets.Get(fe)

	e.bus.Emit(event.FleetDispatched{
		UserID:  cmd.UserID,
		FleetID: fleet.ID,
		Mission: mission,
		Origin:  origin,
		Target:  cmd.Target,
		ETA:     mv.ArrivalAt,
	})
	if mission == world.MissionAttack {
		if te, ok := s.PlanetAt(cmd.Target); ok {
			if owner := s.Planets.Get(te).OwnerID; owner != 0 && owner != cmd.UserID {
				e.bus.Emit(event.IncomingAttack{
					DefenderID: owner,
					AttackerID: cmd.UserID,
					Origin:     origin,
					Target:     cmd.Target,
					ETA:        mv.ArrivalAt,
				})
			}
		}
	}
	s.MarkPlanetDirty(pe)
	return nil
}

func (e *Engine) applyRecall(cmd Command, now time.Time) error {
	s := e.state

	var fe ecs.EntityID
	if cmd.FleetID != 0 {
		ent, ok := s.FleetByID(cmd.FleetID)
		if !ok {
			return fmt.Errorf("%w: fleet %d", ErrNotFound, cmd.FleetID)
		}
		if s.Fleets.Get(ent).OwnerID != cmd.UserID {
			return fmt.Errorf("%w: fleet %d", ErrNotFound, cmd.FleetID)
		}
		fe = ent
	} else {
		// No id given: recall the player's only in-flight fleet.
		var found []ecs.EntityID
		ecs.Each2(s.Fleets, s.Movements, func(ent ecs.EntityID, f *world.Fleet, _ *world.Movement) {
			if f.OwnerID == cmd.UserID {
				found = append(found, ent)
			}
		})
		if len(found) != 1 {
			return fmt.Errorf("%w: %d fleets in flight, fleet id required", ErrInvalidCommand, len(found))
		}
		fe = found[0]
	}

	mv := s.Movements.Get(fe)
	if mv == nil {
		return fmt.Errorf("%w: fleet %d has no active movement", ErrNotFound, cmd.FleetID)
	}
	if mv.Homebound() {
		return nil // already heading home
	}
	if mv.Engaged {
		return fmt.Errorf("%w: fleet is engaged in battle", ErrInvalidCommand)
	}
	// Point of no return: arrival. Past that the mission resolves.
	if !now.Before(mv.ArrivalAt) {
		return fmt.Errorf("%w: fleet already arrived", ErrInvalidCommand)
	}

	elapsed := now.Sub(mv.DepartedAt)
	if elapsed < time.Second {
		elapsed = time.Second
	}
	mv.Target = mv.Origin
	mv.Recalled = true
	mv.DepartedAt = now
	mv.ArrivalAt = now.Add(elapsed)
	mv.ColonizingUntil = time.Time{}

	e.bus.Emit(event.FleetRecalled{
		UserID:    cmd.UserID,
		FleetID:   s.Fleets.Get(fe).ID,
		ReturnETA: mv.ArrivalAt,
	})
	return nil
}

func (e *Engine) applySelectPlanet(cmd Command) error {
	s := e.state
	pe, ok := s.PlanetAt(cmd.Planet)
	if !ok {
		return fmt.Errorf("%w: no planet at %s", ErrNotFound, cmd.Planet)
	}
	if s.Planets.Get(pe).OwnerID != cmd.UserID {
		return fmt.Errorf("%w: planet %s not owned by player %d", ErrNotFound, cmd.Planet, cmd.UserID)
	}
	player, _ := s.PlayerEntity(cmd.UserID)
	s.Players.Get(player).ActivePlanet = pe
	s.MarkPlayerDirty(cmd.UserID)
	return nil
}

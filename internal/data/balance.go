// Package data holds the balance tables that parameterize the simulation:
// cost and time curves, prerequisites, ship stats, energy and storage
// parameters. Tables are loaded once at startup and treated as immutable.
package data

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ResourceKind string

const (
	Metal     ResourceKind = "metal"
	Crystal   ResourceKind = "crystal"
	Deuterium ResourceKind = "deuterium"
)

type BuildingType string

const (
	MetalMine            BuildingType = "metal_mine"
	CrystalMine          BuildingType = "crystal_mine"
	DeuteriumSynthesizer BuildingType = "deuterium_synthesizer"
	SolarPlant           BuildingType = "solar_plant"
	FusionReactor        BuildingType = "fusion_reactor"
	RobotFactory         BuildingType = "robot_factory"
	Shipyard             BuildingType = "shipyard"
	MetalStorage         BuildingType = "metal_storage"
	CrystalStorage       BuildingType = "crystal_storage"
	DeuteriumTank        BuildingType = "deuterium_tank"
)

type ResearchType string

const (
	EnergyTech     ResearchType = "energy"
	LaserTech      ResearchType = "laser"
	IonTech        ResearchType = "ion"
	HyperspaceTech ResearchType = "hyperspace"
	PlasmaTech     ResearchType = "plasma"
	ComputerTech   ResearchType = "computer"
)

type ShipType string

const (
	LightFighter ShipType = "light_fighter"
	HeavyFighter ShipType = "heavy_fighter"
	Cruiser      ShipType = "cruiser"
	Battleship   ShipType = "battleship"
	Bomber       ShipType = "bomber"
	ColonyShip   ShipType = "colony_ship"
)

// Cost is an amount of the three resources, used for prices and refunds.
type Cost struct {
	Metal     float64 `yaml:"metal"`
	Crystal   float64 `yaml:"crystal"`
	Deuterium float64 `yaml:"deuterium"`
}

func (c Cost) Scale(f float64) Cost {
	return Cost{Metal: c.Metal * f, Crystal: c.Crystal * f, Deuterium: c.Deuterium * f}
}

type BuildingSpec struct {
	BaseCost    Cost                 `yaml:"base_cost"`
	BaseTimeSec float64              `yaml:"base_time_sec"`
	Prereqs     map[BuildingType]int `yaml:"prereqs,omitempty"`
}

type ResearchSpec struct {
	BaseCost       Cost                 `yaml:"base_cost"`
	BaseTimeSec    float64              `yaml:"base_time_sec"`
	Prereqs        map[ResearchType]int `yaml:"prereqs,omitempty"`
	BuildingPrereq map[BuildingType]int `yaml:"building_prereqs,omitempty"`
}

type ShipSpec struct {
	Cost        Cost    `yaml:"cost"`
	BaseTimeSec float64 `yaml:"base_time_sec"`
	Attack      float64 `yaml:"attack"`
	Shield      float64 `yaml:"shield"`
	Speed       float64 `yaml:"speed"` // units per hour
	Cargo       float64 `yaml:"cargo"`
}

type EnergyParams struct {
	SolarBase         float64                  `yaml:"solar_base"`
	SolarGrowth       float64                  `yaml:"solar_growth"`
	FusionBase        float64                  `yaml:"fusion_base"`
	FusionGrowth      float64                  `yaml:"fusion_growth"`
	FusionDeutPerLvl  float64                  `yaml:"fusion_deuterium_per_level"` // per hour
	Consumption       map[BuildingType]float64 `yaml:"consumption"`
	ConsumptionGrowth float64                  `yaml:"consumption_growth"`
	TechBonusPerLevel float64                  `yaml:"tech_bonus_per_level"`
	DeficitSoftFloor  float64                  `yaml:"deficit_soft_floor"`
	DeficitNotifyAt   float64                  `yaml:"deficit_notify_threshold"`
}

type StorageParams struct {
	BaseCapacity map[ResourceKind]float64 `yaml:"base_capacity"`
	Growth       map[ResourceKind]float64 `yaml:"growth"`
}

type ProductionParams struct {
	BaseRates map[BuildingType]float64 `yaml:"base_rates"` // per hour at level 1
	Growth    float64                  `yaml:"growth"`
	PlasmaBonus map[ResourceKind]float64 `yaml:"plasma_bonus"` // fraction per plasma level
}

type ShipBonusParams struct {
	LaserAttackPerLevel     float64 `yaml:"laser_attack_per_level"`
	IonShieldPerLevel       float64 `yaml:"ion_shield_per_level"`
	HyperspaceSpeedPerLevel float64 `yaml:"hyperspace_speed_per_level"`
	HyperspaceCargoPerLevel float64 `yaml:"hyperspace_cargo_per_level"`
	PlasmaAttackPerLevel    float64 `yaml:"plasma_attack_per_level"`
}

type FleetParams struct {
	BaseMaxSize          int     `yaml:"base_max_size"`
	SizePerComputerLevel int     `yaml:"size_per_computer_level"`
	ColonizationTimeSec  float64 `yaml:"colonization_time_sec"`
	MaxPlanetsPerPlayer  int     `yaml:"max_planets_per_player"`
}

type UniverseParams struct {
	Galaxies           int `yaml:"galaxies"`
	SystemsPerGalaxy   int `yaml:"systems_per_galaxy"`
	PositionsPerSystem int `yaml:"positions_per_system"`
}

type StarterParams struct {
	PlanetName     string `yaml:"planet_name"`
	Resources      Cost   `yaml:"resources"`
	SizeMin        int    `yaml:"size_min"`
	SizeMax        int    `yaml:"size_max"`
	TemperatureMin int    `yaml:"temperature_min"`
	TemperatureMax int    `yaml:"temperature_max"`
}

// Balance is the full table set. Loaded once, never mutated afterwards.
type Balance struct {
	CostGrowth         float64 `yaml:"cost_growth"`          // building cost per level
	TimeGrowth         float64 `yaml:"time_growth"`          // building time per level
	ResearchCostGrowth float64 `yaml:"research_cost_growth"` // research cost per level
	ResearchTimeGrowth float64 `yaml:"research_time_growth"` // research time per level

	RobotTimeDivisorPerLevel  float64 `yaml:"robot_time_divisor_per_level"`
	HyperspaceTimeReduction   float64 `yaml:"hyperspace_time_reduction"`
	MinBuildTimeFactor        float64 `yaml:"min_build_time_factor"`
	DemolishRefundFraction    float64 `yaml:"demolish_refund_fraction"`
	CancelRefundFraction      float64 `yaml:"cancel_refund_fraction"`

	Buildings   map[BuildingType]BuildingSpec `yaml:"buildings"`
	Research    map[ResearchType]ResearchSpec `yaml:"research"`
	Ships       map[ShipType]ShipSpec         `yaml:"ships"`
	Energy      EnergyParams                  `yaml:"energy"`
	Storage     StorageParams                 `yaml:"storage"`
	Production  ProductionParams              `yaml:"production"`
	ShipBonuses ShipBonusParams               `yaml:"ship_bonuses"`
	Fleet       FleetParams                   `yaml:"fleet"`
	Universe    UniverseParams                `yaml:"universe"`
	Starter     StarterParams                 `yaml:"starter"`
}

// Default returns the built-in balance tables.
func Default() *Balance {
	return &Balance{
		CostGrowth:         1.5,
		TimeGrowth:         1.2,
		ResearchCostGrowth: 1.6,
		ResearchTimeGrowth: 1.25,

		RobotTimeDivisorPerLevel: 0.1,
		HyperspaceTimeReduction:  0.02,
		MinBuildTimeFactor:       0.5,
		DemolishRefundFraction:   0.30,
		CancelRefundFraction:     0.50,

		Buildings: map[BuildingType]BuildingSpec{
			MetalMine:            {BaseCost: Cost{Metal: 60, Crystal: 15}, BaseTimeSec: 60},
			CrystalMine:          {BaseCost: Cost{Metal: 48, Crystal: 24}, BaseTimeSec: 80},
			DeuteriumSynthesizer: {BaseCost: Cost{Metal: 225, Crystal: 75}, BaseTimeSec: 100},
			SolarPlant:           {BaseCost: Cost{Metal: 75, Crystal: 30}, BaseTimeSec: 50},
			FusionReactor:        {BaseCost: Cost{Metal: 900, Crystal: 360, Deuterium: 180}, BaseTimeSec: 250, Prereqs: map[BuildingType]int{DeuteriumSynthesizer: 5}},
			RobotFactory:         {BaseCost: Cost{Metal: 400, Crystal: 120, Deuterium: 200}, BaseTimeSec: 300},
			Shipyard:             {BaseCost: Cost{Metal: 400, Crystal: 200, Deuterium: 100}, BaseTimeSec: 400, Prereqs: map[BuildingType]int{RobotFactory: 2}},
			MetalStorage:         {BaseCost: Cost{Metal: 1000}, BaseTimeSec: 90},
			CrystalStorage:       {BaseCost: Cost{Metal: 1000, Crystal: 500}, BaseTimeSec: 90},
			DeuteriumTank:        {BaseCost: Cost{Metal: 1000, Crystal: 1000}, BaseTimeSec: 90},
		},

		Research: map[ResearchType]ResearchSpec{
			EnergyTech:     {BaseCost: Cost{Metal: 100, Crystal: 50}, BaseTimeSec: 120},
			LaserTech:      {BaseCost: Cost{Metal: 200, Crystal: 100}, BaseTimeSec: 180},
			IonTech:        {BaseCost: Cost{Metal: 1000, Crystal: 300, Deuterium: 100}, BaseTimeSec: 300},
			HyperspaceTech: {BaseCost: Cost{Metal: 2000, Crystal: 1500, Deuterium: 500}, BaseTimeSec: 600},
			PlasmaTech:     {BaseCost: Cost{Metal: 4000, Crystal: 2000, Deuterium: 1000}, BaseTimeSec: 900, Prereqs: map[ResearchType]int{EnergyTech: 8}},
			ComputerTech:   {BaseCost: Cost{Metal: 500, Crystal: 250}, BaseTimeSec: 240},
		},

		Ships: map[ShipType]ShipSpec{
			LightFighter: {Cost: Cost{Metal: 300, Crystal: 150}, BaseTimeSec: 60, Attack: 50, Shield: 10, Speed: 12500, Cargo: 50},
			HeavyFighter: {Cost: Cost{Metal: 600, Crystal: 400}, BaseTimeSec: 120, Attack: 150, Shield: 25, Speed: 10000, Cargo: 100},
			Cruiser:      {Cost: Cost{Metal: 2000, Crystal: 1500, Deuterium: 200}, BaseTimeSec: 300, Attack: 400, Shield: 50, Speed: 15000, Cargo: 800},
			Battleship:   {Cost: Cost{Metal: 6000, Crystal: 4000}, BaseTimeSec: 600, Attack: 1000, Shield: 200, Speed: 10000, Cargo: 1500},
			Bomber:       {Cost: Cost{Metal: 5000, Crystal: 3000, Deuterium: 1000}, BaseTimeSec: 900, Attack: 500, Shield: 500, Speed: 5000, Cargo: 500},
			ColonyShip:   {Cost: Cost{Metal: 300, Crystal: 150}, BaseTimeSec: 1, Attack: 0, Shield: 100, Speed: 2500, Cargo: 7500},
		},

		Energy: EnergyParams{
			SolarBase:    20,
			SolarGrowth:  1.1,
			FusionBase:   30,
			FusionGrowth: 1.05,
			FusionDeutPerLvl: 10,
			Consumption: map[BuildingType]float64{
				MetalMine:            3,
				CrystalMine:          2,
				DeuteriumSynthesizer: 2,
			},
			ConsumptionGrowth: 1.1,
			TechBonusPerLevel: 0.02,
			DeficitSoftFloor:  0.25,
			DeficitNotifyAt:   0.9,
		},

		Storage: StorageParams{
			BaseCapacity: map[ResourceKind]float64{Metal: 10000, Crystal: 10000, Deuterium: 10000},
			Growth:       map[ResourceKind]float64{Metal: 1.5, Crystal: 1.5, Deuterium: 1.5},
		},

		Production: ProductionParams{
			BaseRates: map[BuildingType]float64{
				MetalMine:            30,
				CrystalMine:          20,
				DeuteriumSynthesizer: 10,
			},
			Growth: 1.1,
			PlasmaBonus: map[ResourceKind]float64{
				Metal: 0.01, Crystal: 0.006, Deuterium: 0.02,
			},
		},

		ShipBonuses: ShipBonusParams{
			LaserAttackPerLevel:     0.01,
			IonShieldPerLevel:       0.01,
			HyperspaceSpeedPerLevel: 0.02,
			HyperspaceCargoPerLevel: 0.02,
			PlasmaAttackPerLevel:    0.005,
		},

		Fleet: FleetParams{
			BaseMaxSize:          50,
			SizePerComputerLevel: 10,
			ColonizationTimeSec:  1,
			MaxPlanetsPerPlayer:  9,
		},

		Universe: UniverseParams{
			Galaxies:           9,
			SystemsPerGalaxy:   499,
			PositionsPerSystem: 15,
		},

		Starter: StarterParams{
			PlanetName:     "Homeworld",
			Resources:      Cost{Metal: 500, Crystal: 300, Deuterium: 100},
			SizeMin:        140,
			SizeMax:        200,
			TemperatureMin: -40,
			TemperatureMax: 60,
		},
	}
}

// Load reads a YAML overlay on top of the defaults. A missing path returns
// the defaults unchanged so development setups need no balance file.
func Load(path string) (*Balance, error) {
	b := Default()
	if path == "" {
		return b, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return nil, fmt.Errorf("read balance file: %w", err)
	}
	if err := yaml.Unmarshal(raw, b); err != nil {
		return nil, fmt.Errorf("parse balance file %s: %w", path, err)
	}
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("balance file %s: %w", path, err)
	}
	return b, nil
}

func (b *Balance) validate() error {
	if b.CostGrowth <= 1 || b.TimeGrowth <= 1 {
		return fmt.Errorf("growth factors must exceed 1 (cost=%v time=%v)", b.CostGrowth, b.TimeGrowth)
	}
	if b.Energy.DeficitSoftFloor < 0 || b.Energy.DeficitSoftFloor > 1 {
		return fmt.Errorf("energy deficit soft floor out of range: %v", b.Energy.DeficitSoftFloor)
	}
	for bt, spec := range b.Buildings {
		if spec.BaseTimeSec <= 0 {
			return fmt.Errorf("building %s has non-positive base time", bt)
		}
	}
	for st, spec := range b.Ships {
		if spec.BaseTimeSec <= 0 {
			return fmt.Errorf("ship %s has non-positive base time", st)
		}
	}
	return nil
}

// BuildingCost returns the price of upgrading a building from level to
// level+1: base_cost * cost_growth^level.
func (b *Balance) BuildingCost(t BuildingType, level int) Cost {
	spec := b.Buildings[t]
	return spec.BaseCost.Scale(math.Pow(b.CostGrowth, float64(level)))
}

// BuildingTime returns the construction duration for the upgrade from level
// to level+1, shortened by robot factory and hyperspace research.
func (b *Balance) BuildingTime(t BuildingType, level, robotLevel, hyperspaceLevel int) time.Duration {
	spec := b.Buildings[t]
	secs := spec.BaseTimeSec * math.Pow(b.TimeGrowth, float64(level))
	secs /= 1 + b.RobotTimeDivisorPerLevel*float64(robotLevel)
	factor := 1 - b.HyperspaceTimeReduction*float64(hyperspaceLevel)
	if factor < b.MinBuildTimeFactor {
		factor = b.MinBuildTimeFactor
	}
	secs *= factor
	return time.Duration(secs * float64(time.Second))
}

// DemolishRefund returns the resources refunded for tearing a building down
// from level to level-1: a fraction of the cost of the level being removed.
func (b *Balance) DemolishRefund(t BuildingType, level int) Cost {
	if level <= 0 {
		return Cost{}
	}
	return b.BuildingCost(t, level-1).Scale(b.DemolishRefundFraction)
}

func (b *Balance) ResearchCost(t ResearchType, level int) Cost {
	spec := b.Research[t]
	return spec.BaseCost.Scale(math.Pow(b.ResearchCostGrowth, float64(level)))
}

func (b *Balance) ResearchTime(t ResearchType, level int) time.Duration {
	spec := b.Research[t]
	secs := spec.BaseTimeSec * math.Pow(b.ResearchTimeGrowth, float64(level))
	return time.Duration(secs * float64(time.Second))
}

func (b *Balance) ShipTime(t ShipType, count, robotLevel int) time.Duration {
	spec := b.Ships[t]
	secs := spec.BaseTimeSec * float64(count)
	secs /= 1 + b.RobotTimeDivisorPerLevel*float64(robotLevel)
	return time.Duration(secs * float64(time.Second))
}

func (b *Balance) ShipCost(t ShipType, count int) Cost {
	return b.Ships[t].Cost.Scale(float64(count))
}

// EffectiveShipStats applies research bonuses to a ship's base stats.
func (b *Balance) EffectiveShipStats(t ShipType, laser, ion, hyperspace, plasma int) ShipSpec {
	s := b.Ships[t]
	s.Attack *= 1 + b.ShipBonuses.LaserAttackPerLevel*float64(laser) + b.ShipBonuses.PlasmaAttackPerLevel*float64(plasma)
	s.Shield *= 1 + b.ShipBonuses.IonShieldPerLevel*float64(ion)
	s.Speed *= 1 + b.ShipBonuses.HyperspaceSpeedPerLevel*float64(hyperspace)
	s.Cargo *= 1 + b.ShipBonuses.HyperspaceCargoPerLevel*float64(hyperspace)
	return s
}

// FleetCapacity is the total ship count a planet may hold, including ships in
// its shipyard queue.
func (b *Balance) FleetCapacity(computerLevel int) int {
	return b.Fleet.BaseMaxSize + b.Fleet.SizePerComputerLevel*computerLevel
}

// StorageCapacity returns the cap for one resource given the matching storage
// building level and the planet's size multiplier.
func (b *Balance) StorageCapacity(r ResourceKind, storageLevel int, sizeMult float64) float64 {
	return b.Storage.BaseCapacity[r] * math.Pow(b.Storage.Growth[r], float64(storageLevel)) * sizeMult
}

// SolarOutput is the energy produced by a solar plant at the given level,
// before the energy tech bonus.
func (b *Balance) SolarOutput(level int) float64 {
	if level <= 0 {
		return 0
	}
	return b.Energy.SolarBase * float64(level) * math.Pow(b.Energy.SolarGrowth, float64(level-1))
}

// FusionOutput is the energy produced by a fusion reactor at the given level.
func (b *Balance) FusionOutput(level int) float64 {
	if level <= 0 {
		return 0
	}
	return b.Energy.FusionBase * float64(level) * math.Pow(b.Energy.FusionGrowth, float64(level-1))
}

// EnergyUse is the energy demanded by one consumer building at a level.
func (b *Balance) EnergyUse(t BuildingType, level int) float64 {
	if level <= 0 {
		return 0
	}
	return b.Energy.Consumption[t] * float64(level) * math.Pow(b.Energy.ConsumptionGrowth, float64(level-1))
}

// TemperatureMultiplier scales deuterium yield: cold planets synthesize more.
func TemperatureMultiplier(temperature int) float64 {
	m := 1.44 - 0.004*float64(temperature)
	if m < 0.5 {
		m = 0.5
	}
	if m > 1.6 {
		m = 1.6
	}
	return m
}

// SizeMultiplier scales production and storage with planet size, neutral at
// the median generated size.
func SizeMultiplier(size int) float64 {
	m := float64(size) / 163.0
	if m < 0.5 {
		m = 0.5
	}
	if m > 1.5 {
		m = 1.5
	}
	return m
}

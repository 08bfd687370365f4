package tuning

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz" json:"tick_rate_hz"`

	World     WorldGen  `yaml:"world" json:"world"`
	Costs     Costs     `yaml:"costs" json:"costs"`
	Scent     Scent     `yaml:"scent" json:"scent"`
	Tunnels   Tunnels   `yaml:"tunnels" json:"tunnels"`
	Leaders   Leaders   `yaml:"leaders" json:"leaders"`
	Telemetry Telemetry `yaml:"telemetry" json:"telemetry"`
}

type WorldGen struct {
	SizeX  int   `yaml:"size_x" json:"size_x"`
	SizeY  int   `yaml:"size_y" json:"size_y"`
	Layers int   `yaml:"layers" json:"layers"`
	Seed   int64 `yaml:"seed" json:"seed"`
}

// Costs are traversal costs for passable tiles and per-kind multipliers for
// tiles whose cost is their durability.
type Costs struct {
	Air    uint32 `yaml:"air" json:"air"`
	Rubble uint32 `yaml:"rubble" json:"rubble"`
	Tunnel uint32 `yaml:"tunnel" json:"tunnel"`
	Nest   uint32 `yaml:"nest" json:"nest"`

	DirtMult  uint32 `yaml:"dirt_mult" json:"dirt_mult"`
	StoneMult uint32 `yaml:"stone_mult" json:"stone_mult"`
	WallMult  uint32 `yaml:"wall_mult" json:"wall_mult"`
	FloorMult uint32 `yaml:"floor_mult" json:"floor_mult"`
}

type Scent struct {
	DecayPerSecond float64 `yaml:"decay_per_second" json:"decay_per_second"`
	ScoutDeposit   float64 `yaml:"scout_deposit" json:"scout_deposit"`
}

type Tunnels struct {
	DefaultMoveRate float64 `yaml:"default_move_rate" json:"default_move_rate"`
}

type Leaders struct {
	BreachRange  int `yaml:"breach_range" json:"breach_range"`
	TargetRange  int `yaml:"target_range" json:"target_range"`
	MaxFollowers int `yaml:"max_followers" json:"max_followers"`
}

type Telemetry struct {
	EveryTicks int `yaml:"every_ticks" json:"every_ticks"`
}

const defaultScentDecay = 0.01

func Defaults() Tuning {
	t := Tuning{Scent: Scent{DecayPerSecond: defaultScentDecay}}
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.TickRateHz <= 0 {
		t.TickRateHz = 10
	}
	if t.World.SizeX <= 0 {
		t.World.SizeX = 32
	}
	if t.World.SizeY <= 0 {
		t.World.SizeY = 32
	}
	if t.World.Layers <= 0 {
		t.World.Layers = 3
	}
	if t.World.Seed == 0 {
		t.World.Seed = 1337
	}

	c := &t.Costs
	if c.Air == 0 {
		c.Air = 1
	}
	if c.Rubble == 0 {
		c.Rubble = 3
	}
	if c.Tunnel == 0 {
		c.Tunnel = 1
	}
	if c.Nest == 0 {
		c.Nest = 1
	}
	if c.DirtMult == 0 {
		c.DirtMult = 1
	}
	if c.StoneMult == 0 {
		c.StoneMult = 2
	}
	if c.WallMult == 0 {
		c.WallMult = 1
	}
	if c.FloorMult == 0 {
		c.FloorMult = 1
	}

	// Zero is a valid decay rate: scent never fades.
	if t.Scent.DecayPerSecond < 0 || math.IsNaN(t.Scent.DecayPerSecond) {
		t.Scent.DecayPerSecond = defaultScentDecay
	}
	if t.Scent.ScoutDeposit <= 0 {
		t.Scent.ScoutDeposit = 1.0
	}
	if t.Tunnels.DefaultMoveRate <= 0 {
		t.Tunnels.DefaultMoveRate = 0.1
	}
	if t.Leaders.BreachRange <= 0 {
		t.Leaders.BreachRange = 10
	}
	if t.Leaders.TargetRange <= 0 {
		t.Leaders.TargetRange = 50
	}
	if t.Leaders.MaxFollowers <= 0 {
		t.Leaders.MaxFollowers = 20
	}
	if t.Telemetry.EveryTicks <= 0 {
		t.Telemetry.EveryTicks = 1
	}
}

// Load reads path over Defaults, so keys missing from the file keep their
// default while explicit values, zero included, are kept.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

// Package swarm holds the population-side state: scent trails, tunnel
// corridors carrying queued agents, the caste table and the reference
// leader and scout decision steps that consume the routing fields.
package swarm

import "fmt"

type Caste uint8

const (
	CasteMinor Caste = iota
	CasteMedian
	CasteMajor
	CasteScout
	CasteSiege
	casteCount
)

type casteDef struct {
	name       string
	baseHP     uint16
	baseDamage uint16
	moveSpeed  float64
	biomass    uint32
}

var casteDefs = [casteCount]casteDef{
	CasteMinor:  {name: "MINOR", baseHP: 10, baseDamage: 2, moveSpeed: 1.2, biomass: 5},
	CasteMedian: {name: "MEDIAN", baseHP: 25, baseDamage: 5, moveSpeed: 1.0, biomass: 15},
	CasteMajor:  {name: "MAJOR", baseHP: 50, baseDamage: 10, moveSpeed: 0.7, biomass: 30},
	CasteScout:  {name: "SCOUT", baseHP: 5, baseDamage: 1, moveSpeed: 1.5, biomass: 8},
	CasteSiege:  {name: "SIEGE", baseHP: 100, baseDamage: 25, moveSpeed: 0.4, biomass: 60},
}

func (c Caste) Valid() bool { return c < casteCount }

func (c Caste) def() casteDef {
	if !c.Valid() {
		return casteDef{name: "UNKNOWN"}
	}
	return casteDefs[c]
}

func (c Caste) String() string      { return c.def().name }
func (c Caste) BaseHP() uint16      { return c.def().baseHP }
func (c Caste) BaseDamage() uint16  { return c.def().baseDamage }
func (c Caste) MoveSpeed() float64  { return c.def().moveSpeed }
func (c Caste) BiomassCost() uint32 { return c.def().biomass }

func (c Caste) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Caste) UnmarshalText(b []byte) error {
	for i, d := range casteDefs {
		if d.name == string(b) {
			*c = Caste(i)
			return nil
		}
	}
	return fmt.Errorf("unknown caste %q", b)
}

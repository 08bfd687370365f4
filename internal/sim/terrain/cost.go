package terrain

import "math"

// CostUnknown is the traversal cost of a cell with no terrain data.
const CostUnknown = math.MaxUint32

// CostTable maps tiles to traversal cost. Passable kinds have a flat cost;
// the rest cost their hit points times a per-kind multiplier, so a
// half-destroyed wall is half as expensive as a fresh one.
type CostTable struct {
	Air    uint32
	Rubble uint32
	Tunnel uint32
	Nest   uint32

	DirtMult  uint32
	StoneMult uint32
	WallMult  uint32
	FloorMult uint32
}

func DefaultCosts() CostTable {
	return CostTable{
		Air:       1,
		Rubble:    3,
		Tunnel:    1,
		Nest:      1,
		DirtMult:  1,
		StoneMult: 2,
		WallMult:  1,
		FloorMult: 1,
	}
}

func (c CostTable) Cost(t Tile) uint32 {
	switch t.Kind {
	case KindAir:
		return c.Air
	case KindRubble:
		return c.Rubble
	case KindTunnel:
		return c.Tunnel
	case KindNest:
		return c.Nest
	case KindDirt:
		return scaled(t.HP, c.DirtMult)
	case KindStone:
		return scaled(t.HP, c.StoneMult)
	case KindWall:
		return scaled(t.HP, c.WallMult)
	case KindFloor:
		return scaled(t.HP, c.FloorMult)
	}
	return CostUnknown
}

func scaled(hp uint16, mult uint32) uint32 {
	v := uint64(hp) * uint64(mult)
	if v >= CostUnknown {
		return CostUnknown - 1
	}
	return uint32(v)
}

package flow

import (
	"sort"

	"tunnelwar.ai/internal/sim/grid"
)

// Target values written by objective tracking.
const (
	ValueKeep         uint32 = 100
	ValueBreachPoint  uint32 = 80
	ValueWallDefender uint32 = 60
	ValueDamagedWall  uint32 = 50
	ValueGate         uint32 = 45
	ValueBarracks     uint32 = 40
	ValueArmory       uint32 = 30
)

// TargetField answers "what is worth attacking". Only non-zero values are stored.
type TargetField struct {
	values map[grid.Pos]uint32
}

func NewTargetField() *TargetField {
	return &TargetField{values: map[grid.Pos]uint32{}}
}

func (f *TargetField) Value(pos grid.Pos) uint32 { return f.values[pos] }

// SetValue stores v at pos; v == 0 removes the entry.
func (f *TargetField) SetValue(pos grid.Pos, v uint32) {
	if v == 0 {
		delete(f.values, pos)
		return
	}
	f.values[pos] = v
}

func (f *TargetField) Len() int { return len(f.values) }

// Positions returns every stored position in grid.Less order.
func (f *TargetField) Positions() []grid.Pos {
	out := make([]grid.Pos, 0, len(f.values))
	for p := range f.values {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return grid.Less(out[i], out[j]) })
	return out
}

// HighestValueTarget returns the maximum-value entry whose every axis
// difference from `from` is at most maxRange (a box, not a ball). Equal
// values resolve to the position that sorts first under grid.Less, so the
// answer is stable for unchanged state.
func (f *TargetField) HighestValueTarget(from grid.Pos, maxRange int) (grid.Pos, uint32, bool) {
	var (
		best    grid.Pos
		bestVal uint32
		found   bool
	)
	for p, v := range f.values {
		if !grid.WithinBox(p, from, maxRange) {
			continue
		}
		if !found || v > bestVal || (v == bestVal && grid.Less(p, best)) {
			best, bestVal, found = p, v, true
		}
	}
	return best, bestVal, found
}

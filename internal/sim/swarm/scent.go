package swarm

import (
	"math"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
)

const (
	ScentCap     = 10.0
	scentEpsilon = 0.01
)

// ScentMap is a decaying per-position, per-nest intensity map. Scouts deposit
// as they explore and reinforcements climb the gradient back.
type ScentMap struct {
	trails   map[grid.Pos]map[handle.Handle]float64
	deposits uint64
}

type ScentStats struct {
	Positions int    `json:"positions"`
	Entries   int    `json:"entries"`
	Deposits  uint64 `json:"deposits"`
}

func NewScentMap() *ScentMap {
	return &ScentMap{trails: map[grid.Pos]map[handle.Handle]float64{}}
}

// AddScent raises the intensity at (pos, owner) by amount, capped at
// ScentCap. The cap applies to first deposits too. Non-positive and NaN
// amounts are ignored.
func (m *ScentMap) AddScent(pos grid.Pos, owner handle.Handle, amount float64) {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return
	}
	owners := m.trails[pos]
	if owners == nil {
		owners = map[handle.Handle]float64{}
		m.trails[pos] = owners
	}
	owners[owner] = math.Min(owners[owner]+amount, ScentCap)
	m.deposits++
}

func (m *ScentMap) ScentAt(pos grid.Pos, owner handle.Handle) float64 {
	return m.trails[pos][owner]
}

// StrongestDirection returns the axis neighbour offset with the highest scent
// for owner. Ties go to the first offset in grid.Neighbors6 order. Returns
// false when no neighbour carries any scent.
func (m *ScentMap) StrongestDirection(pos grid.Pos, owner handle.Handle) (grid.Pos, bool) {
	var best grid.Pos
	bestScent := 0.0
	for _, off := range grid.Neighbors6 {
		if s := m.ScentAt(pos.Add(off), owner); s > bestScent {
			best, bestScent = off, s
		}
	}
	if bestScent <= 0 {
		return grid.Pos{}, false
	}
	return best, true
}

// Decay subtracts rate from every intensity and prunes entries at or below
// the epsilon, then positions left without owners.
func (m *ScentMap) Decay(rate float64) {
	if rate < 0 || math.IsNaN(rate) {
		return
	}
	for pos, owners := range m.trails {
		for owner, v := range owners {
			v -= rate
			if v <= scentEpsilon {
				delete(owners, owner)
				continue
			}
			owners[owner] = v
		}
		if len(owners) == 0 {
			delete(m.trails, pos)
		}
	}
}

// Has reports whether any owner has scent stored at pos.
func (m *ScentMap) Has(pos grid.Pos) bool {
	_, ok := m.trails[pos]
	return ok
}

func (m *ScentMap) Stats() ScentStats {
	st := ScentStats{Positions: len(m.trails), Deposits: m.deposits}
	for _, owners := range m.trails {
		st.Entries += len(owners)
	}
	return st
}

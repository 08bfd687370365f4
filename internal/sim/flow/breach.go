package flow

import (
	"sort"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
)

// BreachPoint is a hole in the defenses that a leader can claim.
type BreachPoint struct {
	Pos                   grid.Pos      `json:"pos"`
	ClaimedBy             handle.Handle `json:"claimed_by"`
	ReinforcementRequests uint32        `json:"reinforcement_requests"`
	AgeSeconds            float64       `json:"age_s"`
}

func (b BreachPoint) Claimed() bool { return !b.ClaimedBy.IsNone() }

// BreachRegistry is the coordination surface between leaders. It holds at
// most one breach per position and breaches are never removed. Claims are
// last-writer-wins: callers that need exclusivity re-check ClaimedBy after
// claiming.
type BreachRegistry struct {
	points []*BreachPoint // insertion order
	index  map[grid.Pos]int
}

func NewBreachRegistry() *BreachRegistry {
	return &BreachRegistry{index: map[grid.Pos]int{}}
}

// Add inserts an unclaimed breach at pos unless one exists. Returns whether
// a breach was created.
func (r *BreachRegistry) Add(pos grid.Pos) bool {
	if _, ok := r.index[pos]; ok {
		return false
	}
	r.index[pos] = len(r.points)
	r.points = append(r.points, &BreachPoint{Pos: pos})
	return true
}

func (r *BreachRegistry) Len() int { return len(r.points) }

// At returns a copy of the breach at pos.
func (r *BreachRegistry) At(pos grid.Pos) (BreachPoint, bool) {
	b := r.get(pos)
	if b == nil {
		return BreachPoint{}, false
	}
	return *b, true
}

// NearestUnclaimed returns the unclaimed breach with the smallest Manhattan
// distance to from. Ties go to the breach registered first.
func (r *BreachRegistry) NearestUnclaimed(from grid.Pos) (BreachPoint, bool) {
	var best *BreachPoint
	bestDist := 0
	for _, b := range r.points {
		if b.Claimed() {
			continue
		}
		d := grid.Manhattan(b.Pos, from)
		if best == nil || d < bestDist {
			best, bestDist = b, d
		}
	}
	if best == nil {
		return BreachPoint{}, false
	}
	return *best, true
}

// Claim records leader as the claimant of the breach at pos, overwriting any
// previous claim. Returns false if there is no breach at pos.
func (r *BreachRegistry) Claim(pos grid.Pos, leader handle.Handle) bool {
	b := r.get(pos)
	if b == nil || leader.IsNone() {
		return false
	}
	b.ClaimedBy = leader
	return true
}

// Release clears the claim at pos if it is held by leader.
func (r *BreachRegistry) Release(pos grid.Pos, leader handle.Handle) bool {
	b := r.get(pos)
	if b == nil || b.ClaimedBy != leader {
		return false
	}
	b.ClaimedBy = handle.None
	return true
}

func (r *BreachRegistry) RequestReinforcements(pos grid.Pos, count uint32) bool {
	b := r.get(pos)
	if b == nil {
		return false
	}
	b.ReinforcementRequests += count
	return true
}

// TakeReinforcements returns the accumulated request count at pos and resets it.
func (r *BreachRegistry) TakeReinforcements(pos grid.Pos) uint32 {
	b := r.get(pos)
	if b == nil {
		return 0
	}
	n := b.ReinforcementRequests
	b.ReinforcementRequests = 0
	return n
}

// Tick ages every breach by dt seconds.
func (r *BreachRegistry) Tick(dt float64) {
	for _, b := range r.points {
		b.AgeSeconds += dt
	}
}

// Positions returns every breach position in grid.Less order.
func (r *BreachRegistry) Positions() []grid.Pos {
	out := make([]grid.Pos, 0, len(r.points))
	for _, b := range r.points {
		out = append(out, b.Pos)
	}
	sort.Slice(out, func(i, j int) bool { return grid.Less(out[i], out[j]) })
	return out
}

// Snapshot copies every breach in registration order.
func (r *BreachRegistry) Snapshot() []BreachPoint {
	out := make([]BreachPoint, 0, len(r.points))
	for _, b := range r.points {
		out = append(out, *b)
	}
	return out
}

func (r *BreachRegistry) get(pos grid.Pos) *BreachPoint {
	i, ok := r.index[pos]
	if !ok {
		return nil
	}
	return r.points[i]
}

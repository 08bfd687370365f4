// Package flow holds the routing fields agents consult: how to move
// (traversal cost and flow direction), where to go (target value), and which
// breaches are already claimed.
package flow

import (
	"container/heap"
	"sort"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/terrain"
)

// TileSource is the terrain collaborator as seen by the traversal field.
type TileSource interface {
	Tile(pos grid.Pos) (terrain.Tile, bool)
	ForEachTile(fn func(pos grid.Pos, t terrain.Tile))
}

// TraversalField answers "how hard is it to get there". The cost of a cell is
// the durability of its terrain scaled by the cost table, so damage lowers cost
// and pulls traffic toward weakened defenses without a separate signal.
type TraversalField struct {
	table terrain.CostTable

	costs map[grid.Pos]uint32
	flow  map[grid.Pos]grid.Pos
	goals []grid.Pos
	dirty bool

	recomputes uint64
}

func NewTraversalField(table terrain.CostTable) *TraversalField {
	return &TraversalField{
		table: table,
		costs: map[grid.Pos]uint32{},
		flow:  map[grid.Pos]grid.Pos{},
	}
}

// Cost returns the traversal cost at pos, or terrain.CostUnknown for cells
// that were never sampled.
func (f *TraversalField) Cost(pos grid.Pos) uint32 {
	c, ok := f.costs[pos]
	if !ok {
		return terrain.CostUnknown
	}
	return c
}

// FlowDirection returns the unit offset to step toward the nearest goal. Goal
// cells hold the zero offset. Cells the last sweep did not reach report false.
func (f *TraversalField) FlowDirection(pos grid.Pos) (grid.Pos, bool) {
	d, ok := f.flow[pos]
	return d, ok
}

func (f *TraversalField) MarkDirty()  { f.dirty = true }
func (f *TraversalField) Dirty() bool { return f.dirty }

// Recomputes counts full recomputations since creation.
func (f *TraversalField) Recomputes() uint64 { return f.recomputes }

func (f *TraversalField) Len() int { return len(f.costs) }

// Goals returns the sorted goal set the next sweep will seed from.
func (f *TraversalField) Goals() []grid.Pos {
	return append([]grid.Pos(nil), f.goals...)
}

// ApplyChange is the single-cell fast path for a tile-changed notification.
// When the cost moved, the new cost is visible immediately and the field is
// flagged for a full recompute. Returns whether the cost changed.
func (f *TraversalField) ApplyChange(c terrain.Change) bool {
	oldCost := f.table.Cost(c.Old)
	newCost := f.table.Cost(c.New)
	if oldCost == newCost {
		if _, ok := f.costs[c.Pos]; ok {
			return false
		}
	}
	f.costs[c.Pos] = newCost
	f.dirty = true
	return true
}

// SetGoals replaces the goal set. A different set marks the field dirty.
func (f *TraversalField) SetGoals(goals []grid.Pos) {
	next := append([]grid.Pos(nil), goals...)
	sort.Slice(next, func(i, j int) bool { return grid.Less(next[i], next[j]) })
	next = dedupeSorted(next)
	if equalPositions(next, f.goals) {
		return
	}
	f.goals = next
	f.dirty = true
}

// Update runs a full recompute if the field is dirty and reports whether it did.
func (f *TraversalField) Update(src TileSource) bool {
	if !f.dirty {
		return false
	}
	f.Recompute(src)
	return true
}

// Recompute re-samples every loaded cell, replacing the cost map, then sweeps
// outward from the goals to rebuild flow directions.
func (f *TraversalField) Recompute(src TileSource) {
	costs := make(map[grid.Pos]uint32, len(f.costs))
	src.ForEachTile(func(pos grid.Pos, t terrain.Tile) {
		costs[pos] = f.table.Cost(t)
	})
	f.costs = costs
	f.flow = f.sweep()
	f.dirty = false
	f.recomputes++
}

// sweep is a multi-source Dijkstra from the goal set over the six axis
// neighbours of known cells. Stepping from a cell into its neighbour costs
// the neighbour's cost. Each reached cell records the offset to the
// neighbour it was relaxed from.
func (f *TraversalField) sweep() map[grid.Pos]grid.Pos {
	flow := make(map[grid.Pos]grid.Pos, len(f.costs))
	dist := make(map[grid.Pos]uint64, len(f.costs))
	pq := &posHeap{}

	for _, g := range f.goals {
		c, ok := f.costs[g]
		if !ok || c == terrain.CostUnknown {
			continue
		}
		dist[g] = 0
		flow[g] = grid.Pos{}
		heap.Push(pq, heapEntry{pos: g, dist: 0})
	}

	for pq.Len() > 0 {
		e := heap.Pop(pq).(heapEntry)
		if e.dist > dist[e.pos] {
			continue // stale
		}
		step := uint64(f.costs[e.pos])
		for _, off := range grid.Neighbors6 {
			n := e.pos.Add(off)
			c, ok := f.costs[n]
			if !ok || c == terrain.CostUnknown {
				continue
			}
			nd := e.dist + step
			if old, seen := dist[n]; seen && nd >= old {
				continue
			}
			dist[n] = nd
			flow[n] = e.pos.Sub(n)
			heap.Push(pq, heapEntry{pos: n, dist: nd})
		}
	}
	return flow
}

type heapEntry struct {
	pos  grid.Pos
	dist uint64
}

type posHeap []heapEntry

func (h posHeap) Len() int { return len(h) }
func (h posHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return grid.Less(h[i].pos, h[j].pos)
}
func (h posHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *posHeap) Push(x any)   { *h = append(*h, x.(heapEntry)) }
func (h *posHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

func dedupeSorted(ps []grid.Pos) []grid.Pos {
	if len(ps) < 2 {
		return ps
	}
	out := ps[:1]
	for _, p := range ps[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

func equalPositions(a, b []grid.Pos) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

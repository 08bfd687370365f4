package worldtest

import (
	"testing"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/swarm"
	"tunnelwar.ai/internal/sim/terrain"
	world "tunnelwar.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Queue() buffers commands for the next Step
// - Step()/StepFor() advance the world via StepOnce and keep every tick entry
// - Spawned collects every agent promoted out of a corridor
//
// It avoids touching world internals so scenario tests can live outside the world package.
type Harness struct {
	T *testing.T
	W *world.World

	Ticks   []world.TickLogEntry
	Spawned []Spawn

	pending []world.Command
}

type Spawn struct {
	Tick uint64
	swarm.Emergence
}

type population struct{ h *Harness }

func (p population) Spawn(tick uint64, e swarm.Emergence) {
	p.h.Spawned = append(p.h.Spawned, Spawn{Tick: tick, Emergence: e})
}

// NewHarness builds a world over store. A nil store generates terrain from cfg.Gen.
func NewHarness(t *testing.T, cfg world.Config, store *terrain.Store) *Harness {
	t.Helper()
	h := &Harness{T: t, W: world.New(cfg, store, nil)}
	h.W.SetPopulation(population{h: h})
	return h
}

func (h *Harness) Queue(cmds ...world.Command) {
	h.pending = append(h.pending, cmds...)
}

// Step runs one tick with the queued commands.
func (h *Harness) Step() world.TickLogEntry {
	cmds := h.pending
	h.pending = nil
	e := h.W.StepOnce(cmds)
	h.Ticks = append(h.Ticks, e)
	return e
}

func (h *Harness) StepFor(n int) world.TickLogEntry {
	h.T.Helper()
	if n <= 0 {
		h.T.Fatalf("StepFor(%d)", n)
	}
	var e world.TickLogEntry
	for i := 0; i < n; i++ {
		e = h.Step()
	}
	return e
}

// StepUntil steps until cond holds, failing after max ticks.
func (h *Harness) StepUntil(max int, cond func(world.TickLogEntry) bool) world.TickLogEntry {
	h.T.Helper()
	for i := 0; i < max; i++ {
		if e := h.Step(); cond(e) {
			return e
		}
	}
	h.T.Fatalf("condition not met within %d ticks", max)
	return world.TickLogEntry{}
}

// Walk follows the flow field from start for at most max steps and returns the path.
func (h *Harness) Walk(start grid.Pos, max int) []grid.Pos {
	path := []grid.Pos{start}
	p := start
	for i := 0; i < max; i++ {
		off, ok := h.W.Traversal().FlowDirection(p)
		if !ok || off.IsZero() {
			break
		}
		p = p.Add(off)
		path = append(path, p)
	}
	return path
}

// FortStore lays out a walled yard: open floor for x in [0,w), a wall column
// at x=w, and the keep one cell past it. A dirt layer at z=-1 holds tunnels.
func FortStore(w int, m terrain.BuildMaterial) *terrain.Store {
	s := terrain.NewStore()
	for y := 0; y < 3; y++ {
		for x := 0; x <= w+1; x++ {
			s.SetTile(grid.Pos{X: x, Y: y, Z: -1}, terrain.Dirt(40))
			switch {
			case x < w:
				s.SetTile(grid.Pos{X: x, Y: y}, terrain.Air())
			case x == w:
				s.SetTile(grid.Pos{X: x, Y: y}, terrain.Wall(m))
			default:
				s.SetTile(grid.Pos{X: x, Y: y}, terrain.Air())
			}
		}
	}
	s.DrainChanges()
	return s
}

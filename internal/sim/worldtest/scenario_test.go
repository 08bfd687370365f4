package worldtest

import (
	"testing"

	"tunnelwar.ai/internal/sim/flow"
	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
	"tunnelwar.ai/internal/sim/swarm"
	"tunnelwar.ai/internal/sim/terrain"
	world "tunnelwar.ai/internal/sim/world"
)

func siegeConfig() world.Config {
	return world.Config{
		TickRateHz:          10,
		BreachRange:         16,
		TargetRange:         32,
		MaxFollowers:        8,
		DefaultMoveRate:     1,
		ScoutDeposit:        1,
		ScentDecayPerSecond: 0.5,
	}
}

func TestSiege_WallDownLeaderAssaultsBreach(t *testing.T) {
	h := NewHarness(t, siegeConfig(), FortStore(4, terrain.Wood))
	leader := handle.Named("L1")
	gap := grid.Pos{X: 4, Y: 1}

	h.Queue(world.UpsertLeader{Leader: swarm.Leader{ID: leader, Pos: grid.Pos{Y: 1}, Home: grid.Pos{Y: 1}, Followers: 8}})
	e := h.Step()
	if len(e.Breaches) != 0 || e.Goals != 0 {
		t.Fatalf("breaches=%v goals=%d before damage", e.Breaches, e.Goals)
	}

	h.Queue(world.DamageTile{Pos: gap, Amount: terrain.Wood.BaseHP()})
	e = h.Step()
	if len(e.Breaches) != 1 || e.Breaches[0].Pos != gap {
		t.Fatalf("breaches=%+v", e.Breaches)
	}
	if e.Breaches[0].ClaimedBy != leader {
		t.Fatalf("breach claimed by %v want %v", e.Breaches[0].ClaimedBy, leader)
	}
	if l, ok := h.W.Leader(leader); !ok || l.State != swarm.LeaderAssaulting || l.Target != gap {
		t.Fatalf("leader=%+v ok=%v", l, ok)
	}

	path := h.Walk(grid.Pos{Y: 1}, 16)
	if got := path[len(path)-1]; got != gap {
		t.Fatalf("flow from yard ends at %v want %v (path=%v)", got, gap, path)
	}
	if c := h.W.Traversal().Cost(gap); c != terrain.DefaultCosts().Rubble {
		t.Fatalf("breach cost=%d want rubble", c)
	}
}

func TestSiege_BreachOutOfRangeFallsBackToTarget(t *testing.T) {
	cfg := siegeConfig()
	cfg.BreachRange = 1
	h := NewHarness(t, cfg, FortStore(4, terrain.Wood))
	leader := handle.Named("L1")
	keep := grid.Pos{X: 5, Y: 2}

	h.Queue(
		world.SetTarget{Pos: keep, Value: flow.ValueKeep},
		world.UpsertLeader{Leader: swarm.Leader{ID: leader, Followers: 8}},
		world.DamageTile{Pos: grid.Pos{X: 4}, Amount: terrain.Wood.BaseHP()},
	)
	e := h.Step()
	if len(e.Breaches) != 1 || e.Breaches[0].Claimed() {
		t.Fatalf("breaches=%+v", e.Breaches)
	}
	l, _ := h.W.Leader(leader)
	if l.State != swarm.LeaderAssaulting || l.Target != keep || l.HasBreach {
		t.Fatalf("leader=%+v", l)
	}
	if e.Goals != 2 {
		t.Fatalf("goals=%d want target and breach", e.Goals)
	}
}

func TestTunnelRaid_BreakEjectsTrailingAgents(t *testing.T) {
	h := NewHarness(t, siegeConfig(), FortStore(4, terrain.Wood))
	start, end := grid.Pos{Y: 1, Z: -1}, grid.Pos{X: 4, Y: 1, Z: -1}
	nest := handle.Named("nest")

	h.Queue(
		world.DigTunnel{Start: start, End: end, MoveRate: 1},
		world.EnqueueAgent{Segment: 0, Agent: swarm.QueuedAgent{Caste: swarm.CasteMajor, Nest: nest}},
	)
	h.StepFor(5)
	h.Queue(world.EnqueueAgent{Segment: 0, Agent: swarm.QueuedAgent{Caste: swarm.CasteMinor, Nest: nest}})
	h.Step()

	cut := grid.Pos{X: 1, Y: 1, Z: -1}
	h.Queue(world.DamageTile{Pos: cut, Amount: 20})
	e := h.Step()
	if e.Ejected != 1 || len(h.Spawned) != 1 {
		t.Fatalf("ejected=%d spawned=%+v", e.Ejected, h.Spawned)
	}
	sp := h.Spawned[0]
	if !sp.Ejected || sp.Agent.Caste != swarm.CasteMinor || sp.Pos != cut {
		t.Fatalf("spawn=%+v", sp)
	}
	if len(e.Tunnels) != 1 || e.Tunnels[0].Intact || e.Tunnels[0].Queued != 1 {
		t.Fatalf("tunnels=%+v", e.Tunnels)
	}

	// The agent past the break stays frozen in place.
	h.StepFor(20)
	if len(h.Spawned) != 1 {
		t.Fatalf("frozen agent emerged: %+v", h.Spawned)
	}
}

func TestTunnelRaid_IntactCorridorDelivers(t *testing.T) {
	h := NewHarness(t, siegeConfig(), FortStore(4, terrain.Wood))
	start, end := grid.Pos{Y: 2, Z: -1}, grid.Pos{X: 5, Y: 2, Z: -1}

	h.Queue(world.DigTunnel{Start: start, End: end, MoveRate: 2})
	for i := 0; i < 3; i++ {
		h.Queue(world.EnqueueAgent{Segment: 0, Agent: swarm.QueuedAgent{Caste: swarm.CasteMedian}})
	}
	h.StepUntil(10, func(e world.TickLogEntry) bool { return e.Emerged > 0 })
	if len(h.Spawned) != 3 {
		t.Fatalf("spawned=%d want=3", len(h.Spawned))
	}
	for _, sp := range h.Spawned {
		if sp.Ejected || sp.Pos != end {
			t.Fatalf("spawn=%+v", sp)
		}
	}
}

func TestScoutTrail_FollowsFreshestScent(t *testing.T) {
	h := NewHarness(t, siegeConfig(), FortStore(4, terrain.Wood))
	scout := handle.Named("S1")
	nest := handle.Named("nest")

	for x := 0; x < 4; x++ {
		h.Queue(world.UpsertScout{Scout: swarm.Scout{ID: scout, Nest: nest, Pos: grid.Pos{X: x}}})
		if e := h.Step(); e.Deposits != 1 {
			t.Fatalf("tick %d deposits=%d", e.Tick, e.Deposits)
		}
	}

	next, ok := swarm.FollowScent(h.W.Scent(), grid.Pos{X: 1}, nest)
	if !ok || next != (grid.Pos{X: 2}) {
		t.Fatalf("next=%v ok=%v", next, ok)
	}
	if _, ok := swarm.FollowScent(h.W.Scent(), grid.Pos{X: 1}, handle.Named("other")); ok {
		t.Fatalf("foreign nest followed the trail")
	}

	// A returning scout stops laying trail, and the trail fades.
	h.Queue(world.UpsertScout{Scout: swarm.Scout{ID: scout, Nest: nest, Pos: grid.Pos{X: 3}, Returning: true}})
	e := h.StepUntil(40, func(e world.TickLogEntry) bool { return e.Scent.Positions == 0 })
	if e.Deposits != 0 {
		t.Fatalf("returning scout deposited")
	}
}

func TestDeterminism_GeneratedTerrainSameDigest(t *testing.T) {
	cfg := siegeConfig()
	cfg.Gen = terrain.GenConfig{SizeX: 24, SizeY: 24, Layers: 2, Seed: 42}

	run := func(cfg world.Config) []string {
		h := NewHarness(t, cfg, nil)
		h.Queue(
			world.SetTarget{Pos: grid.Pos{X: 12, Y: 12}, Value: flow.ValueKeep},
			world.UpsertLeader{Leader: swarm.Leader{ID: handle.Named("L1"), Followers: 4}},
			world.UpsertLeader{Leader: swarm.Leader{ID: handle.Named("L2"), Pos: grid.Pos{X: 20}, Followers: 4}},
		)
		var out []string
		for i := 0; i < 15; i++ {
			if i == 5 {
				h.Queue(world.DamageTile{Pos: grid.Pos{X: 3, Y: 3}, Amount: 1000})
			}
			out = append(out, h.Step().Digest)
		}
		return out
	}

	a, b := run(cfg), run(cfg)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("tick %d digest mismatch: %s vs %s", i, a[i], b[i])
		}
	}
}

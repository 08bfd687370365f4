package world

import (
	"encoding/json"
	"sort"
	"time"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
	"tunnelwar.ai/internal/sim/swarm"
	"tunnelwar.ai/internal/sim/terrain"
	"tunnelwar.ai/internal/telemetryproto"
)

const slowRecompute = 50 * time.Millisecond

// tickState collects what happened during one tick for telemetry.
type tickState struct {
	changes     int
	recomputed  bool
	recomputeMS float64
	emerged     int
	ejected     int
	deposits    int
	decisions   []swarm.LeaderDecision
}

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic tests.
func (w *World) StepOnce(cmds []Command) TickLogEntry {
	return w.step(w.dt(), cmds)
}

func (w *World) dt() float64 { return 1.0 / float64(w.cfg.TickRateHz) }

func (w *World) step(dt float64, cmds []Command) TickLogEntry {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	var st tickState

	// Inputs are applied at the tick boundary, in inbox order.
	w.applyCommands(cmds)

	// Terrain notifications reach the field before anything reads flow this tick.
	w.drainTerrain(nowTick, &st)

	w.syncGoals()
	recomputeStart := time.Now()
	if w.traversal.Update(w.terrain) {
		d := time.Since(recomputeStart)
		st.recomputed = true
		st.recomputeMS = float64(d.Microseconds()) / 1000.0
		if d > slowRecompute {
			w.log.Printf("tick %d: slow flow recompute %s over %d cells", nowTick, d, w.traversal.Len())
		}
	}

	st.decisions = swarm.PlanLeaders(w.sortedLeaders(), w.breaches, w.targets, swarm.LeaderRanges{
		Breach: w.cfg.BreachRange,
		Target: w.cfg.TargetRange,
	})
	st.deposits = swarm.DepositScouts(w.sortedScouts(), w.scent, w.cfg.ScoutDeposit)

	for _, e := range w.tunnels.Update(dt) {
		st.emerged++
		w.spawn(nowTick, e)
	}

	w.scent.Decay(w.cfg.ScentDecayPerSecond * dt)
	w.breaches.Tick(dt)

	entry := w.buildTickEntry(nowTick, &st)
	if nowTick%uint64(w.cfg.TelemetryEveryTicks) == 0 {
		if w.tickLogger != nil {
			if err := w.tickLogger.WriteTick(entry); err != nil {
				w.log.Printf("tick %d: tick log: %v", nowTick, err)
			}
		}
		w.broadcastTick(entry)
	}

	w.metrics.Store(WorldMetrics{
		Tick:         nowTick,
		Leaders:      len(w.leaders),
		Scouts:       len(w.scouts),
		Observers:    len(w.observers),
		LoadedChunks: len(w.terrain.LoadedChunkKeys()),
		FieldCells:   w.traversal.Len(),
		Breaches:     w.breaches.Len(),
		Segments:     w.tunnels.Len(),
		Recomputes:   w.traversal.Recomputes(),
		InboxDepth:   len(w.inbox),
		StepMS:       float64(time.Since(stepStart).Microseconds()) / 1000.0,
	})
	w.tick.Add(1)
	return entry
}

func (w *World) drainTerrain(nowTick uint64, st *tickState) {
	changes := w.terrain.DrainChanges()
	st.changes = len(changes)
	for _, c := range changes {
		w.traversal.ApplyChange(c)
		if !c.Destroyed() {
			w.audit(nowTick, c, "CHANGED")
			continue
		}
		switch c.Old.Kind {
		case terrain.KindWall:
			if w.breaches.Add(c.Pos) {
				w.log.Printf("tick %d: breach opened at %v", nowTick, c.Pos)
			}
			w.audit(nowTick, c, "BREACH")
		case terrain.KindTunnel:
			w.breakCorridors(nowTick, c.Pos, st)
			w.audit(nowTick, c, "TUNNEL_BREAK")
		default:
			w.audit(nowTick, c, "DESTROYED")
		}
	}
}

func (w *World) audit(nowTick uint64, c terrain.Change, reason string) {
	if w.auditLogger == nil {
		return
	}
	err := w.auditLogger.WriteAudit(AuditEntry{
		Tick:   nowTick,
		Pos:    c.Pos,
		From:   c.Old.Kind.String(),
		To:     c.New.Kind.String(),
		FromHP: c.Old.HP,
		ToHP:   c.New.HP,
		Reason: reason,
	})
	if err != nil {
		w.log.Printf("tick %d: audit log: %v", nowTick, err)
	}
}

// breakCorridors breaks every intact segment passing through pos.
func (w *World) breakCorridors(nowTick uint64, pos grid.Pos, st *tickState) {
	for {
		id, t, ok := w.tunnels.SegmentThrough(pos)
		if !ok {
			return
		}
		at, ejected, err := w.tunnels.BreakAt(id, t)
		if err != nil {
			return
		}
		w.log.Printf("tick %d: tunnel %d broken at %v, %d ejected", nowTick, id, at, len(ejected))
		for _, e := range ejected {
			st.ejected++
			w.spawn(nowTick, e)
		}
	}
}

func (w *World) spawn(nowTick uint64, e swarm.Emergence) {
	if w.population != nil {
		w.population.Spawn(nowTick, e)
	}
}

// syncGoals seeds the flow sweep from every target and breach.
func (w *World) syncGoals() {
	goals := w.targets.Positions()
	goals = append(goals, w.breaches.Positions()...)
	w.traversal.SetGoals(goals)
}

func (w *World) sortedLeaders() []*swarm.Leader {
	ids := make([]handle.Handle, 0, len(w.leaders))
	for id := range w.leaders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return handle.Less(ids[i], ids[j]) })
	out := make([]*swarm.Leader, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.leaders[id])
	}
	return out
}

func (w *World) sortedScouts() []*swarm.Scout {
	ids := make([]handle.Handle, 0, len(w.scouts))
	for id := range w.scouts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return handle.Less(ids[i], ids[j]) })
	out := make([]*swarm.Scout, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.scouts[id])
	}
	return out
}

func (w *World) buildTickEntry(nowTick uint64, st *tickState) TickLogEntry {
	entry := TickLogEntry{
		Type:            telemetryproto.TypeTick,
		ProtocolVersion: telemetryproto.Version,
		Tick:            nowTick,
		Changes:         st.changes,
		Recomputed:      st.recomputed,
		Recomputes:      w.traversal.Recomputes(),
		RecomputeMS:     st.recomputeMS,
		FieldCells:      w.traversal.Len(),
		Goals:           len(w.traversal.Goals()),
		Emerged:         st.emerged,
		Ejected:         st.ejected,
		Deposits:        st.deposits,
		Scent:           w.scent.Stats(),
		Breaches:        w.breaches.Snapshot(),
		Tunnels:         w.tunnels.Segments(),
		Decisions:       st.decisions,
	}
	for _, l := range w.sortedLeaders() {
		entry.Leaders = append(entry.Leaders, telemetryproto.LeaderRow{
			ID:        l.ID,
			Pos:       l.Pos,
			State:     l.State,
			Target:    l.Target,
			Followers: l.Followers,
		})
	}
	entry.Digest = w.stateDigest(nowTick)
	return entry
}

func (w *World) broadcastTick(entry TickLogEntry) {
	if len(w.observers) == 0 {
		return
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return
	}
	var lite []byte
	for _, o := range w.observers {
		if o.everyTicks > 1 && entry.Tick%uint64(o.everyTicks) != 0 {
			continue
		}
		if o.leaders {
			sendLatest(o.out, b)
			continue
		}
		if lite == nil {
			cp := entry
			cp.Leaders = nil
			cp.Decisions = nil
			if lite, err = json.Marshal(cp); err != nil {
				return
			}
		}
		sendLatest(o.out, lite)
	}
}

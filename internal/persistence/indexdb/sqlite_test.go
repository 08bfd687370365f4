package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/swarm"
	"tunnelwar.ai/internal/sim/world"
	"tunnelwar.ai/internal/telemetryproto"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropAuditTotal != 1 {
		t.Fatalf("DropAuditTotal=%d want=1", st.DropAuditTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	if err := s.WriteTick(world.TickLogEntry{}); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}
	if st := s.Stats(); st != (Stats{}) {
		t.Fatalf("stats=%+v", st)
	}
}

func TestSQLiteIndex_IndexesTicksAndAudits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	breach := grid.Pos{X: 4, Y: 0, Z: 2}
	for tick := uint64(0); tick < 3; tick++ {
		_ = s.WriteTick(world.TickLogEntry{
			Type:       telemetryproto.TypeTick,
			Tick:       tick,
			Digest:     "d",
			Changes:    int(tick),
			Recomputed: tick == 1,
			Breaches:   []telemetryproto.BreachRow{{Pos: breach, AgeSeconds: float64(tick)}},
			Tunnels:    []telemetryproto.TunnelRow{{ID: swarm.SegmentID(1), Intact: tick < 2, MoveRate: 0.5}},
		})
	}
	_ = s.WriteAudit(world.AuditEntry{Tick: 1, Pos: breach, From: "wall", To: "air", Reason: "BREACH"})
	_ = s.WriteAudit(world.AuditEntry{Tick: 1, Pos: breach, From: "air", To: "rubble", Reason: "CHANGED"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	ticks, err := s.RecentTicks(ctx, 2)
	if err != nil {
		t.Fatalf("RecentTicks: %v", err)
	}
	if len(ticks) != 2 || ticks[0].Tick != 2 || ticks[1].Tick != 1 || !ticks[1].Recomputed {
		t.Fatalf("ticks=%+v", ticks)
	}

	audits, err := s.AuditsAt(ctx, breach)
	if err != nil {
		t.Fatalf("AuditsAt: %v", err)
	}
	if len(audits) != 2 || audits[0].Seq != 0 || audits[0].Reason != "BREACH" || audits[1].Seq != 1 {
		t.Fatalf("audits=%+v", audits)
	}

	hist, err := s.BreachHistory(ctx, breach)
	if err != nil {
		t.Fatalf("BreachHistory: %v", err)
	}
	if len(hist) != 3 || hist[2].AgeSeconds != 2 {
		t.Fatalf("history=%+v", hist)
	}

	n, err := s.CountAudits(ctx, "BREACH")
	if err != nil || n != 1 {
		t.Fatalf("CountAudits=%d err=%v", n, err)
	}
}

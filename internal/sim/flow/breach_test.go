package flow

import (
	"testing"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
)

func TestBreachAddIdempotent(t *testing.T) {
	r := NewBreachRegistry()
	p := grid.Pos{X: 2, Y: 3}
	leader := handle.Named("leader-1")

	if !r.Add(p) {
		t.Fatalf("first add must create")
	}
	r.Claim(p, leader)
	if r.Add(p) {
		t.Fatalf("second add must be a no-op")
	}
	if r.Len() != 1 {
		t.Fatalf("len=%d want=1", r.Len())
	}
	b, ok := r.At(p)
	if !ok || b.ClaimedBy != leader {
		t.Fatalf("add overwrote claim: %+v", b)
	}
}

func TestNearestUnclaimedSkipsClaimed(t *testing.T) {
	r := NewBreachRegistry()
	near := grid.Pos{X: 1}
	mid := grid.Pos{X: 0, Y: 3}
	far := grid.Pos{X: 10, Z: -1}
	r.Add(far)
	r.Add(mid)
	r.Add(near)

	b, ok := r.NearestUnclaimed(grid.Pos{})
	if !ok || b.Pos != near {
		t.Fatalf("nearest=%v ok=%v want %v", b.Pos, ok, near)
	}
	r.Claim(near, handle.Named("a"))
	b, ok = r.NearestUnclaimed(grid.Pos{})
	if !ok || b.Pos != mid {
		t.Fatalf("after claim nearest=%v want %v", b.Pos, mid)
	}
	r.Claim(mid, handle.Named("b"))
	r.Claim(far, handle.Named("c"))
	if b, ok := r.NearestUnclaimed(grid.Pos{}); ok {
		t.Fatalf("all claimed, got %+v", b)
	}
}

func TestClaimIsLastWriterWins(t *testing.T) {
	r := NewBreachRegistry()
	p := grid.Pos{}
	r.Add(p)
	a, b := handle.Named("a"), handle.Named("b")

	r.Claim(p, a)
	r.Claim(p, b)
	got, _ := r.At(p)
	if got.ClaimedBy != b {
		t.Fatalf("claimedBy=%v want last writer %v", got.ClaimedBy, b)
	}
	if r.Release(p, a) {
		t.Fatalf("non-holder must not release")
	}
	if !r.Release(p, b) {
		t.Fatalf("holder release failed")
	}
	if got, _ := r.At(p); got.Claimed() {
		t.Fatalf("still claimed after release")
	}
	if r.Claim(grid.Pos{X: 9}, a) {
		t.Fatalf("claim on missing breach must fail")
	}
}

func TestReinforcementsAndAge(t *testing.T) {
	r := NewBreachRegistry()
	p := grid.Pos{Y: 1}
	r.Add(p)
	r.RequestReinforcements(p, 3)
	r.RequestReinforcements(p, 2)
	r.Tick(0.5)
	r.Tick(0.25)

	b, _ := r.At(p)
	if b.ReinforcementRequests != 5 || b.AgeSeconds != 0.75 {
		t.Fatalf("breach=%+v", b)
	}
	if n := r.TakeReinforcements(p); n != 5 {
		t.Fatalf("take=%d want=5", n)
	}
	if n := r.TakeReinforcements(p); n != 0 {
		t.Fatalf("second take=%d want=0", n)
	}
}

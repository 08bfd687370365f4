package grid

import "testing"

func TestManhattanAndBox(t *testing.T) {
	a := Pos{X: 1, Y: -2, Z: 3}
	b := Pos{X: -1, Y: 2, Z: 3}
	if got := Manhattan(a, b); got != 6 {
		t.Fatalf("Manhattan=%d want=6", got)
	}
	if !WithinBox(a, b, 4) {
		t.Fatalf("expected within box r=4")
	}
	if WithinBox(a, b, 3) {
		t.Fatalf("dy=4 must fall outside box r=3")
	}
}

func TestLerpTruncatesTowardZero(t *testing.T) {
	got := Lerp(Pos{X: 0, Y: 0, Z: 0}, Pos{X: 10, Y: -5, Z: 3}, 0.5)
	want := Pos{X: 5, Y: -2, Z: 1}
	if got != want {
		t.Fatalf("Lerp=%v want=%v", got, want)
	}
}

func TestSplitNegative(t *testing.T) {
	block, local := Split(Pos{X: -1, Y: 17, Z: -16}, 16)
	if block != (Pos{X: -1, Y: 1, Z: -1}) {
		t.Fatalf("block=%v", block)
	}
	if local != (Pos{X: 15, Y: 1, Z: 0}) {
		t.Fatalf("local=%v", local)
	}
}

func TestLessOrdersZFirst(t *testing.T) {
	if !Less(Pos{X: 9, Y: 9, Z: -1}, Pos{X: 0, Y: 0, Z: 0}) {
		t.Fatalf("lower z must sort first")
	}
	if Less(Pos{X: 1}, Pos{X: 1}) {
		t.Fatalf("Less must be strict")
	}
}

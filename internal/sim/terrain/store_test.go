package terrain

import (
	"testing"

	"tunnelwar.ai/internal/sim/grid"
)

func TestTileUnknownCell(t *testing.T) {
	s := NewStore()
	s.SetTile(grid.Pos{X: 1, Y: 1, Z: 0}, Air())
	// Same chunk, never written.
	if _, ok := s.Tile(grid.Pos{X: 2, Y: 1, Z: 0}); ok {
		t.Fatalf("unwritten cell in a loaded chunk must be unknown")
	}
	if _, ok := s.Tile(grid.Pos{X: 100, Y: 100, Z: -40}); ok {
		t.Fatalf("cell in a missing chunk must be unknown")
	}
}

func TestDamageToRubbleEmitsChange(t *testing.T) {
	s := NewStore()
	p := grid.Pos{X: 0, Y: 0, Z: -1}
	s.SetTile(p, Dirt(50))
	_ = s.DrainChanges()

	c, ok := s.Damage(p, 20)
	if !ok || c.New.HP != 30 || c.Old.HP != 50 {
		t.Fatalf("damage: ok=%v change=%+v", ok, c)
	}
	if c.Destroyed() {
		t.Fatalf("partial damage must not count as destroyed")
	}

	c, ok = s.Damage(p, 30)
	if !ok || c.New.Kind != KindRubble || !c.Destroyed() {
		t.Fatalf("expected rubble, got ok=%v change=%+v", ok, c)
	}
	if got := len(s.DrainChanges()); got != 2 {
		t.Fatalf("changes=%d want=2", got)
	}
	if got := len(s.DrainChanges()); got != 0 {
		t.Fatalf("drain must clear, got %d", got)
	}

	if _, ok := s.Damage(p, 5); ok {
		t.Fatalf("rubble is not destructible")
	}
}

func TestSetTileSameValueIsQuiet(t *testing.T) {
	s := NewStore()
	p := grid.Pos{X: 3}
	s.SetTile(p, Wall(Wood))
	s.SetTile(p, Wall(Wood))
	if got := len(s.DrainChanges()); got != 1 {
		t.Fatalf("changes=%d want=1", got)
	}
}

func TestCostTracksDurability(t *testing.T) {
	c := DefaultCosts()
	w := Wall(Wood)
	w.HP = 100
	if got := c.Cost(w); got != 100 {
		t.Fatalf("wall cost=%d want=100", got)
	}
	w.HP = 60
	if got := c.Cost(w); got != 60 {
		t.Fatalf("wall cost=%d want=60", got)
	}
	if got := c.Cost(Stone(100)); got != 200 {
		t.Fatalf("stone cost=%d want=200", got)
	}
	if got := c.Cost(Rubble()); got != 3 {
		t.Fatalf("rubble cost=%d want=3", got)
	}
}

func TestGenerateLayers(t *testing.T) {
	s := Generate(GenConfig{SizeX: 8, SizeY: 8, Layers: 3, Seed: 7})
	if got, ok := s.Tile(grid.Pos{X: 2, Y: 3, Z: 0}); !ok || got.Kind != KindAir {
		t.Fatalf("surface=%+v ok=%v", got, ok)
	}
	d, ok := s.Tile(grid.Pos{X: 2, Y: 3, Z: -1})
	if !ok || d.Kind != KindDirt || d.HP < dirtHPMin || d.HP > dirtHPMin+dirtHPSpan {
		t.Fatalf("dirt=%+v ok=%v", d, ok)
	}
	if st, ok := s.Tile(grid.Pos{X: 7, Y: 7, Z: -2}); !ok || st.Kind != KindStone {
		t.Fatalf("stone=%+v ok=%v", st, ok)
	}
	if _, ok := s.Tile(grid.Pos{X: 8, Y: 0, Z: 0}); ok {
		t.Fatalf("outside the slab must be unknown")
	}
	if got := len(s.DrainChanges()); got != 0 {
		t.Fatalf("generation queued %d changes", got)
	}

	n := 0
	s.ForEachTile(func(grid.Pos, Tile) { n++ })
	if n != 8*8*3 {
		t.Fatalf("ForEachTile visited %d want %d", n, 8*8*3)
	}
}

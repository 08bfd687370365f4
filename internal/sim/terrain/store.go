// Package terrain is the destructible grid the routing fields sample: tile
// storage in 16^3 chunks plus the stream of tile-changed notifications.
package terrain

import (
	"sort"

	"tunnelwar.ai/internal/sim/grid"
)

const ChunkSize = 16

const chunkVolume = ChunkSize * ChunkSize * ChunkSize

type Chunk struct {
	Key   grid.Pos
	tiles [chunkVolume]Tile
	known [chunkVolume]bool
}

func (c *Chunk) index(local grid.Pos) int {
	// x fastest, then y, then z
	return local.X + local.Y*ChunkSize + local.Z*ChunkSize*ChunkSize
}

// Change is one tile-changed notification.
type Change struct {
	Pos grid.Pos `json:"pos"`
	Old Tile     `json:"old"`
	New Tile     `json:"new"`
}

// Destroyed reports whether the change collapsed a durable tile.
func (c Change) Destroyed() bool {
	return c.Old.Destructible() && c.New.Kind == KindRubble
}

// Store is the terrain collaborator. Accessed only from the world loop goroutine.
type Store struct {
	chunks  map[grid.Pos]*Chunk
	pending []Change
}

func NewStore() *Store {
	return &Store{chunks: map[grid.Pos]*Chunk{}}
}

// Tile returns the tile at pos, or false if that cell was never generated.
func (s *Store) Tile(pos grid.Pos) (Tile, bool) {
	key, local := grid.Split(pos, ChunkSize)
	ch := s.chunks[key]
	if ch == nil {
		return Tile{}, false
	}
	i := ch.index(local)
	if !ch.known[i] {
		return Tile{}, false
	}
	return ch.tiles[i], true
}

// Durability returns the hit points of the tile at pos. Unknown cells and
// tiles without hit points report false.
func (s *Store) Durability(pos grid.Pos) (uint16, bool) {
	t, ok := s.Tile(pos)
	if !ok {
		return 0, false
	}
	return t.Durability()
}

// SetTile writes t at pos and queues a notification when the tile changed.
func (s *Store) SetTile(pos grid.Pos, t Tile) {
	old, known := s.Tile(pos)
	s.put(pos, t)
	if known && old == t {
		return
	}
	s.pending = append(s.pending, Change{Pos: pos, Old: old, New: t})
}

// Damage removes amount hit points from the tile at pos. A tile reduced to
// zero becomes rubble. Returns false for unknown or indestructible cells.
func (s *Store) Damage(pos grid.Pos, amount uint16) (Change, bool) {
	t, known := s.Tile(pos)
	if !known || amount == 0 {
		return Change{}, false
	}
	old := t
	if _, ok := t.damage(amount); !ok {
		return Change{}, false
	}
	s.put(pos, t)
	c := Change{Pos: pos, Old: old, New: t}
	s.pending = append(s.pending, c)
	return c, true
}

// DrainChanges returns the queued notifications in emission order and clears the queue.
func (s *Store) DrainChanges() []Change {
	out := s.pending
	s.pending = nil
	return out
}

// ForEachTile visits every known cell in deterministic chunk order.
func (s *Store) ForEachTile(fn func(pos grid.Pos, t Tile)) {
	for _, key := range s.LoadedChunkKeys() {
		ch := s.chunks[key]
		base := grid.Pos{X: key.X * ChunkSize, Y: key.Y * ChunkSize, Z: key.Z * ChunkSize}
		for z := 0; z < ChunkSize; z++ {
			for y := 0; y < ChunkSize; y++ {
				for x := 0; x < ChunkSize; x++ {
					local := grid.Pos{X: x, Y: y, Z: z}
					i := ch.index(local)
					if !ch.known[i] {
						continue
					}
					fn(base.Add(local), ch.tiles[i])
				}
			}
		}
	}
}

func (s *Store) LoadedChunkKeys() []grid.Pos {
	keys := make([]grid.Pos, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return grid.Less(keys[i], keys[j]) })
	return keys
}

func (s *Store) put(pos grid.Pos, t Tile) {
	key, local := grid.Split(pos, ChunkSize)
	ch := s.chunks[key]
	if ch == nil {
		ch = &Chunk{Key: key}
		s.chunks[key] = ch
	}
	i := ch.index(local)
	ch.tiles[i] = t
	ch.known[i] = true
}

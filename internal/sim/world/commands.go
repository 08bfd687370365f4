package world

import (
	"context"
	"errors"
	"fmt"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
	"tunnelwar.ai/internal/sim/swarm"
	"tunnelwar.ai/internal/sim/terrain"
)

var ErrNoHandle = errors.New("command requires a handle")

// Command is an input applied at the start of the next tick, in inbox order.
type Command interface {
	apply(w *World) error
}

// SetTarget writes a Target Field value. Zero removes the entry.
type SetTarget struct {
	Pos   grid.Pos
	Value uint32
}

func (c SetTarget) apply(w *World) error {
	w.targets.SetValue(c.Pos, c.Value)
	return nil
}

// DamageTile is a combat hit on terrain.
type DamageTile struct {
	Pos    grid.Pos
	Amount uint16
}

func (c DamageTile) apply(w *World) error {
	if _, ok := w.terrain.Damage(c.Pos, c.Amount); !ok {
		return fmt.Errorf("damage %v: no destructible tile", c.Pos)
	}
	return nil
}

// PlaceTile writes a tile, e.g. a wall being built or a tunnel being dug.
type PlaceTile struct {
	Pos  grid.Pos
	Tile terrain.Tile
}

func (c PlaceTile) apply(w *World) error {
	w.terrain.SetTile(c.Pos, c.Tile)
	return nil
}

// DigTunnel lays tunnel tiles along a straight corridor and registers the
// segment. A zero MoveRate uses the configured default.
type DigTunnel struct {
	Start    grid.Pos
	End      grid.Pos
	MoveRate float64
	HP       uint16
}

func (c DigTunnel) apply(w *World) error {
	rate := c.MoveRate
	if rate == 0 {
		rate = w.cfg.DefaultMoveRate
	}
	id, err := w.tunnels.AddSegment(c.Start, c.End, rate)
	if err != nil {
		return err
	}
	hp := c.HP
	if hp == 0 {
		hp = 20
	}
	cells, err := w.tunnels.Cells(id)
	if err != nil {
		return err
	}
	for _, p := range cells {
		w.terrain.SetTile(p, terrain.Tunnel(hp))
	}
	w.log.Printf("tunnel %d dug %v -> %v rate=%.3f", id, c.Start, c.End, rate)
	return nil
}

// EnqueueAgent puts an agent into a corridor at progress 0.
type EnqueueAgent struct {
	Segment swarm.SegmentID
	Agent   swarm.QueuedAgent
}

func (c EnqueueAgent) apply(w *World) error {
	return w.tunnels.Enqueue(c.Segment, c.Agent)
}

// UpsertLeader registers a leader or refreshes the fields owned by movement
// and combat (position, home, follower counts). Decision state is kept.
type UpsertLeader struct {
	Leader swarm.Leader
}

func (c UpsertLeader) apply(w *World) error {
	in := c.Leader
	if in.ID.IsNone() {
		return ErrNoHandle
	}
	if in.MaxFollowers == 0 {
		in.MaxFollowers = w.cfg.MaxFollowers
	}
	l := w.leaders[in.ID]
	if l == nil {
		cp := in
		cp.State = swarm.LeaderSeeking
		cp.HasBreach = false
		w.leaders[in.ID] = &cp
		return nil
	}
	l.Nest = in.Nest
	l.Pos = in.Pos
	l.Home = in.Home
	l.Followers = in.Followers
	l.MaxFollowers = in.MaxFollowers
	return nil
}

type RemoveLeader struct {
	ID handle.Handle
}

func (c RemoveLeader) apply(w *World) error {
	l := w.leaders[c.ID]
	if l == nil {
		return nil
	}
	if l.HasBreach {
		w.breaches.Release(l.Breach, l.ID)
	}
	delete(w.leaders, c.ID)
	return nil
}

// UpsertScout registers a scout or updates its position and returning flag.
type UpsertScout struct {
	Scout swarm.Scout
}

func (c UpsertScout) apply(w *World) error {
	in := c.Scout
	if in.ID.IsNone() {
		return ErrNoHandle
	}
	s := w.scouts[in.ID]
	if s == nil {
		cp := in
		w.scouts[in.ID] = &cp
		return nil
	}
	s.Nest = in.Nest
	s.Pos = in.Pos
	s.Returning = in.Returning
	return nil
}

type RemoveScout struct {
	ID handle.Handle
}

func (c RemoveScout) apply(w *World) error {
	delete(w.scouts, c.ID)
	return nil
}

// Submit queues cmd for the next tick. It is safe to call from other goroutines.
func (w *World) Submit(ctx context.Context, cmd Command) error {
	if cmd == nil {
		return errors.New("nil command")
	}
	select {
	case w.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) applyCommands(cmds []Command) int {
	applied := 0
	for _, c := range cmds {
		if err := c.apply(w); err != nil {
			w.log.Printf("command %T: %v", c, err)
			continue
		}
		applied++
	}
	return applied
}

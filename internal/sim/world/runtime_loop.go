package world

import (
	"context"
	"errors"
	"time"

	"tunnelwar.ai/internal/sim/flow"
	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/swarm"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []Command
	dt := w.dt()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case cmd := <-w.inbox:
			pending = append(pending, cmd)
		case req := <-w.stateReq:
			w.handleStateReq(req)
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-ticker.C:
			w.step(dt, pending)
			pending = pending[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// State is a read-only copy of the routing structures.
type State struct {
	Tick     uint64              `json:"tick"`
	Goals    []grid.Pos          `json:"goals"`
	Breaches []flow.BreachPoint  `json:"breaches"`
	Tunnels  []swarm.SegmentInfo `json:"tunnels"`
	Scent    swarm.ScentStats    `json:"scent"`
	Leaders  []swarm.Leader      `json:"leaders"`

	// Flow holds the offset at each requested probe position.
	Flow map[string]grid.Pos `json:"flow,omitempty"`
	Cost map[string]uint32   `json:"cost,omitempty"`
}

type stateReq struct {
	Probes []grid.Pos
	Resp   chan State
}

// RequestState asks the world loop goroutine for a copy of its state, with
// cost and flow sampled at probes. It is safe to call from other goroutines
// (e.g. HTTP handlers).
func (w *World) RequestState(ctx context.Context, probes []grid.Pos) (State, error) {
	if w == nil || w.stateReq == nil {
		return State{}, errors.New("world state not available")
	}
	resp := make(chan State, 1)
	select {
	case w.stateReq <- stateReq{Probes: probes, Resp: resp}:
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case s := <-resp:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (w *World) handleStateReq(req stateReq) {
	s := State{
		Tick:     w.tick.Load(),
		Goals:    w.traversal.Goals(),
		Breaches: w.breaches.Snapshot(),
		Tunnels:  w.tunnels.Segments(),
		Scent:    w.scent.Stats(),
	}
	for _, l := range w.sortedLeaders() {
		s.Leaders = append(s.Leaders, *l)
	}
	if len(req.Probes) > 0 {
		s.Flow = map[string]grid.Pos{}
		s.Cost = map[string]uint32{}
		for _, p := range req.Probes {
			key := posKey(p)
			s.Cost[key] = w.traversal.Cost(p)
			if off, ok := w.traversal.FlowDirection(p); ok {
				s.Flow[key] = off
			}
		}
	}
	select {
	case req.Resp <- s:
	default:
		// Client timed out; don't block the sim loop.
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

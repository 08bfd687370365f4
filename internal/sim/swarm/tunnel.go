package swarm

import (
	"errors"
	"fmt"
	"math"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
)

var (
	ErrUnknownSegment = errors.New("unknown tunnel segment")
	ErrBadMoveRate    = errors.New("move rate must be a non-negative number")
)

type SegmentID int

// QueuedAgent is an off-screen agent travelling through a corridor. Its only
// state is the progress scalar; it has no transform or behaviour until it
// is promoted back to a full agent.
type QueuedAgent struct {
	Caste    Caste         `json:"caste"`
	Progress float64       `json:"progress"`
	Leader   handle.Handle `json:"leader"`
	Nest     handle.Handle `json:"nest"`
}

// Emergence is a queued agent handed back to the spawn collaborator to be
// instantiated as a full agent at Pos.
type Emergence struct {
	Agent   QueuedAgent `json:"agent"`
	Pos     grid.Pos    `json:"pos"`
	Segment SegmentID   `json:"segment"`
	Ejected bool        `json:"ejected"`
}

// Segment is a linear corridor from Start to End. Once broken it never
// advances again and agents past the break stay queued.
type Segment struct {
	ID       SegmentID
	Start    grid.Pos
	End      grid.Pos
	MoveRate float64
	Intact   bool

	queue []QueuedAgent
}

// Enqueue appends a at the start of the corridor with progress reset to 0.
func (s *Segment) Enqueue(a QueuedAgent) {
	a.Progress = 0
	s.queue = append(s.queue, a)
}

// Update advances every agent by MoveRate*dt and removes those that reached
// the far end. Broken segments do not advance.
func (s *Segment) Update(dt float64) []QueuedAgent {
	if !s.Intact || len(s.queue) == 0 {
		return nil
	}
	step := s.MoveRate * dt
	var emerged []QueuedAgent
	kept := s.queue[:0]
	for _, a := range s.queue {
		a.Progress += step
		if a.Progress >= 1 {
			emerged = append(emerged, a)
			continue
		}
		kept = append(kept, a)
	}
	s.queue = kept
	return emerged
}

// BreakAt marks the segment broken at parameter t and ejects every agent
// that had not yet reached the break.
func (s *Segment) BreakAt(t float64) (grid.Pos, []QueuedAgent) {
	s.Intact = false
	pos := grid.Lerp(s.Start, s.End, t)

	var ejected []QueuedAgent
	kept := s.queue[:0]
	for _, a := range s.queue {
		if a.Progress < t {
			ejected = append(ejected, a)
			continue
		}
		kept = append(kept, a)
	}
	s.queue = kept
	return pos, ejected
}

func (s *Segment) Len() int { return len(s.queue) }

// Queue copies the queued agents in entry order.
func (s *Segment) Queue() []QueuedAgent { return append([]QueuedAgent(nil), s.queue...) }

// Cells returns the tiles a corridor occupies: one grid.Lerp sample per
// Manhattan step from Start to End. Diagonal corridors repeat cells.
func (s *Segment) Cells() []grid.Pos {
	steps := grid.Manhattan(s.Start, s.End)
	out := make([]grid.Pos, 0, steps+1)
	for i := 0; i <= steps; i++ {
		out = append(out, grid.Lerp(s.Start, s.End, s.stepParam(i, steps)))
	}
	return out
}

func (s *Segment) stepParam(i, steps int) float64 {
	if steps == 0 {
		return 1
	}
	return float64(i) / float64(steps)
}

// param returns the corridor parameter of the first sample of Cells that
// lands on pos. BreakAt at that parameter resolves back to pos.
func (s *Segment) param(pos grid.Pos) (float64, bool) {
	steps := grid.Manhattan(s.Start, s.End)
	for i := 0; i <= steps; i++ {
		t := s.stepParam(i, steps)
		if grid.Lerp(s.Start, s.End, t) == pos {
			return t, true
		}
	}
	return 0, false
}

// SegmentInfo is a read-only view of a segment for telemetry.
type SegmentInfo struct {
	ID       SegmentID `json:"id"`
	Start    grid.Pos  `json:"start"`
	End      grid.Pos  `json:"end"`
	MoveRate float64   `json:"move_rate"`
	Intact   bool      `json:"intact"`
	Queued   int       `json:"queued"`
}

// TunnelNetwork owns every corridor. Segment ids are indexes in creation order.
type TunnelNetwork struct {
	segments []*Segment
}

func NewTunnelNetwork() *TunnelNetwork { return &TunnelNetwork{} }

func (n *TunnelNetwork) AddSegment(start, end grid.Pos, moveRate float64) (SegmentID, error) {
	if moveRate < 0 || math.IsNaN(moveRate) || math.IsInf(moveRate, 0) {
		return 0, fmt.Errorf("%w: %v", ErrBadMoveRate, moveRate)
	}
	id := SegmentID(len(n.segments))
	n.segments = append(n.segments, &Segment{
		ID:       id,
		Start:    start,
		End:      end,
		MoveRate: moveRate,
		Intact:   true,
	})
	return id, nil
}

func (n *TunnelNetwork) Len() int { return len(n.segments) }

// SegmentAt finds the first segment starting at pos.
func (n *TunnelNetwork) SegmentAt(start grid.Pos) (SegmentID, bool) {
	for _, s := range n.segments {
		if s.Start == start {
			return s.ID, true
		}
	}
	return 0, false
}

// SegmentThrough finds the first intact segment passing through pos and the
// corridor parameter at that point.
func (n *TunnelNetwork) SegmentThrough(pos grid.Pos) (SegmentID, float64, bool) {
	for _, s := range n.segments {
		if !s.Intact {
			continue
		}
		if t, ok := s.param(pos); ok {
			return s.ID, t, true
		}
	}
	return 0, 0, false
}

func (n *TunnelNetwork) Enqueue(id SegmentID, a QueuedAgent) error {
	s, err := n.segment(id)
	if err != nil {
		return err
	}
	s.Enqueue(a)
	return nil
}

// Update advances every intact segment and returns the agents that emerged
// at segment ends, in segment order.
func (n *TunnelNetwork) Update(dt float64) []Emergence {
	var out []Emergence
	for _, s := range n.segments {
		if !s.Intact {
			continue
		}
		for _, a := range s.Update(dt) {
			out = append(out, Emergence{Agent: a, Pos: s.End, Segment: s.ID})
		}
	}
	return out
}

// BreakAt breaks segment id at parameter t (clamped to [0,1]) and returns the
// break position with the ejected agents.
func (n *TunnelNetwork) BreakAt(id SegmentID, t float64) (grid.Pos, []Emergence, error) {
	s, err := n.segment(id)
	if err != nil {
		return grid.Pos{}, nil, err
	}
	if math.IsNaN(t) {
		t = 0
	}
	t = math.Max(0, math.Min(1, t))
	pos, ejected := s.BreakAt(t)
	out := make([]Emergence, 0, len(ejected))
	for _, a := range ejected {
		out = append(out, Emergence{Agent: a, Pos: pos, Segment: id, Ejected: true})
	}
	return pos, out, nil
}

func (n *TunnelNetwork) Segments() []SegmentInfo {
	out := make([]SegmentInfo, 0, len(n.segments))
	for _, s := range n.segments {
		out = append(out, SegmentInfo{
			ID:       s.ID,
			Start:    s.Start,
			End:      s.End,
			MoveRate: s.MoveRate,
			Intact:   s.Intact,
			Queued:   len(s.queue),
		})
	}
	return out
}

// Cells returns the tiles segment id occupies, see Segment.Cells.
func (n *TunnelNetwork) Cells(id SegmentID) ([]grid.Pos, error) {
	s, err := n.segment(id)
	if err != nil {
		return nil, err
	}
	return s.Cells(), nil
}

// Queued returns a copy of the agents queued in segment id.
func (n *TunnelNetwork) Queued(id SegmentID) ([]QueuedAgent, error) {
	s, err := n.segment(id)
	if err != nil {
		return nil, err
	}
	return s.Queue(), nil
}

func (n *TunnelNetwork) segment(id SegmentID) (*Segment, error) {
	if id < 0 || int(id) >= len(n.segments) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSegment, id)
	}
	return n.segments[id], nil
}

package swarm

import (
	"fmt"
	"sort"

	"tunnelwar.ai/internal/sim/flow"
	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
)

type LeaderState uint8

const (
	LeaderSeeking LeaderState = iota
	LeaderAssaulting
	LeaderRetreating
)

func (s LeaderState) String() string {
	switch s {
	case LeaderSeeking:
		return "SEEKING"
	case LeaderAssaulting:
		return "ASSAULTING"
	case LeaderRetreating:
		return "RETREATING"
	default:
		return "UNKNOWN"
	}
}

func (s LeaderState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *LeaderState) UnmarshalText(b []byte) error {
	for v := LeaderSeeking; v <= LeaderRetreating; v++ {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown leader state %q", b)
}

// Leader is the decision state of a swarm leader. Position and follower
// count are owned by the movement and combat collaborators; PlanLeaders only
// writes State, Target and the breach claim.
type Leader struct {
	ID           handle.Handle `json:"id"`
	Nest         handle.Handle `json:"nest"`
	Pos          grid.Pos      `json:"pos"`
	Home         grid.Pos      `json:"home"`
	Followers    uint32        `json:"followers"`
	MaxFollowers uint32        `json:"max_followers"`

	State     LeaderState `json:"state"`
	Target    grid.Pos    `json:"target"`
	Breach    grid.Pos    `json:"breach"`
	HasBreach bool        `json:"has_breach"`

	requested bool
}

func (l *Leader) NeedsReinforcements() bool { return l.Followers < l.MaxFollowers/2 }
func (l *Leader) CanSpareTroops() bool      { return l.Followers > l.MaxFollowers*3/4 }

// BreachBoard is the part of the breach registry leaders coordinate through.
type BreachBoard interface {
	NearestUnclaimed(from grid.Pos) (flow.BreachPoint, bool)
	At(pos grid.Pos) (flow.BreachPoint, bool)
	Claim(pos grid.Pos, leader handle.Handle) bool
	Release(pos grid.Pos, leader handle.Handle) bool
	RequestReinforcements(pos grid.Pos, count uint32) bool
}

type TargetLookup interface {
	Value(pos grid.Pos) uint32
	HighestValueTarget(from grid.Pos, maxRange int) (grid.Pos, uint32, bool)
}

type LeaderRanges struct {
	Breach int
	Target int
}

// LeaderDecision records a state transition or request made during planning.
type LeaderDecision struct {
	Leader    handle.Handle `json:"leader"`
	From      LeaderState   `json:"from"`
	To        LeaderState   `json:"to"`
	Target    grid.Pos      `json:"target"`
	Claimed   bool          `json:"claimed,omitempty"`
	Requested uint32        `json:"requested,omitempty"`
}

// PlanLeaders runs one decision step for every leader in handle order.
// Breach claims are re-read right after writing so a leader only assaults a
// breach it still holds.
func PlanLeaders(leaders []*Leader, breaches BreachBoard, targets TargetLookup, r LeaderRanges) []LeaderDecision {
	ordered := append([]*Leader(nil), leaders...)
	sort.SliceStable(ordered, func(i, j int) bool { return handle.Less(ordered[i].ID, ordered[j].ID) })

	var out []LeaderDecision
	for _, l := range ordered {
		if d, ok := planLeader(l, breaches, targets, r); ok {
			out = append(out, d)
		}
	}
	return out
}

func planLeader(l *Leader, breaches BreachBoard, targets TargetLookup, r LeaderRanges) (LeaderDecision, bool) {
	from := l.State
	switch l.State {
	case LeaderSeeking:
		if b, ok := breaches.NearestUnclaimed(l.Pos); ok && grid.WithinBox(b.Pos, l.Pos, r.Breach) {
			breaches.Claim(b.Pos, l.ID)
			if got, ok := breaches.At(b.Pos); ok && got.ClaimedBy == l.ID {
				l.State, l.Target = LeaderAssaulting, b.Pos
				l.Breach, l.HasBreach = b.Pos, true
				return LeaderDecision{Leader: l.ID, From: from, To: l.State, Target: l.Target, Claimed: true}, true
			}
		}
		if p, _, ok := targets.HighestValueTarget(l.Pos, r.Target); ok {
			l.State, l.Target = LeaderAssaulting, p
			return LeaderDecision{Leader: l.ID, From: from, To: l.State, Target: p}, true
		}
		return LeaderDecision{}, false

	case LeaderAssaulting:
		if l.HasBreach {
			if got, ok := breaches.At(l.Breach); !ok || got.ClaimedBy != l.ID {
				l.dropBreach(breaches)
				l.State = LeaderSeeking
				return LeaderDecision{Leader: l.ID, From: from, To: l.State}, true
			}
		} else if targets.Value(l.Target) == 0 {
			// Objective removed from the target field.
			l.State = LeaderSeeking
			return LeaderDecision{Leader: l.ID, From: from, To: l.State}, true
		}
		if l.MaxFollowers > 0 && l.Followers == 0 {
			l.dropBreach(breaches)
			l.State, l.Target = LeaderRetreating, l.Home
			return LeaderDecision{Leader: l.ID, From: from, To: l.State, Target: l.Home}, true
		}
		if !l.NeedsReinforcements() {
			l.requested = false
			return LeaderDecision{}, false
		}
		if l.requested || !l.HasBreach {
			return LeaderDecision{}, false
		}
		want := l.MaxFollowers - l.Followers
		if breaches.RequestReinforcements(l.Breach, want) {
			l.requested = true
			return LeaderDecision{Leader: l.ID, From: from, To: l.State, Target: l.Target, Requested: want}, true
		}
		return LeaderDecision{}, false

	case LeaderRetreating:
		if grid.WithinBox(l.Pos, l.Home, 1) {
			l.State = LeaderSeeking
			return LeaderDecision{Leader: l.ID, From: from, To: l.State}, true
		}
	}
	return LeaderDecision{}, false
}

func (l *Leader) dropBreach(breaches BreachBoard) {
	if l.HasBreach {
		breaches.Release(l.Breach, l.ID)
	}
	l.Breach, l.HasBreach = grid.Pos{}, false
	l.requested = false
}

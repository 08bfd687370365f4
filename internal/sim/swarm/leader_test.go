package swarm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tunnelwar.ai/internal/sim/flow"
	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
)

var testRanges = LeaderRanges{Breach: 10, Target: 50}

func orderedPair(a, b handle.Handle) (first, second handle.Handle) {
	if handle.Less(a, b) {
		return a, b
	}
	return b, a
}

func TestPlanLeadersRaceForBreach(t *testing.T) {
	breaches := flow.NewBreachRegistry()
	targets := flow.NewTargetField()
	breach := grid.Pos{X: 3}
	breaches.Add(breach)
	keep := grid.Pos{X: 30, Y: 30}
	targets.SetValue(keep, flow.ValueKeep)

	first, second := orderedPair(handle.Named("leader-a"), handle.Named("leader-b"))
	la := &Leader{ID: second, MaxFollowers: 20, Followers: 20}
	lb := &Leader{ID: first, MaxFollowers: 20, Followers: 20}

	out := PlanLeaders([]*Leader{la, lb}, breaches, targets, testRanges)
	require.Len(t, out, 2)
	require.Equal(t, first, out[0].Leader)
	require.True(t, out[0].Claimed)

	got, _ := breaches.At(breach)
	require.Equal(t, first, got.ClaimedBy)
	require.True(t, lb.HasBreach)
	require.Equal(t, breach, lb.Target)

	require.False(t, la.HasBreach)
	require.Equal(t, LeaderAssaulting, la.State)
	require.Equal(t, keep, la.Target)
}

func TestPlanLeadersBreachOutOfRange(t *testing.T) {
	breaches := flow.NewBreachRegistry()
	targets := flow.NewTargetField()
	breaches.Add(grid.Pos{X: 11})

	l := &Leader{ID: handle.Named("l"), MaxFollowers: 10, Followers: 10}
	require.Empty(t, PlanLeaders([]*Leader{l}, breaches, targets, testRanges))
	require.Equal(t, LeaderSeeking, l.State, "idle without breach or target")

	got, _ := breaches.At(grid.Pos{X: 11})
	require.False(t, got.Claimed())
}

func TestPlanLeadersReinforcementsOnce(t *testing.T) {
	breaches := flow.NewBreachRegistry()
	targets := flow.NewTargetField()
	p := grid.Pos{Y: 2}
	breaches.Add(p)

	l := &Leader{ID: handle.Named("l"), MaxFollowers: 20, Followers: 20}
	PlanLeaders([]*Leader{l}, breaches, targets, testRanges)
	require.Equal(t, LeaderAssaulting, l.State)

	l.Followers = 6
	out := PlanLeaders([]*Leader{l}, breaches, targets, testRanges)
	require.Len(t, out, 1)
	require.Equal(t, uint32(14), out[0].Requested)
	require.Empty(t, PlanLeaders([]*Leader{l}, breaches, targets, testRanges))

	got, _ := breaches.At(p)
	require.Equal(t, uint32(14), got.ReinforcementRequests)
}

func TestPlanLeadersRetreatAndLostClaim(t *testing.T) {
	breaches := flow.NewBreachRegistry()
	targets := flow.NewTargetField()
	p := grid.Pos{X: 1}
	breaches.Add(p)

	home := grid.Pos{X: -5}
	l := &Leader{ID: handle.Named("l"), Home: home, MaxFollowers: 4, Followers: 4}
	PlanLeaders([]*Leader{l}, breaches, targets, testRanges)

	breaches.Claim(p, handle.Named("usurper"))
	out := PlanLeaders([]*Leader{l}, breaches, targets, testRanges)
	require.Len(t, out, 1)
	require.Equal(t, LeaderSeeking, l.State)
	require.False(t, l.HasBreach)

	targets.SetValue(grid.Pos{X: 2}, flow.ValueGate)
	PlanLeaders([]*Leader{l}, breaches, targets, testRanges)
	require.Equal(t, LeaderAssaulting, l.State)

	l.Followers = 0
	PlanLeaders([]*Leader{l}, breaches, targets, testRanges)
	require.Equal(t, LeaderRetreating, l.State)
	require.Equal(t, home, l.Target)

	PlanLeaders([]*Leader{l}, breaches, targets, testRanges)
	require.Equal(t, LeaderRetreating, l.State)
	l.Pos = home
	PlanLeaders([]*Leader{l}, breaches, targets, testRanges)
	require.Equal(t, LeaderSeeking, l.State)
}

func TestPlanLeadersRemovedTargetReturnsToSeeking(t *testing.T) {
	breaches := flow.NewBreachRegistry()
	targets := flow.NewTargetField()
	gate := grid.Pos{X: 4, Y: 2}
	targets.SetValue(gate, flow.ValueGate)

	l := &Leader{ID: handle.Named("l"), MaxFollowers: 10, Followers: 10}
	PlanLeaders([]*Leader{l}, breaches, targets, testRanges)
	require.Equal(t, LeaderAssaulting, l.State)
	require.Equal(t, gate, l.Target)
	require.False(t, l.HasBreach)

	targets.SetValue(gate, 0)
	out := PlanLeaders([]*Leader{l}, breaches, targets, testRanges)
	require.Len(t, out, 1)
	require.Equal(t, LeaderAssaulting, out[0].From)
	require.Equal(t, LeaderSeeking, l.State)

	require.Empty(t, PlanLeaders([]*Leader{l}, breaches, targets, testRanges))
	require.Equal(t, LeaderSeeking, l.State, "idle without breach or target")
}

func TestCasteTextRoundTrip(t *testing.T) {
	var c Caste
	require.NoError(t, c.UnmarshalText([]byte("SIEGE")))
	require.Equal(t, CasteSiege, c)
	require.Equal(t, uint32(60), c.BiomassCost())
	require.Error(t, c.UnmarshalText([]byte("QUEEN")))
	require.Equal(t, "UNKNOWN", Caste(99).String())
}

package swarm

import (
	"sort"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
)

const maxHomePath = 256

// Scout explores away from its nest and lays a scent trail that
// reinforcements follow back.
type Scout struct {
	ID        handle.Handle `json:"id"`
	Nest      handle.Handle `json:"nest"`
	Pos       grid.Pos      `json:"pos"`
	Returning bool          `json:"returning"`

	homePath []grid.Pos
}

// HomePath returns the positions visited while exploring, most recent last.
func (s *Scout) HomePath() []grid.Pos { return append([]grid.Pos(nil), s.homePath...) }

// DepositScouts lays amount of scent at each exploring scout's position and
// returns the number of deposits made. Returning scouts do not deposit.
func DepositScouts(scouts []*Scout, m *ScentMap, amount float64) int {
	ordered := append([]*Scout(nil), scouts...)
	sort.SliceStable(ordered, func(i, j int) bool { return handle.Less(ordered[i].ID, ordered[j].ID) })

	n := 0
	for _, s := range ordered {
		if s.Returning {
			continue
		}
		m.AddScent(s.Pos, s.Nest, amount)
		if k := len(s.homePath); k == 0 || s.homePath[k-1] != s.Pos {
			s.homePath = append(s.homePath, s.Pos)
			if len(s.homePath) > maxHomePath {
				s.homePath = s.homePath[len(s.homePath)-maxHomePath:]
			}
		}
		n++
	}
	return n
}

// FollowScent returns the next position along nest's trail from pos.
func FollowScent(m *ScentMap, pos grid.Pos, nest handle.Handle) (grid.Pos, bool) {
	off, ok := m.StrongestDirection(pos, nest)
	if !ok {
		return pos, false
	}
	return pos.Add(off), true
}

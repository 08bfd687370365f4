package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
)

// stateDigest hashes the routing and population state so replays can check
// that two runs with the same inputs stayed identical.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, w.traversal.Recomputes())

	for _, g := range w.traversal.Goals() {
		digestWritePos(h, &tmp, g)
		digestWriteU64(h, &tmp, uint64(w.targets.Value(g)))
	}
	for _, b := range w.breaches.Snapshot() {
		digestWritePos(h, &tmp, b.Pos)
		digestWriteHandle(h, b.ClaimedBy)
		digestWriteU64(h, &tmp, uint64(b.ReinforcementRequests))
		digestWriteF64(h, &tmp, b.AgeSeconds)
	}
	for _, s := range w.tunnels.Segments() {
		digestWritePos(h, &tmp, s.Start)
		digestWritePos(h, &tmp, s.End)
		h.Write([]byte{boolByte(s.Intact)})
		q, _ := w.tunnels.Queued(s.ID)
		for _, a := range q {
			h.Write([]byte{byte(a.Caste)})
			digestWriteF64(h, &tmp, a.Progress)
			digestWriteHandle(h, a.Leader)
			digestWriteHandle(h, a.Nest)
		}
	}
	st := w.scent.Stats()
	digestWriteU64(h, &tmp, uint64(st.Entries))
	digestWriteU64(h, &tmp, st.Deposits)
	for _, l := range w.sortedLeaders() {
		digestWriteHandle(h, l.ID)
		h.Write([]byte{byte(l.State), boolByte(l.HasBreach)})
		digestWritePos(h, &tmp, l.Target)
	}

	return hex.EncodeToString(h.Sum(nil))
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWritePos(h hashWriter, tmp *[8]byte, p grid.Pos) {
	digestWriteI64(h, tmp, int64(p.X))
	digestWriteI64(h, tmp, int64(p.Y))
	digestWriteI64(h, tmp, int64(p.Z))
}

func digestWriteHandle(h hashWriter, id handle.Handle) {
	h.Write([]byte(id.String()))
	h.Write([]byte{0})
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func posKey(p grid.Pos) string { return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z) }

// ParsePosKey is the inverse of the keys used in State.Flow and State.Cost.
func ParsePosKey(s string) (grid.Pos, error) {
	var p grid.Pos
	if _, err := fmt.Sscanf(s, "%d,%d,%d", &p.X, &p.Y, &p.Z); err != nil {
		return grid.Pos{}, fmt.Errorf("bad position key %q: %w", s, err)
	}
	return p, nil
}

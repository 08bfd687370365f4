package telemetryproto

import (
	"tunnelwar.ai/internal/sim/flow"
	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
	"tunnelwar.ai/internal/sim/swarm"
)

// Version is the telemetry feed protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "TICK"
)

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EveryTicks      int    `json:"every_ticks,omitempty"`
	Leaders         bool   `json:"leaders,omitempty"`
}

// HTTP response for GET /v1/telemetry/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz int    `json:"tick_rate_hz"`
	ChunkSize  [3]int `json:"chunk_size"`
	SizeX      int    `json:"size_x"`
	SizeY      int    `json:"size_y"`
	Layers     int    `json:"layers"`
	Seed       int64  `json:"seed"`
}

// TickMsg summarizes one simulation tick. It is the tick log row, the sqlite
// index input and the observer feed message.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Digest          string `json:"digest"`

	Changes     int     `json:"changes"`
	Recomputed  bool    `json:"recomputed"`
	Recomputes  uint64  `json:"recomputes"`
	RecomputeMS float64 `json:"recompute_ms,omitempty"`
	FieldCells  int     `json:"field_cells"`
	Goals       int     `json:"goals"`

	Emerged  int `json:"emerged"`
	Ejected  int `json:"ejected"`
	Deposits int `json:"deposits"`

	Scent    swarm.ScentStats `json:"scent"`
	Breaches []BreachRow      `json:"breaches"`
	Tunnels  []TunnelRow      `json:"tunnels"`

	Decisions []swarm.LeaderDecision `json:"decisions,omitempty"`
	Leaders   []LeaderRow            `json:"leaders,omitempty"`
}

type BreachRow = flow.BreachPoint

type TunnelRow = swarm.SegmentInfo

type LeaderRow struct {
	ID        handle.Handle     `json:"id"`
	Pos       grid.Pos          `json:"pos"`
	State     swarm.LeaderState `json:"state"`
	Target    grid.Pos          `json:"target"`
	Followers uint32            `json:"followers"`
}

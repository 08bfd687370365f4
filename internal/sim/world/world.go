// Package world runs the routing and population core as a single-threaded,
// tick-driven simulation. Every structure is written only by its own step
// within a tick; callers outside the loop goroutine talk to it through
// channels.
package world

import (
	"io"
	"log"
	"sync/atomic"

	"tunnelwar.ai/internal/sim/flow"
	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/handle"
	"tunnelwar.ai/internal/sim/swarm"
	"tunnelwar.ai/internal/sim/terrain"
	"tunnelwar.ai/internal/sim/tuning"
	"tunnelwar.ai/internal/telemetryproto"
)

type Config struct {
	TickRateHz int

	Costs terrain.CostTable
	Gen   terrain.GenConfig

	// ScentDecayPerSecond of 0 disables decay. Negative uses the default.
	ScentDecayPerSecond float64
	ScoutDeposit        float64
	DefaultMoveRate     float64

	BreachRange  int
	TargetRange  int
	MaxFollowers uint32

	TelemetryEveryTicks int
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		TickRateHz: t.TickRateHz,
		Costs: terrain.CostTable{
			Air:       t.Costs.Air,
			Rubble:    t.Costs.Rubble,
			Tunnel:    t.Costs.Tunnel,
			Nest:      t.Costs.Nest,
			DirtMult:  t.Costs.DirtMult,
			StoneMult: t.Costs.StoneMult,
			WallMult:  t.Costs.WallMult,
			FloorMult: t.Costs.FloorMult,
		},
		Gen: terrain.GenConfig{
			SizeX:  t.World.SizeX,
			SizeY:  t.World.SizeY,
			Layers: t.World.Layers,
			Seed:   t.World.Seed,
		},
		ScentDecayPerSecond: t.Scent.DecayPerSecond,
		ScoutDeposit:        t.Scent.ScoutDeposit,
		DefaultMoveRate:     t.Tunnels.DefaultMoveRate,
		BreachRange:         t.Leaders.BreachRange,
		TargetRange:         t.Leaders.TargetRange,
		MaxFollowers:        uint32(t.Leaders.MaxFollowers),
		TelemetryEveryTicks: t.Telemetry.EveryTicks,
	}
}

// TickLogEntry is the per-tick telemetry row handed to every sink.
type TickLogEntry = telemetryproto.TickMsg

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// AuditEntry records one terrain notification as it was applied.
type AuditEntry struct {
	Tick   uint64   `json:"tick"`
	Pos    grid.Pos `json:"pos"`
	From   string   `json:"from"`
	To     string   `json:"to"`
	FromHP uint16   `json:"from_hp"`
	ToHP   uint16   `json:"to_hp"`
	Reason string   `json:"reason"` // CHANGED, DESTROYED, BREACH, TUNNEL_BREAK
}

// Population is the spawn collaborator. It receives every agent that leaves
// a corridor, either at the far end or ejected at a break.
type Population interface {
	Spawn(tick uint64, e swarm.Emergence)
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg Config
	log *log.Logger

	tick atomic.Uint64

	terrain   *terrain.Store
	traversal *flow.TraversalField
	targets   *flow.TargetField
	breaches  *flow.BreachRegistry
	scent     *swarm.ScentMap
	tunnels   *swarm.TunnelNetwork

	leaders map[handle.Handle]*swarm.Leader
	scouts  map[handle.Handle]*swarm.Scout

	population  Population
	tickLogger  TickLogger
	auditLogger AuditLogger

	inbox         chan Command
	stateReq      chan stateReq
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stop          chan struct{}

	observers map[string]*observerClient

	metrics atomic.Value
}

// New builds a world over store. A nil store is generated from cfg.Gen.
func New(cfg Config, store *terrain.Store, logger *log.Logger) *World {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if store == nil {
		store = terrain.Generate(cfg.Gen)
	}
	w := &World{
		cfg:           cfg,
		log:           logger,
		terrain:       store,
		traversal:     flow.NewTraversalField(cfg.Costs),
		targets:       flow.NewTargetField(),
		breaches:      flow.NewBreachRegistry(),
		scent:         swarm.NewScentMap(),
		tunnels:       swarm.NewTunnelNetwork(),
		leaders:       map[handle.Handle]*swarm.Leader{},
		scouts:        map[handle.Handle]*swarm.Scout{},
		inbox:         make(chan Command, 1024),
		stateReq:      make(chan stateReq, 16),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}
	// Generated terrain queues no notifications; the first tick samples it in full.
	w.traversal.MarkDirty()
	return w
}

func (c *Config) applyDefaults() {
	d := ConfigFromTuning(tuning.Defaults())
	if c.TickRateHz <= 0 {
		c.TickRateHz = d.TickRateHz
	}
	if c.Costs == (terrain.CostTable{}) {
		c.Costs = d.Costs
	}
	if c.Gen == (terrain.GenConfig{}) {
		c.Gen = d.Gen
	}
	if c.ScentDecayPerSecond < 0 {
		c.ScentDecayPerSecond = d.ScentDecayPerSecond
	}
	if c.ScoutDeposit <= 0 {
		c.ScoutDeposit = d.ScoutDeposit
	}
	if c.DefaultMoveRate <= 0 {
		c.DefaultMoveRate = d.DefaultMoveRate
	}
	if c.BreachRange <= 0 {
		c.BreachRange = d.BreachRange
	}
	if c.TargetRange <= 0 {
		c.TargetRange = d.TargetRange
	}
	if c.MaxFollowers == 0 {
		c.MaxFollowers = d.MaxFollowers
	}
	if c.TelemetryEveryTicks <= 0 {
		c.TelemetryEveryTicks = d.TelemetryEveryTicks
	}
}

func (w *World) SetTickLogger(l TickLogger)               { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)             { w.auditLogger = l }
func (w *World) SetPopulation(p Population)               { w.population = p }
func (w *World) Config() Config                           { return w.cfg }
func (w *World) CurrentTick() uint64                      { return w.tick.Load() }
func (w *World) Inbox() chan<- Command                    { return w.inbox }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

// Read-only accessors for tests and tools driving the world via StepOnce.
// They are not safe to call concurrently with Run.

func (w *World) Terrain() *terrain.Store         { return w.terrain }
func (w *World) Traversal() *flow.TraversalField { return w.traversal }
func (w *World) Targets() *flow.TargetField      { return w.targets }
func (w *World) Breaches() *flow.BreachRegistry  { return w.breaches }
func (w *World) Scent() *swarm.ScentMap          { return w.scent }
func (w *World) Tunnels() *swarm.TunnelNetwork   { return w.tunnels }

func (w *World) Leader(id handle.Handle) (swarm.Leader, bool) {
	l := w.leaders[id]
	if l == nil {
		return swarm.Leader{}, false
	}
	return *l, true
}

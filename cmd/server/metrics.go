package main

import (
	"fmt"
	"io"
	"net/http"

	"tunnelwar.ai/internal/persistence/indexdb"
	"tunnelwar.ai/internal/sim/world"
)

type metricsSource interface {
	Metrics() world.WorldMetrics
	CurrentTick() uint64
}

func metricsHandler(w metricsSource, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, w.Metrics(), w.CurrentTick(), idx.Stats())
	}
}

func gauge(out io.Writer, name, help string, v any) {
	fmt.Fprintf(out, "# HELP %s %s\n", name, help)
	fmt.Fprintf(out, "# TYPE %s gauge\n", name)
	switch x := v.(type) {
	case float64:
		fmt.Fprintf(out, "%s %.3f\n", name, x)
	default:
		fmt.Fprintf(out, "%s %d\n", name, x)
	}
}

// Minimal Prometheus exposition format.
func writeMetrics(out io.Writer, m world.WorldMetrics, tick uint64, st indexdb.Stats) {
	if m.Tick > tick {
		tick = m.Tick
	}
	gauge(out, "tunnelwar_world_tick", "Current world tick.", tick)
	gauge(out, "tunnelwar_world_leaders", "Registered leaders.", m.Leaders)
	gauge(out, "tunnelwar_world_scouts", "Registered scouts.", m.Scouts)
	gauge(out, "tunnelwar_world_observers", "Connected telemetry observers.", m.Observers)
	gauge(out, "tunnelwar_world_loaded_chunks", "Loaded terrain chunk count.", m.LoadedChunks)
	gauge(out, "tunnelwar_flow_cells", "Cells with a flow direction.", m.FieldCells)
	gauge(out, "tunnelwar_flow_recomputes", "Full flow recomputations since start.", m.Recomputes)
	gauge(out, "tunnelwar_breaches", "Tracked breach points.", m.Breaches)
	gauge(out, "tunnelwar_tunnel_segments", "Tunnel segments.", m.Segments)
	gauge(out, "tunnelwar_world_inbox_depth", "Command inbox backlog.", m.InboxDepth)
	gauge(out, "tunnelwar_world_step_ms", "Last tick step duration in milliseconds.", m.StepMS)
	gauge(out, "tunnelwar_index_queue_depth", "Index writer queue depth.", st.QueueDepth)
	gauge(out, "tunnelwar_index_dropped_ticks", "Tick rows dropped by the index.", st.DropTickTotal)
	gauge(out, "tunnelwar_index_dropped_audits", "Audit rows dropped by the index.", st.DropAuditTotal)
	gauge(out, "tunnelwar_index_failures", "Index write failures.", st.FailTotal)
}

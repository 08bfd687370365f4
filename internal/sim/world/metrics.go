package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Leaders      int `json:"leaders"`
	Scouts       int `json:"scouts"`
	Observers    int `json:"observers"`
	LoadedChunks int `json:"loaded_chunks"`

	FieldCells int    `json:"field_cells"`
	Breaches   int    `json:"breaches"`
	Segments   int    `json:"segments"`
	Recomputes uint64 `json:"recomputes"`

	InboxDepth int     `json:"inbox_depth"`
	StepMS     float64 `json:"step_ms"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

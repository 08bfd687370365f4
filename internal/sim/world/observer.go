package world

// ObserverJoinRequest registers a read-only telemetry session. TickOut
// receives one JSON TickMsg per emitted tick; when the session falls behind
// only the latest message is kept.
type ObserverJoinRequest struct {
	SessionID  string
	TickOut    chan []byte
	EveryTicks int
	Leaders    bool
}

type observerClient struct {
	out        chan []byte
	everyTicks int
	leaders    bool
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	w.observers[req.SessionID] = &observerClient{
		out:        req.TickOut,
		everyTicks: req.EveryTicks,
		leaders:    req.Leaders,
	}
}

func (w *World) handleObserverLeave(id string) {
	delete(w.observers, id)
}

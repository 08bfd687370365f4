package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/terrain"
	"tunnelwar.ai/internal/sim/world"
	"tunnelwar.ai/internal/telemetryproto"
)

const maxProbes = 64

type Server struct {
	world *world.World
	log   *log.Logger

	// AllowRemote disables the loopback-only guard.
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		resp := telemetryproto.BootstrapResponse{
			ProtocolVersion: telemetryproto.Version,
			Tick:            s.world.CurrentTick(),
			WorldParams: telemetryproto.WorldParams{
				TickRateHz: cfg.TickRateHz,
				ChunkSize:  [3]int{terrain.ChunkSize, terrain.ChunkSize, terrain.ChunkSize},
				SizeX:      cfg.Gen.SizeX,
				SizeY:      cfg.Gen.SizeY,
				Layers:     cfg.Gen.Layers,
				Seed:       cfg.Gen.Seed,
			},
		}
		writeJSON(rw, resp)
	}
}

// StateHandler serves a consistent world state read. Each "probe=x,y,z"
// query parameter adds the flow offset and cost at that position.
func (s *Server) StateHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		raw := r.URL.Query()["probe"]
		if len(raw) > maxProbes {
			http.Error(rw, fmt.Sprintf("at most %d probes", maxProbes), http.StatusBadRequest)
			return
		}
		probes := make([]grid.Pos, 0, len(raw))
		for _, v := range raw {
			p, err := world.ParsePosKey(v)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusBadRequest)
				return
			}
			probes = append(probes, p)
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st, err := s.world.RequestState(ctx, probes)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, st)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		sid := "O" + strconv.FormatUint(s.nextID.Add(1), 10)
		tickOut := make(chan []byte, 8)
		if !s.join(sid, tickOut, sub) {
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		defer s.leave(sid)
		s.log.Printf("observer %s joined from %s every=%d leaders=%v", sid, r.RemoteAddr, sub.EveryTicks, sub.Leaders)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-tickOut:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: a re-sent SUBSCRIBE replaces the session settings.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := parseSubscribe(msg)
			if !ok {
				continue
			}
			s.join(sid, tickOut, sub)
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.log.Printf("observer %s left", sid)
	}
}

func (s *Server) join(sid string, out chan []byte, sub telemetryproto.SubscribeMsg) bool {
	req := world.ObserverJoinRequest{
		SessionID:  sid,
		TickOut:    out,
		EveryTicks: sub.EveryTicks,
		Leaders:    sub.Leaders,
	}
	select {
	case s.world.ObserverJoin() <- req:
		return true
	default:
		return false
	}
}

func (s *Server) leave(sid string) {
	select {
	case s.world.ObserverLeave() <- sid:
	default:
		// World loop is stopping; nothing else to do.
	}
}

func parseSubscribe(msg []byte) (telemetryproto.SubscribeMsg, bool) {
	var sub telemetryproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != telemetryproto.TypeSubscribe || sub.ProtocolVersion != telemetryproto.Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

func normalizeSubscribe(sub *telemetryproto.SubscribeMsg) {
	if sub.EveryTicks <= 0 {
		sub.EveryTicks = 1
	}
	if sub.EveryTicks > 3600 {
		sub.EveryTicks = 3600
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

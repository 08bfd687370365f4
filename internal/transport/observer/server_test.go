package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tunnelwar.ai/internal/sim/flow"
	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/terrain"
	"tunnelwar.ai/internal/sim/world"
	"tunnelwar.ai/internal/telemetryproto"
)

func startWorld(t *testing.T) (*world.World, *httptest.Server) {
	t.Helper()
	store := terrain.NewStore()
	for x := 0; x < 4; x++ {
		store.SetTile(grid.Pos{X: x}, terrain.Air())
	}
	w := world.New(world.Config{TickRateHz: 50, Gen: terrain.GenConfig{SizeX: 4, SizeY: 1, Layers: 1, Seed: 7}}, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	s := NewServer(w, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/telemetry/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/telemetry/ws", s.WSHandler())
	mux.HandleFunc("/v1/state", s.StateHandler())
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return w, srv
}

func TestBootstrap(t *testing.T) {
	_, srv := startWorld(t)

	resp, err := http.Get(srv.URL + "/v1/telemetry/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var b telemetryproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.ProtocolVersion != telemetryproto.Version || b.WorldParams.TickRateHz != 50 || b.WorldParams.Seed != 7 {
		t.Fatalf("bootstrap=%+v", b)
	}
	if b.WorldParams.ChunkSize != [3]int{terrain.ChunkSize, terrain.ChunkSize, terrain.ChunkSize} {
		t.Fatalf("chunk size=%v", b.WorldParams.ChunkSize)
	}

	post, err := http.Post(srv.URL+"/v1/telemetry/bootstrap", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want=%d", post.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestStateProbes(t *testing.T) {
	w, srv := startWorld(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Submit(ctx, world.SetTarget{Pos: grid.Pos{X: 3}, Value: flow.ValueKeep}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var st world.State
	for len(st.Goals) == 0 {
		if ctx.Err() != nil {
			t.Fatalf("target never became a goal")
		}
		resp, err := http.Get(srv.URL + "/v1/state?probe=0,0,0&probe=3,0,0")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		err = json.NewDecoder(resp.Body).Decode(&st)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if st.Flow["0,0,0"] != (grid.Pos{X: 1}) {
		t.Fatalf("flow=%v", st.Flow)
	}
	if got, ok := st.Flow["3,0,0"]; !ok || !got.IsZero() {
		t.Fatalf("goal flow=%v ok=%v", got, ok)
	}

	resp, err := http.Get(srv.URL + "/v1/state?probe=nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusBadRequest)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/telemetry/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWSStreamsTicks(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)

	sub := telemetryproto.SubscribeMsg{Type: telemetryproto.TypeSubscribe, ProtocolVersion: telemetryproto.Version, EveryTicks: 2}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < 3; i++ {
		var msg telemetryproto.TickMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != telemetryproto.TypeTick || msg.Tick%2 != 0 || msg.Digest == "" {
			t.Fatalf("msg=%+v", msg)
		}
	}
}

func TestWSRejectsBadHandshake(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)

	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"10.0.0.2:80":    false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want=%v", in, got, want)
		}
	}
}

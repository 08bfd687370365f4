package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tunnelwar.ai/internal/sim/grid"
	"tunnelwar.ai/internal/sim/world"
)

func TestSplitProbes(t *testing.T) {
	got := splitProbes(" 0,0,0 ;;3,1,0;")
	if len(got) != 2 || got[0] != "0,0,0" || got[1] != "3,1,0" {
		t.Fatalf("probes=%q", got)
	}
	if got := splitProbes(""); len(got) != 0 {
		t.Fatalf("empty probes=%q", got)
	}
}

func TestFetchState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/state" {
			http.NotFound(rw, r)
			return
		}
		probes := r.URL.Query()["probe"]
		if len(probes) != 1 || probes[0] != "1,2,3" {
			http.Error(rw, "bad probes", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(rw).Encode(world.State{Tick: 9, Goals: []grid.Pos{{X: 1}}})
	}))
	defer srv.Close()

	st, err := fetchState(srv.URL+"/", []string{"1,2,3"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if st.Tick != 9 || len(st.Goals) != 1 {
		t.Fatalf("state=%+v", st)
	}

	if _, err := fetchState(srv.URL, nil); err == nil {
		t.Fatalf("expected error on bad request")
	}
}

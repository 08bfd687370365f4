package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tunnelwar.ai/internal/persistence/indexdb"
	"tunnelwar.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audits":
			auditsCmd(os.Args[2:])
			return
		case "breach":
			breachCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		}
	}
	ticksCmd(os.Args[1:])
}

func dbPath(fs *flag.FlagSet) *string {
	return fs.String("db", filepath.Join("data", "index", "world.sqlite"), "sqlite index path")
}

func openIndex(path string) *indexdb.SQLiteIndex {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	return idx
}

func ticksCmd(args []string) {
	fs := flag.NewFlagSet("ticks", flag.ExitOnError)
	db := dbPath(fs)
	limit := fs.Int("limit", 20, "number of most recent ticks")
	_ = fs.Parse(args)

	idx := openIndex(*db)
	defer idx.Close()
	rows, err := idx.RecentTicks(context.Background(), *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		fmt.Printf("tick=%d changes=%d recomputed=%v cells=%d goals=%d emerged=%d ejected=%d digest=%s\n",
			r.Tick, r.Changes, r.Recomputed, r.FieldCells, r.Goals, r.Emerged, r.Ejected, r.Digest)
	}
}

func auditsCmd(args []string) {
	fs := flag.NewFlagSet("audits", flag.ExitOnError)
	db := dbPath(fs)
	pos := fs.String("pos", "", "position x,y,z (required)")
	_ = fs.Parse(args)

	p, err := world.ParsePosKey(*pos)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -pos:", err)
		os.Exit(2)
	}
	idx := openIndex(*db)
	defer idx.Close()
	rows, err := idx.AuditsAt(context.Background(), p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		fmt.Printf("tick=%d seq=%d %s -> %s %s\n", r.Tick, r.Seq, r.FromKind, r.ToKind, r.Reason)
	}
}

func breachCmd(args []string) {
	fs := flag.NewFlagSet("breach", flag.ExitOnError)
	db := dbPath(fs)
	pos := fs.String("pos", "", "breach position x,y,z (required)")
	_ = fs.Parse(args)

	p, err := world.ParsePosKey(*pos)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -pos:", err)
		os.Exit(2)
	}
	idx := openIndex(*db)
	defer idx.Close()
	rows, err := idx.BreachHistory(context.Background(), p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		claimed := r.ClaimedBy
		if claimed == "" {
			claimed = "-"
		}
		fmt.Printf("tick=%d age=%.1fs claimed_by=%s reinforcements=%d\n", r.Tick, r.AgeSeconds, claimed, r.ReinforcementRequests)
	}
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "server base url")
	probes := fs.String("probe", "", "semicolon separated probe positions, e.g. 0,0,0;3,1,0")
	_ = fs.Parse(args)

	st, err := fetchState(*addr, splitProbes(*probes))
	if err != nil {
		fmt.Fprintln(os.Stderr, "state:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(st)
}

func splitProbes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fetchState(base string, probes []string) (world.State, error) {
	var st world.State
	q := url.Values{}
	for _, p := range probes {
		q.Add("probe", p)
	}
	u := strings.TrimRight(base, "/") + "/v1/state"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(u)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return st, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	err = json.NewDecoder(resp.Body).Decode(&st)
	return st, err
}

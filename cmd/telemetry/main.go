package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	persistlog "tunnelwar.ai/internal/persistence/log"
	"tunnelwar.ai/internal/sim/world"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory containing events/")
		fromTick = flag.Uint64("from_tick", 0, "first tick to include (inclusive)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to include (inclusive, 0 = all)")
		digests  = flag.Bool("digests", false, "print every tick digest")
	)
	flag.Parse()

	files, err := persistlog.Files(filepath.Join(*dataDir, "events"), "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events-*.jsonl.zst under", filepath.Join(*dataDir, "events"))
		os.Exit(2)
	}

	var onTick func(world.TickLogEntry)
	if *digests {
		onTick = func(e world.TickLogEntry) { fmt.Printf("%d %s\n", e.Tick, e.Digest) }
	}
	sum, err := summarize(files, window{from: *fromTick, to: *toTick}, onTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read events:", err)
		os.Exit(1)
	}
	sum.print(os.Stdout)
}

type window struct{ from, to uint64 }

func (w window) contains(tick uint64) bool {
	return tick >= w.from && (w.to == 0 || tick <= w.to)
}

type summary struct {
	Files      int
	Bytes      uint64
	Ticks      uint64
	FirstTick  uint64
	LastTick   uint64
	Recomputed uint64
	Changes    uint64
	Emerged    uint64
	Ejected    uint64
	Deposits   uint64
	MaxMS      float64

	PeakBreaches int
	PeakQueued   int
	Broken       int
	LastDigest   string
}

func summarize(files []string, win window, onTick func(world.TickLogEntry)) (summary, error) {
	var s summary
	for _, path := range files {
		if st, err := os.Stat(path); err == nil {
			s.Bytes += uint64(st.Size())
		}
		s.Files++
		err := persistlog.ReadTicks(path, func(e world.TickLogEntry) error {
			if !win.contains(e.Tick) {
				return nil
			}
			if s.Ticks == 0 {
				s.FirstTick = e.Tick
			}
			s.Ticks++
			s.LastTick = e.Tick
			s.LastDigest = e.Digest
			s.Changes += uint64(e.Changes)
			s.Emerged += uint64(e.Emerged)
			s.Ejected += uint64(e.Ejected)
			s.Deposits += uint64(e.Deposits)
			if e.Recomputed {
				s.Recomputed++
			}
			if e.RecomputeMS > s.MaxMS {
				s.MaxMS = e.RecomputeMS
			}
			if len(e.Breaches) > s.PeakBreaches {
				s.PeakBreaches = len(e.Breaches)
			}
			queued, broken := 0, 0
			for _, t := range e.Tunnels {
				queued += t.Queued
				if !t.Intact {
					broken++
				}
			}
			if queued > s.PeakQueued {
				s.PeakQueued = queued
			}
			s.Broken = broken
			if onTick != nil {
				onTick(e)
			}
			return nil
		})
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

func (s summary) print(out io.Writer) {
	fmt.Fprintf(out, "files=%d size=%s ticks=%s range=[%d..%d]\n",
		s.Files, humanize.Bytes(s.Bytes), humanize.Comma(int64(s.Ticks)), s.FirstTick, s.LastTick)
	fmt.Fprintf(out, "terrain changes=%s flow recomputes=%s slowest=%.3fms\n",
		humanize.Comma(int64(s.Changes)), humanize.Comma(int64(s.Recomputed)), s.MaxMS)
	fmt.Fprintf(out, "emerged=%s ejected=%s peak_queued=%d broken_segments=%d\n",
		humanize.Comma(int64(s.Emerged)), humanize.Comma(int64(s.Ejected)), s.PeakQueued, s.Broken)
	fmt.Fprintf(out, "scent deposits=%s peak_breaches=%d\n", humanize.Comma(int64(s.Deposits)), s.PeakBreaches)
	if s.LastDigest != "" {
		fmt.Fprintf(out, "last digest=%s\n", s.LastDigest)
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tunnelwar.ai/internal/persistence/indexdb"
	persistlog "tunnelwar.ai/internal/persistence/log"
	"tunnelwar.ai/internal/sim/tuning"
	"tunnelwar.ai/internal/sim/world"
	"tunnelwar.ai/internal/transport/observer"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed        = flag.Int64("seed", 0, "override world.seed from tuning (0 keeps tuning value)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite tick/audit index")
		allowRemote = flag.Bool("allow_remote_observers", false, "serve telemetry endpoints to non-loopback clients")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.World.Seed = *seed
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	// Optional read-model index (does not affect sim determinism).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "world.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
	}

	cfg := world.ConfigFromTuning(tune)
	w := world.New(cfg, nil, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	logger.Printf("world seed=%d size=%dx%dx%d tick_rate=%dHz", cfg.Gen.Seed, cfg.Gen.SizeX, cfg.Gen.SizeY, cfg.Gen.Layers, cfg.TickRateHz)

	rotated := func(path string) { logger.Printf("rotated %s", filepath.Base(path)) }
	tickLog := persistlog.NewTickLogger(*dataDir, persistlog.WriterOptions{OnRotate: rotated})
	auditLog := persistlog.NewAuditLogger(*dataDir, persistlog.WriterOptions{OnRotate: rotated})
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	obsSrv := observer.NewServer(w, logger)
	obsSrv.AllowRemote = *allowRemote

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, idx))
	mux.HandleFunc("/v1/telemetry/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/telemetry/ws", obsSrv.WSHandler())
	mux.HandleFunc("/v1/state", obsSrv.StateHandler())
	mux.HandleFunc("/v1/index/ticks", func(rw http.ResponseWriter, r *http.Request) {
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusNotFound)
			return
		}
		if !*allowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rows, err := idx.RecentTicks(r.Context(), 100)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(rows)
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-worldDone
	logger.Printf("stopped at tick %d", w.CurrentTick())
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}

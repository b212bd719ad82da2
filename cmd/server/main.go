package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"replenisher/internal/host"
	persistlog "replenisher/internal/persistence/log"
	"replenisher/internal/persistence/snapshot"
	"replenisher/internal/replenish"
	"replenisher/internal/settings"
	"replenisher/internal/sim/world"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		configDir    = flag.String("configs", "./configs", "config directory")
		settingsPath = flag.String("settings", "", "path to replenisher.yaml (default: <configs>/replenisher.yaml)")
		worldPath    = flag.String("world_config", "", "path to world.yaml (default: <configs>/world.yaml)")
		seed         = flag.Int64("seed", 0, "override world seed (fresh worlds only; 0 keeps world.yaml)")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite run index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		tick          = flag.Duration("tick", time.Second, "refill trigger poll interval")
		snapshotEvery = flag.Duration("snapshot_every", 10*time.Minute, "periodic snapshot interval (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	runLogger := log.New(os.Stdout, "[replenish] ", log.LstdFlags|log.Lmicroseconds)

	sp := strings.TrimSpace(*settingsPath)
	if sp == "" {
		sp = filepath.Join(*configDir, "replenisher.yaml")
	}
	wp := strings.TrimSpace(*worldPath)
	if wp == "" {
		wp = filepath.Join(*configDir, "world.yaml")
	}

	cfg, err := world.LoadConfig(wp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load world config: %v", err)
		}
		logger.Printf("world config not found (%s); using defaults", wp)
		cfg = world.Defaults()
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}

	worldDir := filepath.Join(*dataDir, "worlds", cfg.ID)
	_ = os.MkdirAll(worldDir, 0o755)

	prov, err := settings.Open(sp, logger)
	if err != nil {
		logger.Fatalf("open settings: %v", err)
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	// Create world (fresh or resumed from snapshot).
	var w *world.World
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != cfg.ID {
			logger.Fatalf("snapshot world id mismatch: config=%s snap=%s", cfg.ID, snap.Header.WorldID)
		}
		w, err = world.ImportSnapshot(snap)
		if err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s runs=%d", filepath.Base(snapshotToLoad), snap.Header.Runs)
	} else {
		started := time.Now()
		w, err = world.Generate(cfg)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		logger.Printf("generated world=%s seed=%d size=%dx%d in %s", cfg.ID, cfg.Seed, cfg.Width, cfg.Height, time.Since(started).Truncate(time.Millisecond))
	}

	runLog := persistlog.NewRunLogger(worldDir)
	defer runLog.Close()

	sinks := []replenish.RecordSink{runLog}
	if idx != nil {
		sinks = append(sinks, idx)
	}
	h := host.New(w, prov, host.Config{
		TickInterval:  *tick,
		SnapshotEvery: *snapshotEvery,
		Logger:        logger,
		RunLogger:     runLogger,
		Sinks:         sinks,
	})

	ctx, cancel := signalContext()
	defer cancel()

	// The host outlives the listener so a final snapshot can be taken.
	hostCtx, hostCancel := context.WithCancel(context.Background())
	defer hostCancel()

	// Host loop and snapshot writer share one lifetime.
	g, gctx := errgroup.WithContext(hostCtx)
	snapCh := make(chan snapshot.WorldV1, 2)
	h.SetSnapshotSink(snapCh)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case snap := <-snapCh:
				persistSnapshot(worldDir, snap, idx, logger)
			}
		}
	})
	g.Go(func() error {
		if err := h.Run(gctx); err != nil && err != context.Canceled {
			return fmt.Errorf("host stopped: %w", err)
		}
		return nil
	})

	api := &serverAPI{
		host:         h,
		settings:     prov,
		idx:          idx,
		log:          logger,
		consoleToken: strings.TrimSpace(os.Getenv("REPLEN_CONSOLE_TOKEN")),
	}
	mux := http.NewServeMux()
	enableAdminHTTP := envBool("REPLEN_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	if !enableAdminHTTP {
		logger.Printf("admin endpoints disabled (REPLEN_ENABLE_ADMIN_HTTP=false)")
	}
	if api.consoleToken == "" && !enableAdminHTTP {
		logger.Printf("console disabled (set REPLEN_CONSOLE_TOKEN to expose /v1/ws)")
	}
	api.register(mux, enableAdminHTTP)

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

	logger.Printf("listening on %s world=%s settings=%s", *addr, w.ID(), sp)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Final snapshot, then stop the host and the writer.
	ctx3, cancel3 := context.WithTimeout(context.Background(), 10*time.Second)
	final, err := h.Snapshot(ctx3)
	cancel3()
	hostCancel()
	if werr := g.Wait(); werr != nil {
		logger.Printf("%v", werr)
	}
	if err != nil {
		logger.Printf("final snapshot: %v", err)
		return
	}
	persistSnapshot(worldDir, final, idx, logger)
	logger.Printf("stopped after %d runs", final.Header.Runs)
}

func persistSnapshot(worldDir string, snap snapshot.WorldV1, idx runtimeIndex, logger *log.Logger) {
	path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.SavedAt))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		logger.Printf("snapshot write: %v", err)
		return
	}
	if idx != nil {
		idx.RecordSnapshot(path, snap)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestAt int64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		at, err := strconv.ParseInt(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || at > bestAt {
			bestAt = at
			best = filepath.Join(dir, name)
		}
	}
	return best
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

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"agentville.ai/internal/persistence/docstore"
	persistlog "agentville.ai/internal/persistence/log"
	"agentville.ai/internal/persistence/snapshot"
	"agentville.ai/internal/sim/engine"
	"agentville.ai/internal/sim/inputs"
	"agentville.ai/internal/sim/tuning"
	"agentville.ai/internal/sim/world"
	"agentville.ai/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	if !loadDotEnv() {
		logger.Printf("no .env file; using process environment")
	}
	cfg, err := loadConfig(os.Args[1:], nil)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	tune, err := tuning.Load(cfg.Tuning)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", cfg.Tuning)
		tune = tuning.Defaults()
	}

	engineDir := cfg.engineDir()
	_ = os.MkdirAll(engineDir, 0o755)

	var (
		docs docstore.Store
		in   inputs.Log
	)
	if cfg.DisableDB {
		docs = docstore.NewMemory()
		in = inputs.NewMemory()
		logger.Printf("database disabled; state is kept in memory")
	} else {
		db, err := docstore.OpenSQLite(cfg.DBPath)
		if err != nil {
			logger.Fatalf("open sqlite: %v", err)
		}
		defer db.Close()
		docs = db
		in = db.Inputs()
	}

	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Snapshot != "" {
		if err := importSnapshot(ctx, docs, cfg, tune); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("imported snapshot %s", filepath.Base(cfg.Snapshot))
	}

	ecfg := engine.ConfigFromTuning(cfg.EngineID, cfg.WorldID, cfg.Seed, tune)
	eng, err := engine.New(ecfg, docs, in, engine.WithLogger(logger))
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}
	rec, err := eng.Init(ctx)
	if err != nil {
		logger.Fatalf("init engine: %v", err)
	}
	logger.Printf("engine=%s world=%s time=%d generation=%d", rec.ID, rec.WorldID, rec.CurrentTime, rec.GenerationNumber)

	stepLog := persistlog.NewStepLogger(engineDir)
	defer stepLog.Close()
	eng.SetStepLogger(stepLog)

	snapCh := make(chan snapshot.SnapshotV1, 2)
	eng.SetSnapshotSink(snapCh)
	go writeSnapshots(ctx, snapCh, filepath.Join(engineDir, "snapshots"), logger)

	eng.Run(ctx)

	mux := newMux(eng, ws.Options{
		TickDurationMs:    tune.TickDurationMs,
		CommandsPerSecond: tune.RateLimits.CommandsPerSecond,
		CommandBurst:      tune.RateLimits.CommandBurst,
		ResultPoll:        time.Duration(tune.StepIntervalMs) * time.Millisecond,
	}, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// importSnapshot replaces the stored world with the snapshot's contents.
func importSnapshot(ctx context.Context, docs docstore.Store, cfg serverConfig, tune tuning.Tuning) error {
	snap, err := snapshot.ReadSnapshot(cfg.Snapshot)
	if err != nil {
		return err
	}
	if snap.Header.WorldID != "" && snap.Header.WorldID != cfg.WorldID {
		return fmt.Errorf("snapshot world id mismatch: world=%s snap=%s", cfg.WorldID, snap.Header.WorldID)
	}
	w, err := world.ImportSnapshot(docs, world.ConfigFromTuning(cfg.WorldID, cfg.Seed, tune), snap)
	if err != nil {
		return err
	}
	return w.Save(ctx)
}

func writeSnapshots(ctx context.Context, ch <-chan snapshot.SnapshotV1, dir string, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path := snapshot.PathFor(dir, snap.Header.Step)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			logger.Printf("snapshot step=%d -> %s", snap.Header.Step, filepath.Base(path))
		}
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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentville.ai/internal/persistence/docstore"
	persistlog "agentville.ai/internal/persistence/log"
	"agentville.ai/internal/persistence/snapshot"
	"agentville.ai/internal/sim/engine"
	"agentville.ai/internal/sim/tuning"
	"agentville.ai/internal/sim/world"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "steps":
		stepsCmd(args)
	case "inputs":
		inputsCmd(args)
	case "export":
		exportCmd(args)
	case "import":
		importCmd(args)
	case "state":
		stateCmd(args)
	case "memories":
		memoriesCmd(args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <steps|inputs|export|import|state|memories> [flags]")
	fmt.Fprintln(os.Stderr, "  import replaces live players, agents, conversations and descriptions;")
	fmt.Fprintln(os.Stderr, "  messages, memories and archived records of the world are kept")
}

func fail(msg string, err error) {
	fmt.Fprintln(os.Stderr, msg+":", err)
	os.Exit(1)
}

func openDB(path string) *docstore.SQLite {
	db, err := docstore.OpenSQLite(path)
	if err != nil {
		fail("open db", err)
	}
	return db
}

func stepsCmd(args []string) {
	fs := flag.NewFlagSet("steps", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	engineID := fs.String("engine", "engine_1", "engine id")
	since := fs.Uint64("since", 0, "first step to print")
	_ = fs.Parse(args)

	entries, err := readSteps(persistlog.StepDir(filepath.Join(*dataDir, "engines", *engineID)), *since)
	if err != nil {
		fail("read steps", err)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		_ = enc.Encode(e)
	}
}

func readSteps(dir string, since uint64) ([]engine.StepLogEntry, error) {
	return persistlog.ReadSteps(dir, since)
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", "./data/agentville.sqlite", "sqlite path")
	engineID := fs.String("engine", "engine_1", "engine id")
	worldID := fs.String("world", "world_1", "world id")
	out := fs.String("out", "", "output snapshot path (default: ./<world>.snap.zst)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*out)
	if path == "" {
		path = *worldID + ".snap.zst"
	}
	db := openDB(*dbPath)
	defer db.Close()

	step, err := exportWorld(context.Background(), db, *engineID, *worldID, path)
	if err != nil {
		fail("export", err)
	}
	fmt.Printf("wrote %s (step %d)\n", path, step)
}

// exportWorld writes the stored world as a snapshot stamped with the engine's step count.
func exportWorld(ctx context.Context, docs docstore.Store, engineID, worldID, path string) (uint64, error) {
	var rec engine.Record
	if err := docstore.GetJSON(ctx, docs, docstore.Engines, worldID, engineID, &rec); err != nil {
		return 0, fmt.Errorf("engine %s: %w", engineID, err)
	}
	w, err := world.Load(ctx, docs, world.Config{ID: worldID})
	if err != nil {
		return 0, err
	}
	if err := snapshot.WriteSnapshot(path, w.ExportSnapshot(engineID, rec.Steps)); err != nil {
		return 0, err
	}
	return rec.Steps, nil
}

func importCmd(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath := fs.String("db", "./data/agentville.sqlite", "sqlite path")
	worldID := fs.String("world", "", "world id (default: the snapshot's)")
	tuningPath := fs.String("tuning", "./configs/tuning.yaml", "tuning for fields a snapshot does not carry")
	snapPath := fs.String("snapshot", "", "snapshot path")
	_ = fs.Parse(args)

	if strings.TrimSpace(*snapPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fail("load tuning", err)
		}
		tune = tuning.Defaults()
	}
	db := openDB(*dbPath)
	defer db.Close()

	w, err := importWorld(context.Background(), db, *worldID, *snapPath, tune)
	if err != nil {
		fail("import", err)
	}
	players, agents, convs := w.Counts()
	fmt.Printf("imported world %s: %d players, %d agents, %d conversations\n", w.ID(), players, agents, convs)
}

// importWorld replaces the stored live world with the snapshot at path.
// History collections are left in place.
func importWorld(ctx context.Context, docs docstore.Store, worldID, path string, tune tuning.Tuning) (*world.World, error) {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return nil, err
	}
	w, err := world.ImportSnapshot(docs, world.ConfigFromTuning(worldID, snap.Seed, tune), snap)
	if err != nil {
		return nil, err
	}
	if err := w.Save(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

package main

import (
	"flag"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// serverConfig is read from the environment (and a .env file when present);
// command-line flags override it.
type serverConfig struct {
	Addr      string `env:"AV_ADDR" envDefault:":8080"`
	DataDir   string `env:"AV_DATA" envDefault:"./data"`
	Tuning    string `env:"AV_TUNING" envDefault:"./configs/tuning.yaml"`
	DBPath    string `env:"AV_DB"`
	DisableDB bool   `env:"AV_DISABLE_DB"`
	Seed      int64  `env:"AV_SEED" envDefault:"1337"`
	EngineID  string `env:"AV_ENGINE" envDefault:"engine_1"`
	WorldID   string `env:"AV_WORLD" envDefault:"world_1"`
	Snapshot  string `env:"AV_SNAPSHOT"`
}

func loadConfig(args []string, environ map[string]string) (serverConfig, error) {
	var cfg serverConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory")
	fs.StringVar(&cfg.Tuning, "tuning", cfg.Tuning, "path to tuning.yaml")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite path (default: <data>/agentville.sqlite)")
	fs.BoolVar(&cfg.DisableDB, "disable_db", cfg.DisableDB, "keep all state in memory")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "world seed (used only when creating a world)")
	fs.StringVar(&cfg.EngineID, "engine", cfg.EngineID, "engine id")
	fs.StringVar(&cfg.WorldID, "world", cfg.WorldID, "world id")
	fs.StringVar(&cfg.Snapshot, "snapshot", cfg.Snapshot, "snapshot to import before starting (optional)")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "agentville.sqlite")
	}
	return cfg, nil
}

// loadDotEnv reads .env into the process environment; a missing file is fine.
func loadDotEnv() bool {
	return godotenv.Load() == nil
}

func (c serverConfig) engineDir() string {
	return filepath.Join(c.DataDir, "engines", c.EngineID)
}

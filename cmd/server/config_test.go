package main

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(nil, map[string]string{})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Seed != 1337 || cfg.WorldID != "world_1" || cfg.EngineID != "engine_1" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.DBPath != filepath.Join("data", "agentville.sqlite") {
		t.Fatalf("db path: %q", cfg.DBPath)
	}
}

func TestLoadConfigEnvThenFlags(t *testing.T) {
	environ := map[string]string{
		"AV_ADDR":       ":9000",
		"AV_SEED":       "7",
		"AV_DISABLE_DB": "true",
		"AV_WORLD":      "town",
	}
	cfg, err := loadConfig([]string{"-seed", "9", "-data", "/tmp/av"}, environ)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":9000" || !cfg.DisableDB || cfg.WorldID != "town" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Seed != 9 {
		t.Fatalf("flag should override env seed, got %d", cfg.Seed)
	}
	if cfg.DBPath != "/tmp/av/agentville.sqlite" {
		t.Fatalf("db path: %q", cfg.DBPath)
	}
	if cfg.engineDir() != "/tmp/av/engines/engine_1" {
		t.Fatalf("engine dir: %q", cfg.engineDir())
	}
}

func TestLoadConfigRejectsBadEnv(t *testing.T) {
	if _, err := loadConfig(nil, map[string]string{"AV_SEED": "abc"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

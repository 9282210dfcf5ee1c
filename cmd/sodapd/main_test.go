package main

import (
	"path/filepath"
	"testing"

	"sodap/config"
)

func TestResolveGenesisPathPrecedence(t *testing.T) {
	env := func(v string) func(string) (string, bool) {
		return func(key string) (string, bool) {
			if key == genesisPathEnv && v != "" {
				return v, true
			}
			return "", false
		}
	}
	if got := resolveGenesisPath("flag.json", "cfg.json", env("env.json")); got != "flag.json" {
		t.Fatalf("expected flag to win, got %q", got)
	}
	if got := resolveGenesisPath("", "cfg.json", env("env.json")); got != "env.json" {
		t.Fatalf("expected env to win, got %q", got)
	}
	if got := resolveGenesisPath("", " cfg.json ", env("")); got != "cfg.json" {
		t.Fatalf("expected config value, got %q", got)
	}
	if got := resolveGenesisPath("", "", nil); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}

func TestOpenStorageBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	db, err := openStorage(cfg)
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	db.Close()

	cfg.Storage.Backend = "leveldb"
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	db, err = openStorage(cfg)
	if err != nil {
		t.Fatalf("leveldb backend: %v", err)
	}
	db.Close()

	cfg.Storage.Backend = "rocks"
	if _, err := openStorage(cfg); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestLoadGenesisEmptyPath(t *testing.T) {
	spec, err := loadGenesis("")
	if err != nil || spec != nil {
		t.Fatalf("expected nil spec without error, got %v %v", spec, err)
	}
	if _, err := loadGenesis(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

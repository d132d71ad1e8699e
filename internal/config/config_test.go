package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Threshold != 0.35 || cfg.TopK != 5 || cfg.InputSize != 640 {
		t.Errorf("detector defaults = %+v", cfg)
	}
	if cfg.Batches.Urgent != 30 || cfg.Batches.High != 50 || cfg.Batches.Medium != 80 {
		t.Errorf("batch defaults = %+v", cfg.Batches)
	}
	if cfg.Queue.PositiveTop != 8 || cfg.Queue.NegativeTop != 4 || cfg.Queue.Variants != 3 {
		t.Errorf("queue defaults = %+v", cfg.Queue)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Threshold = 0.5
	cfg.CacheDir = "images"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Threshold != 0.5 || loaded.CacheDir != "images" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	clone := cfg.Clone()
	clone.Threshold = 0.99
	if cfg.Threshold == 0.99 {
		t.Error("Clone shares state with the original")
	}
}

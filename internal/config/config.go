// Package config loads the benchkit runtime settings persisted to config.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const defaultConfigFile = "config.json"

// BatchConfig caps how many candidates each labeling batch band may hold.
type BatchConfig struct {
	Urgent int `json:"urgent"`
	High   int `json:"high"`
	Medium int `json:"medium"`
}

// QueueConfig controls retraining queue generation.
type QueueConfig struct {
	PositiveTop int `json:"positiveTop"`
	NegativeTop int `json:"negativeTop"`
	Variants    int `json:"variants"`
}

// Config aggregates runtime settings persisted to config.json.
type Config struct {
	ModelPath       string      `json:"modelPath"`
	LabelsPath      string      `json:"labelsPath"`
	OrtLibraryPath  string      `json:"ortLibraryPath"`
	ManifestPath    string      `json:"manifestPath"`
	TaxonomyPath    string      `json:"taxonomyPath"`
	CacheDir        string      `json:"cacheDir"`
	ResultsPath     string      `json:"resultsPath"`
	Threshold       float64     `json:"threshold"`
	TopK            int         `json:"topK"`
	InputSize       int         `json:"inputSize"`
	DownloadRetries int         `json:"downloadRetries"`
	DownloadTimeout int         `json:"downloadTimeoutSeconds"`
	Batches         BatchConfig `json:"batches"`
	Queue           QueueConfig `json:"queue"`
}

// Clone creates a deep copy of the configuration so callers can mutate safely.
func (c Config) Clone() Config {
	buf, _ := json.Marshal(c)
	var out Config
	_ = json.Unmarshal(buf, &out)
	return out
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.ModelPath == "" {
		c.ModelPath = filepath.Join("assets", "models", "yolo-repath.onnx")
	}
	if c.LabelsPath == "" {
		c.LabelsPath = filepath.Join("assets", "models", "yolo-repath.labels.json")
	}
	if c.ManifestPath == "" {
		c.ManifestPath = filepath.Join("test", "benchmarks", "municipal-benchmark-manifest-v2.json")
	}
	if c.TaxonomyPath == "" {
		c.TaxonomyPath = filepath.Join("assets", "models", "municipal-taxonomy-v1.json")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join("test", "benchmarks", "images")
	}
	if c.ResultsPath == "" {
		c.ResultsPath = filepath.Join("test", "benchmarks", "latest-results.json")
	}
	if c.Threshold == 0 {
		c.Threshold = 0.35
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.InputSize <= 0 {
		c.InputSize = 640
	}
	if c.DownloadRetries <= 0 {
		c.DownloadRetries = 3
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = 90
	}
	if c.Batches.Urgent <= 0 {
		c.Batches.Urgent = 30
	}
	if c.Batches.High <= 0 {
		c.Batches.High = 50
	}
	if c.Batches.Medium <= 0 {
		c.Batches.Medium = 80
	}
	if c.Queue.PositiveTop <= 0 {
		c.Queue.PositiveTop = 8
	}
	if c.Queue.NegativeTop <= 0 {
		c.Queue.NegativeTop = 4
	}
	if c.Queue.Variants <= 0 {
		c.Queue.Variants = 3
	}
}

// Load reads configuration from the given path or the default config.json.
// A missing file is not an error; defaults are returned instead.
func Load(path string) (Config, error) {
	if path == "" {
		path = defaultConfigFile
	}
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Save persists configuration to disk.
func Save(path string, cfg Config) error {
	if path == "" {
		path = defaultConfigFile
	}
	cfg.ApplyDefaults()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

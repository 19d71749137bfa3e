// Package config provides configuration for the metergen pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arkilian/metergen/internal/logging"
)

// DateLayout is the calendar date format used on the command line, in
// directory names and in remote key prefixes.
const DateLayout = "2006-01-02"

// Storage backend types.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageBlob  = "blob"
)

// Config holds the configuration for one generation run.
type Config struct {
	// Start and End bound the inclusive calendar date range (YYYY-MM-DD).
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`

	// TempDir is the root of the per-date artifact directories.
	TempDir string `json:"temp_dir" yaml:"temp_dir"`

	Identity IdentityConfig `json:"identity" yaml:"identity"`
	Synth    SynthConfig    `json:"synth" yaml:"synth"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Logging  logging.Config `json:"logging" yaml:"logging"`

	// LedgerPath enables the SQLite failure ledger when set.
	LedgerPath string `json:"ledger_path" yaml:"ledger_path"`
}

// IdentityConfig controls identifier generation.
type IdentityConfig struct {
	// Count is the number of identifiers requested.
	Count int `json:"count" yaml:"count"`

	// Prefix and Digits define the token format, e.g. MAC00012345.
	Prefix string `json:"prefix" yaml:"prefix"`
	Digits int    `json:"digits" yaml:"digits"`

	// DomainMax is the inclusive upper bound of the sampled integer domain.
	DomainMax int64 `json:"domain_max" yaml:"domain_max"`

	// FalsePositiveRate sizes the admission filter.
	FalsePositiveRate float64 `json:"false_positive_rate" yaml:"false_positive_rate"`

	// Chunks is the number of round-robin identifier partitions per date.
	Chunks int `json:"chunks" yaml:"chunks"`

	// File is an optional identifier snapshot. It is loaded when present and
	// written after generation when absent.
	File string `json:"file" yaml:"file"`
}

// SynthConfig controls record synthesis.
type SynthConfig struct {
	// SlotSeconds is the spacing between readings within a day.
	SlotSeconds int `json:"slot_seconds" yaml:"slot_seconds"`

	MinReading float64 `json:"min_reading" yaml:"min_reading"`
	MaxReading float64 `json:"max_reading" yaml:"max_reading"`

	// Precision is the number of decimal places readings are rounded to.
	Precision int `json:"precision" yaml:"precision"`
}

// PipelineConfig sizes the three worker tiers and the batch threshold.
type PipelineConfig struct {
	OuterWorkers  int `json:"outer_workers" yaml:"outer_workers"`
	WriteWorkers  int `json:"write_workers" yaml:"write_workers"`
	UploadWorkers int `json:"upload_workers" yaml:"upload_workers"`

	// UploadConcurrency is the per-batch worker hint passed to the bulk upload.
	UploadConcurrency int `json:"upload_concurrency" yaml:"upload_concurrency"`

	// BatchSize is the collector threshold.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// FlushRemainder uploads a trailing partial batch when a task finishes.
	FlushRemainder bool `json:"flush_remainder" yaml:"flush_remainder"`
}

// StorageConfig holds remote storage configuration.
type StorageConfig struct {
	// Type is the backend: local, s3 or blob.
	Type string `json:"type" yaml:"type"`

	// Bucket is the target bucket name.
	Bucket string `json:"bucket" yaml:"bucket"`

	// Path is the root directory for the local backend.
	Path string `json:"path" yaml:"path"`

	// URL is a gocloud bucket URL for the blob backend. Defaults to gs://<bucket>.
	URL string `json:"url" yaml:"url"`

	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	Region       string `json:"region" yaml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TempDir: "./data/metergen",
		Identity: IdentityConfig{
			Count:             1_000_000,
			Prefix:            "MAC",
			Digits:            8,
			DomainMax:         31_000_000,
			FalsePositiveRate: 0.001,
			Chunks:            8,
		},
		Synth: SynthConfig{
			SlotSeconds: 10,
			MinReading:  0.0,
			MaxReading:  0.9,
			Precision:   3,
		},
		Pipeline: PipelineConfig{
			OuterWorkers:      runtime.NumCPU() * 10,
			WriteWorkers:      3000,
			UploadWorkers:     100,
			UploadConcurrency: 100,
			BatchSize:         25,
			FlushRemainder:    true,
		},
		Storage: StorageConfig{
			Type:   StorageBlob,
			Bucket: "smart-meter-fake-data-t",
		},
		Logging: logging.Config{
			Format: "text",
			Level:  "info",
		},
	}
}

// Resolve fills derived defaults.
func (c *Config) Resolve() {
	if c.TempDir == "" {
		c.TempDir = "./data/metergen"
	}
	if c.Storage.Type == StorageLocal && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.TempDir, "_bucket", c.Storage.Bucket)
	}
	if c.Storage.Type == StorageBlob && c.Storage.URL == "" && c.Storage.Bucket != "" {
		c.Storage.URL = "gs://" + c.Storage.Bucket
	}
	if c.Pipeline.OuterWorkers <= 0 {
		c.Pipeline.OuterWorkers = runtime.NumCPU() * 10
	}
}

// DateRange parses Start and End.
func (c *Config) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, c.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", c.Start, err)
	}
	end, err := time.Parse(DateLayout, c.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", c.End, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s", c.End, c.Start)
	}
	return start, end, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, _, err := c.DateRange(); err != nil {
		return err
	}

	if c.Identity.Count <= 0 {
		return fmt.Errorf("identity.count must be positive, got %d", c.Identity.Count)
	}
	if c.Identity.Digits <= 0 || c.Identity.Digits > 18 {
		return fmt.Errorf("identity.digits must be between 1 and 18, got %d", c.Identity.Digits)
	}
	if c.Identity.DomainMax <= 0 {
		return fmt.Errorf("identity.domain_max must be positive, got %d", c.Identity.DomainMax)
	}
	if len(strconv.FormatInt(c.Identity.DomainMax, 10)) > c.Identity.Digits {
		return fmt.Errorf("identity.domain_max %d does not fit in %d digits", c.Identity.DomainMax, c.Identity.Digits)
	}
	if c.Identity.FalsePositiveRate <= 0 || c.Identity.FalsePositiveRate >= 1 {
		return fmt.Errorf("identity.false_positive_rate must be in (0, 1), got %g", c.Identity.FalsePositiveRate)
	}
	if c.Identity.Chunks <= 0 {
		return fmt.Errorf("identity.chunks must be positive, got %d", c.Identity.Chunks)
	}

	if c.Synth.SlotSeconds <= 0 || c.Synth.SlotSeconds > 86400 || 86400%c.Synth.SlotSeconds != 0 {
		return fmt.Errorf("synth.slot_seconds must divide a day evenly, got %d", c.Synth.SlotSeconds)
	}
	if c.Synth.MaxReading < c.Synth.MinReading {
		return fmt.Errorf("synth.max_reading %g is below min_reading %g", c.Synth.MaxReading, c.Synth.MinReading)
	}
	if c.Synth.Precision < 0 || c.Synth.Precision > 9 {
		return fmt.Errorf("synth.precision must be between 0 and 9, got %d", c.Synth.Precision)
	}

	if c.Pipeline.WriteWorkers <= 0 || c.Pipeline.UploadWorkers <= 0 || c.Pipeline.OuterWorkers <= 0 {
		return fmt.Errorf("pipeline worker counts must be positive")
	}
	if c.Pipeline.UploadConcurrency <= 0 {
		return fmt.Errorf("pipeline.upload_concurrency must be positive, got %d", c.Pipeline.UploadConcurrency)
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize)
	}

	switch c.Storage.Type {
	case StorageLocal:
		if c.Storage.Path == "" && c.Storage.Bucket == "" {
			return fmt.Errorf("storage.path or storage.bucket is required for local storage")
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage type is s3")
		}
	case StorageBlob:
		if c.Storage.URL == "" && c.Storage.Bucket == "" {
			return fmt.Errorf("storage.url or storage.bucket is required when storage type is blob")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be local, s3 or blob)", c.Storage.Type)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}

	return cfg, nil
}

// LoadFromEnv overlays environment variables with the METERGEN_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("METERGEN_START"); v != "" {
		cfg.Start = v
	}
	if v := os.Getenv("METERGEN_END"); v != "" {
		cfg.End = v
	}
	if v := os.Getenv("METERGEN_TEMP_DIR"); v != "" {
		cfg.TempDir = v
	}

	// Identity
	envInt("METERGEN_IDENTITY_COUNT", &cfg.Identity.Count)
	envInt("METERGEN_IDENTITY_CHUNKS", &cfg.Identity.Chunks)
	if v := os.Getenv("METERGEN_IDENTITY_FILE"); v != "" {
		cfg.Identity.File = v
	}

	// Synth
	envInt("METERGEN_SYNTH_SLOT_SECONDS", &cfg.Synth.SlotSeconds)

	// Pipeline
	envInt("METERGEN_PIPELINE_OUTER_WORKERS", &cfg.Pipeline.OuterWorkers)
	envInt("METERGEN_PIPELINE_WRITE_WORKERS", &cfg.Pipeline.WriteWorkers)
	envInt("METERGEN_PIPELINE_UPLOAD_WORKERS", &cfg.Pipeline.UploadWorkers)
	envInt("METERGEN_PIPELINE_UPLOAD_CONCURRENCY", &cfg.Pipeline.UploadConcurrency)
	envInt("METERGEN_PIPELINE_BATCH_SIZE", &cfg.Pipeline.BatchSize)
	if v := os.Getenv("METERGEN_PIPELINE_FLUSH_REMAINDER"); v != "" {
		cfg.Pipeline.FlushRemainder = v == "true" || v == "1"
	}

	// Storage
	if v := os.Getenv("METERGEN_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("METERGEN_STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("METERGEN_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("METERGEN_STORAGE_URL"); v != "" {
		cfg.Storage.URL = v
	}
	if v := os.Getenv("METERGEN_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("METERGEN_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}

	// Logging
	if v := os.Getenv("METERGEN_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("METERGEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("METERGEN_LEDGER_PATH"); v != "" {
		cfg.LedgerPath = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// DateDir returns the artifact directory for one date.
func (c *Config) DateDir(date string) string {
	return filepath.Join(c.TempDir, date)
}

// EnsureDirectories creates the directories the run needs up front.
// Per-date directories are created lazily by the orchestrator.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.TempDir}
	if c.Storage.Type == StorageLocal {
		dirs = append(dirs, c.Storage.Path)
	}
	if c.LedgerPath != "" {
		dirs = append(dirs, filepath.Dir(c.LedgerPath))
	}
	if c.Identity.File != "" {
		dirs = append(dirs, filepath.Dir(c.Identity.File))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arkilian/metergen/internal/config"
	apperrors "github.com/arkilian/metergen/internal/errors"
	"github.com/arkilian/metergen/internal/logging"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metergen",
		Short: "Generate synthetic smart meter data and upload it to object storage",
		Long: `Generate one line-delimited JSON file of readings per meter per day for an
inclusive date range, upload them in batches under dt=<date>/ and remove the
local copies once uploaded.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := logging.Setup(cfg.Logging)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}

	fs := cmd.Flags()
	fs.String("start", "", "First date to generate (YYYY-MM-DD)")
	fs.String("end", "", "Last date to generate, inclusive (YYYY-MM-DD)")
	fs.String("bucket", "", "Target bucket name")
	fs.BoolP("verbose", "v", false, "Enable debug logging")
	fs.String("config", "", "Path to a YAML or JSON config file")
	fs.String("storage", "", "Storage backend: local, s3 or blob")
	fs.Int("count", 0, "Number of meter identifiers to generate")
	fs.Int("batch-size", 0, "Files per upload batch")
	fs.String("temp-dir", "", "Root directory for local artifacts")
	fs.String("ids-file", "", "Identifier snapshot to load or create")
	fs.String("ledger", "", "SQLite file to record per-file failures in")

	return cmd
}

// loadConfig applies defaults, then the config file, then METERGEN_*
// variables, then any flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	fs := cmd.Flags()

	cfg := config.DefaultConfig()
	if path, _ := fs.GetString("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCategoryValidation, apperrors.CodeInvalidConfig, "load config", err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)

	stringFlags := map[string]*string{
		"start":    &cfg.Start,
		"end":      &cfg.End,
		"bucket":   &cfg.Storage.Bucket,
		"storage":  &cfg.Storage.Type,
		"temp-dir": &cfg.TempDir,
		"ids-file": &cfg.Identity.File,
		"ledger":   &cfg.LedgerPath,
	}
	for name, dst := range stringFlags {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}

	intFlags := map[string]*int{
		"count":      &cfg.Identity.Count,
		"batch-size": &cfg.Pipeline.BatchSize,
	}
	for name, dst := range intFlags {
		if fs.Changed(name) {
			*dst, _ = fs.GetInt(name)
		}
	}

	if verbose, _ := fs.GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCategoryValidation, apperrors.CodeInvalidConfig, "invalid configuration", err)
	}
	return cfg, nil
}

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/arkilian/metergen/internal/config"
	apperrors "github.com/arkilian/metergen/internal/errors"
	"github.com/arkilian/metergen/internal/identity"
	"github.com/arkilian/metergen/internal/ledger"
	"github.com/arkilian/metergen/internal/pipeline"
	"github.com/arkilian/metergen/internal/storage"
	"github.com/arkilian/metergen/internal/synth"
)

// run executes one generation run. Errors are returned only for startup
// failures; per-file failures end up in the report.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	start, end, err := cfg.DateRange()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCategoryValidation, apperrors.CodeInvalidDate, "date range", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return apperrors.NewInternalError("create directories", err)
	}

	var (
		sink pipeline.FailureSink
		ldg  *ledger.Ledger
	)
	if cfg.LedgerPath != "" {
		ldg, err = ledger.Open(cfg.LedgerPath)
		if err != nil {
			return apperrors.NewInternalError("open ledger", err)
		}
		defer ldg.Close()
		sink = ldg
		logger.Info("Failure ledger enabled", "path", cfg.LedgerPath)
	}

	ids, err := identity.Provision(ctx, identity.ProvisionOptions{
		Count: cfg.Identity.Count,
		Generator: identity.Options{
			Format:            identity.Format{Prefix: cfg.Identity.Prefix, Digits: cfg.Identity.Digits},
			DomainMax:         cfg.Identity.DomainMax,
			FalsePositiveRate: cfg.Identity.FalsePositiveRate,
		},
		SnapshotPath: cfg.Identity.File,
		Logger:       logger.With("component", "identity"),
	})
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return apperrors.NewStorageError(apperrors.CodeBucketOpen, "open storage", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "type", cfg.Storage.Type, "target", store.URI(""))

	report := pipeline.NewReport(sink, logger)
	report.SetIdentifiers(ids.Stats().Requested, ids.Stats().Accepted)
	if ldg != nil {
		if err := ldg.BeginRun(ctx, report.RunID, cfg.Start, cfg.End, report.Started); err != nil {
			return err
		}
	}

	synthesizer := synth.NewSynthesizer(
		synth.TimeSlots(cfg.Synth.SlotSeconds),
		synth.UniformValue(cfg.Synth.MinReading, cfg.Synth.MaxReading, cfg.Synth.Precision),
	)

	writes := pipeline.NewPool("write", cfg.Pipeline.WriteWorkers)
	uploads := pipeline.NewPool("upload", cfg.Pipeline.UploadWorkers)
	dispatcher := pipeline.NewDispatcher(
		storage.NewBatchUploader(store),
		uploads,
		cfg.Pipeline.UploadConcurrency,
		report,
		logger,
	)

	orchestrator := pipeline.NewOrchestrator(pipeline.Options{
		Start:          start,
		End:            end,
		Chunks:         ids.Chunks(cfg.Identity.Chunks),
		TempDir:        cfg.TempDir,
		OuterWorkers:   cfg.Pipeline.OuterWorkers,
		BatchSize:      cfg.Pipeline.BatchSize,
		FlushRemainder: cfg.Pipeline.FlushRemainder,
	}, synthesizer, writes, dispatcher, report, logger)

	_, runErr := orchestrator.Run(ctx)
	summary := report.Summary()

	if ldg != nil {
		// The run context may already be cancelled; the summary is still worth keeping.
		if err := ldg.FinishRun(context.Background(), summary, time.Now()); err != nil {
			logger.Warn("Failed to record run summary", "error", err)
		}
	}

	if runErr != nil {
		logger.Warn("Run interrupted", "error", runErr, "report", summary)
		return nil
	}
	if summary.Failed() {
		logger.Warn("Run complete with failures", "report", summary)
		return nil
	}
	logger.Info("Run complete", "report", summary)
	return nil
}

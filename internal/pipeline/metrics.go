package pipeline

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	filesWritten    metric.Int64Counter
	writeErrors     metric.Int64Counter
	batchesUploaded metric.Int64Counter
	filesUploaded   metric.Int64Counter
	uploadErrors    metric.Int64Counter
	filesDeleted    metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/arkilian/metergen/internal/pipeline")

	var err error

	filesWritten, err = meter.Int64Counter(
		"metergen.files.written",
		metric.WithDescription("Number of artifact files written to local disk"),
	)
	if err != nil {
		log.Fatalf("failed to create files.written counter: %v", err)
	}

	writeErrors, err = meter.Int64Counter(
		"metergen.files.write_errors",
		metric.WithDescription("Number of artifact files that failed to write"),
	)
	if err != nil {
		log.Fatalf("failed to create files.write_errors counter: %v", err)
	}

	batchesUploaded, err = meter.Int64Counter(
		"metergen.batches.uploaded",
		metric.WithDescription("Number of batches handed to the bulk upload"),
	)
	if err != nil {
		log.Fatalf("failed to create batches.uploaded counter: %v", err)
	}

	filesUploaded, err = meter.Int64Counter(
		"metergen.files.uploaded",
		metric.WithDescription("Number of artifact files uploaded"),
	)
	if err != nil {
		log.Fatalf("failed to create files.uploaded counter: %v", err)
	}

	uploadErrors, err = meter.Int64Counter(
		"metergen.files.upload_errors",
		metric.WithDescription("Number of artifact files that failed to upload"),
	)
	if err != nil {
		log.Fatalf("failed to create files.upload_errors counter: %v", err)
	}

	filesDeleted, err = meter.Int64Counter(
		"metergen.files.deleted",
		metric.WithDescription("Number of local artifact files removed after upload"),
	)
	if err != nil {
		log.Fatalf("failed to create files.deleted counter: %v", err)
	}
}

func recordCounter(c metric.Int64Counter, n int) {
	if n > 0 {
		c.Add(context.Background(), int64(n))
	}
}

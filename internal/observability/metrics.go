package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricTargetsTotal  = "traction.fetch.targets.total"
	metricFetchDuration = "traction.fetch.duration.seconds"
	metricRecordsTotal  = "traction.fetch.records.total"
	metricWarningsTotal = "traction.fetch.warnings.total"
	metricAppendedTotal = "traction.store.appended.total"

	attrKind        = "kind"
	attrOutcome     = "outcome"
	attrDisposition = "disposition"
)

// Outcome label values for completed targets.
const (
	OutcomeDone   = "done"
	OutcomeFailed = "failed"
)

// Disposition label values for merged records.
const (
	DispositionNew     = "new"
	DispositionSkipped = "skipped"
)

// fetchBucketBoundaries covers 50ms to 300s: a single point lookup on the
// low end, a multi-page message backfill across many channels on the high.
var fetchBucketBoundaries = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// IngestMetrics holds OTel instruments for the ingestion pipeline.
type IngestMetrics struct {
	targetsTotal  metric.Int64Counter
	fetchDuration metric.Float64Histogram
	recordsTotal  metric.Int64Counter
	warningsTotal metric.Int64Counter
	appendedTotal metric.Int64Counter
}

// TargetStats holds the counts recorded after one target completes,
// decoupled from coordinator types.
type TargetStats struct {
	Kind     string
	Failed   bool
	Duration time.Duration
	New      int64
	Skipped  int64
	Warnings int64
}

// NewIngestMetrics creates ingestion metric instruments from the given meter.
func NewIngestMetrics(mt metric.Meter) (*IngestMetrics, error) {
	b := newMetricBuilder(mt)

	im := &IngestMetrics{
		targetsTotal:  b.counter(metricTargetsTotal, "Total targets processed by outcome", "{target}"),
		fetchDuration: b.histogram(metricFetchDuration, "Per-target fetch duration in seconds", "s", fetchBucketBoundaries...),
		recordsTotal:  b.counter(metricRecordsTotal, "Total fetched records by merge disposition", "{record}"),
		warningsTotal: b.counter(metricWarningsTotal, "Total partial-result warnings", "{warning}"),
		appendedTotal: b.counter(metricAppendedTotal, "Total records appended to the store", "{record}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return im, nil
}

// RecordTarget records the outcome of one processed target.
// Safe to call on a nil receiver (no-op).
func (im *IngestMetrics) RecordTarget(ctx context.Context, stats TargetStats) {
	if im == nil {
		return
	}

	outcome := OutcomeDone
	if stats.Failed {
		outcome = OutcomeFailed
	}

	kindAttr := attribute.String(attrKind, stats.Kind)

	im.targetsTotal.Add(ctx, 1, metric.WithAttributes(kindAttr, attribute.String(attrOutcome, outcome)))
	im.fetchDuration.Record(ctx, stats.Duration.Seconds(), metric.WithAttributes(kindAttr))

	im.recordsTotal.Add(ctx, stats.New, metric.WithAttributes(kindAttr,
		attribute.String(attrDisposition, DispositionNew)))
	im.recordsTotal.Add(ctx, stats.Skipped, metric.WithAttributes(kindAttr,
		attribute.String(attrDisposition, DispositionSkipped)))

	im.warningsTotal.Add(ctx, stats.Warnings, metric.WithAttributes(kindAttr))
}

// RecordAppended records how many rows the final persist added.
// Safe to call on a nil receiver (no-op).
func (im *IngestMetrics) RecordAppended(ctx context.Context, appended int64) {
	if im == nil {
		return
	}

	im.appendedTotal.Add(ctx, appended)
}

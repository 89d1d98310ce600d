// Package ingest coordinates incremental metric collection. A Coordinator
// owns the dataset store and the set of keys already persisted; it drives
// each target through expansion, fetching and merging, then appends only
// unseen records in a single write. Upstream failures are isolated per
// target, so one unreachable API never blocks the others.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
	"github.com/Sumatoshi-tech/traction/internal/observability"
	"github.com/Sumatoshi-tech/traction/internal/sources"
)

// ErrUnknownKind is returned when a target names a source kind with no
// registered fetcher.
var ErrUnknownKind = errors.New("ingest: no fetcher for kind")

const (
	// DefaultHorizonDays bounds how far back message backfill reaches.
	DefaultHorizonDays = 14

	// tracerName is the fallback OTel tracer name for this package.
	tracerName = "traction"
)

// Coordinator drives fetch targets through the state machine and owns all
// store access. Adapters never see the key set: the coordinator computes
// each backfill window and passes it in via [sources.Target.Missing].
type Coordinator struct {
	Store    *dataset.Store
	Fetchers map[sources.Kind]sources.Fetcher

	// HorizonDays is how many days before today backfill may reach.
	// Zero means DefaultHorizonDays.
	HorizonDays int

	// Logger falls back to slog.Default when nil.
	Logger *slog.Logger

	// Metrics may be nil; recording becomes a no-op.
	Metrics *observability.IngestMetrics

	// Tracer is the OTel tracer for run and target spans.
	// When nil, falls back to the global provider.
	Tracer trace.Tracer

	// Now replaces time.Now for day arithmetic. Nil means wall clock.
	Now func() time.Time
}

// NewCoordinator creates a Coordinator over the given store, registering
// each fetcher under its own kind.
func NewCoordinator(store *dataset.Store, fetchers ...sources.Fetcher) *Coordinator {
	byKind := make(map[sources.Kind]sources.Fetcher, len(fetchers))
	for _, fetcher := range fetchers {
		byKind[fetcher.Kind()] = fetcher
	}

	return &Coordinator{Store: store, Fetchers: byKind}
}

// Run drives every target through the state machine in input order, then
// persists all accepted records with a single append. The returned error
// covers only store load and persist failures; per-target errors live in
// the report, so exit status reflects the dataset, not flaky upstreams.
func (coord *Coordinator) Run(ctx context.Context, targets []sources.Target) (RunReport, error) {
	ctx, span := coord.tracer().Start(ctx, "traction.fetch.run",
		trace.WithAttributes(attribute.Int("run.targets", len(targets))))
	defer span.End()

	keys, loadErr := coord.Store.Load()
	if loadErr != nil {
		observability.RecordSpanError(span, loadErr, observability.ErrTypeInternal, observability.ErrSourceServer)

		return RunReport{}, fmt.Errorf("load existing keys: %w", loadErr)
	}

	coord.logger().InfoContext(ctx, "run started",
		slog.Int("targets", len(targets)),
		slog.Int("existing_keys", keys.Len()))

	report := RunReport{Targets: make([]TargetSummary, 0, len(targets))}

	var pending []dataset.Record

	for _, target := range targets {
		summary, accepted := coord.processTarget(ctx, target, keys)
		pending = append(pending, accepted...)

		coord.Metrics.RecordTarget(ctx, summaryStats(summary))
		report.Targets = append(report.Targets, summary)
	}

	if len(pending) > 0 {
		appendErr := coord.Store.Append(pending)
		if appendErr != nil {
			observability.RecordSpanError(span, appendErr, observability.ErrTypeInternal, observability.ErrSourceServer)

			return report, fmt.Errorf("append records: %w", appendErr)
		}
	}

	report.Appended = len(pending)
	coord.Metrics.RecordAppended(ctx, int64(len(pending)))

	coord.logger().InfoContext(ctx, "run finished",
		slog.Int("appended", report.Appended),
		slog.Int("failed_targets", len(report.Failed())),
		slog.String("store", coord.Store.Path()))

	return report, nil
}

// processTarget walks one target through expand, fetch and merge, returning
// its summary and the records accepted for the append batch. keys is mutated
// with accepted keys so later targets deduplicate against this one.
func (coord *Coordinator) processTarget(
	ctx context.Context, target sources.Target, keys *dataset.KeySet,
) (summary TargetSummary, accepted []dataset.Record) {
	start := time.Now()

	ctx, span := coord.tracer().Start(ctx, "traction.fetch.target",
		trace.WithAttributes(
			attribute.String("target.kind", string(target.Kind)),
			attribute.String("target.entity", target.Entity()),
		))

	defer func() {
		summary.Duration = time.Since(start)

		span.End()
	}()

	summary = TargetSummary{Target: target, State: StateIdle}
	log := coord.logger().With(
		slog.String("kind", string(target.Kind)),
		slog.String("entity", target.Entity()))

	fetcher, registered := coord.Fetchers[target.Kind]
	if !registered {
		summary.State = StateFailed
		summary.Err = fmt.Errorf("%w: %s", ErrUnknownKind, target.Kind)

		observability.RecordSpanError(span, summary.Err, observability.ErrTypeValidation, "")
		log.ErrorContext(ctx, "target failed", slog.String("state", StateIdle.String()), slog.Any("error", summary.Err))

		return summary, nil
	}

	if expander, ok := fetcher.(sources.Expander); ok {
		summary.State = StateExpanding

		entities, expandErr := expander.Expand(ctx, target.Selector)
		if expandErr != nil {
			return coord.failTarget(ctx, span, log, summary, expandErr), nil
		}

		summary.Entities = len(entities)
		log.InfoContext(ctx, "selector expanded", slog.Int("entities", len(entities)))
	}

	if backfiller, ok := fetcher.(sources.Backfiller); ok {
		target.Missing = coord.missingDays(target.Entity(), backfiller.BackfillSource(), keys)
		summary.Target = target

		log.InfoContext(ctx, "backfill window computed", slog.Int("missing_days", len(target.Missing)))
	}

	summary.State = StateFetching

	result, fetchErr := fetcher.Fetch(ctx, target)
	if fetchErr != nil {
		return coord.failTarget(ctx, span, log, summary, fetchErr), nil
	}

	summary.Fetched = len(result.Records)
	summary.Partial = result.Partial
	summary.Warnings = result.Warnings

	if result.Entities > 0 {
		summary.Entities = result.Entities
	}

	for _, warning := range result.Warnings {
		log.WarnContext(ctx, "partial result", slog.String("warning", warning))
	}

	summary.State = StateMerging

	accepted, skipped, dropped := coord.merge(result.Records, keys)
	summary.New = len(accepted)
	summary.Skipped = skipped

	if dropped > 0 {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("dropped %d invalid records", dropped))
		log.WarnContext(ctx, "invalid records dropped", slog.Int("dropped", dropped))
	}

	summary.State = StateDone

	span.SetAttributes(
		attribute.Int("target.fetched", summary.Fetched),
		attribute.Int("target.new", summary.New),
		attribute.Int("target.skipped", summary.Skipped),
	)
	log.InfoContext(ctx, "target done",
		slog.Int("fetched", summary.Fetched),
		slog.Int("new", summary.New),
		slog.Int("skipped", summary.Skipped))

	return summary, accepted
}

// failTarget marks the summary failed, recording the state it failed from.
func (coord *Coordinator) failTarget(
	ctx context.Context, span trace.Span, log *slog.Logger, summary TargetSummary, err error,
) TargetSummary {
	failedFrom := summary.State
	summary.State = StateFailed
	summary.Err = err

	observability.RecordSpanError(span, err, observability.ErrTypeDependencyUnavailable, observability.ErrSourceDependency)
	log.ErrorContext(ctx, "target failed", slog.String("state", failedFrom.String()), slog.Any("error", err))

	return summary
}

// merge validates and deduplicates fetched records against the key set.
// Accepted keys are added to the set immediately so duplicates later in the
// same batch, or in a later target, are skipped rather than appended twice.
func (coord *Coordinator) merge(
	records []dataset.Record, keys *dataset.KeySet,
) (accepted []dataset.Record, skipped, dropped int) {
	for _, record := range records {
		if validErr := record.Validate(); validErr != nil {
			dropped++

			continue
		}

		key := record.Key()
		if keys.Has(key) {
			skipped++

			continue
		}

		keys.Add(key)
		accepted = append(accepted, record)
	}

	return accepted, skipped, dropped
}

// missingDays lists days inside the backfill horizon, oldest first, whose
// (day, entity, source) key is absent from the store. The current day never
// qualifies: its counts are still accumulating upstream.
func (coord *Coordinator) missingDays(entity string, source dataset.Source, keys *dataset.KeySet) []dataset.Day {
	today := dataset.DayOf(coord.nowFunc()())

	var missing []dataset.Day

	for offset := coord.horizonDays(); offset >= 1; offset-- {
		day := today.AddDays(-offset)
		if keys.Has(dataset.Key{Day: day, Entity: entity, Source: source}) {
			continue
		}

		missing = append(missing, day)
	}

	return missing
}

// tracer returns the configured tracer, falling back to the global provider.
func (coord *Coordinator) tracer() trace.Tracer {
	if coord.Tracer != nil {
		return coord.Tracer
	}

	return otel.Tracer(tracerName)
}

func (coord *Coordinator) logger() *slog.Logger {
	if coord.Logger != nil {
		return coord.Logger
	}

	return slog.Default()
}

func (coord *Coordinator) horizonDays() int {
	if coord.HorizonDays > 0 {
		return coord.HorizonDays
	}

	return DefaultHorizonDays
}

func (coord *Coordinator) nowFunc() func() time.Time {
	if coord.Now != nil {
		return coord.Now
	}

	return time.Now
}

// summaryStats converts a target summary into its metrics payload.
func summaryStats(summary TargetSummary) observability.TargetStats {
	return observability.TargetStats{
		Kind:     string(summary.Target.Kind),
		Failed:   summary.State == StateFailed,
		Duration: summary.Duration,
		New:      int64(summary.New),
		Skipped:  int64(summary.Skipped),
		Warnings: int64(len(summary.Warnings)),
	}
}

package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/traction/internal/observability"
)

func setupIngestMeter(t *testing.T) (*observability.IngestMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	im, err := observability.NewIngestMetrics(meter)
	require.NoError(t, err)

	return im, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

// sumByAttr folds int64 sum datapoints into a map keyed by one attribute value.
func sumByAttr(t *testing.T, m *metricdata.Metrics, key string) map[string]int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64] data type")

	out := make(map[string]int64)

	for _, dp := range sum.DataPoints {
		v, found := dp.Attributes.Value(attribute.Key(key))
		if !found {
			continue
		}

		out[v.AsString()] += dp.Value
	}

	return out
}

func TestIngestMetrics_RecordTarget(t *testing.T) {
	t.Parallel()
	im, reader := setupIngestMeter(t)
	ctx := context.Background()

	im.RecordTarget(ctx, observability.TargetStats{
		Kind:     "pypi",
		Duration: 250 * time.Millisecond,
		New:      3,
		Skipped:  1,
	})

	rm := collectMetrics(t, reader)

	targets := findMetric(rm, "traction.fetch.targets.total")
	require.NotNil(t, targets, "traction.fetch.targets.total metric not found")

	duration := findMetric(rm, "traction.fetch.duration.seconds")
	require.NotNil(t, duration, "traction.fetch.duration.seconds metric not found")

	records := findMetric(rm, "traction.fetch.records.total")
	require.NotNil(t, records, "traction.fetch.records.total metric not found")
}

func TestIngestMetrics_RecordTarget_Outcomes(t *testing.T) {
	t.Parallel()
	im, reader := setupIngestMeter(t)
	ctx := context.Background()

	im.RecordTarget(ctx, observability.TargetStats{Kind: "npm", Duration: time.Second})
	im.RecordTarget(ctx, observability.TargetStats{Kind: "discord", Failed: true, Duration: time.Second})

	rm := collectMetrics(t, reader)

	targets := findMetric(rm, "traction.fetch.targets.total")
	require.NotNil(t, targets)

	byOutcome := sumByAttr(t, targets, "outcome")
	assert.Equal(t, int64(1), byOutcome["done"])
	assert.Equal(t, int64(1), byOutcome["failed"])
}

func TestIngestMetrics_RecordTarget_Dispositions(t *testing.T) {
	t.Parallel()
	im, reader := setupIngestMeter(t)
	ctx := context.Background()

	im.RecordTarget(ctx, observability.TargetStats{
		Kind:    "github",
		New:     4,
		Skipped: 2,
	})

	rm := collectMetrics(t, reader)

	records := findMetric(rm, "traction.fetch.records.total")
	require.NotNil(t, records)

	byDisposition := sumByAttr(t, records, "disposition")
	assert.Equal(t, int64(4), byDisposition["new"])
	assert.Equal(t, int64(2), byDisposition["skipped"])
}

func TestIngestMetrics_HistogramBuckets(t *testing.T) {
	t.Parallel()

	im, reader := setupIngestMeter(t)
	ctx := context.Background()

	im.RecordTarget(ctx, observability.TargetStats{Kind: "discord", Duration: 42 * time.Second})

	rm := collectMetrics(t, reader)

	duration := findMetric(rm, "traction.fetch.duration.seconds")
	require.NotNil(t, duration)

	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected Histogram data type")
	require.NotEmpty(t, hist.DataPoints)

	bounds := hist.DataPoints[0].Bounds

	// Boundaries span point lookups through multi-page backfills.
	expectedBounds := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	assert.Equal(t, expectedBounds, bounds, "histogram should use custom bucket boundaries")
}

func TestIngestMetrics_RecordAppended(t *testing.T) {
	t.Parallel()
	im, reader := setupIngestMeter(t)
	ctx := context.Background()

	im.RecordAppended(ctx, 7)

	rm := collectMetrics(t, reader)

	appended := findMetric(rm, "traction.store.appended.total")
	require.NotNil(t, appended, "traction.store.appended.total metric not found")

	sum, ok := appended.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(7), sum.DataPoints[0].Value)
}

func TestIngestMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var im *observability.IngestMetrics

	// Recording on a nil receiver must be a no-op, not a panic.
	im.RecordTarget(context.Background(), observability.TargetStats{Kind: "pypi"})
	im.RecordAppended(context.Background(), 3)
}

func TestNewIngestMetrics_WithInitProviders(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(context.Background(), observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	im, err := observability.NewIngestMetrics(providers.Meter)
	require.NoError(t, err)
	assert.NotNil(t, im)

	// Should not panic on recording.
	im.RecordTarget(context.Background(), observability.TargetStats{Kind: "npm", Duration: time.Millisecond})
}

package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/himanishpuri/AutoPESQ/internal/pipeline"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func hasAttr(dp metricdata.DataPoint[int64], key, value string) bool {
	for _, kv := range dp.Attributes.ToSlice() {
		if string(kv.Key) == key && kv.Value.AsString() == value {
			return true
		}
	}
	return false
}

func TestStageCompleted(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.StageCompleted(ctx, pipeline.Aligning, 20*time.Millisecond)
	m.StageCompleted(ctx, pipeline.Aligning, 30*time.Millisecond)
	m.StageCompleted(ctx, pipeline.Scoring, time.Second)

	met := findMetric(collect(t, reader), "autopesq.stage.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) != 2 {
		t.Fatalf("data points = %d, want 2 (one per stage)", len(hist.DataPoints))
	}
	for _, dp := range hist.DataPoints {
		stage, _ := dp.Attributes.Value("stage")
		switch stage.AsString() {
		case "ALIGNING":
			if dp.Count != 2 {
				t.Errorf("ALIGNING count = %d, want 2", dp.Count)
			}
		case "SCORING":
			if dp.Count != 1 {
				t.Errorf("SCORING count = %d, want 1", dp.Count)
			}
		default:
			t.Errorf("unexpected stage %q", stage.AsString())
		}
	}
}

func TestRunCompletedSuccess(t *testing.T) {
	m, reader := newTestMetrics(t)

	res := &pipeline.Result{
		State:     pipeline.Done,
		Elapsed:   2 * time.Second,
		Alignment: &models.AlignmentResult{LagSamples: 1600},
		Score:     &models.QualityScore{Value: 4.2, Mode: models.Narrowband},
	}
	m.RunCompleted(context.Background(), res, nil)

	rm := collect(t, reader)

	runs := findMetric(rm, "autopesq.runs")
	if runs == nil {
		t.Fatal("runs metric not found")
	}
	sum := runs.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || !hasAttr(sum.DataPoints[0], "status", "done") {
		t.Errorf("unexpected runs data: %+v", sum.DataPoints)
	}

	scores := findMetric(rm, "autopesq.score")
	if scores == nil {
		t.Fatal("score metric not found")
	}
	hist := scores.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Sum != 4.2 {
		t.Errorf("unexpected score data: %+v", hist.DataPoints)
	}

	lag := findMetric(rm, "autopesq.alignment.lag")
	if lag == nil {
		t.Fatal("lag metric not found")
	}
	if got := lag.Data.(metricdata.Histogram[int64]).DataPoints[0].Sum; got != 1600 {
		t.Errorf("lag sum = %d, want 1600", got)
	}
}

func TestRunCompletedFailureKinds(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RunCompleted(ctx, &pipeline.Result{State: pipeline.Error}, models.Errorf(models.TimeoutError, "trigger", "no voice"))
	m.RunCompleted(ctx, &pipeline.Result{State: pipeline.Error}, models.Errorf(models.TimeoutError, "trigger", "no voice"))
	m.RunCompleted(ctx, nil, errors.New("device gone"))

	met := findMetric(collect(t, reader), "autopesq.runs")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])

	var timeouts, unclassified int64
	for _, dp := range sum.DataPoints {
		if !hasAttr(dp, "status", "failed") {
			t.Errorf("unexpected status in %v", dp.Attributes.ToSlice())
		}
		switch {
		case hasAttr(dp, "kind", "TimeoutError"):
			timeouts = dp.Value
		case hasAttr(dp, "kind", "Unclassified"):
			unclassified = dp.Value
		}
	}
	if timeouts != 2 || unclassified != 1 {
		t.Errorf("timeouts = %d, unclassified = %d, want 2 and 1", timeouts, unclassified)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)
	m.RecordCacheLookup(ctx, false)

	met := findMetric(collect(t, reader), "autopesq.oracle.cache")
	if met == nil {
		t.Fatal("metric not found")
	}
	for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
		if hasAttr(dp, "result", "miss") && dp.Value != 2 {
			t.Errorf("misses = %d, want 2", dp.Value)
		}
		if hasAttr(dp, "result", "hit") && dp.Value != 1 {
			t.Errorf("hits = %d, want 1", dp.Value)
		}
	}
}

func TestDefaultMetricsIsSingleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}

// Package observe wires AutoPESQ into OpenTelemetry: metric instruments for
// pipeline stages and scores, a tracer, and HTTP middleware for the server.
//
// Metrics are exported to Prometheus through [InitProvider]. Tests should
// build their own [Metrics] with [NewMetrics] and a ManualReader instead of
// touching [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"github.com/himanishpuri/AutoPESQ/internal/pipeline"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/himanishpuri/AutoPESQ"

type Metrics struct {
	// StageDuration is time spent per pipeline stage, keyed by "stage".
	StageDuration metric.Float64Histogram

	// RunDuration is wall time of a whole run.
	RunDuration metric.Float64Histogram

	// Scores records every PESQ result, keyed by "mode".
	Scores metric.Float64Histogram

	// Runs counts finished runs by "status" and, for failures, "kind".
	Runs metric.Int64Counter

	// LagSamples records the estimated alignment lag in samples.
	LagSamples metric.Int64Histogram

	// OracleCacheHits counts score cache lookups by "result" (hit or miss).
	OracleCacheHits metric.Int64Counter

	HTTPRequestDuration metric.Float64Histogram
}

// stageBuckets spans sub-millisecond alignment up to a long trigger wait.
var stageBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300,
}

// scoreBuckets follow the rating bands on the 1.0 to 4.5 scale.
var scoreBuckets = []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.25, 4.5}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("autopesq.stage.duration",
		metric.WithDescription("Time spent in each pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RunDuration, err = m.Float64Histogram("autopesq.run.duration",
		metric.WithDescription("Wall time of a complete run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Scores, err = m.Float64Histogram("autopesq.score",
		metric.WithDescription("PESQ MOS-LQO scores by mode."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Runs, err = m.Int64Counter("autopesq.runs",
		metric.WithDescription("Finished runs by status and error kind."),
	); err != nil {
		return nil, err
	}
	if met.LagSamples, err = m.Int64Histogram("autopesq.alignment.lag",
		metric.WithDescription("Estimated capture lag in samples."),
		metric.WithUnit("{sample}"),
	); err != nil {
		return nil, err
	}
	if met.OracleCacheHits, err = m.Int64Counter("autopesq.oracle.cache",
		metric.WithDescription("Score cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("autopesq.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide Metrics built on the global meter
// provider. Call InitProvider first if the metrics should be exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// StageCompleted implements pipeline.Observer.
func (m *Metrics) StageCompleted(ctx context.Context, stage pipeline.State, elapsed time.Duration) {
	m.StageDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage.String())))
}

// RunCompleted implements pipeline.Observer.
func (m *Metrics) RunCompleted(ctx context.Context, res *pipeline.Result, err error) {
	status := "done"
	attrs := []attribute.KeyValue{}
	if err != nil {
		status = "failed"
		kind := models.KindOf(err)
		kindName := "Unclassified"
		if kind != 0 {
			kindName = kind.String()
		}
		attrs = append(attrs, attribute.String("kind", kindName))
	}
	attrs = append(attrs, attribute.String("status", status))
	m.Runs.Add(ctx, 1, metric.WithAttributes(attrs...))

	if res == nil {
		return
	}
	m.RunDuration.Record(ctx, res.Elapsed.Seconds(),
		metric.WithAttributes(attribute.String("status", status)))
	if res.Alignment != nil {
		m.LagSamples.Record(ctx, int64(res.Alignment.LagSamples))
	}
	if res.Score != nil {
		m.Scores.Record(ctx, res.Score.Value,
			metric.WithAttributes(attribute.String("mode", res.Score.Mode.Flag())))
	}
}

// RecordCacheLookup counts one score cache lookup.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.OracleCacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

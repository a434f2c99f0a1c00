package autopesq

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/himanishpuri/AutoPESQ/internal/audio"
	"github.com/himanishpuri/AutoPESQ/internal/observe"
	"github.com/himanishpuri/AutoPESQ/internal/quality"
	"github.com/himanishpuri/AutoPESQ/pkg/logger"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const testRate = 8000

// loudRecorder fires the trigger on the first poll and answers the capture
// request (captureLen samples) with capture, zero padded.
type loudRecorder struct {
	captureLen int
	capture    []float64
}

func (r *loudRecorder) Record(ctx context.Context, n, rate int) (models.Signal, error) {
	if err := ctx.Err(); err != nil {
		return models.Signal{}, err
	}
	out := make([]float64, n)
	if n == r.captureLen {
		copy(out, r.capture)
	} else {
		out[0] = 0.5
	}
	return models.NewSignal(out, rate), nil
}

type countingOracle struct {
	calls atomic.Int32
	score float64
	err   error
}

func (o *countingOracle) Score(context.Context, int, []int16, []int16, models.Mode) (float64, error) {
	o.calls.Add(1)
	return o.score, o.err
}

func testTone(seconds float64) []float64 {
	n := int(testRate * seconds)
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / testRate
		out[i] = 0.5 * math.Sin(2*math.Pi*(300+300*t)*t) * (0.6 + 0.3*math.Sin(2*math.Pi*2*t))
	}
	return out
}

func delayed(samples []float64, lag int) []float64 {
	out := make([]float64, lag+len(samples))
	copy(out[lag:], samples)
	return out
}

func writeWav(t *testing.T, path string, samples []float64) {
	t.Helper()
	if err := audio.WriteSignal(path, models.NewSignal(samples, testRate)); err != nil {
		t.Fatalf("WriteSignal(%s) failed: %v", path, err)
	}
}

func newTestService(t *testing.T, opts ...Option) (Service, string) {
	t.Helper()
	dir := t.TempDir()
	met, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	base := []Option{
		WithDBPath(filepath.Join(dir, "test.sqlite3")),
		WithOutputDir(filepath.Join(dir, "out")),
		WithSampleRate(testRate),
		WithDuration(time.Second),
		WithLogger(logger.Nop()),
		WithMetrics(met),
	}
	svc, err := NewService(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc, dir
}

func TestCaptureEndToEnd(t *testing.T) {
	tone := testTone(1)
	rec := &loudRecorder{captureLen: testRate, capture: delayed(tone, 1600)}
	oracle := &countingOracle{score: 4.2}

	svc, dir := newTestService(t, WithRecorder(rec), WithOracle(oracle))
	refPath := filepath.Join(dir, "ref.wav")
	writeWav(t, refPath, tone)

	report, err := svc.Capture(context.Background(), refPath)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if d := report.LagSamples - 1600; d < -2 || d > 2 {
		t.Errorf("lag = %d, want 1600 ± 2", report.LagSamples)
	}
	if report.Score != 4.2 || report.Rating != models.RatingExcellent {
		t.Errorf("score = %.3f (%s), want 4.200 (Excellent)", report.Score, report.Rating)
	}
	if report.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", report.Sequence)
	}
	wantStates := []string{"IDLE", "LISTENING", "RECORDING", "ALIGNING", "SCORING", "DONE"}
	if !slices.Equal(report.States, wantStates) {
		t.Errorf("states = %v, want %v", report.States, wantStates)
	}

	out := filepath.Join(dir, "out")
	wantDegraded := filepath.Join(out, "Degraded_1_PESQ_4.200.wav")
	wantAligned := filepath.Join(out, "Degraded_1_PESQ_4.200_aligned.wav")
	if report.DegradedPath != wantDegraded || report.AlignedPath != wantAligned {
		t.Errorf("paths = %q, %q", report.DegradedPath, report.AlignedPath)
	}
	for _, p := range []string{wantDegraded, wantAligned} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected artifact %s: %v", p, err)
		}
	}

	aligned, err := audio.ReadSignal(wantAligned)
	if err != nil {
		t.Fatalf("reading aligned artifact: %v", err)
	}
	if aligned.Len() != len(tone) {
		t.Errorf("aligned artifact has %d samples, want %d", aligned.Len(), len(tone))
	}

	run, err := svc.GetRun(report.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != models.RunDone || run.Score != 4.2 || run.DegradedPath != wantDegraded {
		t.Errorf("stored run = %+v", run)
	}
}

func TestCaptureNumbersRunsSequentially(t *testing.T) {
	tone := testTone(1)
	rec := &loudRecorder{captureLen: testRate, capture: tone}
	svc, dir := newTestService(t, WithRecorder(rec), WithOracle(&countingOracle{score: 3}), WithScoreCache(false))
	refPath := filepath.Join(dir, "ref.wav")
	writeWav(t, refPath, tone)

	for want := 1; want <= 3; want++ {
		report, err := svc.Capture(context.Background(), refPath)
		if err != nil {
			t.Fatalf("Capture #%d failed: %v", want, err)
		}
		if report.Sequence != want {
			t.Errorf("sequence = %d, want %d", report.Sequence, want)
		}
	}

	runs, err := svc.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("got %d runs, want 3", len(runs))
	}
}

func TestCaptureMissingReference(t *testing.T) {
	rec := &loudRecorder{captureLen: testRate}
	svc, dir := newTestService(t, WithRecorder(rec), WithOracle(&countingOracle{score: 3}))

	_, err := svc.Capture(context.Background(), filepath.Join(dir, "missing.wav"))
	if !models.IsKind(err, models.ConfigurationError) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}

	runs, _ := svc.ListRuns(0)
	if len(runs) != 0 {
		t.Errorf("a rejected reference should not be recorded, got %d runs", len(runs))
	}
}

func TestCaptureWithoutRecorder(t *testing.T) {
	svc, dir := newTestService(t, WithOracle(&countingOracle{score: 3}))
	refPath := filepath.Join(dir, "ref.wav")
	writeWav(t, refPath, testTone(1))

	_, err := svc.Capture(context.Background(), refPath)
	if !models.IsKind(err, models.ConfigurationError) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestCaptureCancelled(t *testing.T) {
	rec := &loudRecorder{captureLen: testRate}
	svc, dir := newTestService(t, WithRecorder(rec), WithOracle(&countingOracle{score: 3}))
	refPath := filepath.Join(dir, "ref.wav")
	writeWav(t, refPath, testTone(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.Capture(ctx, refPath)
	if !models.IsKind(err, models.TimeoutError) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if report == nil || report.Status != models.RunFailed {
		t.Fatalf("expected a failed report, got %+v", report)
	}
	if report.DegradedPath != "" {
		t.Errorf("nothing was captured but DegradedPath = %q", report.DegradedPath)
	}

	run, err := svc.GetRun(report.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.ErrorKind != "TimeoutError" {
		t.Errorf("error kind = %q, want TimeoutError", run.ErrorKind)
	}
}

func TestScoreFiles(t *testing.T) {
	tone := testTone(1)
	oracle := &countingOracle{score: 3.1}
	svc, dir := newTestService(t, WithOracle(oracle))

	refPath := filepath.Join(dir, "ref.wav")
	degPath := filepath.Join(dir, "deg.wav")
	writeWav(t, refPath, tone)
	writeWav(t, degPath, delayed(tone, 320))

	report, err := svc.ScoreFiles(context.Background(), refPath, degPath)
	if err != nil {
		t.Fatalf("ScoreFiles failed: %v", err)
	}
	if d := report.LagSamples - 320; d < -2 || d > 2 {
		t.Errorf("lag = %d, want 320 ± 2", report.LagSamples)
	}
	if report.DegradedPath != degPath {
		t.Errorf("degraded path = %q, want the input file", report.DegradedPath)
	}
	if want := filepath.Join(dir, "out", "Degraded_1_PESQ_3.100_aligned.wav"); report.AlignedPath != want {
		t.Errorf("aligned path = %q, want %q", report.AlignedPath, want)
	}
	if report.Rating != models.RatingFair {
		t.Errorf("rating = %s, want Fair", report.Rating)
	}
	wantStates := []string{"IDLE", "ALIGNING", "SCORING", "DONE"}
	if !slices.Equal(report.States, wantStates) {
		t.Errorf("states = %v, want %v", report.States, wantStates)
	}

	// Same inputs again: the score comes from the cache.
	again, err := svc.ScoreFiles(context.Background(), refPath, degPath)
	if err != nil {
		t.Fatalf("second ScoreFiles failed: %v", err)
	}
	if again.Score != 3.1 || again.Sequence != 2 {
		t.Errorf("second report = %+v", again)
	}
	if n := oracle.calls.Load(); n != 1 {
		t.Errorf("oracle called %d times, want 1", n)
	}
}

func TestScoreFilesOracleFailure(t *testing.T) {
	tone := testTone(1)
	oracle := &countingOracle{err: errors.New("pesq crashed")}
	svc, dir := newTestService(t, WithOracle(oracle))

	refPath := filepath.Join(dir, "ref.wav")
	writeWav(t, refPath, tone)

	report, err := svc.ScoreFiles(context.Background(), refPath, refPath)
	if !models.IsKind(err, models.ScoringError) {
		t.Fatalf("expected ScoringError, got %v", err)
	}
	if report.Status != models.RunFailed {
		t.Errorf("status = %s, want failed", report.Status)
	}

	// The aligned file written before scoring stays under its unscored name.
	if _, err := os.Stat(filepath.Join(dir, "out", "Degraded_1_aligned.wav")); err != nil {
		t.Errorf("aligned artifact missing: %v", err)
	}

	run, err := svc.GetRun(report.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != models.RunFailed || run.ErrorKind != "ScoringError" || run.ErrorMessage == "" {
		t.Errorf("stored run = %+v", run)
	}
}

func TestScoreFilesRateMismatch(t *testing.T) {
	svc, dir := newTestService(t, WithOracle(&countingOracle{score: 3}))

	refPath := filepath.Join(dir, "ref.wav")
	degPath := filepath.Join(dir, "deg16k.wav")
	writeWav(t, refPath, testTone(1))
	if err := audio.WriteSignal(degPath, models.NewSignal(testTone(1), 16000)); err != nil {
		t.Fatal(err)
	}

	_, err := svc.ScoreFiles(context.Background(), refPath, degPath)
	if !models.IsKind(err, models.ConfigurationError) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestDeleteRun(t *testing.T) {
	tone := testTone(1)
	svc, dir := newTestService(t, WithOracle(&countingOracle{score: 2}))
	refPath := filepath.Join(dir, "ref.wav")
	writeWav(t, refPath, tone)

	report, err := svc.ScoreFiles(context.Background(), refPath, refPath)
	if err != nil {
		t.Fatalf("ScoreFiles failed: %v", err)
	}
	if err := svc.DeleteRun(report.RunID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := svc.GetRun(report.RunID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	_, err := NewService(
		WithDBPath(filepath.Join(t.TempDir(), "x.sqlite3")),
		WithDuration(0),
		WithLogger(logger.Nop()),
	)
	if !models.IsKind(err, models.ConfigurationError) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

var _ quality.Oracle = (*countingOracle)(nil)

package quality

import (
	"context"
	"errors"
	"testing"

	"github.com/himanishpuri/AutoPESQ/pkg/logger"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

type recordingOracle struct {
	calls int
	rate  int
	mode  models.Mode
	ref   []int16
	deg   []int16
	score float64
	err   error
}

func (o *recordingOracle) Score(_ context.Context, rate int, ref, deg []int16, mode models.Mode) (float64, error) {
	o.calls++
	o.rate, o.mode, o.ref, o.deg = rate, mode, ref, deg
	return o.score, o.err
}

func TestScoreNarrowband(t *testing.T) {
	oracle := &recordingOracle{score: 4.2}
	s := NewScorer(8000, oracle)

	ref := models.NewSignalFromPCM([]int16{100, -200, 300}, 8000)
	deg := models.NewSignal([]float64{0.5, -0.5, 1.5}, 8000)

	got, err := s.Score(context.Background(), ref, deg)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if got.Value != 4.2 || got.Mode != models.Narrowband {
		t.Errorf("Expected 4.2 narrowband, got %v %v", got.Value, got.Mode)
	}
	if oracle.rate != 8000 || oracle.mode != models.Narrowband {
		t.Errorf("Oracle called with rate=%d mode=%v", oracle.rate, oracle.mode)
	}

	// Reference PCM is passed through untouched.
	for i, v := range []int16{100, -200, 300} {
		if oracle.ref[i] != v {
			t.Errorf("ref[%d]: expected %d, got %d", i, v, oracle.ref[i])
		}
	}
	// Degraded is rounded and clamped.
	for i, v := range []int16{16384, -16384, 32767} {
		if oracle.deg[i] != v {
			t.Errorf("deg[%d]: expected %d, got %d", i, v, oracle.deg[i])
		}
	}
}

func TestScoreWideband(t *testing.T) {
	oracle := &recordingOracle{score: 3.1}
	s := NewScorer(16000, oracle)

	sig := models.NewSignal([]float64{0.1, 0.2}, 16000)
	got, err := s.Score(context.Background(), sig, sig)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if got.Mode != models.Wideband || oracle.mode != models.Wideband {
		t.Errorf("Expected wideband, got %v (oracle %v)", got.Mode, oracle.mode)
	}
}

func TestScoreRateMismatch(t *testing.T) {
	oracle := &recordingOracle{score: 4}

	cases := []struct {
		name     string
		declared int
		refRate  int
		degRate  int
	}{
		{"signals disagree", 8000, 8000, 16000},
		{"declared rate disagrees", 16000, 8000, 8000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScorer(tc.declared, oracle)
			ref := models.NewSignal([]float64{0.1}, tc.refRate)
			deg := models.NewSignal([]float64{0.1}, tc.degRate)

			_, err := s.Score(context.Background(), ref, deg)
			if !models.IsKind(err, models.ConfigurationError) {
				t.Errorf("Expected ConfigurationError, got %v", err)
			}
		})
	}
	if oracle.calls != 0 {
		t.Errorf("Oracle should not be called on mismatch, got %d calls", oracle.calls)
	}
}

func TestScoreEmptySignal(t *testing.T) {
	oracle := &recordingOracle{score: 4}
	s := NewScorer(8000, oracle)

	empty := models.NewSignal(nil, 8000)
	full := models.NewSignal([]float64{0.1}, 8000)

	if _, err := s.Score(context.Background(), empty, full); !models.IsKind(err, models.ScoringError) {
		t.Errorf("Expected ScoringError for empty reference, got %v", err)
	}
	if _, err := s.Score(context.Background(), full, empty); !models.IsKind(err, models.ScoringError) {
		t.Errorf("Expected ScoringError for empty degraded, got %v", err)
	}
}

func TestScoreOracleFailure(t *testing.T) {
	boom := errors.New("no utterances detected")
	s := NewScorer(8000, &recordingOracle{err: boom})

	sig := models.NewSignal([]float64{0.1}, 8000)
	_, err := s.Score(context.Background(), sig, sig)
	if !models.IsKind(err, models.ScoringError) {
		t.Fatalf("Expected ScoringError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped oracle error, got %v", err)
	}
}

func TestScoreKeepsClassifiedOracleError(t *testing.T) {
	tests := []models.ErrorKind{models.ConfigurationError, models.ScoringError, models.TimeoutError}
	for _, kind := range tests {
		t.Run(kind.String(), func(t *testing.T) {
			s := NewScorer(8000, &recordingOracle{err: models.Errorf(kind, "pesq", "failed")})

			sig := models.NewSignal([]float64{0.1}, 8000)
			_, err := s.Score(context.Background(), sig, sig)
			if !models.IsKind(err, kind) {
				t.Errorf("Expected %s to pass through, got %v", kind, err)
			}
		})
	}
}

type memCache struct {
	data map[string]float64
	puts int
	err  error
}

func (m *memCache) GetScore(key string) (float64, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) PutScore(key string, _ models.Mode, score float64) error {
	if m.err != nil {
		return m.err
	}
	m.puts++
	m.data[key] = score
	return nil
}

func TestCachedOracle(t *testing.T) {
	inner := &recordingOracle{score: 3.7}
	cache := &memCache{data: map[string]float64{}}
	oracle := NewCachedOracle(inner, cache, logger.Nop())

	ref := []int16{1, 2, 3}
	deg := []int16{1, 2, 4}

	for i := 0; i < 3; i++ {
		got, err := oracle.Score(context.Background(), 8000, ref, deg, models.Narrowband)
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if got != 3.7 {
			t.Errorf("Expected 3.7, got %v", got)
		}
	}
	if inner.calls != 1 {
		t.Errorf("Expected one oracle call, got %d", inner.calls)
	}
	if cache.puts != 1 {
		t.Errorf("Expected one cache write, got %d", cache.puts)
	}

	// A different degraded buffer misses.
	if _, err := oracle.Score(context.Background(), 8000, ref, []int16{9}, models.Narrowband); err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("Expected a second oracle call, got %d", inner.calls)
	}
}

func TestCachedOracleSurvivesCacheFailure(t *testing.T) {
	inner := &recordingOracle{score: 2.9}
	cache := &memCache{data: map[string]float64{}, err: errors.New("disk full")}
	oracle := NewCachedOracle(inner, cache, nil)

	got, err := oracle.Score(context.Background(), 8000, []int16{1}, []int16{1}, models.Narrowband)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if got != 2.9 {
		t.Errorf("Expected 2.9, got %v", got)
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey(8000, models.Narrowband, []int16{1, 2}, []int16{3})
	if len(a) != 64 {
		t.Fatalf("Expected 64 hex chars, got %d", len(a))
	}
	if a != CacheKey(8000, models.Narrowband, []int16{1, 2}, []int16{3}) {
		t.Error("CacheKey is not deterministic")
	}

	variants := []string{
		CacheKey(16000, models.Narrowband, []int16{1, 2}, []int16{3}),
		CacheKey(8000, models.Wideband, []int16{1, 2}, []int16{3}),
		CacheKey(8000, models.Narrowband, []int16{1}, []int16{2, 3}),
		CacheKey(8000, models.Narrowband, []int16{1, 2}, []int16{4}),
	}
	for i, v := range variants {
		if v == a {
			t.Errorf("variant %d collides with base key", i)
		}
	}
}

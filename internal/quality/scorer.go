// Package quality turns an aligned capture into a PESQ score by quantizing it
// to 16-bit PCM and handing it to a scoring oracle.
package quality

import (
	"context"
	"errors"

	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// Oracle computes a perceptual quality score for a reference/degraded pair
// of 16-bit PCM buffers. Implementations must be deterministic.
type Oracle interface {
	Score(ctx context.Context, sampleRate int, reference, degraded []int16, mode models.Mode) (float64, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, sampleRate int, reference, degraded []int16, mode models.Mode) (float64, error)

func (f OracleFunc) Score(ctx context.Context, sampleRate int, reference, degraded []int16, mode models.Mode) (float64, error) {
	return f(ctx, sampleRate, reference, degraded, mode)
}

// Scorer scores signals at the sample rate declared when it was built.
type Scorer struct {
	SampleRate int
	Oracle     Oracle
}

func NewScorer(sampleRate int, oracle Oracle) *Scorer {
	return &Scorer{SampleRate: sampleRate, Oracle: oracle}
}

// Score resolves the mode from the sample rate, passes the reference's
// source PCM (or its quantization when it has none) and the quantized
// degraded samples to the oracle, and wraps the result with the mode.
func (s *Scorer) Score(ctx context.Context, reference, degraded models.Signal) (models.QualityScore, error) {
	const op = "score"

	if reference.SampleRate() != degraded.SampleRate() {
		return models.QualityScore{}, models.Errorf(models.ConfigurationError, op,
			"sample rate mismatch: reference=%dHz, degraded=%dHz", reference.SampleRate(), degraded.SampleRate())
	}
	if reference.SampleRate() != s.SampleRate {
		return models.QualityScore{}, models.Errorf(models.ConfigurationError, op,
			"sample rate mismatch: signals are %dHz, scorer configured for %dHz", reference.SampleRate(), s.SampleRate)
	}
	if s.Oracle == nil {
		return models.QualityScore{}, models.Errorf(models.ConfigurationError, op, "no scoring oracle configured")
	}
	if reference.IsEmpty() || degraded.IsEmpty() {
		return models.QualityScore{}, models.Errorf(models.ScoringError, op, "cannot score an empty signal")
	}

	mode := models.ModeForRate(s.SampleRate)
	value, err := s.Oracle.Score(ctx, s.SampleRate, reference.PCM16(), models.QuantizeSamples(degraded.Samples()), mode)
	if err != nil {
		// Oracles classify their own failures; the pesq binary reports an
		// overrun as ScoringError and a cancelled caller as TimeoutError.
		var classified *models.Error
		if errors.As(err, &classified) {
			return models.QualityScore{}, err
		}
		return models.QualityScore{}, models.Wrap(models.ScoringError, op, err)
	}

	return models.QualityScore{Value: value, Mode: mode}, nil
}

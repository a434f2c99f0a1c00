// Package align estimates the delay between a captured signal and its
// reference from the peak of their cross-correlation and resynchronises the
// capture to the reference.
package align

import (
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// Aligner is stateless; the zero value uses MethodAuto.
type Aligner struct {
	Method Method
}

// Align is Aligner{}.Align.
func Align(reference, captured models.Signal) (models.AlignmentResult, error) {
	return Aligner{}.Align(reference, captured)
}

// Align estimates the lag of captured relative to reference and returns the
// capture shifted onto the reference's timeline, truncated to the shorter of
// the two.
//
// A positive lag means the capture's onset arrived late: that many leading
// samples are dropped. A zero or negative lag prepends |lag| zeros.
func (a Aligner) Align(reference, captured models.Signal) (models.AlignmentResult, error) {
	const op = "align"

	if reference.SampleRate() != captured.SampleRate() {
		return models.AlignmentResult{}, models.Errorf(models.ConfigurationError, op,
			"sample rate mismatch: reference=%dHz, captured=%dHz", reference.SampleRate(), captured.SampleRate())
	}
	if reference.SampleRate() <= 0 {
		return models.AlignmentResult{}, models.Errorf(models.ConfigurationError, op,
			"invalid sample rate %d", reference.SampleRate())
	}
	if reference.IsEmpty() {
		return models.AlignmentResult{}, models.Errorf(models.AlignmentError, op, "reference signal is empty")
	}
	if captured.IsEmpty() {
		return models.AlignmentResult{}, models.Errorf(models.AlignmentError, op, "captured signal is empty")
	}

	lag := EstimateLag(reference.Samples(), captured.Samples(), a.Method)

	return models.AlignmentResult{
		LagSamples:    lag,
		OffsetSeconds: float64(lag) / float64(reference.SampleRate()),
		Aligned:       Resync(captured, lag, reference.Len()),
	}, nil
}

// EstimateLag returns the lag in samples of captured relative to reference.
// Both slices must be non-empty.
// Ties go to the most negative lag whichever method evaluates the
// correlation.
func EstimateLag(reference, captured []float64, method Method) int {
	method = resolve(method, len(captured), len(reference))
	z := Correlate(captured, reference, method)
	peak := PeakIndex(z)
	if method == MethodFFT {
		peak = refinePeak(captured, reference, z, peak)
	}
	return peak - (len(reference) - 1)
}

// Resync shifts captured by lag samples and truncates the result to at most
// maxLen samples. The sample rate is preserved.
func Resync(captured models.Signal, lag, maxLen int) models.Signal {
	src := captured.Samples()

	var shifted []float64
	if lag > 0 {
		if lag >= len(src) {
			shifted = nil
		} else {
			shifted = src[lag:]
		}
	} else {
		shifted = make([]float64, -lag+len(src))
		copy(shifted[-lag:], src)
	}

	if len(shifted) > maxLen {
		shifted = shifted[:maxLen]
	}
	return models.NewSignal(shifted, captured.SampleRate())
}

// Package spectrum computes short-time magnitude spectra of signals, the
// log-spectral distance between a reference and its aligned capture, and
// spectrogram images for eyeballing artifacts.
package spectrum

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/himanishpuri/AutoPESQ/pkg/models"
	"github.com/mjibson/go-dsp/fft"
)

// Tunables; 32 ms windows with 50% overlap at 8 kHz.
const (
	WindowSize = 256
	HopSize    = 128
)

// powerFloor keeps silent bins out of log(0).
const powerFloor = 1e-12

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// MagnitudeSpectrum converts a complex spectrum into a magnitude spectrum
// (positive frequencies only).
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// STFT computes the short-time FFT and returns a time-major magnitude
// spectrogram: spectrogram[frameIdx][freqBin].
func STFT(samples []float64, windowSize, hopSize int, window []float64) ([][]float64, error) {
	if len(window) != windowSize {
		return nil, errors.New("window length must equal windowSize")
	}
	if hopSize <= 0 {
		return nil, errors.New("hop size must be positive")
	}
	if len(samples) < windowSize {
		return nil, errors.New("input shorter than window size")
	}

	frames := (len(samples)-windowSize)/hopSize + 1
	spectrogram := make([][]float64, 0, frames)
	frame := make([]float64, windowSize)
	for start := 0; start+windowSize <= len(samples); start += hopSize {
		for i := 0; i < windowSize; i++ {
			frame[i] = samples[start+i] * window[i]
		}
		spectrogram = append(spectrogram, MagnitudeSpectrum(fft.FFTReal(frame)))
	}
	return spectrogram, nil
}

// Of is STFT with the package defaults and a Hamming window.
func Of(sig models.Signal) ([][]float64, error) {
	return STFT(sig.Samples(), WindowSize, HopSize, Hamming(WindowSize))
}

// LogSpectralDistance is the mean over frames of the RMS difference, in dB,
// between the power spectra of reference and degraded. Frames past the end
// of the shorter signal are ignored. Identical signals give 0.
func LogSpectralDistance(reference, degraded models.Signal) (float64, error) {
	if reference.SampleRate() != degraded.SampleRate() {
		return 0, models.Errorf(models.ConfigurationError, "spectrum",
			"sample rate mismatch: reference %dHz, degraded %dHz", reference.SampleRate(), degraded.SampleRate())
	}

	ref, err := Of(reference)
	if err != nil {
		return 0, err
	}
	deg, err := Of(degraded)
	if err != nil {
		return 0, err
	}

	n := min(len(ref), len(deg))
	var total float64
	for f := 0; f < n; f++ {
		var sum float64
		for k := range ref[f] {
			pr := ref[f][k]*ref[f][k] + powerFloor
			pd := deg[f][k]*deg[f][k] + powerFloor
			d := 10 * math.Log10(pr/pd)
			sum += d * d
		}
		total += math.Sqrt(sum / float64(len(ref[f])))
	}
	return total / float64(n), nil
}

package models

import "math"

const (
	pcmScale = 32767
	pcmMin   = math.MinInt16
	pcmMax   = math.MaxInt16
)

// Quantize maps a floating sample onto the signed 16-bit range as
// round(x*32767), clipped to [-32768, 32767]. Rounding is half away from
// zero; NaN maps to 0.
func Quantize(x float64) int16 {
	if math.IsNaN(x) {
		return 0
	}
	v := math.Round(x * pcmScale)
	if v > pcmMax {
		return pcmMax
	}
	if v < pcmMin {
		return pcmMin
	}
	return int16(v)
}

// QuantizeSamples applies Quantize to every sample.
func QuantizeSamples(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, x := range samples {
		out[i] = Quantize(x)
	}
	return out
}

// PCM16 returns the signal's source PCM when it has one, otherwise the
// quantized samples.
func (s Signal) PCM16() []int16 {
	if pcm, ok := s.PCM(); ok {
		return pcm
	}
	return QuantizeSamples(s.samples)
}

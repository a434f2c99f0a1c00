package models

import "fmt"

// Signal is an immutable mono sample sequence in [-1.0, 1.0] together with
// its sample rate. Accessors hand out copies so a Signal can be passed by
// value between pipeline stages without aliasing.
type Signal struct {
	samples    []float64
	sampleRate int
	pcm        []int16
}

// NewSignal copies samples into a new Signal.
func NewSignal(samples []float64, sampleRate int) Signal {
	s := make([]float64, len(samples))
	copy(s, samples)
	return Signal{samples: s, sampleRate: sampleRate}
}

// NewSignalFromPCM builds a Signal from 16-bit PCM. The PCM is retained
// unmodified so it can be handed to the scoring oracle exactly as loaded.
func NewSignalFromPCM(pcm []int16, sampleRate int) Signal {
	const scale = 1.0 / 32768.0

	raw := make([]int16, len(pcm))
	copy(raw, pcm)
	samples := make([]float64, len(pcm))
	for i, v := range pcm {
		samples[i] = float64(v) * scale
	}
	return Signal{samples: samples, sampleRate: sampleRate, pcm: raw}
}

// Samples returns a copy of the sample data.
func (s Signal) Samples() []float64 {
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}

// At returns sample i without copying the buffer.
func (s Signal) At(i int) float64 { return s.samples[i] }

func (s Signal) Len() int        { return len(s.samples) }
func (s Signal) SampleRate() int { return s.sampleRate }
func (s Signal) IsEmpty() bool   { return len(s.samples) == 0 }

// PCM returns a copy of the source PCM and whether the signal carries one.
func (s Signal) PCM() ([]int16, bool) {
	if s.pcm == nil {
		return nil, false
	}
	out := make([]int16, len(s.pcm))
	copy(out, s.pcm)
	return out, true
}

// Duration returns the signal length in seconds.
func (s Signal) Duration() float64 {
	if s.sampleRate <= 0 {
		return 0
	}
	return float64(len(s.samples)) / float64(s.sampleRate)
}

// Peak returns the maximum absolute sample value.
func (s Signal) Peak() float64 {
	var peak float64
	for _, v := range s.samples {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

func (s Signal) String() string {
	return fmt.Sprintf("Signal(%d samples @ %d Hz)", len(s.samples), s.sampleRate)
}

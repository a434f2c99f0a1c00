package models

import "fmt"

// Mode selects the PESQ scoring variant.
type Mode int

const (
	Narrowband Mode = iota // P.862, 8 kHz
	Wideband               // P.862.2, 16 kHz
)

// NarrowbandRate is the only sample rate scored in narrowband mode.
const NarrowbandRate = 8000

// ModeForRate resolves the scoring mode from a sample rate alone.
func ModeForRate(sampleRate int) Mode {
	if sampleRate == NarrowbandRate {
		return Narrowband
	}
	return Wideband
}

// Flag returns the oracle's mode argument ("nb" or "wb").
func (m Mode) Flag() string {
	if m == Narrowband {
		return "nb"
	}
	return "wb"
}

func (m Mode) String() string {
	switch m {
	case Narrowband:
		return "narrowband"
	case Wideband:
		return "wideband"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "nb", "wb", "narrowband" or "wideband".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "nb", "narrowband":
		return Narrowband, nil
	case "wb", "wideband":
		return Wideband, nil
	}
	return 0, fmt.Errorf("unknown scoring mode %q", s)
}

// AlignmentResult is the outcome of resynchronising a capture to a reference.
type AlignmentResult struct {
	LagSamples    int     // positive: capture trimmed from the front
	OffsetSeconds float64 // LagSamples / sample rate
	Aligned       Signal
}

// OffsetMs returns the offset in milliseconds.
func (a AlignmentResult) OffsetMs() float64 { return a.OffsetSeconds * 1000 }

// QualityScore is the oracle's verdict along with the mode it was run in.
type QualityScore struct {
	Value float64
	Mode  Mode
}

// Rating returns the verbal band for the score.
func (q QualityScore) Rating() Rating { return RatingFor(q.Value) }

// Rating is a coarse verbal band on the PESQ scale.
type Rating string

const (
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingFair      Rating = "Fair"
	RatingPoor      Rating = "Poor"
	RatingBad       Rating = "Bad"
)

// RatingFor maps a PESQ score (1.0 = bad, 4.5 = excellent) onto a Rating.
func RatingFor(score float64) Rating {
	switch {
	case score >= 4.0:
		return RatingExcellent
	case score >= 3.5:
		return RatingGood
	case score >= 3.0:
		return RatingFair
	case score >= 2.5:
		return RatingPoor
	default:
		return RatingBad
	}
}

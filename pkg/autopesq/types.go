package autopesq

import (
	"time"

	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// Report summarises one Capture or ScoreFiles call.
type Report struct {
	RunID            string           // History id ("" when the run could not be saved)
	Sequence         int              // Artifact number N
	ReferencePath    string           // Reference WAV
	DegradedPath     string           // Capture (or the scored input file)
	AlignedPath      string           // Aligned capture
	SampleRate       int              // Hz
	LagSamples       int              // Positive when the capture lagged the reference
	OffsetSeconds    float64          // LagSamples / SampleRate
	Score            float64          // PESQ MOS-LQO
	Mode             models.Mode      // Narrowband or wideband
	Rating           models.Rating    // Verbal band for Score
	SpectralDistance float64          // Log-spectral distance in dB, reference vs aligned
	TriggerPeak      float64          // Peak of the frame that started the capture
	Elapsed          time.Duration    // Wall time of the run
	States           []string         // Pipeline states visited, in order
	Status           models.RunStatus // Done or failed
}

// OffsetMs returns the alignment offset in milliseconds.
func (r *Report) OffsetMs() float64 { return r.OffsetSeconds * 1000 }

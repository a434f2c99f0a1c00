// Package trigger blocks until a capture source produces a frame whose peak
// amplitude exceeds a threshold.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// DefaultFrameDuration is the length of each polled frame.
const DefaultFrameDuration = 100 * time.Millisecond

// Recorder captures numSamples mono samples at sampleRate, blocking until
// the buffer is full.
type Recorder interface {
	Record(ctx context.Context, numSamples, sampleRate int) (models.Signal, error)
}

type Config struct {
	Threshold     float64
	SampleRate    int
	FrameDuration time.Duration // DefaultFrameDuration when zero
	MaxWait       time.Duration // zero waits until ctx is done
}

// FrameSamples returns the number of samples captured per poll.
func (c Config) FrameSamples() int {
	d := c.FrameDuration
	if d <= 0 {
		d = DefaultFrameDuration
	}
	n := int(math.Round(d.Seconds() * float64(c.SampleRate)))
	if n < 1 {
		n = 1
	}
	return n
}

// Event describes the frame that fired the trigger.
type Event struct {
	Peak    float64
	Frames  int
	Elapsed time.Duration
}

// ErrNoVoice is wrapped by the TimeoutError returned when MaxWait passes
// without a frame above threshold.
var ErrNoVoice = errors.New("no voice activity detected")

// WaitForVoice polls rec one frame at a time and returns on the first frame
// whose peak absolute amplitude is strictly greater than cfg.Threshold.
// A threshold of zero or below fires on the first frame.
//
// The wait ends with a TimeoutError when cfg.MaxWait elapses or ctx is
// cancelled; recorder failures are returned as they are.
func WaitForVoice(ctx context.Context, rec Recorder, cfg Config) (Event, error) {
	if cfg.SampleRate <= 0 {
		return Event{}, models.Errorf(models.ConfigurationError, "trigger", "invalid sample rate %d", cfg.SampleRate)
	}

	if cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxWait)
		defer cancel()
	}

	frameSamples := cfg.FrameSamples()
	start := time.Now()

	for frames := 1; ; frames++ {
		if err := ctx.Err(); err != nil {
			return Event{Frames: frames - 1, Elapsed: time.Since(start)}, waitError(err)
		}

		frame, err := rec.Record(ctx, frameSamples, cfg.SampleRate)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Event{Frames: frames - 1, Elapsed: time.Since(start)}, waitError(ctxErr)
			}
			return Event{}, fmt.Errorf("recording trigger frame: %w", err)
		}

		if peak := frame.Peak(); peak > cfg.Threshold || cfg.Threshold <= 0 {
			return Event{Peak: peak, Frames: frames, Elapsed: time.Since(start)}, nil
		}
	}
}

func waitError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.Wrap(models.TimeoutError, "trigger", fmt.Errorf("%w: %w", ErrNoVoice, err))
	}
	return models.Wrap(models.TimeoutError, "trigger", err)
}

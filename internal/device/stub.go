//go:build !portaudio

package device

import (
	"context"

	"github.com/himanishpuri/AutoPESQ/pkg/logger"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// Recorder is unavailable unless built with -tags portaudio; Open always
// fails.
type Recorder struct{}

func Open(string, *logger.Logger) (*Recorder, error) { return nil, ErrUnavailable }

func ListInputs() ([]Info, error) { return nil, ErrUnavailable }

func (*Recorder) Record(context.Context, int, int) (models.Signal, error) {
	return models.Signal{}, ErrUnavailable
}

func (*Recorder) Close() error { return nil }

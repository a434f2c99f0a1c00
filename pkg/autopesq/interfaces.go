package autopesq

import (
	"context"

	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

type Service interface {
	// Capture waits for voice on the configured recorder, records, aligns
	// the capture to the reference WAV and scores it.
	Capture(ctx context.Context, referencePath string) (*Report, error)
	// ScoreFiles aligns and scores an existing recording.
	ScoreFiles(ctx context.Context, referencePath, degradedPath string) (*Report, error)
	GetRun(id string) (*models.Run, error)
	ListRuns(limit int) ([]models.Run, error)
	DeleteRun(id string) error
	Close() error
}

type Storage interface {
	SaveRun(run models.Run) (string, error)
	GetRun(id string) (models.Run, error)
	ListRuns(limit int) ([]models.Run, error)
	DeleteRun(id string) error
	GetScore(key string) (float64, bool, error)
	PutScore(key string, mode models.Mode, score float64) error
	NextSequence(name string) (int, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

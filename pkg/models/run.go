package models

import "time"

// Run is a persisted record of one capture-or-score session.
type Run struct {
	ID            string
	Sequence      int
	ReferencePath string
	DegradedPath  string
	AlignedPath   string
	SampleRate    int
	LagSamples    int
	OffsetSeconds float64
	Score         float64
	Mode          Mode
	Status        RunStatus
	ErrorKind     string
	ErrorMessage  string
	CreatedAt     time.Time
}

// RunStatus is the terminal outcome of a run.
type RunStatus string

const (
	RunDone   RunStatus = "done"
	RunFailed RunStatus = "failed"
)

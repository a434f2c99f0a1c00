package main

import (
	"time"

	"github.com/himanishpuri/AutoPESQ/pkg/autopesq"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// ScoreResponse is the response for POST /api/score
type ScoreResponse struct {
	RunID         string   `json:"run_id"`
	Sequence      int      `json:"sequence"`
	Score         float64  `json:"score"`
	Mode          string   `json:"mode"`
	Rating        string   `json:"rating"`
	SampleRate    int      `json:"sample_rate"`
	LagSamples    int      `json:"lag_samples"`
	OffsetMs      float64  `json:"offset_ms"`
	SpectralDB    float64  `json:"spectral_distance_db"`
	AlignedPath   string   `json:"aligned_path"`
	States        []string `json:"states"`
	ElapsedMs     int64    `json:"elapsed_ms"`
	ReferenceName string   `json:"reference_name"`
	DegradedName  string   `json:"degraded_name"`
}

func newScoreResponse(r *autopesq.Report, refName, degName string) ScoreResponse {
	return ScoreResponse{
		RunID:         r.RunID,
		Sequence:      r.Sequence,
		Score:         r.Score,
		Mode:          r.Mode.Flag(),
		Rating:        string(r.Rating),
		SampleRate:    r.SampleRate,
		LagSamples:    r.LagSamples,
		OffsetMs:      r.OffsetMs(),
		SpectralDB:    r.SpectralDistance,
		AlignedPath:   r.AlignedPath,
		States:        r.States,
		ElapsedMs:     r.Elapsed.Milliseconds(),
		ReferenceName: refName,
		DegradedName:  degName,
	}
}

// RunDTO represents a run in API responses
type RunDTO struct {
	ID            string    `json:"id"`
	Sequence      int       `json:"sequence"`
	ReferencePath string    `json:"reference_path"`
	DegradedPath  string    `json:"degraded_path,omitempty"`
	AlignedPath   string    `json:"aligned_path,omitempty"`
	SampleRate    int       `json:"sample_rate"`
	LagSamples    int       `json:"lag_samples"`
	OffsetMs      float64   `json:"offset_ms"`
	Score         float64   `json:"score"`
	Mode          string    `json:"mode"`
	Status        string    `json:"status"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newRunDTO(run models.Run) RunDTO {
	return RunDTO{
		ID:            run.ID,
		Sequence:      run.Sequence,
		ReferencePath: run.ReferencePath,
		DegradedPath:  run.DegradedPath,
		AlignedPath:   run.AlignedPath,
		SampleRate:    run.SampleRate,
		LagSamples:    run.LagSamples,
		OffsetMs:      run.OffsetSeconds * 1000,
		Score:         run.Score,
		Mode:          run.Mode.Flag(),
		Status:        string(run.Status),
		ErrorKind:     run.ErrorKind,
		ErrorMessage:  run.ErrorMessage,
		CreatedAt:     run.CreatedAt,
	}
}

// ListRunsResponse is the response for GET /api/runs
type ListRunsResponse struct {
	Runs  []RunDTO `json:"runs"`
	Count int      `json:"count"`
}

// DeleteRunResponse is the response for DELETE /api/runs/{id}
type DeleteRunResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Code    int    `json:"code,omitempty"`
}

package autopesq

import (
	"context"
	"fmt"

	"github.com/himanishpuri/AutoPESQ/internal/align"
	"github.com/himanishpuri/AutoPESQ/internal/artifact"
	"github.com/himanishpuri/AutoPESQ/internal/audio"
	"github.com/himanishpuri/AutoPESQ/internal/observe"
	"github.com/himanishpuri/AutoPESQ/internal/pesq"
	"github.com/himanishpuri/AutoPESQ/internal/pipeline"
	"github.com/himanishpuri/AutoPESQ/internal/quality"
	"github.com/himanishpuri/AutoPESQ/internal/spectrum"
	"github.com/himanishpuri/AutoPESQ/pkg/logger"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// pesqService is the default implementation of the Service interface.
type pesqService struct {
	storage Storage
	log     Logger
	config  *Config
	oracle  quality.Oracle
	metrics *observe.Metrics
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	// Fail on a bad configuration before touching the database.
	if err := cfg.pipelineConfig().Validate(); err != nil {
		return nil, err
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	oracle := cfg.Oracle
	if oracle == nil {
		bin := pesq.New(cfg.PESQBinary)
		if cfg.PESQTimeout > 0 {
			bin.Timeout = cfg.PESQTimeout
		}
		oracle = bin
	}
	if cfg.CacheScores {
		cached := quality.NewCachedOracle(oracle, stor, cfg.Logger)
		cached.OnLookup = cfg.Metrics.RecordCacheLookup
		oracle = cached
	}

	return &pesqService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
		oracle:  oracle,
		metrics: cfg.Metrics,
	}, nil
}

func (s *pesqService) newPipeline(hooks pipeline.Hooks) (*pipeline.Pipeline, error) {
	return pipeline.New(s.config.pipelineConfig(), s.config.Recorder, s.oracle,
		pipeline.WithAligner(align.Aligner{Method: s.config.AlignMethod}),
		pipeline.WithHooks(hooks),
		pipeline.WithLogger(s.log),
		pipeline.WithObserver(s.metrics),
	)
}

func (s *pesqService) readInput(op, path string) (models.Signal, error) {
	sig, err := audio.ReadSignal(path)
	if err != nil {
		return models.Signal{}, models.Wrap(models.ConfigurationError, op, err)
	}
	if sig.IsEmpty() {
		return models.Signal{}, models.Errorf(models.ConfigurationError, op, "%s contains no samples", path)
	}
	return sig, nil
}

func (s *pesqService) reserve() (artifact.Set, error) {
	namer := artifact.NewNamer(s.config.OutputDir, artifact.StoreSequence{Store: s.storage})
	set, err := namer.Reserve()
	if err != nil {
		return artifact.Set{}, fmt.Errorf("reserving output name: %w", err)
	}
	return set, nil
}

// Capture records one degraded capture of the reference and scores it.
// Degraded_<N>.wav is written as soon as the recording ends, so it survives
// alignment or scoring failures.
func (s *pesqService) Capture(ctx context.Context, referencePath string) (*Report, error) {
	if s.config.Recorder == nil {
		return nil, models.Errorf(models.ConfigurationError, "capture", "no recorder configured")
	}
	reference, err := s.readInput("reference", referencePath)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Reference %s: %s", referencePath, reference)

	set, err := s.reserve()
	if err != nil {
		return nil, err
	}

	var distance float64
	p, err := s.newPipeline(pipeline.Hooks{
		OnTransition: s.logTransition,
		OnCaptured: func(captured models.Signal) error {
			return audio.WriteSignal(set.Degraded(), captured)
		},
		OnAligned: func(res models.AlignmentResult) error {
			distance = s.spectralDistance(reference, res.Aligned)
			return audio.WriteSignal(set.Aligned(), res.Aligned)
		},
	})
	if err != nil {
		return nil, err
	}

	res, runErr := p.Run(ctx, reference)
	degradedPath := set.Degraded()
	if res == nil || res.Captured.IsEmpty() {
		degradedPath = ""
	}
	report, err := s.complete(set, referencePath, degradedPath, res, runErr)
	if report != nil {
		report.SpectralDistance = distance
	}
	return report, err
}

// ScoreFiles aligns and scores a recording made elsewhere. Only the aligned
// artifact is written; DegradedPath in the report is the input file.
func (s *pesqService) ScoreFiles(ctx context.Context, referencePath, degradedPath string) (*Report, error) {
	reference, err := s.readInput("reference", referencePath)
	if err != nil {
		return nil, err
	}
	degraded, err := s.readInput("degraded", degradedPath)
	if err != nil {
		return nil, err
	}

	set, err := s.reserve()
	if err != nil {
		return nil, err
	}

	var distance float64
	p, err := s.newPipeline(pipeline.Hooks{
		OnTransition: s.logTransition,
		OnAligned: func(res models.AlignmentResult) error {
			distance = s.spectralDistance(reference, res.Aligned)
			return audio.WriteSignal(set.Aligned(), res.Aligned)
		},
	})
	if err != nil {
		return nil, err
	}

	res, runErr := p.ScoreRecording(ctx, reference, degraded)
	report, err := s.complete(set, referencePath, degradedPath, res, runErr)
	if report != nil {
		report.SpectralDistance = distance
	}
	return report, err
}

// spectralDistance is a diagnostic only; signals too short for one
// analysis frame yield 0.
func (s *pesqService) spectralDistance(reference, aligned models.Signal) float64 {
	d, err := spectrum.LogSpectralDistance(reference, aligned)
	if err != nil {
		s.log.Debugf("spectral distance skipped: %v", err)
		return 0
	}
	s.log.Debugf("log-spectral distance %.2f dB", d)
	return d
}

func (s *pesqService) logTransition(from, to pipeline.State) {
	s.log.Debugf("state %s -> %s", from, to)
}

// complete renames the artifacts on success, records the run and builds the
// report. The run error, if any, is returned unchanged.
func (s *pesqService) complete(set artifact.Set, referencePath, degradedPath string, res *pipeline.Result, runErr error) (*Report, error) {
	report := &Report{
		Sequence:      set.N,
		ReferencePath: referencePath,
		DegradedPath:  degradedPath,
		SampleRate:    s.config.SampleRate,
		Mode:          models.ModeForRate(s.config.SampleRate),
		Status:        models.RunDone,
	}
	if res != nil {
		fillReport(report, res)
	}

	if runErr == nil && res != nil && res.Score != nil {
		degraded, aligned, err := set.Finalize(res.Score.Value)
		if err != nil {
			runErr = err
		} else {
			if degraded != "" {
				report.DegradedPath = degraded
			}
			report.AlignedPath = aligned
		}
	}

	run := models.Run{
		Sequence:      report.Sequence,
		ReferencePath: report.ReferencePath,
		DegradedPath:  report.DegradedPath,
		AlignedPath:   report.AlignedPath,
		SampleRate:    report.SampleRate,
		LagSamples:    report.LagSamples,
		OffsetSeconds: report.OffsetSeconds,
		Score:         report.Score,
		Mode:          report.Mode,
		Status:        models.RunDone,
	}
	if runErr != nil {
		report.Status = models.RunFailed
		run.Status = models.RunFailed
		run.ErrorKind = kindName(runErr)
		run.ErrorMessage = runErr.Error()
	}

	id, err := s.storage.SaveRun(run)
	if err != nil {
		// Losing the history entry must not hide the run's own outcome.
		s.log.Errorf("failed to save run %d: %v", set.N, err)
		if runErr == nil {
			return report, fmt.Errorf("failed to save run: %w", err)
		}
		return report, runErr
	}
	report.RunID = id

	if runErr != nil {
		s.log.Warnf("Run %d failed: %v", set.N, runErr)
		return report, runErr
	}
	s.log.Infof("Run %d scored %.3f (%s)", set.N, report.Score, report.Rating)
	return report, nil
}

func fillReport(report *Report, res *pipeline.Result) {
	report.TriggerPeak = res.Trigger.Peak
	report.Elapsed = res.Elapsed
	for _, st := range res.History {
		report.States = append(report.States, st.String())
	}
	if res.Alignment != nil {
		report.LagSamples = res.Alignment.LagSamples
		report.OffsetSeconds = res.Alignment.OffsetSeconds
	}
	if res.Score != nil {
		report.Score = res.Score.Value
		report.Mode = res.Score.Mode
		report.Rating = res.Score.Rating()
	}
}

func kindName(err error) string {
	if kind := models.KindOf(err); kind != 0 {
		return kind.String()
	}
	return "Unclassified"
}

func (s *pesqService) GetRun(id string) (*models.Run, error) {
	run, err := s.storage.GetRun(id)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *pesqService) ListRuns(limit int) ([]models.Run, error) {
	return s.storage.ListRuns(limit)
}

func (s *pesqService) DeleteRun(id string) error {
	return s.storage.DeleteRun(id)
}

// Close releases the storage. The recorder belongs to the caller.
func (s *pesqService) Close() error {
	return s.storage.Close()
}

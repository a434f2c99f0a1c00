// Package pipeline drives one capture session end to end: wait for voice,
// record a fixed-length capture, align it to the reference and score it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/himanishpuri/AutoPESQ/internal/align"
	"github.com/himanishpuri/AutoPESQ/internal/quality"
	"github.com/himanishpuri/AutoPESQ/internal/trigger"
	"github.com/himanishpuri/AutoPESQ/pkg/logger"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/himanishpuri/AutoPESQ/internal/pipeline"

const (
	DefaultDuration   = 25 * time.Second
	DefaultThreshold  = 0.03
	DefaultSampleRate = models.NarrowbandRate
)

type Recorder = trigger.Recorder

type Aligner interface {
	Align(reference, captured models.Signal) (models.AlignmentResult, error)
}

type Scorer interface {
	Score(ctx context.Context, reference, degraded models.Signal) (models.QualityScore, error)
}

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Observer receives stage timings and run outcomes, typically for metrics.
type Observer interface {
	StageCompleted(ctx context.Context, stage State, elapsed time.Duration)
	RunCompleted(ctx context.Context, result *Result, err error)
}

// Hooks are called synchronously at stage boundaries. An error returned by
// a hook ends the run in Error with that error.
type Hooks struct {
	OnTransition func(from, to State)
	OnTrigger    func(ev trigger.Event)
	OnCaptured   func(captured models.Signal) error
	OnAligned    func(result models.AlignmentResult) error
	OnScored     func(score models.QualityScore) error
}

type Config struct {
	SampleRate    int
	Duration      time.Duration
	Threshold     float64
	FrameDuration time.Duration
	MaxWait       time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate:    DefaultSampleRate,
		Duration:      DefaultDuration,
		Threshold:     DefaultThreshold,
		FrameDuration: trigger.DefaultFrameDuration,
	}
}

// Validate checks the parts of cfg the pipeline cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %s", c.Duration))
	}
	if c.MaxWait < 0 {
		errs = append(errs, fmt.Errorf("max wait must not be negative, got %s", c.MaxWait))
	}
	if err := errors.Join(errs...); err != nil {
		return models.Wrap(models.ConfigurationError, "pipeline", err)
	}
	return nil
}

// CaptureSamples is the number of samples in one fixed-duration capture.
func (c Config) CaptureSamples() int {
	return int(math.Round(c.Duration.Seconds() * float64(c.SampleRate)))
}

// Result is everything a run produced. After a failure it still holds the
// outputs of the stages that completed.
type Result struct {
	Trigger   trigger.Event
	Captured  models.Signal
	Alignment *models.AlignmentResult
	Score     *models.QualityScore
	State     State
	History   []State
	Elapsed   time.Duration
}

type Pipeline struct {
	cfg      Config
	recorder Recorder
	aligner  Aligner
	scorer   Scorer
	hooks    Hooks
	log      Logger
	observer Observer
}

type Option func(*Pipeline)

func WithAligner(a Aligner) Option { return func(p *Pipeline) { p.aligner = a } }
func WithHooks(h Hooks) Option { return func(p *Pipeline) { p.hooks = h } }
func WithLogger(l Logger) Option { return func(p *Pipeline) { p.log = l } }
func WithObserver(o Observer) Option { return func(p *Pipeline) { p.observer = o } }

// New builds a pipeline. recorder may be nil when only ScoreRecording is
// used.
func New(cfg Config, recorder Recorder, oracle quality.Oracle, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, models.Errorf(models.ConfigurationError, "pipeline", "no scoring oracle configured")
	}

	p := &Pipeline{
		cfg:      cfg,
		recorder: recorder,
		aligner:  align.Aligner{Method: align.MethodAuto},
		scorer:   quality.NewScorer(cfg.SampleRate, oracle),
		log:      logger.GetLogger().With("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) Config() Config { return p.cfg }

// run tracks the state of a single invocation.
type run struct {
	p      *Pipeline
	ctx    context.Context
	span   trace.Span
	res    *Result
	start  time.Time
	marked time.Time
}

func (p *Pipeline) begin(ctx context.Context, name string) *run {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name,
		trace.WithAttributes(attribute.Int("sample_rate", p.cfg.SampleRate)))
	now := time.Now()
	return &run{
		p:      p,
		ctx:    ctx,
		span:   span,
		res:    &Result{State: Idle, History: []State{Idle}},
		start:  now,
		marked: now,
	}
}

func (r *run) enter(to State) {
	from := r.res.State
	if !CanTransition(from, to) {
		// Programming error; surface it loudly rather than corrupt history.
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", from, to))
	}

	now := time.Now()
	if from != Idle && r.p.observer != nil {
		r.p.observer.StageCompleted(r.ctx, from, now.Sub(r.marked))
	}
	r.marked = now

	r.res.State = to
	r.res.History = append(r.res.History, to)
	r.span.AddEvent(to.String())
	r.p.log.Debugf("%s -> %s", from, to)
	if r.p.hooks.OnTransition != nil {
		r.p.hooks.OnTransition(from, to)
	}
}

func (r *run) fail(err error) (*Result, error) {
	r.enter(Error)
	return r.finish(err)
}

func (r *run) finish(err error) (*Result, error) {
	defer r.span.End()
	r.res.Elapsed = time.Since(r.start)
	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
	} else if r.res.Score != nil {
		r.span.SetAttributes(attribute.Float64("pesq.score", r.res.Score.Value))
	}
	if r.p.observer != nil {
		r.p.observer.RunCompleted(r.ctx, r.res, err)
	}
	return r.res, err
}

// Run performs a full capture session against reference.
func (p *Pipeline) Run(ctx context.Context, reference models.Signal) (*Result, error) {
	r := p.begin(ctx, "pipeline.run")
	ctx = r.ctx

	if p.recorder == nil {
		return r.finish(models.Errorf(models.ConfigurationError, "pipeline", "no recorder configured"))
	}

	r.enter(Listening)
	p.log.Infof("Listening for voice activity (threshold %.3f)", p.cfg.Threshold)
	ev, err := trigger.WaitForVoice(ctx, p.recorder, trigger.Config{
		Threshold:     p.cfg.Threshold,
		SampleRate:    p.cfg.SampleRate,
		FrameDuration: p.cfg.FrameDuration,
		MaxWait:       p.cfg.MaxWait,
	})
	r.res.Trigger = ev
	if err != nil {
		return r.fail(err)
	}
	if p.hooks.OnTrigger != nil {
		p.hooks.OnTrigger(ev)
	}

	r.enter(Recording)
	p.log.Infof("Voice detected (peak %.3f), recording %s", ev.Peak, p.cfg.Duration)
	captured, err := p.recorder.Record(ctx, p.cfg.CaptureSamples(), p.cfg.SampleRate)
	if err != nil {
		if ctx.Err() != nil {
			return r.fail(models.Wrap(models.TimeoutError, "record", ctx.Err()))
		}
		return r.fail(fmt.Errorf("recording capture: %w", err))
	}
	r.res.Captured = captured
	if p.hooks.OnCaptured != nil {
		if err := p.hooks.OnCaptured(captured); err != nil {
			return r.fail(err)
		}
	}

	return p.alignAndScore(r, reference, captured)
}

// ScoreRecording aligns and scores an existing recording, skipping the
// listening and recording stages.
func (p *Pipeline) ScoreRecording(ctx context.Context, reference, degraded models.Signal) (*Result, error) {
	r := p.begin(ctx, "pipeline.score")
	r.res.Captured = degraded
	return p.alignAndScore(r, reference, degraded)
}

func (p *Pipeline) alignAndScore(r *run, reference, captured models.Signal) (*Result, error) {
	r.enter(Aligning)
	result, err := p.aligner.Align(reference, captured)
	if err != nil {
		return r.fail(err)
	}
	r.res.Alignment = &result
	p.log.Infof("Offset %d samples (%.3fs)", result.LagSamples, result.OffsetSeconds)
	if p.hooks.OnAligned != nil {
		if err := p.hooks.OnAligned(result); err != nil {
			return r.fail(err)
		}
	}

	r.enter(Scoring)
	score, err := p.scorer.Score(r.ctx, reference, result.Aligned)
	if err != nil {
		return r.fail(err)
	}
	r.res.Score = &score
	p.log.Infof("PESQ %s score %.3f (%s)", score.Mode, score.Value, score.Rating())
	if p.hooks.OnScored != nil {
		if err := p.hooks.OnScored(score); err != nil {
			return r.fail(err)
		}
	}

	r.enter(Done)
	return r.finish(nil)
}

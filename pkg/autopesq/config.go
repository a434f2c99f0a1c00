package autopesq

import (
	"time"

	"github.com/himanishpuri/AutoPESQ/internal/align"
	"github.com/himanishpuri/AutoPESQ/internal/config"
	"github.com/himanishpuri/AutoPESQ/internal/observe"
	"github.com/himanishpuri/AutoPESQ/internal/pipeline"
	"github.com/himanishpuri/AutoPESQ/internal/quality"
)

type Config struct {
	DBPath        string
	OutputDir     string
	SampleRate    int
	Duration      time.Duration
	Threshold     float64
	FrameDuration time.Duration
	MaxWait       time.Duration
	AlignMethod   align.Method
	PESQBinary    string
	PESQTimeout   time.Duration
	CacheScores   bool
	Oracle        quality.Oracle
	Recorder      pipeline.Recorder
	Logger        Logger
	Storage       Storage
	Metrics       *observe.Metrics
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithOutputDir sets where Degraded_<N> artifacts are written.
func WithOutputDir(dir string) Option {
	return func(c *Config) {
		c.OutputDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithDuration(d time.Duration) Option {
	return func(c *Config) {
		c.Duration = d
	}
}

func WithThreshold(threshold float64) Option {
	return func(c *Config) {
		c.Threshold = threshold
	}
}

func WithFrameDuration(d time.Duration) Option {
	return func(c *Config) {
		c.FrameDuration = d
	}
}

// WithMaxWait bounds how long Capture listens for voice. Zero waits until
// the context is cancelled.
func WithMaxWait(d time.Duration) Option {
	return func(c *Config) {
		c.MaxWait = d
	}
}

func WithAlignMethod(m align.Method) Option {
	return func(c *Config) {
		c.AlignMethod = m
	}
}

func WithPESQBinary(path string, timeout time.Duration) Option {
	return func(c *Config) {
		c.PESQBinary = path
		c.PESQTimeout = timeout
	}
}

func WithScoreCache(enabled bool) Option {
	return func(c *Config) {
		c.CacheScores = enabled
	}
}

// WithOracle replaces the PESQ binary with another scorer.
func WithOracle(oracle quality.Oracle) Option {
	return func(c *Config) {
		c.Oracle = oracle
	}
}

func WithRecorder(rec pipeline.Recorder) Option {
	return func(c *Config) {
		c.Recorder = rec
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithProfile applies every setting of a lab profile. Options given after it
// still win.
func WithProfile(p *config.Profile) Option {
	return func(c *Config) {
		pc := p.PipelineConfig()
		c.SampleRate = pc.SampleRate
		c.Duration = pc.Duration
		c.Threshold = pc.Threshold
		c.FrameDuration = pc.FrameDuration
		c.MaxWait = pc.MaxWait
		c.AlignMethod = p.AlignMethod()
		c.OutputDir = p.OutputDir
		c.DBPath = p.DBPath
		c.PESQBinary = p.PESQ.Binary
		c.PESQTimeout = p.PESQ.Timeout
		if p.CacheScores != nil {
			c.CacheScores = *p.CacheScores
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:        config.DefaultDBPath,
		OutputDir:     config.DefaultOutputDir,
		SampleRate:    pipeline.DefaultSampleRate,
		Duration:      pipeline.DefaultDuration,
		Threshold:     pipeline.DefaultThreshold,
		FrameDuration: 100 * time.Millisecond,
		AlignMethod:   align.MethodAuto,
		PESQBinary:    config.DefaultPESQBinary,
		CacheScores:   true,
	}
}

func (c *Config) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		SampleRate:    c.SampleRate,
		Duration:      c.Duration,
		Threshold:     c.Threshold,
		FrameDuration: c.FrameDuration,
		MaxWait:       c.MaxWait,
	}
}

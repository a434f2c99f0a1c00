// Package config loads lab profiles: YAML files that pin the capture and
// scoring settings of a test bench so runs stay comparable.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/himanishpuri/AutoPESQ/internal/align"
	"github.com/himanishpuri/AutoPESQ/internal/pipeline"
	"github.com/himanishpuri/AutoPESQ/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Profile is the top-level lab profile. Zero fields take their defaults.
type Profile struct {
	SampleRate    int           `yaml:"sample_rate"`
	Duration      time.Duration `yaml:"duration"`
	Threshold     *float64      `yaml:"threshold"`
	FrameDuration time.Duration `yaml:"frame_duration"`
	MaxWait       time.Duration `yaml:"max_wait"`
	Alignment     string        `yaml:"alignment"`
	OutputDir     string        `yaml:"output_dir"`
	DBPath        string        `yaml:"db_path"`
	LogLevel      string        `yaml:"log_level"`
	CacheScores   *bool         `yaml:"cache_scores"`

	PESQ   PESQConfig   `yaml:"pesq"`
	Device DeviceConfig `yaml:"device"`
	Server ServerConfig `yaml:"server"`
}

type PESQConfig struct {
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout"`
}

type DeviceConfig struct {
	// Input is a substring of the capture device name; empty means the
	// system default input.
	Input string `yaml:"input"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

const (
	DefaultOutputDir   = "captures"
	DefaultDBPath      = "autopesq.sqlite3"
	DefaultPESQBinary  = "pesq"
	DefaultPESQTimeout = time.Minute
	DefaultServerAddr  = ":8080"
	DefaultMaxUploadMB = 32
)

// Default returns a profile with every field set.
func Default() *Profile {
	threshold := pipeline.DefaultThreshold
	cache := true
	return &Profile{
		SampleRate:    pipeline.DefaultSampleRate,
		Duration:      pipeline.DefaultDuration,
		Threshold:     &threshold,
		FrameDuration: 100 * time.Millisecond,
		Alignment:     align.MethodAuto.String(),
		OutputDir:     DefaultOutputDir,
		DBPath:        DefaultDBPath,
		LogLevel:      "info",
		CacheScores:   &cache,
		PESQ:          PESQConfig{Binary: DefaultPESQBinary, Timeout: DefaultPESQTimeout},
		Server:        ServerConfig{Addr: DefaultServerAddr, MaxUploadMB: DefaultMaxUploadMB},
	}
}

func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	p, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return p, nil
}

// LoadFromReader decodes a profile, fills defaults and validates it. An
// empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Profile, error) {
	p := &Profile{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	p.fillDefaults()
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) fillDefaults() {
	d := Default()
	if p.SampleRate == 0 {
		p.SampleRate = d.SampleRate
	}
	if p.Duration == 0 {
		p.Duration = d.Duration
	}
	if p.Threshold == nil {
		p.Threshold = d.Threshold
	}
	if p.FrameDuration == 0 {
		p.FrameDuration = d.FrameDuration
	}
	if p.Alignment == "" {
		p.Alignment = d.Alignment
	}
	if p.OutputDir == "" {
		p.OutputDir = d.OutputDir
	}
	if p.DBPath == "" {
		p.DBPath = d.DBPath
	}
	if p.LogLevel == "" {
		p.LogLevel = d.LogLevel
	}
	if p.CacheScores == nil {
		p.CacheScores = d.CacheScores
	}
	if p.PESQ.Binary == "" {
		p.PESQ.Binary = d.PESQ.Binary
	}
	if p.PESQ.Timeout == 0 {
		p.PESQ.Timeout = d.PESQ.Timeout
	}
	if p.Server.Addr == "" {
		p.Server.Addr = d.Server.Addr
	}
	if p.Server.MaxUploadMB == 0 {
		p.Server.MaxUploadMB = d.Server.MaxUploadMB
	}
}

// Validate returns every problem found, joined.
func Validate(p *Profile) error {
	var errs []error

	if p.SampleRate != 8000 && p.SampleRate != 16000 {
		errs = append(errs, fmt.Errorf("sample_rate %d is invalid; valid values: 8000, 16000", p.SampleRate))
	}
	if p.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration %s must be positive", p.Duration))
	}
	if p.Threshold != nil && (*p.Threshold < 0 || *p.Threshold > 1) {
		errs = append(errs, fmt.Errorf("threshold %.3f is out of range [0, 1]", *p.Threshold))
	}
	if p.FrameDuration < 0 {
		errs = append(errs, fmt.Errorf("frame_duration %s must not be negative", p.FrameDuration))
	}
	if p.MaxWait < 0 {
		errs = append(errs, fmt.Errorf("max_wait %s must not be negative", p.MaxWait))
	}
	if _, ok := align.ParseMethod(p.Alignment); !ok {
		errs = append(errs, fmt.Errorf("alignment %q is invalid; valid values: auto, direct, fft", p.Alignment))
	}
	if _, ok := logger.ParseLevel(p.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", p.LogLevel))
	}
	if p.PESQ.Timeout < 0 {
		errs = append(errs, fmt.Errorf("pesq.timeout %s must not be negative", p.PESQ.Timeout))
	}
	if p.Server.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb %d must not be negative", p.Server.MaxUploadMB))
	}

	return errors.Join(errs...)
}

// PipelineConfig returns the capture settings of the profile.
func (p *Profile) PipelineConfig() pipeline.Config {
	cfg := pipeline.Config{
		SampleRate:    p.SampleRate,
		Duration:      p.Duration,
		Threshold:     pipeline.DefaultThreshold,
		FrameDuration: p.FrameDuration,
		MaxWait:       p.MaxWait,
	}
	if p.Threshold != nil {
		cfg.Threshold = *p.Threshold
	}
	return cfg
}

// AlignMethod returns the parsed alignment method, auto if invalid.
func (p *Profile) AlignMethod() align.Method {
	m, ok := align.ParseMethod(p.Alignment)
	if !ok {
		return align.MethodAuto
	}
	return m
}

// Level returns the parsed log level, INFO if invalid.
func (p *Profile) Level() logger.LogLevel {
	lvl, _ := logger.ParseLevel(p.LogLevel)
	return lvl
}

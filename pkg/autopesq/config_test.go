package autopesq

import (
	"testing"
	"time"

	"github.com/himanishpuri/AutoPESQ/internal/align"
	"github.com/himanishpuri/AutoPESQ/internal/config"
)

func TestWithProfile(t *testing.T) {
	threshold := 0.2
	cache := false
	p := config.Default()
	p.SampleRate = 16000
	p.Duration = 3 * time.Second
	p.Threshold = &threshold
	p.MaxWait = 10 * time.Second
	p.Alignment = "fft"
	p.OutputDir = "bench"
	p.DBPath = "bench.db"
	p.CacheScores = &cache
	p.PESQ = config.PESQConfig{Binary: "/opt/pesq", Timeout: 5 * time.Second}

	cfg := defaultConfig()
	WithProfile(p)(cfg)
	WithOutputDir("override")(cfg)

	if cfg.SampleRate != 16000 || cfg.Duration != 3*time.Second || cfg.Threshold != 0.2 {
		t.Errorf("pipeline settings = %d/%v/%v", cfg.SampleRate, cfg.Duration, cfg.Threshold)
	}
	if cfg.MaxWait != 10*time.Second || cfg.AlignMethod != align.MethodFFT {
		t.Errorf("max wait/align = %v/%v", cfg.MaxWait, cfg.AlignMethod)
	}
	if cfg.DBPath != "bench.db" || cfg.OutputDir != "override" {
		t.Errorf("paths = %q/%q", cfg.DBPath, cfg.OutputDir)
	}
	if cfg.PESQBinary != "/opt/pesq" || cfg.PESQTimeout != 5*time.Second || cfg.CacheScores {
		t.Errorf("pesq = %q/%v cache=%v", cfg.PESQBinary, cfg.PESQTimeout, cfg.CacheScores)
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := defaultConfig().pipelineConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

func newTestFlags(t *testing.T) (*flag.FlagSet, *commonFlags, *captureFlags) {
	t.Helper()
	for _, key := range []string{"AUTOPESQ_CONFIG", "AUTOPESQ_DB_PATH", "AUTOPESQ_OUT_DIR", "AUTOPESQ_PESQ_BIN"} {
		t.Setenv(key, "")
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var common commonFlags
	var capture captureFlags
	common.register(fs)
	capture.register(fs)
	return fs, &common, &capture
}

func TestParseArgsInterleaved(t *testing.T) {
	fs, common, capture := newTestFlags(t)

	positional, err := parseArgs(fs, []string{"-sample-rate", "16000", "ref.wav", "-duration", "3s", "deg.wav"})
	if err != nil {
		t.Fatalf("parseArgs failed: %v", err)
	}
	if !slices.Equal(positional, []string{"ref.wav", "deg.wav"}) {
		t.Errorf("positional = %v", positional)
	}
	if common.sampleRate != 16000 || capture.duration != 3*time.Second {
		t.Errorf("flags not parsed: rate=%d duration=%s", common.sampleRate, capture.duration)
	}
}

func TestParseArgsUnknownFlag(t *testing.T) {
	fs, _, _ := newTestFlags(t)
	if _, err := parseArgs(fs, []string{"ref.wav", "-bogus"}); err == nil {
		t.Error("expected an error for an unknown flag")
	}
}

func TestLoadProfileDefaults(t *testing.T) {
	fs, common, capture := newTestFlags(t)
	if _, err := parseArgs(fs, []string{"ref.wav"}); err != nil {
		t.Fatal(err)
	}

	p, err := loadProfile(fs, common, capture)
	if err != nil {
		t.Fatalf("loadProfile failed: %v", err)
	}
	if p.SampleRate != 8000 || p.Duration != 25*time.Second || *p.Threshold != 0.03 {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestLoadProfileFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab.yaml")
	doc := "sample_rate: 16000\nduration: 10s\nthreshold: 0.2\noutput_dir: bench\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	fs, common, capture := newTestFlags(t)
	_, err := parseArgs(fs, []string{"-config", path, "-threshold", "0", "-out", "elsewhere", "ref.wav"})
	if err != nil {
		t.Fatal(err)
	}

	p, err := loadProfile(fs, common, capture)
	if err != nil {
		t.Fatalf("loadProfile failed: %v", err)
	}
	if p.SampleRate != 16000 || p.Duration != 10*time.Second {
		t.Errorf("file settings lost: rate=%d duration=%s", p.SampleRate, p.Duration)
	}
	if *p.Threshold != 0 {
		t.Errorf("threshold = %v, want the explicit 0", *p.Threshold)
	}
	if p.OutputDir != "elsewhere" {
		t.Errorf("output dir = %q, want elsewhere", p.OutputDir)
	}
}

func TestLoadProfileEnvFallback(t *testing.T) {
	t.Setenv("AUTOPESQ_DB_PATH", "/tmp/env.sqlite3")
	t.Setenv("AUTOPESQ_CONFIG", "")

	// Flags read the environment when registered.
	fs := flag.NewFlagSet("env", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if _, err := parseArgs(fs, nil); err != nil {
		t.Fatal(err)
	}

	p, err := loadProfile(fs, &common, nil)
	if err != nil {
		t.Fatalf("loadProfile failed: %v", err)
	}
	if p.DBPath != "/tmp/env.sqlite3" {
		t.Errorf("db path = %q, want the env value", p.DBPath)
	}
}

func TestLoadProfileRejectsBadRate(t *testing.T) {
	fs, common, capture := newTestFlags(t)
	if _, err := parseArgs(fs, []string{"-sample-rate", "44100"}); err != nil {
		t.Fatal(err)
	}
	_, err := loadProfile(fs, common, capture)
	if !models.IsKind(err, models.ConfigurationError) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	fs, common, capture := newTestFlags(t)
	if _, err := parseArgs(fs, []string{"-config", filepath.Join(t.TempDir(), "nope.yaml")}); err != nil {
		t.Fatal(err)
	}
	_, err := loadProfile(fs, common, capture)
	if !models.IsKind(err, models.ConfigurationError) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.Errorf(models.ConfigurationError, "x", "bad"), 2},
		{models.Errorf(models.AlignmentError, "x", "bad"), 3},
		{models.Errorf(models.ScoringError, "x", "bad"), 4},
		{models.Errorf(models.TimeoutError, "x", "bad"), 5},
		{errors.New("plain"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

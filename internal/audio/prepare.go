package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/AutoPESQ/pkg/models"
	"github.com/himanishpuri/AutoPESQ/pkg/utils"
)

const (
	DefaultFFmpeg         = "ffmpeg"
	DefaultPrepareTimeout = 30 * time.Second
)

// PrepareConfig controls how a source recording is turned into a reference.
type PrepareConfig struct {
	SampleRate int           // 8000 (narrowband) or 16000 (wideband)
	FFmpeg     string        // binary; DefaultFFmpeg when empty
	Timeout    time.Duration // applied when ctx has no deadline
}

// PreparedName is the file name a reference gets: <base>_<rate>Hz.wav.
func PreparedName(inputPath string, sampleRate int) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return fmt.Sprintf("%s_%dHz.wav", base, sampleRate)
}

// ffmpegArgs resamples to mono 16-bit PCM, dropping any video or cover art.
func ffmpegArgs(inputPath, outputPath string, sampleRate int) []string {
	return []string{
		"-y",
		"-nostdin",
		"-v", "error",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outputPath,
	}
}

// PrepareReference converts any recording ffmpeg can decode into a PESQ
// reference in outputDir and returns its path. The result is written
// through a temporary file and read back to confirm it is a mono WAV at the
// requested rate.
func PrepareReference(ctx context.Context, inputPath, outputDir string, cfg PrepareConfig) (string, error) {
	const op = "prepare"

	if cfg.SampleRate != 8000 && cfg.SampleRate != 16000 {
		return "", models.Errorf(models.ConfigurationError, op, "PESQ references must be 8000 or 16000Hz, got %dHz", cfg.SampleRate)
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", models.Wrap(models.ConfigurationError, op, err)
	}
	bin := cfg.FFmpeg
	if bin == "" {
		bin = DefaultFFmpeg
	}
	if _, err := exec.LookPath(bin); err != nil {
		return "", models.Errorf(models.ConfigurationError, op, "ffmpeg not found: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultPrepareTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}
	outputPath := filepath.Join(outputDir, PreparedName(inputPath, cfg.SampleRate))
	if samePath(inputPath, outputPath) {
		return "", models.Errorf(models.ConfigurationError, op, "output would overwrite the input %s", inputPath)
	}
	tmpPath := outputPath + ".part"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, bin, ffmpegArgs(inputPath, tmpPath, cfg.SampleRate)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", models.Wrap(models.TimeoutError, op, ctx.Err())
		}
		return "", fmt.Errorf("ffmpeg on %s: %w (%s)", inputPath, err, strings.TrimSpace(string(out)))
	}

	wf, err := ReadFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("reading converted %s: %w", inputPath, err)
	}
	if wf.Format.SampleRate != cfg.SampleRate || wf.Format.Channels != 1 {
		return "", fmt.Errorf("ffmpeg produced %dHz/%dch, want %dHz mono", wf.Format.SampleRate, wf.Format.Channels, cfg.SampleRate)
	}
	if wf.Signal.IsEmpty() {
		return "", errors.New("converted reference has no samples")
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

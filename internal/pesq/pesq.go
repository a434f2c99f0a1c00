// Package pesq runs the ITU-T P.862 reference binary as a scoring oracle.
package pesq

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/AutoPESQ/internal/audio"
	"github.com/himanishpuri/AutoPESQ/pkg/logger"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

const (
	DefaultBinary  = "pesq"
	DefaultTimeout = 60 * time.Second
)

// ErrNoPrediction is returned when the binary exits cleanly but prints no
// score, which is how it reports inputs it refuses to process.
var ErrNoPrediction = errors.New("pesq: no prediction in output")

// Binary invokes an external P.862 implementation. The zero value looks up
// "pesq" on PATH.
type Binary struct {
	Path    string
	Timeout time.Duration
	Log     *logger.Logger
}

func New(path string) *Binary {
	return &Binary{Path: path, Timeout: DefaultTimeout, Log: logger.GetLogger().With("pesq")}
}

// Available reports whether the binary can be found.
func (b *Binary) Available() bool {
	_, err := exec.LookPath(b.path())
	return err == nil
}

func (b *Binary) path() string {
	if b.Path == "" {
		return DefaultBinary
	}
	return b.Path
}

// Score writes both buffers to a scratch directory as WAV files and runs
// the binary on them.
func (b *Binary) Score(ctx context.Context, sampleRate int, reference, degraded []int16, mode models.Mode) (float64, error) {
	const op = "pesq"

	if sampleRate != 8000 && sampleRate != 16000 {
		return 0, models.Errorf(models.ConfigurationError, op, "unsupported sample rate %dHz (want 8000 or 16000)", sampleRate)
	}
	if mode == models.Wideband && sampleRate != 16000 {
		return 0, models.Errorf(models.ConfigurationError, op, "wideband scoring requires 16000Hz, got %dHz", sampleRate)
	}

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "autopesq-*")
	if err != nil {
		return 0, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	refPath := filepath.Join(dir, "ref.wav")
	degPath := filepath.Join(dir, "deg.wav")
	if err := audio.WriteSignal(refPath, models.NewSignalFromPCM(reference, sampleRate)); err != nil {
		return 0, err
	}
	if err := audio.WriteSignal(degPath, models.NewSignalFromPCM(degraded, sampleRate)); err != nil {
		return 0, err
	}

	args := Args(sampleRate, mode, refPath, degPath)
	cmd := exec.CommandContext(runCtx, b.path(), args...)
	cmd.WaitDelay = time.Second
	// The reference binary appends to _pesq_results.txt in its working dir.
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	if b.Log != nil {
		b.Log.Debugf("%s %s finished in %s", b.path(), strings.Join(args, " "), time.Since(start).Round(time.Millisecond))
	}

	// A cancelled caller aborts the run; the binary overrunning its own
	// deadline is an oracle failure.
	if err := ctx.Err(); err != nil {
		return 0, models.Wrap(models.TimeoutError, op, err)
	}
	if err := runCtx.Err(); err != nil {
		return 0, models.Errorf(models.ScoringError, op, "%s did not finish within %s: %w", b.path(), timeout, err)
	}

	score, parseErr := ParseOutput(stdout.Bytes())
	if parseErr == nil {
		return score, nil
	}
	if runErr != nil {
		return 0, fmt.Errorf("%s: %w (%s)", b.path(), runErr, lastLine(stderr.String(), stdout.String()))
	}
	return 0, parseErr
}

// Args builds the command line for one comparison.
func Args(sampleRate int, mode models.Mode, refPath, degPath string) []string {
	args := []string{"+" + strconv.Itoa(sampleRate)}
	if mode == models.Wideband {
		args = append(args, "+wb")
	}
	return append(args, refPath, degPath)
}

// ParseOutput extracts MOS-LQO from the binary's stdout. Narrowband prints
// "P.862 Prediction (Raw MOS, MOS-LQO):  = 2.374   2.116" and wideband
// prints "P.862.2 Prediction (MOS-LQO):  = 2.017"; in both cases the score
// is the last number after the '='.
func ParseOutput(out []byte) (float64, error) {
	var found bool
	var score float64

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "Prediction") {
			continue
		}
		eq := strings.LastIndexByte(line, '=')
		if eq < 0 {
			continue
		}
		fields := strings.Fields(line[eq+1:])
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("pesq: parsing %q: %w", line, err)
		}
		score, found = v, true
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNoPrediction
	}
	return score, nil
}

func lastLine(outputs ...string) string {
	for _, s := range outputs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if i := strings.LastIndexByte(s, '\n'); i >= 0 {
			return strings.TrimSpace(s[i+1:])
		}
		return s
	}
	return "no output"
}

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/himanishpuri/AutoPESQ/internal/config"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// commonFlags are accepted by every subcommand. Empty or zero values leave
// the profile setting alone.
type commonFlags struct {
	configPath string
	dbPath     string
	outDir     string
	pesqBin    string
	sampleRate int
	alignment  string
	logLevel   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", os.Getenv("AUTOPESQ_CONFIG"), "Lab profile YAML (env: AUTOPESQ_CONFIG)")
	fs.StringVar(&c.dbPath, "db", os.Getenv("AUTOPESQ_DB_PATH"), "Path to the SQLite run history (env: AUTOPESQ_DB_PATH, default: "+config.DefaultDBPath+")")
	fs.StringVar(&c.outDir, "out", os.Getenv("AUTOPESQ_OUT_DIR"), "Directory for Degraded_<N> artifacts (env: AUTOPESQ_OUT_DIR, default: "+config.DefaultOutputDir+")")
	fs.StringVar(&c.pesqBin, "pesq", os.Getenv("AUTOPESQ_PESQ_BIN"), "PESQ binary (env: AUTOPESQ_PESQ_BIN, default: "+config.DefaultPESQBinary+")")
	fs.IntVar(&c.sampleRate, "sample-rate", 0, "Sample rate in Hz: 8000 (narrowband) or 16000 (wideband)")
	fs.StringVar(&c.alignment, "align", "", "Correlation method: auto, direct or fft")
	fs.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
}

// captureFlags are only meaningful when recording.
type captureFlags struct {
	duration  time.Duration
	threshold float64
	maxWait   time.Duration
	device    string
}

func (c *captureFlags) register(fs *flag.FlagSet) {
	fs.DurationVar(&c.duration, "duration", 0, "Capture length (default: 25s)")
	fs.Float64Var(&c.threshold, "threshold", 0, "Trigger threshold on the peak absolute amplitude (default: 0.03)")
	fs.DurationVar(&c.maxWait, "max-wait", 0, "Give up listening for voice after this long (default: wait until interrupted)")
	fs.StringVar(&c.device, "device", "", "Capture device name or part of it (default: system default input)")
}

// parseArgs parses flags that may appear before, between or after the
// positional arguments and returns the positionals in order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

// loadProfile reads the -config file (or the defaults) and overlays the
// flags the user actually set.
func loadProfile(fs *flag.FlagSet, common *commonFlags, capture *captureFlags) (*config.Profile, error) {
	profile := config.Default()
	if common.configPath != "" {
		var err error
		profile, err = config.Load(common.configPath)
		if err != nil {
			return nil, models.Wrap(models.ConfigurationError, "config", err)
		}
	}

	if common.dbPath != "" {
		profile.DBPath = common.dbPath
	}
	if common.outDir != "" {
		profile.OutputDir = common.outDir
	}
	if common.pesqBin != "" {
		profile.PESQ.Binary = common.pesqBin
	}
	if common.logLevel != "" {
		profile.LogLevel = common.logLevel
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sample-rate":
			profile.SampleRate = common.sampleRate
		case "align":
			profile.Alignment = common.alignment
		}
		if capture == nil {
			return
		}
		switch f.Name {
		case "duration":
			profile.Duration = capture.duration
		case "threshold":
			t := capture.threshold
			profile.Threshold = &t
		case "max-wait":
			profile.MaxWait = capture.maxWait
		case "device":
			profile.Device.Input = capture.device
		}
	})

	if err := config.Validate(profile); err != nil {
		return nil, models.Wrap(models.ConfigurationError, "config", err)
	}
	return profile, nil
}

// exitCode maps an error onto the process exit status.
func exitCode(err error) int {
	switch models.KindOf(err) {
	case models.ConfigurationError:
		return 2
	case models.AlignmentError:
		return 3
	case models.ScoringError:
		return 4
	case models.TimeoutError:
		return 5
	default:
		return 1
	}
}

// fail prints a single diagnostic line and exits.
func fail(action string, err error) {
	msg := strings.ReplaceAll(err.Error(), "\n", "; ")
	fmt.Fprintf(os.Stderr, "❌ %s: %s\n", action, msg)
	os.Exit(exitCode(err))
}

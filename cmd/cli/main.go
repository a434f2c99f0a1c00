package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/himanishpuri/AutoPESQ/internal/audio"
	"github.com/himanishpuri/AutoPESQ/internal/config"
	"github.com/himanishpuri/AutoPESQ/internal/device"
	"github.com/himanishpuri/AutoPESQ/pkg/autopesq"
	"github.com/himanishpuri/AutoPESQ/pkg/logger"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// createService creates a new AutoPESQ service from a profile.
func createService(profile *config.Profile, opts ...autopesq.Option) (autopesq.Service, error) {
	logger.SetLevel(profile.Level())
	base := []autopesq.Option{autopesq.WithProfile(profile)}
	return autopesq.NewService(append(base, opts...)...)
}

func main() {
	log := logger.GetLogger()

	if len(os.Args) < 2 {
		printBanner()
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "run":
		handleRun(os.Args[2:])
	case "score":
		handleScore(os.Args[2:])
	case "prepare":
		handlePrepare(os.Args[2:])
	case "list":
		handleList(os.Args[2:])
	case "delete":
		handleDelete(os.Args[2:])
	case "devices":
		handleDevices()
	case "help", "-h", "--help":
		printBanner()
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
    _         _        ____  _____ ____   ___
   / \  _   _| |_ ___ |  _ \| ____/ ___| / _ \
  / _ \| | | | __/ _ \| |_) |  _| \___ \| | | |
 / ___ \ |_| | || (_) |  __/| |___ ___) | |_| |
/_/   \_\__,_|\__\___/|_|   |_____|____/ \__\_\

        Automated PESQ Voice Quality Testing
`
	fmt.Println(banner)
}

// interruptible returns a context cancelled on Ctrl-C or SIGTERM.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func handleRun(args []string) {
	log := logger.GetLogger()

	var common commonFlags
	var capture captureFlags
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	common.register(runCmd)
	capture.register(runCmd)

	positional, err := parseArgs(runCmd, args)
	if err != nil || len(positional) != 1 {
		fmt.Println("Usage: autopesq run <reference.wav> [-duration 25s] [-threshold 0.03] [-sample-rate 8000|16000]")
		os.Exit(2)
	}
	referencePath := positional[0]

	profile, err := loadProfile(runCmd, &common, &capture)
	if err != nil {
		fail("Invalid configuration", err)
	}

	rec, err := device.Open(profile.Device.Input, log.With("device"))
	if err != nil {
		fail("Failed to open capture device", models.Wrap(models.ConfigurationError, "device", err))
	}
	defer rec.Close()

	fmt.Println("\n🔧 Initializing service...")
	svc, err := createService(profile, autopesq.WithRecorder(rec))
	if err != nil {
		fail("Failed to create service", err)
	}
	defer svc.Close()

	ctx, cancel := interruptible()
	defer cancel()

	fmt.Printf("🎙️  Listening for voice (threshold %.3f)... play the reference through the device under test\n",
		*profile.Threshold)
	fmt.Printf("   Capture length %s at %d Hz\n", profile.Duration, profile.SampleRate)

	report, err := svc.Capture(ctx, referencePath)
	if err != nil {
		printPartial(report)
		rec.Close()
		svc.Close()
		fail("Run failed", err)
	}
	printReport(report)
}

func handleScore(args []string) {
	var common commonFlags
	scoreCmd := flag.NewFlagSet("score", flag.ExitOnError)
	common.register(scoreCmd)

	positional, err := parseArgs(scoreCmd, args)
	if err != nil || len(positional) != 2 {
		fmt.Println("Usage: autopesq score <reference.wav> <degraded.wav> [-sample-rate 8000|16000]")
		os.Exit(2)
	}

	profile, err := loadProfile(scoreCmd, &common, nil)
	if err != nil {
		fail("Invalid configuration", err)
	}

	svc, err := createService(profile)
	if err != nil {
		fail("Failed to create service", err)
	}
	defer svc.Close()

	ctx, cancel := interruptible()
	defer cancel()

	fmt.Println("🔍 Aligning and scoring...")
	report, err := svc.ScoreFiles(ctx, positional[0], positional[1])
	if err != nil {
		printPartial(report)
		svc.Close()
		fail("Scoring failed", err)
	}
	printReport(report)
}

func handlePrepare(args []string) {
	log := logger.GetLogger()

	var common commonFlags
	prepareCmd := flag.NewFlagSet("prepare", flag.ExitOnError)
	common.register(prepareCmd)

	positional, err := parseArgs(prepareCmd, args)
	if err != nil || len(positional) != 1 {
		fmt.Println("Usage: autopesq prepare <input_audio> [-sample-rate 8000|16000] [-out <dir>]")
		os.Exit(2)
	}
	input := positional[0]

	profile, err := loadProfile(prepareCmd, &common, nil)
	if err != nil {
		fail("Invalid configuration", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	meta, err := audio.ReadMetadata(ctx, input)
	if err != nil {
		fail("Failed to probe input", err)
	}
	fmt.Printf("\n📄 %s\n", meta.Filename)
	fmt.Printf("   Format:   %s (%s)\n", meta.Format, meta.Codec)
	fmt.Printf("   Audio:    %d Hz, %d ch, %d bit\n", meta.SampleRate, meta.Channels, meta.BitDepth)
	fmt.Printf("   Duration: %.2fs\n", meta.DurationSec)

	if !meta.NeedsConversion(profile.SampleRate) {
		fmt.Println("\n✅ Already mono 16-bit PCM at the requested rate; nothing to do")
		return
	}

	fmt.Printf("\n🔄 Converting to mono 16-bit PCM at %d Hz...\n", profile.SampleRate)
	out, err := audio.PrepareReference(ctx, input, profile.OutputDir, audio.PrepareConfig{
		SampleRate: profile.SampleRate,
	})
	if err != nil {
		fail("Conversion failed", err)
	}

	size := ""
	if st, err := os.Stat(out); err == nil {
		size = " (" + humanize.Bytes(uint64(st.Size())) + ")"
	}
	fmt.Printf("✅ Wrote %s%s\n", out, size)
	log.Infof("Prepared reference %s -> %s", input, out)
}

func handleList(args []string) {
	var common commonFlags
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	common.register(listCmd)
	limit := listCmd.Int("limit", 20, "Maximum number of runs to show (0 for all)")
	if _, err := parseArgs(listCmd, args); err != nil {
		os.Exit(2)
	}

	profile, err := loadProfile(listCmd, &common, nil)
	if err != nil {
		fail("Invalid configuration", err)
	}

	svc, err := createService(profile)
	if err != nil {
		fail("Failed to create service", err)
	}
	defer svc.Close()

	runs, err := svc.ListRuns(*limit)
	if err != nil {
		svc.Close()
		fail("Failed to list runs", err)
	}

	if len(runs) == 0 {
		fmt.Println("\n📭 No runs recorded yet")
		return
	}

	fmt.Printf("\n📚 %d run(s), newest first:\n\n", len(runs))
	for _, run := range runs {
		fmt.Printf("#%d  %s  %s\n", run.Sequence, run.ID, humanize.Time(run.CreatedAt))
		if run.Status == models.RunFailed {
			fmt.Printf("   ❌ %s: %s\n", run.ErrorKind, run.ErrorMessage)
		} else {
			fmt.Printf("   PESQ %s %.3f (%s) | offset %s samples (%.1f ms)\n",
				run.Mode, run.Score, models.RatingFor(run.Score),
				humanize.Comma(int64(run.LagSamples)), run.OffsetSeconds*1000)
		}
		fmt.Printf("   Reference: %s\n", run.ReferencePath)
		if run.DegradedPath != "" {
			fmt.Printf("   Degraded:  %s\n", run.DegradedPath)
		}
		fmt.Println()
	}
}

func handleDelete(args []string) {
	log := logger.GetLogger()

	var common commonFlags
	deleteCmd := flag.NewFlagSet("delete", flag.ExitOnError)
	common.register(deleteCmd)

	positional, err := parseArgs(deleteCmd, args)
	if err != nil || len(positional) != 1 {
		fmt.Println("Usage: autopesq delete <run_id>")
		os.Exit(2)
	}
	id := positional[0]

	profile, err := loadProfile(deleteCmd, &common, nil)
	if err != nil {
		fail("Invalid configuration", err)
	}

	svc, err := createService(profile)
	if err != nil {
		fail("Failed to create service", err)
	}
	defer svc.Close()

	run, err := svc.GetRun(id)
	if err != nil {
		svc.Close()
		if errors.Is(err, autopesq.ErrNotFound) {
			fail("Run not found", err)
		}
		fail("Failed to look up run", err)
	}

	if err := svc.DeleteRun(id); err != nil {
		svc.Close()
		fail("Failed to delete run", err)
	}

	fmt.Printf("\n✅ Deleted run #%d (%s)\n", run.Sequence, run.ID)
	fmt.Println("   Artifacts on disk were left in place")
	log.Infof("Deleted run %s", run.ID)
}

func handleDevices() {
	devices, err := device.ListInputs()
	if err != nil {
		fail("Failed to list devices", err)
	}
	if len(devices) == 0 {
		fmt.Println("\n📭 No capture devices found")
		return
	}
	fmt.Printf("\n🎧 %d capture device(s):\n\n", len(devices))
	for _, d := range devices {
		fmt.Printf("  %s\n", d)
	}
}

func printReport(r *autopesq.Report) {
	fmt.Printf("\n✅ PESQ %s score: %.3f (%s)\n", r.Mode, r.Score, r.Rating)
	fmt.Printf("   Run:      #%d %s\n", r.Sequence, r.RunID)
	fmt.Printf("   Offset:   %s samples (%.1f ms)\n", humanize.Comma(int64(r.LagSamples)), r.OffsetMs())
	if r.DegradedPath != "" {
		fmt.Printf("   Degraded: %s\n", r.DegradedPath)
	}
	fmt.Printf("   Aligned:  %s\n", r.AlignedPath)
	if r.SpectralDistance > 0 {
		fmt.Printf("   LSD:      %.2f dB\n", r.SpectralDistance)
	}
	fmt.Printf("   States:   %s\n", strings.Join(r.States, " → "))
	fmt.Printf("   Took %s\n", r.Elapsed.Round(time.Millisecond))
}

// printPartial shows what a failed run left behind.
func printPartial(r *autopesq.Report) {
	if r == nil {
		return
	}
	if len(r.States) > 0 {
		fmt.Printf("   States:   %s\n", strings.Join(r.States, " → "))
	}
	if r.DegradedPath != "" {
		fmt.Printf("   Degraded: %s\n", r.DegradedPath)
	}
}

func printUsage() {
	fmt.Println("AutoPESQ - automated PESQ voice quality testing")
	fmt.Println("\nOptions (every command):")
	fmt.Println("  -config <file>       Lab profile YAML (env: AUTOPESQ_CONFIG)")
	fmt.Println("  -db <path>           SQLite run history (env: AUTOPESQ_DB_PATH, default: autopesq.sqlite3)")
	fmt.Println("  -out <dir>           Artifact directory (env: AUTOPESQ_OUT_DIR, default: captures)")
	fmt.Println("  -pesq <path>         PESQ binary (env: AUTOPESQ_PESQ_BIN, default: pesq)")
	fmt.Println("  -sample-rate <hz>    8000 (narrowband, default) or 16000 (wideband)")
	fmt.Println("  -align <method>      auto, direct or fft")
	fmt.Println("  -log-level <level>   debug, info, warn or error")
	fmt.Println("\nCapture options (run):")
	fmt.Println("  -duration <d>        Capture length (default: 25s)")
	fmt.Println("  -threshold <x>       Trigger threshold on peak amplitude (default: 0.03)")
	fmt.Println("  -max-wait <d>        Stop listening after this long (default: until interrupted)")
	fmt.Println("  -device <name>       Capture device (default: system default input)")
	fmt.Println("\nUsage:")
	fmt.Println("  autopesq run <reference.wav> [options]")
	fmt.Println("  autopesq score <reference.wav> <degraded.wav> [options]")
	fmt.Println("  autopesq prepare <input_audio> [options]")
	fmt.Println("  autopesq list [-limit N]")
	fmt.Println("  autopesq delete <run_id>")
	fmt.Println("  autopesq devices")
	fmt.Println("\nExamples:")
	fmt.Println("  # Capture 10s of wideband audio and score it")
	fmt.Println("  autopesq run speech.wav -duration 10s -sample-rate 16000")
	fmt.Println()
	fmt.Println("  # Score a recording made elsewhere")
	fmt.Println("  autopesq score speech.wav recorded.wav")
	fmt.Println()
	fmt.Println("  # Turn an mp3 into an 8 kHz mono reference")
	fmt.Println("  autopesq prepare speech.mp3 -out refs")
}

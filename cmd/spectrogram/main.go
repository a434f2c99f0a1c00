// Command spectrogram renders PNG spectrograms for a WAV file or every WAV
// under a directory. With -ref it also prints each file's log-spectral
// distance from the reference.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/himanishpuri/AutoPESQ/internal/audio"
	"github.com/himanishpuri/AutoPESQ/internal/spectrum"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

func main() {
	in := flag.String("in", "captures", "WAV file or directory to render")
	out := flag.String("out", "spectrograms", "Output directory for PNGs")
	ref := flag.String("ref", "", "Reference WAV for log-spectral distance (optional)")
	width := flag.Int("width", 2048, "Image width in pixels")
	height := flag.Int("height", 512, "Image height in pixels (frequency bins)")
	flag.Parse()

	if err := os.MkdirAll(*out, 0755); err != nil {
		log.Fatal(err)
	}

	var reference models.Signal
	if *ref != "" {
		var err error
		if reference, err = audio.ReadSignal(*ref); err != nil {
			log.Fatalf("Error reading reference %s: %v", *ref, err)
		}
	}

	cfg := spectrum.ImageConfig{Width: *width, Height: *height}
	rendered := 0
	err := filepath.WalkDir(*in, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}

		fmt.Printf("Processing %s...\n", path)
		sig, err := audio.ReadSignal(path)
		if err != nil {
			log.Printf("Error reading %s: %v", path, err)
			return nil
		}
		fmt.Printf("Read %d samples at %d Hz\n", sig.Len(), sig.SampleRate())

		outputPath := filepath.Join(*out, filepath.Base(path)+".png")
		if err := spectrum.Render(sig, outputPath, cfg); err != nil {
			log.Printf("Error saving PNG for %s: %v", outputPath, err)
			return nil
		}
		fmt.Printf("Saved spectrogram to %s\n", outputPath)
		rendered++

		if !reference.IsEmpty() {
			d, err := spectrum.LogSpectralDistance(reference, sig)
			if err != nil {
				log.Printf("Skipping distance for %s: %v", path, err)
				return nil
			}
			fmt.Printf("Log-spectral distance: %.2f dB\n", d)
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Done! %d spectrogram(s)\n", rendered)
}

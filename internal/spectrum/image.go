package spectrum

import (
	"errors"
	"image"
	"image/draw"

	"github.com/eligwz/spectrogram"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// ImageConfig sizes a rendered spectrogram. Height is also the number of
// frequency bins.
type ImageConfig struct {
	Width  int
	Height int
}

func DefaultImageConfig() ImageConfig {
	return ImageConfig{Width: 2048, Height: 512}
}

// Render draws sig as a magnitude spectrogram and saves it as a PNG.
func Render(sig models.Signal, path string, cfg ImageConfig) error {
	if sig.IsEmpty() {
		return errors.New("cannot render an empty signal")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg = DefaultImageConfig()
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, cfg.Width, cfg.Height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, linear magnitude. The LOG10 option washes out
	// narrowband speech.
	spectrogram.Drawfft(
		img,
		sig.Samples(),
		uint32(sig.SampleRate()),
		uint32(cfg.Height),
		false, // RECTANGLE
		false, // DFT
		true,  // MAG
		false, // LOG10
	)

	return spectrogram.SavePng(img, path)
}

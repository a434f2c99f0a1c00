package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag in the fmt chunk.
const wavFormatPCM = 1

var (
	ErrInvalidWAV     = errors.New("not a valid WAV/RIFF file")
	ErrUnsupportedWAV = errors.New("unsupported WAV encoding")
	ErrEmptyWAV       = errors.New("WAV file contains no samples")
)

// Format describes the on-disk encoding of a WAV file.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// WavFile is a decoded WAV file reduced to a mono Signal.
type WavFile struct {
	Path   string
	Format Format
	Signal models.Signal
}

// Downmixed reports whether the file had to be averaged down to mono.
func (w *WavFile) Downmixed() bool { return w.Format.Channels > 1 }

// ReadFile decodes an integer PCM WAV file. Mono 16-bit files keep their
// raw PCM on the returned Signal; multi-channel files are averaged to mono.
func ReadFile(path string) (*WavFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sig, format, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &WavFile{Path: path, Format: format, Signal: sig}, nil
}

// ReadSignal is ReadFile without the format details.
func ReadSignal(path string) (models.Signal, error) {
	wf, err := ReadFile(path)
	if err != nil {
		return models.Signal{}, err
	}
	return wf.Signal, nil
}

// Decode reads a WAV stream. It does not assume a canonical 44-byte header.
func Decode(r io.ReadSeeker) (models.Signal, Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return models.Signal{}, Format{}, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return models.Signal{}, Format{}, fmt.Errorf("reading PCM data: %w", err)
	}

	format := Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return models.Signal{}, format, fmt.Errorf("%w: format tag %d (only integer PCM)", ErrUnsupportedWAV, dec.WavAudioFormat)
	}
	switch format.BitDepth {
	case 8, 16, 24, 32:
	default:
		return models.Signal{}, format, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, format.BitDepth)
	}
	if format.Channels < 1 {
		return models.Signal{}, format, fmt.Errorf("%w: %d channels", ErrUnsupportedWAV, format.Channels)
	}
	if format.SampleRate <= 0 {
		return models.Signal{}, format, fmt.Errorf("%w: sample rate %d", ErrUnsupportedWAV, format.SampleRate)
	}
	if len(buf.Data) < format.Channels {
		return models.Signal{}, format, ErrEmptyWAV
	}

	if format.Channels == 1 && format.BitDepth == 16 {
		pcm := make([]int16, len(buf.Data))
		for i, v := range buf.Data {
			pcm[i] = int16(v)
		}
		return models.NewSignalFromPCM(pcm, format.SampleRate), format, nil
	}

	return models.NewSignal(toMonoFloat64(buf.Data, format), format.SampleRate), format, nil
}

// toMonoFloat64 normalises integer samples to [-1, 1] and averages
// interleaved channels.
func toMonoFloat64(data []int, format Format) []float64 {
	scale := 1.0 / float64(int64(1)<<(uint(format.BitDepth)-1))
	offset := 0.0
	if format.BitDepth == 8 {
		// 8-bit WAV is unsigned
		offset = 128
	}

	frames := len(data) / format.Channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < format.Channels; c++ {
			sum += (float64(data[i*format.Channels+c]) - offset) * scale
		}
		out[i] = sum / float64(format.Channels)
	}
	return out
}

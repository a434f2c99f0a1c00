package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
	"github.com/himanishpuri/AutoPESQ/pkg/utils"
)

const (
	outputBitDepth = 16
	outputChannels = 1
)

// WriteSignal writes sig as a mono 16-bit PCM WAV file. The file is written
// to a temporary sibling first and renamed into place, so a failed write
// never leaves a truncated artifact at path.
func WriteSignal(path string, sig models.Signal) error {
	if sig.SampleRate() <= 0 {
		return fmt.Errorf("writing %s: invalid sample rate %d", path, sig.SampleRate())
	}
	if err := utils.MakeDir(filepath.Dir(path)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := Encode(tmp, sig); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}

	return utils.MoveFile(tmpPath, path)
}

// Encode writes sig to w as mono 16-bit PCM WAV.
func Encode(w io.WriteSeeker, sig models.Signal) error {
	pcm := sig.PCM16()
	data := make([]int, len(pcm))
	for i, v := range pcm {
		data[i] = int(v)
	}

	enc := wav.NewEncoder(w, sig.SampleRate(), outputBitDepth, outputChannels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: outputChannels,
			SampleRate:  sig.SampleRate(),
		},
		Data:           data,
		SourceBitDepth: outputBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

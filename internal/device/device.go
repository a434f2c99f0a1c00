// Package device records from a sound card input through PortAudio.
package device

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultFramesPerBuffer is the PortAudio read size; 10 ms at 16 kHz.
const DefaultFramesPerBuffer = 160

var (
	ErrNoInput     = errors.New("no capture device available")
	ErrUnavailable = errors.New("audio capture not available in this build (rebuild with -tags portaudio)")
)

// Info describes a capture-capable device.
type Info struct {
	Index             int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

func (i Info) String() string {
	def := ""
	if i.IsDefault {
		def = " (default)"
	}
	return fmt.Sprintf("[%d] %s via %s, %d ch, %.0f Hz%s", i.Index, i.Name, i.HostAPI, i.MaxInputChannels, i.DefaultSampleRate, def)
}

// Pick chooses the device whose name contains want (case-insensitive), or
// the default input when want is empty. Devices without inputs are ignored.
func Pick(devices []Info, want string) (Info, error) {
	want = strings.ToLower(strings.TrimSpace(want))
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		if want == "" && d.IsDefault {
			return d, nil
		}
		if want != "" && strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}
	if want == "" {
		return Info{}, ErrNoInput
	}
	return Info{}, fmt.Errorf("%w matching %q", ErrNoInput, want)
}

// fill copies as much of src into dst[n:] as fits and returns the new count.
func fill(dst []float64, n int, src []float32) int {
	for _, v := range src {
		if n >= len(dst) {
			break
		}
		dst[n] = float64(v)
		n++
	}
	return n
}

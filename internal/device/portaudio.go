//go:build portaudio

package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/himanishpuri/AutoPESQ/pkg/logger"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// Recorder captures mono float samples from one input device. The stream is
// opened on the first Record and reopened only when the rate changes, so
// consecutive trigger polls and the capture that follows are contiguous.
type Recorder struct {
	mu     sync.Mutex
	input  string
	frames int
	log    *logger.Logger

	device *portaudio.DeviceInfo
	stream *portaudio.Stream
	rate   int
	buf    []float32
}

// Open initialises PortAudio and resolves the input device. Close must be
// called to release it.
func Open(input string, log *logger.Logger) (*Recorder, error) {
	if log == nil {
		log = logger.GetLogger().With("device")
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	dev, err := resolve(input)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	log.Infof("Using input device %q (%s)", dev.Name, dev.HostApi.Name)

	return &Recorder{input: input, frames: DefaultFramesPerBuffer, log: log, device: dev}, nil
}

func resolve(input string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	infos := describe(devs)
	picked, err := Pick(infos, input)
	if err != nil {
		return nil, err
	}
	return devs[picked.Index], nil
}

func describe(devs []*portaudio.DeviceInfo) []Info {
	def, _ := portaudio.DefaultInputDevice()
	out := make([]Info, 0, len(devs))
	for i, d := range devs {
		host := ""
		if d.HostApi != nil {
			host = d.HostApi.Name
		}
		out = append(out, Info{
			Index:             i,
			Name:              d.Name,
			HostAPI:           host,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefault:         def != nil && d.Name == def.Name && d.HostApi == def.HostApi,
		})
	}
	return out
}

// ListInputs returns every device with at least one input channel.
func ListInputs() ([]Info, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	var inputs []Info
	for _, d := range describe(devs) {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return inputs, nil
}

func (r *Recorder) open(rate int) error {
	if r.stream != nil && r.rate == rate {
		return nil
	}
	r.closeStream()

	r.buf = make([]float32, r.frames)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   r.device,
			Channels: 1,
			Latency:  r.device.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: r.frames,
	}
	stream, err := portaudio.OpenStream(params, r.buf)
	if err != nil {
		return models.Errorf(models.ConfigurationError, "device", "opening %q at %dHz: %w", r.device.Name, rate, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("starting stream: %w", err)
	}
	r.stream, r.rate = stream, rate
	return nil
}

// Record blocks until n samples have been read or ctx is done.
func (r *Recorder) Record(ctx context.Context, n, rate int) (models.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.open(rate); err != nil {
		return models.Signal{}, err
	}

	out := make([]float64, n)
	got := 0
	for got < n {
		if err := ctx.Err(); err != nil {
			return models.Signal{}, err
		}
		if err := r.stream.Read(); err != nil {
			if !errors.Is(err, portaudio.InputOverflowed) {
				return models.Signal{}, fmt.Errorf("reading stream: %w", err)
			}
			r.log.Warnf("input overflowed; samples were dropped")
		}
		got = fill(out, got, r.buf)
	}
	return models.NewSignal(out, rate), nil
}

func (r *Recorder) closeStream() {
	if r.stream == nil {
		return
	}
	if err := r.stream.Stop(); err != nil {
		r.log.Debugf("stopping stream: %v", err)
	}
	r.stream.Close()
	r.stream = nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeStream()
	return portaudio.Terminate()
}

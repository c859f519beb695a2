//go:build cgo

package capture

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// readRetryDelay paces the read loop after a failed device read so an
// unplugged device cannot spin it hot.
const readRetryDelay = 10 * time.Millisecond

// PortAudioOpener opens capture streams through the PortAudio library.
// Microphone sessions use the default input device unless a device name
// fragment is configured; loopback sessions require a monitor/loopback
// device exposed by the host (e.g. a PulseAudio ".monitor" source or a
// WASAPI loopback endpoint).
type PortAudioOpener struct {
	inputDevice    string
	loopbackDevice string
	blockFrames    int
	log            *slog.Logger

	initOnce sync.Once
	initErr  error
}

func NewPortAudioOpener(inputDevice, loopbackDevice string, blockFrames int, log *slog.Logger) *PortAudioOpener {
	if blockFrames <= 0 {
		blockFrames = 1024
	}
	return &PortAudioOpener{
		inputDevice:    inputDevice,
		loopbackDevice: loopbackDevice,
		blockFrames:    blockFrames,
		log:            log.With(slog.String("component", "capture")),
	}
}

func (o *PortAudioOpener) Open(kind Kind, deliver BlockFunc) (Stream, error) {
	o.initOnce.Do(func() {
		// Initialized once for the process lifetime; PortAudio termination
		// is left to process exit.
		o.initErr = portaudio.Initialize()
	})
	if o.initErr != nil {
		return nil, fmt.Errorf("%w: portaudio init: %v", ErrDeviceUnavailable, o.initErr)
	}

	dev, err := o.selectDevice(kind)
	if err != nil {
		return nil, err
	}

	channels := dev.MaxInputChannels
	if channels > 2 {
		channels = 2
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: device %q has no input channels", ErrDeviceUnavailable, dev.Name)
	}
	rate := int(dev.DefaultSampleRate)

	buf := make([]float32, o.blockFrames*channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: o.blockFrames,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream on %q: %v", ErrDeviceUnavailable, dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: start stream on %q: %v", ErrDeviceUnavailable, dev.Name, err)
	}

	s := &portAudioStream{
		stream:   stream,
		buf:      buf,
		rate:     rate,
		channels: channels,
		deliver:  deliver,
		log:      o.log.With(slog.String("device", dev.Name), slog.String("kind", string(kind))),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.readLoop()

	o.log.Info("capture stream opened",
		slog.String("kind", string(kind)),
		slog.String("device", dev.Name),
		slog.Int("rate", rate),
		slog.Int("channels", channels))
	return s, nil
}

func (o *PortAudioOpener) selectDevice(kind Kind) (*portaudio.DeviceInfo, error) {
	switch kind {
	case KindMicrophone:
		if o.inputDevice != "" {
			return o.findDevice(o.inputDevice)
		}
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input device: %v", ErrDeviceUnavailable, err)
		}
		return dev, nil
	case KindLoopback:
		name := o.loopbackDevice
		if name == "" {
			name = "monitor"
		}
		return o.findDevice(name)
	}
	return nil, fmt.Errorf("%w: unknown capture kind %q", ErrDeviceUnavailable, kind)
}

func (o *PortAudioOpener) findDevice(nameFragment string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate devices: %v", ErrDeviceUnavailable, err)
	}
	fragment := strings.ToLower(nameFragment)
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(strings.ToLower(dev.Name), fragment) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("%w: no input device matching %q", ErrDeviceUnavailable, nameFragment)
}

type portAudioStream struct {
	stream   *portaudio.Stream
	buf      []float32
	rate     int
	channels int
	deliver  BlockFunc
	log      *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (s *portAudioStream) NativeRate() int     { return s.rate }
func (s *portAudioStream) NativeChannels() int { return s.channels }

// readLoop is the capture goroutine: blocking reads from the device,
// delivered as copies so the shared read buffer is never retained.
func (s *portAudioStream) readLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if err := s.stream.Read(); err != nil {
			// Transient: one failed read never ends the stream.
			s.log.Warn("stream read failed", slog.String("error", err.Error()))
			select {
			case <-s.stop:
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}
		block := make([]float32, len(s.buf))
		copy(block, s.buf)
		s.deliver(block)
	}
}

func (s *portAudioStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := s.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

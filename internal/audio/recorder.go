package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// chunkQueue is the number of capture callbacks buffered between the device
// thread and Record.
const chunkQueue = 64

// Recorder captures audio from the default microphone. A Recorder runs one
// capture at a time.
type Recorder struct {
	mctx       *malgo.AllocatedContext
	sampleRate uint32
	channels   uint32

	mu      sync.Mutex
	device  *malgo.Device
	dropped atomic.Int64
}

// NewRecorder opens the platform audio context. Call Close when done.
func NewRecorder(sampleRate, channels uint32) (*Recorder, error) {
	if sampleRate == 0 || channels == 0 {
		return nil, fmt.Errorf("audio: invalid capture format %d Hz, %d channels", sampleRate, channels)
	}
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: initializing capture context: %w", err)
	}
	return &Recorder{
		mctx:       mctx,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// Record captures d of audio, or less when ctx is cancelled first, and
// returns it mixed down to mono.
func (r *Recorder) Record(ctx context.Context, d time.Duration) (Buffer, error) {
	if d <= 0 {
		return Buffer{}, fmt.Errorf("audio: invalid record duration %s", d)
	}
	ch := int(r.channels)
	want := int(d.Seconds()*float64(r.sampleRate)) * ch

	chunks := make(chan []float32, chunkQueue)
	if err := r.start(chunks); err != nil {
		return Buffer{}, err
	}

	timer := time.NewTimer(d)
	samples := collect(ctx, chunks, make([]float32, 0, want), want, timer.C)
	timer.Stop()
	r.stop()
	samples = drain(chunks, samples)

	if len(samples) > want {
		samples = samples[:want]
	}
	samples = samples[:len(samples)/ch*ch]
	return Buffer{
		Samples:    Downmix(samples, ch),
		SampleRate: int(r.sampleRate),
	}, nil
}

// Dropped returns the number of frames lost because Record fell behind the
// device.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops any running capture and releases the audio context.
func (r *Recorder) Close() error {
	r.stop()
	if r.mctx != nil {
		if err := r.mctx.Uninit(); err != nil {
			return fmt.Errorf("audio: uninitializing capture context: %w", err)
		}
		r.mctx.Free()
		r.mctx = nil
	}
	return nil
}

func (r *Recorder) start(chunks chan<- []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device != nil {
		return fmt.Errorf("audio: already recording")
	}
	if r.mctx == nil {
		return fmt.Errorf("audio: recorder is closed")
	}
	r.dropped.Store(0)

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = r.channels
	cfg.SampleRate = r.sampleRate

	device, err := malgo.InitDevice(r.mctx.Context, cfg, malgo.DeviceCallbacks{Data: r.deliver(chunks)})
	if err != nil {
		return fmt.Errorf("audio: initializing capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audio: starting capture device: %w", err)
	}
	r.device = device
	return nil
}

// stop uninitialises the device. No callbacks run after it returns.
func (r *Recorder) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
}

// deliver returns the malgo data callback. It never blocks the device
// thread: a chunk that does not fit in the queue is counted as dropped.
func (r *Recorder) deliver(chunks chan<- []float32) func(_, in []byte, frames uint32) {
	return func(_, in []byte, frames uint32) {
		select {
		case chunks <- bytesToFloat32(in, frames*r.channels):
		default:
			r.dropped.Add(int64(frames))
		}
	}
}

// collect appends chunks to samples until want samples arrived, the
// deadline fires or ctx is done.
func collect(ctx context.Context, chunks <-chan []float32, samples []float32, want int, deadline <-chan time.Time) []float32 {
	for len(samples) < want {
		select {
		case c := <-chunks:
			samples = append(samples, c...)
		case <-deadline:
			return samples
		case <-ctx.Done():
			return samples
		}
	}
	return samples
}

// drain appends whatever is still queued.
func drain(chunks <-chan []float32, samples []float32) []float32 {
	for {
		select {
		case c := <-chunks:
			samples = append(samples, c...)
		default:
			return samples
		}
	}
}

// bytesToFloat32 decodes little-endian float32 samples, ignoring a trailing
// partial sample.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	n := min(int(sampleCount), len(data)/4)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}

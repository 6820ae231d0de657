package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when a file is not a decodable integer PCM WAV.
var ErrInvalidWAV = errors.New("invalid wav file")

// WAV audio format codes from the fmt chunk.
const (
	FormatPCM   = 1
	FormatFloat = 3
)

// Info describes a WAV file header.
type Info struct {
	Format     int // FormatPCM, FormatFloat, or another fmt chunk code
	SampleRate int
	Channels   int
	BitDepth   int
}

// IsPCM reports whether the samples are integer PCM, the only encoding
// DecodeWAV reads.
func (i Info) IsPCM() bool {
	return i.Format == FormatPCM
}

// ReadWAVInfo reads only the header of a WAV file.
func ReadWAVInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return Info{}, fmt.Errorf("audio: read header %q: %w", path, err)
	}
	if !dec.IsValidFile() {
		return Info{}, fmt.Errorf("audio: %q: %w", path, ErrInvalidWAV)
	}
	return Info{
		Format:     int(dec.WavAudioFormat),
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}, nil
}

// ReadWAV loads a PCM WAV file as a mono buffer at the file's native rate.
func ReadWAV(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()

	buf, err := DecodeWAV(f)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: %q: %w", path, err)
	}
	return buf, nil
}

// DecodeWAV decodes integer PCM WAV data, mixing all channels down to mono
// and normalising samples to [-1, 1]. Float and compressed encodings are
// rejected with ErrInvalidWAV.
func DecodeWAV(r io.ReadSeeker) (Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Buffer{}, ErrInvalidWAV
	}
	if dec.WavAudioFormat != FormatPCM {
		return Buffer{}, fmt.Errorf("unsupported audio format %d: %w", dec.WavAudioFormat, ErrInvalidWAV)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("decode pcm: %w", err)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = pcm.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return Buffer{}, fmt.Errorf("unsupported bit depth %d: %w", bitDepth, ErrInvalidWAV)
	}

	scale := float32(math.Exp2(float64(bitDepth - 1)))
	interleaved := make([]float32, len(pcm.Data))
	for i, s := range pcm.Data {
		// 8-bit WAV is unsigned.
		if bitDepth == 8 {
			s -= 128
		}
		interleaved[i] = float32(s) / scale
	}

	channels := int(dec.NumChans)
	if pcm.Format != nil && pcm.Format.NumChannels > 0 {
		channels = pcm.Format.NumChannels
	}

	return Buffer{
		Samples:    Downmix(interleaved, channels),
		SampleRate: int(dec.SampleRate),
	}, nil
}

// WriteWAV writes buf as a mono integer PCM WAV file. Samples outside
// [-1, 1] are clipped.
func WriteWAV(path string, buf Buffer, bitDepth int) error {
	if buf.SampleRate <= 0 {
		return fmt.Errorf("audio: write %q: invalid sample rate %d", path, buf.SampleRate)
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("audio: write %q: unsupported bit depth %d", path, bitDepth)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %q: %w", path, err)
	}

	if err := encodeWAV(f, buf, bitDepth); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("audio: write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audio: close %q: %w", path, err)
	}
	return nil
}

func encodeWAV(w io.WriteSeeker, buf Buffer, bitDepth int) error {
	enc := wav.NewEncoder(w, buf.SampleRate, bitDepth, 1, 1)

	maxVal := math.Exp2(float64(bitDepth-1)) - 1
	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(math.Round(v * maxVal))
	}

	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(pcm); err != nil {
		return fmt.Errorf("encode pcm: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// EncodeWAV returns buf as an in-memory mono PCM WAV file.
func EncodeWAV(buf Buffer, bitDepth int) ([]byte, error) {
	if buf.SampleRate <= 0 {
		return nil, fmt.Errorf("audio: encode: invalid sample rate %d", buf.SampleRate)
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("audio: encode: unsupported bit depth %d", bitDepth)
	}
	var ws memWriteSeeker
	if err := encodeWAV(&ws, buf, bitDepth); err != nil {
		return nil, fmt.Errorf("audio: encode: %w", err)
	}
	return ws.data, nil
}

// memWriteSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back
// to patch chunk sizes once the data is written.
type memWriteSeeker struct {
	data []byte
	pos  int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}
	n := copy(m.data[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.data)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek: negative position %d", abs)
	}
	m.pos = int(abs)
	return abs, nil
}

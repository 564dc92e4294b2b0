package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3
)

var ErrInvalidWAV = errors.New("audio: invalid wav data")

// EncodeWAV renders the audio as a mono 16-bit PCM WAV file held in memory.
func (a *Audio) EncodeWAV() ([]byte, error) {
	buf := &memFile{}
	if err := a.WriteWAV(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *Audio) WriteWAV(w io.WriteSeeker) error {
	maxValue := float32(math.MaxInt16)

	data := make([]int, len(a.Samples))
	for i, sample := range a.Samples {
		clamped := sample
		if clamped > 1.0 {
			clamped = 1.0
		} else if clamped < -1.0 {
			clamped = -1.0
		}
		data[i] = int(clamped * maxValue)
	}

	encoder := wav.NewEncoder(w, a.SampleRate, BitsPerSample, NumChannels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: a.SampleRate, NumChannels: NumChannels},
		SourceBitDepth: BitsPerSample,
	}

	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav header: %w", err)
	}

	return nil
}

// LoadWAV reads a voice reference recording from disk.
func LoadWAV(path string) (*Audio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav file: %w", err)
	}
	return DecodeWAV(bytes.NewReader(data))
}

// DecodeWAV reads PCM (8/16/24/32-bit) or 32-bit float WAV data and returns
// it downmixed to mono with samples scaled to [-1, 1].
func DecodeWAV(r io.ReadSeeker) (*Audio, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		if err := decoder.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return nil, ErrInvalidWAV
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read pcm data: %w", err)
	}

	convert, err := sampleConverter(decoder.WavAudioFormat, int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	channels := int(decoder.NumChans)
	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += convert(buf.Data[i*channels+c])
		}
		samples[i] = sum / float32(channels)
	}

	return NewAudioWithSampleRate(samples, int(decoder.SampleRate)), nil
}

func sampleConverter(format uint16, bitDepth int) (func(int) float32, error) {
	if format == wavFormatIEEEFloat {
		if bitDepth != 32 {
			return nil, fmt.Errorf("%w: unsupported float bit depth %d", ErrInvalidWAV, bitDepth)
		}
		return func(v int) float32 {
			return math.Float32frombits(uint32(int32(v)))
		}, nil
	}

	switch bitDepth {
	case 8:
		return func(v int) float32 {
			return float32(v-128) / 128
		}, nil
	case 16, 24, 32:
		scale := float32(int64(1) << (bitDepth - 1))
		return func(v int) float32 {
			return float32(v) / scale
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bitDepth)
	}
}

// memFile is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes once all samples are written.
type memFile struct {
	data []byte
	pos  int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.data) {
		if end > cap(m.data) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.data)
			m.data = grown
		} else {
			m.data = m.data[:end]
		}
	}
	copy(m.data[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(m.pos)
	case io.SeekEnd:
		base = int64(len(m.data))
	default:
		return 0, fmt.Errorf("memfile: invalid whence %d", whence)
	}

	next := base + offset
	if next < 0 {
		return 0, fmt.Errorf("memfile: negative position %d", next)
	}
	m.pos = int(next)
	return next, nil
}

func (m *memFile) Bytes() []byte {
	return m.data
}

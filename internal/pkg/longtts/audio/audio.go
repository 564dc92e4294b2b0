package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultSampleRate = 24000
	NumChannels       = 1
	BitsPerSample     = 16
)

var (
	ErrNoParts            = errors.New("audio: nothing to concatenate")
	ErrSampleRateMismatch = errors.New("audio: sample rate mismatch")
)

type Audio struct {
	Samples    []float32
	SampleRate int
}

func NewAudio(samples []float32) *Audio {
	return NewAudioWithSampleRate(samples, DefaultSampleRate)
}

func NewAudioWithSampleRate(samples []float32, sampleRate int) *Audio {
	return &Audio{
		Samples:    samples,
		SampleRate: sampleRate,
	}
}

func (a *Audio) Len() int {
	return len(a.Samples)
}

func (a *Audio) Duration() float64 {
	if a.SampleRate == 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

// SilenceSamples returns the number of zero samples that span d at sampleRate,
// rounded to the nearest sample.
func SilenceSamples(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

func Silence(d time.Duration, sampleRate int) *Audio {
	return NewAudioWithSampleRate(make([]float32, SilenceSamples(d, sampleRate)), sampleRate)
}

// Join concatenates parts in order with gap of silence between consecutive
// parts and none after the last one. All parts must share one sample rate.
func Join(parts []*Audio, gap time.Duration) (*Audio, error) {
	if len(parts) == 0 {
		return nil, ErrNoParts
	}

	sampleRate := parts[0].SampleRate
	gapLen := SilenceSamples(gap, sampleRate)

	total := gapLen * (len(parts) - 1)
	for i, p := range parts {
		if p.SampleRate != sampleRate {
			return nil, fmt.Errorf("%w: part %d is %d Hz, expected %d Hz", ErrSampleRateMismatch, i, p.SampleRate, sampleRate)
		}
		total += len(p.Samples)
	}

	out := make([]float32, 0, total)
	silence := make([]float32, gapLen)
	for i, p := range parts {
		out = append(out, p.Samples...)
		if i < len(parts)-1 {
			out = append(out, silence...)
		}
	}

	return NewAudioWithSampleRate(out, sampleRate), nil
}

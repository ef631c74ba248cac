// Package metronome synthesizes click tracks with an exact tempo.
// The output is used as a reference input for tempo analysis.
package metronome

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/nzoschke/bpmbat/pkg/analysis"
)

// Options controls the click sound.
type Options struct {
	// ClickDuration is the length of each noise burst.
	// Default: 10ms
	ClickDuration time.Duration

	// Amplitude is the peak level of a click in (0, 1].
	// Default: 0.8
	Amplitude float64

	// Seed fixes the click noise. nil draws a new seed per call.
	Seed *uint64
}

// DefaultOptions returns the default click settings.
func DefaultOptions() Options {
	return Options{
		ClickDuration: 10 * time.Millisecond,
		Amplitude:     0.8,
	}
}

// WithSeed returns a copy of o with a fixed noise seed.
func (o Options) WithSeed(seed uint64) Options {
	o.Seed = &seed
	return o
}

// SamplesPerBeat returns round(sampleRate * 60 / bpm).
func SamplesPerBeat(bpm float64, sampleRate int) int {
	return int(math.Round(float64(sampleRate) * 60 / bpm))
}

// Generate returns duration seconds of silence with a click at every beat of
// bpm. Clicks start at multiples of SamplesPerBeat; a click that would not fit
// before the end of the buffer is omitted. All other samples are exactly 0.
func Generate(bpm, duration float64, sampleRate int, opts Options) (analysis.Waveform, error) {
	switch {
	case !(bpm > 0) || math.IsInf(bpm, 0):
		return analysis.Waveform{}, fmt.Errorf("%w: bpm %g", analysis.ErrInvalidInput, bpm)
	case !(duration > 0) || math.IsInf(duration, 0):
		return analysis.Waveform{}, fmt.Errorf("%w: duration %g", analysis.ErrInvalidInput, duration)
	case sampleRate <= 0:
		return analysis.Waveform{}, fmt.Errorf("%w: sample rate %d", analysis.ErrInvalidInput, sampleRate)
	case opts.ClickDuration <= 0:
		return analysis.Waveform{}, fmt.Errorf("%w: click duration %s", analysis.ErrInvalidInput, opts.ClickDuration)
	case !(opts.Amplitude > 0) || opts.Amplitude > 1:
		return analysis.Waveform{}, fmt.Errorf("%w: amplitude %g", analysis.ErrInvalidInput, opts.Amplitude)
	}

	spb := SamplesPerBeat(bpm, sampleRate)
	if spb < 1 {
		return analysis.Waveform{}, fmt.Errorf("%w: bpm %g too fast for %d Hz", analysis.ErrInvalidInput, bpm, sampleRate)
	}

	total := int(math.Round(duration * float64(sampleRate)))
	samples := make([]float64, total)
	click := newClick(clickLength(opts.ClickDuration, sampleRate), opts)

	for i := 0; i+len(click) <= total; i += spb {
		copy(samples[i:], click)
	}

	return analysis.Waveform{Samples: samples, SampleRate: sampleRate}, nil
}

func clickLength(d time.Duration, sampleRate int) int {
	return max(1, int(math.Round(d.Seconds()*float64(sampleRate))))
}

// newClick returns uniform noise scaled by opts.Amplitude with a linear fade
// from 1 to 0.
func newClick(n int, opts Options) []float64 {
	var seed1, seed2 uint64
	if opts.Seed != nil {
		seed1, seed2 = *opts.Seed, *opts.Seed
	} else {
		seed1, seed2 = rand.Uint64(), rand.Uint64()
	}
	r := rand.New(rand.NewPCG(seed1, seed2))

	click := make([]float64, n)
	for i := range click {
		fade := 1.0
		if n > 1 {
			fade = 1 - float64(i)/float64(n-1)
		}
		click[i] = (r.Float64()*2 - 1) * opts.Amplitude * fade
	}
	return click
}

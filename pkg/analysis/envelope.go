package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Envelope is an onset-strength signal with one non-negative value per
// analysis frame.
type Envelope struct {
	Values    []float64
	HopSize   int     // HopSize is the number of samples between frames.
	FrameSize int     // FrameSize is the analysis window length in samples.
	FrameRate float64 // FrameRate is frames per second (sample rate / hop size).
}

// FrameToSeconds returns the time of the center of a frame's window.
func (e Envelope) FrameToSeconds(frame int) float64 {
	t := float64(frame) / e.FrameRate
	if e.HopSize > 0 && e.FrameSize > 0 {
		t += float64(e.FrameSize) / 2 / (e.FrameRate * float64(e.HopSize))
	}
	return t
}

// LagToBPM converts a period in frames to beats per minute.
func (e Envelope) LagToBPM(lag float64) float64 {
	if lag <= 0 {
		return 0
	}
	return 60 * e.FrameRate / lag
}

// BPMToLag converts beats per minute to a period in frames.
func (e Envelope) BPMToLag(bpm float64) float64 {
	if bpm <= 0 {
		return 0
	}
	return 60 * e.FrameRate / bpm
}

// ExtractEnvelope computes the spectral flux onset envelope of w.
// Each frame's strength is the summed positive increase in magnitude over
// the previous frame; a moving mean over ±4 frames is then subtracted and
// negative values are clipped to 0.
func ExtractEnvelope(w Waveform, frameSize, hopSize int) (Envelope, error) {
	return extractEnvelope(w, frameSize, hopSize, DefaultConfig().LocalMeanRadius)
}

func extractEnvelope(w Waveform, frameSize, hopSize, radius int) (Envelope, error) {
	if w.SampleRate <= 0 {
		return Envelope{}, fmt.Errorf("%w: sample rate %d", ErrInvalidInput, w.SampleRate)
	}
	if frameSize <= 0 || hopSize <= 0 {
		return Envelope{}, fmt.Errorf("%w: frame size %d, hop size %d", ErrInvalidInput, frameSize, hopSize)
	}

	env := Envelope{
		HopSize:   hopSize,
		FrameSize: frameSize,
		FrameRate: float64(w.SampleRate) / float64(hopSize),
	}

	mags := STFT(w.Samples, STFTConfig{FrameSize: frameSize, HopSize: hopSize})
	if len(mags) == 0 {
		env.Values = []float64{}
		return env, nil
	}

	flux := make([]float64, len(mags))
	for t := 1; t < len(mags); t++ {
		sum := 0.0
		for f, mag := range mags[t] {
			if d := mag - mags[t-1][f]; d > 0 {
				sum += d
			}
		}
		flux[t] = sum
	}

	env.Values = subtractLocalMean(flux, radius)
	return env, nil
}

// subtractLocalMean removes the moving mean over ±radius frames and clips
// the result at 0. The window is truncated at the edges.
func subtractLocalMean(x []float64, radius int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		lo := max(0, i-radius)
		hi := min(len(x), i+radius+1)
		mean := floats.Sum(x[lo:hi]) / float64(hi-lo)
		if v := x[i] - mean; v > 0 {
			out[i] = v
		}
	}
	return out
}

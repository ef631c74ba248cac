// Package analysis estimates the tempo of decoded audio.
// It turns a waveform into an onset-strength envelope, finds the dominant
// periodicity of that envelope and optionally places individual beats.
package analysis

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput reports a malformed buffer, sample rate or parameter.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoSignal reports that no tempo could be determined, e.g. for silence.
	ErrNoSignal = errors.New("no signal")
)

// Waveform is a mono buffer of samples in [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the waveform in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Config holds the analysis parameters.
type Config struct {
	// FrameSize is the STFT window length in samples.
	// Default: 2048
	FrameSize int

	// HopSize is the number of samples between envelope frames.
	// Default: 512
	HopSize int

	// LocalMeanRadius is the half width, in frames, of the moving mean
	// subtracted from the spectral flux. Default: 4
	LocalMeanRadius int

	// MinBPM and MaxBPM bound the tempo search, inclusive.
	// Default: 30 and 300
	MinBPM float64
	MaxBPM float64

	// PriorBPM is the center of the log-Gaussian tempo prior.
	// Default: 120
	PriorBPM float64

	// PriorStdOctaves is the prior width in octaves. 0 disables the prior.
	// Default: 1.0
	PriorStdOctaves float64

	// OctaveRatio is the fraction of the best autocorrelation a doubled or
	// halved tempo must reach to be considered by octave correction.
	// Default: 0.8
	OctaveRatio float64

	// Tightness controls how strictly tracked beats follow the tempo.
	// Higher values = stricter. Default: 100
	Tightness float64

	// TrackBeats enables the beat tracker in Analyze.
	// Default: false
	TrackBeats bool
}

// DefaultConfig returns the default analysis configuration.
func DefaultConfig() Config {
	return Config{
		FrameSize:       2048,
		HopSize:         512,
		LocalMeanRadius: 4,
		MinBPM:          30,
		MaxBPM:          300,
		PriorBPM:        120,
		PriorStdOctaves: 1.0,
		OctaveRatio:     0.8,
		Tightness:       100,
	}
}

// Validate checks that the configuration is usable.
func (cfg Config) Validate() error {
	switch {
	case cfg.FrameSize <= 0:
		return fmt.Errorf("%w: frame size %d", ErrInvalidInput, cfg.FrameSize)
	case cfg.HopSize <= 0:
		return fmt.Errorf("%w: hop size %d", ErrInvalidInput, cfg.HopSize)
	case cfg.LocalMeanRadius < 0:
		return fmt.Errorf("%w: local mean radius %d", ErrInvalidInput, cfg.LocalMeanRadius)
	case cfg.MinBPM <= 0 || cfg.MaxBPM < cfg.MinBPM:
		return fmt.Errorf("%w: bpm range [%g, %g]", ErrInvalidInput, cfg.MinBPM, cfg.MaxBPM)
	case cfg.PriorBPM <= 0:
		return fmt.Errorf("%w: prior bpm %g", ErrInvalidInput, cfg.PriorBPM)
	case cfg.PriorStdOctaves < 0:
		return fmt.Errorf("%w: prior width %g", ErrInvalidInput, cfg.PriorStdOctaves)
	case cfg.OctaveRatio < 0 || cfg.OctaveRatio > 1:
		return fmt.Errorf("%w: octave ratio %g", ErrInvalidInput, cfg.OctaveRatio)
	case cfg.Tightness < 0:
		return fmt.Errorf("%w: tightness %g", ErrInvalidInput, cfg.Tightness)
	}
	return nil
}

// Result contains the analysis results for one waveform.
type Result struct {
	BPM        float64   // BPM is the estimated tempo, rounded to 2 decimals.
	Beats      []float64 // Beats contains beat timestamps in seconds, if tracked.
	SampleRate int       // SampleRate is the input sample rate in Hz.
	Duration   float64   // Duration is the input length in seconds.
	Frames     int       // Frames is the number of envelope frames analyzed.
}

// Bars returns the number of bars (4 beats per bar) in the track.
func (r *Result) Bars() float64 {
	if len(r.Beats) == 0 {
		return 0
	}
	return float64(len(r.Beats)) / 4.0
}

// Analyze estimates the tempo of w.
// It returns ErrInvalidInput for an empty buffer, a non-positive sample rate
// or an invalid config, and ErrNoSignal when no tempo can be determined.
func Analyze(w Waveform, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if w.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidInput, w.SampleRate)
	}
	if len(w.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty waveform", ErrInvalidInput)
	}

	env, err := extractEnvelope(w, cfg.FrameSize, cfg.HopSize, cfg.LocalMeanRadius)
	if err != nil {
		return nil, err
	}

	bpm, err := EstimateTempo(env, cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{
		BPM:        bpm,
		SampleRate: w.SampleRate,
		Duration:   w.Duration(),
		Frames:     len(env.Values),
	}

	if cfg.TrackBeats {
		beats, err := TrackBeats(env, bpm, cfg)
		if err != nil {
			return nil, fmt.Errorf("track beats: %w", err)
		}
		result.Beats = beats
	}

	return result, nil
}

// BPM estimates the tempo of w with the default configuration.
func BPM(w Waveform) (float64, error) {
	r, err := Analyze(w, DefaultConfig())
	if err != nil {
		return 0, err
	}
	return r.BPM, nil
}

// roundBPM rounds to 2 decimal digits.
func roundBPM(bpm float64) float64 {
	return math.Round(bpm*100) / 100
}

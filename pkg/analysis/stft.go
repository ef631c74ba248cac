package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// STFTConfig describes parameters for STFT computation.
type STFTConfig struct {
	FrameSize int // FFT window size (e.g., 1024, 2048, 4096)
	HopSize   int // Hop between frame starts (e.g., 512)
}

// NumFrames returns the number of STFT frames for n samples.
// A buffer shorter than one frame is analyzed as a single zero-padded frame.
func (cfg STFTConfig) NumFrames(n int) int {
	switch {
	case n <= 0:
		return 0
	case n < cfg.FrameSize:
		return 1
	default:
		return (n + cfg.HopSize - 1) / cfg.HopSize
	}
}

// STFT computes a Hann-windowed Short-Time Fourier Transform.
// Frame t starts at sample t*HopSize and is zero-padded past the end of the
// buffer. Returns [frames][bins] magnitude spectrum with FrameSize/2+1 bins.
func STFT(samples []float64, cfg STFTConfig) [][]float64 {
	numFrames := cfg.NumFrames(len(samples))
	if numFrames == 0 {
		return nil
	}

	win := window.Hann(cfg.FrameSize)
	fft := fourier.NewFFT(cfg.FrameSize)
	numBins := cfg.FrameSize/2 + 1

	result := make([][]float64, numFrames)
	frame := make([]float64, cfg.FrameSize)
	coeffs := make([]complex128, numBins)

	for i := 0; i < numFrames; i++ {
		start := i * cfg.HopSize

		// Clear frame and apply window
		for j := range frame {
			frame[j] = 0
		}
		for j := 0; j < cfg.FrameSize && start+j < len(samples); j++ {
			frame[j] = samples[start+j] * win[j]
		}

		coeffs = fft.Coefficients(coeffs, frame)

		result[i] = make([]float64, numBins)
		for j, c := range coeffs {
			result[i][j] = cmplx.Abs(c)
		}
	}

	return result
}

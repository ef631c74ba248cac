package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// maxOctaveSteps bounds the octave correction loop.
const maxOctaveSteps = 8

// EstimateTempo returns the dominant tempo of env in BPM, rounded to 2 decimals.
//
// The envelope is autocorrelated over the lags that correspond to
// [cfg.MinBPM, cfg.MaxBPM] and smoothed with a [1/2 1 1/2] window, so a period
// that falls between two frames scores like one that lands on a frame. Each
// lag is weighted by a log-Gaussian prior centered on cfg.PriorBPM and the
// best lag is refined by parabolic interpolation. Exact ties go to the shorter lag (faster tempo). Finally a
// doubled or halved tempo replaces the estimate when its autocorrelation is
// at least cfg.OctaveRatio of the estimate's and it is closer to the prior
// center.
//
// It returns ErrNoSignal when the envelope is silent or too short to resolve
// cfg.MaxBPM.
func EstimateTempo(env Envelope, cfg Config) (float64, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if env.FrameRate <= 0 {
		return 0, fmt.Errorf("%w: frame rate %g", ErrInvalidInput, env.FrameRate)
	}

	values := env.Values
	minLag := max(1, int(math.Ceil(env.BPMToLag(cfg.MaxBPM))))
	maxLag := int(math.Floor(env.BPMToLag(cfg.MinBPM)))

	if len(values) <= minLag {
		return 0, fmt.Errorf("%w: %d frames cannot resolve %g bpm", ErrNoSignal, len(values), cfg.MaxBPM)
	}
	if floats.Max(values) <= 0 {
		return 0, fmt.Errorf("%w: silent envelope", ErrNoSignal)
	}
	maxLag = min(maxLag, len(values)-1)
	if maxLag < minLag {
		return 0, fmt.Errorf("%w: empty lag range", ErrNoSignal)
	}

	ac := smoothLags(autocorrelate(values, maxLag+1), maxLag)

	score := make([]float64, maxLag+1)
	for lag := minLag; lag <= maxLag; lag++ {
		score[lag] = ac[lag] * tempoPrior(env.LagToBPM(float64(lag)), cfg)
	}

	best := bestLag(score, minLag, maxLag)
	if score[best] <= 0 {
		return 0, fmt.Errorf("%w: no periodicity in range", ErrNoSignal)
	}

	p := periodicity{
		env:    env,
		cfg:    cfg,
		ac:     ac,
		minLag: minLag,
		maxLag: maxLag,
	}
	lag := p.correctOctave(best, refineLag(ac, best, minLag, maxLag))

	// Keep the refined lag inside the searched tempo range.
	lag = math.Max(lag, env.BPMToLag(cfg.MaxBPM))
	lag = math.Min(lag, env.BPMToLag(cfg.MinBPM))

	return roundBPM(env.LagToBPM(lag)), nil
}

// autocorrelate returns the raw autocorrelation of x for lags 0..maxLag.
func autocorrelate(x []float64, maxLag int) []float64 {
	ac := make([]float64, maxLag+1)
	n := len(x)
	for lag := 0; lag <= maxLag && lag < n; lag++ {
		ac[lag] = floats.Dot(x[:n-lag], x[lag:])
	}
	return ac
}

// smoothLags returns ac[lag] + (ac[lag-1] + ac[lag+1])/2 for lags 1..maxLag.
// Lag 0 is the signal energy and never contributes to a neighbor.
func smoothLags(ac []float64, maxLag int) []float64 {
	out := make([]float64, maxLag+1)
	for lag := 1; lag <= maxLag; lag++ {
		out[lag] = ac[lag]
		if lag-1 >= 1 {
			out[lag] += ac[lag-1] / 2
		}
		if lag+1 < len(ac) {
			out[lag] += ac[lag+1] / 2
		}
	}
	return out
}

// tempoPrior is a log-Gaussian weight in octaves around cfg.PriorBPM.
func tempoPrior(bpm float64, cfg Config) float64 {
	if cfg.PriorStdOctaves == 0 {
		return 1
	}
	z := math.Log2(bpm/cfg.PriorBPM) / cfg.PriorStdOctaves
	return math.Exp(-0.5 * z * z)
}

// bestLag returns the lag in [lo, hi] with the highest score.
// Ties go to the shortest lag.
func bestLag(score []float64, lo, hi int) int {
	best := lo
	for lag := lo + 1; lag <= hi; lag++ {
		if score[lag] > score[best] {
			best = lag
		}
	}
	return best
}

// refineLag fits a parabola through y[lag-1..lag+1] and returns the vertex.
// Lags at the edge of [lo, hi] are returned unchanged.
func refineLag(y []float64, lag, lo, hi int) float64 {
	if lag-1 < lo || lag+1 > hi {
		return float64(lag)
	}
	a, b, c := y[lag-1], y[lag], y[lag+1]
	den := a - 2*b + c
	if den >= 0 {
		return float64(lag)
	}
	offset := 0.5 * (a - c) / den
	offset = math.Max(-0.5, math.Min(0.5, offset))
	return float64(lag) + offset
}

// periodicity holds the smoothed autocorrelation of one envelope for octave
// correction.
type periodicity struct {
	env    Envelope
	cfg    Config
	ac     []float64
	minLag int
	maxLag int
}

// correctOctave moves the estimate to a doubled or halved tempo while the
// move keeps a comparable autocorrelation and lands closer to the prior
// center. Doubling is tried before halving.
func (p periodicity) correctOctave(peak int, lag float64) float64 {
	for range maxOctaveSteps {
		moved := false
		for _, factor := range []float64{0.5, 2} {
			cand, ok := p.peakNear(lag * factor)
			if !ok || p.ac[cand] < p.cfg.OctaveRatio*p.ac[peak] {
				continue
			}
			candLag := refineLag(p.ac, cand, p.minLag, p.maxLag)
			candBPM := p.env.LagToBPM(candLag)
			if candBPM < p.cfg.MinBPM || candBPM > p.cfg.MaxBPM {
				continue
			}
			if p.priorDistance(candBPM) < p.priorDistance(p.env.LagToBPM(lag)) {
				peak, lag, moved = cand, candLag, true
				break
			}
		}
		if !moved {
			break
		}
	}
	return lag
}

// peakNear returns the integer lag with the highest autocorrelation among
// the three lags around target, if any of them is in range.
func (p periodicity) peakNear(target float64) (int, bool) {
	center := int(math.Round(target))
	best, ok := 0, false
	for lag := center - 1; lag <= center+1; lag++ {
		if lag < p.minLag || lag > p.maxLag {
			continue
		}
		if !ok || p.ac[lag] > p.ac[best] {
			best, ok = lag, true
		}
	}
	return best, ok
}

// priorDistance is the distance to the prior center in octaves.
func (p periodicity) priorDistance(bpm float64) float64 {
	return math.Abs(math.Log2(bpm / p.cfg.PriorBPM))
}

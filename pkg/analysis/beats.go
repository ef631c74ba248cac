package analysis

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// TrackBeats places beats on env for a tempo of bpm using dynamic programming.
//
// The score of a beat at frame t is the normalized onset strength at t plus
// the best score of a previous beat t', penalized by
// cfg.Tightness*log((t-t')/period)^2. Beats are never closer than the period
// of cfg.MaxBPM. The returned times are in seconds and strictly increasing.
func TrackBeats(env Envelope, bpm float64, cfg Config) ([]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return nil, fmt.Errorf("%w: bpm %g", ErrInvalidInput, bpm)
	}
	if env.FrameRate <= 0 {
		return nil, fmt.Errorf("%w: frame rate %g", ErrInvalidInput, env.FrameRate)
	}

	n := len(env.Values)
	if n < 2 {
		return []float64{}, nil
	}
	sd := stat.StdDev(env.Values, nil)
	if !(sd > 0) {
		return []float64{}, nil
	}

	local := make([]float64, n)
	for i, v := range env.Values {
		local[i] = v / sd
	}

	minPeriod := env.BPMToLag(cfg.MaxBPM)
	period := math.Max(env.BPMToLag(bpm), minPeriod)
	minGap := max(1, int(math.Ceil(minPeriod)), int(math.Round(period/2)))
	maxGap := max(minGap, int(math.Round(2*period)))

	cum := make([]float64, n)
	back := make([]int, n)
	for t := range n {
		back[t] = -1
		best := 0.0
		for prev := max(0, t-maxGap); prev <= t-minGap; prev++ {
			d := math.Log(float64(t-prev) / period)
			if s := cum[prev] - cfg.Tightness*d*d; s > best {
				best, back[t] = s, prev
			}
		}
		cum[t] = local[t] + best
	}

	// The chain ends at the highest cumulative score; later frames can only
	// extend it with penalties and no onset strength.
	last := 0
	for t := 1; t < n; t++ {
		if cum[t] > cum[last] {
			last = t
		}
	}
	if cum[last] <= 0 {
		return []float64{}, nil
	}

	var frames []int
	for t := last; t >= 0; t = back[t] {
		frames = append(frames, t)
	}
	slices.Reverse(frames)

	beats := make([]float64, len(frames))
	for i, f := range frames {
		beats[i] = env.FrameToSeconds(f)
	}
	return beats, nil
}

// IntervalTempo estimates BPM from beat timestamps using the median
// inter-beat interval. It needs at least two beats.
func IntervalTempo(beats []float64) (float64, error) {
	if len(beats) < 2 {
		return 0, fmt.Errorf("%w: %d beats", ErrNoSignal, len(beats))
	}

	intervals := make([]float64, 0, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		if d := beats[i] - beats[i-1]; d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return 0, fmt.Errorf("%w: no positive intervals", ErrNoSignal)
	}

	return roundBPM(60 / median(intervals)), nil
}

// median returns the median of values without modifying them.
func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

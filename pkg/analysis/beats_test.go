package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackBeats_SpikeTrain(t *testing.T) {
	// Spikes every 43 frames starting at frame 10
	env := spikeEnvelope(860, 43, 10)
	bpm := env.LagToBPM(43)

	beats, err := TrackBeats(env, bpm, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, beats, 20)

	for i, b := range beats {
		assert.InDelta(t, float64(10+43*i)/100, b, 1e-9, "beat %d", i)
	}
}

func TestTrackBeats_MinInterval(t *testing.T) {
	env := spikeEnvelope(860, 43, 10)
	cfg := DefaultConfig()
	minInterval := 60 / cfg.MaxBPM

	for _, bpm := range []float64{300, 1000} {
		beats, err := TrackBeats(env, bpm, cfg)
		require.NoError(t, err)
		require.NotEmpty(t, beats)

		for i := 1; i < len(beats); i++ {
			assert.Greater(t, beats[i], beats[i-1])
			assert.GreaterOrEqual(t, beats[i]-beats[i-1], minInterval-1e-9, "bpm %g beat %d", bpm, i)
		}
	}
}

func TestTrackBeats_Silence(t *testing.T) {
	env := Envelope{Values: make([]float64, 500), HopSize: 441, FrameRate: 100}

	beats, err := TrackBeats(env, 120, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, beats)
}

func TestTrackBeats_InvalidInput(t *testing.T) {
	env := spikeEnvelope(860, 43, 10)

	for _, bpm := range []float64{0, -120} {
		_, err := TrackBeats(env, bpm, DefaultConfig())
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	_, err := TrackBeats(Envelope{Values: env.Values}, 120, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIntervalTempo(t *testing.T) {
	bpm, err := IntervalTempo([]float64{0, 0.5, 1.0, 1.5, 2.0})
	require.NoError(t, err)
	assert.Equal(t, 120.0, bpm)

	// The median ignores a single outlier.
	bpm, err = IntervalTempo([]float64{0, 0.4, 0.8, 2.0, 2.4})
	require.NoError(t, err)
	assert.Equal(t, 150.0, bpm)

	_, err = IntervalTempo([]float64{1.0})
	assert.ErrorIs(t, err, ErrNoSignal)
}

func TestMedian(t *testing.T) {
	values := []float64{3, 1, 2}
	assert.Equal(t, 2.0, median(values))
	assert.Equal(t, []float64{3, 1, 2}, values)
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}

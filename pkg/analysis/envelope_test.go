package analysis

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noise(n int, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = r.Float64()*2 - 1
	}
	return samples
}

func TestExtractEnvelope_Length(t *testing.T) {
	w := Waveform{Samples: noise(44100, 1), SampleRate: 44100}

	env, err := ExtractEnvelope(w, 2048, 512)
	require.NoError(t, err)

	assert.Len(t, env.Values, 87)
	assert.Equal(t, 512, env.HopSize)
	assert.Equal(t, 2048, env.FrameSize)
	assert.InDelta(t, 44100.0/512, env.FrameRate, 1e-9)
	assert.Zero(t, env.Values[0])

	for i, v := range env.Values {
		assert.GreaterOrEqual(t, v, 0.0, "frame %d", i)
	}
}

func TestExtractEnvelope_Silence(t *testing.T) {
	w := Waveform{Samples: make([]float64, 22050), SampleRate: 22050}

	env, err := ExtractEnvelope(w, 1024, 256)
	require.NoError(t, err)
	require.NotEmpty(t, env.Values)

	for _, v := range env.Values {
		assert.Zero(t, v)
	}
}

func TestExtractEnvelope_Short(t *testing.T) {
	w := Waveform{Samples: noise(100, 2), SampleRate: 44100}

	env, err := ExtractEnvelope(w, 2048, 512)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, env.Values)
}

func TestExtractEnvelope_Empty(t *testing.T) {
	env, err := ExtractEnvelope(Waveform{SampleRate: 44100}, 2048, 512)
	require.NoError(t, err)
	assert.Empty(t, env.Values)
}

func TestExtractEnvelope_InvalidInput(t *testing.T) {
	_, err := ExtractEnvelope(Waveform{Samples: noise(10, 3)}, 2048, 512)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ExtractEnvelope(Waveform{Samples: noise(10, 3), SampleRate: 44100}, 0, 512)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ExtractEnvelope(Waveform{Samples: noise(10, 3), SampleRate: 44100}, 2048, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestExtractEnvelope_Onset(t *testing.T) {
	// Silence followed by noise: the strongest frame is the one where the
	// noise begins.
	samples := make([]float64, 44100)
	copy(samples[22050:], noise(22050, 4))

	env, err := ExtractEnvelope(Waveform{Samples: samples, SampleRate: 44100}, 2048, 512)
	require.NoError(t, err)

	peak := 0
	for i, v := range env.Values {
		if v > env.Values[peak] {
			peak = i
		}
	}
	onset := 22050 / 512
	assert.InDelta(t, onset, peak, 4)
}

func TestSubtractLocalMean(t *testing.T) {
	got := subtractLocalMean([]float64{0, 0, 0, 9, 0, 0, 0}, 1)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 6, 0, 0, 0}, got, 1e-12)

	// Radius 0 leaves nothing above the mean.
	got = subtractLocalMean([]float64{1, 2, 3}, 0)
	assert.Equal(t, []float64{0, 0, 0}, got)
}

func TestEnvelope_Conversions(t *testing.T) {
	env := Envelope{HopSize: 441, FrameRate: 100}

	assert.InDelta(t, 0.5, env.FrameToSeconds(50), 1e-12)

	// Frame times are window centers once the window length is known.
	env.FrameSize = 882
	assert.InDelta(t, 0.01, env.FrameToSeconds(0), 1e-12)
	assert.InDelta(t, 0.51, env.FrameToSeconds(50), 1e-12)
	assert.InDelta(t, 120.0, env.LagToBPM(50), 1e-12)
	assert.InDelta(t, 50.0, env.BPMToLag(120), 1e-12)
	assert.Zero(t, env.LagToBPM(0))
	assert.Zero(t, env.BPMToLag(-1))
}

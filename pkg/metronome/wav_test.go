package metronome

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzoschke/bpmbat/pkg/analysis"
)

func TestPCM16(t *testing.T) {
	got := PCM16([]float64{0, 1, -1, 0.5, 2, -3})
	assert.Equal(t, []int{0, 32767, -32767, 16384, 32767, -32767}, got)
}

func TestWriteWAVFile(t *testing.T) {
	w, err := Generate(120, 1, 16000, DefaultOptions().WithSeed(9))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "click.wav")
	require.NoError(t, WriteWAVFile(path, w))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, uint16(1), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)
	assert.Equal(t, uint32(16000), dec.SampleRate)
	assert.Equal(t, PCM16(w.Samples), buf.Data)
}

func TestWriteWAV_InvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	err := WriteWAVFile(path, analysis.Waveform{Samples: []float64{0}})
	assert.ErrorIs(t, err, analysis.ErrInvalidInput)

	err = WriteWAVFile(filepath.Join(t.TempDir(), "missing", "x.wav"), analysis.Waveform{SampleRate: 8000})
	assert.Error(t, err)
}

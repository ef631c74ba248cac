package analysis

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLAMEEncoderDelay(t *testing.T) {
	header := make([]byte, 64)
	copy(header[10:], "LAME")
	header[31] = 0x55
	header[32] = 0x50
	assert.Equal(t, 1365, readLAMEEncoderDelay(header))

	assert.Equal(t, defaultEncoderDelay, readLAMEEncoderDelay(make([]byte, 64)))
	assert.Equal(t, defaultEncoderDelay, readLAMEEncoderDelay([]byte("xxLAME")))

	header[31] = 0xFF
	header[32] = 0xF0
	assert.Equal(t, 4095, readLAMEEncoderDelay(header))
}

// silentMP3 returns MPEG-1 Layer III frames (128 kbps, 44.1 kHz, mono)
// whose side info and main data are all zero, which decode to silence.
func silentMP3(frames int) []byte {
	const frameSize = 144 * 128000 / 44100
	var buf bytes.Buffer
	for range frames {
		frame := make([]byte, frameSize)
		copy(frame, []byte{0xFF, 0xFB, 0x90, 0xC4})
		buf.Write(frame)
	}
	return buf.Bytes()
}

func TestDecodeMono_MP3(t *testing.T) {
	const frames = 12
	w, err := DecodeMono(bytes.NewReader(silentMP3(frames)), ".mp3")
	require.NoError(t, err)

	assert.Equal(t, 44100, w.SampleRate)

	// Encoder and decoder delay are trimmed from the start.
	require.NotEmpty(t, w.Samples)
	assert.LessOrEqual(t, len(w.Samples), frames*1152-defaultEncoderDelay-goMP3DecoderDelay)

	for i, s := range w.Samples {
		if s != 0 {
			t.Fatalf("sample %d = %g, want silence", i, s)
		}
	}
}

func TestDecodeMono_MP3Invalid(t *testing.T) {
	_, err := DecodeMono(bytes.NewReader([]byte("definitely not an mp3 stream")), ".mp3")
	assert.Error(t, err)

	_, err = DecodeMono(bytes.NewReader(nil), ".mp3")
	assert.Error(t, err)
}

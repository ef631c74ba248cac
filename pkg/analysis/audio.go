package analysis

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// ErrUnsupportedFormat is returned for audio containers that cannot be decoded.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// LoadAudioMono decodes an audio file into a mono waveform.
// Supported formats are MP3 and WAV (PCM).
func LoadAudioMono(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return DecodeMono(f, filepath.Ext(path))
}

// DecodeMono decodes audio of the given extension (".mp3", ".wav") from r
// and averages all channels to mono.
func DecodeMono(r io.ReadSeeker, ext string) (Waveform, error) {
	switch strings.ToLower(ext) {
	case ".mp3":
		return decodeMP3(r)
	case ".wav", ".wave":
		return decodeWAV(r)
	default:
		return Waveform{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Downmix averages interleaved multi-channel samples into mono.
// Trailing samples that do not fill a whole frame are dropped.
func Downmix(interleaved []float64, channels int) ([]float64, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidInput, channels)
	}
	if channels == 1 {
		return append([]float64(nil), interleaved...), nil
	}

	mono := make([]float64, len(interleaved)/channels)
	for i := range mono {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono, nil
}

func decodeWAV(r io.ReadSeeker) (Waveform, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return Waveform{}, errors.New("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("failed to decode WAV: %w", err)
	}
	if buf.SourceBitDepth <= 0 || buf.Format == nil {
		return Waveform{}, errors.New("WAV file has no PCM format")
	}

	// Normalize to [-1, 1]
	scale := float64(int64(1) << (buf.SourceBitDepth - 1))
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / scale
	}

	mono, err := Downmix(samples, buf.Format.NumChannels)
	if err != nil {
		return Waveform{}, err
	}

	return Waveform{Samples: mono, SampleRate: buf.Format.SampleRate}, nil
}

// Additional samples that go-mp3 produces compared to browser's decoder
// Measured: browser first transient at 48446, go-mp3 at 50735
// LAME header said 1365, so go-mp3 adds: 50735 - 48446 - 1365 = 924 samples
const goMP3DecoderDelay = 924

// Default encoder delay if we can't read it from the LAME header
const defaultEncoderDelay = 576

// readLAMEEncoderDelay reads the encoder delay from the LAME/Xing header in
// the first 4KB of an MP3 stream.
func readLAMEEncoderDelay(header []byte) int {
	lameIdx := bytes.Index(header, []byte("LAME"))
	if lameIdx == -1 {
		return defaultEncoderDelay
	}

	// 21 bytes past "LAME": 12 bits encoder delay, 12 bits padding
	delayOffset := lameIdx + 21
	if delayOffset+3 > len(header) {
		return defaultEncoderDelay
	}

	b := header[delayOffset : delayOffset+3]
	delay := (int(b[0]) << 4) | (int(b[1]) >> 4)
	if delay > 4096 {
		return defaultEncoderDelay
	}

	return delay
}

func decodeMP3(r io.ReadSeeker) (Waveform, error) {
	header := make([]byte, 4096)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Waveform{}, fmt.Errorf("failed to read MP3 header: %w", err)
	}
	totalDelay := readLAMEEncoderDelay(header[:n]) + goMP3DecoderDelay

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Waveform{}, fmt.Errorf("failed to rewind MP3: %w", err)
	}

	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return Waveform{}, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	// 16-bit signed stereo interleaved
	pcmData, err := io.ReadAll(decoder)
	if err != nil {
		return Waveform{}, fmt.Errorf("failed to decode MP3: %w", err)
	}

	numSamplePairs := len(pcmData) / 4
	samples := make([]float64, numSamplePairs)
	for i := range numSamplePairs {
		offset := i * 4
		left := int16(binary.LittleEndian.Uint16(pcmData[offset:]))
		right := int16(binary.LittleEndian.Uint16(pcmData[offset+2:]))
		samples[i] = (float64(left) + float64(right)) / 2.0 / 32768.0
	}

	// Skip encoder and decoder delay so beat times match playback
	if len(samples) > totalDelay {
		samples = samples[totalDelay:]
	}

	return Waveform{Samples: samples, SampleRate: decoder.SampleRate()}, nil
}

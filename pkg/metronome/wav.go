package metronome

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/nzoschke/bpmbat/pkg/analysis"
)

// wavFormatPCM is the WAVE format tag for integer PCM.
const wavFormatPCM = 1

// PCM16 converts samples in [-1, 1] to 16-bit integers, clipping out of
// range values.
func PCM16(samples []float64) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		out[i] = int(math.Round(s * math.MaxInt16))
	}
	return out
}

// WriteWAV encodes wf as a 16-bit PCM mono WAV file.
func WriteWAV(w io.WriteSeeker, wf analysis.Waveform) error {
	if wf.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", analysis.ErrInvalidInput, wf.SampleRate)
	}

	enc := wav.NewEncoder(w, wf.SampleRate, 16, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: wf.SampleRate},
		Data:           PCM16(wf.Samples),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize WAV: %w", err)
	}
	return nil
}

// WriteWAVFile writes wf to path as a 16-bit PCM mono WAV file.
func WriteWAVFile(path string, wf analysis.Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteWAV(f, wf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/gommon/log"
)

// logger reports progress for directory analysis.
var logger = log.New("analysis")

// Logger returns the logger used by AnalyzeDir.
func Logger() *log.Logger {
	return logger
}

// TrackAnalysis represents the JSON sidecar written for an audio file.
type TrackAnalysis struct {
	File       string    `json:"file"`
	Duration   float64   `json:"duration"`
	SampleRate int       `json:"sample_rate"`
	BPM        float64   `json:"bpm,omitempty"`
	Beats      []float64 `json:"beats,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// AnalyzeFile decodes and analyzes a single audio file.
// A track without a determinable tempo is not an error: the returned
// analysis carries the reason in Error. Decode failures are returned as errors.
func AnalyzeFile(path string, cfg Config) (*TrackAnalysis, error) {
	w, err := LoadAudioMono(path)
	if err != nil {
		return nil, fmt.Errorf("load audio: %w", err)
	}

	ta := &TrackAnalysis{
		File:       filepath.Base(path),
		Duration:   w.Duration(),
		SampleRate: w.SampleRate,
	}

	result, err := Analyze(w, cfg)
	switch {
	case errors.Is(err, ErrNoSignal), errors.Is(err, ErrInvalidInput):
		ta.Error = err.Error()
	case err != nil:
		return nil, err
	default:
		ta.BPM = result.BPM
		ta.Beats = result.Beats
	}

	return ta, nil
}

// AnalyzeDir recursively analyzes all audio files in a directory.
// For each audio file, it creates a corresponding .json sidecar file.
// If force is true, existing JSON files are overwritten.
func AnalyzeDir(dir string, force bool, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !IsSupportedAudio(ext) {
			return nil
		}

		jsonPath := SidecarPath(path)
		if !force {
			if _, err := os.Stat(jsonPath); err == nil {
				logger.Infof("Skipping %s (already analyzed)", filepath.Base(path))
				return nil
			}
		}

		logger.Infof("Analyzing %s...", filepath.Base(path))

		ta, err := AnalyzeFile(path, cfg)
		if err != nil {
			logger.Warnf("  %s: %v", filepath.Base(path), err)
			return nil // Continue with other files
		}

		if err := ta.WriteJSON(jsonPath); err != nil {
			return err
		}

		if ta.Error != "" {
			logger.Infof("  Duration: %.1fs, no tempo: %s", ta.Duration, ta.Error)
		} else {
			logger.Infof("  Duration: %.1fs, BPM=%.2f, Beats=%d", ta.Duration, ta.BPM, len(ta.Beats))
		}

		return nil
	})
}

// SidecarPath returns the JSON sidecar path for an audio file.
func SidecarPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".json"
}

// IsSupportedAudio returns true if the file extension can be decoded.
func IsSupportedAudio(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp3", ".wav", ".wave":
		return true
	default:
		return false
	}
}

// WriteJSON writes the analysis to a JSON file.
func (ta *TrackAnalysis) WriteJSON(path string) error {
	data, err := json.MarshalIndent(ta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}
	return nil
}

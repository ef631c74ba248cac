// Package server provides the Echo web server for browsing and analyzing tracks.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nzoschke/bpmbat/pkg/analysis"
)

// Track represents a track in the music library.
type Track struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	HasJSON  bool   `json:"has_json"`
	JSONPath string `json:"json_path,omitempty"`
}

// AnalyzeResponse is returned by POST /api/analyze.
type AnalyzeResponse struct {
	BPM      float64   `json:"bpm"`
	Beats    []float64 `json:"beats,omitempty"`
	Duration float64   `json:"duration"`
}

// ErrorResponse is returned when an upload cannot be analyzed.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Config configures the server.
type Config struct {
	// Dir is the music library root.
	// Default: music
	Dir string

	// BodyLimit caps the size of uploaded audio, e.g. "64M".
	// Default: 64M
	BodyLimit string

	// Analysis holds the parameters for uploaded audio.
	Analysis analysis.Config
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Dir:       "music",
		BodyLimit: "64M",
		Analysis:  analysis.DefaultConfig(),
	}
}

type handler struct {
	dir string
	cfg analysis.Config
}

// New returns an Echo instance with all routes registered.
func New(cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := &handler{dir: cfg.Dir, cfg: cfg.Analysis}

	// Routes
	e.GET("/api/music", h.listMusic)
	e.GET("/api/music/*", h.serveMusic)
	e.POST("/api/analyze", h.analyze, middleware.BodyLimit(cfg.BodyLimit))

	return e
}

// Run starts the web server on addr.
func Run(addr string, cfg Config) error {
	return New(cfg).Start(addr)
}

// listMusic returns a list of all tracks in the music directory.
func (h *handler) listMusic(c echo.Context) error {
	tracks := []Track{}

	err := filepath.WalkDir(h.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !analysis.IsSupportedAudio(ext) {
			return nil
		}

		// Paths are relative to the music directory
		rel, err := filepath.Rel(h.dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		track := Track{
			Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Path: rel,
		}

		// Check if JSON sidecar exists
		if _, err := os.Stat(analysis.SidecarPath(path)); err == nil {
			track.HasJSON = true
			track.JSONPath = analysis.SidecarPath(rel)
		}

		tracks = append(tracks, track)
		return nil
	})

	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, tracks)
}

// serveMusic serves audio files and JSON analysis files from the music directory.
func (h *handler) serveMusic(c echo.Context) error {
	decodedPath, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid path encoding")
	}

	// Security: prevent directory traversal
	if !filepath.IsLocal(filepath.FromSlash(decodedPath)) {
		return echo.NewHTTPError(http.StatusForbidden, "invalid path")
	}
	fullPath := filepath.Join(h.dir, filepath.FromSlash(decodedPath))

	info, err := os.Stat(fullPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if info.IsDir() {
		return echo.NewHTTPError(http.StatusForbidden, "cannot serve directory")
	}

	// Only serve allowed file types
	ext := strings.ToLower(filepath.Ext(decodedPath))
	if analysis.IsSupportedAudio(ext) {
		return c.File(fullPath)
	}
	if ext == ".json" {
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		var ta analysis.TrackAnalysis
		if err := json.Unmarshal(data, &ta); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "invalid JSON")
		}
		return c.JSON(http.StatusOK, ta)
	}
	return echo.NewHTTPError(http.StatusForbidden, "file type not allowed")
}

// analyze decodes the request body as audio and estimates its tempo.
// The container is chosen by the ext query parameter (default .wav) and
// beats are tracked when beats=true.
func (h *handler) analyze(c echo.Context) error {
	ext := c.QueryParam("ext")
	if ext == "" {
		ext = ".wav"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	cfg := h.cfg
	if c.QueryParam("beats") == "true" {
		cfg.TrackBeats = true
	}

	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	w, err := analysis.DecodeMono(bytes.NewReader(data), ext)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "decode_failed", Error: err.Error()})
	}

	result, err := analysis.Analyze(w, cfg)
	switch {
	case errors.Is(err, analysis.ErrNoSignal):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Code: "no_signal", Error: err.Error()})
	case errors.Is(err, analysis.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Error: err.Error()})
	case err != nil:
		return err
	}

	return c.JSON(http.StatusOK, AnalyzeResponse{
		BPM:      result.BPM,
		Beats:    result.Beats,
		Duration: result.Duration,
	})
}

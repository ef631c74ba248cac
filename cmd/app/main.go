// CLI for tempo analysis, click track generation and the web server.
package main

import (
	"fmt"
	"os"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/nzoschke/bpmbat/pkg/analysis"
	"github.com/nzoschke/bpmbat/pkg/metronome"
	"github.com/nzoschke/bpmbat/pkg/server"
)

var logger = log.New("app")

var rootCmd = &cobra.Command{
	Use:   "app",
	Short: "Tempo analysis and click track generation",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logger.SetLevel(log.DEBUG)
			analysis.Logger().SetLevel(log.DEBUG)
		}
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|directory>",
	Short: "Estimate BPM of an audio file, or create JSON sidecars for a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := analysisConfig(cmd)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		return runAnalyze(args[0], force, cfg)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a metronome click track as a 16-bit WAV file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bpm, _ := cmd.Flags().GetFloat64("bpm")
		duration, _ := cmd.Flags().GetFloat64("duration")
		sampleRate, _ := cmd.Flags().GetInt("sample-rate")
		output, _ := cmd.Flags().GetString("output")

		opts := metronome.DefaultOptions()
		if cmd.Flags().Changed("seed") {
			seed, _ := cmd.Flags().GetUint64("seed")
			opts = opts.WithSeed(seed)
		}
		return runGenerate(bpm, duration, sampleRate, output, opts)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		dir, _ := cmd.Flags().GetString("dir")

		cfg := server.DefaultConfig()
		cfg.Dir = dir
		return runServe(addr, cfg)
	},
}

func init() {
	defaults := analysis.DefaultConfig()

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	analyzeCmd.Flags().BoolP("force", "f", false, "Force re-analysis even if JSON exists")
	analyzeCmd.Flags().BoolP("beats", "b", false, "Track individual beats")
	analyzeCmd.Flags().Int("frame-size", defaults.FrameSize, "STFT window length in samples")
	analyzeCmd.Flags().Int("hop-size", defaults.HopSize, "Samples between envelope frames")
	analyzeCmd.Flags().Float64("min-bpm", defaults.MinBPM, "Slowest tempo considered")
	analyzeCmd.Flags().Float64("max-bpm", defaults.MaxBPM, "Fastest tempo considered")
	analyzeCmd.Flags().Float64("prior-bpm", defaults.PriorBPM, "Center of the tempo prior")

	generateCmd.Flags().Float64("bpm", 120, "Tempo in beats per minute")
	generateCmd.Flags().Float64("duration", 10, "Length in seconds")
	generateCmd.Flags().Int("sample-rate", 44100, "Sample rate in Hz")
	generateCmd.Flags().StringP("output", "o", "click.wav", "Output WAV path")
	generateCmd.Flags().Uint64("seed", 0, "Fix the click noise seed")

	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().String("dir", "music", "Music library directory")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// analysisConfig builds an analysis config from the analyze flags.
func analysisConfig(cmd *cobra.Command) (analysis.Config, error) {
	cfg := analysis.DefaultConfig()
	cfg.TrackBeats, _ = cmd.Flags().GetBool("beats")
	cfg.FrameSize, _ = cmd.Flags().GetInt("frame-size")
	cfg.HopSize, _ = cmd.Flags().GetInt("hop-size")
	cfg.MinBPM, _ = cmd.Flags().GetFloat64("min-bpm")
	cfg.MaxBPM, _ = cmd.Flags().GetFloat64("max-bpm")
	cfg.PriorBPM, _ = cmd.Flags().GetFloat64("prior-bpm")

	if err := cfg.Validate(); err != nil {
		return analysis.Config{}, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}

func runAnalyze(path string, force bool, cfg analysis.Config) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return analysis.AnalyzeDir(path, force, cfg)
	}

	ta, err := analysis.AnalyzeFile(path, cfg)
	if err != nil {
		return err
	}
	if ta.Error != "" {
		return fmt.Errorf("%s: %s", ta.File, ta.Error)
	}

	logger.Debugf("%s: %.1fs at %d Hz", ta.File, ta.Duration, ta.SampleRate)
	fmt.Printf("%.2f\n", ta.BPM)
	for _, b := range ta.Beats {
		fmt.Printf("%.3f\n", b)
	}
	return nil
}

func runGenerate(bpm, duration float64, sampleRate int, output string, opts metronome.Options) error {
	w, err := metronome.Generate(bpm, duration, sampleRate, opts)
	if err != nil {
		return err
	}
	if err := metronome.WriteWAVFile(output, w); err != nil {
		return err
	}
	logger.Infof("Wrote %s (%.1f BPM, %.1fs, %d Hz)", output, bpm, duration, sampleRate)
	return nil
}

func runServe(addr string, cfg server.Config) error {
	logger.Infof("Serving %s on %s", cfg.Dir, addr)
	return server.Run(addr, cfg)
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/audio"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/format"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/transcribe"
)

// ProbeCmd creates the probe command, a diagnostic window onto the metadata
// probe and the chunk-vs-single decision.
func ProbeCmd(env *Env) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "probe <audio-file>",
		Short: "Inspect an audio file and show the chunking decision",
		Long: `Probe an audio file and report its size, container format and duration,
plus whether transcription would send it whole or chunk it first.

Probing is best-effort: without ffprobe the duration is reported as unknown
and the decision falls back to file size.`,
		Example: `  vegvisr-audio probe lecture.mp3
  vegvisr-audio probe recording.wav --config ./config.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, env, args[0], configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")

	return cmd
}

func runProbe(cmd *cobra.Command, env *Env, inputPath, configPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, inputPath)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}

	cfg, err := loadConfig(env, configPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(inputPath) // #nosec G304 -- user-specified input file
	if err != nil {
		return fmt.Errorf("cannot read input file: %w", err)
	}
	src := audio.Source{Name: filepath.Base(inputPath), Data: data}

	ffprobePath, err := env.BinaryResolver.ResolveFFprobe()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: %v (duration detection disabled)\n", err)
	}

	info := env.AudioFactory.NewProber(ffprobePath).Probe(cmd.Context(), src)

	fmt.Fprintf(env.Stdout, "File:     %s\n", src.Name)
	fmt.Fprintf(env.Stdout, "Size:     %s\n", format.Size(src.Size()))
	if info.Format != "" {
		fmt.Fprintf(env.Stdout, "Format:   %s\n", info.Format)
	}
	if info.DurationKnown {
		fmt.Fprintf(env.Stdout, "Duration: %s\n", format.Duration(info.Duration))
	} else {
		fmt.Fprintln(env.Stdout, "Duration: unknown")
	}
	fmt.Fprintf(env.Stdout, "Decision: %s\n", probeDecision(info, src, cfg.Audio.ChunkDuration()))

	return nil
}

// probeDecision mirrors the orchestrator's split rule: a known duration wins,
// size decides only when the probe came back empty.
func probeDecision(info audio.Info, src audio.Source, chunkDuration time.Duration) string {
	if info.DurationKnown {
		if info.Duration > chunkDuration {
			chunks := (info.Duration + chunkDuration - 1) / chunkDuration
			return fmt.Sprintf("chunked (~%d chunks of %s)", int(chunks), chunkDuration)
		}
		return "single-shot (fits in one request)"
	}

	threshold := format.Size(transcribe.ChunkThresholdBytes)
	if src.Size() > transcribe.ChunkThresholdBytes {
		return fmt.Sprintf("chunked (duration unknown, size over %s)", threshold)
	}
	return fmt.Sprintf("single-shot (duration unknown, size under %s)", threshold)
}

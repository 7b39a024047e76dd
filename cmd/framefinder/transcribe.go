package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/framefinder/internal/ai"
	"github.com/kikiluvv/framefinder/internal/config"
	"github.com/kikiluvv/framefinder/internal/ffmpeg"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [media file]",
	Short: "Transcribe the audio track of a video or audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		input := args[0]

		exec, err := ffmpeg.New(log.Logger, cfg.FFmpeg.BinaryPath, cfg.FFmpeg.Threads)
		if err != nil {
			return fmt.Errorf("failed to initialize ffmpeg: %w", err)
		}

		info, err := exec.ProbeVideo(cmd.Context(), input)
		if err != nil {
			return fmt.Errorf("failed to probe input: %w", err)
		}
		if !info.HasAudio {
			return fmt.Errorf("%s has no audio stream", input)
		}

		tmpDir, err := os.MkdirTemp("", "framefinder-audio-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmpDir)

		audioPath := filepath.Join(tmpDir, "audio.wav")
		if err := exec.ExtractAudio(cmd.Context(), input, audioPath, ffmpeg.DefaultWhisperFormat(), nil); err != nil {
			return fmt.Errorf("failed to extract audio: %w", err)
		}

		client, err := ai.NewClient(cfg.AI)
		if err != nil {
			return err
		}

		f, err := os.Open(audioPath)
		if err != nil {
			return err
		}
		defer f.Close()

		text, err := ai.NewWhisperTranscriber(log.Logger, client, cfg.AI.TranscribeModel).Transcribe(cmd.Context(), filepath.Base(audioPath), f)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	},
}

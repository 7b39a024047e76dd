package main

import (
	"encoding/json"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/framefinder/internal/config"
	"github.com/kikiluvv/framefinder/internal/manifest"
	"github.com/kikiluvv/framefinder/internal/pipeline"
	"github.com/kikiluvv/framefinder/internal/store"
)

var (
	overwriteFrames bool
	dryRun          bool
	framesFile      string
	movieName       string
	printManifest   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [input video]",
	Short: "Sample frames named by timestamp",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := pipeline.New(log.Logger, cfg, nil)
		if err != nil {
			return err
		}

		dir, frames, err := pipe.Extract(cmd.Context(), args[0], overwriteFrames)
		if err != nil {
			return err
		}

		log.Info().
			Str("dir", dir).
			Int("frames", len(frames)).
			Msg("extraction complete")
		return nil
	},
}

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Segment a frames document into shots and scenes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		st, err := openStore(cmd, cfg, dryRun)
		if err != nil {
			return err
		}
		defer closeStore(st)

		pipe, err := pipeline.New(log.Logger, cfg, st)
		if err != nil {
			return err
		}

		var res *pipeline.Result
		if framesFile == "-" {
			res, err = pipe.SegmentFrames(cmd.Context(), movieName, cmd.InOrStdin(), dryRun)
		} else {
			res, err = pipe.SegmentFramesFile(cmd.Context(), movieName, framesFile, dryRun)
		}
		if err != nil {
			return err
		}

		if printManifest || dryRun {
			return manifest.Encode(cmd.OutOrStdout(), res.Manifest, manifest.VariantAuto)
		}
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index [input video]",
	Short: "Extract, fingerprint, segment and store a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		st, err := openStore(cmd, cfg, dryRun)
		if err != nil {
			return err
		}
		defer closeStore(st)

		pipe, err := pipeline.New(log.Logger, cfg, st)
		if err != nil {
			return err
		}

		res, err := pipe.Index(cmd.Context(), args[0], pipeline.IndexOptions{
			Overwrite: overwriteFrames,
			DryRun:    dryRun,
		})
		if err != nil {
			return err
		}

		log.Info().
			Str("movie", res.Manifest.MovieName).
			Int("scenes", res.Stats.Scenes).
			Int("shots", res.Stats.Shots).
			Dur("elapsed", res.Elapsed).
			Msg("index complete")

		if printManifest || dryRun {
			return manifest.Encode(cmd.OutOrStdout(), res.Manifest, manifest.VariantAuto)
		}
		return nil
	},
}

func openStore(cmd *cobra.Command, cfg *config.Config, skip bool) (store.Store, error) {
	if skip {
		return nil, nil
	}
	return store.Open(cmd.Context(), log.Logger, cfg.Storage)
}

func closeStore(st store.Store) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close store")
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	extractCmd.Flags().BoolVar(&overwriteFrames, "overwrite", false, "re-extract even when frames exist")

	segmentCmd.Flags().StringVar(&framesFile, "frames", "", "frames document (JSON lines, - for stdin)")
	segmentCmd.Flags().StringVar(&movieName, "movie", "", "movie name recorded in the manifest")
	segmentCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the manifest without storing it")
	segmentCmd.Flags().BoolVar(&printManifest, "print", false, "print the manifest")
	_ = segmentCmd.MarkFlagRequired("frames")
	_ = segmentCmd.MarkFlagRequired("movie")

	indexCmd.Flags().BoolVar(&overwriteFrames, "overwrite", false, "re-extract even when frames exist")
	indexCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the manifest without storing it")
	indexCmd.Flags().BoolVar(&printManifest, "print", false, "print the manifest")
}

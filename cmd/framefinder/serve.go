package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/framefinder/internal/ai"
	"github.com/kikiluvv/framefinder/internal/config"
	"github.com/kikiluvv/framefinder/internal/products"
	"github.com/kikiluvv/framefinder/internal/server"
	"github.com/kikiluvv/framefinder/internal/store"
)

var (
	serveAddr  string
	serveMovie string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search and transcription API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		movie := serveMovie
		if movie == "" {
			movie = cfg.Server.Movie
		}

		st, err := store.Open(cmd.Context(), log.Logger, cfg.Storage)
		if err != nil {
			return err
		}
		defer closeStore(st)

		opts := server.Options{
			Store:   st,
			Movie:   movie,
			Workers: cfg.Concurrency,
		}

		annotations := cfg.Server.Products
		if annotations == "" && movie != "" {
			annotations = cfg.ProductsPath(movie)
		}
		if annotations != "" {
			doc, err := products.Load(annotations)
			switch {
			case err == nil:
				opts.Products = doc
			case errors.Is(err, os.ErrNotExist):
				log.Warn().Str("file", annotations).Msg("no product annotations, product search disabled")
			default:
				return err
			}
		}

		client, err := ai.NewClient(cfg.AI)
		if err == nil {
			opts.Transcriber = ai.NewWhisperTranscriber(log.Logger, client, cfg.AI.TranscribeModel)
		} else {
			log.Warn().Err(err).Msg("transcription disabled")
		}

		return server.New(log.Logger, opts).ListenAndServe(cmd.Context(), addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveMovie, "movie", "", "default movie for frame search")
}

package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/framefinder/internal/ai"
	"github.com/kikiluvv/framefinder/internal/config"
	"github.com/kikiluvv/framefinder/internal/products"
	"github.com/kikiluvv/framefinder/internal/store"
	"github.com/kikiluvv/framefinder/pkg/util"
)

var (
	framesDir    string
	rangeStart   string
	rangeEnd     string
	productsFile string
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Product detection commands",
}

var productsDetectCmd = &cobra.Command{
	Use:   "detect [movie]",
	Short: "Detect products in the representative frame of every shot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		movie := args[0]

		st, err := store.Open(cmd.Context(), log.Logger, cfg.Storage)
		if err != nil {
			return err
		}
		defer closeStore(st)

		m, err := st.Load(cmd.Context(), movie)
		if err != nil {
			return err
		}

		client, err := ai.NewClient(cfg.AI)
		if err != nil {
			return err
		}
		detector, err := ai.NewVisionDetector(log.Logger, client, cfg.AI.VisionModel, cfg.AI.PromptFile, cfg.AI.MaxTokens)
		if err != nil {
			return err
		}

		dir := framesDir
		if dir == "" {
			dir = cfg.FramesDir(movie)
		}

		doc, err := products.NewAnnotator(log.Logger, detector, cfg.Concurrency).Annotate(cmd.Context(), m, dir)
		if err != nil {
			return err
		}

		out := productsPath(cfg, movie)
		if err := products.Save(out, doc); err != nil {
			return err
		}

		log.Info().Str("output", out).Msg("product annotations saved")
		return nil
	},
}

var productsSearchCmd = &cobra.Command{
	Use:   "search [movie]",
	Short: "List annotated products between two timestamps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		doc, err := products.Load(productsPath(cfg, args[0]))
		if err != nil {
			return err
		}

		start, err := util.ParseTimestamp(rangeStart)
		if err != nil {
			return err
		}
		end, err := util.ParseTimestamp(rangeEnd)
		if err != nil {
			return err
		}

		results, err := doc.Search(start.Seconds(), end.Seconds())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), map[string]any{"results": results})
	},
}

func productsPath(cfg *config.Config, movie string) string {
	if productsFile != "" {
		return productsFile
	}
	return cfg.ProductsPath(movie)
}

func init() {
	productsCmd.PersistentFlags().StringVar(&productsFile, "file", "", "products document (default: <work_dir>/products/<movie>.json)")

	productsDetectCmd.Flags().StringVar(&framesDir, "frames-dir", "", "directory holding the extracted frames")

	productsSearchCmd.Flags().StringVar(&rangeStart, "start", "0", "range start (seconds or HH:MM:SS.mmm)")
	productsSearchCmd.Flags().StringVar(&rangeEnd, "end", "0", "range end (seconds or HH:MM:SS.mmm)")

	productsCmd.AddCommand(productsDetectCmd)
	productsCmd.AddCommand(productsSearchCmd)
}

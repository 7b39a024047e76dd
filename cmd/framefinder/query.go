package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/framefinder/internal/config"
	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/query"
	"github.com/kikiluvv/framefinder/internal/store"
)

var (
	descriptorFile string
	topN           int
)

var queryCmd = &cobra.Command{
	Use:   "query [movie]",
	Short: "Find the indexed frame most similar to a descriptor",
	Long: `Reads a descriptor document ({"rgb_grid": {"r,c": [r, g, b], ...}}) and prints
the best matching frame of the movie. With --top and the postgres backend the
database returns the N nearest frames instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		q, err := readDescriptor(cmd.InOrStdin(), descriptorFile)
		if err != nil {
			return err
		}

		st, err := store.Open(cmd.Context(), log.Logger, cfg.Storage)
		if err != nil {
			return err
		}
		defer closeStore(st)

		if topN > 0 {
			pg, ok := st.(*store.Postgres)
			if !ok {
				return fmt.Errorf("--top requires the postgres storage backend")
			}
			grid, ok := q.Grid()
			if !ok {
				return fmt.Errorf("%w: query is %s", descriptor.ErrShapeMismatch, q.Kind())
			}
			candidates, err := pg.Nearest(cmd.Context(), args[0], grid, topN)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), candidates)
		}

		m, err := st.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		match, err := query.Engine{Workers: cfg.Concurrency}.FindBestMatch(q, m)
		if err != nil {
			return err
		}
		if match == nil {
			return errors.New("no results")
		}
		return writeJSON(cmd.OutOrStdout(), match)
	},
}

func readDescriptor(stdin io.Reader, path string) (descriptor.Descriptor, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return descriptor.Descriptor{}, err
		}
		defer f.Close()
		r = f
	}

	var fields descriptor.Fields
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return descriptor.Descriptor{}, fmt.Errorf("invalid descriptor document: %w", err)
	}
	return fields.Descriptor()
}

func init() {
	queryCmd.Flags().StringVar(&descriptorFile, "descriptor", "-", "descriptor document (- for stdin)")
	queryCmd.Flags().IntVar(&topN, "top", 0, "return the N nearest frames (postgres backend)")
}

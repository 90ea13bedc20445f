package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/embedstore/storage"
	"github.com/hupe1980/embedstore/storage/file"
)

func newInspectCmd(v *viper.Viper) *cobra.Command {
	var (
		keys    []int64
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show persisted rows of a backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}
			cfg, err := s.storeConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			rowSize := cfg.Dim * elemBytes
			backend, err := openBackend(ctx, s, rowSize, s.resourceController())
			if err != nil {
				return fmt.Errorf("opening %s backend: %w", s.Backend.Kind, err)
			}
			defer backend.Close()

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "backend\t%s\n", s.Backend.Kind)
			fmt.Fprintf(tw, "namespace\t%s\n", storage.Namespace(cfg.EmbeddingKey))
			fmt.Fprintf(tw, "row bytes\t%d\n", rowSize)

			if counter, ok := backend.(storage.Counter); ok {
				n, err := counter.Len(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "rows\t%d\n", n)
			}
			if fb, ok := backend.(*file.Backend); ok {
				if compact {
					if err := fb.Compact(ctx); err != nil {
						return err
					}
				}
				fmt.Fprintf(tw, "path\t%s\n", fb.Path())
				fmt.Fprintf(tw, "garbage bytes\t%d\n", fb.Garbage())
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(keys) == 0 {
				if lister, ok := backend.(storage.Lister); ok {
					all, err := lister.Keys(ctx)
					if err != nil {
						return err
					}
					for _, k := range all[:min(len(all), 10)] {
						keys = append(keys, int64(k))
					}
				}
			}
			if len(keys) == 0 {
				return nil
			}

			wide := make([]uint64, len(keys))
			for i, k := range keys {
				wide[i] = uint64(k)
			}
			raw := make([]byte, len(keys)*rowSize)
			if err := backend.Read(ctx, wide, raw); err != nil {
				return err
			}

			for i, k := range keys {
				fmt.Fprintf(out, "%d: %v\n", k, decodeRow(storage.Row(raw, rowSize, i)))
			}
			return nil
		},
	}

	cmd.Flags().Int64SliceVar(&keys, "keys", nil, "keys to print (comma separated)")
	cmd.Flags().BoolVar(&compact, "compact", false, "compact a file backend before reporting")

	return cmd
}

// decodeRow interprets row bytes as host-order float32 values.
func decodeRow(row []byte) []float32 {
	out := make([]float32, len(row)/elemBytes)
	for i := range out {
		out[i] = math.Float32frombits(binary.NativeEndian.Uint32(row[i*elemBytes:]))
	}
	return out
}

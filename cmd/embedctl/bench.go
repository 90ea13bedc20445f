package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newBenchCmd(v *viper.Viper) *cobra.Command {
	var w workload

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a random Get/Put workload and report throughput",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}
			if w.Keys <= 0 {
				w.Keys = int64(4 * s.Table.Capacity)
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx, s, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			res, runErr := runWorkload(ctx, sess.store, w, nil)
			closeErr := sess.close()
			if runErr != nil {
				return runErr
			}
			if closeErr != nil {
				return closeErr
			}

			st := sess.store.Stats()
			ms := sess.metrics.GetStats()
			seconds := res.Elapsed.Seconds()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "backend\t%s\n", s.Backend.Kind)
			fmt.Fprintf(tw, "policy\t%s\n", s.Cache.Policy)
			fmt.Fprintf(tw, "operations\t%d\n", res.Ops)
			fmt.Fprintf(tw, "rows\t%d\n", res.Rows)
			fmt.Fprintf(tw, "elapsed\t%s\n", res.Elapsed)
			if seconds > 0 {
				fmt.Fprintf(tw, "rows/s\t%.0f\n", float64(res.Rows)/seconds)
			}
			fmt.Fprintf(tw, "hit rate\t%.3f\n", st.HitRate())
			fmt.Fprintf(tw, "evictions\t%d\n", st.Evictions)
			fmt.Fprintf(tw, "backend reads\t%d\n", st.BackendReads)
			fmt.Fprintf(tw, "backend writes\t%d\n", st.BackendWrites)
			fmt.Fprintf(tw, "avg get\t%dns\n", ms.GetAvgNanos)
			fmt.Fprintf(tw, "avg put\t%dns\n", ms.PutAvgNanos)
			return tw.Flush()
		},
	}

	f := cmd.Flags()
	f.IntVar(&w.Ops, "ops", 1000, "number of batched operations")
	f.IntVar(&w.Batch, "batch", 64, "maximum keys per batch")
	f.Int64Var(&w.Keys, "keys", 0, "key space size (default 4x capacity)")
	f.Float64Var(&w.PutRatio, "put-ratio", 0.5, "fraction of operations that are puts")
	f.Uint64Var(&w.Seed, "seed", 1, "workload seed")

	return cmd
}

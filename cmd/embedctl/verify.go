package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	var w workload

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run a random workload and check slot invariants after every operation",
		Long: "verify compares every Get against the rows the run wrote and checks that " +
			"resident keys and free slots partition the store after each operation.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}
			if w.Keys <= 0 {
				w.Keys = int64(2 * s.Table.Capacity)
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx, s, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			res, runErr := runWorkload(ctx, sess.store, w, func(op int) error {
				if err := sess.store.CheckInvariants(); err != nil {
					return fmt.Errorf("op %d: %w", op, err)
				}
				return nil
			})
			closeErr := sess.close()
			if runErr != nil {
				return runErr
			}
			if closeErr != nil {
				return closeErr
			}

			st := sess.store.Stats()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d operations, %d rows, %d evictions, %d backend reads\n",
				res.Ops, res.Rows, st.Evictions, st.BackendReads)
			return err
		},
	}

	f := cmd.Flags()
	f.IntVar(&w.Ops, "ops", 2000, "number of batched operations")
	f.IntVar(&w.Batch, "batch", 8, "maximum keys per batch")
	f.Int64Var(&w.Keys, "keys", 0, "key space size (default 2x capacity)")
	f.Float64Var(&w.PutRatio, "put-ratio", 0.5, "fraction of operations that are puts")
	f.Uint64Var(&w.Seed, "seed", 1, "workload seed")

	return cmd
}

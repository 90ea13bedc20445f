package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates the root embedctl command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "embedctl",
		Short:         "Operate tiered embedding stores",
		Long:          "embedctl drives a dense embedding store against a configured backend to benchmark it, verify its invariants and inspect persisted rows.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(v, cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "path to config file")
	pf.BoolP("verbose", "v", false, "enable debug logging")
	pf.String("backend", "", "backend kind: memory, file, bolt, sqlite, local, s3, minio, dynamo")
	pf.String("path", "", "backend path (file, bolt, sqlite, local)")
	pf.String("compression", "", "row compression: none, lz4, zstd")
	pf.Int("capacity", 0, "resident rows")
	pf.Int("dim", 0, "elements per row")
	pf.Int32("embedding-key", 0, "table identifier")
	pf.String("policy", "", "cache policy: lru, lfu, fifo, random")

	root.AddCommand(
		newBenchCmd(v),
		newVerifyCmd(v),
		newInspectCmd(v),
		newVersionCmd(),
	)

	return root
}

var flagKeys = map[string]string{
	"verbose":       "log.verbose",
	"backend":       "backend.kind",
	"path":          "backend.path",
	"compression":   "backend.compression",
	"capacity":      "table.capacity",
	"dim":           "table.dim",
	"embedding-key": "table.embedding_key",
	"policy":        "cache.policy",
}

// initViper applies defaults, environment, an optional config file and
// flags, in increasing precedence.
func initViper(v *viper.Viper, cmd *cobra.Command) error {
	setDefaults(v)

	v.SetEnvPrefix("EMBEDCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("embedctl")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("reading config: %w", err)
			}
		}
	}

	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding %s flag: %w", flag, err)
		}
	}
	return nil
}

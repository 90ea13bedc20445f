package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/hupe1980/embedstore"
	"github.com/hupe1980/embedstore/resource"
)

type settings struct {
	Table     tableSettings    `mapstructure:"table"`
	Cache     cacheSettings    `mapstructure:"cache"`
	Backend   backendSettings  `mapstructure:"backend"`
	Resources resourceSettings `mapstructure:"resources"`
	Log       logSettings      `mapstructure:"log"`
}

type tableSettings struct {
	EmbeddingKey   int32  `mapstructure:"embedding_key"`
	Dim            int    `mapstructure:"dim"`
	Capacity       int    `mapstructure:"capacity"`
	DType          string `mapstructure:"dtype"`
	FlushBatchSize int    `mapstructure:"flush_batch_size"`
	// BufferPath maps the value buffer onto a file instead of the heap.
	BufferPath string `mapstructure:"buffer_path"`
}

type cacheSettings struct {
	Policy string `mapstructure:"policy"`
	Seed   uint64 `mapstructure:"seed"`
}

type backendSettings struct {
	Kind        string `mapstructure:"kind"`
	Path        string `mapstructure:"path"`
	Compression string `mapstructure:"compression"`
	SyncOnWrite bool   `mapstructure:"sync_on_write"`

	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Secure    bool   `mapstructure:"secure"`

	Table       string `mapstructure:"table"`
	Concurrency int    `mapstructure:"concurrency"`
}

type resourceSettings struct {
	MemoryLimitBytes      int64 `mapstructure:"memory_limit_bytes"`
	MaxConcurrentRequests int64 `mapstructure:"max_concurrent_requests"`
	IOLimitBytesPerSec    int64 `mapstructure:"io_limit_bytes_per_sec"`
}

type logSettings struct {
	Verbose bool   `mapstructure:"verbose"`
	Format  string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("table.embedding_key", 0)
	v.SetDefault("table.dim", 16)
	v.SetDefault("table.capacity", 1024)
	v.SetDefault("table.dtype", "float32")
	v.SetDefault("table.flush_batch_size", embedstore.DefaultFlushBatchSize)
	v.SetDefault("table.buffer_path", "")

	v.SetDefault("cache.policy", "lru")
	v.SetDefault("cache.seed", 1)

	v.SetDefault("backend.kind", "memory")
	v.SetDefault("backend.path", "")
	v.SetDefault("backend.compression", "none")
	v.SetDefault("backend.sync_on_write", false)
	v.SetDefault("backend.bucket", "")
	v.SetDefault("backend.prefix", "")
	v.SetDefault("backend.region", "")
	v.SetDefault("backend.endpoint", "")
	v.SetDefault("backend.access_key", "")
	v.SetDefault("backend.secret_key", "")
	v.SetDefault("backend.secure", true)
	v.SetDefault("backend.table", "embeddings")
	v.SetDefault("backend.concurrency", 16)

	v.SetDefault("resources.memory_limit_bytes", 0)
	v.SetDefault("resources.max_concurrent_requests", 16)
	v.SetDefault("resources.io_limit_bytes_per_sec", 0)

	v.SetDefault("log.verbose", false)
	v.SetDefault("log.format", "text")
}

func loadSettings(v *viper.Viper) (settings, error) {
	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}

// storeConfig converts the table section into a validated store config.
// The CLI drives float32 tables only.
func (s settings) storeConfig() (embedstore.Config, error) {
	dtype, err := embedstore.ParseDType(s.Table.DType)
	if err != nil {
		return embedstore.Config{}, err
	}
	if dtype != embedstore.DTypeUnset && dtype != embedstore.DTypeFloat32 {
		return embedstore.Config{}, fmt.Errorf("embedctl supports float32 tables, got %s", dtype)
	}

	cfg := embedstore.Config{
		EmbeddingKey:   s.Table.EmbeddingKey,
		Dim:            s.Table.Dim,
		Capacity:       s.Table.Capacity,
		DType:          dtype,
		FlushBatchSize: s.Table.FlushBatchSize,
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return embedstore.Config{}, err
	}
	return cfg, nil
}

func (s settings) resourceController() *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:      s.Resources.MemoryLimitBytes,
		MaxConcurrentRequests: s.Resources.MaxConcurrentRequests,
		IOLimitBytesPerSec:    s.Resources.IOLimitBytesPerSec,
	})
}

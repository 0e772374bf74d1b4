package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/blocks"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/config"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence/redis"
	"github.com/Layr-Labs/eigenx-merkle-go/pkg/rootService"
)

// runtime bundles what every command needs. Close releases the store and flushes the logger.
type runtime struct {
	cfg     *config.MerkleConfig
	logger  *zap.Logger
	store   persistence.IRootPersistence
	service *rootService.RootService
}

func parseMerkleConfig(c *cli.Context) *config.MerkleConfig {
	return &config.MerkleConfig{
		Hasher:      c.String("hash"),
		Persistence: config.PersistenceType(c.String("persistence")),
		DataPath:    c.String("data-path"),
		Redis: config.RedisConfig{
			Address:   c.String("redis-address"),
			Password:  c.String("redis-password"),
			DB:        c.Int("redis-db"),
			KeyPrefix: c.String("redis-key-prefix"),
		},
		Verbose: c.Bool("verbose"),
	}
}

func newRuntime(c *cli.Context) (*runtime, error) {
	cfg := parseMerkleConfig(c)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	hasher, err := cfg.GetHasher()
	if err != nil {
		return nil, err
	}

	store, err := newStore(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence: %w", err)
	}

	if err := store.HealthCheck(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("persistence health check failed: %w", err)
	}

	service, err := rootService.NewRootService(store, hasher, l)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create root service: %w", err)
	}

	l.Sugar().Debugw("Runtime initialized",
		"hasher", hasher.Name(),
		"persistence", cfg.Persistence.String(),
	)

	return &runtime{
		cfg:     cfg,
		logger:  l,
		store:   store,
		service: service,
	}, nil
}

func (r *runtime) Close() {
	if err := r.store.Close(); err != nil {
		r.logger.Sugar().Warnw("Failed to close persistence", "error", err)
	}
	_ = r.logger.Sync()
}

func newStore(cfg *config.MerkleConfig, l *zap.Logger) (persistence.IRootPersistence, error) {
	switch cfg.Persistence {
	case config.PersistenceTypeBadger:
		return badger.NewBadgerPersistence(cfg.DataPath, l)
	case config.PersistenceTypeRedis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, l)
	default:
		return memory.NewMemoryPersistence(l), nil
	}
}

// openSource builds a block source from the input flags. The returned closer must be called.
func openSource(c *cli.Context) (blocks.Source, io.Closer, error) {
	var r io.ReadCloser
	input := c.String("input")
	if input == "" || input == "-" {
		r = io.NopCloser(c.App.Reader)
	} else {
		f, err := os.Open(input)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open input: %w", err)
		}
		r = f
	}

	if c.Bool("lines") {
		return blocks.NewLineSource(r), r, nil
	}
	return blocks.NewChunkSource(r, c.Int("block-size")), r, nil
}

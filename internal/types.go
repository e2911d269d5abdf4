package internal

import (
	"context"
	"fmt"
	"io"

	"sjsage522/webmonitor/config"
	"sjsage522/webmonitor/helpers"
	"sjsage522/webmonitor/internal/fetcher"
	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/logger"
	"sjsage522/webmonitor/services/cache"
	"sjsage522/webmonitor/services/notifier"
	"sjsage522/webmonitor/services/publisher"
	"sjsage522/webmonitor/services/store"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Store     *store.SQLStore
	Fetchers  monitor.Fetchers
	Notifier  *notifier.Notifier
	Cache     cache.CacheService
	Publisher publisher.Publisher

	closers []io.Closer
}

// NewDependencies wires every service selected by cfg. Optional services
// (memcache, redis) are skipped when their address is empty or unreachable.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}

	st, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	deps.Store = st
	deps.closers = append(deps.closers, st)

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err == nil {
			deps.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	fetchers, fetchCloser, err := fetcher.New(cfg, deps.Cache)
	if err != nil {
		deps.Cleanup()
		return nil, err
	}
	deps.Fetchers = fetchers
	deps.closers = append(deps.closers, fetchCloser)

	deps.Notifier = notifier.NewFromConfig(cfg)

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			logger.Warn("Alert stream disabled: %v", err)
			redisPublisher.Close()
		} else {
			deps.Publisher = redisPublisher
			deps.closers = append(deps.closers, redisPublisher)
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return deps, nil
}

// NewChecker builds the check pipeline over these dependencies
func (d *Dependencies) NewChecker(cfg *config.Config, log helpers.LoggerInterface) *monitor.Checker {
	var pub monitor.Publisher
	if d.Publisher != nil {
		pub = d.Publisher
	}
	return monitor.NewChecker(d.Fetchers, d.Store, d.Notifier, pub, log, cfg.FetchTimeout)
}

// Cleanup closes all services in reverse order
func (d *Dependencies) Cleanup() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			logger.Warn("Cleanup failed: %v", err)
		}
	}
	d.closers = nil
}

package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/taxonomix/backend/internal/config"
	"github.com/taxonomix/backend/internal/jobs"
	"github.com/taxonomix/backend/internal/logging"
	"github.com/taxonomix/backend/internal/metrics"
	"github.com/taxonomix/backend/internal/names"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.AppConfig
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.AppConfig, error) {
	c.configOnce.Do(func() {
		path := defaultConfigPath
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.LoadConfig(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*zap.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// services holds the shared collaborators every command builds from config.
type services struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	cache    names.Cache
	resolver *names.Resolver
	warmer   *names.Warmer
	store    jobs.Store
	tracker  *jobs.Tracker

	nats   *jobs.NATS
	logger *zap.Logger
}

// newServices wires cache, resolver, warmer and job tracking. With
// localJobs set the job store stays in process regardless of config.
func newServices(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, localJobs bool) (*services, error) {
	svc := &services{
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}
	svc.metrics = metrics.New(svc.registry)

	cache, err := names.OpenCache(cfg.Cache.Driver, cfg.Cache.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open name cache: %w", err)
	}
	svc.cache = cache

	gbif := names.NewGBIFClient(names.GBIFOptions{
		BaseURL:   cfg.GBIF.BaseURL,
		Timeout:   cfg.GBIFTimeout(),
		RateLimit: cfg.GBIF.RateLimit,
		Burst:     cfg.GBIF.Burst,
		UserAgent: "taxonomix/" + Version,
	})
	svc.resolver = names.NewResolver(cache, gbif, names.ResolverOptions{
		Workers: cfg.Processing.ResolveWorkers,
		Timeout: cfg.GBIFTimeout(),
		Metrics: svc.metrics,
		Logger:  logger,
	})
	svc.warmer = names.NewWarmer(svc.resolver, cfg.Processing.WarmWorkers, logger)

	svc.store = jobs.NewMemoryStore()
	if !localJobs && (cfg.Jobs.NATSURL != "" || cfg.Jobs.Embedded) {
		n, err := jobs.ConnectNATS(cfg.Jobs.NATSURL, cfg.Jobs.StoreDir, logger)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		svc.nats = n
		kv, err := jobs.NewKVStore(ctx, n.JetStream, cfg.Jobs.Bucket, cfg.JobTTL(), logger)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("open job store: %w", err)
		}
		svc.store = kv
	}
	svc.tracker = jobs.NewTracker(svc.store, logger)
	return svc, nil
}

// Close drains background warmups and releases the cache and NATS connection.
func (s *services) Close() {
	if s.warmer != nil {
		s.warmer.Wait()
	}
	if s.nats != nil {
		s.nats.Close()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("failed to close name cache", zap.Error(err))
		}
	}
}

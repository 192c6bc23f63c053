package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/api"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/config"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/influxdb"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/kafka"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/logger"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/processor"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/redis"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer client.Close()

	metrics, metricsCleanup, err := buildMetricStore(ctx, cfg, client)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics backend")
	}
	defer metricsCleanup()

	log.Info().Str("backend", cfg.Pipeline.MetricsBackend).Msg("metrics backend selected")

	pipeline := processor.NewPipeline(
		metrics,
		redis.NewStatsStore(client),
		redis.NewCapacityStore(client),
		redis.NewFeedStore(client),
		cfg.Pipeline,
		logger.Component(log, "pipeline"),
	)

	stores := api.Stores{
		Sites:    redis.NewSiteStore(client),
		Metrics:  metrics,
		Feed:     redis.NewFeedStore(client),
		Capacity: redis.NewCapacityStore(client),
	}

	var opts []api.Option
	if cfg.API.RateLimitEnabled {
		opts = append(opts, api.WithRateLimiter(
			buildRateLimiter(cfg, client),
			store.Limit{Interval: cfg.API.RateLimit.Interval, MaxHits: cfg.API.RateLimit.MaxHits},
		))
		log.Info().Str("algorithm", cfg.API.RateLimit.Algorithm).Msg("rate limiting enabled")
	}

	server := api.NewServer(pipeline, stores, logger.Component(log, "api"), opts...)

	var wg sync.WaitGroup

	if cfg.Kafka.Enabled {
		startConsumers(ctx, cfg, pipeline, log, &wg)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx, cfg.API.Addr); err != nil {
			log.Error().Err(err).Msg("http server failed")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("received termination signal, shutting down")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		pipeline.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("shutdown complete")
	case <-shutdownCtx.Done():
		log.Warn().Msg("shutdown timed out, forcing exit")
	}
}

// buildMetricStore selects the configured metrics backend.
func buildMetricStore(ctx context.Context, cfg *config.Config, client *redis.Client) (store.MetricStore, func(), error) {
	switch cfg.Pipeline.MetricsBackend {
	case config.MetricsBackendInfluxDB:
		influxStore, err := influxdb.NewMetricStore(ctx, cfg.InfluxDB)
		if err != nil {
			return nil, nil, err
		}
		return influxStore, influxStore.Close, nil
	default:
		return redis.NewMetricStore(client), func() {}, nil
	}
}

// buildRateLimiter selects the configured limiter algorithm.
func buildRateLimiter(cfg *config.Config, client *redis.Client) store.RateLimiter {
	if cfg.API.RateLimit.Algorithm == config.RateLimiterFixed {
		return redis.NewFixedWindowRateLimiter(client)
	}
	return redis.NewSlidingWindowRateLimiter(client)
}

// startConsumers launches the configured number of Kafka consumer group
// members, each feeding the shared pipeline.
func startConsumers(ctx context.Context, cfg *config.Config, pipeline *processor.Pipeline, log zerolog.Logger, wg *sync.WaitGroup) {
	consumerLog := logger.Component(log, "kafka")

	log.Info().Int("count", cfg.Kafka.ConsumerCount).Str("topic", cfg.Kafka.Topic).Msg("starting kafka consumers")

	for i := 0; i < cfg.Kafka.ConsumerCount; i++ {
		consumer, err := kafka.NewConsumer(
			fmt.Sprintf("consumer-%d", i),
			cfg.Kafka,
			pipeline.Enqueue,
			consumerLog,
		)
		if err != nil {
			log.Fatal().Err(err).Int("consumer", i).Msg("failed to create kafka consumer")
		}

		wg.Add(1)
		go func(c *kafka.Consumer, id int) {
			defer wg.Done()
			defer c.Close()

			if err := c.Consume(ctx); err != nil {
				log.Error().Err(err).Int("consumer", id).Msg("kafka consumer stopped with error")
			}
		}(consumer, i)
	}
}

// Command loader seeds a deployment: it registers sites from a JSON
// file and optionally generates historical meter readings for them
// through the real ingestion pipeline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/config"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/generator"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/logger"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/processor"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/redis"
)

func main() {
	sitesPath := flag.String("sites", "sites.json", "path to the sites JSON file")
	days := flag.Int("days", 0, "days of historical readings to generate (0 disables)")
	flush := flag.Bool("flush", false, "flush the Redis database before loading")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed for generated readings")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	client, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer client.Close()

	if *flush {
		if err := client.FlushDB(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to flush database")
		}
		log.Info().Msg("database flushed")
	}

	sites, err := loadSites(*sitesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *sitesPath).Msg("failed to load sites file")
	}

	siteStore := redis.NewSiteStore(client)
	for _, site := range sites {
		if _, err := siteStore.Insert(ctx, site); err != nil {
			log.Fatal().Err(err).Int64("site_id", site.ID).Msg("failed to insert site")
		}
	}

	log.Info().Int("sites", len(sites)).Msg("sites loaded")

	if *days == 0 {
		return
	}

	pipeline := processor.NewPipeline(
		redis.NewMetricStore(client),
		redis.NewStatsStore(client),
		redis.NewCapacityStore(client),
		redis.NewFeedStore(client),
		cfg.Pipeline,
		logger.Component(log, "pipeline"),
	)
	defer pipeline.Stop()

	g := generator.New(*seed, func() int64 { return time.Now().Unix() })

	log.Info().Int("days", *days).Msg("generating historical readings")

	if err := g.GenerateHistorical(ctx, sites, *days, pipeline.Ingest); err != nil {
		log.Fatal().Err(err).Msg("failed to generate historical readings")
	}

	log.Info().Msg("historical readings generated")
}

func loadSites(path string) ([]models.Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sites []models.Site
	if err := json.Unmarshal(data, &sites); err != nil {
		return nil, fmt.Errorf("parse sites JSON: %w", err)
	}

	return sites, nil
}

// Package processor fans incoming meter readings out to every
// projection: minute metrics, daily stats, the capacity ranking and the
// feeds. It is the single write path shared by the HTTP API and the
// Kafka consumers.
package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/config"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
)

// Pipeline applies readings to all projections.
type Pipeline struct {
	metrics  store.MetricStore
	stats    store.StatsStore
	capacity store.CapacityStore
	feed     store.FeedStore
	queue    chan []models.MeterReading
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// NewPipeline creates a pipeline and starts its workers.
func NewPipeline(
	metrics store.MetricStore,
	stats store.StatsStore,
	capacity store.CapacityStore,
	feed store.FeedStore,
	cfg config.PipelineConfig,
	log zerolog.Logger,
) *Pipeline {
	p := &Pipeline{
		metrics:  metrics,
		stats:    stats,
		capacity: capacity,
		feed:     feed,
		queue:    make(chan []models.MeterReading, cfg.QueueSize),
		log:      log,
	}

	p.wg.Add(cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		go p.worker(i)
	}

	return p
}

// Ingest applies one reading to every projection. The first failing
// projection aborts the rest, so a reading is either fully applied or
// reported as an error to the caller.
func (p *Pipeline) Ingest(ctx context.Context, reading models.MeterReading) error {
	if err := p.metrics.Insert(ctx, reading); err != nil {
		return fmt.Errorf("insert metrics: %w", err)
	}

	if err := p.stats.Update(ctx, reading); err != nil {
		return fmt.Errorf("update stats: %w", err)
	}

	if err := p.capacity.Update(ctx, reading); err != nil {
		return fmt.Errorf("update capacity ranking: %w", err)
	}

	if err := p.feed.Insert(ctx, reading); err != nil {
		return fmt.Errorf("insert feed entry: %w", err)
	}

	return nil
}

// Enqueue hands a batch of readings to the worker pool. When the queue
// is full the batch is dropped and logged rather than blocking the
// producer.
func (p *Pipeline) Enqueue(readings []models.MeterReading) error {
	batch := make([]models.MeterReading, len(readings))
	copy(batch, readings)

	select {
	case p.queue <- batch:
		return nil
	default:
		p.log.Warn().Int("dropped", len(readings)).Msg("ingestion queue full, dropping batch")
		return nil
	}
}

// Stop drains the queue and waits for the workers to finish.
func (p *Pipeline) Stop() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pipeline) worker(id int) {
	defer p.wg.Done()

	for batch := range p.queue {
		for _, reading := range batch {
			if err := p.Ingest(context.Background(), reading); err != nil {
				p.log.Error().
					Err(err).
					Int("worker", id).
					Int64("site_id", reading.SiteID).
					Msg("failed to ingest reading")
			}
		}
	}
}

// Package kafka consumes meter readings from a Kafka topic and hands
// them to the ingestion pipeline in batches.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/config"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
)

// BatchProcessor receives batches of decoded readings.
type BatchProcessor func([]models.MeterReading) error

// Consumer reads meter readings from a Kafka consumer group and buffers
// them into batches before handing them off.
type Consumer struct {
	id         string
	config     config.KafkaConfig
	consumer   sarama.ConsumerGroup
	processor  BatchProcessor
	msgBuffer  []models.MeterReading
	bufferLock sync.Mutex
	log        zerolog.Logger
}

// NewConsumer creates a Kafka consumer group member.
func NewConsumer(id string, cfg config.KafkaConfig, processor BatchProcessor, log zerolog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin

	saramaConfig.Consumer.Fetch.Min = 1
	saramaConfig.Consumer.Fetch.Default = 1024 * 1024
	saramaConfig.Consumer.MaxWaitTime = 250 * time.Millisecond

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		id:        id,
		config:    cfg,
		consumer:  client,
		processor: processor,
		msgBuffer: make([]models.MeterReading, 0, cfg.BatchSize),
		log:       log.With().Str("consumer", id).Logger(),
	}, nil
}

// Consume joins the consumer group and processes readings until the
// context is cancelled.
func (c *Consumer) Consume(ctx context.Context) error {
	errorChan := make(chan error)
	go func() {
		for err := range c.consumer.Errors() {
			c.log.Error().Err(err).Msg("consumer group error")
			errorChan <- err
		}
	}()

	handler := &consumerGroupHandler{
		consumer: c,
		ctx:      ctx,
	}

	flushTicker := time.NewTicker(c.config.BatchTimeout)
	defer flushTicker.Stop()

	go func() {
		for {
			select {
			case <-flushTicker.C:
				c.flushBuffer()
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.flushBuffer()
			return nil
		case err := <-errorChan:
			return err
		default:
			if err := c.consumer.Consume(ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, context.Canceled) {
					c.flushBuffer()
					return nil
				}
				return err
			}
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// addReading adds a reading to the buffer and flushes once the batch is
// full.
func (c *Consumer) addReading(reading models.MeterReading) {
	c.bufferLock.Lock()
	defer c.bufferLock.Unlock()

	c.msgBuffer = append(c.msgBuffer, reading)

	if len(c.msgBuffer) >= c.config.BatchSize {
		c.flushBufferLocked()
	}
}

func (c *Consumer) flushBuffer() {
	c.bufferLock.Lock()
	defer c.bufferLock.Unlock()

	c.flushBufferLocked()
}

func (c *Consumer) flushBufferLocked() {
	if len(c.msgBuffer) == 0 {
		return
	}

	readings := make([]models.MeterReading, len(c.msgBuffer))
	copy(readings, c.msgBuffer)

	c.msgBuffer = c.msgBuffer[:0]

	if err := c.processor(readings); err != nil {
		c.log.Error().Err(err).Int("batch_size", len(readings)).Msg("failed to process batch")
	}
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	consumer *Consumer
	ctx      context.Context
}

func (h *consumerGroupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if h.ctx.Err() != nil {
			return h.ctx.Err()
		}

		var reading models.MeterReading
		if err := json.Unmarshal(message.Value, &reading); err != nil {
			h.consumer.log.Warn().Err(err).Msg("skipping undecodable message")
			session.MarkMessage(message, "")
			continue
		}

		h.consumer.addReading(reading)
		session.MarkMessage(message, "")
	}
	return nil
}

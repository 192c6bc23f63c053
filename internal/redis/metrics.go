package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/timeutil"
)

const (
	metricsPerDay       = 24 * 60
	metricRetentionDays = 30
	metricExpiration    = metricRetentionDays*24*time.Hour + time.Second
	maxDaysToReturn     = 7
	daySeconds          = 24 * 60 * 60
)

// MetricStore keeps minute-level metric values in one sorted set per
// (site, metric, UTC day). Members are "<value>:<minuteOfDay>" scored by
// minute of day, which makes range reads come back in time order.
type MetricStore struct {
	c *Client
}

// NewMetricStore returns a MetricStore backed by the shared client.
func NewMetricStore(c *Client) *MetricStore {
	return &MetricStore{c: c}
}

var _ store.MetricStore = (*MetricStore)(nil)

// Insert projects the reading's three metrics into their day partitions.
// Values are rounded to two decimal places. Each partition's expiry is
// refreshed to the retention window on every write.
func (s *MetricStore) Insert(ctx context.Context, reading models.MeterReading) error {
	minuteOfDay := timeutil.MinuteOfDay(reading.DateTime)

	metrics := map[string]float64{
		models.MetricWhGenerated: reading.WhGenerated,
		models.MetricWhUsed:      reading.WhUsed,
		models.MetricTempC:       reading.TempC,
	}

	_, err := s.c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for unit, value := range metrics {
			key := s.c.keys.DayMetricKey(reading.SiteID, unit, reading.DateTime)

			pipe.ZAdd(ctx, key, goredis.Z{
				Score:  float64(minuteOfDay),
				Member: formatMeasurementMinute(value, minuteOfDay),
			})
			pipe.Expire(ctx, key, metricExpiration)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert metrics for site %d: %w", reading.SiteID, err)
	}

	return nil
}

// GetRecent returns up to limit measurements for one metric ending at
// timestamp, oldest first. It walks back one day partition at a time,
// newest first, and stops once limit is satisfied or maxDaysToReturn
// partitions have been scanned — a request spanning more than that many
// days returns fewer results than asked for.
func (s *MetricStore) GetRecent(ctx context.Context, siteID int64, metricUnit string, timestamp int64, limit int) ([]models.Measurement, error) {
	if limit > metricsPerDay*metricRetentionDays {
		return nil, &store.TooManyMetricsError{Requested: limit, RetentionDays: metricRetentionDays}
	}

	currentTimestamp := timestamp
	remaining := limit
	measurements := []models.Measurement{}

	for iterations := 0; ; iterations++ {
		day, err := s.measurementsForDate(ctx, siteID, metricUnit, currentTimestamp, remaining)
		if err != nil {
			return nil, err
		}

		measurements = append(day, measurements...)
		remaining -= len(day)
		currentTimestamp -= daySeconds

		if remaining <= 0 || iterations+1 >= maxDaysToReturn {
			break
		}
	}

	return measurements, nil
}

// measurementsForDate reads up to limit entries from a single day
// partition, returned in chronological order.
func (s *MetricStore) measurementsForDate(ctx context.Context, siteID int64, metricUnit string, timestamp int64, limit int) ([]models.Measurement, error) {
	key := s.c.keys.DayMetricKey(siteID, metricUnit, timestamp)

	// Newest minutes first, capped at limit.
	members, err := s.c.rdb.ZRevRange(ctx, key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read metric partition %s: %w", key, err)
	}

	measurements := make([]models.Measurement, len(members))

	for i, member := range members {
		value, minute, err := parseMeasurementMinute(member)
		if err != nil {
			return nil, fmt.Errorf("metric partition %s: %w", key, err)
		}

		// Fill back-to-front so the slice ends up oldest first.
		measurements[len(members)-1-i] = models.Measurement{
			SiteID:     siteID,
			DateTime:   timeutil.TimestampForMinuteOfDay(timestamp, minute),
			Value:      value,
			MetricUnit: metricUnit,
		}
	}

	return measurements, nil
}

func formatMeasurementMinute(value float64, minuteOfDay int) string {
	return fmt.Sprintf("%s:%d", strconv.FormatFloat(value, 'f', 2, 64), minuteOfDay)
}

func parseMeasurementMinute(member string) (float64, int, error) {
	parts := strings.SplitN(member, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed measurement member %q", member)
	}

	value, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed measurement value in %q: %w", member, err)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed measurement minute in %q: %w", member, err)
	}

	return value, minute, nil
}

// Package influxdb provides an InfluxDB v2 backed MetricStore. It is an
// alternative to the Redis metric store for deployments that already run
// InfluxDB for time series retention, selected via METRICS_BACKEND.
package influxdb

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/config"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/timeutil"
)

const (
	metricMeasurement = "site_metrics"

	metricsPerDay       = 1440
	metricRetentionDays = 30
	maxDaysToReturn     = 7
)

// MetricStore implements store.MetricStore on InfluxDB v2.
type MetricStore struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
}

var _ store.MetricStore = (*MetricStore)(nil)

// NewMetricStore initializes the InfluxDB client and verifies connectivity.
func NewMetricStore(ctx context.Context, cfg config.InfluxDBConfig) (*MetricStore, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to influxdb at %s: %w", cfg.URL, err)
	}

	return &MetricStore{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
	}, nil
}

// Insert writes one point per metric unit, timestamped at the reading's
// minute. Values are rounded to two decimal places so both metric
// backends report identical numbers.
func (s *MetricStore) Insert(ctx context.Context, reading models.MeterReading) error {
	minute := reading.DateTime - reading.DateTime%60
	ts := time.Unix(minute, 0).UTC()
	siteID := strconv.FormatInt(reading.SiteID, 10)

	for unit, value := range map[string]float64{
		models.MetricWhGenerated: reading.WhGenerated,
		models.MetricWhUsed:      reading.WhUsed,
		models.MetricTempC:       reading.TempC,
	} {
		point := write.NewPoint(
			metricMeasurement,
			map[string]string{
				"site_id": siteID,
				"unit":    unit,
			},
			map[string]interface{}{
				"value": math.Round(value*100) / 100,
			},
			ts,
		)

		if err := s.writeAPI.WritePoint(ctx, point); err != nil {
			return fmt.Errorf("write %s point for site %d: %w", unit, reading.SiteID, err)
		}
	}

	return nil
}

// GetRecent returns up to limit measurements for one metric ending at
// timestamp, oldest first. The query window is capped at the same number
// of days the Redis store will walk.
func (s *MetricStore) GetRecent(ctx context.Context, siteID int64, metricUnit string, timestamp int64, limit int) ([]models.Measurement, error) {
	if limit > metricsPerDay*metricRetentionDays {
		return nil, &store.TooManyMetricsError{
			Requested:     limit,
			RetentionDays: metricRetentionDays,
		}
	}

	start := timeutil.DayStart(timestamp) - int64(maxDaysToReturn-1)*24*60*60

	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: %d, stop: %d)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r.site_id == %q and r.unit == %q)
  |> filter(fn: (r) => r._field == "value")
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)
  |> sort(columns: ["_time"])`,
		s.bucket, start, timestamp+60, metricMeasurement,
		strconv.FormatInt(siteID, 10), metricUnit, limit)

	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("query %s metrics for site %d: %w", metricUnit, siteID, err)
	}
	defer result.Close()

	var measurements []models.Measurement

	for result.Next() {
		record := result.Record()

		value, ok := record.Value().(float64)
		if !ok {
			return nil, fmt.Errorf("unexpected value type %T in %s metrics for site %d",
				record.Value(), metricUnit, siteID)
		}

		measurements = append(measurements, models.Measurement{
			SiteID:     siteID,
			MetricUnit: metricUnit,
			DateTime:   record.Time().Unix(),
			Value:      value,
		})
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read %s metrics for site %d: %w", metricUnit, siteID, err)
	}

	return measurements, nil
}

// Close releases the underlying InfluxDB client.
func (s *MetricStore) Close() {
	s.client.Close()
}

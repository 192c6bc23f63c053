package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/timeutil"
)

const statsExpiration = 7 * 24 * time.Hour

// StatsStore maintains one hash of running aggregates per (site, UTC
// day). Counter updates use HINCRBY and the extremes use the atomic
// compare-and-update script, so the stored values stay exact no matter
// how writers interleave.
type StatsStore struct {
	c *Client
}

// NewStatsStore returns a StatsStore backed by the shared client.
func NewStatsStore(c *Client) *StatsStore {
	return &StatsStore{c: c}
}

var _ store.StatsStore = (*StatsStore)(nil)

// Update folds the reading into the aggregates for its (site, day).
func (s *StatsStore) Update(ctx context.Context, reading models.MeterReading) error {
	key := s.c.keys.SiteStatsKey(reading.SiteID, reading.DateTime)

	_, err := s.c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, "lastReportingTime", timeutil.CurrentTimestamp())
		pipe.HIncrBy(ctx, key, "meterReadingCount", 1)
		pipe.Expire(ctx, key, statsExpiration)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update stats for site %d: %w", reading.SiteID, err)
	}

	if err := s.c.UpdateIfGreater(ctx, key, "maxWhGenerated", reading.WhGenerated); err != nil {
		return err
	}

	if err := s.c.UpdateIfLess(ctx, key, "minWhGenerated", reading.WhGenerated); err != nil {
		return err
	}

	return s.c.UpdateIfGreater(ctx, key, "maxCapacity", reading.CurrentCapacity())
}

// FindByID returns the aggregates for the site on the UTC day containing
// timestamp, or store.ErrNotFound when the site has no stats for that
// day.
func (s *StatsStore) FindByID(ctx context.Context, siteID, timestamp int64) (models.SiteStats, error) {
	key := s.c.keys.SiteStatsKey(siteID, timestamp)

	fields, err := s.c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return models.SiteStats{}, fmt.Errorf("read stats %s: %w", key, err)
	}

	if len(fields) == 0 {
		return models.SiteStats{}, store.ErrNotFound
	}

	return decodeSiteStats(fields)
}

func decodeSiteStats(fields map[string]string) (models.SiteStats, error) {
	var stats models.SiteStats
	var err error

	if stats.LastReportingTime, err = hashInt(fields, "lastReportingTime"); err != nil {
		return models.SiteStats{}, err
	}
	if stats.MeterReadingCount, err = hashInt(fields, "meterReadingCount"); err != nil {
		return models.SiteStats{}, err
	}
	if stats.MaxWhGenerated, err = hashFloat(fields, "maxWhGenerated"); err != nil {
		return models.SiteStats{}, err
	}
	if stats.MinWhGenerated, err = hashFloat(fields, "minWhGenerated"); err != nil {
		return models.SiteStats{}, err
	}
	if stats.MaxCapacity, err = hashFloat(fields, "maxCapacity"); err != nil {
		return models.SiteStats{}, err
	}

	return stats, nil
}

func hashInt(fields map[string]string, name string) (int64, error) {
	n, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode field %q: %w", name, err)
	}

	return n, nil
}

func hashFloat(fields map[string]string, name string) (float64, error) {
	f, err := strconv.ParseFloat(fields[name], 64)
	if err != nil {
		return 0, fmt.Errorf("decode field %q: %w", name, err)
	}

	return f, nil
}

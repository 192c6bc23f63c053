package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
)

const (
	// Feed lengths are approximate: Redis trims streams lazily at node
	// boundaries, so the actual length can briefly exceed these.
	globalMaxFeedLength = 10000
	siteMaxFeedLength   = 2440
)

// FeedStore appends every reading to two bounded streams, one global and
// one per site.
type FeedStore struct {
	c *Client
}

// NewFeedStore returns a FeedStore backed by the shared client.
func NewFeedStore(c *Client) *FeedStore {
	return &FeedStore{c: c}
}

var _ store.FeedStore = (*FeedStore)(nil)

// Insert appends the flattened reading to the global feed and the site
// feed. Both appends travel in one pipeline; there is no cross-stream
// atomicity guarantee.
func (s *FeedStore) Insert(ctx context.Context, reading models.MeterReading) error {
	fields := flattenReading(reading)

	_, err := s.c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: s.c.keys.GlobalFeedKey(),
			MaxLen: globalMaxFeedLength,
			Approx: true,
			Values: fields,
		})
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: s.c.keys.FeedKey(reading.SiteID),
			MaxLen: siteMaxFeedLength,
			Approx: true,
			Values: fields,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("append reading for site %d to feeds: %w", reading.SiteID, err)
	}

	return nil
}

// RecentGlobal returns up to limit readings across all sites, newest
// first.
func (s *FeedStore) RecentGlobal(ctx context.Context, limit int) ([]models.MeterReading, error) {
	return s.recent(ctx, s.c.keys.GlobalFeedKey(), limit)
}

// RecentForSite returns up to limit readings for one site, newest first.
// A site with no history yields an empty slice, never an error.
func (s *FeedStore) RecentForSite(ctx context.Context, siteID int64, limit int) ([]models.MeterReading, error) {
	return s.recent(ctx, s.c.keys.FeedKey(siteID), limit)
}

func (s *FeedStore) recent(ctx context.Context, key string, limit int) ([]models.MeterReading, error) {
	entries, err := s.c.rdb.XRevRangeN(ctx, key, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", key, err)
	}

	readings := make([]models.MeterReading, 0, len(entries))

	for _, entry := range entries {
		reading, err := decodeFeedEntry(entry.Values)
		if err != nil {
			return nil, fmt.Errorf("feed %s entry %s: %w", key, entry.ID, err)
		}

		readings = append(readings, reading)
	}

	return readings, nil
}

// flattenReading turns a reading into the flat string fields stored in a
// stream entry.
func flattenReading(reading models.MeterReading) map[string]interface{} {
	return map[string]interface{}{
		"siteId":      strconv.FormatInt(reading.SiteID, 10),
		"dateTime":    strconv.FormatInt(reading.DateTime, 10),
		"whUsed":      strconv.FormatFloat(reading.WhUsed, 'f', -1, 64),
		"whGenerated": strconv.FormatFloat(reading.WhGenerated, 'f', -1, 64),
		"tempC":       strconv.FormatFloat(reading.TempC, 'f', -1, 64),
	}
}

// decodeFeedEntry coerces the stream entry's wire-string fields back
// into a typed reading.
func decodeFeedEntry(values map[string]interface{}) (models.MeterReading, error) {
	var reading models.MeterReading
	var err error

	if reading.SiteID, err = fieldInt(values, "siteId"); err != nil {
		return models.MeterReading{}, err
	}
	if reading.DateTime, err = fieldInt(values, "dateTime"); err != nil {
		return models.MeterReading{}, err
	}
	if reading.WhUsed, err = fieldFloat(values, "whUsed"); err != nil {
		return models.MeterReading{}, err
	}
	if reading.WhGenerated, err = fieldFloat(values, "whGenerated"); err != nil {
		return models.MeterReading{}, err
	}
	if reading.TempC, err = fieldFloat(values, "tempC"); err != nil {
		return models.MeterReading{}, err
	}

	return reading, nil
}

func fieldString(values map[string]interface{}, name string) (string, error) {
	raw, ok := values[name]
	if !ok {
		return "", fmt.Errorf("missing field %q", name)
	}

	str, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", name)
	}

	return str, nil
}

func fieldInt(values map[string]interface{}, name string) (int64, error) {
	str, err := fieldString(values, name)
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}

	return n, nil
}

func fieldFloat(values map[string]interface{}, name string) (float64, error) {
	str, err := fieldString(values, name)
	if err != nil {
		return 0, err
	}

	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}

	return f, nil
}

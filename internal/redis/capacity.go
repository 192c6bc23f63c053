package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
)

// CapacityStore ranks sites by current capacity in a single sorted set.
type CapacityStore struct {
	c *Client
}

// NewCapacityStore returns a CapacityStore backed by the shared client.
func NewCapacityStore(c *Client) *CapacityStore {
	return &CapacityStore{c: c}
}

var _ store.CapacityStore = (*CapacityStore)(nil)

// Update replaces the site's score with the reading's current capacity.
// One entry per site: ZADD on an existing member overwrites.
func (s *CapacityStore) Update(ctx context.Context, reading models.MeterReading) error {
	err := s.c.rdb.ZAdd(ctx, s.c.keys.CapacityRankingKey(), goredis.Z{
		Score:  reading.CurrentCapacity(),
		Member: strconv.FormatInt(reading.SiteID, 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("update capacity ranking for site %d: %w", reading.SiteID, err)
	}

	return nil
}

// Report returns the bottom and top of the ranking, up to limit entries
// each. Both range queries travel in one pipeline.
func (s *CapacityStore) Report(ctx context.Context, limit int) (models.CapacityReport, error) {
	key := s.c.keys.CapacityRankingKey()

	var lowest, highest *goredis.ZSliceCmd

	_, err := s.c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		lowest = pipe.ZRangeWithScores(ctx, key, 0, int64(limit)-1)
		highest = pipe.ZRevRangeWithScores(ctx, key, 0, int64(limit)-1)
		return nil
	})
	if err != nil {
		return models.CapacityReport{}, fmt.Errorf("capacity report: %w", err)
	}

	low, err := decodeCapacityEntries(lowest.Val())
	if err != nil {
		return models.CapacityReport{}, err
	}

	high, err := decodeCapacityEntries(highest.Val())
	if err != nil {
		return models.CapacityReport{}, err
	}

	return models.CapacityReport{LowestCapacity: low, HighestCapacity: high}, nil
}

// Rank returns the zero-based ascending rank of the site, or
// store.ErrNotFound when the site has never reported.
func (s *CapacityStore) Rank(ctx context.Context, siteID int64) (int64, error) {
	rank, err := s.c.rdb.ZRank(ctx, s.c.keys.CapacityRankingKey(), strconv.FormatInt(siteID, 10)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("capacity rank for site %d: %w", siteID, err)
	}

	return rank, nil
}

func decodeCapacityEntries(zs []goredis.Z) ([]models.CapacityEntry, error) {
	entries := make([]models.CapacityEntry, 0, len(zs))

	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("capacity ranking member %v is not a string", z.Member)
		}

		siteID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode capacity ranking member %q: %w", member, err)
		}

		entries = append(entries, models.CapacityEntry{SiteID: siteID, Capacity: z.Score})
	}

	return entries, nil
}

package redis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
)

func TestFeedRoundTrip(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewFeedStore(c)
	ctx := testContext(t)

	readings := []models.MeterReading{
		{SiteID: 1, DateTime: 1700000000, WhUsed: 1.5, WhGenerated: 4.25, TempC: 21.5},
		{SiteID: 2, DateTime: 1700000060, WhUsed: 2.5, WhGenerated: 3.75, TempC: -3.5},
		{SiteID: 1, DateTime: 1700000120, WhUsed: 0.5, WhGenerated: 5, TempC: 18},
	}

	for _, r := range readings {
		require.NoError(t, s.Insert(ctx, r))
	}

	global, err := s.RecentGlobal(ctx, 10)
	require.NoError(t, err)

	// Newest first, with every field typed again.
	require.Equal(t, []models.MeterReading{readings[2], readings[1], readings[0]}, global)

	site1, err := s.RecentForSite(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, []models.MeterReading{readings[2], readings[0]}, site1)
}

func TestFeedLimit(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewFeedStore(c)
	ctx := testContext(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Insert(ctx, models.MeterReading{
			SiteID:   1,
			DateTime: 1700000000 + int64(i)*60,
		}))
	}

	global, err := s.RecentGlobal(ctx, 3)
	require.NoError(t, err)
	require.Len(t, global, 3)
	require.Equal(t, int64(1700000540), global[0].DateTime)
}

func TestFeedEmptySiteIsNotAnError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewFeedStore(c)

	readings, err := s.RecentForSite(testContext(t), 42, 10)
	require.NoError(t, err)
	require.Empty(t, readings)
}

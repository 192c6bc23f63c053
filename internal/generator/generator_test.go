package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
)

const generatorNow = int64(1700000000)

func testSites() []models.Site {
	return []models.Site{
		{ID: 1, Capacity: 4.5},
		{ID: 2, Capacity: 10},
	}
}

func TestGenerateHistoricalShape(t *testing.T) {
	t.Parallel()

	g := New(1, func() int64 { return generatorNow })

	var readings []models.MeterReading
	err := g.GenerateHistorical(context.Background(), testSites(), 1,
		func(_ context.Context, r models.MeterReading) error {
			readings = append(readings, r)
			return nil
		})
	require.NoError(t, err)

	// One reading per minute per site, interleaved across sites.
	require.Len(t, readings, 2*minutesPerDay)
	require.Equal(t, int64(1), readings[0].SiteID)
	require.Equal(t, int64(2), readings[1].SiteID)
	require.Equal(t, readings[0].DateTime, readings[1].DateTime)

	start := generatorNow - int64(minutesPerDay)*60
	require.Equal(t, start, readings[0].DateTime)

	for i := 2; i < len(readings); i += 2 {
		require.Equal(t, readings[i-2].DateTime+60, readings[i].DateTime)
	}

	for _, r := range readings {
		require.GreaterOrEqual(t, r.WhGenerated, 0.0)
		require.GreaterOrEqual(t, r.WhUsed, 0.0)
		require.GreaterOrEqual(t, r.TempC, 0.0)
	}
}

func TestGenerateHistoricalIsDeterministicPerSeed(t *testing.T) {
	t.Parallel()

	collect := func(seed int64) []models.MeterReading {
		g := New(seed, func() int64 { return generatorNow })

		var readings []models.MeterReading
		err := g.GenerateHistorical(context.Background(), testSites(), 1,
			func(_ context.Context, r models.MeterReading) error {
				readings = append(readings, r)
				return nil
			})
		require.NoError(t, err)

		return readings
	}

	require.Equal(t, collect(7), collect(7))
	require.NotEqual(t, collect(7), collect(8))
}

func TestGenerateHistoricalValidatesDays(t *testing.T) {
	t.Parallel()

	g := New(1, func() int64 { return generatorNow })
	ingest := func(context.Context, models.MeterReading) error { return nil }

	require.Error(t, g.GenerateHistorical(context.Background(), testSites(), 0, ingest))
	require.Error(t, g.GenerateHistorical(context.Background(), testSites(), 366, ingest))
}

func TestGenerateHistoricalStopsOnIngestError(t *testing.T) {
	t.Parallel()

	g := New(1, func() int64 { return generatorNow })

	sentinel := errors.New("sink failed")
	calls := 0

	err := g.GenerateHistorical(context.Background(), testSites(), 1,
		func(context.Context, models.MeterReading) error {
			calls++
			return sentinel
		})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, calls)
}

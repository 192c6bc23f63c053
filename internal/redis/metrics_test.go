package redis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
)

// 2023-11-14 22:13:20 UTC, fixed so day boundaries are stable.
const metricsEndTimestamp = int64(1700000000)

// syntheticValue derives a deterministic metric value from a timestamp.
// One decimal place, so it survives the store's two-decimal rounding.
func syntheticValue(ts int64) float64 {
	return float64((ts/60)%1000) / 10
}

func TestMetricsGetRecentWalksDays(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewMetricStore(c)
	ctx := testContext(t)

	// One reading per minute for 72 hours, newest at metricsEndTimestamp.
	const totalMinutes = 72 * 60

	for i := 0; i < totalMinutes; i++ {
		ts := metricsEndTimestamp - int64(i)*60

		err := s.Insert(ctx, models.MeterReading{
			SiteID:      1,
			DateTime:    ts,
			WhGenerated: syntheticValue(ts),
			WhUsed:      1,
			TempC:       21,
		})
		require.NoError(t, err)
	}

	for _, limit := range []int{1, 1440, 4200} {
		measurements, err := s.GetRecent(ctx, 1, models.MetricWhGenerated, metricsEndTimestamp, limit)
		require.NoError(t, err)
		require.Len(t, measurements, limit)

		for i, m := range measurements {
			if i > 0 {
				require.Greater(t, m.DateTime, measurements[i-1].DateTime)
			}

			require.Equal(t, syntheticValue(m.DateTime), m.Value)
			require.Equal(t, models.MetricWhGenerated, m.MetricUnit)
			require.Equal(t, int64(1), m.SiteID)
		}

		// The newest stored minute must be the last element.
		last := measurements[limit-1]
		require.Equal(t, metricsEndTimestamp-metricsEndTimestamp%60, last.DateTime)
	}
}

func TestMetricsGetRecentEmptyStore(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewMetricStore(c)

	measurements, err := s.GetRecent(testContext(t), 1, models.MetricWhUsed, metricsEndTimestamp, 10)
	require.NoError(t, err)
	require.Empty(t, measurements)
}

func TestMetricsGetRecentRejectsOversizedRequest(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewMetricStore(c)

	_, err := s.GetRecent(testContext(t), 1, models.MetricWhGenerated, metricsEndTimestamp,
		metricsPerDay*metricRetentionDays+1)

	var tooMany *store.TooManyMetricsError
	require.ErrorAs(t, err, &tooMany)
	require.Equal(t, metricRetentionDays, tooMany.RetentionDays)
}

func TestMetricsInsertStoresAllThreeUnits(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewMetricStore(c)
	ctx := testContext(t)

	reading := models.MeterReading{
		SiteID:      7,
		DateTime:    metricsEndTimestamp,
		WhGenerated: 5.25,
		WhUsed:      3.5,
		TempC:       19.5,
	}
	require.NoError(t, s.Insert(ctx, reading))

	for unit, want := range map[string]float64{
		models.MetricWhGenerated: 5.25,
		models.MetricWhUsed:      3.5,
		models.MetricTempC:       19.5,
	} {
		measurements, err := s.GetRecent(ctx, 7, unit, metricsEndTimestamp, 10)
		require.NoError(t, err)
		require.Len(t, measurements, 1)
		require.Equal(t, want, measurements[0].Value)
	}
}

func TestMetricsWalkCapsAtSevenDays(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewMetricStore(c)
	ctx := testContext(t)

	// One reading per day for ten days; only the seven newest partitions
	// are reachable.
	for i := 0; i < 10; i++ {
		err := s.Insert(ctx, models.MeterReading{
			SiteID:      1,
			DateTime:    metricsEndTimestamp - int64(i)*daySeconds,
			WhGenerated: 1,
		})
		require.NoError(t, err)
	}

	measurements, err := s.GetRecent(ctx, 1, models.MetricWhGenerated, metricsEndTimestamp, 100)
	require.NoError(t, err)
	require.Len(t, measurements, 7)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/config"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/processor"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/redis"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := redis.Wrap(rdb, "test")

	pipeline := processor.NewPipeline(
		redis.NewMetricStore(c),
		redis.NewStatsStore(c),
		redis.NewCapacityStore(c),
		redis.NewFeedStore(c),
		config.PipelineConfig{WorkerCount: 1, QueueSize: 16},
		zerolog.Nop(),
	)
	t.Cleanup(pipeline.Stop)

	stores := Stores{
		Sites:    redis.NewSiteStore(c),
		Metrics:  redis.NewMetricStore(c),
		Feed:     redis.NewFeedStore(c),
		Capacity: redis.NewCapacityStore(c),
	}

	return NewServer(pipeline, stores, zerolog.Nop(), opts...), c
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

func TestCreateAndReadMeterReadings(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	now := time.Now().Unix()
	readings := []models.MeterReading{
		{SiteID: 1, DateTime: now - 60, WhGenerated: 4, WhUsed: 1, TempC: 20},
		{SiteID: 2, DateTime: now, WhGenerated: 2, WhUsed: 3, TempC: 22},
	}

	rec := doJSON(t, s, http.MethodPost, "/api/meterreadings", readings)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/meterreadings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var feed []models.MeterReading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.Equal(t, []models.MeterReading{readings[1], readings[0]}, feed)

	rec = doJSON(t, s, http.MethodGet, "/api/meterreadings/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.Equal(t, []models.MeterReading{readings[0]}, feed)
}

func TestCreateMeterReadingsRejectsInvalidBody(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/meterreadings", map[string]string{"not": "an array"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/meterreadings", []models.MeterReading{{SiteID: 0, DateTime: 1}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCapacityReport(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	now := time.Now().Unix()
	var readings []models.MeterReading
	for i := 1; i <= 5; i++ {
		readings = append(readings, models.MeterReading{
			SiteID:      int64(i),
			DateTime:    now,
			WhGenerated: float64(i * 10),
			WhUsed:      5,
		})
	}

	rec := doJSON(t, s, http.MethodPost, "/api/meterreadings", readings)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/capacity?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.CapacityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.HighestCapacity, 2)
	require.Equal(t, int64(5), report.HighestCapacity[0].SiteID)
	require.Equal(t, int64(1), report.LowestCapacity[0].SiteID)
}

func TestSiteMetrics(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	now := time.Now().Unix()
	rec := doJSON(t, s, http.MethodPost, "/api/meterreadings", []models.MeterReading{
		{SiteID: 1, DateTime: now, WhGenerated: 5.5, WhUsed: 2.25},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/metrics/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var series map[string][]models.Measurement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	require.Len(t, series[models.MetricWhGenerated], 1)
	require.Equal(t, 5.5, series[models.MetricWhGenerated][0].Value)
	require.Equal(t, 2.25, series[models.MetricWhUsed][0].Value)
}

func TestSiteMetricsRejectsOversizedRequest(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/metrics/1?n=99999", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSiteLookup(t *testing.T) {
	t.Parallel()

	s, c := newTestServer(t)

	sites := redis.NewSiteStore(c)
	_, err := sites.Insert(context.Background(), models.Site{
		ID:         1,
		Capacity:   4.5,
		Panels:     12,
		Coordinate: &models.Coordinate{Lat: 0, Lng: 0},
	})
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodGet, "/api/sites/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var site models.Site
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &site))
	require.Equal(t, int64(1), site.ID)

	rec = doJSON(t, s, http.MethodGet, "/api/sites/42", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSiteGeoSearch(t *testing.T) {
	t.Parallel()

	s, c := newTestServer(t)
	ctx := context.Background()

	sites := redis.NewSiteStore(c)
	for i, lng := range []float64{0, 0.05, 0.5} {
		_, err := sites.Insert(ctx, models.Site{
			ID:         int64(i + 1),
			Capacity:   1,
			Coordinate: &models.Coordinate{Lat: 0, Lng: lng},
		})
		require.NoError(t, err)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/sites?lat=0&lng=0&radius=10&radiusUnit=km", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var found []models.Site
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 2)

	rec = doJSON(t, s, http.MethodGet, "/api/sites?lat=0&lng=0&radius=abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := redis.Wrap(rdb, "test")

	limit := store.Limit{Interval: 24 * time.Hour, MaxHits: 3}
	s, _ := newTestServerWithLimiter(t, c, limit)

	for i := 0; i < 3; i++ {
		rec := doJSON(t, s, http.MethodGet, "/api/capacity", nil)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		require.Equal(t, fmt.Sprintf("%d", 2-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := doJSON(t, s, http.MethodGet, "/api/capacity", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different route has its own window.
	rec = doJSON(t, s, http.MethodGet, "/api/meterreadings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func newTestServerWithLimiter(t *testing.T, c *redis.Client, limit store.Limit) (*Server, *redis.Client) {
	t.Helper()

	pipeline := processor.NewPipeline(
		redis.NewMetricStore(c),
		redis.NewStatsStore(c),
		redis.NewCapacityStore(c),
		redis.NewFeedStore(c),
		config.PipelineConfig{WorkerCount: 1, QueueSize: 16},
		zerolog.Nop(),
	)
	t.Cleanup(pipeline.Stop)

	stores := Stores{
		Sites:    redis.NewSiteStore(c),
		Metrics:  redis.NewMetricStore(c),
		Feed:     redis.NewFeedStore(c),
		Capacity: redis.NewCapacityStore(c),
	}

	limiter := redis.NewFixedWindowRateLimiter(c)

	return NewServer(pipeline, stores, zerolog.Nop(), WithRateLimiter(limiter, limit)), c
}

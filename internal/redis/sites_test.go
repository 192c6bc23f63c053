package redis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
)

// Coordinates along the equator: one degree of longitude is ~111.3 km.
var (
	originSite = models.Site{
		ID:         1,
		Capacity:   4.5,
		Panels:     12,
		Address:    "1 Solar Way",
		City:       "Dakar",
		State:      "DK",
		PostalCode: "10000",
		Coordinate: &models.Coordinate{Lat: 0, Lng: 0},
	}

	nearSite = models.Site{
		ID:         2,
		Capacity:   3.0,
		Panels:     8,
		Coordinate: &models.Coordinate{Lat: 0, Lng: 0.05}, // ~5.6 km
	}

	farSite = models.Site{
		ID:         3,
		Capacity:   6.0,
		Panels:     20,
		Coordinate: &models.Coordinate{Lat: 0, Lng: 0.5}, // ~55.7 km
	}
)

func TestSiteRoundTrip(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewSiteStore(c)
	ctx := testContext(t)

	key, err := s.Insert(ctx, originSite)
	require.NoError(t, err)
	require.Equal(t, "test:sites:info:1", key)

	got, err := s.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, originSite, got)
	require.NotNil(t, got.Coordinate)
}

func TestSiteInsertRequiresCoordinate(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewSiteStore(c)

	_, err := s.Insert(testContext(t), models.Site{ID: 9, Capacity: 1})
	require.ErrorIs(t, err, store.ErrCoordinateRequired)
}

func TestSiteFindByIDNotFound(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewSiteStore(c)

	_, err := s.FindByID(testContext(t), 404)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSiteFindAll(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewSiteStore(c)
	ctx := testContext(t)

	for _, site := range []models.Site{originSite, nearSite, farSite} {
		_, err := s.Insert(ctx, site)
		require.NoError(t, err)
	}

	sites, err := s.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 3)
}

func TestSiteFindByGeoRadius(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewSiteStore(c)
	ctx := testContext(t)

	for _, site := range []models.Site{originSite, nearSite, farSite} {
		_, err := s.Insert(ctx, site)
		require.NoError(t, err)
	}

	// The far site is outside a 10 km radius.
	sites, err := s.FindByGeo(ctx, 0, 0, 10, "km")
	require.NoError(t, err)
	require.Len(t, sites, 2)

	// ...and inside 60 km, with results ordered closest first.
	sites, err = s.FindByGeo(ctx, 0, 0, 60, "km")
	require.NoError(t, err)
	require.Len(t, sites, 3)
	require.Equal(t, int64(1), sites[0].ID)
	require.Equal(t, int64(2), sites[1].ID)
	require.Equal(t, int64(3), sites[2].ID)
}

func TestSiteFindByGeoWithExcessCapacity(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewSiteStore(c)
	capacities := NewCapacityStore(c)
	ctx := testContext(t)

	for _, site := range []models.Site{originSite, nearSite, farSite} {
		_, err := s.Insert(ctx, site)
		require.NoError(t, err)
	}

	// Site 1 generates a surplus, site 2 runs a deficit, site 3 has
	// surplus but sits outside the query radius.
	require.NoError(t, capacities.Update(ctx, models.MeterReading{SiteID: 1, WhGenerated: 1, WhUsed: 0.5}))
	require.NoError(t, capacities.Update(ctx, models.MeterReading{SiteID: 2, WhGenerated: 0.5, WhUsed: 1}))
	require.NoError(t, capacities.Update(ctx, models.MeterReading{SiteID: 3, WhGenerated: 2, WhUsed: 0}))

	sites, err := s.FindByGeoWithExcessCapacity(ctx, 0, 0, 10, "km")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	require.Equal(t, int64(1), sites[0].ID)
}

func TestSiteFindByGeoWithExcessCapacityEmptyRadius(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	s := NewSiteStore(c)

	sites, err := s.FindByGeoWithExcessCapacity(testContext(t), 45, 45, 10, "km")
	require.NoError(t, err)
	require.Empty(t, sites)
}

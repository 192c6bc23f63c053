// Package store defines the capability interfaces the application core is
// built on, together with the error taxonomy shared by all backends.
// Concrete implementations live in internal/redis and internal/influxdb;
// which one serves each interface is decided once at startup from
// configuration.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
)

// ErrNotFound reports an absent entity. It is a valid query outcome, not
// a store fault.
var ErrNotFound = errors.New("not found")

// ErrCoordinateRequired reports a site insert without a coordinate. The
// geo index exists solely for spatial queries, so the coordinate is part
// of the insert contract.
var ErrCoordinateRequired = errors.New("coordinate required for site insert")

// TooManyMetricsError reports a metrics request larger than the retention
// policy could ever satisfy. Callers recover by reducing the request.
type TooManyMetricsError struct {
	Requested     int
	RetentionDays int
}

func (e *TooManyMetricsError) Error() string {
	return fmt.Sprintf("cannot request more than %d days of minute level data (requested %d entries)",
		e.RetentionDays, e.Requested)
}

// MetricStore stores the three per-reading metrics at minute granularity
// and answers bounded historical queries.
type MetricStore interface {
	// Insert projects all three metrics of the reading into the store.
	Insert(ctx context.Context, reading models.MeterReading) error

	// GetRecent returns up to limit measurements for one metric ending
	// at timestamp, oldest first. Returns *TooManyMetricsError when
	// limit exceeds what the retention window could hold.
	GetRecent(ctx context.Context, siteID int64, metricUnit string, timestamp int64, limit int) ([]models.Measurement, error)
}

// CapacityStore maintains the per-site capacity ranking.
type CapacityStore interface {
	// Update replaces the site's capacity score with the value derived
	// from the reading.
	Update(ctx context.Context, reading models.MeterReading) error

	// Report returns the lowest and highest capacity sites, up to limit
	// entries each.
	Report(ctx context.Context, limit int) (models.CapacityReport, error)

	// Rank returns the zero-based ascending capacity rank of the site,
	// or ErrNotFound when the site has no capacity entry.
	Rank(ctx context.Context, siteID int64) (int64, error)
}

// FeedStore is the bounded, reverse-readable log of raw readings.
type FeedStore interface {
	// Insert appends the reading to the global feed and the site feed.
	Insert(ctx context.Context, reading models.MeterReading) error

	// RecentGlobal returns up to limit readings across all sites,
	// newest first. An empty feed yields an empty slice.
	RecentGlobal(ctx context.Context, limit int) ([]models.MeterReading, error)

	// RecentForSite returns up to limit readings for one site, newest
	// first. A site with no history yields an empty slice.
	RecentForSite(ctx context.Context, siteID int64, limit int) ([]models.MeterReading, error)
}

// StatsStore maintains per-site, per-day running aggregates.
type StatsStore interface {
	// Update folds the reading into the aggregates for its (site, day).
	// Max/min updates are atomic so the stored extremes are exact under
	// concurrent writers.
	Update(ctx context.Context, reading models.MeterReading) error

	// FindByID returns the aggregates for the site on the UTC day
	// containing timestamp, or ErrNotFound.
	FindByID(ctx context.Context, siteID, timestamp int64) (models.SiteStats, error)
}

// SiteStore owns site attributes and the geospatial membership index.
type SiteStore interface {
	// Insert registers a new site and returns the key it was stored
	// under. Fails with ErrCoordinateRequired when the site has no
	// coordinate.
	Insert(ctx context.Context, site models.Site) (string, error)

	// FindByID returns the site with the given ID, or ErrNotFound.
	FindByID(ctx context.Context, id int64) (models.Site, error)

	// FindAll returns every registered site.
	FindAll(ctx context.Context) ([]models.Site, error)

	// FindByGeo returns sites within radius of the coordinate, ordered
	// by ascending distance. Unit is "km" or "mi".
	FindByGeo(ctx context.Context, lat, lng, radius float64, unit string) ([]models.Site, error)

	// FindByGeoWithExcessCapacity is FindByGeo restricted to sites
	// whose current capacity exceeds the excess-capacity threshold.
	FindByGeoWithExcessCapacity(ctx context.Context, lat, lng, radius float64, unit string) ([]models.Site, error)
}

// Limit describes one rate limiting window.
type Limit struct {
	// Interval is the window length. The fixed-window algorithm
	// truncates it to whole minutes; the sliding-window algorithm uses
	// millisecond resolution.
	Interval time.Duration

	// MaxHits is the number of hits allowed inside one window.
	MaxHits int
}

// RateLimiter records hits against named resources. Hit returns the
// remaining allowance after recording, or -1 once the limit is exceeded.
// The hit is recorded even when the limit is exceeded, so an exceeded
// window stays exceeded until it expires.
type RateLimiter interface {
	Hit(ctx context.Context, name string, limit Limit) (int, error)
}

// Package keys maps domain entities to the Redis key names that store
// them. Every key produced here carries the scheme's configurable prefix,
// which gives tests and parallel deployments their own namespace.
package keys

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/timeutil"
)

// Scheme generates namespaced Redis key names. The zero value is not
// usable; construct with New so the prefix is always set explicitly.
type Scheme struct {
	prefix string
}

// New returns a Scheme that prepends prefix to every generated key.
func New(prefix string) Scheme {
	return Scheme{prefix: prefix}
}

// Key prepends the scheme's prefix to a bare key name.
func (s Scheme) Key(name string) string {
	return fmt.Sprintf("%s:%s", s.prefix, name)
}

// TemporaryKey generates a collision-resistant key name for ephemeral
// intermediate results. Expiry is the caller's responsibility.
func (s Scheme) TemporaryKey() string {
	return s.Key(fmt.Sprintf("tmp:%s", uuid.NewString()))
}

// SiteHashKey is the hash holding attributes for one site.
// Key name: prefix:sites:info:[siteId]
func (s Scheme) SiteHashKey(siteID int64) string {
	return s.Key(fmt.Sprintf("sites:info:%d", siteID))
}

// SiteIDsKey is the set of all registered site hash keys.
// Key name: prefix:sites:ids
func (s Scheme) SiteIDsKey() string {
	return s.Key("sites:ids")
}

// SiteGeoKey is the geo set holding site coordinates.
// Key name: prefix:sites:geo
func (s Scheme) SiteGeoKey() string {
	return s.Key("sites:geo")
}

// CapacityRankingKey is the sorted set ranking sites by current capacity.
// Key name: prefix:sites:capacity:ranking
func (s Scheme) CapacityRankingKey() string {
	return s.Key("sites:capacity:ranking")
}

// SiteStatsKey is the hash of per-day aggregates for a site on the UTC
// day containing timestamp.
// Key name: prefix:sites:stats:[year-month-day]:[siteId]
func (s Scheme) SiteStatsKey(siteID, timestamp int64) string {
	return s.Key(fmt.Sprintf("sites:stats:%s:%d", timeutil.DateString(timestamp), siteID))
}

// DayMetricKey is the sorted set partition holding one day of values for
// a single metric on a single site.
// Key name: prefix:metric:[unit]:[year-month-day]:[siteId]
func (s Scheme) DayMetricKey(siteID int64, unit string, timestamp int64) string {
	return s.Key(fmt.Sprintf("metric:%s:%s:%d", unit, timeutil.DateString(timestamp), siteID))
}

// GlobalFeedKey is the stream holding the most recent readings across all
// sites.
// Key name: prefix:sites:feed
func (s Scheme) GlobalFeedKey() string {
	return s.Key("sites:feed")
}

// FeedKey is the stream holding the most recent readings for one site.
// Key name: prefix:sites:feed:[siteId]
func (s Scheme) FeedKey(siteID int64) string {
	return s.Key(fmt.Sprintf("sites:feed:%d", siteID))
}

// FixedRateLimiterKey is the counter for a fixed rate limiting window.
// The window index pins the key to a calendar-aligned slot of the day, so
// all clients hitting the resource in the same interval share a counter.
// Key name: prefix:limiter:[name]:[windowIndex]:[maxHits]
func (s Scheme) FixedRateLimiterKey(name string, interval, maxHits int) string {
	minuteOfDay := timeutil.MinuteOfDay(timeutil.CurrentTimestamp())

	return s.Key(fmt.Sprintf("limiter:%s:%d:%d", name, minuteOfDay/interval, maxHits))
}

// SlidingRateLimiterKey is the sorted set of timestamped hit markers for
// a sliding rate limiting window.
// Key name: prefix:limiter:[intervalMs]:[name]:[maxHits]
func (s Scheme) SlidingRateLimiterKey(name string, intervalMs int64, maxHits int) string {
	return s.Key(fmt.Sprintf("limiter:%d:%s:%d", intervalMs, name, maxHits))
}

package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
)

const (
	// Minimum current capacity for a site to count as having excess
	// capacity.
	capacityThreshold = 0.2

	// Temporary intersection keys expire on their own so an abandoned
	// query leaves nothing behind.
	tempKeyExpiration = 30 * time.Second
)

// SiteStore owns the per-site attribute hashes and the geo index used
// for radius queries.
type SiteStore struct {
	c *Client
}

// NewSiteStore returns a SiteStore backed by the shared client.
func NewSiteStore(c *Client) *SiteStore {
	return &SiteStore{c: c}
}

var _ store.SiteStore = (*SiteStore)(nil)

// Insert registers a new site: attribute hash, geo set entry and the
// site ID set. The coordinate is mandatory here because this store
// exists to answer spatial queries.
func (s *SiteStore) Insert(ctx context.Context, site models.Site) (string, error) {
	if site.Coordinate == nil {
		return "", store.ErrCoordinateRequired
	}

	siteHashKey := s.c.keys.SiteHashKey(site.ID)

	_, err := s.c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, siteHashKey, flattenSite(site))
		pipe.SAdd(ctx, s.c.keys.SiteIDsKey(), siteHashKey)
		pipe.GeoAdd(ctx, s.c.keys.SiteGeoKey(), &goredis.GeoLocation{
			Name:      strconv.FormatInt(site.ID, 10),
			Longitude: site.Coordinate.Lng,
			Latitude:  site.Coordinate.Lat,
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("insert site %d: %w", site.ID, err)
	}

	return siteHashKey, nil
}

// FindByID returns the site with the given ID, or store.ErrNotFound.
func (s *SiteStore) FindByID(ctx context.Context, id int64) (models.Site, error) {
	fields, err := s.c.rdb.HGetAll(ctx, s.c.keys.SiteHashKey(id)).Result()
	if err != nil {
		return models.Site{}, fmt.Errorf("read site %d: %w", id, err)
	}

	if len(fields) == 0 {
		return models.Site{}, store.ErrNotFound
	}

	return decodeSite(fields)
}

// FindAll returns every site registered in the geo index.
func (s *SiteStore) FindAll(ctx context.Context) ([]models.Site, error) {
	ids, err := s.c.rdb.ZRange(ctx, s.c.keys.SiteGeoKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list site ids: %w", err)
	}

	return s.sitesByIDs(ctx, ids)
}

// FindByGeo returns sites within radius of the coordinate, closest
// first.
func (s *SiteStore) FindByGeo(ctx context.Context, lat, lng, radius float64, unit string) ([]models.Site, error) {
	ids, err := s.idsInRadius(ctx, lat, lng, radius, unit)
	if err != nil {
		return nil, err
	}

	return s.sitesByIDs(ctx, ids)
}

// FindByGeoWithExcessCapacity restricts FindByGeo to sites whose current
// capacity is at least the excess-capacity threshold. The radius result
// is staged in a temporary sorted set and intersected with the capacity
// ranking (weights 0,1) so each surviving member carries its capacity as
// its score; both temporaries expire after tempKeyExpiration.
func (s *SiteStore) FindByGeoWithExcessCapacity(ctx context.Context, lat, lng, radius float64, unit string) ([]models.Site, error) {
	inRadius, err := s.idsInRadius(ctx, lat, lng, radius, unit)
	if err != nil {
		return nil, err
	}

	if len(inRadius) == 0 {
		return []models.Site{}, nil
	}

	radiusKey := s.c.keys.TemporaryKey()
	capacityKey := s.c.keys.TemporaryKey()

	members := make([]goredis.Z, len(inRadius))
	for i, id := range inRadius {
		members[i] = goredis.Z{Score: 0, Member: id}
	}

	_, err = s.c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, radiusKey, members...)
		pipe.ZInterStore(ctx, capacityKey, &goredis.ZStore{
			Keys:    []string{radiusKey, s.c.keys.CapacityRankingKey()},
			Weights: []float64{0, 1},
		})
		pipe.Expire(ctx, radiusKey, tempKeyExpiration)
		pipe.Expire(ctx, capacityKey, tempKeyExpiration)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("intersect radius with capacity ranking: %w", err)
	}

	ids, err := s.c.rdb.ZRangeByScore(ctx, capacityKey, &goredis.ZRangeBy{
		Min: strconv.FormatFloat(capacityThreshold, 'f', -1, 64),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read excess capacity sites: %w", err)
	}

	return s.sitesByIDs(ctx, ids)
}

func (s *SiteStore) idsInRadius(ctx context.Context, lat, lng, radius float64, unit string) ([]string, error) {
	locations, err := s.c.rdb.GeoRadius(ctx, s.c.keys.SiteGeoKey(), lng, lat, &goredis.GeoRadiusQuery{
		Radius: radius,
		Unit:   strings.ToLower(unit),
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo radius search: %w", err)
	}

	ids := make([]string, len(locations))
	for i, loc := range locations {
		ids[i] = loc.Name
	}

	return ids, nil
}

// sitesByIDs resolves site IDs back to full attributes, preserving the
// order of ids. IDs with no backing hash are skipped.
func (s *SiteStore) sitesByIDs(ctx context.Context, ids []string) ([]models.Site, error) {
	sites := make([]models.Site, 0, len(ids))

	if len(ids) == 0 {
		return sites, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(ids))

	_, err := s.c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			siteID, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return fmt.Errorf("decode site id %q: %w", id, err)
			}

			cmds[i] = pipe.HGetAll(ctx, s.c.keys.SiteHashKey(siteID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve site hashes: %w", err)
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		site, err := decodeSite(fields)
		if err != nil {
			return nil, err
		}

		sites = append(sites, site)
	}

	return sites, nil
}

// flattenSite turns a site into the flat string fields stored in its
// hash. The coordinate is stored as separate lat/lng fields.
func flattenSite(site models.Site) map[string]interface{} {
	fields := map[string]interface{}{
		"id":         strconv.FormatInt(site.ID, 10),
		"capacity":   strconv.FormatFloat(site.Capacity, 'f', -1, 64),
		"panels":     strconv.FormatInt(site.Panels, 10),
		"address":    site.Address,
		"city":       site.City,
		"state":      site.State,
		"postalCode": site.PostalCode,
	}

	if site.Coordinate != nil {
		fields["lat"] = strconv.FormatFloat(site.Coordinate.Lat, 'f', -1, 64)
		fields["lng"] = strconv.FormatFloat(site.Coordinate.Lng, 'f', -1, 64)
	}

	return fields
}

// decodeSite coerces the hash's wire-string fields back into a typed
// site, reconstructing the coordinate when both parts are present.
func decodeSite(fields map[string]string) (models.Site, error) {
	var site models.Site
	var err error

	if site.ID, err = hashInt(fields, "id"); err != nil {
		return models.Site{}, err
	}
	if site.Capacity, err = hashFloat(fields, "capacity"); err != nil {
		return models.Site{}, err
	}
	if site.Panels, err = hashInt(fields, "panels"); err != nil {
		return models.Site{}, err
	}

	site.Address = fields["address"]
	site.City = fields["city"]
	site.State = fields["state"]
	site.PostalCode = fields["postalCode"]

	lat, hasLat := fields["lat"]
	lng, hasLng := fields["lng"]

	if hasLat && hasLng {
		coord := &models.Coordinate{}

		if coord.Lat, err = strconv.ParseFloat(lat, 64); err != nil {
			return models.Site{}, fmt.Errorf("decode site lat: %w", err)
		}
		if coord.Lng, err = strconv.ParseFloat(lng, 64); err != nil {
			return models.Site{}, fmt.Errorf("decode site lng: %w", err)
		}

		site.Coordinate = coord
	}

	return site, nil
}

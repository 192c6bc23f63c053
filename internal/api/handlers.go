package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
)

const (
	defaultFeedLimit    = 100
	maxFeedLimit        = 1000
	defaultReportLimit  = 10
	defaultMetricsLimit = 120
)

// handleCreateMeterReadings ingests a batch of readings synchronously,
// so a 201 response means every projection has been updated.
func (s *Server) handleCreateMeterReadings(w http.ResponseWriter, r *http.Request) {
	var readings []models.MeterReading
	if err := json.NewDecoder(r.Body).Decode(&readings); err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must be a JSON array of meter readings")
		return
	}

	for _, reading := range readings {
		if reading.SiteID <= 0 || reading.DateTime <= 0 {
			s.writeError(w, http.StatusBadRequest, "every reading needs a positive siteId and dateTime")
			return
		}
	}

	for _, reading := range readings {
		if err := s.pipeline.Ingest(r.Context(), reading); err != nil {
			s.log.Error().Err(err).Int64("site_id", reading.SiteID).Msg("failed to ingest reading")
			s.writeError(w, http.StatusInternalServerError, "failed to store meter reading")
			return
		}
	}

	s.writeJSON(w, http.StatusCreated, readings)
}

func (s *Server) handleGlobalFeed(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "n", defaultFeedLimit)
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	readings, err := s.stores.Feed.RecentGlobal(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read global feed")
		s.writeError(w, http.StatusInternalServerError, "failed to read meter reading feed")
		return
	}

	s.writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleSiteFeed(w http.ResponseWriter, r *http.Request) {
	siteID := pathSiteID(r)

	limit := queryInt(r, "n", defaultFeedLimit)
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	readings, err := s.stores.Feed.RecentForSite(r.Context(), siteID, limit)
	if err != nil {
		s.log.Error().Err(err).Int64("site_id", siteID).Msg("failed to read site feed")
		s.writeError(w, http.StatusInternalServerError, "failed to read meter reading feed")
		return
	}

	s.writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleCapacityReport(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultReportLimit)

	report, err := s.stores.Capacity.Report(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to build capacity report")
		s.writeError(w, http.StatusInternalServerError, "failed to build capacity report")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// handleSiteMetrics returns the generation and usage series side by
// side, the shape the site detail chart consumes.
func (s *Server) handleSiteMetrics(w http.ResponseWriter, r *http.Request) {
	siteID := pathSiteID(r)
	limit := queryInt(r, "n", defaultMetricsLimit)
	now := time.Now().Unix()

	series := make(map[string][]models.Measurement, 2)

	for _, unit := range []string{models.MetricWhGenerated, models.MetricWhUsed} {
		measurements, err := s.stores.Metrics.GetRecent(r.Context(), siteID, unit, now, limit)
		if err != nil {
			var tooMany *store.TooManyMetricsError
			if errors.As(err, &tooMany) {
				s.writeError(w, http.StatusBadRequest, tooMany.Error())
				return
			}

			s.log.Error().Err(err).Int64("site_id", siteID).Str("unit", unit).Msg("failed to read metrics")
			s.writeError(w, http.StatusInternalServerError, "failed to read metrics")
			return
		}

		series[unit] = measurements
	}

	s.writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("lat") == "" && q.Get("lng") == "" {
		sites, err := s.stores.Sites.FindAll(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("failed to list sites")
			s.writeError(w, http.StatusInternalServerError, "failed to list sites")
			return
		}

		s.writeJSON(w, http.StatusOK, sites)
		return
	}

	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	radius, radiusErr := strconv.ParseFloat(q.Get("radius"), 64)
	if latErr != nil || lngErr != nil || radiusErr != nil {
		s.writeError(w, http.StatusBadRequest, "geo search requires numeric lat, lng and radius")
		return
	}

	unit := q.Get("radiusUnit")
	if unit == "" {
		unit = "km"
	}
	if unit != "km" && unit != "mi" {
		s.writeError(w, http.StatusBadRequest, "radiusUnit must be km or mi")
		return
	}

	onlyExcess, _ := strconv.ParseBool(q.Get("onlyExcessCapacity"))

	var (
		sites []models.Site
		err   error
	)
	if onlyExcess {
		sites, err = s.stores.Sites.FindByGeoWithExcessCapacity(r.Context(), lat, lng, radius, unit)
	} else {
		sites, err = s.stores.Sites.FindByGeo(r.Context(), lat, lng, radius, unit)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to search sites by geo")
		s.writeError(w, http.StatusInternalServerError, "failed to search sites")
		return
	}

	s.writeJSON(w, http.StatusOK, sites)
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	siteID := pathSiteID(r)

	site, err := s.stores.Sites.FindByID(r.Context(), siteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "site not found")
			return
		}

		s.log.Error().Err(err).Int64("site_id", siteID).Msg("failed to load site")
		s.writeError(w, http.StatusInternalServerError, "failed to load site")
		return
	}

	s.writeJSON(w, http.StatusOK, site)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// pathSiteID reads the siteId path variable. The route pattern restricts
// it to digits, so parsing cannot fail for routed requests.
func pathSiteID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["siteId"], 10, 64)
	return id
}

func queryInt(r *http.Request, name string, defaultValue int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return defaultValue
	}

	return n
}

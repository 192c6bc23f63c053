package models

// Coordinate is a geographic position for a solar site.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Site represents a solar installation. Capacity is the rated maximum
// output of the site. Every site carries a coordinate so it can
// participate in geo queries; the pointer is nil only for payloads that
// have not been validated yet.
type Site struct {
	ID         int64       `json:"id"`
	Capacity   float64     `json:"capacity"`
	Panels     int64       `json:"panels"`
	Address    string      `json:"address"`
	City       string      `json:"city"`
	State      string      `json:"state"`
	PostalCode string      `json:"postalCode"`
	Coordinate *Coordinate `json:"coordinate,omitempty"`
}

// MeterReading is a single telemetry report from a site. DateTime is a
// UNIX timestamp in seconds, supplied by the producer and not necessarily
// monotonic.
type MeterReading struct {
	SiteID      int64   `json:"siteId"`
	DateTime    int64   `json:"dateTime"`
	WhUsed      float64 `json:"whUsed"`
	WhGenerated float64 `json:"whGenerated"`
	TempC       float64 `json:"tempC"`
}

// CurrentCapacity is the reading's generation surplus, the value tracked
// by the capacity ranking.
func (r MeterReading) CurrentCapacity() float64 {
	return r.WhGenerated - r.WhUsed
}

// Measurement is a single metric value read back from the time series
// store.
type Measurement struct {
	SiteID     int64   `json:"siteId"`
	DateTime   int64   `json:"dateTime"`
	Value      float64 `json:"value"`
	MetricUnit string  `json:"metricUnit"`
}

// Metric unit names used throughout the time series store.
const (
	MetricWhGenerated = "whGenerated"
	MetricWhUsed      = "whUsed"
	MetricTempC       = "tempC"
)

// CapacityEntry is one row of the capacity ranking report.
type CapacityEntry struct {
	SiteID   int64   `json:"siteId"`
	Capacity float64 `json:"capacity"`
}

// CapacityReport holds the sites with the lowest and highest current
// capacity, each ordered and capped at the requested limit.
type CapacityReport struct {
	LowestCapacity  []CapacityEntry `json:"lowestCapacity"`
	HighestCapacity []CapacityEntry `json:"highestCapacity"`
}

// SiteStats is the per-site, per-day aggregate maintained on every
// ingested reading.
type SiteStats struct {
	LastReportingTime int64   `json:"lastReportingTime"`
	MeterReadingCount int64   `json:"meterReadingCount"`
	MaxWhGenerated    float64 `json:"maxWhGenerated"`
	MinWhGenerated    float64 `json:"minWhGenerated"`
	MaxCapacity       float64 `json:"maxCapacity"`
}

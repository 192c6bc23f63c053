// Package generator produces random-walk historical meter readings for
// seeding a deployment with plausible sample data.
package generator

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/models"
)

// Max value temperatures reach when generating sample data.
const maxTempC = 30.0

const minutesPerDay = 24 * 60

// IngestFunc receives each generated reading in chronological order.
type IngestFunc func(ctx context.Context, reading models.MeterReading) error

// Generator produces sample meter readings. A fixed seed gives a
// reproducible series.
type Generator struct {
	rng *rand.Rand
	now func() int64
}

// New creates a generator seeded with the given value.
func New(seed int64, now func() int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: now,
	}
}

// maxMinuteWhGenerated is the most watt hours a site of the given rated
// capacity can generate in one minute.
func maxMinuteWhGenerated(capacity float64) float64 {
	return capacity * 1000 / 24 / 60
}

// initialWhUsed picks the starting usage just above or below the site's
// per-minute maximum.
func (g *Generator) initialWhUsed(maxCapacity float64) float64 {
	if g.rng.Float64() > 0.5 {
		return maxCapacity + 0.1
	}
	return maxCapacity - 0.1
}

// nextValue takes one random-walk step from current. Steps are a tenth
// of the series maximum and the walk never goes below zero.
func (g *Generator) nextValue(current, max float64) float64 {
	stepSize := 0.1 * max

	if g.rng.Float64() < 0.5 {
		return current + stepSize
	}

	if current-stepSize < 0 {
		return 0
	}

	return current - stepSize
}

// GenerateHistorical produces one reading per minute per site for the
// given number of days, ending now, and feeds them to ingest
// chronologically, interleaved across sites the way live traffic would
// arrive.
func (g *Generator) GenerateHistorical(ctx context.Context, sites []models.Site, days int, ingest IngestFunc) error {
	if days < 1 || days > 365 {
		return fmt.Errorf("historical data generation must cover 1-365 days, not %d", days)
	}

	minutes := days * minutesPerDay
	start := g.now() - int64(minutes)*60

	series := make([][]models.MeterReading, len(sites))

	for i, site := range sites {
		maxCapacity := maxMinuteWhGenerated(site.Capacity)

		currentCapacity := g.nextValue(maxCapacity, maxCapacity)
		currentTemperature := g.nextValue(maxTempC, maxTempC)
		currentUsage := g.initialWhUsed(maxCapacity)

		readings := make([]models.MeterReading, 0, minutes)

		for n := 0; n < minutes; n++ {
			readings = append(readings, models.MeterReading{
				SiteID:      site.ID,
				DateTime:    start + int64(n)*60,
				WhUsed:      currentUsage,
				WhGenerated: currentCapacity,
				TempC:       currentTemperature,
			})

			currentTemperature = g.nextValue(currentTemperature, maxTempC)
			currentCapacity = g.nextValue(currentCapacity, maxCapacity)
			currentUsage = g.nextValue(currentUsage, maxCapacity)
		}

		series[i] = readings
	}

	for n := 0; n < minutes; n++ {
		for i := range series {
			if err := ingest(ctx, series[i][n]); err != nil {
				return fmt.Errorf("ingest generated reading for site %d: %w", sites[i].ID, err)
			}
		}
	}

	return nil
}

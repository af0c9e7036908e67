package types

import (
	"math"
	"time"
)

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both components are finite and inside the
// latitude/longitude domain.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// ResolvedLocation is the output of a geocoding lookup. It lives for a single
// planning invocation; callers decide whether and how long to cache it.
type ResolvedLocation struct {
	Label       string      `json:"label"`
	Coords      Coordinates `json:"coords"`
	CountryCode string      `json:"country_code,omitempty"`
}

// GeoResult is a detected ambient position: a display label plus coordinates.
type GeoResult struct {
	City        string      `json:"city"`
	Coords      Coordinates `json:"coords"`
	CountryCode string      `json:"country_code,omitempty"`
}

// DateRange is an inclusive date window. StartDate is never after EndDate.
type DateRange struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

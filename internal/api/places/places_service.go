package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"googlemaps.github.io/maps"

	"github.com/gatherly/plan-engine/app/observability/metrics"
	"github.com/gatherly/plan-engine/config"
	"github.com/gatherly/plan-engine/internal/api"
	"github.com/gatherly/plan-engine/internal/types"
)

const (
	// DefaultRadiusMeters bounds a nearby search when the caller does not
	// override it.
	DefaultRadiusMeters = 4000
	defaultMaxResults   = 8
)

var _ Service = (*ServiceImpl)(nil)

// Service is the proximity search gateway contract. Failures on either
// provider tier surface as an empty list, never as an error; the orchestrator
// treats nearby suggestions as strictly optional.
type Service interface {
	SearchNearby(ctx context.Context, queryText string, origin types.Coordinates, radiusMeters int) []types.PlaceSuggestion
}

type ServiceImpl struct {
	logger     *slog.Logger
	cfg        config.ProvidersConfig
	client     *http.Client
	maps       *maps.Client
	maxResults int
}

func NewServiceImpl(cfg config.ProvidersConfig, planning config.PlanningConfig, logger *slog.Logger) (*ServiceImpl, error) {
	var mapsClient *maps.Client
	if cfg.GoogleMapsAPIKey != "" {
		var err error
		mapsClient, err = maps.NewClient(maps.WithAPIKey(cfg.GoogleMapsAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create maps client: %w", err)
		}
	}
	maxResults := planning.MaxPlaces
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &ServiceImpl{
		logger:     logger,
		cfg:        cfg,
		client:     api.NewHTTPClient(cfg.HTTPTimeout),
		maps:       mapsClient,
		maxResults: maxResults,
	}, nil
}

// SearchNearby ranks points of interest around the origin that match the
// intent of the query text. The paid places provider runs first when
// configured; the open Overpass database is the fallback tier.
func (s *ServiceImpl) SearchNearby(ctx context.Context, queryText string, origin types.Coordinates, radiusMeters int) []types.PlaceSuggestion {
	if !origin.Valid() {
		return nil
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}

	if s.maps != nil {
		if results := s.searchGoogle(ctx, queryText, origin, radiusMeters); len(results) > 0 {
			return results
		}
		metrics.Get().RecordGatewayFallback(ctx, "places", "google", "overpass")
	}

	return s.searchOverpass(ctx, queryText, origin, radiusMeters)
}

func (s *ServiceImpl) searchGoogle(ctx context.Context, queryText string, origin types.Coordinates, radiusMeters int) []types.PlaceSuggestion {
	resp, err := s.maps.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    queryText,
		Location: &maps.LatLng{Lat: origin.Lat, Lng: origin.Lon},
		Radius:   uint(radiusMeters),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "places text search failed", slog.Any("error", err))
		metrics.Get().RecordGatewayFailure(ctx, "places", "google")
		return nil
	}

	suggestions := make([]types.PlaceSuggestion, 0, len(resp.Results))
	for _, r := range resp.Results {
		coords := types.Coordinates{Lat: r.Geometry.Location.Lat, Lon: r.Geometry.Location.Lng}
		if !coords.Valid() {
			continue
		}
		placeType := "poi"
		if len(r.Types) > 0 {
			placeType = r.Types[0]
		}
		suggestions = append(suggestions, types.PlaceSuggestion{
			Name:       r.Name,
			Type:       placeType,
			Coords:     coords,
			DistanceKm: haversineKm(origin.Lat, origin.Lon, coords.Lat, coords.Lon),
			URL:        "https://www.google.com/maps/place/?q=place_id:" + url.QueryEscape(r.PlaceID),
			Address:    r.FormattedAddress,
			PriceLevel: r.PriceLevel,
		})
	}
	return s.rankAndCap(suggestions)
}

// overpassElement is one node/way/relation from the Overpass interpreter.
// Coordinates are pointers so missing values are distinguishable from zero.
type overpassElement struct {
	Type   string   `json:"type"`
	ID     int64    `json:"id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

func (s *ServiceImpl) searchOverpass(ctx context.Context, queryText string, origin types.Coordinates, radiusMeters int) []types.PlaceSuggestion {
	selectors := OverpassSelectors(queryText)
	if len(selectors) == 0 {
		// No recognizable intent; a blind "everything nearby" query would be
		// noise, so return nothing.
		return nil
	}

	around := fmt.Sprintf("(around:%d,%f,%f)", radiusMeters, origin.Lat, origin.Lon)
	var clauses []string
	for _, sel := range selectors {
		for _, kind := range []string{"node", "way", "relation"} {
			clauses = append(clauses, fmt.Sprintf("%s%s%s;", kind, sel, around))
		}
	}

	query := fmt.Sprintf("[out:json][timeout:25];\n(\n  %s\n);\nout center 20;", strings.Join(clauses, "\n  "))

	form := url.Values{}
	form.Set("data", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.OverpassURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	res, err := s.client.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "overpass query failed", slog.Any("error", err))
		metrics.Get().RecordGatewayFailure(ctx, "places", "overpass")
		return nil
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		metrics.Get().RecordGatewayFailure(ctx, "places", "overpass")
		return nil
	}

	var payload struct {
		Elements []overpassElement `json:"elements"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil
	}

	suggestions := make([]types.PlaceSuggestion, 0, len(payload.Elements))
	for _, el := range payload.Elements {
		lat, lon := el.Lat, el.Lon
		if lat == nil || lon == nil {
			if el.Center == nil {
				continue
			}
			lat, lon = &el.Center.Lat, &el.Center.Lon
		}
		coords := types.Coordinates{Lat: *lat, Lon: *lon}
		if !coords.Valid() {
			continue
		}

		name := el.Tags["name"]
		if name == "" {
			name = "Unnamed place"
		}
		placeType := firstTag(el.Tags, "amenity", "leisure", "tourism")
		if placeType == "" {
			placeType = "poi"
		}
		elType := el.Type
		if elType == "" {
			elType = "node"
		}

		suggestions = append(suggestions, types.PlaceSuggestion{
			Name:       name,
			Type:       placeType,
			Coords:     coords,
			DistanceKm: haversineKm(origin.Lat, origin.Lon, coords.Lat, coords.Lon),
			URL:        fmt.Sprintf("https://www.openstreetmap.org/%s/%d", elType, el.ID),
		})
	}
	return s.rankAndCap(suggestions)
}

func (s *ServiceImpl) rankAndCap(suggestions []types.PlaceSuggestion) []types.PlaceSuggestion {
	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i].DistanceKm < suggestions[j].DistanceKm
	})
	if len(suggestions) > s.maxResults {
		suggestions = suggestions[:s.maxResults]
	}
	return suggestions
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := tags[k]; v != "" {
			return v
		}
	}
	return ""
}

// haversineKm returns the great-circle distance in kilometers between two
// points in decimal degrees.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"googlemaps.github.io/maps"

	"github.com/gatherly/plan-engine/app/observability/metrics"
	"github.com/gatherly/plan-engine/config"
	"github.com/gatherly/plan-engine/internal/api"
	"github.com/gatherly/plan-engine/internal/types"
)

// ErrGeocodeUnavailable signals that the reverse-geocode provider was
// unreachable or returned nothing usable. Callers degrade to a generic
// "Unknown location" label instead of surfacing this to the user.
var ErrGeocodeUnavailable = errors.New("geocode provider unavailable")

// A live position is only trusted for an hour; a session-scoped city choice
// stays fresh for a day.
const (
	currentLocationTTL = 1 * time.Hour
	sessionCityTTL     = 24 * time.Hour

	currentLocationKey = "location:current"
	sessionCityKey     = "location:session_city"
)

// DeviceLocator reports device coordinates when a positioning source exists.
// Implementations must respect the context deadline; the gateway bounds the
// wait itself.
type DeviceLocator interface {
	Locate(ctx context.Context) (*types.Coordinates, error)
}

var _ Service = (*ServiceImpl)(nil)

// Service is the geocoding gateway contract.
type Service interface {
	ReverseGeocode(ctx context.Context, coords types.Coordinates) (*types.ResolvedLocation, error)
	ForwardGeocodeCity(ctx context.Context, name string) (*types.ResolvedLocation, error)
	FindPlaceFromText(ctx context.Context, freeText string) (*types.ResolvedLocation, error)
	DetectCurrentLocation(ctx context.Context) *types.GeoResult
	SessionCity() *types.GeoResult
	SetSessionCity(loc types.GeoResult)
}

type ServiceImpl struct {
	logger *slog.Logger
	cfg    config.ProvidersConfig
	client *http.Client
	maps   *maps.Client
	device DeviceLocator
	cache  *cache.Cache
}

// NewServiceImpl builds the gateway. A missing Google Maps key leaves the
// forward/text lookups degraded to nil results instead of failing startup.
func NewServiceImpl(cfg config.ProvidersConfig, device DeviceLocator, logger *slog.Logger) (*ServiceImpl, error) {
	var mapsClient *maps.Client
	if cfg.GoogleMapsAPIKey != "" {
		var err error
		mapsClient, err = maps.NewClient(maps.WithAPIKey(cfg.GoogleMapsAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create maps client: %w", err)
		}
	} else {
		logger.Warn("GOOGLE_MAPS_API_KEY not set, forward geocoding disabled")
	}

	return &ServiceImpl{
		logger: logger,
		cfg:    cfg,
		client: api.NewHTTPClient(cfg.HTTPTimeout),
		maps:   mapsClient,
		device: device,
		cache:  cache.New(currentLocationTTL, 10*time.Minute),
	}, nil
}

// bigDataCloud reverse-geocode response, keyless endpoint.
type reverseGeocodeResponse struct {
	City                 string `json:"city"`
	Locality             string `json:"locality"`
	PrincipalSubdivision string `json:"principalSubdivision"`
	CountryName          string `json:"countryName"`
	CountryCode          string `json:"countryCode"`
}

// ReverseGeocode maps coordinates to a "City, Region" display label.
func (s *ServiceImpl) ReverseGeocode(ctx context.Context, coords types.Coordinates) (*types.ResolvedLocation, error) {
	if !coords.Valid() {
		return nil, fmt.Errorf("%w: invalid coordinates", ErrGeocodeUnavailable)
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%f", coords.Lat))
	q.Set("longitude", fmt.Sprintf("%f", coords.Lon))
	q.Set("localityLanguage", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.ReverseGeocodeURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeocodeUnavailable, err)
	}
	res, err := s.client.Do(req)
	if err != nil {
		metrics.Get().RecordGatewayFailure(ctx, "geo", "reverse")
		return nil, fmt.Errorf("%w: %v", ErrGeocodeUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		metrics.Get().RecordGatewayFailure(ctx, "geo", "reverse")
		return nil, fmt.Errorf("%w: status %d", ErrGeocodeUnavailable, res.StatusCode)
	}

	var data reverseGeocodeResponse
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeocodeUnavailable, err)
	}

	city := firstNonEmpty(data.City, data.Locality, data.PrincipalSubdivision)
	region := firstNonEmpty(data.PrincipalSubdivision, data.CountryCode)

	var parts []string
	for _, p := range []string{city, region} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	label := strings.Join(parts, ", ")
	if label == "" {
		label = firstNonEmpty(data.CountryName, "Unknown location")
	}

	return &types.ResolvedLocation{
		Label:       label,
		Coords:      coords,
		CountryCode: data.CountryCode,
	}, nil
}

// ForwardGeocodeCity resolves a city name to coordinates. A nil result with a
// nil error means the provider found no match (or is not configured).
func (s *ServiceImpl) ForwardGeocodeCity(ctx context.Context, name string) (*types.ResolvedLocation, error) {
	if s.maps == nil || strings.TrimSpace(name) == "" {
		return nil, nil
	}

	results, err := s.maps.Geocode(ctx, &maps.GeocodingRequest{Address: name})
	if err != nil {
		s.logger.WarnContext(ctx, "forward geocode failed", slog.String("name", name), slog.Any("error", err))
		metrics.Get().RecordGatewayFailure(ctx, "geo", "forward")
		return nil, nil
	}
	if len(results) == 0 {
		return nil, nil
	}

	top := results[0]
	loc := &types.ResolvedLocation{
		Label: firstNonEmpty(top.FormattedAddress, name),
		Coords: types.Coordinates{
			Lat: top.Geometry.Location.Lat,
			Lon: top.Geometry.Location.Lng,
		},
	}
	for _, comp := range top.AddressComponents {
		for _, t := range comp.Types {
			if t == "country" {
				loc.CountryCode = comp.ShortName
			}
		}
	}
	return loc, nil
}

// FindPlaceFromText is the conversational-phrasing-tolerant lookup: a Places
// text search, with the country code backfilled through a reverse geocode
// when the search itself does not carry one.
func (s *ServiceImpl) FindPlaceFromText(ctx context.Context, freeText string) (*types.ResolvedLocation, error) {
	if s.maps == nil || strings.TrimSpace(freeText) == "" {
		return nil, nil
	}

	resp, err := s.maps.TextSearch(ctx, &maps.TextSearchRequest{Query: freeText})
	if err != nil {
		s.logger.WarnContext(ctx, "place text search failed", slog.Any("error", err))
		metrics.Get().RecordGatewayFailure(ctx, "geo", "text_search")
		return nil, nil
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	top := resp.Results[0]
	loc := &types.ResolvedLocation{
		Label: firstNonEmpty(top.Name, top.FormattedAddress, freeText),
		Coords: types.Coordinates{
			Lat: top.Geometry.Location.Lat,
			Lon: top.Geometry.Location.Lng,
		},
	}

	if rev, err := s.ReverseGeocode(ctx, loc.Coords); err == nil {
		loc.CountryCode = rev.CountryCode
	}
	return loc, nil
}

// DetectCurrentLocation finds the ambient position: device coordinates first
// (single bounded wait), then network positioning. Every tier's failure is
// swallowed; total failure yields nil.
func (s *ServiceImpl) DetectCurrentLocation(ctx context.Context) *types.GeoResult {
	if cached, ok := s.cache.Get(currentLocationKey); ok {
		if loc, ok := cached.(types.GeoResult); ok {
			return &loc
		}
	}

	if result := s.detectViaDevice(ctx); result != nil {
		s.cache.Set(currentLocationKey, *result, currentLocationTTL)
		return result
	}

	metrics.Get().RecordGatewayFallback(ctx, "geo", "device", "ip")
	if result := s.detectViaIP(ctx); result != nil {
		s.cache.Set(currentLocationKey, *result, currentLocationTTL)
		return result
	}

	s.logger.InfoContext(ctx, "current location detection failed on all tiers")
	return nil
}

func (s *ServiceImpl) detectViaDevice(ctx context.Context) *types.GeoResult {
	if s.device == nil {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.DeviceLocationTimeout)
	defer cancel()

	coords, err := s.device.Locate(waitCtx)
	if err != nil || coords == nil {
		return nil
	}

	result := &types.GeoResult{Coords: *coords, City: "Unknown location"}
	if rev, err := s.ReverseGeocode(ctx, *coords); err == nil {
		result.City = rev.Label
		result.CountryCode = rev.CountryCode
	}
	return result
}

// ipLookupResponse covers both ipwho.is and ipapi.co field sets.
type ipLookupResponse struct {
	Success     *bool   `json:"success,omitempty"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Country     string  `json:"country"`
	CountryName string  `json:"country_name"`
	CountryCode string  `json:"country_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

func (s *ServiceImpl) detectViaIP(ctx context.Context) *types.GeoResult {
	for _, lookupURL := range s.cfg.IPLookupURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
		if err != nil {
			continue
		}
		res, err := s.client.Do(req)
		if err != nil {
			continue
		}

		var data ipLookupResponse
		decodeErr := json.NewDecoder(res.Body).Decode(&data)
		res.Body.Close()
		if decodeErr != nil || res.StatusCode != http.StatusOK {
			continue
		}
		if data.Success != nil && !*data.Success {
			continue
		}

		coords := types.Coordinates{Lat: data.Latitude, Lon: data.Longitude}
		if !coords.Valid() || (coords.Lat == 0 && coords.Lon == 0) {
			continue
		}

		var parts []string
		for _, p := range []string{data.City, data.Region} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		city := strings.Join(parts, ", ")
		if city == "" {
			city = firstNonEmpty(data.Country, data.CountryName, "Unknown location")
		}

		return &types.GeoResult{City: city, Coords: coords, CountryCode: data.CountryCode}
	}
	return nil
}

// SessionCity returns the caller's cached selected city, if still fresh.
func (s *ServiceImpl) SessionCity() *types.GeoResult {
	if cached, ok := s.cache.Get(sessionCityKey); ok {
		if loc, ok := cached.(types.GeoResult); ok {
			return &loc
		}
	}
	return nil
}

// SetSessionCity caches the caller's selected city for 24 hours.
func (s *ServiceImpl) SetSessionCity(loc types.GeoResult) {
	s.cache.Set(sessionCityKey, loc, sessionCityTTL)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package geo

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/gatherly/plan-engine/config"
	"github.com/gatherly/plan-engine/internal/api"
	"github.com/gatherly/plan-engine/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(cfg config.ProvidersConfig, device DeviceLocator) *ServiceImpl {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	if cfg.DeviceLocationTimeout == 0 {
		cfg.DeviceLocationTimeout = time.Second
	}
	return &ServiceImpl{
		logger: testLogger(),
		cfg:    cfg,
		client: api.NewHTTPClient(cfg.HTTPTimeout),
		device: device,
		cache:  cache.New(currentLocationTTL, 10*time.Minute),
	}
}

type stubLocator struct {
	coords *types.Coordinates
	err    error
}

func (s *stubLocator) Locate(ctx context.Context) (*types.Coordinates, error) {
	return s.coords, s.err
}

func TestReverseGeocode(t *testing.T) {
	t.Run("composes city and region label", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "en", r.URL.Query().Get("localityLanguage"))
			w.Write([]byte(`{"city":"Lisbon","principalSubdivision":"Lisboa","countryName":"Portugal","countryCode":"PT"}`))
		}))
		defer srv.Close()

		s := newTestService(config.ProvidersConfig{ReverseGeocodeURL: srv.URL}, nil)
		loc, err := s.ReverseGeocode(context.Background(), types.Coordinates{Lat: 38.72, Lon: -9.14})
		require.NoError(t, err)
		assert.Equal(t, "Lisbon, Lisboa", loc.Label)
		assert.Equal(t, "PT", loc.CountryCode)
	})

	t.Run("falls back to country name", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"countryName":"Portugal","countryCode":"PT"}`))
		}))
		defer srv.Close()

		s := newTestService(config.ProvidersConfig{ReverseGeocodeURL: srv.URL}, nil)
		loc, err := s.ReverseGeocode(context.Background(), types.Coordinates{Lat: 38.72, Lon: -9.14})
		require.NoError(t, err)
		assert.Equal(t, "Portugal", loc.Label)
	})

	t.Run("non-2xx is a geocode error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		s := newTestService(config.ProvidersConfig{ReverseGeocodeURL: srv.URL}, nil)
		_, err := s.ReverseGeocode(context.Background(), types.Coordinates{Lat: 1, Lon: 1})
		assert.ErrorIs(t, err, ErrGeocodeUnavailable)
	})

	t.Run("invalid coordinates rejected", func(t *testing.T) {
		s := newTestService(config.ProvidersConfig{}, nil)
		_, err := s.ReverseGeocode(context.Background(), types.Coordinates{Lat: 99, Lon: 0})
		assert.ErrorIs(t, err, ErrGeocodeUnavailable)
	})
}

func TestForwardGeocodeCity(t *testing.T) {
	t.Run("nil when not configured", func(t *testing.T) {
		s := newTestService(config.ProvidersConfig{}, nil)
		loc, err := s.ForwardGeocodeCity(context.Background(), "Kyoto")
		require.NoError(t, err)
		assert.Nil(t, loc)
	})

	t.Run("resolves coords and country code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"OK","results":[{
				"formatted_address":"Kyoto, Japan",
				"geometry":{"location":{"lat":35.0116,"lng":135.7681}},
				"address_components":[{"long_name":"Japan","short_name":"JP","types":["country","political"]}]
			}]}`))
		}))
		defer srv.Close()

		mc, err := maps.NewClient(maps.WithAPIKey("test"), maps.WithBaseURL(srv.URL))
		require.NoError(t, err)

		s := newTestService(config.ProvidersConfig{}, nil)
		s.maps = mc

		loc, err := s.ForwardGeocodeCity(context.Background(), "Kyoto")
		require.NoError(t, err)
		require.NotNil(t, loc)
		assert.Equal(t, "Kyoto, Japan", loc.Label)
		assert.Equal(t, "JP", loc.CountryCode)
		assert.InDelta(t, 35.0116, loc.Coords.Lat, 0.001)
	})

	t.Run("no match yields nil not error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		}))
		defer srv.Close()

		mc, err := maps.NewClient(maps.WithAPIKey("test"), maps.WithBaseURL(srv.URL))
		require.NoError(t, err)

		s := newTestService(config.ProvidersConfig{}, nil)
		s.maps = mc

		loc, err := s.ForwardGeocodeCity(context.Background(), "Nowhereville")
		require.NoError(t, err)
		assert.Nil(t, loc)
	})
}

func TestDetectCurrentLocation(t *testing.T) {
	t.Run("device tier wins when it works", func(t *testing.T) {
		geocode := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"city":"Porto","principalSubdivision":"Porto","countryCode":"PT"}`))
		}))
		defer geocode.Close()

		device := &stubLocator{coords: &types.Coordinates{Lat: 41.15, Lon: -8.61}}
		s := newTestService(config.ProvidersConfig{ReverseGeocodeURL: geocode.URL}, device)

		result := s.DetectCurrentLocation(context.Background())
		require.NotNil(t, result)
		assert.Equal(t, "Porto, Porto", result.City)
		assert.Equal(t, "PT", result.CountryCode)
	})

	t.Run("falls back to IP chain on device failure", func(t *testing.T) {
		first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false}`))
		}))
		defer first.Close()
		second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"city":"Berlin","region":"Berlin","country_name":"Germany","country_code":"DE","latitude":52.52,"longitude":13.405}`))
		}))
		defer second.Close()

		device := &stubLocator{err: errors.New("no gps")}
		s := newTestService(config.ProvidersConfig{
			IPLookupURLs: []string{first.URL, second.URL},
		}, device)

		result := s.DetectCurrentLocation(context.Background())
		require.NotNil(t, result)
		assert.Equal(t, "Berlin, Berlin", result.City)
		assert.Equal(t, "DE", result.CountryCode)
	})

	t.Run("total failure yields nil", func(t *testing.T) {
		s := newTestService(config.ProvidersConfig{}, &stubLocator{err: errors.New("no gps")})
		assert.Nil(t, s.DetectCurrentLocation(context.Background()))
	})

	t.Run("result is cached for subsequent calls", func(t *testing.T) {
		calls := 0
		ip := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Write([]byte(`{"city":"Madrid","region":"Madrid","country_code":"ES","latitude":40.4,"longitude":-3.7}`))
		}))
		defer ip.Close()

		s := newTestService(config.ProvidersConfig{IPLookupURLs: []string{ip.URL}}, nil)

		first := s.DetectCurrentLocation(context.Background())
		second := s.DetectCurrentLocation(context.Background())
		require.NotNil(t, first)
		require.NotNil(t, second)
		assert.Equal(t, first.City, second.City)
		assert.Equal(t, 1, calls, "second call must come from cache")
	})
}

func TestSessionCityCache(t *testing.T) {
	s := newTestService(config.ProvidersConfig{}, nil)
	assert.Nil(t, s.SessionCity())

	s.SetSessionCity(types.GeoResult{City: "Vienna", Coords: types.Coordinates{Lat: 48.2, Lon: 16.37}})
	got := s.SessionCity()
	require.NotNil(t, got)
	assert.Equal(t, "Vienna", got.City)
}

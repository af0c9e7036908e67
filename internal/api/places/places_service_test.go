package places

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/plan-engine/config"
	"github.com/gatherly/plan-engine/internal/api"
	"github.com/gatherly/plan-engine/internal/types"
)

var testOrigin = types.Coordinates{Lat: 37.7749, Lon: -122.4194}

func newTestService(overpassURL string) *ServiceImpl {
	return &ServiceImpl{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg: config.ProvidersConfig{
			OverpassURL: overpassURL,
			HTTPTimeout: 5 * time.Second,
		},
		client:     api.NewHTTPClient(5 * time.Second),
		maxResults: defaultMaxResults,
	}
}

func TestOverpassSelectors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "coffee only",
			query: "find a cafe with wifi",
			want:  []string{`["amenity"="cafe"]`},
		},
		{
			name:  "generic food",
			query: "where should we eat tonight",
			want:  []string{`["amenity"="restaurant"]`},
		},
		{
			name:  "cuisine narrows restaurant",
			query: "sushi with the team",
			want:  []string{`["amenity"="restaurant"]["cuisine"~"sushi",i]`},
		},
		{
			name:  "bar expands to pub",
			query: "drinks after work",
			want:  []string{`["amenity"="bar"]`, `["amenity"="pub"]`},
		},
		{
			name:  "park",
			query: "picnic this weekend",
			want:  []string{`["leisure"="park"]`},
		},
		{
			name:  "museum",
			query: "an art exhibit downtown",
			want:  []string{`["tourism"="museum"]`},
		},
		{
			name:  "cinema",
			query: "catch a movie",
			want:  []string{`["amenity"="cinema"]`},
		},
		{
			name:  "combined intents",
			query: "coffee then a movie",
			want:  []string{`["amenity"="cafe"]`, `["amenity"="cinema"]`},
		},
		{
			name:  "no intent",
			query: "something fun",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverpassSelectors(tt.query))
		})
	}
}

func TestSearchNearbyOverpass(t *testing.T) {
	t.Run("ranks by distance and caps results", func(t *testing.T) {
		var gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			gotQuery = r.Form.Get("data")

			var elements []string
			for i := 0; i < 12; i++ {
				// Farther elements first so the sort is observable.
				elements = append(elements, fmt.Sprintf(
					`{"type":"node","id":%d,"lat":%f,"lon":-122.4194,"tags":{"name":"Cafe %d","amenity":"cafe"}}`,
					100+i, 37.7749+float64(12-i)*0.01, i,
				))
			}
			fmt.Fprintf(w, `{"elements":[%s]}`, strings.Join(elements, ","))
		}))
		defer srv.Close()

		svc := newTestService(srv.URL)
		got := svc.SearchNearby(context.Background(), "coffee nearby", testOrigin, 0)

		require.Len(t, got, 8)
		assert.Contains(t, gotQuery, `node["amenity"="cafe"](around:4000,`)
		assert.Contains(t, gotQuery, `way["amenity"="cafe"]`)
		assert.Contains(t, gotQuery, `relation["amenity"="cafe"]`)
		for i := 1; i < len(got); i++ {
			assert.LessOrEqual(t, got[i-1].DistanceKm, got[i].DistanceKm)
		}
		assert.Equal(t, "Cafe 11", got[0].Name)
		assert.Equal(t, "cafe", got[0].Type)
		assert.Equal(t, "https://www.openstreetmap.org/node/111", got[0].URL)
	})

	t.Run("way center coordinates and missing names", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"elements":[
				{"type":"way","id":42,"center":{"lat":37.78,"lon":-122.41},"tags":{"leisure":"park"}},
				{"type":"node","id":43,"tags":{"name":"No Coords Park","leisure":"park"}}
			]}`)
		}))
		defer srv.Close()

		svc := newTestService(srv.URL)
		got := svc.SearchNearby(context.Background(), "picnic in the park", testOrigin, 0)

		require.Len(t, got, 1)
		assert.Equal(t, "Unnamed place", got[0].Name)
		assert.Equal(t, "park", got[0].Type)
		assert.Equal(t, "https://www.openstreetmap.org/way/42", got[0].URL)
		assert.Greater(t, got[0].DistanceKm, 0.0)
	})

	t.Run("no recognizable intent returns empty without a request", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("overpass should not be queried")
		}))
		defer srv.Close()

		svc := newTestService(srv.URL)
		assert.Empty(t, svc.SearchNearby(context.Background(), "something fun", testOrigin, 0))
	})

	t.Run("upstream failure returns empty", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGatewayTimeout)
		}))
		defer srv.Close()

		svc := newTestService(srv.URL)
		assert.Empty(t, svc.SearchNearby(context.Background(), "dinner spot", testOrigin, 0))
	})

	t.Run("invalid origin returns empty", func(t *testing.T) {
		svc := newTestService("http://overpass.invalid")
		assert.Empty(t, svc.SearchNearby(context.Background(), "coffee", types.Coordinates{Lat: 200, Lon: 0}, 0))
	})

	t.Run("configured place cap limits results", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var elements []string
			for i := 0; i < 6; i++ {
				elements = append(elements, fmt.Sprintf(
					`{"type":"node","id":%d,"lat":%f,"lon":-122.4194,"tags":{"name":"Cafe %d","amenity":"cafe"}}`,
					200+i, 37.7749+float64(i)*0.01, i,
				))
			}
			fmt.Fprintf(w, `{"elements":[%s]}`, strings.Join(elements, ","))
		}))
		defer srv.Close()

		svc, err := NewServiceImpl(
			config.ProvidersConfig{OverpassURL: srv.URL, HTTPTimeout: 5 * time.Second},
			config.PlanningConfig{MaxPlaces: 3},
			slog.New(slog.NewTextHandler(io.Discard, nil)),
		)
		require.NoError(t, err)
		got := svc.SearchNearby(context.Background(), "coffee nearby", testOrigin, 0)
		assert.Len(t, got, 3)
	})
}

func TestHaversineKm(t *testing.T) {
	assert.Zero(t, haversineKm(37.7749, -122.4194, 37.7749, -122.4194))

	// San Francisco to Oakland is roughly 13 km.
	d := haversineKm(37.7749, -122.4194, 37.8044, -122.2712)
	assert.InDelta(t, 13.4, d, 1.0)
}

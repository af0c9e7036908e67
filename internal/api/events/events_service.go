package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/gatherly/plan-engine/app/observability/metrics"
	"github.com/gatherly/plan-engine/config"
	"github.com/gatherly/plan-engine/internal/api"
	"github.com/gatherly/plan-engine/internal/types"
)

const (
	defaultMaxResults = 5
	maxQueryChars     = 100
)

var _ Service = (*ServiceImpl)(nil)

// Service is the event search gateway contract. Unlike the proximity
// gateway, upstream failures surface a human-readable error alongside the
// empty list so callers can offer a retry.
type Service interface {
	SearchEvents(ctx context.Context, query string, origin *types.Coordinates, radiusKm int, window *types.DateRange, country string) ([]types.EventSuggestion, error)
}

type ServiceImpl struct {
	logger     *slog.Logger
	cfg        config.ProvidersConfig
	client     *http.Client
	now        func() time.Time
	maxResults int
}

func NewServiceImpl(cfg config.ProvidersConfig, planning config.PlanningConfig, logger *slog.Logger) *ServiceImpl {
	maxResults := planning.MaxEvents
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &ServiceImpl{
		logger:     logger,
		cfg:        cfg,
		client:     api.NewHTTPClient(cfg.HTTPTimeout),
		now:        time.Now,
		maxResults: maxResults,
	}
}

type eventsResponse struct {
	Results []struct {
		Title    string `json:"title"`
		Category string `json:"category"`
		Start    string `json:"start"`
		Entities []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"entities"`
	} `json:"results"`
}

// SearchEvents looks up real-world happenings around the origin within the
// date window. Events are location-anchored, so a missing origin short
// circuits to an empty result. The lower date bound is always clamped to now,
// both on the upstream query and on the parsed results, so past events never
// surface, even under an explicit past start filter.
func (s *ServiceImpl) SearchEvents(ctx context.Context, query string, origin *types.Coordinates, radiusKm int, window *types.DateRange, country string) ([]types.EventSuggestion, error) {
	if origin == nil || !origin.Valid() {
		return nil, nil
	}
	if s.cfg.PredictHQToken == "" {
		return nil, nil
	}
	if radiusKm <= 0 {
		radiusKm = 10
	}

	now := s.now()
	gte := now
	if window != nil && window.StartDate.After(now) {
		gte = window.StartDate
	}

	params := url.Values{}
	if query != "" {
		q := query
		if len(q) > maxQueryChars {
			q = q[:maxQueryChars]
		}
		params.Set("q", q)
	}
	params.Set("limit", fmt.Sprintf("%d", s.maxResults))
	params.Set("sort", "start")
	params.Set("active.gte", gte.Format(time.RFC3339))
	if window != nil {
		params.Set("active.lte", window.EndDate.Format("2006-01-02"))
	}
	params.Set("location_around.origin", fmt.Sprintf("%f,%f", origin.Lat, origin.Lon))
	params.Set("location_around.offset", fmt.Sprintf("%dkm", radiusKm))
	if country != "" {
		params.Set("country", country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.EventsURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building events request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.PredictHQToken)
	req.Header.Set("Accept", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "events search failed", slog.Any("error", err))
		metrics.Get().RecordGatewayFailure(ctx, "events", "predicthq")
		return nil, fmt.Errorf("events search is temporarily unavailable: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		metrics.Get().RecordGatewayFailure(ctx, "events", "predicthq")
		return nil, fmt.Errorf("events search returned status %d", res.StatusCode)
	}

	var payload eventsResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		metrics.Get().RecordGatewayFailure(ctx, "events", "predicthq")
		return nil, fmt.Errorf("events search returned an unreadable response: %w", err)
	}

	suggestions := make([]types.EventSuggestion, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.Title == "" {
			continue
		}
		var place string
		for _, e := range r.Entities {
			if e.Type == "venue" && e.Name != "" {
				place = e.Name
				break
			}
		}
		var startTime *time.Time
		if t, err := time.Parse(time.RFC3339, r.Start); err == nil {
			if t.Before(gte) {
				continue
			}
			startTime = &t
		}
		suggestions = append(suggestions, types.EventSuggestion{
			Title:     r.Title,
			Place:     place,
			StartTime: startTime,
			URL:       searchURL(r.Title, place),
			Category:  r.Category,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i].StartTime, suggestions[j].StartTime
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.Before(*b)
	})
	if len(suggestions) > s.maxResults {
		suggestions = suggestions[:s.maxResults]
	}
	return suggestions, nil
}

// searchURL synthesizes a web search link for an event so every surfaced
// suggestion is clickable even when the upstream index carries no direct URL.
func searchURL(title, place string) string {
	q := title
	if place != "" {
		q += " " + place
	}
	return "https://www.google.com/search?q=" + url.QueryEscape(q)
}

package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/gatherly/plan-engine/app/observability/metrics"
	"github.com/gatherly/plan-engine/config"
	"github.com/gatherly/plan-engine/internal/api"
	"github.com/gatherly/plan-engine/internal/api/agents"
	"github.com/gatherly/plan-engine/internal/api/events"
	"github.com/gatherly/plan-engine/internal/api/extraction"
	"github.com/gatherly/plan-engine/internal/api/geo"
	"github.com/gatherly/plan-engine/internal/api/places"
	"github.com/gatherly/plan-engine/internal/types"
)

// ErrNoIdeaText is returned when a plan is requested without any idea text.
// It is the only caller-facing error the orchestrator produces; every other
// failure mode degrades to a usable result.
var ErrNoIdeaText = errors.New("idea text is required")

// PlanRequest is the single orchestration entry point's input. Explicit
// filter fields override what the extractors infer from the idea text.
type PlanRequest struct {
	IdeaText          string
	AgentID           string
	ExplicitCoords    *types.Coordinates
	ExplicitCityLabel string
	ExplicitCountry   string
	ExplicitBudget    string
	ExplicitStartDate *time.Time
	ExplicitEndDate   *time.Time

	// Confirm resolves a country conflict between the idea text and the
	// explicit location filter. Nil means the caller has not decided yet;
	// orchestration stops before any gateway call and returns the conflict.
	Confirm func(LocationConflict) bool
}

// LocationConflict describes a country mismatch between the location phrase
// extracted from the idea text and the explicit location filter.
type LocationConflict struct {
	ExtractedPhrase  string `json:"extracted_phrase"`
	ExtractedCountry string `json:"extracted_country"`
	FilterLabel      string `json:"filter_label"`
	FilterCountry    string `json:"filter_country"`
}

// PlanOutcome wraps a plan result. Exactly one of Result and Conflict is set:
// Conflict means orchestration stopped at the confirmation decision point.
type PlanOutcome struct {
	Result      *types.PlanResult `json:"result,omitempty"`
	Conflict    *LocationConflict `json:"conflict,omitempty"`
	EventsError string            `json:"events_error,omitempty"`
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Plan(ctx context.Context, req PlanRequest) (*PlanOutcome, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	cfg      *config.Config
	geo      geo.Service
	places   places.Service
	events   events.Service
	registry *agents.Registry
	client   *http.Client

	// direct runs the provider-direct generation tier. Nil disables the tier.
	direct func(ctx context.Context, prompt string) (string, error)
	now    func() time.Time
}

func NewServiceImpl(cfg *config.Config, logger *slog.Logger, geoSvc geo.Service, placesSvc places.Service, eventsSvc events.Service, registry *agents.Registry) *ServiceImpl {
	s := &ServiceImpl{
		logger:   logger,
		cfg:      cfg,
		geo:      geoSvc,
		places:   placesSvc,
		events:   eventsSvc,
		registry: registry,
		client:   api.NewHTTPClient(cfg.Providers.HTTPTimeout),
		now:      time.Now,
	}
	if key := cfg.Providers.GeminiAPIKey; key != "" {
		s.direct = func(ctx context.Context, prompt string) (string, error) {
			ai, err := NewAIClient(ctx, key)
			if err != nil {
				return "", err
			}
			return ai.GenerateContent(ctx, prompt)
		}
	}
	return s
}

// Plan runs one orchestration pass: extract context from the idea text,
// resolve the origin, gather suggestions, then generate a narrative through
// the fallback chain. It always reaches a result unless the request itself is
// invalid or the caller must first resolve a location conflict.
func (s *ServiceImpl) Plan(ctx context.Context, req PlanRequest) (*PlanOutcome, error) {
	ctx, span := otel.Tracer("Planner").Start(ctx, "Plan")
	defer span.End()

	if strings.TrimSpace(req.IdeaText) == "" {
		span.SetStatus(codes.Error, "empty idea text")
		return nil, ErrNoIdeaText
	}

	invocationID := uuid.New().String()
	span.SetAttributes(attribute.String("invocation.id", invocationID))
	start := s.now()
	m := metrics.Get()
	m.PlanRequestsTotal.Add(ctx, 1)

	dateRange := extraction.ParseSemanticDates(req.IdeaText)
	phrase := extraction.ExtractLocationPhrase(req.IdeaText)

	origin, label, country, conflict := s.resolveLocation(ctx, req, phrase)
	if conflict != nil {
		if req.Confirm == nil || !req.Confirm(*conflict) {
			s.logger.InfoContext(ctx, "plan stopped on location conflict",
				slog.String("invocation_id", invocationID),
				slog.String("extracted", conflict.ExtractedPhrase),
				slog.String("filter_country", conflict.FilterCountry))
			span.SetStatus(codes.Ok, "stopped on location conflict")
			return &PlanOutcome{Conflict: conflict}, nil
		}
	}

	window := dateWindow(req, dateRange)

	var (
		nearbyPlaces []types.PlaceSuggestion
		nearbyEvents []types.EventSuggestion
		eventsErr    string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if origin == nil {
			return nil
		}
		nearbyPlaces = s.places.SearchNearby(gctx, req.IdeaText, *origin, s.cfg.Planning.DefaultRadiusMeters)
		return nil
	})
	g.Go(func() error {
		evs, err := s.events.SearchEvents(gctx, req.IdeaText, origin, int(s.cfg.Planning.EventRadiusKm), window, country)
		if err != nil {
			eventsErr = err.Error()
		}
		nearbyEvents = evs
		return nil
	})
	_ = g.Wait()

	result := s.generate(ctx, req, label, window, nearbyPlaces, nearbyEvents)

	m.PlanResultsBySource.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(result.Source))))
	m.PlanDurationSeconds.Record(ctx, s.now().Sub(start).Seconds())
	span.SetAttributes(attribute.String("plan.source", string(result.Source)))
	span.SetStatus(codes.Ok, "plan complete")

	return &PlanOutcome{Result: result, EventsError: eventsErr}, nil
}

// resolveLocation picks the origin for this invocation. An explicit filter
// always wins for which coordinates to use; a country mismatch against the
// extracted phrase surfaces as a conflict the caller must confirm.
func (s *ServiceImpl) resolveLocation(ctx context.Context, req PlanRequest, phrase string) (origin *types.Coordinates, label, country string, conflict *LocationConflict) {
	if req.ExplicitCoords != nil {
		origin = req.ExplicitCoords
		label = req.ExplicitCityLabel
		country = req.ExplicitCountry

		if phrase != "" && req.ExplicitCountry != "" {
			loc, err := s.geo.FindPlaceFromText(ctx, phrase)
			if err == nil && loc != nil && loc.CountryCode != "" && !strings.EqualFold(loc.CountryCode, req.ExplicitCountry) {
				metrics.Get().LocationConflictsTotal.Add(ctx, 1)
				conflict = &LocationConflict{
					ExtractedPhrase:  phrase,
					ExtractedCountry: loc.CountryCode,
					FilterLabel:      req.ExplicitCityLabel,
					FilterCountry:    req.ExplicitCountry,
				}
			}
		}
		return origin, label, country, conflict
	}

	if detected := s.geo.DetectCurrentLocation(ctx); detected != nil {
		return &detected.Coords, detected.City, detected.CountryCode, nil
	}

	if phrase != "" {
		if loc, err := s.geo.ForwardGeocodeCity(ctx, phrase); err == nil && loc != nil {
			return &loc.Coords, loc.Label, loc.CountryCode, nil
		}
	}

	if city := s.geo.SessionCity(); city != nil {
		return &city.Coords, city.City, city.CountryCode, nil
	}

	return nil, "", "", nil
}

func dateWindow(req PlanRequest, extracted *types.DateRange) *types.DateRange {
	if req.ExplicitStartDate != nil {
		end := *req.ExplicitStartDate
		if req.ExplicitEndDate != nil {
			end = *req.ExplicitEndDate
		}
		return &types.DateRange{StartDate: *req.ExplicitStartDate, EndDate: end}
	}
	return extracted
}

type proxyRequest struct {
	InvocationID string                  `json:"invocation_id"`
	AgentID      string                  `json:"agent_id"`
	Prompt       string                  `json:"prompt"`
	Places       []types.PlaceSuggestion `json:"places,omitempty"`
	Events       []types.EventSuggestion `json:"events,omitempty"`
}

type proxyResponse struct {
	Text     string `json:"text"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// generate walks the fallback chain: backend proxy, then a pinned direct
// provider call, then a deterministic local template. The last tier never
// fails, so generation always produces a result.
func (s *ServiceImpl) generate(ctx context.Context, req PlanRequest, label string, window *types.DateRange, nearbyPlaces []types.PlaceSuggestion, nearbyEvents []types.EventSuggestion) *types.PlanResult {
	prompt := s.registry.ComposePrompt(req.AgentID, userInput(req, label, window, nearbyPlaces, nearbyEvents))

	if s.cfg.Providers.AgentProxyURL != "" {
		if result := s.generateViaProxy(ctx, req, prompt, nearbyPlaces, nearbyEvents); result != nil {
			result.Places = nearbyPlaces
			result.Events = nearbyEvents
			return result
		}
		metrics.Get().RecordGatewayFallback(ctx, "generation", "proxy", "direct")
	}

	if s.direct != nil {
		if text, err := s.direct(ctx, prompt); err == nil && text != "" {
			return &types.PlanResult{
				NarrativeText: text,
				Model:         directModel,
				Provider:      "google",
				Source:        types.PlanSourceProviderDirect,
				Places:        nearbyPlaces,
				Events:        nearbyEvents,
			}
		} else if err != nil {
			s.logger.WarnContext(ctx, "direct generation failed", slog.Any("error", err))
			metrics.Get().RecordGatewayFailure(ctx, "generation", "direct")
		}
		metrics.Get().RecordGatewayFallback(ctx, "generation", "direct", "local")
	}

	return &types.PlanResult{
		NarrativeText: localNarrative(req.IdeaText, label, nearbyPlaces, nearbyEvents),
		Source:        types.PlanSourceLocal,
		Places:        nearbyPlaces,
		Events:        nearbyEvents,
	}
}

func (s *ServiceImpl) generateViaProxy(ctx context.Context, req PlanRequest, prompt string, nearbyPlaces []types.PlaceSuggestion, nearbyEvents []types.EventSuggestion) *types.PlanResult {
	body, err := json.Marshal(proxyRequest{
		InvocationID: uuid.New().String(),
		AgentID:      req.AgentID,
		Prompt:       prompt,
		Places:       nearbyPlaces,
		Events:       nearbyEvents,
	})
	if err != nil {
		return nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Providers.AgentProxyURL, bytes.NewReader(body))
	if err != nil {
		return nil
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.WarnContext(ctx, "proxy generation failed", slog.Any("error", err))
		metrics.Get().RecordGatewayFailure(ctx, "generation", "proxy")
		return nil
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		metrics.Get().RecordGatewayFailure(ctx, "generation", "proxy")
		return nil
	}

	var payload proxyResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil || payload.Text == "" {
		metrics.Get().RecordGatewayFailure(ctx, "generation", "proxy")
		return nil
	}

	return &types.PlanResult{
		NarrativeText: payload.Text,
		Model:         payload.Model,
		Provider:      payload.Provider,
		Source:        types.PlanSourceAPI,
	}
}

// userInput builds the [User] section: the raw idea text followed by the
// resolved context blocks the model should weave into its answer.
func userInput(req PlanRequest, label string, window *types.DateRange, nearbyPlaces []types.PlaceSuggestion, nearbyEvents []types.EventSuggestion) string {
	var b strings.Builder
	b.WriteString(req.IdeaText)

	if label != "" {
		fmt.Fprintf(&b, "\n\nLocation: %s", label)
	}
	if window != nil {
		fmt.Fprintf(&b, "\nDates: %s to %s", window.StartDate.Format("2006-01-02"), window.EndDate.Format("2006-01-02"))
	}
	if req.ExplicitBudget != "" {
		fmt.Fprintf(&b, "\nBudget: %s", req.ExplicitBudget)
	}

	if len(nearbyPlaces) > 0 {
		b.WriteString("\n\nNearby places:")
		for _, p := range nearbyPlaces {
			fmt.Fprintf(&b, "\n- %s (%s, %.1f km away)", p.Name, p.Type, p.DistanceKm)
		}
	}
	if len(nearbyEvents) > 0 {
		b.WriteString("\n\nUpcoming events:")
		for _, e := range nearbyEvents {
			fmt.Fprintf(&b, "\n- %s", e.Title)
			if e.Place != "" {
				fmt.Fprintf(&b, " at %s", e.Place)
			}
			if e.StartTime != nil {
				fmt.Fprintf(&b, " on %s", e.StartTime.Format("Jan 2"))
			}
		}
	}
	return b.String()
}

// localNarrative is the deterministic last tier. It always mentions the idea
// text so the caller can render something meaningful with zero providers
// configured.
func localNarrative(ideaText, label string, nearbyPlaces []types.PlaceSuggestion, nearbyEvents []types.EventSuggestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's a starting point for %q.", ideaText)
	if label != "" {
		fmt.Fprintf(&b, " Looking around %s,", label)
	} else {
		b.WriteString(" So far,")
	}
	switch {
	case len(nearbyPlaces) > 0 && len(nearbyEvents) > 0:
		fmt.Fprintf(&b, " there are %d spots and %d events below worth a look.", len(nearbyPlaces), len(nearbyEvents))
	case len(nearbyPlaces) > 0:
		fmt.Fprintf(&b, " there are %d spots below worth a look.", len(nearbyPlaces))
	case len(nearbyEvents) > 0:
		fmt.Fprintf(&b, " there are %d events below worth a look.", len(nearbyEvents))
	default:
		b.WriteString(" nothing nearby stood out, so pick a place together and go from there.")
	}
	step := 1
	for _, p := range nearbyPlaces {
		if step > 3 {
			break
		}
		fmt.Fprintf(&b, "\n%d. %s (%s)", step, p.Name, p.Type)
		step++
	}
	for _, e := range nearbyEvents {
		if step > 5 {
			break
		}
		fmt.Fprintf(&b, "\n%d. %s", step, e.Title)
		step++
	}
	return b.String()
}

package planner

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/gatherly/plan-engine/app/observability/metrics"
	"github.com/gatherly/plan-engine/internal/api"
	"github.com/gatherly/plan-engine/internal/types"
)

const selectionSessionTTL = 24 * time.Hour

type Handler struct {
	logger   *slog.Logger
	service  Service
	sessions *cache.Cache
}

func NewPlannerHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sessions: cache.New(selectionSessionTTL, 1*time.Hour),
	}
}

type planBody struct {
	IdeaText               string             `json:"idea_text"`
	AgentID                string             `json:"agent_id,omitempty"`
	Coords                 *types.Coordinates `json:"coords,omitempty"`
	CityLabel              string             `json:"city_label,omitempty"`
	Country                string             `json:"country,omitempty"`
	Budget                 string             `json:"budget,omitempty"`
	StartDate              string             `json:"start_date,omitempty"`
	EndDate                string             `json:"end_date,omitempty"`
	AcceptLocationConflict *bool              `json:"accept_location_conflict,omitempty"`
}

// CreatePlan handles POST /plan - runs one full planning orchestration
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlannerHandler").Start(r.Context(), "CreatePlan")
	defer span.End()

	l := h.logger.With(slog.String("method", "CreatePlan"))

	var body planBody
	if err := api.DecodeJSONBody(w, r, &body); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req := PlanRequest{
		IdeaText:          body.IdeaText,
		AgentID:           body.AgentID,
		ExplicitCoords:    body.Coords,
		ExplicitCityLabel: body.CityLabel,
		ExplicitCountry:   body.Country,
		ExplicitBudget:    body.Budget,
	}
	start, err := parseDate(body.StartDate)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid start_date")
		api.ErrorResponse(w, r, http.StatusBadRequest, "start_date: "+err.Error())
		return
	}
	req.ExplicitStartDate = start
	end, err := parseDate(body.EndDate)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid end_date")
		api.ErrorResponse(w, r, http.StatusBadRequest, "end_date: "+err.Error())
		return
	}
	req.ExplicitEndDate = end
	if body.AcceptLocationConflict != nil {
		accept := *body.AcceptLocationConflict
		req.Confirm = func(LocationConflict) bool { return accept }
	}

	outcome, err := h.service.Plan(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNoIdeaText) {
			span.SetStatus(codes.Error, "Empty idea text")
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		l.ErrorContext(ctx, "Planning failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Planning failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to create plan")
		return
	}

	status := http.StatusOK
	if outcome.Conflict != nil {
		// 409 signals the caller must resend with accept_location_conflict.
		status = http.StatusConflict
	}
	span.SetStatus(codes.Ok, "Plan created")
	api.WriteJSONResponse(w, r, status, outcome)
}

type selectionBody struct {
	SessionID string                 `json:"session_id"`
	Place     *types.PlaceSuggestion `json:"place,omitempty"`
	Event     *types.EventSuggestion `json:"event,omitempty"`
	FeedEvent *types.FeedEvent       `json:"feed_event,omitempty"`
}

type selectionResponse struct {
	SessionID  string            `json:"session_id"`
	Selected   bool              `json:"selected"`
	Count      int               `json:"count"`
	Selections []types.FeedEvent `json:"selections"`
}

// ToggleSelection handles POST /plan/selection - toggles a suggestion in the
// session's selection set
func (h *Handler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlannerHandler").Start(r.Context(), "ToggleSelection")
	defer span.End()

	l := h.logger.With(slog.String("method", "ToggleSelection"))

	var body selectionBody
	if err := api.DecodeJSONBody(w, r, &body); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if body.SessionID == "" {
		// First toggle of a session mints its id; the caller carries it forward.
		body.SessionID = uuid.New().String()
	}

	var feedEvent types.FeedEvent
	switch {
	case body.FeedEvent != nil:
		feedEvent = *body.FeedEvent
	case body.Place != nil:
		feedEvent = PlaceToFeedEvent(*body.Place)
	case body.Event != nil:
		feedEvent = EventToFeedEvent(*body.Event)
	default:
		api.ErrorResponse(w, r, http.StatusBadRequest, "one of feed_event, place or event is required")
		return
	}
	if feedEvent.Title == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "suggestion title is required")
		return
	}

	set := h.sessionSet(body.SessionID)
	selected := set.Toggle(feedEvent)
	metrics.Get().SelectionTogglesTotal.Add(ctx, 1)

	l.InfoContext(ctx, "Selection toggled",
		slog.String("session_id", body.SessionID),
		slog.Bool("selected", selected),
		slog.Int("count", set.Len()))
	span.SetStatus(codes.Ok, "Selection toggled")

	api.WriteJSONResponse(w, r, http.StatusOK, selectionResponse{
		SessionID:  body.SessionID,
		Selected:   selected,
		Count:      set.Len(),
		Selections: set.Items(),
	})
}

func (h *Handler) sessionSet(sessionID string) *SelectionSet {
	if cached, ok := h.sessions.Get(sessionID); ok {
		if set, ok := cached.(*SelectionSet); ok {
			return set
		}
	}
	set := NewSelectionSet()
	h.sessions.Set(sessionID, set, selectionSessionTTL)
	return set
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("unrecognized date format")
}

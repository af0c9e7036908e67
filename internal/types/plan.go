package types

import "time"

// PlaceSuggestion is one nearby point of interest returned by the proximity
// gateway, ordered ascending by DistanceKm within a result set.
type PlaceSuggestion struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Coords     Coordinates `json:"coords"`
	DistanceKm float64     `json:"distance_km"`
	URL        string      `json:"url"`
	Address    string      `json:"address,omitempty"`
	PriceLevel int         `json:"price_level,omitempty"` // 0 = unknown, 1-4 otherwise
}

// EventSuggestion is one real-world happening from the events index.
type EventSuggestion struct {
	Title     string     `json:"title"`
	Place     string     `json:"place,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	URL       string     `json:"url,omitempty"`
	Category  string     `json:"category,omitempty"`
}

// PlanSource records which tier of the generation fallback chain produced the
// narrative text.
type PlanSource string

const (
	PlanSourceAPI            PlanSource = "api"
	PlanSourceProviderDirect PlanSource = "provider-direct"
	PlanSourceLocal          PlanSource = "local"
)

// PlanResult is the merged output of one planning invocation.
type PlanResult struct {
	NarrativeText string            `json:"narrative_text"`
	Model         string            `json:"model,omitempty"`
	Provider      string            `json:"provider,omitempty"`
	Source        PlanSource        `json:"source"`
	Places        []PlaceSuggestion `json:"places"`
	Events        []EventSuggestion `json:"events"`
}

// FeedEvent is the normalized shape a suggestion takes on its way into a
// session idea. Both event-search results and place suggestions convert into
// it so selection and dedup treat them uniformly. Start and End are ISO-8601
// strings when present.
type FeedEvent struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	Start        string   `json:"start,omitempty"`
	End          string   `json:"end,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	SourceURL    string   `json:"source_url,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
	Address      string   `json:"address,omitempty"`
}

package planner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gatherly/plan-engine/internal/types"
)

// SelectionKey identifies a suggestion for dedup purposes. Two feed events
// with the same key are the same selection, even when the structs holding
// them are distinct instances.
func SelectionKey(e types.FeedEvent) string {
	lat, lon := "", ""
	if e.Lat != nil {
		lat = strconv.FormatFloat(*e.Lat, 'f', 6, 64)
	}
	if e.Lon != nil {
		lon = strconv.FormatFloat(*e.Lon, 'f', 6, 64)
	}
	return strings.Join([]string{e.Title, e.Start, e.LocationName, e.SourceURL, e.Address, lat, lon}, "|")
}

// SelectionSet tracks which suggestions the user has picked within one
// orchestration session. Toggling a selected suggestion again removes it.
type SelectionSet struct {
	mu    sync.Mutex
	items map[string]types.FeedEvent
}

func NewSelectionSet() *SelectionSet {
	return &SelectionSet{items: make(map[string]types.FeedEvent)}
}

// Toggle adds the suggestion to the set, or removes it when an equal one is
// already selected. It reports whether the suggestion is selected afterwards.
func (s *SelectionSet) Toggle(e types.FeedEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := SelectionKey(e)
	if _, ok := s.items[key]; ok {
		delete(s.items, key)
		return false
	}
	s.items[key] = e
	return true
}

func (s *SelectionSet) Contains(e types.FeedEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[SelectionKey(e)]
	return ok
}

func (s *SelectionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Items returns the current selections in a stable order.
func (s *SelectionSet) Items() []types.FeedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.FeedEvent, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return SelectionKey(out[i]) < SelectionKey(out[j])
	})
	return out
}

// PlaceToFeedEvent converts a place suggestion into the normalized selection
// shape. Distance, price and address land in the description so downstream
// idea creation has human-readable context without a second lookup.
func PlaceToFeedEvent(p types.PlaceSuggestion) types.FeedEvent {
	var parts []string
	if p.DistanceKm > 0 {
		parts = append(parts, fmt.Sprintf("%.1f km away", p.DistanceKm))
	}
	if p.PriceLevel > 0 {
		parts = append(parts, strings.Repeat("$", p.PriceLevel))
	}
	if p.Address != "" {
		parts = append(parts, p.Address)
	}

	lat, lon := p.Coords.Lat, p.Coords.Lon
	return types.FeedEvent{
		Title:        p.Name,
		Description:  strings.Join(parts, " · "),
		Category:     p.Type,
		LocationName: p.Name,
		SourceURL:    p.URL,
		Lat:          &lat,
		Lon:          &lon,
		Address:      p.Address,
	}
}

// EventToFeedEvent converts an event suggestion into the normalized
// selection shape.
func EventToFeedEvent(e types.EventSuggestion) types.FeedEvent {
	var start string
	if e.StartTime != nil {
		start = e.StartTime.Format(time.RFC3339)
	}
	return types.FeedEvent{
		Title:        e.Title,
		Category:     e.Category,
		Start:        start,
		LocationName: e.Place,
		SourceURL:    e.URL,
	}
}

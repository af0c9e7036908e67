package extraction

import (
	"regexp"
	"strings"
)

// Best-effort location phrase heuristic. It may find nothing, the wrong
// phrase, or a sub-string of the true place name; callers treat the output as
// a hint and resolve it through the geocoding gateway.

// Pattern precedence: travel intent, prepositional, "City, Region", "let's go
// to", then a curated list of well-known city names.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(^|\s)(travel\s+to|trip\s+to|visiting|visit|going\s+to|headed\s+to)\s+([a-zA-Z][a-zA-Z .'-]{1,48})`),
	regexp.MustCompile(`(?i)(^|\s)(in|at|near|around|to|from|exploring)\s+([a-zA-Z][a-zA-Z .'-]{1,48})`),
	regexp.MustCompile(`(^|\s)([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*),\s*([A-Z]{2,3}|[A-Z][a-z]+)`),
	regexp.MustCompile(`(?i)(^|\s)(let'?s\s+go\s+to|heading\s+to)\s+([a-zA-Z][a-zA-Z .'-]{1,48})`),
	regexp.MustCompile(`(?i)(^|\s)(new\s+york|los\s+angeles|san\s+francisco|chicago|boston|seattle|portland|austin|denver|miami|atlanta|philadelphia|washington|london|paris|tokyo|berlin|amsterdam|barcelona|rome|madrid|dublin|sydney|melbourne|toronto|vancouver|montreal|kyoto|osaka|beijing|shanghai|hong\s+kong|singapore|bangkok|mumbai|delhi|cairo|dubai|istanbul|moscow|st\s+petersburg)($|\s|[.,;!?:])`),
}

// cityRegionPattern and the direct-city pattern carry their candidate in
// different groups than the verb-led ones.
const (
	cityRegionIdx = 2
	directCityIdx = 4
)

// Generic words that must never be treated as a place.
var locationStoplist = map[string]struct{}{
	"me": {}, "us": {}, "there": {}, "here": {}, "somewhere": {}, "anywhere": {}, "everywhere": {},
	"home": {}, "work": {}, "school": {}, "place": {}, "town": {}, "city": {}, "area": {}, "location": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "some": {}, "any": {}, "all": {}, "every": {},
	"good": {}, "great": {}, "nice": {}, "cool": {}, "fun": {}, "awesome": {}, "amazing": {},
	"food": {}, "drink": {}, "eat": {}, "restaurant": {}, "bar": {}, "cafe": {}, "shop": {},
	"winter": {}, "summer": {}, "spring": {}, "fall": {}, "autumn": {}, "season": {},
	"time": {}, "day": {}, "night": {}, "morning": {}, "afternoon": {}, "evening": {},
}

// Fixes casing and common spellings for well-known cities.
var locationCorrections = map[string]string{
	"kyoto": "Kyoto", "tokyo": "Tokyo", "paris": "Paris", "london": "London",
	"rome": "Rome", "berlin": "Berlin", "madrid": "Madrid", "barcelona": "Barcelona",
	"amsterdam": "Amsterdam", "vienna": "Vienna", "prague": "Prague", "budapest": "Budapest",
	"dublin": "Dublin", "edinburgh": "Edinburgh", "stockholm": "Stockholm", "copenhagen": "Copenhagen",
	"oslo": "Oslo", "helsinki": "Helsinki", "moscow": "Moscow", "istanbul": "Istanbul",
	"athens": "Athens", "lisbon": "Lisbon", "zurich": "Zurich", "geneva": "Geneva",
	"milan": "Milan", "florence": "Florence", "venice": "Venice", "naples": "Naples",
	"sydney": "Sydney", "melbourne": "Melbourne", "brisbane": "Brisbane", "perth": "Perth",
	"auckland": "Auckland", "wellington": "Wellington", "toronto": "Toronto", "vancouver": "Vancouver",
	"montreal": "Montreal", "ottawa": "Ottawa", "calgary": "Calgary",
	"new york": "New York", "los angeles": "Los Angeles", "san francisco": "San Francisco",
	"chicago": "Chicago", "boston": "Boston", "seattle": "Seattle", "portland": "Portland",
	"austin": "Austin", "denver": "Denver", "miami": "Miami", "atlanta": "Atlanta",
	"philadelphia": "Philadelphia", "washington": "Washington DC", "las vegas": "Las Vegas",
	"san diego": "San Diego",
}

var (
	thTypoRe      = regexp.MustCompile(`\bth\b`)
	inTheRe       = regexp.MustCompile(`\bin\s+the\s+`)
	dateFillerRe  = regexp.MustCompile(`\b(winter|summer|spring|fall|autumn|next|this|today|tomorrow|weekend|week|month|year)\b`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)
	trailingPunct = regexp.MustCompile(`[.,;!?:]+$`)
)

// ExtractLocationPhrase pulls the most likely place name out of free text.
// Empty string means no acceptable candidate was found.
func ExtractLocationPhrase(text string) string {
	if text == "" {
		return ""
	}

	for i, re := range locationPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		var candidate string
		switch i {
		case cityRegionIdx:
			candidate = m[2] + ", " + m[3]
		case directCityIdx:
			candidate = strings.TrimSpace(m[2])
		default:
			candidate = strings.TrimSpace(m[3])
		}

		candidate = trailingPunct.ReplaceAllString(candidate, "")
		if len(candidate) < 2 {
			continue
		}
		if _, stopped := locationStoplist[strings.ToLower(candidate)]; stopped {
			continue
		}
		return NormalizeLocation(candidate)
	}
	return ""
}

// NormalizeLocation cleans up a raw location candidate: lowercases, strips
// filler and date words, then applies the known-city correction table or
// falls back to per-word title casing.
func NormalizeLocation(location string) string {
	if location == "" {
		return location
	}

	normalized := strings.ToLower(strings.TrimSpace(location))
	normalized = thTypoRe.ReplaceAllString(normalized, "the")
	normalized = dateFillerRe.ReplaceAllString(normalized, "")
	normalized = inTheRe.ReplaceAllString(normalized, "in ")
	normalized = strings.TrimSpace(multiSpaceRe.ReplaceAllString(normalized, " "))

	if corrected, ok := locationCorrections[normalized]; ok {
		return corrected
	}

	words := strings.Fields(normalized)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

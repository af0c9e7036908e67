package places

import (
	"fmt"
	"regexp"
	"strings"
)

// Intent buckets map free-text outing queries to OpenStreetMap tag
// selectors. First the cuisine words are checked so "sushi tonight" narrows
// the restaurant selector instead of matching the generic food bucket alone.
var (
	cuisineRe = regexp.MustCompile(`\b(sushi|ramen|pizza|tacos?|burgers?|steak|thai|indian|mexican|chinese|korean|italian|mediterranean|vegan|vegetarian|bbq|barbecue)\b`)
	foodRe    = regexp.MustCompile(`\b(eat|food|restaurants?|dinner|lunch|brunch|hungry)\b`)
	coffeeRe  = regexp.MustCompile(`\b(coffee|cafes?|caf\x{e9}s?|espresso|latte)\b`)
	barRe     = regexp.MustCompile(`\b(bars?|pubs?|beers?|cocktails?|drinks?|nightlife)\b`)
	parkRe    = regexp.MustCompile(`\b(parks?|picnic|outdoors?|hike|walk|trail)\b`)
	museumRe  = regexp.MustCompile(`\b(museums?|galler(?:y|ies)|exhibits?|exhibitions?|art)\b`)
	cinemaRe  = regexp.MustCompile(`\b(movies?|cinemas?|films?|theaters?|theatres?)\b`)
)

// OverpassSelectors classifies the query text and returns the tag selector
// fragments to embed in an Overpass query, e.g. `["amenity"="cafe"]`. An
// empty slice means no recognizable intent.
func OverpassSelectors(queryText string) []string {
	q := strings.ToLower(queryText)
	var selectors []string

	if cuisine := cuisineRe.FindString(q); cuisine != "" {
		selectors = append(selectors, fmt.Sprintf(`["amenity"="restaurant"]["cuisine"~"%s",i]`, cuisine))
	} else if foodRe.MatchString(q) {
		selectors = append(selectors, `["amenity"="restaurant"]`)
	}
	if coffeeRe.MatchString(q) {
		selectors = append(selectors, `["amenity"="cafe"]`)
	}
	if barRe.MatchString(q) {
		selectors = append(selectors, `["amenity"="bar"]`, `["amenity"="pub"]`)
	}
	if parkRe.MatchString(q) {
		selectors = append(selectors, `["leisure"="park"]`)
	}
	if museumRe.MatchString(q) {
		selectors = append(selectors, `["tourism"="museum"]`)
	}
	if cinemaRe.MatchString(q) {
		selectors = append(selectors, `["amenity"="cinema"]`)
	}
	return selectors
}

package schema

import "strings"

// Candidate names are matched case-insensitively and in listed order, so the
// officially documented name always wins over a later alias.
var (
	eventTimeCandidates = []string{
		"pickup_datetime",
		"tpep_pickup_datetime",
		"lpep_pickup_datetime",
		"trip_pickup_datetime",
		"pickup_datetime_utc",
		"pickup_date",
		"pickup_time",
		"request_datetime",
		"request_date",
	}

	placeCandidates = []string{
		"pulocationid",
		"pu_location_id",
		"pickup_location_id",
		"pickup_location",
		"pickup_locationid",
		"pickup_zone_id",
		"pu_zone",
		"origin_location_id",
		"location_id",
	}

	latCandidates = []string{"start_lat", "start_latitude", "pickup_lat", "pickup_latitude", "origin_lat"}
	lonCandidates = []string{"start_lon", "start_longitude", "pickup_lon", "pickup_longitude", "origin_lon"}

	// fuzzy passes run in order; the first column matching a marker and
	// any of the suffixes wins.
	eventTimeMarkers = []string{"pickup", "request"}
	eventTimeHints   = []string{"datetime", "date", "time"}
	placeMarkers     = []string{"pickup", "pu_", "origin"}
	placeHints       = []string{"location", "zone"}
)

// ResolveEventTime returns the pickup/request timestamp column, or "".
func ResolveEventTime(names []string) string {
	if c := exact(names, eventTimeCandidates); c != "" {
		return c
	}
	return fuzzy(names, eventTimeMarkers, eventTimeHints)
}

// ResolvePlace returns the discrete pickup place column, or "".
func ResolvePlace(names []string) string {
	if c := exact(names, placeCandidates); c != "" {
		return c
	}
	return fuzzy(names, placeMarkers, placeHints)
}

// ResolveLatLon returns the pickup latitude and longitude columns. Both are
// empty unless both resolve.
func ResolveLatLon(names []string) (lat, lon string) {
	lat = exact(names, latCandidates)
	lon = exact(names, lonCandidates)
	if lat == "" || lon == "" {
		return "", ""
	}
	return lat, lon
}

func exact(names, candidates []string) string {
	lower := lowered(names)
	for _, c := range candidates {
		for i, n := range lower {
			if n == c {
				return names[i]
			}
		}
	}
	return ""
}

func fuzzy(names, markers, hints []string) string {
	lower := lowered(names)
	for _, m := range markers {
		for i, n := range lower {
			if strings.Contains(n, m) && containsAny(n, hints) {
				return names[i]
			}
		}
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lowered(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(n)
	}
	return out
}

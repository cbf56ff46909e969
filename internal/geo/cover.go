package geo

import "github.com/greglum/map-project/internal/core/model"

// DefaultPrefixLen is the stored geohash prefix length the cell index is
// built on.
const DefaultPrefixLen = 3

// CoverPrefixes approximates the set of fixed-length geohash prefixes whose
// cells cover the box spanned by sw and ne. It samples nine points (the four
// corners, the center and the midpoint of each edge), encodes each at the
// given precision and deduplicates, preserving first-seen order so callers
// fan out deterministically.
//
// This trades recall for bounded fan-out: very large or antimeridian-crossing
// boxes may be under-covered. A zero-extent box still yields one prefix.
func CoverPrefixes(sw, ne model.Point, precision int) []string {
	if precision <= 0 {
		precision = DefaultPrefixLen
	}

	midLat := (sw.Lat + ne.Lat) / 2
	midLng := (sw.Lng + ne.Lng) / 2

	samples := []model.Point{
		{Lat: sw.Lat, Lng: sw.Lng}, // sw corner
		{Lat: ne.Lat, Lng: ne.Lng}, // ne corner
		{Lat: ne.Lat, Lng: sw.Lng}, // nw corner
		{Lat: sw.Lat, Lng: ne.Lng}, // se corner
		{Lat: midLat, Lng: midLng}, // center
		{Lat: ne.Lat, Lng: midLng}, // north edge
		{Lat: sw.Lat, Lng: midLng}, // south edge
		{Lat: midLat, Lng: sw.Lng}, // west edge
		{Lat: midLat, Lng: ne.Lng}, // east edge
	}

	seen := make(map[string]struct{}, len(samples))
	out := make([]string, 0, len(samples))
	for _, p := range samples {
		prefix := Encode(p.Lat, p.Lng, precision)
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		out = append(out, prefix)
	}
	return out
}

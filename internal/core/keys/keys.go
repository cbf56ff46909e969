// Package keys builds the partition, hierarchy and cache keys used across
// the service.
package keys

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	featurePrefix   = "AHUPUAA#"
	islandPrefix    = "MOKUPUNI#"
	districtMarker  = "#MOKU#"
	UnknownPart     = "Unknown"
	hierarchyKeyLen = 4
)

// FeaturePK formats a feature id as a partition key. Applying it to an
// already formatted key is a no-op.
func FeaturePK(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, featurePrefix) {
		return id
	}
	return featurePrefix + id
}

// FeatureID strips the partition key prefix back off.
func FeatureID(pk string) string {
	return strings.TrimPrefix(pk, featurePrefix)
}

// HierarchySK formats the two-level region hierarchy as a sort key.
// Blank components normalize to "Unknown", which survives reformatting.
func HierarchySK(island, district string) string {
	island = strings.TrimSpace(island)
	district = strings.TrimSpace(district)
	if island == "" {
		island = UnknownPart
	}
	if district == "" {
		district = UnknownPart
	}
	return islandPrefix + island + districtMarker + district
}

// ParseHierarchySK splits a hierarchy sort key back into its island and
// district components. Malformed keys parse as (Unknown, Unknown).
func ParseHierarchySK(sk string) (island, district string) {
	parts := strings.Split(sk, "#")
	if len(parts) < hierarchyKeyLen {
		return UnknownPart, UnknownPart
	}
	island = strings.TrimSpace(parts[1])
	district = strings.TrimSpace(parts[3])
	if island == "" {
		island = UnknownPart
	}
	if district == "" {
		district = UnknownPart
	}
	return island, district
}

// Cache builds a deterministic, ASCII-safe cache key from a namespace and
// its arguments. The raw argument text is hashed so that sanitizing can
// never collide two distinct argument sets.
func Cache(namespace string, args ...string) string {
	raw := strings.Join(args, "\x1f")
	var b strings.Builder
	b.WriteString(namespace)
	for _, a := range args {
		b.WriteByte(':')
		b.WriteString(sanitize(a))
	}
	sum := xxhash.Sum64String(raw)
	return fmt.Sprintf("%s:h=%016x", b.String(), sum)
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := r
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// Package geo implements the geohash codec and the bounding-box prefix
// planner used to approximate spatial queries over the prefix index.
package geo

import "strings"

const alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode returns the base-32 geohash of the given coordinate at exactly
// precision characters, interleaving longitude and latitude bisections
// longitude-first.
func Encode(lat, lng float64, precision int) string {
	minLat, maxLat := -90.0, 90.0
	minLng, maxLng := -180.0, 180.0

	var out []byte
	var ch byte
	bit := 0
	even := true

	for len(out) < precision {
		if even {
			mid := (minLng + maxLng) / 2
			if lng >= mid {
				ch |= 1 << (4 - bit)
				minLng = mid
			} else {
				maxLng = mid
			}
		} else {
			mid := (minLat + maxLat) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				minLat = mid
			} else {
				maxLat = mid
			}
		}
		even = !even

		bit++
		if bit == 5 {
			out = append(out, alphabet[ch])
			bit = 0
			ch = 0
		}
	}

	return string(out)
}

// Decode reverses the bisection and returns the center of the cell the
// geohash denotes. Characters outside the base-32 alphabet contribute no
// bits; they are skipped rather than rejected, so Decode has no error path.
func Decode(gh string) (lat, lng float64) {
	minLat, maxLat := -90.0, 90.0
	minLng, maxLng := -180.0, 180.0
	even := true

	for _, r := range gh {
		idx := strings.IndexRune(alphabet, r)
		if idx < 0 {
			continue
		}
		for bit := 4; bit >= 0; bit-- {
			set := idx>>uint(bit)&1 == 1
			if even {
				mid := (minLng + maxLng) / 2
				if set {
					minLng = mid
				} else {
					maxLng = mid
				}
			} else {
				mid := (minLat + maxLat) / 2
				if set {
					minLat = mid
				} else {
					maxLat = mid
				}
			}
			even = !even
		}
	}

	return (minLat + maxLat) / 2, (minLng + maxLng) / 2
}

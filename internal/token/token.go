// Package token converts backend continuation keys to opaque, URL-safe page
// tokens and back. Tokens are best-effort: anything that fails to decode is
// treated as "no continuation" so a corrupt token yields a first page, never
// an error.
package token

import (
	"encoding/base64"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/greglum/map-project/internal/store"
)

var json = jsoniter.ConfigFastest

const (
	heuristicSampleLen = 100
	binaryThreshold    = 0.10
)

// Encode serializes a continuation key as a URL-safe token. An empty or nil
// key encodes to "".
func Encode(key store.Key) string {
	if len(key) == 0 {
		return ""
	}

	flat := make(map[string]string, len(key))
	for name, v := range key {
		switch v.Kind {
		case store.KindString:
			flat[name] = v.S
		case store.KindNumber:
			flat[name] = v.N
		case store.KindBinary:
			flat[name] = base64.StdEncoding.EncodeToString(v.B)
		}
	}

	raw, err := json.Marshal(flat)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode reverses Encode. Field kinds are recovered heuristically: a value
// that parses as a number becomes a numeric attribute; a value that decodes
// as base64 AND looks binary by byte content becomes a binary attribute;
// everything else stays a string.
//
// The binary test is a heuristic, not a tagged encoding: short printable
// strings that happen to be valid base64 stay strings even when they were
// binary on encode. That boundary is covered by tests rather than fixed.
func Decode(tok string) store.Key {
	if tok == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		// tolerate padded tokens from older clients
		raw, err = base64.URLEncoding.DecodeString(tok)
		if err != nil {
			return nil
		}
	}

	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil
	}
	if len(flat) == 0 {
		return nil
	}

	key := make(store.Key, len(flat))
	for name, s := range flat {
		key[name] = typedValue(s)
	}
	return key
}

func typedValue(s string) store.AttributeValue {
	if isNumeric(s) {
		return store.Number(s)
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && looksBinary(b) {
		return store.Binary(b)
	}
	return store.String(s)
}

// isNumeric accepts plain decimal representations only. Scientific notation
// is rejected on purpose: geohash strings such as "8e9" would otherwise be
// misread as numbers.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c == '.':
		case (c == '-' || c == '+') && i == 0:
		default:
			return false
		}
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// looksBinary samples up to 100 bytes and flags binary when more than 10%
// of the sample is outside tab/LF/CR and printable ASCII.
func looksBinary(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	sample := b
	if len(sample) > heuristicSampleLen {
		sample = sample[:heuristicSampleLen]
	}
	nonText := 0
	for _, c := range sample {
		if c == 9 || c == 10 || c == 13 || (c >= 32 && c <= 126) {
			continue
		}
		nonText++
	}
	return float64(nonText) > binaryThreshold*float64(len(sample))
}

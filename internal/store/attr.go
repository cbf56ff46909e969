package store

import "strconv"

// GetString returns the string value of a record attribute, or "" when the
// attribute is absent or not a string.
func GetString(r Record, name string) string {
	v, ok := r[name]
	if !ok {
		return ""
	}
	switch v.Kind {
	case KindString:
		return v.S
	case KindNumber:
		return v.N
	case KindBinary:
		return ""
	}
	return ""
}

// GetInt returns the integer value of a numeric attribute, or def when the
// attribute is absent or unparsable.
func GetInt(r Record, name string, def int) int {
	v, ok := r[name]
	if !ok || v.Kind != KindNumber {
		return def
	}
	n, err := strconv.Atoi(v.N)
	if err != nil {
		// tolerate decimal representations of whole numbers
		if f, ferr := strconv.ParseFloat(v.N, 64); ferr == nil {
			return int(f)
		}
		return def
	}
	return n
}

// GetFloat returns the float value of a numeric attribute, or def when the
// attribute is absent or unparsable.
func GetFloat(r Record, name string, def float64) float64 {
	v, ok := r[name]
	if !ok || v.Kind != KindNumber {
		return def
	}
	f, err := strconv.ParseFloat(v.N, 64)
	if err != nil {
		return def
	}
	return f
}

// HasNumber reports whether the record carries a parsable numeric attribute.
func HasNumber(r Record, name string) bool {
	v, ok := r[name]
	if !ok || v.Kind != KindNumber {
		return false
	}
	_, err := strconv.ParseFloat(v.N, 64)
	return err == nil
}

// Project returns a copy of the record restricted to the named attributes.
// An empty projection returns the record unchanged.
func Project(r Record, projection []string) Record {
	if len(projection) == 0 {
		return r
	}
	out := make(Record, len(projection))
	for _, name := range projection {
		if v, ok := r[name]; ok {
			out[name] = v
		}
	}
	return out
}

// MatchesAll reports whether every equality filter holds on the record.
func MatchesAll(r Record, filters []Condition) bool {
	for _, f := range filters {
		v, ok := r[f.Attribute]
		if !ok {
			return false
		}
		if !equalValue(v, f.Value) {
			return false
		}
	}
	return true
}

func equalValue(a, b AttributeValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindString:
		return a.S == b.S
	case KindNumber:
		return a.N == b.N
	case KindBinary:
		return string(a.B) == string(b.B)
	}
	return false
}

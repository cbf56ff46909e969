package geo

import (
	"testing"

	"github.com/greglum/map-project/internal/core/model"
)

func TestCoverPrefixes_BigIslandBox(t *testing.T) {
	sw := model.Point{Lat: 19.0, Lng: -156.0}
	ne := model.Point{Lat: 21.0, Lng: -155.0}

	got := CoverPrefixes(sw, ne, 3)
	if len(got) == 0 || len(got) > 9 {
		t.Fatalf("expected between 1 and 9 prefixes, got %d: %v", len(got), got)
	}

	want := map[string]bool{"8e3": true, "8e9": true}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected prefix %q", p)
		}
		delete(want, p)
	}
	if len(want) != 0 {
		t.Errorf("missing prefixes: %v", want)
	}
}

func TestCoverPrefixes_DegenerateBox(t *testing.T) {
	p := model.Point{Lat: 20.5, Lng: -156.3}
	got := CoverPrefixes(p, p, 3)
	if len(got) != 1 {
		t.Fatalf("zero-extent box must yield exactly one prefix, got %v", got)
	}
	if got[0] != Encode(p.Lat, p.Lng, 3) {
		t.Fatalf("prefix %q does not match the point's own geohash", got[0])
	}
}

func TestCoverPrefixes_Deterministic(t *testing.T) {
	sw := model.Point{Lat: 19.0, Lng: -156.0}
	ne := model.Point{Lat: 21.0, Lng: -155.0}
	a := CoverPrefixes(sw, ne, 3)
	b := CoverPrefixes(sw, ne, 3)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic length: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic order: %v vs %v", a, b)
		}
	}
}

func TestCoverPrefixes_DefaultPrecision(t *testing.T) {
	p := model.Point{Lat: 20.5, Lng: -156.3}
	got := CoverPrefixes(p, p, 0)
	if len(got) != 1 || len(got[0]) != DefaultPrefixLen {
		t.Fatalf("expected one prefix of default length, got %v", got)
	}
}

package keys

import (
	"regexp"
	"testing"
	"unicode"
)

func TestFeaturePK_Idempotent(t *testing.T) {
	pk := FeaturePK("X123")
	if pk != "AHUPUAA#X123" {
		t.Fatalf("unexpected pk: %s", pk)
	}
	if again := FeaturePK(pk); again != pk {
		t.Fatalf("prefixing is not idempotent: %s != %s", again, pk)
	}
	if id := FeatureID(pk); id != "X123" {
		t.Fatalf("round-trip id: %s", id)
	}
}

func TestHierarchySK_RoundTrip(t *testing.T) {
	cases := []struct {
		island, district string
		want             string
	}{
		{"Hawaii", "Kona", "MOKUPUNI#Hawaii#MOKU#Kona"},
		{"Maui", "Hana", "MOKUPUNI#Maui#MOKU#Hana"},
		{"", "", "MOKUPUNI#Unknown#MOKU#Unknown"},
		{"  Oahu ", "", "MOKUPUNI#Oahu#MOKU#Unknown"},
	}
	for _, tc := range cases {
		sk := HierarchySK(tc.island, tc.district)
		if sk != tc.want {
			t.Fatalf("HierarchySK(%q,%q) = %s, want %s", tc.island, tc.district, sk, tc.want)
		}
		i, d := ParseHierarchySK(sk)
		if re := HierarchySK(i, d); re != sk {
			t.Fatalf("format/parse/format not identity: %s -> %s", sk, re)
		}
	}
}

func TestParseHierarchySK_Malformed(t *testing.T) {
	for _, sk := range []string{"", "MOKUPUNI#Hawaii", "garbage", "a#b#c"} {
		i, d := ParseHierarchySK(sk)
		if i != UnknownPart || d != UnknownPart {
			t.Fatalf("ParseHierarchySK(%q) = (%s,%s), want Unknown pair", sk, i, d)
		}
	}
}

func TestCache_DeterministicAndASCII(t *testing.T) {
	k1 := Cache("features", "Hawaiʻi", "Kona district")
	k2 := Cache("features", "Hawaiʻi", "Kona district")
	if k1 != k2 {
		t.Fatalf("cache key not deterministic:\n %s\n %s", k1, k2)
	}
	for _, r := range k1 {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k1)
		}
	}
	if !regexp.MustCompile(`:h=[0-9a-f]{16}$`).MatchString(k1) {
		t.Fatalf("missing hash suffix: %s", k1)
	}
}

func TestCache_DistinctArgsDistinctKeys(t *testing.T) {
	// sanitizing maps both slashes to '-', only the hash separates them
	k1 := Cache("features", "a/b", "c")
	k2 := Cache("features", "a.b", "c")
	if k1 == k2 {
		t.Fatal("distinct args must produce distinct keys")
	}
}

package region_test

import (
	"testing"

	"github.com/waygrade/travel-engine/region"
)

func TestNormalize(t *testing.T) {
	n := region.NewNormalizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"abbreviation", "서울", "서울특별시"},
		{"abbreviation with suffix", "서울시", "서울특별시"},
		{"island shorthand", "제주", "제주특별자치도"},
		{"island with suffix", "제주도", "제주특별자치도"},
		{"legacy name gangwon", "강원도", "강원특별자치도"},
		{"legacy name jeonbuk", "전라북도", "전북특별자치도"},
		{"already canonical", "경기도", "경기도"},
		{"canonical special city", "세종특별자치시", "세종특별자치시"},
		{"unknown passes through", "평양", "평양"},
		{"typo passes through", "셔울", "셔울"},
		{"empty passes through", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	// Normalizing a normalized name must be a no-op.
	n := region.NewNormalizer()

	for _, input := range []string{"서울", "제주도", "강원도", "경기도", "평양"} {
		once := n.Normalize(input)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestCode(t *testing.T) {
	n := region.NewNormalizer()

	tests := []struct {
		input string
		want  string
	}{
		{"서울특별시", "KR-11"},
		{"제주특별자치도", "KR-49"},
		{"강원특별자치도", "KR-42"},
		{"평양", ""},    // pass-through region, no code
		{"서울", ""},    // codes are keyed by canonical name only
		{"", ""},
	}

	for _, tt := range tests {
		if got := n.Code(tt.input); got != tt.want {
			t.Errorf("Code(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestKnown(t *testing.T) {
	n := region.NewNormalizer()

	if !n.Known("제주") {
		t.Error("alias of a canonical region should be known")
	}
	if !n.Known("경상북도") {
		t.Error("canonical region should be known")
	}
	if n.Known("평양") {
		t.Error("unknown region should not be known")
	}
}

func TestCanonical_Complete(t *testing.T) {
	n := region.NewNormalizer()

	regions := n.Canonical()
	if len(regions) != 17 {
		t.Fatalf("expected 17 regions, got %d", len(regions))
	}

	seen := make(map[string]bool)
	for _, r := range regions {
		if r.Name == "" || r.Code == "" {
			t.Errorf("region entry incomplete: %+v", r)
		}
		if seen[r.Code] {
			t.Errorf("duplicate region code %s", r.Code)
		}
		seen[r.Code] = true
	}
}

func TestNewNormalizerWithTables(t *testing.T) {
	n := region.NewNormalizerWithTables(
		[]region.Region{{Name: "테스트도", Code: "KR-99"}},
		map[string]string{"테스트": "테스트도"},
	)

	if got := n.Normalize("테스트"); got != "테스트도" {
		t.Errorf("custom alias not applied: got %q", got)
	}
	if got := n.Code("테스트도"); got != "KR-99" {
		t.Errorf("custom code not found: got %q", got)
	}
	if got := n.Normalize("서울"); got != "서울" {
		t.Errorf("default tables leaked into custom normalizer: got %q", got)
	}
}

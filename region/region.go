/*
Package region canonicalizes free-text Korean location strings.

PURPOSE:
  Every component that compares or counts locations (trip counting,
  stamp claims, coupon milestones) needs a single spelling per region.
  This package maps abbreviations and legacy names onto the 17
  top-level administrative regions of South Korea.

NORMALIZATION CONTRACT:
  - Known alias ("서울", "제주도")      -> canonical name
  - Already canonical ("경기도")        -> returned unchanged
  - Unknown input ("평양", typos)       -> returned verbatim, no error

  Unknown pass-through is deliberate: a region missing from the alias
  table still accumulates visits consistently under whatever string
  was submitted, instead of being silently dropped.

USAGE:
  n := region.NewNormalizer()
  n.Normalize("제주")   // "제주특별자치도"
  n.Code("제주특별자치도") // "KR-49"

SEE ALSO:
  - engine/coupon.go: counts trips per normalized region
  - engine/stamp.go:  one stamp per normalized region
*/
package region

// Region is one canonical administrative region.
type Region struct {
	Name string `json:"name"` // official Korean name
	Code string `json:"code"` // ISO 3166-2:KR code
}

// Normalizer maps location strings to canonical region names.
// The tables are fixed at construction; a Normalizer is safe for
// concurrent use.
type Normalizer struct {
	aliases   map[string]string
	canonical map[string]Region
	ordered   []Region
}

// =============================================================================
// DEFAULT TABLES - 17 top-level regions
// =============================================================================

var defaultRegions = []Region{
	{Name: "서울특별시", Code: "KR-11"},
	{Name: "부산광역시", Code: "KR-26"},
	{Name: "대구광역시", Code: "KR-27"},
	{Name: "인천광역시", Code: "KR-28"},
	{Name: "광주광역시", Code: "KR-29"},
	{Name: "대전광역시", Code: "KR-30"},
	{Name: "울산광역시", Code: "KR-31"},
	{Name: "세종특별자치시", Code: "KR-50"},
	{Name: "경기도", Code: "KR-41"},
	{Name: "강원특별자치도", Code: "KR-42"},
	{Name: "충청북도", Code: "KR-43"},
	{Name: "충청남도", Code: "KR-44"},
	{Name: "전북특별자치도", Code: "KR-45"},
	{Name: "전라남도", Code: "KR-46"},
	{Name: "경상북도", Code: "KR-47"},
	{Name: "경상남도", Code: "KR-48"},
	{Name: "제주특별자치도", Code: "KR-49"},
}

// defaultAliases maps common abbreviations and pre-rename legacy names
// onto the canonical spellings above.
var defaultAliases = map[string]string{
	"서울":   "서울특별시",
	"서울시":  "서울특별시",
	"부산":   "부산광역시",
	"대구":   "대구광역시",
	"인천":   "인천광역시",
	"광주":   "광주광역시",
	"대전":   "대전광역시",
	"울산":   "울산광역시",
	"세종":   "세종특별자치시",
	"세종시":  "세종특별자치시",
	"경기":   "경기도",
	"강원":   "강원특별자치도",
	"강원도":  "강원특별자치도", // renamed 2023
	"충북":   "충청북도",
	"충남":   "충청남도",
	"전북":   "전북특별자치도",
	"전라북도": "전북특별자치도", // renamed 2024
	"전남":   "전라남도",
	"경북":   "경상북도",
	"경남":   "경상남도",
	"제주":   "제주특별자치도",
	"제주도":  "제주특별자치도",
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// NewNormalizer returns a Normalizer backed by the default tables.
func NewNormalizer() *Normalizer {
	return NewNormalizerWithTables(defaultRegions, defaultAliases)
}

// NewNormalizerWithTables builds a Normalizer from custom tables.
// Intended for tests that need a smaller or different region set.
func NewNormalizerWithTables(regions []Region, aliases map[string]string) *Normalizer {
	n := &Normalizer{
		aliases:   make(map[string]string, len(aliases)),
		canonical: make(map[string]Region, len(regions)),
		ordered:   make([]Region, len(regions)),
	}
	copy(n.ordered, regions)
	for _, r := range regions {
		n.canonical[r.Name] = r
	}
	for alias, name := range aliases {
		n.aliases[alias] = name
	}
	return n
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// Normalize maps input to its canonical region name.
// Unknown input is returned verbatim. Idempotent.
func (n *Normalizer) Normalize(input string) string {
	if _, ok := n.canonical[input]; ok {
		return input
	}
	if name, ok := n.aliases[input]; ok {
		return name
	}
	return input
}

// Code returns the ISO 3166-2:KR code for a canonical region name,
// or "" when the name is not one of the canonical regions.
func (n *Normalizer) Code(canonicalName string) string {
	if r, ok := n.canonical[canonicalName]; ok {
		return r.Code
	}
	return ""
}

// Known reports whether input resolves to a canonical region.
func (n *Normalizer) Known(input string) bool {
	_, ok := n.canonical[n.Normalize(input)]
	return ok
}

// Canonical returns the full region list in table order.
func (n *Normalizer) Canonical() []Region {
	out := make([]Region, len(n.ordered))
	copy(out, n.ordered)
	return out
}

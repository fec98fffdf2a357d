package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
)

var (
	slugStrip = regexp.MustCompile(`[^a-z0-9\s_-]+`)
	slugSep   = regexp.MustCompile(`[\s_-]+`)
)

// Slugify lowercases s, strips non-alphanumerics and joins words with single
// hyphens. Slugify(Slugify(s)) == Slugify(s).
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSep.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// aliasGroups lists names that refer to the same city for pricing purposes.
// The first entry of each group is the preferred upstream name.
var aliasGroups = [][]string{
	{"bangalore", "bengaluru"},
	{"mumbai", "bombay", "navi-mumbai", "thane"},
	{"delhi", "new-delhi", "delhi-ncr", "ncr", "gurgaon", "gurugram", "noida", "ghaziabad", "faridabad"},
	{"chennai", "madras"},
	{"kolkata", "calcutta"},
	{"hyderabad", "secunderabad"},
	{"pune", "poona"},
	{"mysore", "mysuru"},
	{"kochi", "cochin", "ernakulam"},
	{"thiruvananthapuram", "trivandrum"},
	{"visakhapatnam", "vizag"},
	{"vadodara", "baroda"},
	{"varanasi", "banaras", "benares"},
	{"puducherry", "pondicherry"},
	{"kozhikode", "calicut"},
}

var aliasIndex = func() map[string][]string {
	idx := make(map[string][]string)
	for _, group := range aliasGroups {
		for _, name := range group {
			idx[name] = group
		}
	}
	return idx
}()

// Aliases returns the other known names of the city with the given slug.
func Aliases(slug string) []string {
	group := aliasIndex[slug]
	out := make([]string, 0, len(group))
	for _, name := range group {
		if name != slug {
			out = append(out, name)
		}
	}
	return out
}

// Describe builds a CityDescriptor for an upstream city name and symbol.
func Describe(name, symbol string) model.CityDescriptor {
	slug := Slugify(name)
	return model.CityDescriptor{
		CanonicalName: strings.TrimSpace(name),
		Slug:          slug,
		Symbol:        strings.TrimSpace(symbol),
		Aliases:       Aliases(slug),
	}
}

// DisplayName turns a slug such as "navi-mumbai" into "Navi Mumbai".
func DisplayName(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// DefaultCity is used when a city cannot be resolved.
var DefaultCity = Describe("Mumbai", "MUMBAI")

// Resolver matches loosely formatted city names against an upstream's city list.
type Resolver struct {
	cities   []model.CityDescriptor
	bySlug   map[string]int
	fallback model.CityDescriptor
}

// NewResolver indexes cities by slug, compacted slug, alias and symbol.
// fallback is returned, flagged, when nothing matches; if a city with the
// fallback's slug exists in the list that entry is used instead.
func NewResolver(cities []model.CityDescriptor, fallback model.CityDescriptor) *Resolver {
	r := &Resolver{
		cities:   append([]model.CityDescriptor(nil), cities...),
		bySlug:   make(map[string]int, len(cities)*2),
		fallback: fallback,
	}
	for i := range r.cities {
		if r.cities[i].Slug == "" {
			r.cities[i].Slug = Slugify(r.cities[i].CanonicalName)
		}
		r.index(r.cities[i].Slug, i)
		r.index(compact(r.cities[i].Slug), i)
	}
	// Aliases and symbols never shadow a city listed under its own name.
	for i, c := range r.cities {
		for _, a := range c.Aliases {
			r.index(Slugify(a), i)
		}
		if c.Symbol != "" {
			r.index(Slugify(c.Symbol), i)
		}
	}
	if i, ok := r.bySlug[fallback.Slug]; ok {
		r.fallback = r.cities[i]
	}
	return r
}

// index keeps the first city registered for a key so explicit names beat later aliases.
func (r *Resolver) index(key string, i int) {
	if key == "" {
		return
	}
	if _, exists := r.bySlug[key]; !exists {
		r.bySlug[key] = i
	}
}

// Resolve finds the city for input. Case, hyphen and space variants resolve
// identically. Resolution order: exact slug, known aliases, compacted slug,
// unique prefix, closest spelling. Unmatched input returns the fallback city
// with Fallback set.
func (r *Resolver) Resolve(input string) model.CityResolution {
	slug := Slugify(input)
	if slug == "" {
		return model.CityResolution{City: r.fallback, Input: input, Fallback: true}
	}

	if c, ok := r.lookup(slug); ok {
		return model.CityResolution{City: c, Input: input}
	}
	for _, alias := range aliasIndex[slug] {
		if c, ok := r.lookup(alias); ok {
			return model.CityResolution{City: c, Input: input}
		}
	}
	if c, ok := r.lookup(compact(slug)); ok {
		return model.CityResolution{City: c, Input: input}
	}
	if c, ok := r.prefixMatch(slug); ok {
		return model.CityResolution{City: c, Input: input}
	}
	if c, ok := r.closestMatch(slug); ok {
		return model.CityResolution{City: c, Input: input}
	}

	return model.CityResolution{City: r.fallback, Input: input, Fallback: true}
}

// Cities returns the indexed city list.
func (r *Resolver) Cities() []model.CityDescriptor {
	return r.cities
}

func (r *Resolver) lookup(key string) (model.CityDescriptor, bool) {
	i, ok := r.bySlug[key]
	if !ok {
		return model.CityDescriptor{}, false
	}
	return r.cities[i], true
}

func (r *Resolver) prefixMatch(slug string) (model.CityDescriptor, bool) {
	if len(slug) < 4 {
		return model.CityDescriptor{}, false
	}
	match := -1
	for i, c := range r.cities {
		if strings.HasPrefix(c.Slug, slug) || strings.HasPrefix(slug, c.Slug+"-") {
			if match >= 0 {
				return model.CityDescriptor{}, false
			}
			match = i
		}
	}
	if match < 0 {
		return model.CityDescriptor{}, false
	}
	return r.cities[match], true
}

func (r *Resolver) closestMatch(slug string) (model.CityDescriptor, bool) {
	if len(slug) < 4 {
		return model.CityDescriptor{}, false
	}
	maxDist := 1
	if len(slug) > 6 {
		maxDist = 2
	}

	best, bestDist, tie := -1, maxDist+1, false
	for i, c := range r.cities {
		d := levenshtein(slug, c.Slug)
		switch {
		case d < bestDist:
			best, bestDist, tie = i, d, false
		case d == bestDist:
			tie = true
		}
	}
	if best < 0 || tie {
		return model.CityDescriptor{}, false
	}
	return r.cities[best], true
}

func compact(slug string) string {
	return strings.ReplaceAll(slug, "-", "")
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Package sampler generates argument values for JSON-Schema tool-input
// descriptors, either deterministically or from a seeded PRNG.
package sampler

import (
	"math"
	"strings"

	"github.com/goccy/go-json"
)

// Schema is the slice of JSON Schema the sampler understands.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties"`
	Required   []string           `json:"required"`
	Items      *Schema            `json:"items"`
	Enum       []any              `json:"enum"`
	Format     string             `json:"format"`
	Minimum    *float64           `json:"minimum"`
	Maximum    *float64           `json:"maximum"`
	MinLength  int                `json:"minLength"`
}

// ParseSchema decodes a raw inputSchema descriptor. A nil or empty
// descriptor yields an empty object schema.
func ParseSchema(raw json.RawMessage) (*Schema, error) {
	if len(raw) == 0 {
		return &Schema{Type: "object"}, nil
	}
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

var formatDefaults = map[string]string{
	"uri":       "https://example.com",
	"url":       "https://example.com",
	"email":     "test@example.com",
	"date":      "2025-01-01",
	"date-time": "2025-01-01T00:00:00Z",
}

// GenerateArgs produces a deterministic value for the schema: the same
// schema always yields the identical object. Only required properties are
// populated.
func GenerateArgs(s *Schema) any {
	if s == nil {
		return map[string]any{}
	}

	if len(s.Enum) > 0 {
		return s.Enum[0]
	}

	switch s.Type {
	case "string":
		v, ok := formatDefaults[s.Format]
		if !ok {
			v = "test"
		}
		if len(v) < s.MinLength {
			v += strings.Repeat("x", s.MinLength-len(v))
		}
		return v

	case "integer":
		return int(midpoint(s))

	case "number":
		return midpoint(s)

	case "boolean":
		return true

	case "array":
		return []any{GenerateArgs(s.Items)}

	default:
		obj := map[string]any{}
		for _, name := range s.Required {
			obj[name] = GenerateArgs(s.Properties[name])
		}
		return obj
	}
}

// midpoint picks the midpoint of [minimum, minimum+100], rounded down.
func midpoint(s *Schema) float64 {
	lo := 0.0
	if s.Minimum != nil {
		lo = *s.Minimum
	}
	hi := lo + 100
	return math.Floor((lo + hi) / 2)
}

// wordPool is the vocabulary for random strings.
var wordPool = []string{
	"search", "build", "create", "update", "remove", "fetch",
	"quick", "bright", "stable", "remote", "local", "hidden",
	"server", "client", "record", "stream", "window", "report",
	"find all entries", "check the status", "list everything",
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Sampler generates randomised arguments from a seeded PRNG. All random
// choices route through the PRNG.
type Sampler struct {
	rng *PRNG

	// MinStringLen pads generated strings up to this length.
	MinStringLen int
}

// New creates a Sampler with the given seed.
func New(seed uint32) *Sampler {
	return &Sampler{rng: NewPRNG(seed)}
}

// SetSeed resets the underlying PRNG.
func (g *Sampler) SetSeed(seed uint32) {
	g.rng.SetSeed(seed)
}

// GenerateRandomArgs produces a randomised value of the same shape
// GenerateArgs would produce.
func (g *Sampler) GenerateRandomArgs(s *Schema) any {
	if s == nil {
		return map[string]any{}
	}

	if len(s.Enum) > 0 {
		return s.Enum[g.rng.intn(len(s.Enum))]
	}

	switch s.Type {
	case "string":
		return g.randomString(s)

	case "integer":
		lo, hi := bounds(s)
		return int(math.Floor(g.rng.rangeFloat(lo, hi+1)))

	case "number":
		lo, hi := bounds(s)
		return g.rng.rangeFloat(lo, hi)

	case "boolean":
		return g.rng.coin()

	case "array":
		n := 1 + g.rng.intn(3)
		items := make([]any, n)
		for i := range items {
			items[i] = g.GenerateRandomArgs(s.Items)
		}
		return items

	default:
		obj := map[string]any{}
		for _, name := range s.Required {
			obj[name] = g.GenerateRandomArgs(s.Properties[name])
		}
		return obj
	}
}

// randomString builds 1-4 words from the pool, or an id-looking string for
// id-ish formats.
func (g *Sampler) randomString(s *Schema) string {
	if s.Format == "id" || s.Format == "uuid" {
		n := 8 + g.rng.intn(16)
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteByte(idAlphabet[g.rng.intn(len(idAlphabet))])
		}
		return b.String()
	}
	if v, ok := formatDefaults[s.Format]; ok {
		return v
	}

	n := 1 + g.rng.intn(4)
	words := make([]string, n)
	for i := range words {
		words[i] = wordPool[g.rng.intn(len(wordPool))]
	}
	v := strings.Join(words, " ")

	minLen := s.MinLength
	if minLen < g.MinStringLen {
		minLen = g.MinStringLen
	}
	if len(v) < minLen {
		v += strings.Repeat("x", minLen-len(v))
	}
	return v
}

func bounds(s *Schema) (float64, float64) {
	lo := 0.0
	if s.Minimum != nil {
		lo = *s.Minimum
	}
	hi := lo + 100
	if s.Maximum != nil && *s.Maximum > lo {
		hi = *s.Maximum
	}
	return lo, hi
}

package engine

import (
	"sort"

	api "github.com/dgellow/mcp-stress/lib-stress"
	"github.com/dgellow/mcp-stress/internal/stresserr"
)

// OperationMix is one weighted entry of a workload's operations mix.
type OperationMix struct {
	// Method is the MCP method, e.g. "ping" or "tools/call".
	Method string

	// Tool binds a tools/call entry to a single tool. Empty means round-robin
	// over discovered tools.
	Tool string

	// Weight is the relative share of this entry; entries are repeated
	// Weight times in the dispatch list.
	Weight int
}

// FindCeilingConfig tunes the auto-scaling ceiling finder.
type FindCeilingConfig struct {
	PhaseDurationSec int
	MaxConcurrency   int
	PlateauThreshold float64
}

func (c FindCeilingConfig) withDefaults() FindCeilingConfig {
	if c.PhaseDurationSec <= 0 {
		c.PhaseDurationSec = 10
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 100
	}
	if c.PlateauThreshold <= 0 {
		c.PlateauThreshold = 0.05
	}
	return c
}

// Profile is a resolved workload: operations mix, load shape, and run mode.
type Profile struct {
	Name        string
	Description string

	Mix         []OperationMix
	Shape       string
	DurationSec int
	Requests    int
	Concurrency int

	FindCeiling *FindCeilingConfig
	Churn       bool
}

// builtinProfiles are the named workload templates.
var builtinProfiles = map[string]Profile{
	"baseline": {
		Name:        "baseline",
		Description: "ping only, constant concurrency",
		Mix:         []OperationMix{{Method: "ping", Weight: 1}},
		Shape:       "constant",
		DurationSec: 30,
		Concurrency: 10,
	},
	"mixed": {
		Name:        "mixed",
		Description: "a realistic mix of ping, listing, and tool calls",
		Mix: []OperationMix{
			{Method: "ping", Weight: 2},
			{Method: "tools/list", Weight: 2},
			{Method: "tools/call", Weight: 5},
			{Method: "resources/list", Weight: 1},
		},
		Shape:       "constant",
		DurationSec: 60,
		Concurrency: 10,
	},
	"tools": {
		Name:        "tools",
		Description: "tool calls only",
		Mix:         []OperationMix{{Method: "tools/call", Weight: 1}},
		Shape:       "constant",
		DurationSec: 60,
		Concurrency: 10,
	},
	"discovery": {
		Name:        "discovery",
		Description: "capability listings only",
		Mix: []OperationMix{
			{Method: "tools/list", Weight: 2},
			{Method: "resources/list", Weight: 1},
			{Method: "resources/templates/list", Weight: 1},
			{Method: "prompts/list", Weight: 1},
		},
		Shape:       "constant",
		DurationSec: 30,
		Concurrency: 5,
	},
	"ramp": {
		Name:        "ramp",
		Description: "linear ramp to peak with a tool-call mix",
		Mix: []OperationMix{
			{Method: "ping", Weight: 1},
			{Method: "tools/call", Weight: 3},
		},
		Shape:       "linear-ramp",
		DurationSec: 120,
		Concurrency: 50,
	},
	"spike": {
		Name:        "spike",
		Description: "baseline load with a burst in the middle",
		Mix:         []OperationMix{{Method: "tools/call", Weight: 1}},
		Shape:       "spike",
		DurationSec: 120,
		Concurrency: 50,
	},
	"soak": {
		Name:        "soak",
		Description: "long steady run for leak hunting",
		Mix: []OperationMix{
			{Method: "ping", Weight: 1},
			{Method: "tools/call", Weight: 2},
		},
		Shape:       "constant",
		DurationSec: 900,
		Concurrency: 5,
	},
	"find-ceiling": {
		Name:        "find-ceiling",
		Description: "step concurrency upward until throughput plateaus",
		Mix:         []OperationMix{{Method: "tools/call", Weight: 1}},
		DurationSec: 120,
		Concurrency: 100,
		FindCeiling: &FindCeilingConfig{},
	},
	"churn": {
		Name:        "churn",
		Description: "open, handshake, ping, close in a loop",
		DurationSec: 30,
		Concurrency: 10,
		Churn:       true,
	},
}

// LookupProfile resolves a named profile.
func LookupProfile(name string) (Profile, error) {
	p, ok := builtinProfiles[name]
	if !ok {
		return Profile{}, stresserr.New(api.ErrInvalidArgumentValue, nil, "unknown profile %q", name)
	}
	return p, nil
}

// ProfileNames lists the built-in profiles in dictionary order.
func ProfileNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profiles returns the built-in profiles in dictionary order.
func Profiles() []Profile {
	names := ProfileNames()
	ps := make([]Profile, len(names))
	for i, name := range names {
		ps[i] = builtinProfiles[name]
	}
	return ps
}

// expandMix repeats each entry Weight times into the flat dispatch list.
func expandMix(mix []OperationMix) []OperationMix {
	var list []OperationMix
	for _, m := range mix {
		w := m.Weight
		if w < 1 {
			w = 1
		}
		for i := 0; i < w; i++ {
			list = append(list, m)
		}
	}
	return list
}

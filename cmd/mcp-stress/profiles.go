package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgellow/mcp-stress/internal/engine"
)

type ProfilesCommand struct {
	OutStream io.Writer
	ErrStream io.Writer
}

var defaultProfilesCommand = &ProfilesCommand{
	OutStream: os.Stdout,
	ErrStream: os.Stderr,
}

func (c *ProfilesCommand) Run(args []string) int {
	for _, p := range engine.Profiles() {
		mode := p.Shape
		if p.FindCeiling != nil {
			mode = "find-ceiling"
		}
		if p.Churn {
			mode = "churn"
		}

		var mix []string
		for _, m := range p.Mix {
			mix = append(mix, fmt.Sprintf("%s:%d", m.Method, m.Weight))
		}

		fmt.Fprintf(c.OutStream, "%-14s %-13s %s\n", p.Name, mode, p.Description)
		if len(mix) > 0 {
			fmt.Fprintf(c.OutStream, "%-14s %-13s mix: %s\n", "", "", strings.Join(mix, " "))
		}
	}
	return 0
}

type ShapesCommand struct {
	OutStream io.Writer
	ErrStream io.Writer
}

var defaultShapesCommand = &ShapesCommand{
	OutStream: os.Stdout,
	ErrStream: os.Stderr,
}

var shapeDescriptions = map[string]string{
	"constant":    "hold the peak concurrency for the whole run",
	"linear-ramp": "climb linearly from 1 to the peak",
	"exponential": "climb exponentially to the peak",
	"step":        "five equal steps from peak/5 to the peak",
	"spike":       "10% baseline with the full peak in the middle fifth",
	"sawtooth":    "four linear rises from 1 to the peak",
}

func (c *ShapesCommand) Run(args []string) int {
	for _, name := range engine.ShapeNames() {
		fmt.Fprintf(c.OutStream, "%-13s %s\n", name, shapeDescriptions[name])
	}
	return 0
}

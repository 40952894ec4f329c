package engine

import (
	"math"
	"sort"
)

// Shape maps elapsed time to a target concurrency. Every shape returns at
// least 1 for any t in [0, duration] and any peak >= 1.
type Shape func(t, duration float64, peak int) int

var shapes = map[string]Shape{
	"constant":    shapeConstant,
	"linear-ramp": shapeLinearRamp,
	"exponential": shapeExponential,
	"step":        shapeStep,
	"spike":       shapeSpike,
	"sawtooth":    shapeSawtooth,
}

// LookupShape resolves a shape by name.
func LookupShape(name string) (Shape, bool) {
	s, ok := shapes[name]
	return s, ok
}

// ShapeNames lists the built-in shapes in dictionary order.
func ShapeNames() []string {
	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clampShape(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func shapeConstant(t, duration float64, peak int) int {
	return clampShape(peak)
}

func shapeLinearRamp(t, duration float64, peak int) int {
	if duration <= 0 {
		return clampShape(peak)
	}
	return clampShape(int(math.Ceil(t / duration * float64(peak))))
}

func shapeExponential(t, duration float64, peak int) int {
	if duration <= 0 {
		return clampShape(peak)
	}
	frac := (math.Exp(3*t/duration) - 1) / (math.Exp(3) - 1)
	return clampShape(int(math.Ceil(frac * float64(peak))))
}

// shapeStep climbs five equal steps from peak/5 to peak.
func shapeStep(t, duration float64, peak int) int {
	if duration <= 0 {
		return clampShape(peak)
	}
	step := int(t / duration * 5)
	if step > 4 {
		step = 4
	}
	return clampShape(int(math.Ceil(float64(peak) * float64(step+1) / 5)))
}

// shapeSpike holds a 10% baseline with full peak during the central 20% of
// the duration.
func shapeSpike(t, duration float64, peak int) int {
	if duration > 0 && t >= duration*0.4 && t < duration*0.6 {
		return clampShape(peak)
	}
	return clampShape(int(math.Ceil(float64(peak) * 0.1)))
}

// shapeSawtooth rises linearly from 0 to peak four times.
func shapeSawtooth(t, duration float64, peak int) int {
	if duration <= 0 {
		return clampShape(peak)
	}
	cycle := duration / 4
	frac := math.Mod(t, cycle) / cycle
	return clampShape(int(math.Ceil(frac * float64(peak))))
}

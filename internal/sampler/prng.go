package sampler

import (
	"time"
)

// PRNG is a Mulberry32 generator: 32 bits of state, fast, and fully
// reproducible from its seed, so a seed + schema + workload is deterministic.
type PRNG struct {
	state uint32
}

// NewPRNG creates a generator. A zero seed derives one from the wall clock.
func NewPRNG(seed uint32) *PRNG {
	p := &PRNG{}
	p.SetSeed(seed)
	return p
}

// SetSeed resets the generator state. A zero seed derives one from the wall
// clock.
func (p *PRNG) SetSeed(seed uint32) {
	if seed == 0 {
		seed = uint32(time.Now().UnixNano())
	}
	p.state = seed
}

// NextFloat01 advances the state and returns a value in [0, 1).
func (p *PRNG) NextFloat01() float64 {
	p.state += 0x6D2B79F5
	z := p.state
	z = (z ^ (z >> 15)) * (z | 1)
	z ^= z + (z^(z>>7))*(z|61)
	return float64(z^(z>>14)) / 4294967296.0
}

// intn returns a value in [0, n).
func (p *PRNG) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(p.NextFloat01() * float64(n))
}

// rangeFloat returns a value in [lo, hi).
func (p *PRNG) rangeFloat(lo, hi float64) float64 {
	return lo + p.NextFloat01()*(hi-lo)
}

// coin returns true with probability 1/2.
func (p *PRNG) coin() bool {
	return p.NextFloat01() < 0.5
}

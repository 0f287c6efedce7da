package codegen

import (
	"math/rand/v2"

	"github.com/scy-phy/plumber-go/pkgs/invariant"
)

// Pool is a finite set of integers in [lower, upper) drawn without
// replacement. Below 70% occupancy it draws densely at random,
// retrying on collision; above that threshold it switches to a
// pre-shuffled list of the remaining values, which stays O(1) per draw
// as the pool empties out.
type Pool struct {
	Name         string
	lower, upper int
	taken        map[int]bool
	rng          *rand.Rand

	useRemainder bool
	remainder    []int
}

// NewPool returns a pool spanning [lower, upper), drawing from rng. name
// identifies the pool in PoolExhaustionError.
func NewPool(name string, lower, upper int, rng *rand.Rand) *Pool {
	invariant.Precondition(upper > lower, "pool %q must span a non-empty range, got [%d, %d)", name, lower, upper)
	return &Pool{Name: name, lower: lower, upper: upper, taken: map[int]bool{}, rng: rng}
}

// Lower returns the pool's inclusive lower bound.
func (p *Pool) Lower() int { return p.lower }

// Capacity is the number of distinct values the pool can ever hand out.
func (p *Pool) Capacity() int { return p.upper - p.lower }

// Len is the number of values currently taken.
func (p *Pool) Len() int { return len(p.taken) }

// InBounds reports whether v falls within [lower, upper).
func (p *Pool) InBounds(v int) bool { return v >= p.lower && v < p.upper }

// Taken reports whether v has already been drawn or reserved.
func (p *Pool) Taken(v int) bool { return p.taken[v] }

// Reset empties the pool, returning every value to circulation.
func (p *Pool) Reset() {
	p.taken = map[int]bool{}
	p.useRemainder = false
	p.remainder = nil
}

// Reserve marks v as taken without drawing it randomly, used to
// pre-consume indices referenced by a loaded deterministic state file.
// Reserving an already-taken value is a no-op.
func (p *Pool) Reserve(v int) error {
	if !p.InBounds(v) {
		return &OffsetError{Message: "reserved value out of pool bounds"}
	}
	p.taken[v] = true
	return nil
}

// PopRandom draws and removes one value uniformly at random from the
// values not yet taken.
func (p *Pool) PopRandom() (int, error) {
	if len(p.taken) >= p.Capacity() {
		return 0, &PoolExhaustionError{Pool: p.Name}
	}
	occupancy := float64(len(p.taken)) / float64(p.Capacity())
	if !p.useRemainder && occupancy < 0.7 {
		for {
			v := p.lower + p.rng.IntN(p.Capacity())
			if !p.taken[v] {
				p.taken[v] = true
				return v, nil
			}
		}
	}

	if !p.useRemainder {
		p.useRemainder = true
		free := make([]int, 0, p.Capacity()-len(p.taken))
		for v := p.lower; v < p.upper; v++ {
			if !p.taken[v] {
				free = append(free, v)
			}
		}
		p.rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
		p.remainder = free
	}
	if len(p.remainder) == 0 {
		return 0, &PoolExhaustionError{Pool: p.Name}
	}
	v := p.remainder[len(p.remainder)-1]
	p.remainder = p.remainder[:len(p.remainder)-1]
	p.taken[v] = true
	return v, nil
}

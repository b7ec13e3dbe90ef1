// Copyright 2025 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file implements the sequence builder, the placement core of the
// engine. The algorithm is randomized greedy with full restarts:
//
//  1. Shuffle all placement units uniformly.
//  2. Construct the sequence left to right. Before every placement the
//     remaining candidates are ordered by ascending usage of their primary
//     value (random tie-break), so under-represented groups are extended
//     before saturated ones.
//  3. Place the first candidate that honors the spacing window against the
//     last min_spacing placements and stays within the soft per-group cap
//     (target/num_groups + 2). The cap keeps an abundant group from
//     monopolizing the sequence while spacing starves the alternatives.
//  4. A step with no placeable candidate abandons the attempt entirely; the
//     builder restarts instead of backtracking. Exhaustive search over
//     spacing-constrained permutations is hopeless at the target lengths in
//     production use (100-200 items); restarts converge quickly whenever the
//     feasibility gate has confirmed supply.
package sequence

import (
	"math/rand"
	"sort"
	"time"
)

// DefaultMaxAttempts bounds the number of full restarts before the builder
// gives up (strict mode) or degrades (relaxed mode).
const DefaultMaxAttempts = 1000

// softCapSlack is how far past the even per-group share any primary value
// may grow. Two extra placements absorbs rounding without letting one group
// dominate.
const softCapSlack = 2

// Options configure a build. Construct through the With* helpers; the zero
// path through defaultOptions yields a time-seeded source and the default
// attempt budget in strict mode.
type Options struct {
	rng         *rand.Rand
	maxAttempts int
	relaxed     bool
}

// Option mutates the build configuration.
type Option func(*Options)

// WithRand injects the random source used for shuffling and tie-breaking.
// Tests pass a seeded source to make builds reproducible.
func WithRand(r *rand.Rand) Option {
	return func(o *Options) {
		if r != nil {
			o.rng = r
		}
	}
}

// WithMaxAttempts overrides the restart budget. Values below 1 keep the
// default.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// WithRelaxed switches the builder to best-effort mode: when the budget is
// exhausted it returns an unconstrained shuffle truncated to the target,
// flagged on the result, instead of failing.
func WithRelaxed(relaxed bool) Option {
	return func(o *Options) { o.relaxed = relaxed }
}

func defaultOptions() Options {
	return Options{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		maxAttempts: DefaultMaxAttempts,
	}
}

// Result is a finalized build outcome. Items is immutable by convention once
// returned.
type Result struct {
	Items      []Item
	Target     int  // effective target after clamping
	Clamped    bool // requested length exceeded supply and was reduced
	Attempts   int  // restarts consumed, including the successful one
	BestEffort bool // relaxed fallback: spacing not enforced
}

// Build constructs a randomized ordering of pool items of the requested
// length such that two items sharing a primary value sit more than
// minSpacing positions apart. A target beyond the pool's supply is clamped,
// never an error. In strict mode (the default) Build re-checks feasibility
// first and returns an InfeasibleSequenceError either immediately (provably
// impossible) or after exhausting the attempt budget; in relaxed mode it
// degrades to a flagged best-effort shuffle instead.
func Build(pool *Pool, target, minSpacing int, opts ...Option) (*Result, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if minSpacing < 0 {
		minSpacing = 0
	}

	result := &Result{Target: target}
	if target > pool.Total() {
		result.Target = pool.Total()
		result.Clamped = true
	}
	if result.Target <= 0 {
		result.Target = 0
		result.Items = []Item{}
		return result, nil
	}

	if !o.relaxed {
		if report := Analyze(pool, result.Target, minSpacing); !report.Feasible {
			return nil, &InfeasibleSequenceError{
				Target:     result.Target,
				MinSpacing: minSpacing,
				Report:     report,
			}
		}
	}

	numGroups := len(pool.PrimaryValues())
	softCap := result.Target/numGroups + softCapSlack

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if seq, ok := buildAttempt(pool, result.Target, minSpacing, softCap, o.rng); ok {
			result.Items = seq
			result.Attempts = attempt
			return result, nil
		}
	}

	if o.relaxed {
		result.Items = relaxedFallback(pool, result.Target, o.rng)
		result.Attempts = o.maxAttempts
		result.BestEffort = true
		return result, nil
	}
	return nil, &InfeasibleSequenceError{
		Target:     result.Target,
		MinSpacing: minSpacing,
		Attempts:   o.maxAttempts,
	}
}

// candidateOrder sorts the remaining candidates by ascending usage of their
// primary value, randomly within a tier. The tie values travel with their
// items through Swap so the order stays consistent mid-sort.
type candidateOrder struct {
	items []Item
	ties  []float64
	usage map[string]int
}

func (s *candidateOrder) Len() int { return len(s.items) }

func (s *candidateOrder) Swap(i, j int) {
	s.items[i], s.items[j] = s.items[j], s.items[i]
	s.ties[i], s.ties[j] = s.ties[j], s.ties[i]
}

func (s *candidateOrder) Less(i, j int) bool {
	ui, uj := s.usage[s.items[i].Primary()], s.usage[s.items[j].Primary()]
	if ui != uj {
		return ui < uj
	}
	return s.ties[i] < s.ties[j]
}

// buildAttempt runs one greedy construction pass. It reports ok=false on the
// first step where no remaining candidate can be placed.
func buildAttempt(pool *Pool, target, minSpacing, softCap int, rng *rand.Rand) ([]Item, bool) {
	remaining := pool.Items()
	rng.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})

	seq := make([]Item, 0, target)
	usage := make(map[string]int, 16)
	order := &candidateOrder{
		items: remaining,
		ties:  make([]float64, len(remaining)),
		usage: usage,
	}

	for len(seq) < target {
		// Balance heuristic: extend under-represented primary groups before
		// saturated ones.
		for i := range order.ties {
			order.ties[i] = rng.Float64()
		}
		sort.Sort(order)

		placedAt := -1
		for i, cand := range order.items {
			if usage[cand.Primary()] >= softCap {
				continue
			}
			if !canPlace(seq, cand, minSpacing) {
				continue
			}
			placedAt = i
			break
		}
		if placedAt < 0 {
			return nil, false
		}

		cand := order.items[placedAt]
		seq = append(seq, cand)
		usage[cand.Primary()]++
		order.items = append(order.items[:placedAt], order.items[placedAt+1:]...)
		order.ties = order.ties[:len(order.items)]
	}
	return seq, true
}

// canPlace checks the candidate's primary value against the last minSpacing
// placements. minSpacing zero inspects nothing and always passes.
func canPlace(seq []Item, cand Item, minSpacing int) bool {
	start := len(seq) - minSpacing
	if start < 0 {
		start = 0
	}
	for _, placed := range seq[start:] {
		if placed.Primary() == cand.Primary() {
			return false
		}
	}
	return true
}

// relaxedFallback is the documented degradation: a plain shuffle truncated
// to the target with spacing unenforced. Callers see BestEffort on the
// result rather than a silent downgrade.
func relaxedFallback(pool *Pool, target int, rng *rand.Rand) []Item {
	items := pool.Items()
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	return items[:target]
}

// Verify reports whether seq honors the spacing invariant, scanning every
// window. It is exported for validation harnesses and tests; the builder
// maintains the invariant by construction.
func Verify(seq []Item, minSpacing int) bool {
	for i := range seq {
		end := i + minSpacing
		if end > len(seq)-1 {
			end = len(seq) - 1
		}
		for j := i + 1; j <= end; j++ {
			if seq[i].Primary() == seq[j].Primary() {
				return false
			}
		}
	}
	return true
}

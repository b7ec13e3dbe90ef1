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

// Package services contains the business logic for interacting with data sources.
// This file, `sequence.go`, defines the SequenceService, the orchestration layer
// between the HTTP and job surfaces and the placement engine. It loads filtered
// pools from the inventory, applies configured defaults to sparse requests,
// runs feasibility analysis and builds, and resolves abstract placements back
// into named, linkable clips.
package services

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/dex-codes/ffmpeg-processor/internal/core/sequence"
)

// PoolProvider loads filtered clip pools from an inventory backend. The
// production implementation is the InventoryService; tests substitute an
// in-memory provider.
type PoolProvider interface {
	LoadPool(ctx context.Context, filter sequence.Filter) (*sequence.Pool, error)
}

// SequenceService turns sequence requests into plans. It owns the defaults
// that fill in unset request fields and the per-request-shape variation
// history used by history-aware generation.
type SequenceService struct {
	Inventory     PoolProvider    // Source of filtered clip pools.
	Schema        sequence.Schema // The attribute columns, outermost grouping first.
	TargetLength  int             // Default sequence length when a request omits one.
	MinSpacing    int             // Default minimum gap between same-category clips.
	MaxAttempts   int             // Restart budget per build; zero keeps the engine default.
	HistorySize   int             // Retained sequences per request shape for varied runs.
	CompareWindow int             // Recent sequences a varied candidate is compared against.

	mu       sync.Mutex
	variants map[string]*sequence.VariationBuilder
}

// Analyze loads the filtered pool and reports whether a sequence of the
// requested shape can be built from it, without building anything.
func (s *SequenceService) Analyze(ctx context.Context, params *model.SequenceParams) (*sequence.Report, error) {
	pool, err := s.loadPool(ctx, params)
	if err != nil {
		return nil, err
	}
	target, spacing := s.effective(params)
	return sequence.Analyze(pool, target, spacing), nil
}

// PlanOutcome carries one generation result in both of its useful shapes:
// the serializable plan for API responses, and the raw result plus backing
// pool for callers that keep going, such as the render workflow resolving
// clips into a download manifest.
type PlanOutcome struct {
	Plan   *model.SequencePlan
	Result *sequence.Result
	Pool   *sequence.Pool
}

// Plan runs one complete generation: load the filtered pool, analyze
// feasibility, build, and resolve the placements against the inventory.
//
// Inputs:
//   - ctx: The context for the request, used for cancellation, deadlines, and tracing.
//   - params: The request; unset target and spacing fall back to the configured defaults.
//
// Outputs:
//   - *PlanOutcome: The plan, raw result, and backing pool.
//   - error: A validation error, a data source failure, or an
//     InfeasibleSequenceError when the request cannot be satisfied.
func (s *SequenceService) Plan(ctx context.Context, params *model.SequenceParams) (*PlanOutcome, error) {
	pool, err := s.loadPool(ctx, params)
	if err != nil {
		return nil, err
	}
	target, spacing := s.effective(params)
	opts := append(s.options(params), sequence.WithRand(s.rng(params)))

	result, err := sequence.Build(pool, target, spacing, opts...)
	if err != nil {
		return nil, err
	}
	plan := &model.SequencePlan{
		Params:     params,
		Report:     sequence.Analyze(pool, target, spacing),
		Items:      resolveItems(result.Items, pool),
		Attempts:   result.Attempts,
		Clamped:    result.Clamped,
		BestEffort: result.BestEffort,
	}
	return &PlanOutcome{Plan: plan, Result: result, Pool: pool}, nil
}

// PlanBatch generates params.Variations sequences in one call and grades how
// much they resemble each other. A single random source is shared across the
// runs, so a fixed seed still yields distinct sequences while keeping the
// whole batch reproducible.
func (s *SequenceService) PlanBatch(ctx context.Context, params *model.SequenceParams) (*model.VariationPlan, error) {
	n := params.Variations
	if n <= 0 {
		n = 3
	}
	pool, err := s.loadPool(ctx, params)
	if err != nil {
		return nil, err
	}
	target, spacing := s.effective(params)
	opts := append(s.options(params), sequence.WithRand(s.rng(params)))

	batch, err := sequence.GenerateBatch(pool, target, spacing, n, opts...)
	if err != nil {
		return nil, err
	}

	out := &model.VariationPlan{Params: params, Similarity: batch}
	for _, r := range batch.Results {
		out.Sequences = append(out.Sequences, &model.SequencePlan{
			Items:      resolveItems(r.Items, pool),
			Attempts:   r.Attempts,
			Clamped:    r.Clamped,
			BestEffort: r.BestEffort,
		})
	}
	return out, nil
}

// PlanVaried generates one sequence that stays dissimilar from recent output
// for the same request shape. History lives in the service, keyed by the
// request's filter and shape, so successive calls steer away from each other
// even across different callers.
func (s *SequenceService) PlanVaried(ctx context.Context, params *model.SequenceParams) (*PlanOutcome, error) {
	pool, err := s.loadPool(ctx, params)
	if err != nil {
		return nil, err
	}
	target, spacing := s.effective(params)
	vb := s.variantBuilder(params, pool)

	result, similarity, err := vb.Build(target, spacing, s.rng(params), s.options(params)...)
	if err != nil {
		return nil, err
	}
	plan := &model.SequencePlan{
		Params:     params,
		Items:      resolveItems(result.Items, pool),
		Attempts:   result.Attempts,
		Clamped:    result.Clamped,
		BestEffort: result.BestEffort,
		Similarity: similarity,
	}
	return &PlanOutcome{Plan: plan, Result: result, Pool: pool}, nil
}

// loadPool validates the request filter and loads the matching pool.
func (s *SequenceService) loadPool(ctx context.Context, params *model.SequenceParams) (*sequence.Pool, error) {
	if err := s.validate(params); err != nil {
		return nil, err
	}
	return s.Inventory.LoadPool(ctx, s.filterFor(params))
}

// validate rejects requests the loader would silently turn into an empty
// pool. The filter is an explicit allow-list, so an empty category or color
// list admits nothing and the caller almost certainly forgot a field.
func (s *SequenceService) validate(params *model.SequenceParams) error {
	if params == nil {
		return fmt.Errorf("sequence request is required")
	}
	if len(params.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	if len(s.Schema) > 1 && len(params.Colors) == 0 {
		return fmt.Errorf("at least one color is required")
	}
	return nil
}

// filterFor maps the request's value lists onto the configured schema
// columns by position: categories onto the primary attribute, colors onto
// the secondary.
func (s *SequenceService) filterFor(params *model.SequenceParams) sequence.Filter {
	f := sequence.Filter{}
	if len(s.Schema) > 0 {
		f[s.Schema[0]] = params.Categories
	}
	if len(s.Schema) > 1 {
		f[s.Schema[1]] = params.Colors
	}
	return f
}

// effective applies configured defaults to unset request fields.
func (s *SequenceService) effective(params *model.SequenceParams) (target, spacing int) {
	target = params.TargetLength
	if target <= 0 {
		target = s.TargetLength
	}
	spacing = params.MinSpacing
	if spacing <= 0 {
		spacing = s.MinSpacing
	}
	return target, spacing
}

// options translates request and configuration knobs into build options.
// The random source is deliberately not included here: each entry point
// wires its own so the history-aware path can hand the generator to the
// variation builder directly.
func (s *SequenceService) options(params *model.SequenceParams) []sequence.Option {
	var opts []sequence.Option
	if s.MaxAttempts > 0 {
		opts = append(opts, sequence.WithMaxAttempts(s.MaxAttempts))
	}
	if params.Relaxed {
		opts = append(opts, sequence.WithRelaxed(true))
	}
	return opts
}

// rng returns the request's random source: seeded when the request fixes a
// seed for reproducibility, time-seeded otherwise.
func (s *SequenceService) rng(params *model.SequenceParams) *rand.Rand {
	if params.Seed != nil {
		return rand.New(rand.NewSource(*params.Seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// variantBuilder returns the history-aware builder for this request shape,
// creating it on first use and pointing it at the freshly loaded pool on
// every call so inventory changes are picked up without dropping history.
func (s *SequenceService) variantBuilder(params *model.SequenceParams, pool *sequence.Pool) *sequence.VariationBuilder {
	key := s.signature(params)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.variants == nil {
		s.variants = make(map[string]*sequence.VariationBuilder)
	}
	vb, ok := s.variants[key]
	if !ok {
		vb = sequence.NewVariationBuilder(pool).Tune(s.HistorySize, s.CompareWindow)
		s.variants[key] = vb
	} else {
		vb.Refresh(pool)
	}
	return vb
}

// signature derives the history key for a request: same filter, same
// effective shape, same history. Value lists are sorted on a copy so two
// requests naming the same sets in different order share a key.
func (s *SequenceService) signature(params *model.SequenceParams) string {
	target, spacing := s.effective(params)
	return fmt.Sprintf("%s|%s|%d|%d", sortedCSV(params.Categories), sortedCSV(params.Colors), target, spacing)
}

func sortedCSV(values []string) string {
	c := append([]string(nil), values...)
	sort.Strings(c)
	return strings.Join(c, ",")
}

// resolveItems maps abstract placements back to inventory rows. A placement
// with no backing row (possible when a pool shrank between analyze and
// resolve, or in relaxed runs against thin buckets) becomes a synthesized
// entry with a deterministic placeholder name and no link.
func resolveItems(items []sequence.Item, pool *sequence.Pool) []*model.PlanItem {
	out := make([]*model.PlanItem, 0, len(items))
	for i, it := range items {
		entry := &model.PlanItem{
			Position: i + 1,
			Category: it.Primary(),
		}
		if len(it.Values) > 1 {
			entry.Color = it.Values[1]
		}
		if row, ok := pool.Lookup(it); ok {
			entry.Name = row.Name
			entry.Link = row.Link
		} else {
			entry.Name = sequence.FallbackName(it)
			entry.Synthesized = true
		}
		out = append(out, entry)
	}
	return out
}

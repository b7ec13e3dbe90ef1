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

// This file quantifies how different repeated generator runs are from each
// other. The metrics exist to validate that generation is not degenerate
// (always emitting near-identical orderings); they are never consulted on
// the main generation path.

package sequence

import (
	"fmt"
	"math/rand"
)

// Variation quality labels derived from the average content similarity of a
// batch.
const (
	VariationHigh   = "HIGH"
	VariationMedium = "MEDIUM"
	VariationLow    = "LOW"
)

// History defaults for the variation-aware builder.
const (
	defaultHistorySize       = 20
	defaultCompareWindow     = 10
	defaultSimilarityCeiling = 0.75
)

// SimilarityReport quantifies the overlap between two sequences of equal
// length along several axes.
type SimilarityReport struct {
	// Positional is the fraction of indices holding the structurally same
	// item in both sequences.
	Positional float64 `json:"positional"`
	// Content is the multiset overlap: identical items used anywhere, order
	// ignored.
	Content float64 `json:"content"`
	// Category is the multiset overlap restricted to primary values.
	Category float64 `json:"category"`
	// UniqueItems is the Jaccard index over the distinct item sets.
	UniqueItems float64 `json:"unique_items"`
	// ExactDuplicate is true iff the sequences match element for element.
	ExactDuplicate bool `json:"exact_duplicate"`
}

// Compare measures the similarity of two sequences. Both must have the same
// length; comparing sequences of different lengths is a caller error.
func Compare(a, b []Item) (*SimilarityReport, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	report := &SimilarityReport{}
	if len(a) == 0 {
		report.ExactDuplicate = true
		return report, nil
	}

	n := float64(len(a))
	matches := 0
	for i := range a {
		if a[i].Equal(b[i]) {
			matches++
		}
	}
	report.Positional = float64(matches) / n
	report.ExactDuplicate = matches == len(a)

	report.Content = multisetOverlap(itemCounts(a), itemCounts(b)) / n
	report.Category = multisetOverlap(primaryCounts(a), primaryCounts(b)) / n
	report.UniqueItems = jaccard(itemCounts(a), itemCounts(b))
	return report, nil
}

func itemCounts(seq []Item) map[string]int {
	counts := make(map[string]int, len(seq))
	for _, it := range seq {
		counts[it.Key()]++
	}
	return counts
}

func primaryCounts(seq []Item) map[string]int {
	counts := make(map[string]int, 8)
	for _, it := range seq {
		counts[it.Primary()]++
	}
	return counts
}

func multisetOverlap(a, b map[string]int) float64 {
	shared := 0
	for k, ca := range a {
		if cb, ok := b[k]; ok {
			if cb < ca {
				shared += cb
			} else {
				shared += ca
			}
		}
	}
	return float64(shared)
}

func jaccard(a, b map[string]int) float64 {
	union := len(a)
	intersect := 0
	for k := range b {
		if _, ok := a[k]; ok {
			intersect++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersect) / float64(union)
}

// PairReport is one pairwise comparison inside a batch.
type PairReport struct {
	A, B   int               `json:"-"`
	Label  string            `json:"pair"`
	Report *SimilarityReport `json:"report"`
}

// BatchReport is the outcome of generating several sequences from the same
// pool and comparing every pair.
type BatchReport struct {
	Results         []*Result    `json:"-"`
	Pairwise        []PairReport `json:"pairwise"`
	AvgPositional   float64      `json:"avg_positional"`
	AvgContent      float64      `json:"avg_content"`
	AvgCategory     float64      `json:"avg_category"`
	ExactDuplicates int          `json:"exact_duplicates"`
	// Quality grades the batch off the average content similarity:
	// below 0.7 HIGH, below 0.85 MEDIUM, otherwise LOW.
	Quality string `json:"variation_quality"`
}

// GenerateBatch builds n sequences with identical parameters and reports how
// much they resemble each other. Build options (random source, attempt
// budget, relaxed mode) apply to every run.
func GenerateBatch(pool *Pool, target, minSpacing, n int, opts ...Option) (*BatchReport, error) {
	if n < 1 {
		return nil, fmt.Errorf("sequence: batch size must be at least 1, got %d", n)
	}
	batch := &BatchReport{}
	for i := 0; i < n; i++ {
		result, err := Build(pool, target, minSpacing, opts...)
		if err != nil {
			return nil, fmt.Errorf("batch run %d: %w", i+1, err)
		}
		batch.Results = append(batch.Results, result)
	}

	var sumPos, sumContent, sumCategory float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			report, err := Compare(batch.Results[i].Items, batch.Results[j].Items)
			if err != nil {
				return nil, err
			}
			batch.Pairwise = append(batch.Pairwise, PairReport{
				A:      i,
				B:      j,
				Label:  fmt.Sprintf("Seq%d vs Seq%d", i+1, j+1),
				Report: report,
			})
			sumPos += report.Positional
			sumContent += report.Content
			sumCategory += report.Category
			if report.ExactDuplicate {
				batch.ExactDuplicates++
			}
		}
	}

	if pairs := len(batch.Pairwise); pairs > 0 {
		batch.AvgPositional = sumPos / float64(pairs)
		batch.AvgContent = sumContent / float64(pairs)
		batch.AvgCategory = sumCategory / float64(pairs)
	}
	batch.Quality = variationQuality(batch.AvgContent)
	return batch, nil
}

func variationQuality(avgContent float64) string {
	switch {
	case avgContent < 0.7:
		return VariationHigh
	case avgContent < 0.85:
		return VariationMedium
	default:
		return VariationLow
	}
}

// VariationBuilder generates sequences that stay dissimilar from recent
// output. It keeps a bounded history and rejects candidates whose content
// similarity against the recent window crosses the ceiling, retrying a few
// times before settling for the least-similar candidate seen.
type VariationBuilder struct {
	pool       *Pool
	history    [][]Item
	maxHistory int
	window     int
	ceiling    float64
	candidates int
}

// NewVariationBuilder wraps a pool with similarity-aware generation state.
func NewVariationBuilder(pool *Pool) *VariationBuilder {
	return &VariationBuilder{
		pool:       pool,
		maxHistory: defaultHistorySize,
		window:     defaultCompareWindow,
		ceiling:    defaultSimilarityCeiling,
		candidates: 5,
	}
}

// Refresh swaps in a newly loaded pool while keeping the similarity
// history. Long-lived builders call this so inventory changes show up
// without losing the record of what was recently generated.
func (vb *VariationBuilder) Refresh(pool *Pool) {
	vb.pool = pool
}

// Tune overrides the history depth and comparison window. Non-positive
// values keep the current setting, so partial configuration is safe.
func (vb *VariationBuilder) Tune(historySize, compareWindow int) *VariationBuilder {
	if historySize > 0 {
		vb.maxHistory = historySize
		if len(vb.history) > vb.maxHistory {
			vb.history = vb.history[len(vb.history)-vb.maxHistory:]
		}
	}
	if compareWindow > 0 {
		vb.window = compareWindow
	}
	return vb
}

// Build produces one sequence and records it in the history. The returned
// similarity is the candidate's worst content similarity against the recent
// window; values at or above the ceiling mean every candidate crossed it and
// the least-similar one was kept.
func (vb *VariationBuilder) Build(target, minSpacing int, rng *rand.Rand, opts ...Option) (*Result, float64, error) {
	opts = append(opts, WithRand(rng))

	var best *Result
	bestSim := 2.0
	for attempt := 0; attempt < vb.candidates; attempt++ {
		result, err := Build(vb.pool, target, minSpacing, opts...)
		if err != nil {
			return nil, 0, err
		}
		sim := vb.worstRecentSimilarity(result.Items)
		if sim < bestSim {
			best, bestSim = result, sim
		}
		if sim < vb.ceiling {
			break
		}
	}

	vb.remember(best.Items)
	return best, bestSim, nil
}

// worstRecentSimilarity compares a candidate against the newest window of
// history and returns the highest content similarity found.
func (vb *VariationBuilder) worstRecentSimilarity(seq []Item) float64 {
	start := len(vb.history) - vb.window
	if start < 0 {
		start = 0
	}
	worst := 0.0
	for _, prev := range vb.history[start:] {
		if len(prev) != len(seq) {
			continue
		}
		report, err := Compare(seq, prev)
		if err != nil {
			continue
		}
		if report.Content > worst {
			worst = report.Content
		}
	}
	return worst
}

func (vb *VariationBuilder) remember(seq []Item) {
	vb.history = append(vb.history, seq)
	if len(vb.history) > vb.maxHistory {
		vb.history = vb.history[len(vb.history)-vb.maxHistory:]
	}
}

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

package sequence_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/core/sequence"
	"github.com/stretchr/testify/assert"
)

func TestCompareIdenticalSequences(t *testing.T) {
	seq := []sequence.Item{
		sequence.CategoryColorItem("dance", "red", 1),
		sequence.CategoryColorItem("nature", "blue", 2),
		sequence.CategoryColorItem("dance", "red", 3),
	}

	report, err := sequence.Compare(seq, seq)
	assert.NoError(t, err)
	assert.True(t, report.ExactDuplicate)
	assert.Equal(t, 1.0, report.Positional)
	assert.Equal(t, 1.0, report.Content)
	assert.Equal(t, 1.0, report.Category)
	assert.Equal(t, 1.0, report.UniqueItems)
}

func TestCompareDisjointItemsSameCategories(t *testing.T) {
	// Different physical clips drawn from the same category mix: no item
	// overlap at all, yet the category rhythm is identical.
	a := []sequence.Item{
		sequence.CategoryColorItem("dance", "red", 1),
		sequence.CategoryColorItem("nature", "red", 1),
	}
	b := []sequence.Item{
		sequence.CategoryColorItem("dance", "red", 2),
		sequence.CategoryColorItem("nature", "red", 2),
	}

	report, err := sequence.Compare(a, b)
	assert.NoError(t, err)
	assert.False(t, report.ExactDuplicate)
	assert.Equal(t, 0.0, report.Positional)
	assert.Equal(t, 0.0, report.Content)
	assert.Equal(t, 1.0, report.Category)
	assert.Equal(t, 0.0, report.UniqueItems)
}

func TestCompareHalfOverlap(t *testing.T) {
	a := []sequence.Item{
		sequence.CategoryColorItem("dance", "red", 1),
		sequence.CategoryColorItem("nature", "red", 1),
		sequence.CategoryColorItem("dance", "red", 2),
		sequence.CategoryColorItem("nature", "red", 2),
	}
	b := []sequence.Item{
		sequence.CategoryColorItem("dance", "red", 1),
		sequence.CategoryColorItem("nature", "red", 1),
		sequence.CategoryColorItem("dance", "red", 3),
		sequence.CategoryColorItem("nature", "red", 3),
	}

	report, err := sequence.Compare(a, b)
	assert.NoError(t, err)
	assert.Equal(t, 0.5, report.Positional)
	assert.Equal(t, 0.5, report.Content)
	assert.Equal(t, 1.0, report.Category)
	// Two shared clips out of six distinct across both sequences.
	assert.InDelta(t, 1.0/3.0, report.UniqueItems, 1e-9)
	assert.False(t, report.ExactDuplicate)
}

func TestCompareEmptySequences(t *testing.T) {
	report, err := sequence.Compare(nil, nil)
	assert.NoError(t, err)
	assert.True(t, report.ExactDuplicate)
	assert.Equal(t, 0.0, report.Content)
}

func TestCompareLengthMismatch(t *testing.T) {
	a := []sequence.Item{sequence.CategoryColorItem("dance", "red", 1)}
	_, err := sequence.Compare(a, nil)
	assert.True(t, errors.Is(err, sequence.ErrLengthMismatch))
}

func TestGenerateBatchVariation(t *testing.T) {
	pool := balancedPool(t, []string{"dance", "nature", "urban", "food", "travel"}, []string{"red", "blue"}, 20)
	rng := rand.New(rand.NewSource(21))

	batch, err := sequence.GenerateBatch(pool, 60, 2, 3, sequence.WithRand(rng))
	assert.NoError(t, err)
	assert.Len(t, batch.Results, 3)
	assert.Len(t, batch.Pairwise, 3)
	assert.Equal(t, "Seq1 vs Seq2", batch.Pairwise[0].Label)
	assert.Equal(t, "Seq1 vs Seq3", batch.Pairwise[1].Label)
	assert.Equal(t, "Seq2 vs Seq3", batch.Pairwise[2].Label)

	// With 200 clips backing 60 slots, independent runs share only a small
	// fraction of their content.
	assert.Zero(t, batch.ExactDuplicates)
	assert.Less(t, batch.AvgContent, 0.7)
	assert.Equal(t, sequence.VariationHigh, batch.Quality)
}

func TestGenerateBatchRejectsZeroRuns(t *testing.T) {
	pool := balancedPool(t, []string{"dance"}, []string{"red"}, 2)
	_, err := sequence.GenerateBatch(pool, 2, 0, 0)
	assert.Error(t, err)
}

func TestVariationBuilderKeepsRunsApart(t *testing.T) {
	pool := balancedPool(t, []string{"dance", "nature", "urban", "food", "travel"}, []string{"red", "blue"}, 20)
	vb := sequence.NewVariationBuilder(pool)
	rng := rand.New(rand.NewSource(22))

	for i := 0; i < 5; i++ {
		result, sim, err := vb.Build(60, 2, rng)
		assert.NoError(t, err)
		assert.Len(t, result.Items, 60)
		if i == 0 {
			// Nothing in the history yet, so nothing to resemble.
			assert.Equal(t, 0.0, sim)
		} else {
			assert.Greater(t, sim, 0.0)
			assert.Less(t, sim, 0.75)
		}
	}
}

func TestVariationBuilderIgnoresMismatchedHistory(t *testing.T) {
	pool := balancedPool(t, []string{"dance", "nature", "urban", "food", "travel"}, []string{"red", "blue"}, 20)
	vb := sequence.NewVariationBuilder(pool)
	rng := rand.New(rand.NewSource(23))

	_, _, err := vb.Build(60, 2, rng)
	assert.NoError(t, err)

	// A shorter run cannot be compared against the 60-item history entry, so
	// it reports zero similarity.
	_, sim, err := vb.Build(30, 2, rng)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestVariationBuilderPropagatesBuildErrors(t *testing.T) {
	pool := categoryPool(t, map[string]int{"dance": 5, "nature": 1})
	vb := sequence.NewVariationBuilder(pool)

	_, _, err := vb.Build(6, 2, rand.New(rand.NewSource(24)))
	var infeasible *sequence.InfeasibleSequenceError
	assert.True(t, errors.As(err, &infeasible))
}

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

// TestBuildProductionScenario exercises the documented production shape:
// 5 categories x 2 colors x 20 items (200 clips, 40 per category) built to
// length 150 with spacing 2. The build must succeed within the default
// budget and honor every structural guarantee at once.
func TestBuildProductionScenario(t *testing.T) {
	pool := balancedPool(t, []string{"dance", "nature", "urban", "sport", "food"}, []string{"red", "blue"}, 20)
	rng := rand.New(rand.NewSource(1))

	result, err := sequence.Build(pool, 150, 2, sequence.WithRand(rng), sequence.WithMaxAttempts(1000))
	assert.NoError(t, err)
	assert.Len(t, result.Items, 150)
	assert.False(t, result.Clamped)
	assert.False(t, result.BestEffort)
	assert.GreaterOrEqual(t, result.Attempts, 1)

	assert.True(t, sequence.Verify(result.Items, 2), "spacing invariant violated")
	assert.Equal(t, 150, uniqueKeys(result.Items), "an inventory item was placed twice")

	// Soft balance cap: 150/5 + 2.
	for category, used := range primaryUsage(result.Items) {
		assert.LessOrEqual(t, used, 32, "category %s exceeded the balance cap", category)
	}
}

func TestBuildClampsTargetToSupply(t *testing.T) {
	pool := categoryPool(t, map[string]int{"dance": 3, "nature": 3})
	rng := rand.New(rand.NewSource(2))

	result, err := sequence.Build(pool, 10, 1, sequence.WithRand(rng))
	assert.NoError(t, err)
	assert.True(t, result.Clamped)
	assert.Equal(t, 6, result.Target)
	assert.Len(t, result.Items, 6)
	assert.True(t, sequence.Verify(result.Items, 1))
}

func TestBuildZeroSpacingAllowsAdjacency(t *testing.T) {
	pool := categoryPool(t, map[string]int{"dance": 3, "nature": 3})
	rng := rand.New(rand.NewSource(3))

	result, err := sequence.Build(pool, 6, 0, sequence.WithRand(rng))
	assert.NoError(t, err)
	assert.Len(t, result.Items, 6)
	assert.True(t, sequence.Verify(result.Items, 0))
}

func TestBuildZeroTarget(t *testing.T) {
	pool := categoryPool(t, map[string]int{"dance": 3})

	result, err := sequence.Build(pool, 0, 2)
	assert.NoError(t, err)
	assert.Empty(t, result.Items)
}

// TestBuildStrictRejectsInfeasible verifies the feasibility gate: a starved
// category must fail the request before any randomized search runs.
func TestBuildStrictRejectsInfeasible(t *testing.T) {
	pool := categoryPool(t, map[string]int{"dance": 5, "nature": 1})

	_, err := sequence.Build(pool, 6, 2, sequence.WithRand(rand.New(rand.NewSource(4))))
	assert.Error(t, err)

	var infeasible *sequence.InfeasibleSequenceError
	assert.True(t, errors.As(err, &infeasible))
	assert.NotNil(t, infeasible.Report)
	assert.Zero(t, infeasible.Attempts)
	assert.Contains(t, infeasible.Report.Recommendation, "IMPOSSIBLE")
}

// TestBuildRelaxedFallback forces an unsatisfiable spacing constraint and
// checks the documented degradation: full-length shuffle, flagged.
func TestBuildRelaxedFallback(t *testing.T) {
	// Five "dance" items in six positions can never sit more than two
	// apart, so every attempt dead-ends.
	pool := categoryPool(t, map[string]int{"dance": 5, "nature": 1})
	rng := rand.New(rand.NewSource(5))

	result, err := sequence.Build(pool, 6, 2,
		sequence.WithRand(rng),
		sequence.WithRelaxed(true),
		sequence.WithMaxAttempts(50),
	)
	assert.NoError(t, err)
	assert.True(t, result.BestEffort)
	assert.Equal(t, 50, result.Attempts)
	assert.Len(t, result.Items, 6)
	assert.Equal(t, 6, uniqueKeys(result.Items))
	assert.False(t, sequence.Verify(result.Items, 2))
}

func TestBuildRelaxedStillPrefersValidSequences(t *testing.T) {
	pool := balancedPool(t, []string{"dance", "nature", "urban"}, []string{"red"}, 5)
	rng := rand.New(rand.NewSource(6))

	result, err := sequence.Build(pool, 12, 1, sequence.WithRand(rng), sequence.WithRelaxed(true))
	assert.NoError(t, err)
	assert.False(t, result.BestEffort, "relaxed mode degraded although a valid ordering exists")
	assert.True(t, sequence.Verify(result.Items, 1))
}

// TestBuildReproducibleWithSeed pins the injectable-randomness contract: the
// same seed must reproduce the same ordering.
func TestBuildReproducibleWithSeed(t *testing.T) {
	pool := balancedPool(t, []string{"dance", "nature", "urban"}, []string{"red", "blue"}, 5)

	first, err := sequence.Build(pool, 20, 1, sequence.WithRand(rand.New(rand.NewSource(7))))
	assert.NoError(t, err)
	second, err := sequence.Build(pool, 20, 1, sequence.WithRand(rand.New(rand.NewSource(7))))
	assert.NoError(t, err)

	report, err := sequence.Compare(first.Items, second.Items)
	assert.NoError(t, err)
	assert.True(t, report.ExactDuplicate)
}

func TestBuildNilPool(t *testing.T) {
	_, err := sequence.Build(nil, 10, 2)
	assert.ErrorIs(t, err, sequence.ErrNilPool)
}

func TestVerifyDetectsViolations(t *testing.T) {
	a1 := sequence.CategoryColorItem("dance", "red", 1)
	a2 := sequence.CategoryColorItem("dance", "blue", 1)
	b1 := sequence.CategoryColorItem("nature", "red", 1)

	assert.True(t, sequence.Verify([]sequence.Item{a1, b1, a2}, 1))
	assert.False(t, sequence.Verify([]sequence.Item{a1, a2, b1}, 1))
	assert.True(t, sequence.Verify([]sequence.Item{a1, a2, b1}, 0))
	assert.False(t, sequence.Verify([]sequence.Item{a1, b1, a2}, 2))
}

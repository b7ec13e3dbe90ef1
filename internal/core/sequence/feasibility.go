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

package sequence

import (
	"fmt"
	"math"
	"strings"
)

// Feasibility recommendation labels. The label prefixes (EXCELLENT, GOOD,
// MARGINAL, RISKY, IMPOSSIBLE) are stable API: operators key dashboards and
// scripts off them.
const (
	RecommendExcellent  = "EXCELLENT - Plenty of items available"
	RecommendGood       = "GOOD - Adequate items with safety margin"
	RecommendMarginal   = "MARGINAL - Should work but little room for error"
	RecommendRisky      = "RISKY - May fail due to spacing constraints"
	recommendImpossible = "IMPOSSIBLE - Bottleneck categories: %s"
	recommendEmptyPool  = "IMPOSSIBLE - No items available after filtering"
)

// GroupReport carries the supply diagnosis for one primary-attribute value.
type GroupReport struct {
	Value       string  `json:"value"`
	Available   int     `json:"available"`
	Needed      float64 `json:"needed"`
	SafetyRatio float64 `json:"safety_ratio"` // +Inf when the group needs nothing
}

// Report is the read-only feasibility summary computed before any build is
// attempted. It never mutates the pool and carries everything a caller needs
// to decide whether to proceed or adjust parameters.
type Report struct {
	TargetLength   int           `json:"target_length"`
	MinSpacing     int           `json:"min_spacing"`
	TotalAvailable int           `json:"total_available"`
	Groups         []GroupReport `json:"groups"`
	Bottlenecks    []string      `json:"bottlenecks,omitempty"`
	Feasible       bool          `json:"feasible"`
	Recommendation string        `json:"recommendation"`
}

// Analyze computes the supply-versus-need diagnosis for building a sequence
// of target length under the spacing constraint. Need per primary group is
// the even split target/num_groups (kept fractional); a group whose supply
// falls below its need is a bottleneck. The request is feasible only when
// the pool holds at least target items and no group is a bottleneck: one
// starved group can make the spacing constraint unsatisfiable near the end
// of construction even when the total supply is ample.
//
// Analyze is a pure function: no randomness, no side effects.
func Analyze(pool *Pool, target, minSpacing int) *Report {
	report := &Report{
		TargetLength:   target,
		MinSpacing:     minSpacing,
		TotalAvailable: pool.Total(),
	}

	if target <= 0 {
		report.Feasible = true
		report.Recommendation = RecommendExcellent
		return report
	}
	if pool.Total() == 0 {
		report.Recommendation = recommendEmptyPool
		return report
	}

	available := pool.AvailableByPrimary()
	primaries := pool.PrimaryValues()
	needed := float64(target) / float64(len(primaries))

	minRatio := math.Inf(1)
	for _, value := range primaries {
		ratio := math.Inf(1)
		if needed > 0 {
			ratio = float64(available[value]) / needed
		}
		report.Groups = append(report.Groups, GroupReport{
			Value:       value,
			Available:   available[value],
			Needed:      needed,
			SafetyRatio: ratio,
		})
		if float64(available[value]) < needed {
			report.Bottlenecks = append(report.Bottlenecks, value)
		}
		if ratio < minRatio {
			minRatio = ratio
		}
	}

	report.Feasible = len(report.Bottlenecks) == 0 && report.TotalAvailable >= target
	report.Recommendation = recommendation(minRatio, report.Bottlenecks)
	return report
}

// recommendation maps the tightest safety ratio to the qualitative label the
// original tooling documented. The thresholds are part of the contract.
func recommendation(minRatio float64, bottlenecks []string) string {
	switch {
	case len(bottlenecks) > 0:
		return fmt.Sprintf(recommendImpossible, strings.Join(bottlenecks, ", "))
	case minRatio > 2.0:
		return RecommendExcellent
	case minRatio >= 1.5:
		return RecommendGood
	case minRatio >= 1.2:
		return RecommendMarginal
	default:
		return RecommendRisky
	}
}

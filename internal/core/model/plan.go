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

// This file, `plan.go`, defines the serializable outcomes of sequence
// generation: resolved per-slot entries, single-run plans, and multi-run
// variation reports. These structs are the JSON bodies the sequences API
// returns; each plan echoes the request parameters so a saved response is
// self-describing.
package model

import "github.com/dex-codes/ffmpeg-processor/internal/core/sequence"

// PlanItem is one resolved slot of a generated sequence, flattened for JSON.
// Category and color come from the placement engine; name and link come from
// the inventory row the slot resolved to. Synthesized marks a slot no
// physical inventory row backed, in which case the name is a deterministic
// placeholder and the link is blank.
type PlanItem struct {
	Position    int    `json:"item_no"`
	Category    string `json:"category"`
	Color       string `json:"color"`
	Name        string `json:"name"`
	Link        string `json:"link,omitempty"`
	Synthesized bool   `json:"synthesized,omitempty"`
}

// SequencePlan is the outcome of one generation run: the feasibility report
// computed before building, the resolved slots, and the build telemetry
// (attempt count, whether the target was clamped to supply, whether relaxed
// mode degraded to a best-effort ordering).
type SequencePlan struct {
	Params     *SequenceParams  `json:"params,omitempty"`
	Report     *sequence.Report `json:"report,omitempty"`
	Items      []*PlanItem      `json:"items"`
	Attempts   int              `json:"attempts,omitempty"`
	Clamped    bool             `json:"clamped,omitempty"`
	BestEffort bool             `json:"best_effort,omitempty"`
	// Similarity is only set for history-aware runs: the worst content
	// similarity against the recent window. Values at or above the
	// configured ceiling mean every candidate crossed it and the least
	// similar one was kept.
	Similarity float64 `json:"similarity,omitempty"`
}

// VariationPlan is the outcome of generating several sequences in one call:
// the individual runs plus the pairwise similarity study that grades how
// much they resemble each other.
type VariationPlan struct {
	Params     *SequenceParams       `json:"params"`
	Sequences  []*SequencePlan       `json:"sequences"`
	Similarity *sequence.BatchReport `json:"similarity"`
}

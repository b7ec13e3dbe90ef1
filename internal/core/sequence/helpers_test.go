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
	"fmt"
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/core/sequence"
	"google.golang.org/api/iterator"
)

// memSource serves rows from memory so tests can shape inventories without
// touching the filesystem.
type memSource struct {
	rows []sequence.Row
	pos  int
}

func (m *memSource) Next() (sequence.Row, error) {
	if m.pos >= len(m.rows) {
		return nil, iterator.Done
	}
	row := m.rows[m.pos]
	m.pos++
	return row, nil
}

func (m *memSource) Close() error { return nil }

func (m *memSource) Name() string { return "mem" }

// clipRow builds one inventory row in the conventional column layout.
func clipRow(name, link, category, color string) sequence.Row {
	return sequence.Row{
		"name":     name,
		"link":     link,
		"category": category,
		"color":    color,
	}
}

// balancedRows produces perLeaf rows for every (category, color) pair.
func balancedRows(categories, colors []string, perLeaf int) []sequence.Row {
	var rows []sequence.Row
	for _, cat := range categories {
		for _, col := range colors {
			for i := 1; i <= perLeaf; i++ {
				name := fmt.Sprintf("%s-%s-%03d", cat, col, i)
				rows = append(rows, clipRow(name, "https://clips.test/"+name, cat, col))
			}
		}
	}
	return rows
}

// balancedPool loads a (category, color) pool with perLeaf items per leaf.
func balancedPool(t *testing.T, categories, colors []string, perLeaf int) *sequence.Pool {
	t.Helper()
	pool, err := sequence.Load(
		&memSource{rows: balancedRows(categories, colors, perLeaf)},
		sequence.CategoryColorSchema(),
		sequence.CategoryColorFilter(categories, colors),
		sequence.FieldMap{},
	)
	if err != nil {
		t.Fatalf("loading balanced pool: %v", err)
	}
	return pool
}

// categoryPool loads a single-level pool with the given count per category.
func categoryPool(t *testing.T, counts map[string]int) *sequence.Pool {
	t.Helper()
	var rows []sequence.Row
	var allowed []string
	for cat, n := range counts {
		allowed = append(allowed, cat)
		for i := 1; i <= n; i++ {
			rows = append(rows, sequence.Row{
				"name":     fmt.Sprintf("%s-%03d", cat, i),
				"category": cat,
			})
		}
	}
	pool, err := sequence.Load(
		&memSource{rows: rows},
		sequence.Schema{"category"},
		sequence.Filter{"category": allowed},
		sequence.FieldMap{},
	)
	if err != nil {
		t.Fatalf("loading category pool: %v", err)
	}
	return pool
}

// uniqueKeys counts the distinct placement units in a sequence.
func uniqueKeys(items []sequence.Item) int {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it.Key()] = struct{}{}
	}
	return len(seen)
}

// primaryUsage tallies placements per primary value.
func primaryUsage(items []sequence.Item) map[string]int {
	usage := make(map[string]int)
	for _, it := range items {
		usage[it.Primary()]++
	}
	return usage
}

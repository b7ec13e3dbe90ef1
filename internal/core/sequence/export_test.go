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
	"bytes"
	"encoding/csv"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/core/sequence"
	"github.com/stretchr/testify/assert"
)

func TestExportRoundTrip(t *testing.T) {
	pool := balancedPool(t, []string{"dance", "nature"}, []string{"red", "blue"}, 3)
	result, err := sequence.Build(pool, 8, 1, sequence.WithRand(rand.New(rand.NewSource(11))))
	assert.NoError(t, err)

	var buf bytes.Buffer
	warn, err := sequence.Export(&buf, result.Items, pool)
	assert.NoError(t, err)
	assert.Nil(t, warn)

	records, err := csv.NewReader(&buf).ReadAll()
	assert.NoError(t, err)
	assert.Len(t, records, 9)
	assert.Equal(t, []string{"item_no", "name", "link", "category", "color"}, records[0])

	for i, record := range records[1:] {
		assert.Equal(t, strconv.Itoa(i+1), record[0])

		// Every exported row must resolve back to the pool entry with the
		// same attribute values.
		ordinalOwner, ok := pool.Lookup(result.Items[i])
		assert.True(t, ok)
		assert.Equal(t, ordinalOwner.Name, record[1])
		assert.Equal(t, ordinalOwner.Link, record[2])
		assert.Equal(t, result.Items[i].Values[0], record[3])
		assert.Equal(t, result.Items[i].Values[1], record[4])
	}
}

func TestExportSynthesizesMissingItems(t *testing.T) {
	pool := balancedPool(t, []string{"dance"}, []string{"red"}, 1)
	ghost := sequence.CategoryColorItem("dance", "red", 7)

	var buf bytes.Buffer
	warn, err := sequence.Export(&buf, []sequence.Item{ghost}, pool)
	assert.NoError(t, err)
	assert.NotNil(t, warn)
	assert.Len(t, warn.Missing, 1)
	assert.Contains(t, warn.Error(), "synthesized")

	records, err := csv.NewReader(&buf).ReadAll()
	assert.NoError(t, err)
	assert.Equal(t, "dance_red_item07", records[1][1])
	assert.Equal(t, "", records[1][2])
}

func TestExportArityMismatch(t *testing.T) {
	pool := balancedPool(t, []string{"dance"}, []string{"red"}, 1)
	var buf bytes.Buffer

	_, err := sequence.Export(&buf, []sequence.Item{{Values: []string{"dance"}, Ordinal: 1}}, pool)
	assert.ErrorIs(t, err, sequence.ErrSchemaMismatch)
}

func TestExportFile(t *testing.T) {
	pool := balancedPool(t, []string{"dance", "nature"}, []string{"red"}, 2)
	result, err := sequence.Build(pool, 4, 1, sequence.WithRand(rand.New(rand.NewSource(12))))
	assert.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "sequence.csv")
	assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	warn, err := sequence.ExportFile(path, result.Items, pool)
	assert.NoError(t, err)
	assert.Nil(t, warn)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "item_no,name,link,category,color")
}

func TestFallbackName(t *testing.T) {
	assert.Equal(t, "dance_red_item07", sequence.FallbackName(sequence.CategoryColorItem("dance", "red", 7)))
	assert.Equal(t, "urban_item12", sequence.FallbackName(sequence.Item{Values: []string{"urban"}, Ordinal: 12}))
}

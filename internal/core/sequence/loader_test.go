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
	"os"
	"path/filepath"
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/core/sequence"
	"github.com/stretchr/testify/assert"
)

func TestLoadGroupsAndOrdinals(t *testing.T) {
	src := &memSource{rows: []sequence.Row{
		clipRow("first-dance-red", "https://clips.test/1", "dance", "red"),
		clipRow("first-nature-red", "https://clips.test/2", "nature", "red"),
		clipRow("second-dance-red", "https://clips.test/3", "dance", "red"),
		clipRow("first-dance-blue", "https://clips.test/4", "dance", "blue"),
	}}

	pool, err := sequence.Load(src,
		sequence.CategoryColorSchema(),
		sequence.CategoryColorFilter([]string{"dance", "nature"}, []string{"red", "blue"}),
		sequence.FieldMap{},
	)
	assert.NoError(t, err)
	assert.Equal(t, 4, pool.Total())
	assert.Equal(t, 3, pool.GroupCount("dance"))
	assert.Equal(t, 2, pool.GroupCount("dance", "red"))
	assert.Equal(t, 1, pool.GroupCount("nature"))
	assert.Zero(t, pool.GroupCount("urban"))

	// Ordinals follow encounter order within each leaf group.
	first, ok := pool.Lookup(sequence.CategoryColorItem("dance", "red", 1))
	assert.True(t, ok)
	assert.Equal(t, "first-dance-red", first.Name)
	assert.Equal(t, "https://clips.test/1", first.Link)

	second, ok := pool.Lookup(sequence.CategoryColorItem("dance", "red", 2))
	assert.True(t, ok)
	assert.Equal(t, "second-dance-red", second.Name)

	_, ok = pool.Lookup(sequence.CategoryColorItem("dance", "red", 3))
	assert.False(t, ok)
}

func TestLoadDropsIneligibleRows(t *testing.T) {
	rows := []sequence.Row{
		clipRow("keeper", "", "dance", "red"),
		clipRow("excluded category", "", "urban", "red"),
		clipRow("excluded color", "", "dance", "green"),
		clipRow("blank category", "", "   ", "red"),
		{"name": "missing color column", "category": "dance"},
	}

	pool, err := sequence.Load(&memSource{rows: rows},
		sequence.CategoryColorSchema(),
		sequence.CategoryColorFilter([]string{"dance"}, []string{"red"}),
		sequence.FieldMap{},
	)
	assert.NoError(t, err)
	assert.Equal(t, 1, pool.Total())

	item, ok := pool.Lookup(sequence.CategoryColorItem("dance", "red", 1))
	assert.True(t, ok)
	assert.Equal(t, "keeper", item.Name)
}

func TestLoadEmptyResultIsValid(t *testing.T) {
	rows := []sequence.Row{clipRow("clip", "", "urban", "red")}

	pool, err := sequence.Load(&memSource{rows: rows},
		sequence.CategoryColorSchema(),
		sequence.CategoryColorFilter([]string{"dance"}, []string{"red"}),
		sequence.FieldMap{},
	)
	assert.NoError(t, err)
	assert.Zero(t, pool.Total())
	assert.Empty(t, pool.PrimaryValues())
}

func TestLoadCollectsPassthroughColumns(t *testing.T) {
	rows := []sequence.Row{{
		"name":     "clip",
		"link":     "https://clips.test/clip",
		"category": "dance",
		"color":    "red",
		"duration": " 12.5 ",
	}}

	pool, err := sequence.Load(&memSource{rows: rows},
		sequence.CategoryColorSchema(),
		sequence.CategoryColorFilter([]string{"dance"}, []string{"red"}),
		sequence.FieldMap{},
	)
	assert.NoError(t, err)

	item, ok := pool.Lookup(sequence.CategoryColorItem("dance", "red", 1))
	assert.True(t, ok)
	assert.Equal(t, "12.5", item.Extra["duration"])
}

func TestLoadRejectsBadSchema(t *testing.T) {
	_, err := sequence.Load(&memSource{}, sequence.Schema{}, sequence.Filter{}, sequence.FieldMap{})
	assert.ErrorIs(t, err, sequence.ErrEmptySchema)

	_, err = sequence.Load(&memSource{}, sequence.Schema{"category", "category"}, sequence.Filter{}, sequence.FieldMap{})
	assert.ErrorIs(t, err, sequence.ErrDuplicateAttribute)

	_, err = sequence.Load(nil, sequence.Schema{"category"}, sequence.Filter{}, sequence.FieldMap{})
	assert.ErrorIs(t, err, sequence.ErrNilSource)
}

func TestCSVSourceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	content := "clip name,video link,category,color\n" +
		"  Sunrise Run , https://clips.test/sunrise ,dance,red\n" +
		"Short Row,,dance\n" +
		"Ocean Pan,https://clips.test/ocean,nature,blue\n"
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src, err := sequence.NewCSVSource(path)
	assert.NoError(t, err)
	assert.Equal(t, []string{"clip name", "video link", "category", "color"}, src.Header())

	pool, err := sequence.Load(src,
		sequence.CategoryColorSchema(),
		sequence.CategoryColorFilter([]string{"dance", "nature"}, []string{"red", "blue"}),
		sequence.FieldMap{Name: "clip name", Link: "video link"},
	)
	assert.NoError(t, err)
	// The short row lacks a color column and is dropped, not an error.
	assert.Equal(t, 2, pool.Total())

	item, ok := pool.Lookup(sequence.CategoryColorItem("dance", "red", 1))
	assert.True(t, ok)
	assert.Equal(t, "Sunrise Run", item.Name)
	assert.Equal(t, "https://clips.test/sunrise", item.Link)
}

func TestCSVSourceMissingFile(t *testing.T) {
	_, err := sequence.NewCSVSource(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)

	var dataErr *sequence.DataSourceError
	assert.True(t, errors.As(err, &dataErr))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCSVSourceEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	assert.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := sequence.NewCSVSource(path)
	var dataErr *sequence.DataSourceError
	assert.True(t, errors.As(err, &dataErr))
}

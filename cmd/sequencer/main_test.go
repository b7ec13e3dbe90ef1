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

package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
)

const inventoryCSV = `name,link,category,color
dance_01,gs://clips/raw/dance_01.mp4,dance,red
dance_02,gs://clips/raw/dance_02.mp4,dance,red
dance_03,gs://clips/raw/dance_03.mp4,dance,red
urban_01,gs://clips/raw/urban_01.mp4,urban,red
urban_02,gs://clips/raw/urban_02.mp4,urban,red
urban_03,gs://clips/raw/urban_03.mp4,urban,red
nature_01,gs://clips/raw/nature_01.mp4,nature,red
nature_02,gs://clips/raw/nature_02.mp4,nature,red
nature_03,gs://clips/raw/nature_03.mp4,nature,red
`

// writeInventory drops the fixture inventory into a temp dir and returns the
// CSV path a --source flag can point at.
func writeInventory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.csv")
	assert.NoError(t, os.WriteFile(path, []byte(inventoryCSV), 0o644))
	return path
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd(cloud.NewConfig())

	verbs := make(map[string]*cobra.Command)
	for _, sub := range root.Commands() {
		verbs[sub.Name()] = sub
	}
	for _, want := range []string{"generate", "analyze", "variation", "render"} {
		assert.Contains(t, verbs, want)
	}

	for _, name := range []string{
		"source", "schema", "name-column", "link-column",
		"categories", "colors", "length", "spacing", "attempts", "relaxed", "seed",
	} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing persistent flag %q", name)
	}

	if cmd := verbs["generate"]; assert.NotNil(t, cmd) {
		assert.NotNil(t, cmd.Flags().Lookup("out"))
	}
	if cmd := verbs["variation"]; assert.NotNil(t, cmd) {
		assert.NotNil(t, cmd.Flags().Lookup("variations"))
	}
	if cmd := verbs["render"]; assert.NotNil(t, cmd) {
		assert.NotNil(t, cmd.Flags().Lookup("output-prefix"))
	}
}

func TestRootCommandFlagDefaults(t *testing.T) {
	cfg := cloud.NewConfig()
	cfg.Sequence.Schema = []string{"genre", "mood"}
	cfg.Sequence.TargetLength = 24
	cfg.Sequence.MinSpacing = 3
	cfg.Sequence.MaxAttempts = 750

	pf := newRootCmd(cfg).PersistentFlags()
	assert.Equal(t, "[genre,mood]", pf.Lookup("schema").DefValue)
	assert.Equal(t, "24", pf.Lookup("length").DefValue)
	assert.Equal(t, "3", pf.Lookup("spacing").DefValue)
	assert.Equal(t, "750", pf.Lookup("attempts").DefValue)

	// A bare configuration still yields a usable two-attribute schema.
	bare := newRootCmd(cloud.NewConfig()).PersistentFlags()
	assert.Equal(t, "[category,color]", bare.Lookup("schema").DefValue)
}

func TestGenerateCommandFromCSV(t *testing.T) {
	source := writeInventory(t)
	out := filepath.Join(t.TempDir(), "plan.csv")

	root := newRootCmd(cloud.NewConfig())
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{
		"generate",
		"--source", source,
		"--categories", "dance,urban,nature",
		"--colors", "red",
		"--length", "6",
		"--spacing", "1",
		"--seed", "42",
		"--out", out,
	})
	assert.NoError(t, root.Execute())

	assert.Contains(t, stdout.String(), "sequence of 6 clips (attempts")
	assert.Contains(t, stdout.String(), "wrote "+out)

	data, err := os.ReadFile(out)
	assert.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	assert.NoError(t, err)
	assert.Len(t, records, 7)
	assert.Equal(t, []string{"item_no", "name", "link", "category", "color"}, records[0])

	// Spacing 1 forbids back to back repeats of the primary attribute.
	for i := 2; i < len(records); i++ {
		assert.NotEqual(t, records[i-1][3], records[i][3], "adjacent clips share a category")
	}
}

func TestAnalyzeCommandFromCSV(t *testing.T) {
	source := writeInventory(t)

	root := newRootCmd(cloud.NewConfig())
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stdout)
	root.SetArgs([]string{
		"analyze",
		"--source", source,
		"--categories", "dance,urban,nature",
		"--colors", "red",
		"--length", "6",
		"--spacing", "1",
	})
	assert.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), "target 6, spacing 1, 9 clips available")
}

func TestGenerateCommandRequiresLength(t *testing.T) {
	root := newRootCmd(cloud.NewConfig())
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"generate", "--source", writeInventory(t), "--categories", "dance"})

	err := root.Execute()
	assert.ErrorIs(t, err, errTargetLength)
}

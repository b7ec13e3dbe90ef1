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

package cloud_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigOverlayPrecedence writes a base file and a runtime overlay
// into a scratch directory and checks the merge rules: overlay values win,
// base values survive where the overlay is silent.
func TestLoadConfigOverlayPrecedence(t *testing.T) {
	dir := t.TempDir()

	base := `
[application]
name = "ffmpeg-processor"
google_project_id = "base-project"

[sequence]
target_length = 30
min_spacing = 2

[downloads]
requests_per_minute = 60
backoff_minutes = [5, 15, 30, 60, 120]
`
	overlay := `
[application]
google_project_id = "override-project"

[sequence]
target_length = 12
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(base), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.unittest.toml"), []byte(overlay), 0o644))

	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "unittest")

	cfg := cloud.NewConfig()
	cloud.LoadConfig(cfg)

	assert.Equal(t, "override-project", cfg.Application.GoogleProjectId)
	assert.Equal(t, 12, cfg.Sequence.TargetLength)

	assert.Equal(t, "ffmpeg-processor", cfg.Application.Name)
	assert.Equal(t, 2, cfg.Sequence.MinSpacing)
	assert.Equal(t, 60, cfg.Downloads.RequestsPerMinute)
	assert.Equal(t, []int{5, 15, 30, 60, 120}, cfg.Downloads.BackoffMinutes)
}

// TestLoadConfigMissingOverlayKeepsBase points the loader at a runtime with
// no overlay file and checks the base config is untouched.
func TestLoadConfigMissingOverlayKeepsBase(t *testing.T) {
	dir := t.TempDir()

	base := `
[application]
name = "ffmpeg-processor"

[jobs]
max_concurrent = 3
retention_days = 7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(base), 0o644))

	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "nonexistent")

	cfg := cloud.NewConfig()
	cloud.LoadConfig(cfg)

	assert.Equal(t, "ffmpeg-processor", cfg.Application.Name)
	assert.Equal(t, 3, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, 7, cfg.Jobs.RetentionDays)
}

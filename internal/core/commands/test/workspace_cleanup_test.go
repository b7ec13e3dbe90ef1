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

package commands_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/core/commands"
	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestWorkspaceCleanupRemovesScratchDir(t *testing.T) {
	workDir := filepath.Join(t.TempDir(), "render-scratch")
	assert.NoError(t, os.MkdirAll(workDir, 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(workDir, "clip_001.mp4"), []byte("stub"), 0o644))

	manifest := &model.RenderManifest{JobId: "video_sequence_20250314_091205_ab12cd34", WorkDir: workDir}
	ctx := cor.NewBaseContext()
	ctx.SetContext(context.Background())
	ctx.Add(cor.CtxIn, manifest)

	cmd := commands.NewWorkspaceCleanup("cleanup-test")
	assert.True(t, cmd.IsExecutable(ctx))
	cmd.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	_, err := os.Stat(workDir)
	assert.True(t, os.IsNotExist(err))
	// The manifest forgets the directory so a later backstop pass is a no-op.
	assert.Equal(t, "", manifest.WorkDir)
}

func TestWorkspaceCleanupSkipsManifestWithoutScratchDir(t *testing.T) {
	ctx := cor.NewBaseContext()
	ctx.SetContext(context.Background())
	ctx.Add(cor.CtxIn, &model.RenderManifest{JobId: "video_sequence_20250314_091205_ab12cd34"})

	cmd := commands.NewWorkspaceCleanup("cleanup-test")
	assert.False(t, cmd.IsExecutable(ctx))
}

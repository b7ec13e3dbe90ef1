// Copyright 2024 Google, LLC
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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// final command of the render workflow: removing the job's scratch
// directory.
//
// Logic Flow:
// A render accumulates a full set of downloads, a standardized copy of each
// clip, the concat list, and the stitched output in its scratch directory.
// Once the render is uploaded, none of that is needed. This command removes
// the whole directory in one call.
//
// Failing to delete scratch files is never worth failing a job whose render
// already landed in the bucket, so problems here are logged and swallowed.
// The workflow runner also removes the directory as a backstop for chains
// that die before reaching this command.
package commands

import (
	"log/slog"
	"os"

	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
)

// WorkspaceCleanup is a command that removes a render's scratch directory.
type WorkspaceCleanup struct {
	cor.BaseCommand // Embeds the BaseCommand for common functionality.
}

// NewWorkspaceCleanup is the constructor for the WorkspaceCleanup command.
//
// Inputs:
//   - name: A string name for this command instance.
//
// Outputs:
//   - *WorkspaceCleanup: A pointer to the newly instantiated command.
func NewWorkspaceCleanup(name string) *WorkspaceCleanup {
	return &WorkspaceCleanup{BaseCommand: *cor.NewBaseCommand(name)}
}

// IsExecutable overrides the default behavior to require a render manifest
// with a scratch directory. A manifest that never got one has nothing to
// clean.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
//
// Outputs:
//   - bool: True if a manifest with a scratch directory is present.
func (v *WorkspaceCleanup) IsExecutable(context cor.Context) bool {
	if context == nil || context.Get(v.GetInputParam()) == nil {
		return false
	}
	manifest, ok := context.Get(v.GetInputParam()).(*model.RenderManifest)
	return ok && manifest.WorkDir != ""
}

// Execute removes the scratch directory. Errors are logged, never recorded
// on the context.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (v *WorkspaceCleanup) Execute(context cor.Context) {
	manifest := context.Get(v.GetInputParam()).(*model.RenderManifest)

	if err := os.RemoveAll(manifest.WorkDir); err != nil {
		slog.Warn("failed to remove render scratch directory",
			"job", manifest.JobId,
			"dir", manifest.WorkDir,
			"error", err)
	} else {
		slog.Debug("removed render scratch directory", "job", manifest.JobId, "dir", manifest.WorkDir)
	}
	manifest.WorkDir = ""

	v.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(v.GetOutputParam(), manifest)
}

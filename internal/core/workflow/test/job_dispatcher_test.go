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

// Package workflow_test contains tests for the core application workflows.
// This file covers the dispatcher that routes queued jobs to their executing
// workflow, and the maintenance timer lifecycle.
package workflow_test

import (
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
	"github.com/dex-codes/ffmpeg-processor/internal/core/workflow"
	"github.com/stretchr/testify/assert"
)

// TestJobDispatcherRejectsUnknownJobType verifies that a job record carrying
// a type no workflow handles fails with a clear error instead of silently
// completing. Unknown types can appear when an older binary reads a job store
// written by a newer one.
func TestJobDispatcherRejectsUnknownJobType(t *testing.T) {
	dispatcher := workflow.NewJobDispatcher(nil, nil, nil, nil)

	job := model.NewJob(model.JobType("mystery"), nil)
	err := dispatcher.Run(ctx, job)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

// TestJobDispatcherRequiresObjectForSingleClipJob verifies that a single-clip
// job naming no object is rejected before any storage call happens.
func TestJobDispatcherRequiresObjectForSingleClipJob(t *testing.T) {
	dispatcher := workflow.NewJobDispatcher(nil, nil, nil, nil)

	job := model.NewJob(model.JobTypeSingleVideo, nil)
	err := dispatcher.Run(ctx, job)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "names no object")
}

// TestMaintenanceWorkflowTimerLifecycle checks that the background sweep can
// be started and stopped cleanly. The sweep itself never fires here because
// the ticker interval is far longer than the test.
func TestMaintenanceWorkflowTimerLifecycle(t *testing.T) {
	maintenance := workflow.NewMaintenanceWorkflow(&services.StorageService{}, nil)

	// The sweep needs nothing from a chain context.
	assert.True(t, maintenance.IsExecutable(nil))

	maintenance.StartTimer()
	maintenance.StopTimer()
}

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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file routes
// queued jobs to the workflow that executes their job type.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
)

// JobDispatcher is the bridge between the job service and the workflows. The
// job service knows how to queue, persist, and bound work; the dispatcher
// knows which workflow executes each job type. Keeping the mapping here means
// the job service stays free of any workflow imports.
type JobDispatcher struct {
	render      *SequenceRenderWorkflow
	standardize *ClipStandardizeWorkflow
	maintenance *MaintenanceWorkflow
	storage     *services.StorageService
}

// NewJobDispatcher is the constructor for the JobDispatcher.
//
// Inputs:
//   - render: The workflow executing sequence render jobs.
//   - standardize: The workflow executing single-clip and batch encode jobs.
//   - maintenance: The workflow executing on-demand cleanup jobs.
//   - storage: The storage service, used to enumerate the raw folder for
//     batch jobs.
//
// Outputs:
//   - *JobDispatcher: A pointer to the newly created dispatcher.
func NewJobDispatcher(
	render *SequenceRenderWorkflow,
	standardize *ClipStandardizeWorkflow,
	maintenance *MaintenanceWorkflow,
	storage *services.StorageService) *JobDispatcher {
	return &JobDispatcher{
		render:      render,
		standardize: standardize,
		maintenance: maintenance,
		storage:     storage,
	}
}

// Runner returns the function the job service executes for every submitted
// job. Setup hands this to NewJobService.
func (d *JobDispatcher) Runner() services.JobRunner {
	return d.Run
}

// Run executes one job according to its type.
//
// Inputs:
//   - ctx: The job context; cancelled when the job is cancelled.
//   - job: The job record, mutated in place with outputs as work completes.
//
// Outputs:
//   - error: nil when the job completed, otherwise the failure the job
//     record should carry.
func (d *JobDispatcher) Run(ctx context.Context, job *model.Job) error {
	switch job.Type {
	case model.JobTypeVideoSequence:
		return d.render.Run(ctx, job)
	case model.JobTypeSingleVideo:
		return d.runSingle(ctx, job)
	case model.JobTypeBatchProcess:
		return d.runBatch(ctx, job)
	case model.JobTypeCleanup:
		return d.runCleanup(ctx, job)
	default:
		return fmt.Errorf("no workflow handles job type %q", job.Type)
	}
}

// runSingle standardizes the one raw clip the job names.
func (d *JobDispatcher) runSingle(ctx context.Context, job *model.Job) error {
	if job.Object == "" {
		return fmt.Errorf("single clip job %s names no object", job.Id)
	}
	processed, err := d.standardize.RunObject(ctx, job.Object)
	if err != nil {
		return err
	}
	job.AddOutput("processed", processed.Name, "")
	return nil
}

// runBatch standardizes every video currently sitting in the raw folder.
// Clips are processed in sequence; a clip that fails is logged and skipped
// so one broken upload cannot block the rest of the batch, but any failure
// still fails the job at the end.
func (d *JobDispatcher) runBatch(ctx context.Context, job *model.Job) error {
	clips, err := d.storage.ListRawClips(ctx)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		slog.Info("batch job found no raw clips", "job_id", job.Id)
		return nil
	}

	failed := 0
	for _, clip := range clips {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		processed, err := d.standardize.RunObject(ctx, clip.Name)
		if err != nil {
			failed++
			slog.Error("batch standardize failed for clip",
				"job_id", job.Id,
				"object", clip.Name,
				"error", err)
			continue
		}
		job.AddOutput("processed", processed.Name, "")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d clips failed to standardize", failed, len(clips))
	}
	return nil
}

// runCleanup performs one maintenance pass on demand and records the counts
// on the job.
func (d *JobDispatcher) runCleanup(ctx context.Context, job *model.Job) error {
	removed, swept, err := d.maintenance.RunOnce(ctx)
	if err != nil {
		return err
	}
	job.AddOutput("report", "",
		fmt.Sprintf("removed %d scratch objects, swept %d job records", removed, swept))
	return nil
}

// chainError folds a chain's error map into a single error, ordered by
// command name so the message is stable.
func chainError(errs map[string]error) error {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)

	joined := make([]error, 0, len(names))
	for _, name := range names {
		joined = append(joined, fmt.Errorf("%s: %w", name, errs[name]))
	}
	return errors.Join(joined...)
}

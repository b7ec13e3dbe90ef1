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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the background maintenance process that ages out leftover scratch objects
// and expired job records.
package workflow

import (
	goctx "context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
)

// DefaultMaintenanceInterval is how often the background sweep runs.
const DefaultMaintenanceInterval = 1 * time.Hour

// DefaultTempRetention is the age past which a scratch object in the temp
// folder is considered abandoned. Renders finish in minutes; a day-old
// scratch object belongs to a run that died without cleaning up.
const DefaultTempRetention = 24 * time.Hour

// MaintenanceWorkflow defines a background job that periodically removes the
// debris long-running pipelines accumulate: scratch objects in the bucket's
// temp folder left by crashed renders, and terminal job records older than
// the retention window. It implements the cor.Command interface so a sweep
// can also run inside a chain or be requested as a cleanup job, although it
// is designed to run on a timer in the background.
type MaintenanceWorkflow struct {
	cor.BaseCommand
	storage       *services.StorageService
	jobs          *services.JobService
	interval      time.Duration
	tempRetention time.Duration
	closeTicker   chan struct{}
}

// NewMaintenanceWorkflow is the constructor for the maintenance workflow.
// It uses the default cadence; the job retention window itself lives on the
// job service.
//
// Inputs:
//   - storage: The storage service whose temp folder gets swept.
//   - jobs: The job service whose expired records get swept.
//
// Returns:
//   - A pointer to a newly created and configured MaintenanceWorkflow.
func NewMaintenanceWorkflow(storage *services.StorageService, jobs *services.JobService) *MaintenanceWorkflow {
	return &MaintenanceWorkflow{
		BaseCommand:   *cor.NewBaseCommand("maintenance"),
		storage:       storage,
		jobs:          jobs,
		interval:      DefaultMaintenanceInterval,
		tempRetention: DefaultTempRetention,
		closeTicker:   make(chan struct{}),
	}
}

// IsExecutable determines if the command can run. The sweep is self-contained
// and needs nothing from a chain context, so it is always executable.
func (m *MaintenanceWorkflow) IsExecutable(_ cor.Context) bool {
	return true
}

// RunOnce performs one maintenance pass: age out scratch objects in the temp
// folder, then sweep expired job records.
//
// Inputs:
//   - ctx: The Go context for the storage calls.
//
// Outputs:
//   - objectsRemoved: How many scratch objects were deleted.
//   - jobsSwept: How many job records were removed.
//   - error: The first failure; counts up to that point are still returned.
func (m *MaintenanceWorkflow) RunOnce(ctx goctx.Context) (objectsRemoved int, jobsSwept int, err error) {
	objectsRemoved, err = m.storage.CleanupTemp(ctx, m.tempRetention)
	if err != nil {
		return objectsRemoved, 0, fmt.Errorf("temp folder sweep: %w", err)
	}
	jobsSwept, err = m.jobs.SweepExpired()
	if err != nil {
		return objectsRemoved, jobsSwept, fmt.Errorf("job record sweep: %w", err)
	}
	return objectsRemoved, jobsSwept, nil
}

// Execute runs one maintenance pass inside a chain context, recording the
// outcome on the command's counters.
//
// Inputs:
//   - context: The chain of responsibility context for this execution.
func (m *MaintenanceWorkflow) Execute(context cor.Context) {
	removed, swept, err := m.RunOnce(context.GetContext())
	if err != nil {
		m.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(m.GetName(), err)
		return
	}
	m.GetSuccessCounter().Add(context.GetContext(), 1)
	if removed > 0 || swept > 0 {
		slog.Info("maintenance pass complete",
			"temp_objects_removed", removed,
			"job_records_swept", swept)
	}
}

// StartTimer kicks off the background process for the workflow. It creates a
// time.Ticker that fires at the configured interval. On each tick, it runs
// one maintenance pass within a new trace span for observability. The ticker
// goroutine runs until StopTimer is called.
func (m *MaintenanceWorkflow) StartTimer() {
	tracer := otel.Tracer("maintenance-batch")
	ticker := time.NewTicker(m.interval)

	go func(m *MaintenanceWorkflow) {
		for {
			select {
			// This case is triggered each time the ticker fires.
			case <-ticker.C:
				traceCtx, span := tracer.Start(goctx.Background(), "maintenance-sweep")
				chainCtx := cor.NewBaseContext()
				chainCtx.SetContext(traceCtx)

				m.Execute(chainCtx)

				if chainCtx.HasErrors() {
					span.SetStatus(codes.Error, "failed to execute maintenance sweep")
					for name, e := range chainCtx.GetErrors() {
						slog.Error("maintenance sweep error", "command", name, "error", e)
					}
				} else {
					span.SetStatus(codes.Ok, "maintenance sweep complete")
				}
				span.End()
			case <-m.closeTicker:
				ticker.Stop()
				return
			}
		}
	}(m)
}

// StopTimer shuts down the background sweep goroutine. Safe to call once
// during graceful shutdown.
func (m *MaintenanceWorkflow) StopTimer() {
	close(m.closeTicker)
}

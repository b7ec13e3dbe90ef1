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
// combining various commands into coherent pipelines. This file implements
// the end-to-end render workflow: plan a constrained sequence, fetch its
// clips, normalize them, stitch them into one video, and upload the result.
package workflow

import (
	goctx "context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/commands"
	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
)

// SequenceRenderWorkflow orchestrates the full render of a generated clip
// sequence. It runs as the job service's executor for sequence jobs rather
// than behind a Pub/Sub listener: renders are long, deliberate operations
// submitted through the API and queued behind a concurrency gate.
//
// The chain the workflow executes:
//  1. Plan a constrained sequence from the inventory.
//  2. Export the plan manifest to the render bucket.
//  3. Fetch the planned clips through the paced downloader.
//  4. Normalize every fetched clip to the shared encoding profile.
//  5. Concatenate the normalized clips into a single video.
//  6. Upload the stitched video to the render bucket.
//  7. Remove the scratch directory.
type SequenceRenderWorkflow struct {
	cor.BaseCommand
	sequences        *services.SequenceService
	downloader       *cloud.QuotaAwareDownloader
	storageClient    *storage.Client
	ffmpegCommand    string
	timeoutInSeconds int
	profile          *model.EncodeProfile
	clipBucket       string
	renderBucket     string
	rawFolder        string
	processedFolder  string
	numberOfWorkers  int
	chain            cor.Chain // The underlying chain of commands to be executed.
}

// Execute runs the render workflow by invoking the underlying command chain.
// Callers that need job bookkeeping should use Run instead; Execute is the
// raw chain entry point.
//
// Inputs:
//   - context: The chain of responsibility context, carrying the job on its
//     input slot.
func (m *SequenceRenderWorkflow) Execute(context cor.Context) {
	m.chain.Execute(context)
}

// initializeChain constructs the sequence of commands that define the render
// workflow. This method is called by the constructor.
func (m *SequenceRenderWorkflow) initializeChain() {
	out := cor.NewBaseChain(m.GetName())

	// Step 1: Generate the constrained sequence and assemble the render
	// manifest naming every clip to fetch plus the output objects.
	out.AddCommand(commands.NewSequencePlanner(
		"sequence-plan", m.sequences, m.clipBucket, m.rawFolder, m.processedFolder, m.profile.Format))

	// Step 2: Write the plan as a CSV manifest next to where the render will
	// land. The manifest survives even if a later step fails, so a broken
	// render still documents what it was going to stitch.
	out.AddCommand(commands.NewManifestExport("manifest-export", m.storageClient, m.renderBucket))

	// Step 3: Download every planned clip into the job's scratch directory
	// through the quota-aware downloader.
	out.AddCommand(commands.NewClipFetcher("clip-fetch", m.downloader, m.clipBucket, m.numberOfWorkers))

	// Step 4: Re-encode the fetched clips to the shared profile so the concat
	// demuxer sees identical stream parameters on every input.
	out.AddCommand(commands.NewSequenceStandardize(
		"sequence-standardize", m.ffmpegCommand, m.timeoutInSeconds, m.profile, m.numberOfWorkers))

	// Step 5: Stitch the normalized clips into one video.
	out.AddCommand(commands.NewFFmpegConcat("sequence-concat", m.ffmpegCommand, m.timeoutInSeconds, m.profile))

	// Step 6: Upload the stitched video to the render bucket.
	out.AddCommand(commands.NewRenderUpload("render-upload", m.storageClient, m.renderBucket))

	// Step 7: Remove the scratch directory holding the fetched and encoded
	// intermediates.
	out.AddCommand(commands.NewWorkspaceCleanup("workspace-cleanup"))

	// Assign the fully constructed chain to the workflow instance.
	m.chain = out
}

// Run executes the render chain for one sequence job and settles the job
// record from whatever the chain left behind. The job dispatcher calls this
// as the executor for sequence jobs.
//
// Logic Flow:
//  1. Build a fresh chain context carrying the job, under a span for the run.
//  2. Execute the chain.
//  3. Read the manifest back off the context. The planner publishes it before
//     any clip work starts, so even a failed run reports what it planned and
//     has its scratch directory removed.
//  4. On success, record the manifest and render objects on the job.
//
// Inputs:
//   - ctx: The job context; cancelled when the job is cancelled or the
//     service shuts down.
//   - job: The sequence job to execute.
//
// Outputs:
//   - error: nil on success, or every chain error joined in command order.
func (m *SequenceRenderWorkflow) Run(ctx goctx.Context, job *model.Job) error {
	tracer := otel.Tracer("sequence-render")
	traceCtx, span := tracer.Start(ctx, "render-job")
	span.SetAttributes(attribute.String("job_id", job.Id))
	defer span.End()

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(traceCtx)
	// Close removes any loose temp files commands registered outside the
	// scratch directory.
	defer chainCtx.Close()
	chainCtx.Add(cor.CtxIn, job)

	m.chain.Execute(chainCtx)

	// Backstop for the scratch directory: the cleanup command clears WorkDir
	// when it runs, so anything still set here belongs to a failed run.
	manifest, _ := chainCtx.Get(commands.GetRenderManifestParameterName()).(*model.RenderManifest)
	if manifest != nil && manifest.WorkDir != "" {
		if err := os.RemoveAll(manifest.WorkDir); err != nil {
			slog.Warn("failed to remove render scratch directory",
				"job_id", job.Id,
				"dir", manifest.WorkDir,
				"error", err)
		}
	}

	// Carry the generation stats onto the job record regardless of how the
	// render itself went.
	if outcome, ok := chainCtx.Get(commands.GetPlanOutcomeParameterName()).(*services.PlanOutcome); ok {
		job.Attempts = outcome.Plan.Attempts
		job.BestEffort = outcome.Plan.BestEffort
	}

	if chainCtx.HasErrors() {
		span.SetStatus(codes.Error, "render chain failed")
		return chainError(chainCtx.GetErrors())
	}

	if manifest != nil {
		job.AddOutput("manifest", manifest.ManifestObject, "")
		job.AddOutput("render", manifest.OutputObject, fmt.Sprintf("%d clips", len(manifest.Clips)))
	}
	span.SetStatus(codes.Ok, "render complete")
	return nil
}

// NewSequenceRenderWorkflow is the constructor for the SequenceRenderWorkflow.
// It initializes the workflow with all necessary clients, services, and
// configuration, and builds the command chain.
//
// Inputs:
//   - config: The application's overall configuration.
//   - serviceClients: A struct containing initialized clients for GCP services.
//   - sequences: The sequence service that runs the generation.
//   - downloader: The paced downloader shared by all render jobs, so their
//     combined fetch rate stays inside the configured quota.
//   - ffmpegCommand: The path to the FFmpeg executable. If empty, the
//     configured binary path is used, falling back to "ffmpeg" on the PATH.
//
// Returns:
//   - A pointer to a newly created and fully initialized SequenceRenderWorkflow.
func NewSequenceRenderWorkflow(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	sequences *services.SequenceService,
	downloader *cloud.QuotaAwareDownloader,
	ffmpegCommand string) *SequenceRenderWorkflow {

	if len(strings.Trim(ffmpegCommand, " ")) == 0 {
		ffmpegCommand = config.Encoder.BinaryPath
	}
	if len(strings.Trim(ffmpegCommand, " ")) == 0 {
		ffmpegCommand = commands.DefaultEncoderBinary
	}

	// Renders land in the render bucket when one is configured; otherwise
	// they share the clip bucket.
	renderBucket := config.Storage.RenderBucket
	if len(strings.Trim(renderBucket, " ")) == 0 {
		renderBucket = config.Storage.ClipBucket
	}

	out := &SequenceRenderWorkflow{
		BaseCommand:      *cor.NewBaseCommand("sequence-render-workflow"),
		sequences:        sequences,
		downloader:       downloader,
		storageClient:    serviceClients.StorageClient,
		ffmpegCommand:    ffmpegCommand,
		timeoutInSeconds: config.Encoder.TimeoutInSeconds,
		profile:          config.Encoder.Profile(),
		clipBucket:       config.Storage.ClipBucket,
		renderBucket:     renderBucket,
		rawFolder:        config.Storage.RawFolder,
		processedFolder:  config.Storage.ProcessedFolder,
		numberOfWorkers:  config.Application.ThreadPoolSize,
	}
	// Build the command chain for the new workflow instance.
	out.initializeChain()
	return out
}

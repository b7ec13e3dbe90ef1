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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command that re-encodes every downloaded clip in a render manifest to the
// shared output profile, in parallel.
//
// Logic Flow:
// This is the render-chain counterpart of the single-clip FFmpegStandardize
// command. The concat demuxer demands identical codecs, dimensions, frame
// rates, and pixel formats across inputs, and clips arrive in whatever
// format their contributors uploaded, so every one passes through the
// standardize template before stitching.
//
// Encodes are CPU-bound, so the worker pool here is sized by configuration
// (one FFmpeg process per worker) rather than by clip count. Each task runs
// under its own OpenTelemetry span. A clip that was already standardized,
// which happens when a clip arrives pre-processed, is skipped untouched.
//
// Any single failed encode fails the command: a missing slot would change
// the sequence the constraint engine produced.
package commands

import (
	goctx "context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
)

// SequenceStandardize is a command that normalizes all of a manifest's
// downloaded clips to the configured encode profile using a pool of FFmpeg
// workers.
type SequenceStandardize struct {
	cor.BaseCommand
	binaryPath      string               // The path to the FFmpeg executable, or empty for PATH lookup.
	timeout         time.Duration        // Upper bound per encode, zero means no limit.
	profile         *model.EncodeProfile // The shared output profile every clip is normalized to.
	numberOfWorkers int                  // Concurrent FFmpeg processes to run.
}

// NewSequenceStandardize is the constructor for the SequenceStandardize command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - binaryPath: The file system path to the FFmpeg executable.
//   - timeoutInSeconds: How long one encode may run before it is killed.
//   - profile: The target encode profile.
//   - numberOfWorkers: The size of the worker pool; each worker is one FFmpeg process.
//
// Outputs:
//   - *SequenceStandardize: A pointer to the newly instantiated command.
func NewSequenceStandardize(
	name string,
	binaryPath string,
	timeoutInSeconds int,
	profile *model.EncodeProfile,
	numberOfWorkers int) *SequenceStandardize {
	return &SequenceStandardize{
		BaseCommand:     *cor.NewBaseCommand(name),
		binaryPath:      binaryPath,
		timeout:         time.Duration(timeoutInSeconds) * time.Second,
		profile:         profile,
		numberOfWorkers: numberOfWorkers,
	}
}

// Execute re-encodes the manifest's clips and swaps each clip's local path
// for its standardized copy.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *SequenceStandardize) Execute(context cor.Context) {
	manifest := context.Get(c.GetInputParam()).(*model.RenderManifest)

	// Collect the clips that still need normalizing, and catch any clip the
	// fetch step failed to land. That should not happen (fetch errors stop
	// the chain), but encoding a missing file would produce a worse error.
	work := make([]*model.ClipAsset, 0, len(manifest.Clips))
	for _, clip := range manifest.Clips {
		if clip.Standardized {
			continue
		}
		if clip.LocalPath == "" {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), fmt.Errorf("clip %d (%s) has no local file to encode", clip.Position, clip.Name))
			return
		}
		work = append(work, clip)
	}
	if len(work) == 0 {
		c.GetSuccessCounter().Add(context.GetContext(), 1)
		context.Add(c.GetOutputParam(), manifest)
		return
	}

	p := applyProfileDefaults(c.profile)

	var wg sync.WaitGroup
	jobs := make(chan *encodeJob, len(work))
	results := make(chan *encodeResult, len(work))

	// Every worker is a full FFmpeg process, so the pool is bounded by the
	// configured size, not the clip count.
	workers := c.numberOfWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(work) {
		workers = len(work)
	}
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go c.encodeWorker(jobs, results, &wg)
	}

	for _, clip := range work {
		output := filepath.Join(manifest.WorkDir, fmt.Sprintf("std_%03d.%s", clip.Position, p.Format))
		jobCtx, span := c.Tracer.Start(context.GetContext(), fmt.Sprintf("%s_clip_%d", c.GetName(), clip.Position))
		span.SetAttributes(
			attribute.Int("position", clip.Position),
			attribute.String("input", clip.LocalPath),
		)
		jobs <- &encodeJob{clip: clip, output: output, ctx: jobCtx, span: span}
	}

	close(jobs)
	wg.Wait()
	close(results)

	encoded := 0
	for r := range results {
		if r.err != nil {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), r.err)
		} else {
			encoded++
		}
	}

	if !context.HasErrors() {
		c.GetSuccessCounter().Add(context.GetContext(), 1)
		slog.Info("standardized sequence clips", "job", manifest.JobId, "clips", encoded, "workers", workers)
	}

	context.Add(c.GetOutputParam(), manifest)
}

// encodeJob encapsulates one clip normalization: the clip to update, the
// output path, and the span scoping the work.
type encodeJob struct {
	clip   *model.ClipAsset
	output string
	ctx    goctx.Context
	span   trace.Span
}

// Close ends the OpenTelemetry span associated with this job.
func (j *encodeJob) Close(status codes.Code, description string) {
	j.span.SetStatus(status, description)
	j.span.End()
}

// encodeResult carries a worker's outcome back to the aggregation loop.
type encodeResult struct {
	clip *model.ClipAsset
	err  error
}

// encodeWorker runs FFmpeg for each job until the jobs channel closes. On
// success the clip's local path is swapped for the standardized copy; the
// original download stays in the scratch directory for the cleanup step.
func (c *SequenceStandardize) encodeWorker(jobs <-chan *encodeJob, results chan<- *encodeResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for j := range jobs {
		start := time.Now()
		err := runEncoder(j.ctx, c.binaryPath, c.timeout, StandardizeArgs(c.profile, j.clip.LocalPath, j.output))
		if err != nil {
			j.Close(codes.Error, "standardize failed")
			results <- &encodeResult{clip: j.clip, err: fmt.Errorf("clip %d (%s): %w", j.clip.Position, j.clip.Name, err)}
			continue
		}

		j.clip.LocalPath = j.output
		j.clip.Standardized = true
		slog.Debug("standardized clip",
			"position", j.clip.Position,
			"output", j.output,
			"elapsed", time.Since(start).Round(time.Millisecond))
		j.Close(codes.Ok, "clip standardized")
		results <- &encodeResult{clip: j.clip}
	}
}

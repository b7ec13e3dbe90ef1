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
// command that downloads every clip named in a render manifest into the
// job's scratch directory.
//
// Logic Flow:
// Sequences run to dozens of clips, and fetching them one at a time would
// dominate the render wall clock. This command uses a worker pool:
//
//  1. A `jobs` channel is filled with one download task per pending clip,
//     and a fixed set of worker goroutines drains it.
//  2. Every download goes through the rate-limited downloader, so the
//     parallelism here never exceeds the storage request budget; the
//     workers simply keep the pipe full while the limiter paces requests.
//  3. Each fetched file is verified: it must be non-empty and its content
//     must actually be video. The sniffed MIME type and byte size are
//     recorded on the clip for the manifest and later logging.
//  4. Results are aggregated after all workers finish. Any failed clip
//     fails the command, because a sequence with holes cannot be stitched.
//
// Each task carries its own OpenTelemetry span, so a trace of a render
// shows the download fan-out with per-clip timing.
package commands

import (
	goctx "context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/h2non/filetype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
)

// ClipFetcher is a command that downloads the manifest's clips in parallel
// through the rate-limited downloader.
type ClipFetcher struct {
	cor.BaseCommand
	downloader      *cloud.QuotaAwareDownloader // Paced, retrying download front end.
	bucket          string                      // The bucket clips are fetched from.
	numberOfWorkers int                         // The number of concurrent workers to spawn.
}

// NewClipFetcher is the constructor for the ClipFetcher command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - downloader: The rate-limited downloader every fetch goes through.
//   - bucket: The bucket holding the clip objects.
//   - numberOfWorkers: The size of the worker pool for concurrent downloads.
//
// Outputs:
//   - *ClipFetcher: A pointer to the newly instantiated command.
func NewClipFetcher(name string, downloader *cloud.QuotaAwareDownloader, bucket string, numberOfWorkers int) *ClipFetcher {
	return &ClipFetcher{
		BaseCommand:     *cor.NewBaseCommand(name),
		downloader:      downloader,
		bucket:          bucket,
		numberOfWorkers: numberOfWorkers,
	}
}

// Execute downloads all pending clips and records their local paths on the
// manifest.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *ClipFetcher) Execute(context cor.Context) {
	manifest := context.Get(c.GetInputParam()).(*model.RenderManifest)
	if manifest.WorkDir == "" {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("manifest for job %s has no scratch directory", manifest.JobId))
		return
	}

	pending := manifest.PendingClips()
	if len(pending) == 0 {
		c.GetSuccessCounter().Add(context.GetContext(), 1)
		context.Add(c.GetOutputParam(), manifest)
		return
	}

	// A WaitGroup tracks the worker goroutines; the channels are buffered to
	// the full task count so distribution never blocks.
	var wg sync.WaitGroup
	jobs := make(chan *fetchJob, len(pending))
	results := make(chan *fetchResult, len(pending))

	workers := c.numberOfWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(pending) {
		workers = len(pending)
	}
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go c.fetchWorker(jobs, results, &wg)
	}

	// One task per clip, each under its own span.
	for _, clip := range pending {
		ext := filepath.Ext(clip.SourceObject)
		if ext == "" {
			ext = ".mp4"
		}
		dest := filepath.Join(manifest.WorkDir, fmt.Sprintf("clip_%03d%s", clip.Position, ext))
		jobCtx, span := c.Tracer.Start(context.GetContext(), fmt.Sprintf("%s_clip_%d", c.GetName(), clip.Position))
		span.SetAttributes(
			attribute.Int("position", clip.Position),
			attribute.String("object", clip.SourceObject),
		)
		jobs <- &fetchJob{clip: clip, dest: dest, ctx: jobCtx, span: span}
	}

	// No more work is coming; let the workers drain and exit.
	close(jobs)
	wg.Wait()
	close(results)

	fetched := 0
	for r := range results {
		if r.err != nil {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), r.err)
		} else {
			fetched++
		}
	}

	if !context.HasErrors() {
		c.GetSuccessCounter().Add(context.GetContext(), 1)
		slog.Info("fetched sequence clips", "job", manifest.JobId, "clips", fetched, "workers", workers)
	}

	context.Add(c.GetOutputParam(), manifest)
}

// fetchJob encapsulates one clip download: the clip to fill in, the local
// destination, and the span scoping the work.
type fetchJob struct {
	clip *model.ClipAsset
	dest string
	ctx  goctx.Context
	span trace.Span
}

// Close ends the OpenTelemetry span associated with this job.
func (j *fetchJob) Close(status codes.Code, description string) {
	j.span.SetStatus(status, description)
	j.span.End()
}

// fetchResult carries a worker's outcome back to the aggregation loop.
type fetchResult struct {
	clip *model.ClipAsset
	err  error
}

// fetchWorker is the function each concurrent goroutine runs. It receives
// jobs from the `jobs` channel and sends outcomes to the `results` channel
// until the jobs channel closes.
func (c *ClipFetcher) fetchWorker(jobs <-chan *fetchJob, results chan<- *fetchResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for j := range jobs {
		err := c.fetchOne(j)
		if err != nil {
			j.Close(codes.Error, "clip fetch failed")
		} else {
			j.Close(codes.Ok, "clip fetched")
		}
		results <- &fetchResult{clip: j.clip, err: err}
	}
}

// fetchOne downloads and verifies a single clip, then records the local copy
// on the clip asset. Each clip is owned by exactly one job, so the mutation
// needs no locking.
func (c *ClipFetcher) fetchOne(j *fetchJob) error {
	if err := c.downloader.Download(j.ctx, c.bucket, j.clip.SourceObject, j.dest); err != nil {
		return fmt.Errorf("clip %d (%s): %w", j.clip.Position, j.clip.Name, err)
	}

	info, err := os.Stat(j.dest)
	if err != nil {
		return fmt.Errorf("clip %d (%s): downloaded file missing: %w", j.clip.Position, j.clip.Name, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("clip %d (%s): downloaded file is empty", j.clip.Position, j.clip.Name)
	}

	kind, err := filetype.MatchFile(j.dest)
	if err != nil || kind == filetype.Unknown || kind.MIME.Type != "video" {
		detected := "unknown"
		if err == nil && kind != filetype.Unknown {
			detected = kind.MIME.Value
		}
		return fmt.Errorf("clip %d (%s): object gs://%s/%s is not video content (detected %q)",
			j.clip.Position, j.clip.Name, c.bucket, j.clip.SourceObject, detected)
	}

	j.clip.LocalPath = j.dest
	j.clip.SizeBytes = info.Size()
	j.clip.MimeType = kind.MIME.Value
	return nil
}

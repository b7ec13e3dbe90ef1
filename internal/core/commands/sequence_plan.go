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
// head of the sequence render workflow: the command that runs the constraint
// engine and turns its plan into a concrete download-and-encode manifest.
//
// Logic Flow:
//  1. Receive the render job from the context. Its parameters carry the
//     category and color filters, the target length, and the spacing rule.
//  2. Run one full generation through the sequence service: load the
//     filtered pool from the inventory, analyze feasibility, build, and
//     resolve the placements into named clips.
//  3. Refuse plans containing synthesized items. A synthesized item is a
//     placement with no inventory row behind it; there is nothing to
//     download, so rendering it is impossible by construction.
//  4. Map every plan item to the bucket object holding its footage and
//     decide the output names: the stitched render and its CSV manifest,
//     both in the processed folder, named from the job's output prefix when
//     one was given and from the job id otherwise.
//  5. Publish the manifest and the raw plan outcome under well-known keys
//     for the downstream commands, and the manifest as the command output.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
)

// GetPlanOutcomeParameterName returns the canonical key under which the raw
// generation outcome (plan, result, and backing pool) is stored in the
// context. The manifest export command needs the result and pool to write
// the CSV without re-resolving anything.
func GetPlanOutcomeParameterName() string {
	return "__PLAN_OUTCOME__"
}

// GetRenderManifestParameterName returns the canonical key under which the
// render manifest is stored in the context. Every command in the render
// chain reads and mutates the same manifest instance, and the workflow
// runner reads it afterwards to record job outputs and clean up scratch
// space even when the chain fails midway.
func GetRenderManifestParameterName() string {
	return "__RENDER_MANIFEST__"
}

// SequencePlanner is the command that generates a constrained sequence for a
// render job and assembles the manifest the rest of the chain works from.
type SequencePlanner struct {
	cor.BaseCommand
	sequences       *services.SequenceService // The generation engine front end.
	clipBucket      string                    // Bucket the raw clip footage lives in.
	rawFolder       string                    // Folder raw clips are fetched from.
	processedFolder string                    // Folder the render and manifest land in.
	format          string                    // Output container extension, e.g. "mp4".
}

// NewSequencePlanner is the constructor for the SequencePlanner command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - sequences: The sequence service used to run the generation.
//   - clipBucket: The bucket holding raw clip footage.
//   - rawFolder: The folder within the bucket raw clips are read from.
//   - processedFolder: The folder renders and manifests are written to.
//   - format: The output container format; empty defaults to "mp4".
//
// Outputs:
//   - *SequencePlanner: A pointer to the newly instantiated command.
func NewSequencePlanner(
	name string,
	sequences *services.SequenceService,
	clipBucket string,
	rawFolder string,
	processedFolder string,
	format string) *SequencePlanner {
	if format == "" {
		format = "mp4"
	}
	return &SequencePlanner{
		BaseCommand:     *cor.NewBaseCommand(name),
		sequences:       sequences,
		clipBucket:      clipBucket,
		rawFolder:       rawFolder,
		processedFolder: processedFolder,
		format:          format,
	}
}

// RawClipObject resolves a plan item to the bucket-relative object name the
// render pipeline downloads. Inventory links in the `gs://<bucket>/<object>`
// form pointing into the clip bucket are used directly. Any other link, and
// items with no link at all, fall back to the raw folder plus the clip's
// name, with ".mp4" appended when the name carries no extension.
//
// Inputs:
//   - item: The resolved plan item.
//   - bucket: The clip bucket the pipeline reads from.
//   - rawFolder: The raw clip folder used for the fallback naming.
//
// Outputs:
//   - string: The bucket-relative object name.
func RawClipObject(item *model.PlanItem, bucket string, rawFolder string) string {
	const scheme = "gs://"
	if strings.HasPrefix(item.Link, scheme) {
		rest := strings.TrimPrefix(item.Link, scheme)
		linkBucket, object, found := strings.Cut(rest, "/")
		if found && linkBucket == bucket && object != "" {
			return object
		}
	}
	name := item.Name
	if filepath.Ext(name) == "" {
		name += ".mp4"
	}
	return cloud.JoinObjectPath(rawFolder, name)
}

// Execute runs the generation and builds the render manifest.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *SequencePlanner) Execute(context cor.Context) {
	job := context.Get(c.GetInputParam()).(*model.Job)
	if job.Params == nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("job %s has no sequence parameters", job.Id))
		return
	}

	outcome, err := c.sequences.Plan(context.GetContext(), job.Params)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("sequence generation for job %s failed: %w", job.Id, err))
		return
	}

	// A synthesized item means the engine placed a category/color pairing
	// the inventory has no row for. Plans like that are fine as API output,
	// but a render has to fetch real footage for every slot.
	for _, item := range outcome.Plan.Items {
		if item.Synthesized {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), fmt.Errorf("sequence item %d (%s) has no inventory backing", item.Position, item.Name))
			return
		}
	}

	// Scratch space for downloads, intermediate encodes, and the stitched
	// output. The cleanup command removes the whole directory, and the
	// workflow runner removes it again as a backstop on failure.
	workDir, err := os.MkdirTemp("", "render-"+job.Id+"-*")
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("could not create render scratch directory: %w", err))
		return
	}

	// An explicit output prefix pins the output names exactly; otherwise
	// the processed-clip convention applies with the job id as the base
	// name. Both artifacts share one timestamp so they sort together.
	var outputObject, manifestObject string
	if prefix := strings.TrimSpace(job.Params.OutputPrefix); prefix != "" {
		outputObject = cloud.JoinObjectPath(c.processedFolder, prefix+"."+c.format)
		manifestObject = cloud.JoinObjectPath(c.processedFolder, prefix+"_manifest.csv")
	} else {
		now := time.Now()
		outputObject = ProcessedObjectName(c.processedFolder, job.Id+"."+c.format, now)
		manifestObject = ProcessedObjectName(c.processedFolder, job.Id+"_manifest.csv", now)
	}

	manifest := &model.RenderManifest{
		JobId:          job.Id,
		OutputObject:   outputObject,
		ManifestObject: manifestObject,
		WorkDir:        workDir,
	}
	for _, item := range outcome.Plan.Items {
		manifest.Clips = append(manifest.Clips, &model.ClipAsset{
			Position:     item.Position,
			Name:         item.Name,
			SourceObject: RawClipObject(item, c.clipBucket, c.rawFolder),
		})
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("planned render",
		"job", job.Id,
		"clips", len(manifest.Clips),
		"attempts", outcome.Plan.Attempts,
		"output", manifest.OutputObject)

	context.Add(GetPlanOutcomeParameterName(), outcome)
	context.Add(GetRenderManifestParameterName(), manifest)
	context.Add(c.GetOutputParam(), manifest)
}

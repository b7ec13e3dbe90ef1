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
// command that stitches a manifest's standardized clips into the final
// render.
//
// Logic Flow:
//  1. Confirm every clip in the manifest has been standardized. The concat
//     demuxer silently produces broken output when inputs differ, so a
//     non-standardized clip here is a programming error worth failing on.
//  2. Write the concat list file: one `file '<path>'` line per clip, in
//     sequence order. The manifest's clip slice is built in position order
//     by the planner and never reordered, so iterating it is the order.
//  3. Run FFmpeg's concat demuxer over the list, re-encoding once into the
//     output profile, and verify a non-empty file came out.
//  4. Record the local render path on the manifest for the upload command.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
)

// FFmpegConcat is a command that joins the standardized clips of a render
// manifest into a single video file.
type FFmpegConcat struct {
	cor.BaseCommand
	binaryPath string               // The path to the FFmpeg executable, or empty for PATH lookup.
	timeout    time.Duration        // Per-clip time budget; the concat run gets this times the clip count.
	profile    *model.EncodeProfile // The shared output profile.
}

// NewFFmpegConcat is the constructor for the FFmpegConcat command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - binaryPath: The file system path to the FFmpeg executable.
//   - timeoutInSeconds: The per-clip time budget used to bound the stitch.
//   - profile: The target encode profile.
//
// Outputs:
//   - *FFmpegConcat: A pointer to the newly instantiated command.
func NewFFmpegConcat(name string, binaryPath string, timeoutInSeconds int, profile *model.EncodeProfile) *FFmpegConcat {
	return &FFmpegConcat{
		BaseCommand: *cor.NewBaseCommand(name),
		binaryPath:  binaryPath,
		timeout:     time.Duration(timeoutInSeconds) * time.Second,
		profile:     profile,
	}
}

// WriteConcatList writes the concat demuxer list naming each input file in
// order. Paths are single-quoted, and embedded single quotes use the
// close-escape-reopen form the demuxer's quoting rules require.
//
// Inputs:
//   - w: The destination writer.
//   - paths: The input file paths, already in playback order.
//
// Outputs:
//   - error: An error if a write fails.
func WriteConcatList(w io.Writer, paths []string) error {
	for _, path := range paths {
		quoted := strings.ReplaceAll(path, "'", `'\''`)
		if _, err := fmt.Fprintf(w, "file '%s'\n", quoted); err != nil {
			return err
		}
	}
	return nil
}

// Execute builds the list file, runs the stitch, and records the result.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *FFmpegConcat) Execute(context cor.Context) {
	manifest := context.Get(c.GetInputParam()).(*model.RenderManifest)

	paths := make([]string, 0, len(manifest.Clips))
	for _, clip := range manifest.Clips {
		if !clip.Standardized || clip.LocalPath == "" {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), fmt.Errorf("clip %d (%s) was not standardized before concat", clip.Position, clip.Name))
			return
		}
		paths = append(paths, clip.LocalPath)
	}
	if len(paths) == 0 {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("manifest for job %s has no clips to stitch", manifest.JobId))
		return
	}

	listPath := filepath.Join(manifest.WorkDir, "concat.txt")
	listFile, err := os.Create(listPath)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("could not create concat list: %w", err))
		return
	}
	if err := WriteConcatList(listFile, paths); err != nil {
		_ = listFile.Close()
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("could not write concat list: %w", err))
		return
	}
	if err := listFile.Close(); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}

	p := applyProfileDefaults(c.profile)
	output := filepath.Join(manifest.WorkDir, manifest.JobId+"."+p.Format)

	// The stitch re-encodes the whole sequence in one run, so the per-clip
	// budget scales by the number of inputs.
	var timeout time.Duration
	if c.timeout > 0 {
		timeout = c.timeout * time.Duration(len(paths))
	}

	start := time.Now()
	if err := runEncoder(context.GetContext(), c.binaryPath, timeout, ConcatArgs(c.profile, listPath, output)); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("concat produced no output at %s", output))
		return
	}

	manifest.LocalRender = output
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("stitched sequence",
		"job", manifest.JobId,
		"clips", len(paths),
		"output", output,
		"bytes", info.Size(),
		"elapsed", time.Since(start).Round(time.Millisecond))

	context.Add(c.GetOutputParam(), manifest)
}

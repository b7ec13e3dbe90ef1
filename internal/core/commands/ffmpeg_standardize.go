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
// command that re-encodes a single local clip to the shared output profile.
//
// Logic Flow:
// This command sits between the download and upload steps of the clip
// standardization workflow. Raw uploads arrive in whatever format the
// contributor had; this step normalizes each one so that any set of
// processed clips can later be concatenated without negotiation.
//
//  1. Get the path of the local input file from the COR context.
//  2. Create an empty temporary output file carrying the profile's container
//     extension. FFmpeg infers the output muxer from that extension, and the
//     `-y` flag lets it overwrite the empty file.
//  3. Run FFmpeg with the standardize argument template.
//  4. On success, publish the output path as the command output so the next
//     command (typically the processed upload) picks it up.
//  5. Both the input and output files are tracked as temp files, so the
//     workflow removes them once the chain closes.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
)

// TempFilePrefix names the scratch files the encoder writes.
const TempFilePrefix = "ffmpeg-output-"

// FFmpegStandardize is a command implementation that wraps one FFmpeg
// invocation, converting a local video file to the configured output profile.
type FFmpegStandardize struct {
	cor.BaseCommand                      // Embeds the BaseCommand for common functionality like naming and metrics.
	binaryPath      string               // The path to the FFmpeg executable, or empty for PATH lookup.
	timeout         time.Duration        // Upper bound for one encode, zero means no limit.
	profile         *model.EncodeProfile // The shared output profile every clip is normalized to.
}

// NewFFmpegStandardize is the constructor for creating a new FFmpegStandardize command.
//
// Inputs:
//   - name: A string name for this command instance, used for logging and telemetry.
//   - binaryPath: The file system path to the FFmpeg executable.
//   - timeoutInSeconds: How long one encode may run before it is killed.
//   - profile: The target encode profile.
//
// Outputs:
//   - *FFmpegStandardize: A pointer to the newly instantiated command.
func NewFFmpegStandardize(name string, binaryPath string, timeoutInSeconds int, profile *model.EncodeProfile) *FFmpegStandardize {
	return &FFmpegStandardize{
		BaseCommand: *cor.NewBaseCommand(name),
		binaryPath:  binaryPath,
		timeout:     time.Duration(timeoutInSeconds) * time.Second,
		profile:     profile,
	}
}

// Execute contains the core logic for the command: build the output file,
// run the encoder, and hand the result down the chain.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *FFmpegStandardize) Execute(context cor.Context) {
	inputPath := context.Get(c.GetInputParam()).(string)

	p := applyProfileDefaults(c.profile)
	outputFile, err := os.CreateTemp("", TempFilePrefix+"*."+p.Format)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("could not create encoder output file: %w", err))
		return
	}
	// FFmpeg writes the file itself, the handle is only needed for the name.
	_ = outputFile.Close()
	context.AddTempFile(outputFile.Name())

	start := time.Now()
	if err := runEncoder(context.GetContext(), c.binaryPath, c.timeout, StandardizeArgs(c.profile, inputPath, outputFile.Name())); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	fields := []any{
		"input", inputPath,
		"output", outputFile.Name(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	}
	// The original object reference rides along when a trigger started the
	// chain; include it so encode logs can be traced back to the upload.
	if obj, ok := context.Get(cloud.GetGCSObjectName()).(*cloud.GCSObject); ok && obj != nil {
		fields = append(fields, "object", obj.URI())
	}
	slog.Info("standardized clip", fields...)
	context.Add(c.GetOutputParam(), outputFile.Name())
}

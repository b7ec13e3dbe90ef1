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
// command that delivers a finished render to its bucket destination.
//
// The destination object name was fixed by the planner before any work
// started, so a job's output location is known (and queryable) from the
// moment the job begins running.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/h2non/filetype"

	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
)

// RenderUpload is a command that streams the stitched local render into the
// manifest's output object.
type RenderUpload struct {
	cor.BaseCommand
	client *storage.Client // The GCS client for interacting with the storage service.
	bucket string          // The bucket finished renders land in.
}

// NewRenderUpload is the constructor for the RenderUpload command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - client: An initialized *storage.Client for communicating with GCS.
//   - bucket: The destination bucket for render objects.
//
// Outputs:
//   - *RenderUpload: A pointer to the newly instantiated command.
func NewRenderUpload(name string, client *storage.Client, bucket string) *RenderUpload {
	return &RenderUpload{BaseCommand: *cor.NewBaseCommand(name), client: client, bucket: bucket}
}

// Execute uploads the stitched render.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *RenderUpload) Execute(context cor.Context) {
	manifest := context.Get(c.GetInputParam()).(*model.RenderManifest)
	if manifest.LocalRender == "" {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("manifest for job %s has no stitched render to upload", manifest.JobId))
		return
	}

	dat, err := os.Open(manifest.LocalRender)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to open render %s: %w", manifest.LocalRender, err))
		return
	}
	defer func() { _ = dat.Close() }()

	contentType := "video/mp4"
	if kind, err := filetype.MatchFile(manifest.LocalRender); err == nil && kind != filetype.Unknown {
		contentType = kind.MIME.Value
	}

	writer := c.client.Bucket(c.bucket).Object(manifest.OutputObject).NewWriter(context.GetContext())
	writer.ContentType = contentType
	writer.Metadata = map[string]string{
		"job-id":     manifest.JobId,
		"clip-count": strconv.Itoa(len(manifest.Clips)),
	}
	written, err := io.Copy(writer, dat)
	if err != nil {
		_ = writer.Close()
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to write gs://%s/%s after %d bytes: %w", c.bucket, manifest.OutputObject, written, err))
		return
	}
	if err := writer.Close(); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to commit gs://%s/%s: %w", c.bucket, manifest.OutputObject, err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("uploaded render",
		"job", manifest.JobId,
		"object", fmt.Sprintf("gs://%s/%s", c.bucket, manifest.OutputObject),
		"bytes", written)

	context.Add(c.GetOutputParam(), manifest)
}

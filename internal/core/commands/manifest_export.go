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
// command that writes the sequence's CSV manifest and uploads it next to
// where the render will land.
//
// The manifest is exported before any clip is downloaded. It is the record
// of what the render will contain, so if the pipeline dies halfway through
// a long download phase, the manifest already names the sequence that was
// attempted and the operator can re-run or hand-assemble it.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"

	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/dex-codes/ffmpeg-processor/internal/core/sequence"
	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
)

// ManifestExport is the command that renders the sequence manifest CSV into
// the job's scratch directory and uploads it to its bucket destination.
type ManifestExport struct {
	cor.BaseCommand
	client *storage.Client // The GCS client for interacting with the storage service.
	bucket string          // The bucket the manifest is uploaded to.
}

// NewManifestExport is the constructor for the ManifestExport command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - client: An initialized *storage.Client for communicating with GCS.
//   - bucket: The destination bucket for the manifest object.
//
// Outputs:
//   - *ManifestExport: A pointer to the newly instantiated command.
func NewManifestExport(name string, client *storage.Client, bucket string) *ManifestExport {
	return &ManifestExport{BaseCommand: *cor.NewBaseCommand(name), client: client, bucket: bucket}
}

// IsExecutable requires the render manifest on the input parameter and the
// plan outcome under its well-known key. The outcome carries the raw
// placement items and the backing pool the CSV is written from.
func (c *ManifestExport) IsExecutable(context cor.Context) bool {
	return context != nil &&
		context.Get(c.GetInputParam()) != nil &&
		context.Get(GetPlanOutcomeParameterName()) != nil
}

// Execute writes the CSV locally, then streams it to the bucket.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *ManifestExport) Execute(context cor.Context) {
	manifest := context.Get(c.GetInputParam()).(*model.RenderManifest)
	outcome := context.Get(GetPlanOutcomeParameterName()).(*services.PlanOutcome)

	localPath := filepath.Join(manifest.WorkDir, "manifest.csv")
	warn, err := sequence.ExportFile(localPath, outcome.Result.Items, outcome.Pool)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("exporting manifest for job %s: %w", manifest.JobId, err))
		return
	}
	if warn != nil {
		// Unresolvable rows are synthesized in the CSV rather than dropped,
		// so the file is still complete in shape. Worth a note, not a halt.
		slog.Warn("manifest contains synthesized rows",
			"job", manifest.JobId,
			"missing", warn.Missing)
	}

	f, err := os.Open(localPath)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("reading manifest %s: %w", localPath, err))
		return
	}
	defer func() { _ = f.Close() }()

	writer := c.client.Bucket(c.bucket).Object(manifest.ManifestObject).NewWriter(context.GetContext())
	writer.ContentType = "text/csv"
	writer.Metadata = map[string]string{"job-id": manifest.JobId}
	if _, err := io.Copy(writer, f); err != nil {
		_ = writer.Close()
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("writing gs://%s/%s: %w", c.bucket, manifest.ManifestObject, err))
		return
	}
	if err := writer.Close(); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("committing gs://%s/%s: %w", c.bucket, manifest.ManifestObject, err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("exported sequence manifest",
		"job", manifest.JobId,
		"object", fmt.Sprintf("gs://%s/%s", c.bucket, manifest.ManifestObject))
	context.Add(c.GetOutputParam(), manifest)
}

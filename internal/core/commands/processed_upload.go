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
// command that lands a standardized clip in the processed folder of the clip
// bucket.
//
// Logic Flow:
// This command is the last step of the clip standardization workflow,
// following the FFmpeg re-encode. Its job is naming and delivery.
//
//  1. Get the path of the local standardized file from the COR context.
//  2. Get the original GCS object metadata from the context. The processed
//     object keeps the original clip's base name (with the new container
//     extension) so humans can still match outputs to uploads, prefixed
//     with `processed_` and a timestamp so repeated runs of the same clip
//     never collide.
//  3. Stream the file into the processed folder with its real content type
//     and a metadata trail pointing back at the source object.
//
// The local file is tracked as a workflow temp file by the command that
// created it, so no filesystem cleanup happens here.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/h2non/filetype"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
)

// ProcessedClipUpload is a command implementation responsible for uploading a
// standardized clip from the local filesystem into the processed folder of
// the clip bucket under the pipeline's naming convention.
type ProcessedClipUpload struct {
	cor.BaseCommand                 // Embeds the BaseCommand for common functionality like naming and metrics.
	client          *storage.Client // The GCS client for interacting with the storage service.
	bucket          string          // The name of the destination GCS bucket.
	processedFolder string          // The folder processed clips land in.
}

// NewProcessedClipUpload is the constructor for creating a new ProcessedClipUpload command.
//
// Inputs:
//   - name: A string name for this command instance, used for logging and telemetry.
//   - client: An initialized *storage.Client for communicating with GCS.
//   - bucket: The name of the target GCS bucket for the upload.
//   - processedFolder: The folder within the bucket that holds processed clips.
//
// Outputs:
//   - *ProcessedClipUpload: A pointer to the newly instantiated command.
func NewProcessedClipUpload(name string, client *storage.Client, bucket string, processedFolder string) *ProcessedClipUpload {
	return &ProcessedClipUpload{
		BaseCommand:     *cor.NewBaseCommand(name),
		client:          client,
		bucket:          bucket,
		processedFolder: processedFolder,
	}
}

// ProcessedObjectName builds the bucket-relative name a processed clip is
// stored under: the folder, a `processed_` marker with a second-resolution
// timestamp, and the clip's base name. The timestamp keeps re-runs of the
// same source clip from overwriting each other.
//
// Inputs:
//   - folder: The processed folder prefix.
//   - baseName: The clip file name, extension included.
//   - ts: The upload time baked into the name.
//
// Outputs:
//   - string: The full object name, e.g.
//     "processed-video-clips/processed_20250314_091205_beach.mp4".
func ProcessedObjectName(folder string, baseName string, ts time.Time) string {
	return cloud.JoinObjectPath(folder, fmt.Sprintf("processed_%s_%s", ts.Format("20060102_150405"), baseName))
}

// Execute contains the core logic for the command. It derives the processed
// object name and streams the local file's content to the bucket.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *ProcessedClipUpload) Execute(context cor.Context) {
	// Retrieve the local file path produced by the previous command.
	path := context.Get(c.GetInputParam()).(string)

	// The original object reference is present when a bucket trigger started
	// this chain. Its base name, with the output container's extension
	// swapped in, gives the processed clip a recognizable name. Without it,
	// the local file name is all there is.
	name := filepath.Base(path)
	if original, ok := context.Get(cloud.GetGCSObjectName()).(*cloud.GCSObject); ok && original != nil {
		base := original.BaseName()
		name = strings.TrimSuffix(base, filepath.Ext(base)) + filepath.Ext(path)
	}
	objectName := ProcessedObjectName(c.processedFolder, name, time.Now())

	// Open the local file for reading.
	dat, err := os.Open(path)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to open file %s: %w", path, err))
		return
	}
	defer func() { _ = dat.Close() }()

	// Sniff the real content type from the file bytes. The extension is
	// trustworthy here (the encoder wrote the file), but the detector has
	// the authoritative answer either way.
	contentType := "video/mp4"
	if kind, err := filetype.MatchFile(path); err == nil && kind != filetype.Unknown {
		contentType = kind.MIME.Value
	}

	metadata := map[string]string{"standardized": "true"}
	if original, ok := context.Get(cloud.GetGCSObjectName()).(*cloud.GCSObject); ok && original != nil {
		metadata["source-object"] = original.Name
	}

	// Stream the file into the destination object. Close commits the write;
	// an error there means the object did not land, so it is checked rather
	// than deferred.
	writer := c.client.Bucket(c.bucket).Object(objectName).NewWriter(context.GetContext())
	writer.ContentType = contentType
	writer.Metadata = metadata
	written, err := io.Copy(writer, dat)
	if err != nil {
		_ = writer.Close()
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to write gs://%s/%s after %d bytes: %w", c.bucket, objectName, written, err))
		return
	}
	if err := writer.Close(); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to commit gs://%s/%s: %w", c.bucket, objectName, err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("uploaded processed clip",
		"object", fmt.Sprintf("gs://%s/%s", c.bucket, objectName),
		"bytes", written,
		"content_type", contentType)

	// Hand the processed object reference to whatever follows, typically
	// nothing in the triggered workflow, but tests and callers read it.
	context.Add(c.GetOutputParam(), &cloud.GCSObject{Bucket: c.bucket, Name: objectName, MIMEType: contentType})
}

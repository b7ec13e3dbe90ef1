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
// Responsibility (COR) pattern's Command interface. This file defines a
// command for downloading an object from Google Cloud Storage (GCS) to a
// local temporary file.
//
// Logic Flow:
// This command is the bridge between a GCS-based workflow and a
// local-file-based tool (like FFmpeg). It takes GCS object information,
// downloads the file to the local machine, and passes the local file's path
// to the next command in the chain.
//
//  1. Receives a `cloud.GCSObject` struct from the context, which contains
//     the bucket and object name.
//  2. Stats the object first, so a deleted or zero-byte upload is reported
//     before any bytes move.
//  3. Sniffs the first few hundred bytes of content to confirm the object
//     really is a video. Buckets accumulate stray files, and the declared
//     content type in the notification is whatever the uploader claimed, so
//     neither is trusted. The detected type also supplies the file extension,
//     which FFmpeg uses to pick a demuxer.
//  4. Streams the remaining content into a local temporary file carrying the
//     detected extension, and verifies the byte count against the object
//     size so a truncated download fails here instead of inside the encoder.
//  5. Adds the temp file to the context's cleanup list and publishes its path
//     as the command output for the next command in the workflow.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"github.com/h2non/filetype"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
)

// sniffLen is the number of leading bytes the content detector needs. The
// filetype library matches magic numbers within the first 262 bytes.
const sniffLen = 262

// GCSToTempFile is a command implementation that downloads an object from GCS
// and saves it as a temporary file on the local filesystem, verifying along
// the way that the object exists, is non-empty, and holds video content.
type GCSToTempFile struct {
	cor.BaseCommand                 // Embeds the BaseCommand for common functionality like naming and metrics.
	client          *storage.Client // The GCS client for interacting with the storage service.
	tempFilePrefix  string          // A prefix to use when naming the temporary file (e.g., "standardize-").
}

// NewGCSToTempFile is the constructor for creating a new GCSToTempFile command.
//
// Inputs:
//   - name: A string name for this command instance, used for logging and telemetry.
//   - client: An initialized *storage.Client for communicating with GCS.
//   - tempFilePrefix: A string prefix for the temporary file's name.
//
// Outputs:
//   - *GCSToTempFile: A pointer to the newly instantiated command.
func NewGCSToTempFile(name string, client *storage.Client, tempFilePrefix string) *GCSToTempFile {
	return &GCSToTempFile{
		BaseCommand:    *cor.NewBaseCommand(name),
		client:         client,
		tempFilePrefix: tempFilePrefix,
	}
}

// Execute contains the core logic for downloading and verifying the GCS object.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *GCSToTempFile) Execute(context cor.Context) {
	// Retrieve the GCS object metadata from the context's input parameter.
	msg := context.Get(c.GetInputParam()).(*cloud.GCSObject)
	obj := c.client.Bucket(msg.Bucket).Object(msg.Name)

	// Stat before reading. An upload that was deleted between the
	// notification and now, or a zero-byte marker object, should produce a
	// clear error rather than an empty temp file.
	attrs, err := obj.Attrs(context.GetContext())
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to stat %s: %w", msg.URI(), err))
		return
	}
	if attrs.Size == 0 {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("object %s is empty", msg.URI()))
		return
	}

	// Create a new reader to stream the object's data from GCS.
	reader, err := obj.NewReader(context.GetContext())
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to create GCS reader for %s: %w", msg.URI(), err))
		return
	}
	// Defer closing the reader to release the connection.
	defer func(reader *storage.Reader) {
		if err := reader.Close(); err != nil {
			slog.Warn("failed to close GCS reader", "object", msg.URI(), "error", err)
		}
	}(reader)

	// Read just enough of the head to identify the content. Objects smaller
	// than the sniff window are still matched on whatever bytes they have.
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(reader, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to read %s: %w", msg.URI(), err))
		return
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || kind.MIME.Type != "video" {
		detected := "unknown"
		if err == nil && kind != filetype.Unknown {
			detected = kind.MIME.Value
		}
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("object %s is not a video (detected content type %q)", msg.URI(), detected))
		return
	}
	// The detected type wins over whatever content type the uploader set.
	msg.MIMEType = kind.MIME.Value

	// Create the temporary file with the detected extension so downstream
	// tools that infer formats from file names behave.
	tempFile, err := os.CreateTemp("", c.tempFilePrefix+"*."+kind.Extension)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("could not create temp file: %w", err))
		return
	}
	// Track the temp file now so the workflow removes it even when a later
	// step in this command fails.
	context.AddTempFile(tempFile.Name())

	// Write the sniffed head first, then stream the remainder of the object.
	if _, err := tempFile.Write(head); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("could not write temp file %s: %w", tempFile.Name(), err))
		_ = tempFile.Close()
		return
	}
	copied, err := io.Copy(tempFile, reader)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to copy %s to local file: %w", msg.URI(), err))
		_ = tempFile.Close()
		return
	}
	// The copy is complete, so close the file handle to flush data to disk.
	_ = tempFile.Close()

	// Confirm every byte landed. A short count means the stream was cut off.
	written := int64(len(head)) + copied
	if written != attrs.Size {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("short download of %s: got %d of %d bytes", msg.URI(), written, attrs.Size))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("downloaded raw clip",
		"object", msg.URI(),
		"file", tempFile.Name(),
		"bytes", written,
		"content_type", msg.MIMEType)
	// Place the temp file's path into the context's output parameter, making
	// it the default input for the next command in the chain.
	context.Add(c.GetOutputParam(), tempFile.Name())
}

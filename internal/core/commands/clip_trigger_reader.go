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
// initial command in the clip standardization workflow.
//
// Logic Flow:
// This command is the entry point for the workflow triggered by a clip being
// uploaded to Google Cloud Storage (GCS). GCS publishes a notification
// message to a Pub/Sub topic when a new object is created, and this command
// parses that message and decides whether the object is actually work.
//
//  1. The command receives the raw Pub/Sub message data as a JSON string from
//     the context.
//  2. It unmarshals the JSON into a `cloud.GCSPubSubNotification` struct,
//     which represents the full structure of the GCS notification.
//  3. It builds a simplified `cloud.GCSObject` with just the bucket, object
//     name, and content type.
//  4. It then applies the folder gate: the pipeline writes its own output
//     into the same bucket (processed renders, manifests, temp scratch), and
//     every one of those writes produces another notification. Only objects
//     inside the raw upload folder continue down the chain; everything else
//     is acknowledged and dropped here, which is what prevents the pipeline
//     from re-encoding its own output forever.
//  5. For raw uploads, the `GCSObject` is stored under a well-known key and
//     as the command output, becoming the input of the download command.
package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"

	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
)

// ClipTriggerToGCSObject is a command that parses a GCS Pub/Sub notification,
// filters out the pipeline's own writes, and extracts the raw clip reference
// into a simplified GCSObject.
type ClipTriggerToGCSObject struct {
	cor.BaseCommand        // Embeds the BaseCommand for common functionality.
	rawFolder       string // Only objects under this folder are treated as work.
}

// NewClipTriggerToGCSObject is the constructor for the ClipTriggerToGCSObject command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - rawFolder: The bucket folder raw clip uploads land in.
//
// Outputs:
//   - *ClipTriggerToGCSObject: A pointer to the newly instantiated command.
func NewClipTriggerToGCSObject(name string, rawFolder string) *ClipTriggerToGCSObject {
	return &ClipTriggerToGCSObject{BaseCommand: *cor.NewBaseCommand(name), rawFolder: rawFolder}
}

// Execute contains the core logic for parsing the GCS notification message.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution, containing
//     the raw message data in the input parameter.
func (c *ClipTriggerToGCSObject) Execute(context cor.Context) {
	// Retrieve the raw JSON message string from the context.
	in := context.Get(c.GetInputParam()).(string)

	// Declare a variable of the target type to hold the unmarshaled data.
	var out cloud.GCSPubSubNotification

	// Parse the JSON string into the GCSPubSubNotification struct.
	err := json.Unmarshal([]byte(in), &out)
	if err != nil {
		// If parsing fails, it's a critical error for the workflow.
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to unmarshal GCS notification: %w", err))
		return
	}

	// Create a new, simplified GCSObject containing only the essential
	// information needed by downstream commands.
	msg := &cloud.GCSObject{Bucket: out.Bucket, Name: out.Name, MIMEType: out.ContentType}

	// The folder gate. Notifications fire for every object the bucket
	// receives, including the processed renders and scratch files this
	// pipeline writes itself. Dropping them is a success, not an error: the
	// message was understood, there is simply nothing to do. Leaving the
	// output parameter unset stops the chain at the next command's
	// IsExecutable check, and the listener acknowledges the message.
	if !msg.InFolder(c.rawFolder) {
		c.GetSuccessCounter().Add(context.GetContext(), 1)
		slog.Debug("ignoring notification outside the raw clip folder",
			"object", msg.URI(),
			"raw_folder", c.rawFolder)
		return
	}

	// If successful, increment the success counter for telemetry.
	c.GetSuccessCounter().Add(context.GetContext(), 1)

	// Add the simplified GCSObject to the context using a well-known key
	// so that other commands can easily access it.
	context.Add(cloud.GetGCSObjectName(), msg)

	// Also add the GCSObject to the default output parameter so it becomes the
	// input for the very next command in the chain.
	context.Add(c.GetOutputParam(), msg)
}

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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the workflow that normalizes raw clips to the shared encoding profile.
package workflow

import (
	goctx "context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/commands"
	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
)

// ClipStandardizeWorkflow orchestrates the normalization of a single raw clip:
// download from the raw folder, re-encode to the shared output profile, and
// upload to the processed folder. Clips arrive over two paths that share the
// same encode steps: a Pub/Sub notification fired by a bucket upload, and a
// direct job request naming the object. Every clip must pass through here
// before the render pipeline will touch it, because concatenation without
// re-encoding only works when every input carries identical stream parameters.
type ClipStandardizeWorkflow struct {
	cor.BaseCommand
	ffmpegCommand    string
	timeoutInSeconds int
	profile          *model.EncodeProfile
	storageClient    *storage.Client
	clipBucket       string
	rawFolder        string
	processedFolder  string
	chain            cor.Chain // The chain driven by Pub/Sub upload notifications.
	encodeChain      cor.Chain // The trigger-less chain used by direct job requests.
}

// Execute runs the notification-driven standardize workflow by invoking the
// underlying command chain. This is the entry point used by the Pub/Sub
// listener.
//
// Inputs:
//   - context: The chain of responsibility context for this execution, which
//     carries the raw notification payload and passes state between commands.
func (m *ClipStandardizeWorkflow) Execute(context cor.Context) {
	m.chain.Execute(context)
}

// initializeChain constructs the command sequences that define the workflow.
// This method is called by the constructor to set up the processing pipeline.
func (m *ClipStandardizeWorkflow) initializeChain() {
	// The encode steps are identical whether the clip arrived through a
	// bucket notification or a direct job request, so both chains share the
	// same command instances. Commands hold no per-run state.
	download := commands.NewGCSToTempFile("raw-clip-download", m.storageClient, "raw-clip-")
	standardize := commands.NewFFmpegStandardize("clip-standardize", m.ffmpegCommand, m.timeoutInSeconds, m.profile)
	upload := commands.NewProcessedClipUpload("processed-clip-upload", m.storageClient, m.clipBucket, m.processedFolder)

	out := cor.NewBaseChain(m.GetName())

	// Step 1: Parse the incoming Pub/Sub notification into a GCS object
	// reference, keeping only uploads that landed in the raw clip folder.
	// Notifications for the pipeline's own writes are dropped here, which is
	// what keeps a processed upload from re-triggering the workflow forever.
	out.AddCommand(commands.NewClipTriggerToGCSObject("clip-trigger-to-gcs-object", m.rawFolder))

	// Step 2: Download the raw clip to a local temporary file, verifying that
	// the object exists, is non-empty, and actually holds video content.
	out.AddCommand(download)

	// Step 3: Re-encode the local file to the shared output profile.
	out.AddCommand(standardize)

	// Step 4: Upload the normalized clip to the processed folder under a
	// timestamped name.
	out.AddCommand(upload)

	m.chain = out

	// The direct chain starts at the download step. Callers seed the context
	// with the GCS object themselves, so no notification parsing happens.
	direct := cor.NewBaseChain(m.GetName() + "-direct")
	direct.AddCommand(download)
	direct.AddCommand(standardize)
	direct.AddCommand(upload)
	m.encodeChain = direct
}

// RunObject standardizes one raw clip by name, bypassing the notification
// path. The single-clip and batch job types run through here.
//
// Inputs:
//   - ctx: The Go context for the run; cancelling it aborts the encode.
//   - objectName: The bucket-relative name of the raw clip.
//
// Outputs:
//   - *cloud.GCSObject: The processed object the normalized clip was written to.
//   - error: The chain's errors joined into one, or nil on success.
func (m *ClipStandardizeWorkflow) RunObject(ctx goctx.Context, objectName string) (*cloud.GCSObject, error) {
	obj := &cloud.GCSObject{Bucket: m.clipBucket, Name: objectName}

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	// Close removes the temp files the download and encode steps created.
	defer chainCtx.Close()
	chainCtx.Add(cor.CtxIn, obj)
	chainCtx.Add(cloud.GetGCSObjectName(), obj)

	m.encodeChain.Execute(chainCtx)

	if chainCtx.HasErrors() {
		return nil, chainError(chainCtx.GetErrors())
	}
	// The chain's piping leaves the last command's output in the input slot.
	processed, ok := chainCtx.Get(cor.CtxIn).(*cloud.GCSObject)
	if !ok {
		return nil, fmt.Errorf("standardize chain produced no output for %s", objectName)
	}
	return processed, nil
}

// NewClipStandardizeWorkflow is the constructor for the ClipStandardizeWorkflow.
// It initializes the workflow with all necessary clients and configuration,
// and builds the command chains.
//
// Inputs:
//   - config: The application's overall configuration.
//   - serviceClients: A struct containing initialized clients for GCP services.
//   - ffmpegCommand: The path to the FFmpeg executable. If empty, the
//     configured binary path is used, falling back to "ffmpeg" on the PATH.
//
// Returns:
//   - A pointer to a newly created and fully initialized ClipStandardizeWorkflow.
func NewClipStandardizeWorkflow(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	ffmpegCommand string) *ClipStandardizeWorkflow {

	// Resolve the FFmpeg binary: explicit argument first, then the configured
	// path, then the bare command name for PATH lookup.
	if len(strings.Trim(ffmpegCommand, " ")) == 0 {
		ffmpegCommand = config.Encoder.BinaryPath
	}
	if len(strings.Trim(ffmpegCommand, " ")) == 0 {
		ffmpegCommand = commands.DefaultEncoderBinary
	}

	out := &ClipStandardizeWorkflow{
		BaseCommand:      *cor.NewBaseCommand("clip-standardize-workflow"),
		ffmpegCommand:    ffmpegCommand,
		timeoutInSeconds: config.Encoder.TimeoutInSeconds,
		profile:          config.Encoder.Profile(),
		storageClient:    serviceClients.StorageClient,
		clipBucket:       config.Storage.ClipBucket,
		rawFolder:        config.Storage.RawFolder,
		processedFolder:  config.Storage.ProcessedFolder,
	}
	// Build the command chains for the new workflow instance.
	out.initializeChain()
	return out
}

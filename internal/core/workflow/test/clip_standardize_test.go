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

// Package workflow_test contains tests for the core application workflows.
// This file tests the `ClipStandardizeWorkflow`, which takes a freshly
// uploaded raw clip from the bucket's raw folder, re-encodes it to the shared
// output profile with FFmpeg, and uploads the result to the processed folder.
package workflow_test

import (
	"log"
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/dex-codes/ffmpeg-processor/internal/core/workflow"
	test "github.com/dex-codes/ffmpeg-processor/internal/testutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
)

// testConfig builds a small, self-contained configuration for the unit tests
// in this package. The integration tests use the loaded test configuration
// instead.
func testConfig() *cloud.Config {
	cfg := cloud.NewConfig()
	cfg.Application.Name = "clip-sequencer"
	cfg.Application.ThreadPoolSize = 2
	cfg.Storage.ClipBucket = "clip-sequencer-test"
	cfg.Storage.RawFolder = "raw-video-clips"
	cfg.Storage.ProcessedFolder = "processed-video-clips"
	cfg.Storage.TempFolder = "temp-service-folder"
	cfg.Encoder.TimeoutInSeconds = 120
	cfg.Encoder.Format = "mp4"
	return cfg
}

// TestClipStandardizeWorkflowAssembles checks the construction path without
// touching any cloud service: the workflow builds its chain, reports its
// name, and considers itself executable once a trigger payload is present.
func TestClipStandardizeWorkflowAssembles(t *testing.T) {
	standardize := workflow.NewClipStandardizeWorkflow(testConfig(), &cloud.ServiceClients{}, "")

	assert.Equal(t, "clip-standardize-workflow", standardize.GetName())

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, test.GetTestRawClipMessageText(
		"clip-sequencer-test", "raw-video-clips/test-clip-001.mp4"))

	assert.True(t, standardize.IsExecutable(chainCtx))
}

// TestClipStandardizeWorkflow performs an end-to-end integration test of the
// standardize workflow. It simulates a Pub/Sub trigger for a raw clip upload,
// runs the entire chain of commands (download, re-encode, upload), and
// asserts that the workflow completes without any errors. The test expects
// the configured test bucket to hold `test-clip-001.mp4` in its raw folder
// and ffmpeg to be runnable.
//
// Inputs:
//   - t: A pointer to the testing.T object, provided by the Go testing
//     framework, used for logging, error reporting, and assertions.
func TestClipStandardizeWorkflow(t *testing.T) {
	test.RequireIntegration(t)

	// Start an OpenTelemetry trace span for this test run.
	traceContext, span := tracer.Start(ctx, "clip-standardize-test")
	defer span.End()

	// Initialize the workflow with the shared test configuration and cloud
	// clients. An empty binary path falls back to the configured encoder.
	standardize := workflow.NewClipStandardizeWorkflow(config, cloudClients, "")

	// Create a new chain of responsibility (cor) context. This context will
	// carry state and data through the steps of the workflow.
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(traceContext)
	// Close removes the local temp files the chain leaves behind.
	defer chainCtx.Close()

	// Seed the context with a mock GCS notification for a raw clip upload.
	payload := test.GetTestRawClipMessageText(
		config.Storage.ClipBucket,
		cloud.JoinObjectPath(config.Storage.RawFolder, "test-clip-001.mp4"))
	chainCtx.Add(cor.CtxIn, payload)

	// Pre-check that the workflow considers itself executable before running
	// the main logic.
	assert.True(t, standardize.IsExecutable(chainCtx))

	// Execute the entire standardize workflow: download from GCS, run FFmpeg,
	// upload the normalized clip.
	standardize.Execute(chainCtx)

	// Log any errors the commands recorded, for debugging.
	for _, err := range chainCtx.GetErrors() {
		log.Printf("error in chain: %v", err.Error())
	}

	if chainCtx.HasErrors() {
		span.SetStatus(codes.Error, "failed - clip-standardize-test")
	}

	// The workflow completing without errors is the definition of success.
	assert.False(t, chainCtx.HasErrors())

	// The chain's final output is the processed object the clip landed in.
	processed, ok := chainCtx.Get(cor.CtxIn).(*cloud.GCSObject)
	if assert.True(t, ok, "chain should end with the processed object") {
		assert.True(t, processed.InFolder(config.Storage.ProcessedFolder))
	}

	span.SetStatus(codes.Ok, "passed - clip-standardize-test")
}

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

// This file exercises the trigger reader's folder gate, which is what keeps
// the standardize workflow from re-encoding its own output: the bucket fires
// a notification for every object written, including the ones this pipeline
// writes.
package commands_test

import (
	"context"
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/commands"
	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/stretchr/testify/assert"
)

// triggerContext builds a workflow context holding one raw Pub/Sub payload.
func triggerContext(payload string) cor.Context {
	ctx := cor.NewBaseContext()
	ctx.SetContext(context.Background())
	ctx.Add(cor.CtxIn, payload)
	return ctx
}

func TestTriggerReaderParsesRawUpload(t *testing.T) {
	cmd := commands.NewClipTriggerToGCSObject("trigger-test", "raw-video-clips")
	ctx := triggerContext(`{
		"kind": "storage#object",
		"bucket": "clip-inventory",
		"name": "raw-video-clips/beach_sunrise.mp4",
		"contentType": "video/mp4",
		"size": "1048576"
	}`)

	cmd.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	obj, ok := ctx.Get(cloud.GetGCSObjectName()).(*cloud.GCSObject)
	assert.True(t, ok)
	assert.Equal(t, "clip-inventory", obj.Bucket)
	assert.Equal(t, "raw-video-clips/beach_sunrise.mp4", obj.Name)
	assert.Equal(t, "video/mp4", obj.MIMEType)
	// The same object also rides the default output key for the next command.
	assert.Equal(t, obj, ctx.Get(cor.CtxOut))
}

func TestTriggerReaderDropsPipelineOutput(t *testing.T) {
	cmd := commands.NewClipTriggerToGCSObject("trigger-test", "raw-video-clips")

	for _, name := range []string{
		"processed-video-clips/processed_20250314_091205_beach.mp4",
		"temp-service-folder/partial.bin",
		"raw-video-clips/", // the folder placeholder itself
		"loose-object.mp4",
	} {
		ctx := triggerContext(`{"bucket": "clip-inventory", "name": "` + name + `"}`)
		cmd.Execute(ctx)

		// Dropping is a clean skip: no error, and nothing for the next
		// command to pick up.
		assert.False(t, ctx.HasErrors(), "object %s", name)
		assert.Nil(t, ctx.Get(cor.CtxOut), "object %s", name)
		assert.Nil(t, ctx.Get(cloud.GetGCSObjectName()), "object %s", name)
	}
}

func TestTriggerReaderRejectsMalformedPayload(t *testing.T) {
	cmd := commands.NewClipTriggerToGCSObject("trigger-test", "raw-video-clips")
	ctx := triggerContext(`not json at all`)

	cmd.Execute(ctx)

	assert.True(t, ctx.HasErrors())
	assert.Nil(t, ctx.Get(cor.CtxOut))
}

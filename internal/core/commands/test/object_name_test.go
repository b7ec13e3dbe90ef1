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

// This file covers the two naming rules the pipeline relies on: where a
// processed artifact lands, and which bucket object backs a plan item.
package commands_test

import (
	"testing"
	"time"

	"github.com/dex-codes/ffmpeg-processor/internal/core/commands"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestProcessedObjectName(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 12, 5, 0, time.UTC)

	got := commands.ProcessedObjectName("processed-video-clips", "beach.mp4", ts)
	assert.Equal(t, "processed-video-clips/processed_20250314_091205_beach.mp4", got)

	// Folder slashes are normalized, and an empty folder drops the prefix.
	assert.Equal(t,
		"processed-video-clips/processed_20250314_091205_beach.mp4",
		commands.ProcessedObjectName("processed-video-clips/", "beach.mp4", ts))
	assert.Equal(t,
		"processed_20250314_091205_beach.mp4",
		commands.ProcessedObjectName("", "beach.mp4", ts))
}

func TestRawClipObjectUsesClipBucketLinks(t *testing.T) {
	item := &model.PlanItem{
		Name: "beach_sunrise",
		Link: "gs://clip-inventory/raw-video-clips/beach_sunrise.mp4",
	}
	got := commands.RawClipObject(item, "clip-inventory", "raw-video-clips")
	assert.Equal(t, "raw-video-clips/beach_sunrise.mp4", got)
}

func TestRawClipObjectFallsBackToRawFolder(t *testing.T) {
	cases := []struct {
		name string
		item *model.PlanItem
		want string
	}{
		{
			name: "no link",
			item: &model.PlanItem{Name: "beach_sunrise"},
			want: "raw-video-clips/beach_sunrise.mp4",
		},
		{
			name: "link into another bucket",
			item: &model.PlanItem{Name: "beach_sunrise", Link: "gs://somewhere-else/beach.mp4"},
			want: "raw-video-clips/beach_sunrise.mp4",
		},
		{
			name: "http link",
			item: &model.PlanItem{Name: "beach_sunrise", Link: "https://example.com/beach.mp4"},
			want: "raw-video-clips/beach_sunrise.mp4",
		},
		{
			name: "name already carries an extension",
			item: &model.PlanItem{Name: "beach_sunrise.mov"},
			want: "raw-video-clips/beach_sunrise.mov",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, commands.RawClipObject(tc.item, "clip-inventory", "raw-video-clips"))
		})
	}
}

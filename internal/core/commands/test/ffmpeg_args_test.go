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

// Package commands_test contains the test suite for the commands package.
// This file pins down the exact FFmpeg invocations the pipeline makes. The
// builders are pure, so the full argument lists are asserted without an
// FFmpeg binary present; an accidental flag change shows up as a diff here
// rather than as subtly different output video.
package commands_test

import (
	"bytes"
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/core/commands"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func fullProfile() *model.EncodeProfile {
	return &model.EncodeProfile{
		Format:       "mp4",
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		Width:        1080,
		Height:       1920,
		FrameRate:    "29.97",
		VideoBitrate: "6M",
		AudioBitrate: "128k",
		PixelFormat:  "yuv420p",
		Preset:       "veryfast",
	}
}

func TestStandardizeArgsMatchesProfile(t *testing.T) {
	args := commands.StandardizeArgs(fullProfile(), "/scratch/clip_001.mov", "/scratch/std_001.mp4")

	want := []string{
		"-y",
		"-i", "/scratch/clip_001.mov",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-vf", "scale=1080:1920",
		"-r", "29.97",
		"-b:v", "6M",
		"-pix_fmt", "yuv420p",
		"-preset", "veryfast",
		"/scratch/std_001.mp4",
	}
	assert.Equal(t, want, args)
}

func TestStandardizeArgsAppliesDefaults(t *testing.T) {
	// A nil profile and an empty profile both fall back to the stock
	// portrait H.264 output.
	for _, profile := range []*model.EncodeProfile{nil, {}} {
		args := commands.StandardizeArgs(profile, "in.webm", "out.mp4")
		assert.Equal(t, commands.StandardizeArgs(fullProfile(), "in.webm", "out.mp4"), args)
	}
}

func TestStandardizeArgsCustomGeometry(t *testing.T) {
	profile := fullProfile()
	profile.Width = 1920
	profile.Height = 1080
	profile.FrameRate = "30000/1001"

	args := commands.StandardizeArgs(profile, "in.mov", "out.mp4")
	assert.Contains(t, args, "scale=1920:1080")
	assert.Contains(t, args, "30000/1001")
}

func TestConcatArgsTemplate(t *testing.T) {
	args := commands.ConcatArgs(fullProfile(), "/scratch/concat.txt", "/scratch/final.mp4")

	want := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", "/scratch/concat.txt",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-r", "29.97",
		"-b:v", "6M",
		"-avoid_negative_ts", "make_zero",
		"/scratch/final.mp4",
	}
	assert.Equal(t, want, args)
}

func TestWriteConcatListQuoting(t *testing.T) {
	var buf bytes.Buffer
	err := commands.WriteConcatList(&buf, []string{
		"/scratch/std_001.mp4",
		"/scratch/it's a clip.mp4",
	})
	assert.NoError(t, err)

	want := "file '/scratch/std_001.mp4'\n" +
		"file '/scratch/it'\\''s a clip.mp4'\n"
	assert.Equal(t, want, buf.String())
}

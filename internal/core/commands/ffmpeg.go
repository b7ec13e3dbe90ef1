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
// Responsibility (COR) pattern's Command interface. This file holds the
// FFmpeg plumbing shared by every encoding command: the two argument
// templates and the process runner.
//
// The pipeline invokes FFmpeg in exactly two shapes:
//
//   - Standardize: re-encode one clip to the shared output profile. The
//     concat demuxer requires identical codecs, dimensions, frame rates, and
//     pixel formats across all inputs, so every clip passes through this
//     template before stitching.
//
//   - Concat: stitch the standardized clips, in sequence order, into one
//     output file using the concat demuxer with a list file. The inputs are
//     already uniform, but the stream is still re-encoded once so the output
//     has clean timestamps and a single consistent bitrate.
//
// The argument builders are exported and pure so the exact command lines are
// testable without an FFmpeg binary on the machine.
package commands

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
)

// DefaultEncoderBinary is used when no explicit FFmpeg path is configured.
const DefaultEncoderBinary = "ffmpeg"

// stderrTailLimit bounds how much of FFmpeg's stderr is carried into an
// error. FFmpeg prints its whole configuration banner and per-stream maps
// before any failure; the useful part is at the end.
const stderrTailLimit = 2048

// applyProfileDefaults fills the empty fields of an encode profile with the
// stock output format: 1080x1920 portrait H.264/AAC at NTSC film rate.
func applyProfileDefaults(p *model.EncodeProfile) model.EncodeProfile {
	out := model.EncodeProfile{}
	if p != nil {
		out = *p
	}
	if out.Format == "" {
		out.Format = "mp4"
	}
	if out.VideoCodec == "" {
		out.VideoCodec = "libx264"
	}
	if out.AudioCodec == "" {
		out.AudioCodec = "aac"
	}
	if out.Width <= 0 {
		out.Width = 1080
	}
	if out.Height <= 0 {
		out.Height = 1920
	}
	if out.FrameRate == "" {
		out.FrameRate = "29.97"
	}
	if out.VideoBitrate == "" {
		out.VideoBitrate = "6M"
	}
	if out.AudioBitrate == "" {
		out.AudioBitrate = "128k"
	}
	if out.PixelFormat == "" {
		out.PixelFormat = "yuv420p"
	}
	if out.Preset == "" {
		out.Preset = "veryfast"
	}
	return out
}

// StandardizeArgs builds the FFmpeg argument list that re-encodes one clip to
// the shared output profile. `-y` overwrites the pre-created output file, and
// the scale filter forces the exact target dimensions rather than preserving
// aspect ratio, because the concat demuxer needs every input identical.
//
// Inputs:
//   - profile: The target output profile; empty fields fall back to defaults.
//   - inputPath: The local clip to re-encode.
//   - outputPath: The local path the standardized copy is written to.
//
// Outputs:
//   - []string: The argument list, ready for exec.
func StandardizeArgs(profile *model.EncodeProfile, inputPath string, outputPath string) []string {
	p := applyProfileDefaults(profile)
	return []string{
		"-y",
		"-i", inputPath,
		"-c:v", p.VideoCodec,
		"-c:a", p.AudioCodec,
		"-vf", fmt.Sprintf("scale=%d:%d", p.Width, p.Height),
		"-r", p.FrameRate,
		"-b:v", p.VideoBitrate,
		"-pix_fmt", p.PixelFormat,
		"-preset", p.Preset,
		outputPath,
	}
}

// ConcatArgs builds the FFmpeg argument list that stitches the standardized
// clips named in a concat list file into a single output. `-safe 0` permits
// the absolute paths the list file contains, and `-avoid_negative_ts
// make_zero` shifts each segment's timestamps so players do not stall on the
// joins.
//
// Inputs:
//   - profile: The target output profile; empty fields fall back to defaults.
//   - listPath: The concat demuxer list file naming the inputs in order.
//   - outputPath: The local path the stitched video is written to.
//
// Outputs:
//   - []string: The argument list, ready for exec.
func ConcatArgs(profile *model.EncodeProfile, listPath string, outputPath string) []string {
	p := applyProfileDefaults(profile)
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", p.VideoCodec,
		"-preset", p.Preset,
		"-crf", "23",
		"-pix_fmt", p.PixelFormat,
		"-c:a", p.AudioCodec,
		"-b:a", p.AudioBitrate,
		"-r", p.FrameRate,
		"-b:v", p.VideoBitrate,
		"-avoid_negative_ts", "make_zero",
		outputPath,
	}
}

// runEncoder executes one FFmpeg invocation, bounded by the given timeout
// when one is set. Stderr is captured rather than streamed; on failure the
// tail of it rides along in the returned error, which is where FFmpeg prints
// the actual reason.
func runEncoder(ctx context.Context, binary string, timeout time.Duration, args []string) error {
	if binary == "" {
		binary = DefaultEncoderBinary
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s did not finish within %s: %w", binary, timeout, ctx.Err())
		}
		return fmt.Errorf("%s %s: %w: %s", binary, strings.Join(args, " "), err, stderrTail(stderr.Bytes()))
	}
	return nil
}

// stderrTail returns the last stderrTailLimit bytes of captured output as a
// single line.
func stderrTail(out []byte) string {
	if len(out) > stderrTailLimit {
		out = out[len(out)-stderrTailLimit:]
	}
	return strings.TrimSpace(strings.ReplaceAll(string(out), "\n", " | "))
}

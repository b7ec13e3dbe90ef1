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

// This file, `transient.go`, contains struct definitions for data models that
// are only used in memory while a workflow executes. These objects are
// intermediate containers for clip data as it is downloaded, transcoded, and
// stitched by the commands in a chain; they are never persisted in this form.
package model

import "time"

// EncodeProfile describes the uniform output format every clip is normalized
// to before concatenation. FFmpeg's concat demuxer requires identical codecs,
// dimensions, and timebases across inputs, so the standardize step re-encodes
// everything to this profile first.
type EncodeProfile struct {
	Format       string // container, e.g. "mp4"
	VideoCodec   string // e.g. "libx264"
	AudioCodec   string // e.g. "aac"
	Width        int    // output width in pixels
	Height       int    // output height in pixels
	FrameRate    string // e.g. "30000/1001"
	VideoBitrate string // e.g. "6M"
	AudioBitrate string // e.g. "128k"
	PixelFormat  string // e.g. "yuv420p"
	Preset       string // encoder speed preset, e.g. "veryfast"
}

// ClipAsset tracks one clip through the render pipeline. The fields fill in
// as the clip moves: the planner sets the identity and source, the download
// step sets LocalPath and the sniffed MIME type, and the standardize step
// swaps LocalPath for the normalized copy.
type ClipAsset struct {
	Position     int    `json:"position"`            // 1-based slot in the sequence
	Name         string `json:"name"`                // display name from the inventory
	SourceObject string `json:"source_object"`       // bucket-relative object or external URL
	LocalPath    string `json:"-"`                   // scratch file on disk, never serialized
	MimeType     string `json:"mime_type,omitempty"` // sniffed from file bytes, not the extension
	SizeBytes    int64  `json:"size_bytes,omitempty"`
	Standardized bool   `json:"standardized"` // true once re-encoded to the shared profile
}

// RenderManifest is the working set for one render: the ordered clips plus
// the output identity. A manifest is assembled by the sequence planner and
// consumed by the download, encode, and concat commands in order.
type RenderManifest struct {
	JobId          string       `json:"job_id"`
	Clips          []*ClipAsset `json:"clips"`
	OutputObject   string       `json:"output_object"`   // bucket-relative name of the stitched video
	ManifestObject string       `json:"manifest_object"` // bucket-relative name of the exported CSV manifest
	WorkDir        string       `json:"-"`               // scratch directory, removed by cleanup
	LocalRender    string       `json:"-"`               // path of the stitched file before upload
}

// PendingClips returns the clips that still need a local copy downloaded.
func (m *RenderManifest) PendingClips() []*ClipAsset {
	out := make([]*ClipAsset, 0, len(m.Clips))
	for _, c := range m.Clips {
		if c.LocalPath == "" {
			out = append(out, c)
		}
	}
	return out
}

// BucketCount is a lightweight struct used to hold one row of the inventory
// aggregation query. It reports how many clips exist for a single category
// and color pairing, which is the supply figure feasibility checks start from.
type BucketCount struct {
	Category string `json:"category" bigquery:"category"` // The category column value for this bucket.
	Color    string `json:"color" bigquery:"color"`       // The color column value for this bucket.
	Total    int64  `json:"total" bigquery:"total"`       // The number of clips in the bucket.
}

// ObjectStat summarizes one storage object for the dashboard listing.
type ObjectStat struct {
	Name        string    `json:"name"`                   // bucket-relative object name
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type,omitempty"`
	Updated     time.Time `json:"updated"`
}

// FolderStats aggregates one logical folder of a bucket.
type FolderStats struct {
	Bucket     string    `json:"bucket"`
	Folder     string    `json:"folder"`
	Objects    int       `json:"objects"`
	TotalBytes int64     `json:"total_bytes"`
	Newest     time.Time `json:"newest,omitempty"` // most recent object update
}

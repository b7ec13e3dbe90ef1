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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings
// for the clip inventory, storage buckets, the FFmpeg encoder profile,
// Pub/Sub topics, and the job runner.
//
// This file centralizes all configuration-related structs, making it easy
// to understand and manage the application's configurable parameters.
//
// Structs:
//   - InventorySource: Configuration for the BigQuery clip inventory.
//   - SequenceDefaults: Generation defaults and the attribute schema layout.
//   - Encoder: The FFmpeg binary location and the shared output profile.
//   - Downloads: Pacing and retry policy for bulk clip downloads.
//   - Jobs: Job store location and concurrency limits.
//   - TopicSubscription: Configuration for a single Pub/Sub topic subscription.
//   - Storage: Configuration for Google Cloud Storage buckets and folders.
//   - Category: A known clip category with a human definition.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that initializes a new Config object with empty maps.
package cloud

import "github.com/dex-codes/ffmpeg-processor/internal/core/model"

// InventorySource represents the configuration for the BigQuery table that
// holds the clip catalog.
type InventorySource struct {
	DatasetName string `toml:"dataset"`     // The name of the BigQuery dataset.
	ClipTable   string `toml:"clip_table"`  // The name of the BigQuery table containing clip rows.
	NameColumn  string `toml:"name_column"` // The column carrying the clip display name.
	LinkColumn  string `toml:"link_column"` // The column carrying the clip object name or URL.
}

// SequenceDefaults holds the generation parameters applied when a request
// leaves them unset, plus the attribute schema the inventory rows follow.
type SequenceDefaults struct {
	Schema        []string `toml:"schema"`         // ordered attribute columns, first entry is the spacing attribute
	TargetLength  int      `toml:"target_length"`  // default sequence length
	MinSpacing    int      `toml:"min_spacing"`    // default category repeat gap
	MaxAttempts   int      `toml:"max_attempts"`   // restart budget before the builder gives up
	HistorySize   int      `toml:"history_size"`   // sequences remembered for variation scoring
	CompareWindow int      `toml:"compare_window"` // recent sequences each new run is scored against
}

// Encoder represents the FFmpeg configuration: where the binary lives and
// the single output profile every clip is normalized to.
type Encoder struct {
	BinaryPath       string `toml:"binary_path"`        // path to the ffmpeg executable.
	ProbePath        string `toml:"probe_path"`         // path to the ffprobe executable.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // per-invocation watchdog.
	Format           string `toml:"format"`             // container format, e.g. "mp4".
	VideoCodec       string `toml:"video_codec"`        // e.g. "libx264".
	AudioCodec       string `toml:"audio_codec"`        // e.g. "aac".
	Width            int    `toml:"width"`              // output width in pixels.
	Height           int    `toml:"height"`             // output height in pixels.
	FrameRate        string `toml:"frame_rate"`         // e.g. "30000/1001".
	VideoBitrate     string `toml:"video_bitrate"`      // e.g. "6M".
	AudioBitrate     string `toml:"audio_bitrate"`      // e.g. "128k".
	PixelFormat      string `toml:"pixel_format"`       // e.g. "yuv420p".
	Preset           string `toml:"preset"`             // encoder speed preset, e.g. "veryfast".
}

// Profile converts the encoder configuration to the in-memory profile the
// render commands consume.
func (e *Encoder) Profile() *model.EncodeProfile {
	return &model.EncodeProfile{
		Format:       e.Format,
		VideoCodec:   e.VideoCodec,
		AudioCodec:   e.AudioCodec,
		Width:        e.Width,
		Height:       e.Height,
		FrameRate:    e.FrameRate,
		VideoBitrate: e.VideoBitrate,
		AudioBitrate: e.AudioBitrate,
		PixelFormat:  e.PixelFormat,
		Preset:       e.Preset,
	}
}

// Downloads represents the pacing policy for bulk clip downloads. The rate
// limit keeps large render jobs from hammering the storage API, the batch
// pause gives the link a longer break on big runs, and the backoff schedule
// governs how failed downloads are retried.
type Downloads struct {
	RequestsPerMinute int   `toml:"requests_per_minute"` // steady-state download rate.
	Burst             int   `toml:"burst"`               // short-term burst allowance.
	BatchSize         int   `toml:"batch_size"`          // fetches between batch pauses, zero disables.
	BatchPauseSeconds int   `toml:"batch_pause_seconds"` // length of the pause at each batch boundary.
	MaxRetries        int   `toml:"max_retries"`         // extra attempts within one download call.
	BackoffMinutes    []int `toml:"backoff_minutes"`     // wait before retry n, indexed by consecutive failures.
}

// Jobs represents the configuration for the persistent job runner.
type Jobs struct {
	StoreDir      string `toml:"store_dir"`      // directory where job JSON records live.
	MaxConcurrent int    `toml:"max_concurrent"` // simultaneous running jobs.
	RetentionDays int    `toml:"retention_days"` // terminal jobs older than this are swept.
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

// Storage represents the configuration for storage buckets and the folder
// layout inside the clip bucket.
type Storage struct {
	ClipBucket        string `toml:"clip_bucket"`          // The bucket holding source and standardized clips.
	RenderBucket      string `toml:"render_bucket"`        // The bucket receiving stitched output videos.
	RawFolder         string `toml:"raw_folder"`           // Folder for freshly uploaded, unprocessed clips.
	ProcessedFolder   string `toml:"processed_folder"`     // Folder for clips normalized to the encoder profile.
	TempFolder        string `toml:"temp_folder"`          // Scratch folder for in-flight render artifacts.
	GCSFuseMountPoint string `toml:"gcs_fuse_mount_point"` // The mount point for GCS FUSE, empty when not mounted.
}

// Category defines a known clip category. The map key is the value that
// appears in inventory rows; the fields here are for humans reading the API
// and CLI output.
type Category struct {
	Name       string `toml:"name"`       // The user-friendly name of the category (e.g., "Dance").
	Definition string `toml:"definition"` // A short description of what belongs in the category.
}

// Config represents the overall configuration for the application, loaded
// from TOML files. It acts as the root container for all other configuration
// structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		ThreadPoolSize            int    `toml:"thread_pool_size"`             // The size of the worker pool for parallel download tasks.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
	} `toml:"application"`
	Storage            Storage                      `toml:"storage"`             // Storage configuration.
	Inventory          InventorySource              `toml:"inventory"`           // BigQuery clip inventory configuration.
	Sequence           SequenceDefaults             `toml:"sequence"`            // Generation defaults and schema.
	Encoder            Encoder                      `toml:"encoder"`             // FFmpeg binary and output profile.
	Downloads          Downloads                    `toml:"downloads"`           // Download pacing and retry policy.
	Jobs               Jobs                         `toml:"jobs"`                // Job store and concurrency settings.
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // A map of Pub/Sub topic subscriptions, keyed by a logical name (e.g., "RawClips").
	Categories         map[string]Category          `toml:"categories"`          // A map of known clip categories, keyed by the inventory value (e.g., "dance").
}

// NewConfig is a constructor function that creates a new, initialized Config
// instance. It's important to initialize the maps within the struct to avoid
// nil pointer panics when the configuration loader tries to populate them.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with its map fields initialized.
func NewConfig() *Config {
	return &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		Categories:         make(map[string]Category),
	}
}

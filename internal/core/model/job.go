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

// Package model defines the core data structures for the application.
// This file, `job.go`, contains the durable job records that track every
// generation and render request through its lifecycle. Jobs are persisted as
// JSON by the job service so that queued work survives a process restart and
// the API can report progress on long-running renders.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of work a job performs.
type JobType string

const (
	JobTypeSingleVideo   JobType = "single_video"   // standardize one raw clip
	JobTypeBatchProcess  JobType = "batch_process"  // standardize every clip in the raw folder
	JobTypeVideoSequence JobType = "video_sequence" // plan + fetch + standardize + concat + upload
	JobTypeCleanup       JobType = "cleanup"        // temp-folder sweep and job retention
)

// JobStatus is the lifecycle state of a job. Transitions only ever move
// forward: pending -> running -> one of the terminal states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// SequenceParams captures everything needed to reproduce a generation run.
// The params travel with the job record so a failed job can be retried with
// the exact same inputs.
type SequenceParams struct {
	Categories   []string `json:"categories"`              // allowed primary attribute values
	Colors       []string `json:"colors,omitempty"`        // allowed secondary attribute values
	TargetLength int      `json:"target_length"`           // requested number of clips
	MinSpacing   int      `json:"min_spacing"`             // category repeat gap
	Variations   int      `json:"variations,omitempty"`    // batch size, sequence jobs only use 1
	Seed         *int64   `json:"seed,omitempty"`          // fixed random seed for reproducible runs
	Relaxed      bool     `json:"relaxed,omitempty"`       // permit best-effort output when constraints fail
	OutputPrefix string   `json:"output_prefix,omitempty"` // object name prefix for manifests and renders
}

// JobOutput records one artifact a job produced, typically a GCS object.
type JobOutput struct {
	Kind   string `json:"kind"`             // "manifest", "render", "report"
	Object string `json:"object"`           // bucket-relative object name
	Note   string `json:"note,omitempty"`   // short human-readable annotation
	Signed string `json:"signed,omitempty"` // time-limited download URL when one was minted
}

// Job is the persistent record of one unit of work.
type Job struct {
	Id         string          `json:"id"`
	Type       JobType         `json:"type"`
	Status     JobStatus       `json:"status"`
	CreateDate time.Time       `json:"create_date"`
	StartDate  *time.Time      `json:"start_date,omitempty"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
	Object     string          `json:"object,omitempty"` // raw clip for single_video jobs
	Params     *SequenceParams `json:"params,omitempty"` // generation inputs for video_sequence jobs
	Outputs    []*JobOutput    `json:"outputs,omitempty"`
	Error      string          `json:"error,omitempty"` // failure detail, empty unless Status is failed
	Attempts   int             `json:"attempts,omitempty"`
	BestEffort bool            `json:"best_effort,omitempty"` // result violates spacing, relaxed mode only
}

// NewJob creates a pending job with a sortable, human-scannable identifier.
// The id leads with the job type and a second-resolution timestamp so plain
// directory listings of the job store read in chronological order; the short
// UUID fragment disambiguates jobs created in the same second.
func NewJob(jobType JobType, params *SequenceParams) *Job {
	now := time.Now()
	return &Job{
		Id:         fmt.Sprintf("%s_%s_%s", jobType, now.Format("20060102_150405"), uuid.NewString()[:8]),
		Type:       jobType,
		Status:     JobStatusPending,
		CreateDate: now,
		Params:     params,
		Outputs:    make([]*JobOutput, 0),
	}
}

// Start marks the job running and stamps the start time.
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartDate = &now
}

// Complete marks the job finished and stamps the end time.
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.EndDate = &now
}

// Fail marks the job failed and records the cause.
func (j *Job) Fail(err error) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.EndDate = &now
	if err != nil {
		j.Error = err.Error()
	}
}

// Cancel marks the job cancelled. Cancelling a job that already reached a
// terminal state is a no-op so a late cancel request cannot clobber a result.
func (j *Job) Cancel() {
	if j.Terminal() {
		return
	}
	now := time.Now()
	j.Status = JobStatusCancelled
	j.EndDate = &now
}

// AddOutput appends an artifact record to the job.
func (j *Job) AddOutput(kind, object, note string) {
	j.Outputs = append(j.Outputs, &JobOutput{Kind: kind, Object: object, Note: note})
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Runtime returns how long the job ran, or zero if it never started. For a
// job still running, the duration is measured up to now.
func (j *Job) Runtime() time.Duration {
	if j.StartDate == nil {
		return 0
	}
	if j.EndDate != nil {
		return j.EndDate.Sub(*j.StartDate)
	}
	return time.Since(*j.StartDate)
}

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

// Package model_test contains unit tests for the data models defined in the
// model package. This file exercises the job record: identifier generation
// and the lifecycle transitions the job service relies on.
package model_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/zeebo/assert"
)

// TestNewJob verifies the identifier layout: the job type, a second-resolution
// timestamp, and an eight-character random suffix, joined by underscores. Job
// types themselves contain underscores, so the id is parsed by stripping the
// type prefix rather than splitting on the separator. The timestamp is what
// keeps directory listings of the job store in chronological order.
func TestNewJob(t *testing.T) {
	params := &model.SequenceParams{
		Categories:   []string{"dance", "nature"},
		TargetLength: 30,
		MinSpacing:   2,
	}
	job := model.NewJob(model.JobTypeVideoSequence, params)

	prefix := string(model.JobTypeVideoSequence) + "_"
	assert.True(t, strings.HasPrefix(job.Id, prefix))

	rest := strings.Split(strings.TrimPrefix(job.Id, prefix), "_")
	assert.Equal(t, 3, len(rest))
	assert.Equal(t, 8, len(rest[2]))

	// The first two segments form the creation timestamp.
	stamp, err := time.ParseInLocation("20060102_150405", rest[0]+"_"+rest[1], time.Local)
	assert.NoError(t, err)
	assert.True(t, time.Since(stamp) < 2*time.Second)

	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.True(t, time.Since(job.CreateDate) < time.Second)
	assert.NotNil(t, job.Outputs)
	assert.Equal(t, 0, len(job.Outputs))
	assert.Equal(t, params, job.Params)
	assert.Nil(t, job.StartDate)
	assert.False(t, job.Terminal())
}

// TestNewJobIdsAreUnique guards against identifier collisions for jobs
// created within the same second.
func TestNewJobIdsAreUnique(t *testing.T) {
	a := model.NewJob(model.JobTypeVideoSequence, nil)
	b := model.NewJob(model.JobTypeVideoSequence, nil)
	assert.True(t, a.Id != b.Id)
}

// TestJobLifecycle walks a job through the happy path and checks that each
// transition stamps the matching timestamp.
func TestJobLifecycle(t *testing.T) {
	job := model.NewJob(model.JobTypeVideoSequence, nil)

	job.Start()
	assert.Equal(t, model.JobStatusRunning, job.Status)
	assert.NotNil(t, job.StartDate)
	assert.False(t, job.Terminal())

	job.AddOutput("manifest", "sequences/demo.csv", "30 clips")
	job.Complete()
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.NotNil(t, job.EndDate)
	assert.True(t, job.Terminal())
	assert.Equal(t, 1, len(job.Outputs))
	assert.Equal(t, "manifest", job.Outputs[0].Kind)
	assert.Equal(t, job.EndDate.Sub(*job.StartDate), job.Runtime())
}

// TestJobFail checks that a failure records the cause and reaches a terminal
// state.
func TestJobFail(t *testing.T) {
	job := model.NewJob(model.JobTypeSingleVideo, nil)
	job.Start()
	job.Fail(errors.New("ffmpeg exited with status 1"))

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, "ffmpeg exited with status 1", job.Error)
	assert.True(t, job.Terminal())
}

// TestJobCancel covers both sides of the cancel rule: a pending job cancels,
// a completed job ignores the late cancel.
func TestJobCancel(t *testing.T) {
	pending := model.NewJob(model.JobTypeBatchProcess, nil)
	pending.Cancel()
	assert.Equal(t, model.JobStatusCancelled, pending.Status)
	assert.NotNil(t, pending.EndDate)

	done := model.NewJob(model.JobTypeBatchProcess, nil)
	done.Start()
	done.Complete()
	done.Cancel()
	assert.Equal(t, model.JobStatusCompleted, done.Status)
}

// TestJobRuntimeWithoutStart ensures an unstarted job reports zero runtime
// instead of a bogus duration.
func TestJobRuntimeWithoutStart(t *testing.T) {
	job := model.NewJob(model.JobTypeCleanup, nil)
	assert.Equal(t, time.Duration(0), job.Runtime())
}

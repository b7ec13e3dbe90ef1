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

// Package services contains the business logic for interacting with data sources.
// This file, `jobs.go`, defines the JobService, the queue behind the
// asynchronous API surface. Jobs are persisted as one JSON file each so queued
// work survives a restart, executed through a bounded worker gate so renders
// cannot stampede the encoder host, and aged out after a retention window.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
)

// ErrJobNotFound is returned when a job id has no record in the store.
var ErrJobNotFound = errors.New("job not found")

// JobRunner executes one job to completion. The workflow layer supplies it;
// the service itself only manages lifecycle, persistence, and concurrency.
// The context is cancelled when the job is cancelled or the service closes.
type JobRunner func(ctx context.Context, job *model.Job) error

// JobService owns the durable job queue. All state transitions happen under
// its lock and every transition is persisted before it becomes visible.
type JobService struct {
	StoreDir      string    // Directory holding one JSON file per job.
	RetentionDays int       // Days a finished job is kept; zero keeps forever.
	Runner        JobRunner // Executes running jobs; wired in during setup.

	mu      sync.Mutex
	jobs    map[string]*model.Job
	cancels map[string]context.CancelFunc
	sem     chan struct{}
	wg      sync.WaitGroup
}

// NewJobService opens (or creates) the store directory, loads every job
// record found there, and resets jobs that were mid-flight when the previous
// process died back to pending so ResumePending can pick them up.
//
// Inputs:
//   - storeDir: Directory for the JSON job records.
//   - maxConcurrent: How many jobs may run at once; values below one mean one.
//   - retentionDays: Age limit for finished jobs; zero disables the sweep.
//   - runner: The executor for submitted jobs.
//
// Outputs:
//   - *JobService: The ready service.
//   - error: An error if the directory cannot be created or read.
func NewJobService(storeDir string, maxConcurrent int, retentionDays int, runner JobRunner) (*JobService, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating job store %s: %w", storeDir, err)
	}
	s := &JobService{
		StoreDir:      storeDir,
		RetentionDays: retentionDays,
		Runner:        runner,
		jobs:          make(map[string]*model.Job),
		cancels:       make(map[string]context.CancelFunc),
		sem:           make(chan struct{}, maxConcurrent),
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadAll reads every job file in the store. A record that fails to parse is
// logged and skipped rather than blocking startup; a job found in the
// running state was orphaned by a crash and is reset to pending.
func (s *JobService) loadAll() error {
	paths, err := filepath.Glob(filepath.Join(s.StoreDir, "*.json"))
	if err != nil {
		return fmt.Errorf("scanning job store %s: %w", s.StoreDir, err)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading job record %s: %w", path, err)
		}
		job := &model.Job{}
		if err := json.Unmarshal(data, job); err != nil {
			slog.Warn("skipping unreadable job record", "path", path, "error", err)
			continue
		}
		if job.Status == model.JobStatusRunning {
			job.Status = model.JobStatusPending
			job.StartDate = nil
			if err := s.persistLocked(job); err != nil {
				return err
			}
			slog.Info("recovered orphaned job", "job_id", job.Id)
		}
		s.jobs[job.Id] = job
	}
	return nil
}

// Submit records a new pending job and schedules it for execution. The job
// is durable before Submit returns.
func (s *JobService) Submit(job *model.Job) error {
	if s.Runner == nil {
		return fmt.Errorf("job service has no runner configured")
	}
	s.mu.Lock()
	s.jobs[job.Id] = job
	err := s.persistLocked(job)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.dispatch(job.Id)
	return nil
}

// ResumePending schedules every pending job in the store. Setup calls this
// once after the runner is wired so work recovered from a previous process
// starts moving again.
func (s *JobService) ResumePending() int {
	s.mu.Lock()
	var ids []string
	for id, job := range s.jobs {
		if job.Status == model.JobStatusPending {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	sort.Strings(ids)
	for _, id := range ids {
		s.dispatch(id)
	}
	return len(ids)
}

func (s *JobService) dispatch(id string) {
	s.wg.Add(1)
	go s.run(id)
}

// run is the lifetime of one job: wait for a worker slot, transition to
// running, execute, and finalize. A job cancelled while it waited for a slot
// is already terminal by the time the slot frees and is simply dropped.
func (s *JobService) run(id string) {
	defer s.wg.Done()
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Terminal() {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancels[id] = cancel
	job.Start()
	if err := s.persistLocked(job); err != nil {
		slog.Error("failed to persist job start", "job_id", id, "error", err)
	}
	s.mu.Unlock()

	slog.Info("job started", "job_id", id, "type", job.Type)
	var err error
	if s.Runner == nil {
		err = fmt.Errorf("job service has no runner configured")
	} else {
		err = s.Runner(ctx, job)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Read the cancellation state before releasing the context.
	wasCancelled := ctx.Err() != nil
	cancel()
	delete(s.cancels, id)

	switch {
	case wasCancelled:
		job.Cancel()
		slog.Info("job cancelled", "job_id", id, "runtime", job.Runtime())
	case err != nil:
		job.Fail(err)
		slog.Error("job failed", "job_id", id, "runtime", job.Runtime(), "error", err)
	default:
		job.Complete()
		slog.Info("job completed", "job_id", id, "runtime", job.Runtime())
	}
	if err := s.persistLocked(job); err != nil {
		slog.Error("failed to persist job result", "job_id", id, "error", err)
	}
}

// Get returns a copy of one job record.
func (s *JobService) Get(id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return snapshot(job), nil
}

// List returns copies of all jobs, newest first, optionally filtered by
// status. An empty status returns everything.
func (s *JobService) List(status model.JobStatus) []*model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if status != "" && job.Status != status {
			continue
		}
		out = append(out, snapshot(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreateDate.After(out[j].CreateDate) })
	return out
}

// Cancel stops a job. A pending job is finalized immediately; a running job
// has its context cancelled and is finalized by its own runner goroutine. A
// job already finished is left untouched.
func (s *JobService) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Terminal() {
		return nil
	}
	if cancelFn, running := s.cancels[id]; running {
		cancelFn()
		return nil
	}
	job.Cancel()
	return s.persistLocked(job)
}

// Stats counts jobs by status plus a total, for the dashboard.
func (s *JobService) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{"total": len(s.jobs)}
	for _, job := range s.jobs {
		out[string(job.Status)]++
	}
	return out
}

// SweepExpired removes finished jobs whose end date fell outside the
// retention window and reports how many were removed. Pending and running
// jobs are never swept.
func (s *JobService) SweepExpired() (int, error) {
	if s.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -s.RetentionDays)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if !job.Terminal() || job.EndDate == nil || job.EndDate.After(cutoff) {
			continue
		}
		if err := os.Remove(s.jobPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("removing job record %s: %w", id, err)
		}
		delete(s.jobs, id)
		removed++
	}
	if removed > 0 {
		slog.Info("swept expired jobs", "removed", removed, "retention_days", s.RetentionDays)
	}
	return removed, nil
}

// Close cancels every running job and waits for their goroutines to drain.
func (s *JobService) Close() {
	s.mu.Lock()
	for _, cancelFn := range s.cancels {
		cancelFn()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *JobService) jobPath(id string) string {
	return filepath.Join(s.StoreDir, id+".json")
}

// persistLocked writes one job record atomically: marshal, write to a
// sibling temp file, rename over the final path. Callers hold s.mu.
func (s *JobService) persistLocked(job *model.Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.Id, err)
	}
	path := s.jobPath(job.Id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing job record %s: %w", job.Id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing job record %s: %w", job.Id, err)
	}
	return nil
}

// snapshot copies a job so callers can read it without holding the lock.
func snapshot(j *model.Job) *model.Job {
	c := *j
	c.Outputs = append([]*model.JobOutput(nil), j.Outputs...)
	return &c
}

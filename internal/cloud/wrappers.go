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

// Package cloud provides components for interacting with Google Cloud services.
// This file implements a wrapper around bulk object downloads. The wrapper
// uses the Decorator design pattern to add extra behavior to a plain fetch
// function without altering it: rate limiting, batch pauses, and an
// escalating retry policy.
//
// Why this is important:
//   - Rate Limiting: A render job fetches dozens of clips in a burst. Pacing
//     the fetches keeps the storage API quota healthy and leaves bandwidth for
//     the interactive paths.
//   - Batch Pauses: Long bulk runs take a longer break every N fetches so the
//     pipeline never saturates the link for an extended stretch.
//   - Retry Policy: Downloads fail for transient reasons. The wrapper waits
//     out an escalating backoff schedule keyed by how many times in a row an
//     object has failed, and moves the object to a permanent-failure set once
//     the schedule is exhausted. Long render jobs survive blips without
//     retrying a truly dead object forever.
//
// Structs:
//   - PacerPolicy: The pacing and retry policy as an explicit value, so the
//     schedule arithmetic is testable without any clocks or sleeping.
//   - QuotaAwareDownloader: Wraps a DownloadFunc with a rate limiter, the
//     policy, and the per-object failure bookkeeping.
//
// Functions:
//   - NewPacerPolicy: Normalizes the Downloads config into a policy.
//   - NewQuotaAwareDownloader: Constructor applying a policy to a fetch func.
//   - Download: The paced, retrying fetch used by the render pipeline.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrPermanentFailure marks an object whose backoff schedule is exhausted.
// Callers test for it with errors.Is and skip the object instead of failing
// the whole run.
var ErrPermanentFailure = errors.New("download permanently failed")

// DefaultBackoffSchedule is the wait applied before each retry when the
// configuration does not supply its own schedule, indexed by how many times
// in a row the object has failed.
var DefaultBackoffSchedule = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	60 * time.Minute,
	120 * time.Minute,
}

// DownloadFunc fetches one object from a bucket into a local destination
// file. The storage service provides the real implementation; tests inject
// their own.
type DownloadFunc func(ctx context.Context, bucket, object, dest string) error

// PacerPolicy holds the pacing and retry rules as plain values. Keeping the
// policy separate from the downloader keeps the schedule arithmetic pure:
// BackoffFor and BatchPauseAfter never sleep, never touch a clock, and are
// exercised directly by unit tests.
type PacerPolicy struct {
	MinDelay   time.Duration   // floor between fetch starts.
	Burst      int             // short-term burst allowance for the limiter.
	BatchSize  int             // fetches between batch pauses, zero disables pausing.
	BatchPause time.Duration   // length of the pause at each batch boundary.
	MaxRetries int             // extra attempts within a single Download call.
	Backoff    []time.Duration // wait before retry n is Backoff[n-1].
}

// NewPacerPolicy normalizes the Downloads configuration into a policy. A zero
// requests-per-minute setting falls back to one request per second so a blank
// config cannot stall the pipeline forever.
func NewPacerPolicy(cfg *Downloads) *PacerPolicy {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	backoff := make([]time.Duration, 0, len(cfg.BackoffMinutes))
	for _, m := range cfg.BackoffMinutes {
		backoff = append(backoff, time.Duration(m)*time.Minute)
	}
	if len(backoff) == 0 {
		backoff = DefaultBackoffSchedule
	}

	return &PacerPolicy{
		MinDelay:   time.Minute / time.Duration(rpm),
		Burst:      burst,
		BatchSize:  cfg.BatchSize,
		BatchPause: time.Duration(cfg.BatchPauseSeconds) * time.Second,
		MaxRetries: retries,
		Backoff:    backoff,
	}
}

// BackoffFor returns the scheduled wait for an object that has now failed
// `failures` times in a row. The second return is false once the count has
// walked off the end of the schedule, meaning the object should join the
// permanent-failure set instead of being retried.
func (p *PacerPolicy) BackoffFor(failures int) (time.Duration, bool) {
	if failures < 1 || failures > len(p.Backoff) {
		return 0, false
	}
	return p.Backoff[failures-1], true
}

// BatchPauseAfter reports whether a pause is due once `fetches` downloads
// have completed since the last pause, and how long it should last.
func (p *PacerPolicy) BatchPauseAfter(fetches int) (time.Duration, bool) {
	if p.BatchSize <= 0 || p.BatchPause <= 0 || fetches < p.BatchSize {
		return 0, false
	}
	return p.BatchPause, true
}

// QuotaAwareDownloader is a decorator that adds pacing and retries to a
// DownloadFunc. The zero value is not usable; always construct it through
// NewQuotaAwareDownloader so the limiter, policy, and bookkeeping maps are
// populated. Safe for concurrent use by the fetch worker pool.
type QuotaAwareDownloader struct {
	fetch   DownloadFunc
	limiter *rate.Limiter
	policy  *PacerPolicy

	mu        sync.Mutex
	fetches   int                 // completed fetch attempts since the last batch pause.
	failures  map[string]int      // consecutive failures keyed by bucket/object.
	permanent map[string]struct{} // objects whose schedule is exhausted.
}

// NewQuotaAwareDownloader builds a paced downloader around fetch.
//
// Inputs:
//   - fetch: The underlying single-object fetch to decorate.
//   - policy: The pacing and retry policy, usually from NewPacerPolicy.
//
// Outputs:
//   - *QuotaAwareDownloader: The decorated, ready-to-use downloader.
func NewQuotaAwareDownloader(fetch DownloadFunc, policy *PacerPolicy) *QuotaAwareDownloader {
	return &QuotaAwareDownloader{
		fetch:     fetch,
		limiter:   rate.NewLimiter(rate.Every(policy.MinDelay), policy.Burst),
		policy:    policy,
		failures:  make(map[string]int),
		permanent: make(map[string]struct{}),
	}
}

// Download fetches one object, waiting on the rate limiter before every
// attempt, honoring batch pauses, and sleeping out the backoff schedule
// between failures. The context cancels every wait, so a cancelled render job
// releases its download slot immediately and a cancellation never counts
// against the object's failure record.
//
// Logic Flow:
//  1. Skip immediately when the object is already in the permanent set.
//  2. Pause when a batch boundary has been crossed, then wait on the limiter.
//  3. Fetch. Success clears the object's consecutive-failure count.
//  4. On failure, bump the count and look up the backoff schedule. A count
//     past the end of the schedule moves the object to the permanent set.
//  5. Retry within this call until the per-call attempt budget runs out; the
//     consecutive-failure count survives across calls, so a later call for
//     the same object resumes deeper in the schedule.
//
// Inputs:
//   - ctx: The context for the whole retry loop.
//   - bucket: The source bucket name.
//   - object: The bucket-relative object name.
//   - dest: The local file path to write.
//
// Outputs:
//   - error: nil on success, the context error on cancellation, an
//     ErrPermanentFailure wrap when the schedule is exhausted, or the last
//     fetch error once this call's attempt budget runs out.
func (q *QuotaAwareDownloader) Download(ctx context.Context, bucket, object, dest string) error {
	key := bucket + "/" + object
	if q.isPermanent(key) {
		return fmt.Errorf("download gs://%s/%s: %w", bucket, object, ErrPermanentFailure)
	}

	for attempt := 0; ; attempt++ {
		if pause, due := q.takeBatchPause(); due {
			slog.Info("batch boundary reached, pausing downloads", "pause", pause.String())
			if err := sleepContext(ctx, pause); err != nil {
				return err
			}
		}
		if err := q.limiter.Wait(ctx); err != nil {
			return err
		}

		err := q.fetch(ctx, bucket, object, dest)
		q.countFetch()
		if err == nil {
			q.clearFailures(key)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		count := q.recordFailure(key)
		wait, retriable := q.policy.BackoffFor(count)
		if !retriable {
			q.markPermanent(key)
			slog.Error("download schedule exhausted, marking object permanently failed",
				"bucket", bucket,
				"object", object,
				"consecutive_failures", count,
				"error", err)
			return fmt.Errorf("download gs://%s/%s: %w after %d consecutive failures: %w",
				bucket, object, ErrPermanentFailure, count, err)
		}
		if attempt >= q.policy.MaxRetries {
			return fmt.Errorf("download gs://%s/%s failed (consecutive failure %d, retry eligible after %s): %w",
				bucket, object, count, wait.String(), err)
		}

		slog.Warn("download failed, backing off",
			"bucket", bucket,
			"object", object,
			"consecutive_failures", count,
			"wait", wait.String(),
			"error", err)
		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
	}
}

// PermanentFailures returns the objects that have exhausted their backoff
// schedule, sorted for stable logging.
func (q *QuotaAwareDownloader) PermanentFailures() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.permanent))
	for key := range q.permanent {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// takeBatchPause checks whether enough fetches have completed to owe a batch
// pause. Crossing the boundary resets the counter, so only one caller pays
// the pause.
func (q *QuotaAwareDownloader) takeBatchPause() (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pause, due := q.policy.BatchPauseAfter(q.fetches)
	if due {
		q.fetches = 0
	}
	return pause, due
}

func (q *QuotaAwareDownloader) countFetch() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fetches++
}

func (q *QuotaAwareDownloader) isPermanent(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.permanent[key]
	return ok
}

func (q *QuotaAwareDownloader) markPermanent(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.permanent[key] = struct{}{}
	delete(q.failures, key)
}

func (q *QuotaAwareDownloader) recordFailure(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failures[key]++
	return q.failures[key]
}

func (q *QuotaAwareDownloader) clearFailures(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.failures, key)
}

// sleepContext waits out d unless the context is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

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

// This file defines the asynchronous job endpoints. Submitting returns the
// pending job record immediately with a 202; callers poll the job by id until
// it reaches a terminal state and read the outputs from the record.
//
// Functions:
//   - JobRouter: Registers the "/jobs" route group.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
)

// standardizeRequest is the body for POST /jobs/standardize. Naming an object
// re-encodes that one raw clip; an empty body queues the whole raw folder.
type standardizeRequest struct {
	Object string `json:"object"`
}

// JobRouter sets up the API routes for submitting and managing jobs.
//
// Inputs:
//   - r: A *gin.RouterGroup the job routes are added under (e.g. "/api/v1").
//   - jobs: The job service handling persistence, concurrency, and execution.
//
// This function defines the following endpoints:
//   - POST /jobs/render: Queues a video_sequence job from sequence parameters.
//   - POST /jobs/standardize: Queues a single_video job for the named raw clip,
//     or a batch_process job over the whole raw folder when no object is named.
//   - POST /jobs/cleanup: Queues an on-demand maintenance sweep.
//   - GET /jobs: Lists jobs, newest first, with optional status/type filters and a limit.
//   - GET /jobs/:id: Returns one job record.
//   - DELETE /jobs/:id: Cancels a pending or running job.
func JobRouter(r *gin.RouterGroup, jobs *services.JobService) {
	group := r.Group("/jobs")
	{
		// Handler for POST /jobs/render
		group.POST("/render", func(c *gin.Context) {
			params, ok := bindSequenceParams(c)
			if !ok {
				return
			}
			submitJob(c, jobs, model.NewJob(model.JobTypeVideoSequence, params))
		})

		// Handler for POST /jobs/standardize
		group.POST("/standardize", func(c *gin.Context) {
			req := &standardizeRequest{}
			// The body is optional; an empty or absent body means the batch form.
			if c.Request.ContentLength > 0 {
				if err := c.ShouldBindJSON(req); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
					return
				}
			}
			var job *model.Job
			if object := strings.TrimSpace(req.Object); object != "" {
				job = model.NewJob(model.JobTypeSingleVideo, nil)
				job.Object = object
			} else {
				job = model.NewJob(model.JobTypeBatchProcess, nil)
			}
			submitJob(c, jobs, job)
		})

		// Handler for POST /jobs/cleanup
		group.POST("/cleanup", func(c *gin.Context) {
			submitJob(c, jobs, model.NewJob(model.JobTypeCleanup, nil))
		})

		// Handler for GET /jobs?status=<s>&type=<t>&limit=<n>
		group.GET("", func(c *gin.Context) {
			limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
			if err != nil || limit <= 0 {
				limit = 50
			}
			jobType := c.Query("type")

			out := make([]*model.Job, 0, limit)
			for _, job := range jobs.List(model.JobStatus(c.Query("status"))) {
				if jobType != "" && string(job.Type) != jobType {
					continue
				}
				out = append(out, job)
				if len(out) == limit {
					break
				}
			}
			c.JSON(http.StatusOK, out)
		})

		// Handler for GET /jobs/:id
		group.GET("/:id", func(c *gin.Context) {
			job, err := jobs.Get(c.Param("id"))
			if err != nil {
				respondJobError(c, err)
				return
			}
			c.JSON(http.StatusOK, job)
		})

		// Handler for DELETE /jobs/:id
		group.DELETE("/:id", func(c *gin.Context) {
			if err := jobs.Cancel(c.Param("id")); err != nil {
				respondJobError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
		})
	}
}

// submitJob queues the job and answers 202 with its record, so the caller
// has the id to poll before any work has happened. The response reads the
// record back through the service because the runner goroutine owns the
// submitted instance the moment Submit returns.
func submitJob(c *gin.Context, jobs *services.JobService, job *model.Job) {
	if err := jobs.Submit(job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not queue job: " + err.Error()})
		return
	}
	queued, err := jobs.Get(job.Id)
	if err != nil {
		c.JSON(http.StatusAccepted, gin.H{"id": job.Id})
		return
	}
	c.JSON(http.StatusAccepted, queued)
}

func respondJobError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

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

// Package api contains the gin route groups that make up the REST surface.
// Each router function takes the route group it should attach to plus the
// services its handlers call, so the server wires everything together in one
// place and the handlers stay free of globals.
//
// This file defines the synchronous sequence endpoints: generation, analysis,
// and variation runs all happen inside the request and return the plan
// directly. Long-running work (anything that touches ffmpeg) goes through
// the job endpoints instead.
//
// Functions:
//   - SequenceRouter: Registers the "/sequences" route group.
package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/dex-codes/ffmpeg-processor/internal/core/sequence"
	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
)

// SequenceRouter sets up the API routes for sequence generation and analysis.
//
// Inputs:
//   - r: A *gin.RouterGroup the sequence routes are added under (e.g. "/api/v1").
//   - sequences: The sequence service the handlers run generations through.
//
// This function defines the following endpoints:
//   - POST /sequences/generate: Builds one constrained sequence and returns the plan.
//   - POST /sequences/analyze: Reports feasibility for the requested shape without building.
//   - POST /sequences/variation: Builds sequences graded for dissimilarity. A request
//     with "variations" of two or more returns a batch with pairwise similarity;
//     otherwise a single plan is built against the history of recent runs for the
//     same request shape.
func SequenceRouter(r *gin.RouterGroup, sequences *services.SequenceService) {
	group := r.Group("/sequences")
	{
		// Handler for POST /sequences/generate
		group.POST("/generate", func(c *gin.Context) {
			params, ok := bindSequenceParams(c)
			if !ok {
				return
			}
			outcome, err := sequences.Plan(c, params)
			if err != nil {
				respondSequenceError(c, err)
				return
			}
			c.JSON(http.StatusOK, outcome.Plan)
		})

		// Handler for POST /sequences/analyze
		group.POST("/analyze", func(c *gin.Context) {
			params, ok := bindSequenceParams(c)
			if !ok {
				return
			}
			report, err := sequences.Analyze(c, params)
			if err != nil {
				respondSequenceError(c, err)
				return
			}
			c.JSON(http.StatusOK, report)
		})

		// Handler for POST /sequences/variation
		group.POST("/variation", func(c *gin.Context) {
			params, ok := bindSequenceParams(c)
			if !ok {
				return
			}
			if params.Variations > 1 {
				batch, err := sequences.PlanBatch(c, params)
				if err != nil {
					respondSequenceError(c, err)
					return
				}
				c.JSON(http.StatusOK, batch)
				return
			}
			outcome, err := sequences.PlanVaried(c, params)
			if err != nil {
				respondSequenceError(c, err)
				return
			}
			c.JSON(http.StatusOK, outcome.Plan)
		})
	}
}

// bindSequenceParams decodes the request body into sequence parameters. On a
// malformed body it writes the 400 response itself and reports false.
func bindSequenceParams(c *gin.Context) (*model.SequenceParams, bool) {
	params := &model.SequenceParams{}
	if err := c.ShouldBindJSON(params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return nil, false
	}
	return params, true
}

// respondSequenceError maps a generation failure onto an HTTP status. An
// infeasible request is the caller's to fix, so it comes back as 422 with the
// feasibility report attached when the gate produced one. An unreachable
// inventory is an upstream failure. Anything else from the service is a
// rejected request.
func respondSequenceError(c *gin.Context, err error) {
	var infeasible *sequence.InfeasibleSequenceError
	var source *sequence.DataSourceError
	switch {
	case errors.As(err, &infeasible):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": infeasible.Error(), "report": infeasible.Report})
	case errors.As(err, &source):
		log.Printf("inventory unavailable: %v\n", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "clip inventory is unavailable"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

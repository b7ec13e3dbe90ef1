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

// This file defines the dashboard statistics endpoint, a single view over the
// job queue, the bucket folders, and the clip inventory.
//
// Functions:
//   - Dashboard: Sets up the "/stats" route group.
package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
)

// Dashboard configures the statistics endpoint backing an operations view.
// It creates a "/stats" route group nested under the main API router group.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the new "/stats" route group will be added.
//   - jobs: The job service, counted by status.
//   - store: The storage service, reported per pipeline folder.
//   - inventory: The clip inventory, reported as per-bucket clip totals.
//
// The handler assembles each section independently: a section whose backend
// is unreachable is logged and omitted rather than failing the whole
// response, so the dashboard stays useful during a partial outage.
func Dashboard(r *gin.RouterGroup, jobs *services.JobService, store *services.StorageService, inventory *services.InventoryService) {
	stats := r.Group("/stats")
	{
		// Register a handler for a GET request to the "/stats" endpoint.
		stats.GET("", func(c *gin.Context) {
			out := gin.H{}
			if jobs != nil {
				out["jobs"] = jobs.Stats()
			}
			if store != nil {
				folders, err := collectFolderStats(c, store)
				if err != nil {
					log.Printf("Error collecting folder stats: %v\n", err)
				} else {
					out["storage"] = folders
				}
			}
			if inventory != nil {
				totals, err := inventory.CategoryTotals(c)
				if err != nil {
					log.Printf("Error reading inventory totals: %v\n", err)
				} else {
					out["inventory"] = totals
				}
			}
			c.JSON(http.StatusOK, out)
		})
	}
}

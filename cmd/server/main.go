// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// *****************************************************************************************************//
// Package main is the entry point for the clip sequencing backend server.
//
// This application sets up and runs a web server using the Gin framework. It provides a REST API
// for constrained sequence generation, render jobs, and clip uploads. The server is instrumented
// with OpenTelemetry for logging, tracing, and metrics, providing observability into the
// application's performance.
//
// The main function initializes the application's configuration, sets up logging and telemetry,
// and initializes the application state, including clients for Google Cloud services. It mounts
// the API route groups for sequences, jobs, storage, and the dashboard.
//
// The server also sets up and manages a background listener on the raw-clip Pub/Sub
// subscription, which feeds the standardize workflow when new clips are uploaded to
// Google Cloud Storage, and a ticker-driven maintenance workflow that sweeps scratch
// objects and expired job records.
//
// Functions:
//   - main: The main entry point of the application. It sets up the server, configures routes,
//     initializes services, and handles graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/dex-codes/ffmpeg-processor/internal/api"
	"github.com/dex-codes/ffmpeg-processor/internal/telemetry"
)

// main is the primary entry point for the application.
// It orchestrates the setup of logging, telemetry, configuration, cloud services,
// the web server, API routes, and background listeners. It also handles graceful
// shutdown of the server upon receiving an interrupt signal.
func main() {
	// Initialize structured logging for the application.
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	// Create a new context that can be cancelled. This is the root context for the application.
	ctx, cancel := context.WithCancel(context.Background())
	// Defer the cancel function to be called when main exits, ensuring all child contexts are cancelled.
	defer cancel()

	// Load application configuration from TOML files.
	config := GetConfig()

	// Initialize OpenTelemetry for distributed tracing and metrics.
	_, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	// Initialize the application's state, including all necessary service clients,
	// the job queue, and the background workflows.
	InitState(ctx)
	slog.Info("Initialized State")

	// Set up the Gin web server with default middleware.
	r := gin.Default()

	// Add OpenTelemetry middleware to the Gin router to trace incoming requests.
	// This will automatically create spans for each request.
	r.Use(otelgin.Middleware("clip-sequencer-server"))

	// Configure Cross-Origin Resource Sharing (CORS) middleware.
	// Using cors.Default() provides a permissive configuration suitable for development,
	// allowing requests from any origin.
	r.Use(cors.Default())

	// Group routes under the "/api/v1" prefix.
	apiV1 := r.Group("/api/v1")
	{
		// Liveness probe. Returns the application name so a port collision
		// with some other service is obvious from the response body.
		apiV1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "application": config.Application.Name})
		})

		// Capability listing: the clip categories the inventory recognizes,
		// the profile every clip is normalized to, and the generation defaults
		// applied when a request leaves them unset.
		apiV1.GET("/capabilities", func(c *gin.Context) {
			keys := make([]string, 0, len(config.Categories))
			for key := range config.Categories {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			categories := make([]gin.H, 0, len(keys))
			for _, key := range keys {
				cat := config.Categories[key]
				categories = append(categories, gin.H{"key": key, "name": cat.Name, "definition": cat.Definition})
			}
			c.JSON(http.StatusOK, gin.H{
				"categories": categories,
				"profile": gin.H{
					"format":     config.Encoder.Format,
					"resolution": fmt.Sprintf("%dx%d", config.Encoder.Width, config.Encoder.Height),
					"frame_rate": config.Encoder.FrameRate,
				},
				"defaults": gin.H{
					"target_length": config.Sequence.TargetLength,
					"min_spacing":   config.Sequence.MinSpacing,
				},
			})
		})

		// Register the route groups for sequence generation, job management,
		// storage operations, and the statistics dashboard.
		api.SequenceRouter(apiV1, state.sequenceService)
		api.JobRouter(apiV1, state.jobService)
		api.StorageRouter(apiV1, state.storageService)
		api.Dashboard(apiV1, state.jobService, state.storageService, state.inventoryService)
	}

	// Configure the HTTP server with the address and handler.
	srv := &http.Server{
		Addr:         ":8080",
		Handler:      r,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	// Start the HTTP server in a separate goroutine so it doesn't block the main thread.
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("filed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready on port 8080")

	// Set up a channel to listen for OS interrupt signals (e.g., Ctrl+C).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	// Block until a signal is received on the quit channel.
	<-quit
	slog.Info("Shutdown Server ...")

	// Create a context with a timeout for the graceful shutdown.
	// This gives active requests 5 seconds to complete.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Attempt to gracefully shut down the server.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}

	// Stop the background workflows and drain running jobs so their final
	// state is persisted before the process exits.
	ShutdownState()

	log.Println("Server exiting")
}

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

// Package main contains the setup and initialization logic for the application's state.
// This file is responsible for creating and managing a centralized state manager
// that holds all shared dependencies, such as configuration, Google Cloud service clients,
// and application-level services for sequence generation, storage, and job handling.
//
// It ensures that the application is configured correctly based on the environment,
// initializes all necessary clients (Storage, Pub/Sub, BigQuery, IAM), and starts
// background processes like the Pub/Sub listener and the maintenance workflow.
//
// Functions:
//   - SetupOS: Configures necessary environment variables for the application,
//     pointing to the correct configuration files.
//   - GetConfig: A singleton function that loads the application's configuration
//     from TOML files. It ensures the configuration is loaded only once.
//   - InitState: The core initialization function that creates all service clients,
//     configures the application services, wires the job dispatcher, and starts
//     background workflows and the Pub/Sub listener.
//   - ShutdownState: Stops the background workflows and drains the job queue.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/sequence"
	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
	"github.com/dex-codes/ffmpeg-processor/internal/core/workflow"
)

// StateManager holds all the shared dependencies for the application, acting as a
// centralized container for service clients and configurations. This avoids the
// need for global variables and makes dependency management cleaner.
type StateManager struct {
	config           *cloud.Config
	cloud            *cloud.ServiceClients
	inventoryService *services.InventoryService
	sequenceService  *services.SequenceService
	storageService   *services.StorageService
	jobService       *services.JobService
	maintenance      *workflow.MaintenanceWorkflow
}

// state is a package-level variable that holds the single instance of StateManager.
var state = &StateManager{}

// SetupOS sets the necessary environment variables that the configuration loader
// uses to find the correct TOML files.
//
// This function sets the prefix for the configuration directory and specifies
// the runtime environment (e.g., "local", "test", "prod"), allowing for
// environment-specific overrides of the base configuration.
//
// Outputs:
//   - error: An error if setting any of the environment variables fails.
func SetupOS() (err error) {
	// Set the directory where configuration files are located.
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	// Set the current runtime environment to "local". The config loader will
	// look for a ".env.local.toml" file to override base settings.
	err = os.Setenv(cloud.EnvConfigRuntime, "local")
	return err
}

// GetConfig provides a singleton instance of the application configuration.
// It ensures that the configuration is loaded from the file system only once.
// On the first call, it sets up the OS environment and loads the configuration
// from the TOML files. Subsequent calls return the cached configuration.
//
// Outputs:
//   - *cloud.Config: A pointer to the loaded application configuration struct.
func GetConfig() *cloud.Config {
	// If the config has not been loaded yet...
	if state.config == nil {
		// Set up the environment variables required for config loading.
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os environment: %v\n", err)
		}
		// Create a new, empty config struct.
		config := cloud.NewConfig()
		// Load the configuration from the .toml files into the struct.
		cloud.LoadConfig(config)
		// Store the loaded config in the state manager.
		state.config = config
	}
	// Return the cached config.
	return state.config
}

// InitState initializes the entire application state.
// It orchestrates the creation of all necessary services and clients based on the
// application configuration and wires them together.
//
// Inputs:
//   - ctx: The root context.Context for the application, used for managing
//     the lifecycle of client connections and background processes.
//
// This function performs the following steps:
//  1. Loads the application configuration.
//  2. Initializes all Google Cloud service clients (Storage, Pub/Sub, BigQuery, IAM).
//  3. Instantiates the application services (inventory, sequences, storage) with
//     the required client dependencies, and verifies the bucket is reachable.
//  4. Opens the durable job queue and recovers records from a previous process.
//  5. Builds the workflows, wires the job dispatcher in as the queue's runner,
//     and resumes any pending jobs.
//  6. Starts the maintenance ticker and the raw-clip Pub/Sub listener.
func InitState(ctx context.Context) {
	// Get the application configuration.
	config := GetConfig()

	// Initialize all the base Google Cloud service clients.
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}

	// Store the initialized clients in the global state.
	state.cloud = cloudClients

	// The attribute schema is shared by the inventory and the sequence engine.
	schema := sequence.Schema(config.Sequence.Schema)

	// Initialize the InventoryService with its dependencies.
	state.inventoryService = &services.InventoryService{
		BigqueryClient: cloudClients.BigQueryClient,
		DatasetName:    config.Inventory.DatasetName,
		ClipTable:      config.Inventory.ClipTable,
		NameColumn:     config.Inventory.NameColumn,
		LinkColumn:     config.Inventory.LinkColumn,
		Schema:         schema,
	}

	// Initialize the SequenceService with the inventory and the configured
	// generation defaults.
	state.sequenceService = &services.SequenceService{
		Inventory:     state.inventoryService,
		Schema:        schema,
		TargetLength:  config.Sequence.TargetLength,
		MinSpacing:    config.Sequence.MinSpacing,
		MaxAttempts:   config.Sequence.MaxAttempts,
		HistorySize:   config.Sequence.HistorySize,
		CompareWindow: config.Sequence.CompareWindow,
	}

	// Initialize the StorageService with its dependencies.
	state.storageService = &services.StorageService{
		StorageClient:   cloudClients.StorageClient,
		IAMClient:       cloudClients.IAMClient,
		SignerEmail:     config.Application.SignerServiceAccountEmail,
		ClipBucket:      config.Storage.ClipBucket,
		RenderBucket:    config.Storage.RenderBucket,
		RawFolder:       config.Storage.RawFolder,
		ProcessedFolder: config.Storage.ProcessedFolder,
		TempFolder:      config.Storage.TempFolder,
	}

	// Fail fast on an unreachable or misconfigured bucket, then make sure the
	// logical folders show up in the console.
	if err := state.storageService.CheckConnection(ctx); err != nil {
		panic(err)
	}
	if err := state.storageService.EnsureFolders(ctx); err != nil {
		panic(err)
	}

	// Open the job store. The runner is wired below, after the workflows that
	// execute jobs have been built.
	jobService, err := services.NewJobService(
		config.Jobs.StoreDir,
		config.Jobs.MaxConcurrent,
		config.Jobs.RetentionDays,
		nil)
	if err != nil {
		panic(err)
	}
	state.jobService = jobService

	// The render pipeline fetches clips through the paced downloader so a
	// large job cannot exhaust the storage API quota.
	downloader := cloud.NewQuotaAwareDownloader(
		state.storageService.DownloadToFile,
		cloud.NewPacerPolicy(&config.Downloads))

	// Build the workflows and route jobs to them through the dispatcher.
	standardize := workflow.NewClipStandardizeWorkflow(config, cloudClients, config.Encoder.BinaryPath)
	render := workflow.NewSequenceRenderWorkflow(config, cloudClients, state.sequenceService, downloader, config.Encoder.BinaryPath)
	state.maintenance = workflow.NewMaintenanceWorkflow(state.storageService, state.jobService)
	dispatcher := workflow.NewJobDispatcher(render, standardize, state.maintenance, state.storageService)
	state.jobService.Runner = dispatcher.Runner()

	// Restart work that was queued when the previous process stopped.
	if resumed := state.jobService.ResumePending(); resumed > 0 {
		slog.Info("resumed pending jobs", "count", resumed)
	}

	// Start the background maintenance sweeps.
	state.maintenance.StartTimer()

	// Configure and start the Pub/Sub listener that reacts to GCS bucket events.
	SetupListeners(cloudClients, standardize, ctx)
}

// ShutdownState stops the background workflows and drains the job queue so
// running jobs persist their final state, then releases the cloud clients.
func ShutdownState() {
	if state.maintenance != nil {
		state.maintenance.StopTimer()
	}
	if state.jobService != nil {
		state.jobService.Close()
	}
	if state.cloud != nil {
		state.cloud.Close()
	}
}

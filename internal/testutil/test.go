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

// Package test provides utility functions and mock data to support the
// application's test suite. It helps in setting up a consistent test
// environment, loading test-specific configurations, and providing sample
// notification payloads for the clip-processing workflows.
package test

import (
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
)

// EnvIntegration is the environment variable that switches on the tests
// needing live Google Cloud access and an FFmpeg binary. The unit suite runs
// without it; integration tests skip themselves when it is unset.
const EnvIntegration = "SEQ_INTEGRATION_TEST"

// StateManager acts as a simple in-memory cache for the application
// configuration during test runs. This prevents the need to reload
// configuration files for every test, speeding up the test suite.
type StateManager struct {
	config *cloud.Config
}

// state is a package-level variable that holds the singleton instance of
// StateManager, ensuring that the configuration is loaded only once per run.
var state = &StateManager{}

// HandleErr is a simple test helper function that checks if an error is not
// nil. If an error exists, it fails the test immediately by calling t.Errorf.
//
// Inputs:
//   - err: The error to check.
//   - t: The *testing.T object from the current test.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("Error reading config file: %v", err)
	}
}

// IntegrationEnabled reports whether the integration environment variable is
// set. TestMain functions use it to decide whether to stand up real cloud
// clients.
func IntegrationEnabled() bool {
	return os.Getenv(EnvIntegration) != ""
}

// RequireIntegration skips the calling test unless the integration
// environment is enabled. Integration tests need a reachable test bucket, a
// populated inventory, and ffmpeg on the PATH, so they only run when asked
// for explicitly.
//
// Inputs:
//   - t: The *testing.T object from the current test.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if !IntegrationEnabled() {
		t.Skipf("set %s=1 to run integration tests", EnvIntegration)
	}
}

// GetTestRawClipMessageText returns a JSON string that simulates a Pub/Sub
// notification message from Google Cloud Storage for a clip finalized in the
// raw upload folder. This payload is what triggers the clip-standardize
// workflow in production.
//
// Inputs:
//   - bucket: The bucket name to embed in the payload.
//   - objectName: The bucket-relative object name, including the folder prefix.
//
// Returns:
//   - A string containing the JSON payload of a GCS notification.
func GetTestRawClipMessageText(bucket string, objectName string) string {
	return fmt.Sprintf(`{
  "kind": "storage#object",
  "id": "%[1]s/%[2]s/1728615848664286",
  "selfLink": "https://www.googleapis.com/storage/v1/b/%[1]s/o/%[2]s",
  "name": "%[2]s",
  "bucket": "%[1]s",
  "generation": "1728615848664286",
  "metageneration": "1",
  "contentType": "video/mp4",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "storageClass": "STANDARD",
  "timeStorageClassUpdated": "2024-10-11T03:04:08.672Z",
  "size": "5242880",
  "md5Hash": "67c1rAU+1RYZzK5zp8iBkA==",
  "mediaLink": "https://storage.googleapis.com/download/storage/v1/b/%[1]s/o/%[2]s?generation=1728615848664286&alt=media",
  "metadata": { "touch": "18" },
  "crc32c": "IYeSTw==",
  "etag": "CN658+yrhYkDEAE="
}`, bucket, objectName)
}

// SetupOS configures the environment variables that the configuration loader
// (`cloud.LoadConfig`) depends on. By setting these variables, we can direct
// the loader to use the test-specific configuration files (e.g.,
// `configs/.env.test.toml`) instead of production or development ones.
//
// Returns:
//   - An error if setting any environment variable fails.
func SetupOS() (err error) {
	// Set the directory where the configuration files are located. Tests run
	// from their package directory, so integration runs usually point this at
	// the repository's configs directory; only the default is supplied here.
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
		if err != nil {
			return err
		}
	}
	// Set the runtime environment identifier to "test". This causes the loader
	// to look for a file named ".env.test.toml" for overrides.
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is a singleton accessor for the test configuration.
// It ensures that the configuration is loaded from TOML files only once and
// is cached in the package-level `state` variable for subsequent calls.
// This is the primary way tests should retrieve their configuration.
//
// Returns:
//   - A pointer to the loaded and cached cloud.Config struct.
func GetConfig() *cloud.Config {
	// Check if the config is already cached.
	if state.config == nil {
		// If not cached, set up the OS environment for the test configuration.
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		// Create a new, empty config struct.
		config := cloud.NewConfig()
		// Load the configuration from the TOML files into the struct.
		// `LoadConfig` handles the hierarchical loading (base file + test override).
		cloud.LoadConfig(config)
		// Cache the loaded config in our state manager.
		state.config = config
	}
	// Return the cached configuration.
	return state.config
}

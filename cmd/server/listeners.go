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

// Package main contains the logic for setting up and starting the Pub/Sub message listeners.
// These listeners are responsible for initiating backend processing workflows in response to
// events, such as new raw clip uploads to Google Cloud Storage.
//
// Functions:
//   - SetupListeners: Attaches the standardize workflow to the raw-clip
//     subscription listener and starts it.
package main

import (
	"context"
	"log/slog"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/workflow"
)

// rawClipSubscription is the logical name of the raw-clip upload subscription
// in the topic_subscriptions configuration table.
const rawClipSubscription = "RawClips"

// SetupListeners configures and starts the background Pub/Sub listeners.
// It attaches the clip standardize workflow to the raw-clip subscription so
// every upload notification re-encodes the new clip to the shared profile.
//
// Inputs:
//   - cloudClients: A struct containing all the initialized Google Cloud service clients.
//   - standardize: The workflow executed for each raw clip upload notification.
//   - ctx: The application's root context, used to manage the lifecycle of the listeners.
//
// Outputs:
//   - This function does not return any value. It starts the listeners as background goroutines.
func SetupListeners(cloudClients *cloud.ServiceClients, standardize *workflow.ClipStandardizeWorkflow, ctx context.Context) {
	listener, ok := cloudClients.PubSubListeners[rawClipSubscription]
	if !ok {
		// Without the subscription the API and CLI surfaces still work; only
		// the automatic reaction to bucket uploads is missing.
		slog.Warn("no raw clip subscription configured, bucket notifications disabled",
			"expected_key", rawClipSubscription)
		return
	}
	// Assign the standardize workflow as the command to be executed by the listener.
	listener.SetCommand(standardize)
	// Start the listener in a background goroutine. It will now begin receiving
	// and processing messages from its subscription.
	listener.Listen(ctx)
}

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
// This file defines a generic, reusable Pub/Sub message listener. The core idea
// is to abstract the complexity of receiving messages from a Pub/Sub
// subscription and to delegate the actual message processing to a "Command".
// The clip-standardize workflow hangs off such a listener: every raw clip
// upload notification becomes one command execution.
//
// Logic Flow:
//  1. An instance of PubSubListener is created with a client and a subscription ID.
//  2. A "Command" (a piece of business logic) is attached to this listener.
//  3. The `Listen` method is called, which starts an asynchronous background
//     process (a goroutine).
//  4. This goroutine continuously waits for new messages from the subscription.
//  5. When a message arrives, it's passed to the attached Command for processing.
//  6. The message is "acknowledged" (Ack'd) only if the Command completes
//     successfully, ensuring reliable, at-least-once message processing.
//  7. The entire process is instrumented with OpenTelemetry for tracing.
//
// Structs:
//   - PubSubListener: Manages the connection to a Pub/Sub subscription and
//     holds the command that will process incoming messages.
//
// Functions:
//   - NewPubSubListener: Constructor for creating a new PubSubListener.
//   - SetCommand: Attaches a processing command to the listener.
//   - Listen: Starts the background process to receive and handle messages.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubListener is a struct that encapsulates the components needed to listen
// to a specific Google Cloud Pub/Sub subscription. It acts as a wrapper that
// connects a subscription to a processing command. Since listeners have a
// life-cycle independent of individual API requests, they are considered a
// core "cloud" component.
type PubSubListener struct {
	client       *pubsub.Client       // The client for interacting with the Pub/Sub service.
	subscription *pubsub.Subscription // The specific subscription this listener will pull messages from.
	command      cor.Command          // The command to execute for each message received.
}

// NewPubSubListener is the constructor for creating a PubSubListener. It
// initializes the listener with a Pub/Sub client, the ID of the subscription
// to listen to, and the command that will process the messages.
//
// Inputs:
//   - pubsubClient: An authenticated *pubsub.Client for connecting to the service.
//   - subscriptionID: The string ID of the subscription (e.g., "raw-clip-uploads").
//   - command: A cor.Command that defines the business logic to execute on each
//     message. May be nil at construction time and attached later via SetCommand.
//
// Outputs:
//   - *PubSubListener: A pointer to the newly created and configured listener.
//   - error: Reserved for future construction failures; currently always nil.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	sub := pubsubClient.Subscription(subscriptionID)

	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
	return cmd, nil
}

// SetCommand is a setter method that attaches a command to the listener.
// This is useful for scenarios where the listener is created before the full
// processing chain (the command) is assembled. It ensures that a command is
// not accidentally overwritten.
//
// Inputs:
//   - command: The cor.Command to be executed when a message is received.
func (m *PubSubListener) SetCommand(command cor.Command) {
	// Only set the command if it hasn't been set already. This prevents
	// accidental overwrites and ensures the initial configuration is respected.
	if m.command == nil {
		m.command = command
	}
}

// Listen starts the asynchronous message receiving process. It runs in a
// separate goroutine so it doesn't block the main application thread. The
// server keeps handling API requests while messages are processed in the
// background.
//
// Inputs:
//   - ctx: A context.Context that controls the lifecycle of the listener. If
//     this context is canceled (e.g., during graceful shutdown), the message
//     receiving will stop.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("starting pub/sub listener", "subscription", m.subscription.String())

	go func() {
		// The tracer creates one span per message so a single clip's journey
		// through the pipeline can be followed end to end.
		tracer := otel.Tracer("message-listener")

		// The subscription.Receive method blocks and waits for messages. It
		// takes a callback function that will be executed for each message.
		err := m.subscription.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			spanCtx, span := tracer.Start(ctx, "receive-message")
			span.SetAttributes(attribute.String("msg", string(msg.Data)))
			slog.Debug("received pub/sub message", "subscription", m.subscription.String())

			// Create a new context for the Chain of Responsibility (CoR). This
			// context carries data through the steps of the processing command.
			chainCtx := cor.NewBaseContext()
			chainCtx.SetContext(spanCtx)
			chainCtx.Add(cor.CtxIn, string(msg.Data))

			m.command.Execute(chainCtx)

			// Ack only when the command chain finished cleanly. A message left
			// unacknowledged is redelivered after its deadline expires,
			// following the subscription's retry policy.
			if !chainCtx.HasErrors() {
				span.SetStatus(codes.Ok, "success")
				msg.Ack()
			} else {
				span.SetStatus(codes.Error, "failed")
				for _, e := range chainCtx.GetErrors() {
					slog.Error("error executing chain", "subscription", m.subscription.String(), "error", e)
				}
			}

			span.End()
		})

		if err != nil {
			slog.Error("error receiving pub/sub data", "subscription", m.subscription.String(), "error", err)
		}
	}()
}

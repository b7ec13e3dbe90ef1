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

// Package telemetry provides utilities for setting up and configuring
// application observability, including logging, tracing, and metrics.
// This file wires structured logging: slog emits JSON records shaped for
// Google Cloud Logging, with the active trace context attached to every
// record so log lines land next to their spans.
package telemetry

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// EnvLogFile overrides where the log file is written. Unset, the server logs
// beside its working directory.
const EnvLogFile = "SEQ_LOG_FILE"

const defaultLogFile = "sequencer.log"

// spanContextLogHandler wraps another slog.Handler and stamps each record
// with the OpenTelemetry trace context found on the call's context, using the
// field names Cloud Logging correlates on.
// See: https://cloud.google.com/logging/docs/structured-logging#special-payload-fields
type spanContextLogHandler struct {
	slog.Handler
}

func handlerWithSpanContext(handler slog.Handler) *spanContextLogHandler {
	return &spanContextLogHandler{Handler: handler}
}

// Handle adds the trace ID, span ID, and sampling flag to the record when the
// context carries a valid span, then delegates to the wrapped handler.
func (t *spanContextLogHandler) Handle(ctx context.Context, record slog.Record) error {
	if s := trace.SpanContextFromContext(ctx); s.IsValid() {
		record.AddAttrs(
			slog.Any("logging.googleapis.com/trace", s.TraceID()),
			slog.Any("logging.googleapis.com/spanId", s.SpanID()),
			slog.Bool("logging.googleapis.com/trace_sampled", s.TraceFlags().IsSampled()),
		)
	}
	return t.Handler.Handle(ctx, record)
}

// replacer renames slog's default attribute keys to the ones Cloud Logging
// parses natively. Without the rename the console shows every record at
// default severity with ingestion-time timestamps.
func replacer(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		a.Key = "severity"
		// Cloud Logging's severity enum spells this one differently.
		if level := a.Value.Any().(slog.Level); level == slog.LevelWarn {
			a.Value = slog.StringValue("WARNING")
		}
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// SetupLogging configures both logging paths the application uses: the
// standard log package (kept for the handful of fire-and-forget call sites)
// and slog as the structured default.
//
// Logic Flow:
//  1. Open the log file and build a writer that tees to it and stdout. A file
//     that cannot be opened downgrades to stdout-only rather than failing
//     startup.
//  2. Point the standard log package at the shared writer.
//  3. Install a JSON slog handler with the Cloud Logging key renames, wrapped
//     by the span-context handler, as the process-wide default at Info level.
func SetupLogging() {
	logFile := os.Getenv(EnvLogFile)
	if logFile == "" {
		logFile = defaultLogFile
	}

	var out io.Writer = os.Stdout
	if file, err := os.Create(logFile); err == nil {
		out = io.MultiWriter(os.Stdout, file)
	} else {
		log.Printf("could not open log file %s: %v", logFile, err)
	}

	log.SetOutput(out)
	log.SetPrefix("[INFO] ")
	log.SetFlags(log.Ldate | log.Ltime)

	jsonHandler := slog.NewJSONHandler(out, &slog.HandlerOptions{ReplaceAttr: replacer})
	slog.SetDefault(slog.New(handlerWithSpanContext(jsonHandler)))
	slog.SetLogLoggerLevel(slog.LevelInfo)
}

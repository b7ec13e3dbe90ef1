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

// Package cor (Chain of Responsibility) provides the fundamental building
// blocks for creating workflows. This file defines the core interfaces that
// govern the behavior of all components within the pattern. Commands, chains,
// and contexts are all expressed as interfaces so the render pipeline can mix
// concrete steps, nested chains, and test doubles interchangeably.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are constant keys used to manage the primary data flow
// within a BaseChain.
const (
	// CtxIn is the default key for the primary input of a command. The chain
	// populates it with the output of the previous command.
	CtxIn = "__IN__"
	// CtxOut is the default key where a command places its primary output.
	// The chain picks the value up and hands it to the next command.
	CtxOut = "__OUT__"
)

// Context is the shared state object passed through a chain of commands. It
// acts as a property bag for a single workflow execution, carrying data,
// errors, and temp-file bookkeeping between commands.
type Context interface {
	// SetContext sets the standard Go `context.Context`, which carries
	// cancellation signals and OpenTelemetry trace information.
	SetContext(context context.Context)

	// GetContext retrieves the standard Go `context.Context`.
	GetContext() context.Context

	// Add stores a key-value pair in the context. This is the primary way
	// commands share data. It returns the Context for fluent chaining.
	Add(key string, value interface{}) Context

	// AddError records an error that occurred within a command. The key
	// should typically be the name of the command that produced the error.
	AddError(key string, err error)

	// GetErrors returns a map of all errors collected during the workflow.
	GetErrors() map[string]error

	// Get retrieves a value from the context by its key.
	Get(key string) interface{}

	// Remove deletes a key-value pair from the context.
	Remove(key string)

	// HasErrors checks if any errors have been recorded in the context.
	HasErrors() bool

	// AddTempFile tracks a scratch file created during the workflow so the
	// context can clean it up at the end.
	AddTempFile(file string)

	// GetTempFiles returns all tracked scratch file paths.
	GetTempFiles() []string

	// Close removes every tracked scratch file. Defer it at the start of a
	// workflow execution.
	Close()
}

// Executable is a simple interface for any object that has a core execution
// logic.
type Executable interface {
	// Execute contains the primary business logic of the object. It reads its
	// inputs from the Context and writes its outputs back to it.
	Execute(context Context)
}

// Command represents an atomic, testable, and thread-safe unit of work. It is
// the fundamental building block of a workflow.
type Command interface {
	Executable

	// GetName returns the unique name of the command, used for logging and
	// telemetry.
	GetName() string

	// GetInputParam returns the key that the command will use to look up its
	// primary input in the Context.
	GetInputParam() string

	// GetOutputParam returns the key that the command will use to store its
	// primary output in the Context.
	GetOutputParam() string

	// IsExecutable checks if the command can be run with the current state of
	// the Context. This is a precondition check before calling Execute.
	IsExecutable(context Context) bool

	// GetTracer returns the OpenTelemetry tracer for this command.
	GetTracer() trace.Tracer

	// GetMeter returns the OpenTelemetry meter for creating metrics.
	GetMeter() metric.Meter

	// GetSuccessCounter returns a metric counter for successful executions.
	GetSuccessCounter() metric.Int64Counter

	// GetErrorCounter returns a metric counter for failed executions.
	GetErrorCounter() metric.Int64Counter
}

// Chain represents a sequence of commands. A Chain is itself a Command, so
// chains can be nested inside other chains. The Chain orchestrates the
// execution of its child commands and the piping of data between them.
type Chain interface {
	Command

	// ContinueOnFailure tells the chain whether to keep executing after one
	// of its commands records an error.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the execution sequence.
	AddCommand(command Command) Chain
}

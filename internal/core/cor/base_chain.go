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
// blocks for creating workflows as a sequence of commands. This file defines
// `BaseChain`, the default implementation of the `Chain` interface.
//
// Logic Flow:
// A `BaseChain` is itself a `Command`, allowing chains to be nested within
// other chains. Its job is to run its commands in order, tracing each one,
// and to pipe data between them:
//
//  1. `Execute` is called with a shared context and opens a span covering the
//     whole chain.
//  2. For each command, a child span is created and the Go context on the
//     shared context is pointed at it, so work inside the command is traced
//     under that command's span.
//  3. If the context already carries errors and the chain is not configured
//     to continue on failure, execution stops.
//  4. After each command runs, the Go context is reset to the chain's own
//     span context, keeping the trace hierarchy flat instead of nesting every
//     command under its predecessor.
//  5. The value the command left in `CtxOut` is moved to `CtxIn`, making the
//     output of one command the input of the next.
//  6. When the loop ends, the chain span's status reflects whether the
//     context accumulated any errors.
package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain is the default implementation of the Chain interface. It holds a
// slice of commands to be executed sequentially.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool      // Whether to keep running commands after one fails.
	commands          []Command // The ordered list of commands this chain executes.
}

// NewBaseChain is the constructor for BaseChain.
//
// Inputs:
//   - name: A string name for this chain instance, used for logging and telemetry.
//
// Outputs:
//   - *BaseChain: A pointer to the newly instantiated chain.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

// ContinueOnFailure sets the error handling behavior of the chain. When true,
// the chain executes all its commands even if some record errors; when false
// (the default), the chain stops at the first failure.
//
// Outputs:
//   - Chain: The chain instance, allowing for fluent method chaining.
func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

// AddCommand appends a command to the end of the chain's execution sequence.
//
// Outputs:
//   - Chain: The chain instance, allowing for fluent method chaining.
func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// IsExecutable checks if the chain can be executed. For a chain, this simply
// means that a valid Go context exists.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context.GetContext() != nil
}

// Execute orchestrates the sequential execution of all commands in the chain.
//
// Inputs:
//   - chCtx: The shared `cor.Context` for the entire workflow execution.
func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()

	// One span covers the whole chain; each command gets a child span below.
	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()

	for _, command := range c.commands {
		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())

		// A failure earlier in the chain stops the run unless the chain was
		// built with ContinueOnFailure(true).
		if chCtx.HasErrors() && !c.continueOnFailure {
			commandSpan.SetStatus(codes.Error, "previous error on chain; skipping execution")
			commandSpan.End()
			break
		}

		if command.IsExecutable(chCtx) {
			// Point the shared context at the command's span so nested work
			// is traced under it, then restore the chain's context afterward
			// to keep sibling commands at the same trace depth.
			chCtx.SetContext(commandContext)
			command.Execute(chCtx)
			chCtx.SetContext(outerCtx)
		} else {
			commandSpan.SetStatus(codes.Error, fmt.Sprintf("command not executable: %s", command.GetName()))
		}

		if chCtx.HasErrors() {
			commandSpan.SetStatus(codes.Error, "error during or after command execution")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed successfully")
		}
		commandSpan.End()

		// Pipe the output of the command that just ran into the input slot
		// for the next one.
		outputValue := chCtx.Get(CtxOut)
		chCtx.Remove(CtxIn)
		if outputValue != nil {
			chCtx.Add(CtxIn, outputValue)
		}
		chCtx.Remove(CtxOut)
	}

	if !chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Ok, "chain completed successfully")
	} else {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
	}
}

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
// blocks for creating workflows. This file defines `BaseContext`, the default
// implementation of the `Context` interface.
//
// The context is the shared state that travels through a chain: arbitrary
// key-value data, errors collected from any command, the scratch files a
// render leaves on disk, and the standard Go `context.Context` carrying
// cancellation and trace information.
package cor

import (
	"context"
	"log/slog"
	"os"
)

// BaseContext is the default implementation of the Context interface. It
// holds the shared state for one workflow execution. It is not safe for
// concurrent mutation; each execution gets its own instance.
type BaseContext struct {
	data      map[string]interface{} // Arbitrary key-value data shared between commands.
	errors    map[string]error       // Errors keyed by the command name that produced them.
	tempFiles []string               // Scratch files to delete when the workflow finishes.
	context   context.Context        // The standard Go context for cancellation and tracing.
}

// NewBaseContext creates an empty context with all internal collections
// initialized.
//
// Outputs:
//   - Context: A new, empty context object.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		tempFiles: make([]string, 0),
	}
}

// SetContext sets the underlying standard Go context. The BaseChain uses this
// to scope OpenTelemetry spans per command.
func (c *BaseContext) SetContext(context context.Context) {
	c.context = context
}

// GetContext retrieves the underlying standard Go context.
func (c *BaseContext) GetContext() context.Context {
	return c.context
}

// Close removes every scratch file tracked during the workflow. A render
// chain defers this so partial downloads and intermediate encodes never
// accumulate on disk.
func (c *BaseContext) Close() {
	for _, file := range c.GetTempFiles() {
		err := os.Remove(file)
		if err != nil {
			slog.Warn("failed to remove temporary file", "file", file, "error", err)
		}
	}
}

// Add stores a key-value pair in the context's data map. It returns the
// context instance for fluent chaining.
func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

// AddTempFile adds a file path to the list of scratch files needing cleanup.
func (c *BaseContext) AddTempFile(file string) {
	c.tempFiles = append(c.tempFiles, file)
}

// GetTempFiles returns the slice of all tracked scratch file paths.
func (c *BaseContext) GetTempFiles() []string {
	return c.tempFiles
}

// AddError adds an error to the context's error map, keyed by the command
// name.
func (c *BaseContext) AddError(key string, err error) {
	c.errors[key] = err
}

// GetErrors returns the map of all errors collected during the workflow.
func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

// Get retrieves a value from the context's data map, or nil when the key does
// not exist.
func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

// Remove deletes a key-value pair from the context's data map.
func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

// HasErrors checks if any errors have been added to the context.
func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}

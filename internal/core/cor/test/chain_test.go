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

// Package cor_test exercises the chain framework with plain in-memory
// commands: the data piping between commands, the stop-on-failure rule, and
// the scratch-file cleanup on the context.
package cor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dex-codes/ffmpeg-processor/internal/core/cor"
	"github.com/stretchr/testify/assert"
)

// appendCommand is a minimal command that appends a suffix to its string
// input, or records a synthetic failure.
type appendCommand struct {
	cor.BaseCommand
	suffix string
	fail   bool
	ran    bool
}

func newAppendCommand(name string, suffix string) *appendCommand {
	return &appendCommand{BaseCommand: *cor.NewBaseCommand(name), suffix: suffix}
}

func (c *appendCommand) Execute(ctx cor.Context) {
	c.ran = true
	if c.fail {
		ctx.AddError(c.GetName(), errors.New("synthetic failure"))
		return
	}
	in, _ := ctx.Get(c.GetInputParam()).(string)
	ctx.Add(c.GetOutputParam(), in+c.suffix)
}

func TestChainPipesOutputToInput(t *testing.T) {
	first := newAppendCommand("plan", "-planned")
	second := newAppendCommand("render", "-rendered")

	chain := cor.NewBaseChain("test-chain")
	chain.AddCommand(first).AddCommand(second)

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, "clip")

	chain.Execute(chainCtx)

	assert.True(t, first.ran)
	assert.True(t, second.ran)
	assert.False(t, chainCtx.HasErrors())
	// The final flip-flop leaves the last output in the input slot.
	assert.Equal(t, "clip-planned-rendered", chainCtx.Get(cor.CtxIn))
	assert.Nil(t, chainCtx.Get(cor.CtxOut))
}

func TestChainStopsOnFirstFailure(t *testing.T) {
	first := newAppendCommand("broken", "-x")
	first.fail = true
	second := newAppendCommand("after", "-y")

	chain := cor.NewBaseChain("failing-chain")
	chain.AddCommand(first).AddCommand(second)

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, "clip")

	chain.Execute(chainCtx)

	assert.True(t, first.ran)
	assert.False(t, second.ran)
	assert.True(t, chainCtx.HasErrors())
	assert.Contains(t, chainCtx.GetErrors(), "broken")
}

func TestChainContinueOnFailure(t *testing.T) {
	first := newAppendCommand("broken", "-x")
	first.fail = true
	second := newAppendCommand("cleanup", "-cleaned")

	chain := cor.NewBaseChain("tolerant-chain")
	chain.ContinueOnFailure(true)
	chain.AddCommand(first).AddCommand(second)

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, "clip")

	chain.Execute(chainCtx)

	assert.True(t, first.ran)
	assert.True(t, second.ran)
	assert.True(t, chainCtx.HasErrors())
}

func TestChainSkipsCommandWithoutInput(t *testing.T) {
	orphan := newAppendCommand("orphan", "-z")
	orphan.InputParamName = "missing-key"

	chain := cor.NewBaseChain("skip-chain")
	chain.AddCommand(orphan)

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, "clip")

	chain.Execute(chainCtx)

	assert.False(t, orphan.ran)
	assert.False(t, chainCtx.HasErrors())
}

func TestContextCloseRemovesTempFiles(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "partial-download.mp4")
	assert.NoError(t, os.WriteFile(scratch, []byte("data"), 0o644))

	chainCtx := cor.NewBaseContext()
	chainCtx.AddTempFile(scratch)
	chainCtx.Close()

	_, err := os.Stat(scratch)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

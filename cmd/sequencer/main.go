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

// Package main is the entry point for the sequencer command line tool.
//
// The tool drives the clip sequencing engine without the server: it analyzes
// feasibility, builds constrained sequences, generates variation batches, and
// runs full render jobs. The inventory comes either from a local CSV file
// (--source) or from the BigQuery table in the TOML configuration, so the
// generation verbs work offline against a spreadsheet export while render
// uses the same cloud wiring as the service.
//
// Functions:
//   - main: Loads the configuration and executes the command tree.
//   - newRootCmd: Builds the cobra command tree and binds the flags.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
)

func main() {
	// Best-effort: load .env if present so the config loader and the cloud
	// SDKs see the same environment the deploy scripts export.
	_ = godotenv.Load()

	root := newRootCmd(loadConfig())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the sequencer command tree: the shared persistent flags
// with their defaults drawn from the configuration, and the four verbs.
func newRootCmd(cfg *cloud.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "sequencer",
		Short: "Plan and render constrained clip sequences",
		Long: `sequencer drives the clip sequencing engine from the command line:
feasibility analysis, constrained sequence generation, variation batches,
and full render jobs against the configured bucket and inventory.`,
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	// The configuration supplies flag defaults so a bare verb works against
	// a configured environment; every value can still be overridden per run.
	schema := cfg.Sequence.Schema
	if len(schema) == 0 {
		schema = []string{"category", "color"}
	}

	pf := root.PersistentFlags()
	pf.String("source", "", "Local CSV inventory; empty uses the configured BigQuery table")
	pf.StringSlice("schema", schema, "Attribute columns, primary (spacing) attribute first")
	pf.String("name-column", "", "CSV column holding the display name (default \"name\")")
	pf.String("link-column", "", "CSV column holding the clip link (default \"link\")")
	pf.StringSlice("categories", nil, "Allowed primary attribute values")
	pf.StringSlice("colors", nil, "Allowed secondary attribute values")
	pf.Int("length", cfg.Sequence.TargetLength, "Number of clips in the sequence")
	pf.Int("spacing", cfg.Sequence.MinSpacing, "Minimum gap before a primary value may repeat")
	pf.Int("attempts", cfg.Sequence.MaxAttempts, "Restart budget before the builder gives up")
	pf.Bool("relaxed", false, "Accept a best-effort ordering when constraints cannot be met")
	pf.Int64("seed", 0, "Fixed random seed for reproducible output")

	root.AddCommand(
		newGenerateCmd(cfg),
		newAnalyzeCmd(cfg),
		newVariationCmd(cfg),
		newRenderCmd(cfg),
	)
	return root
}

// newGenerateCmd builds the verb that runs one generation and prints the
// resolved plan, optionally exporting it as CSV.
func newGenerateCmd(cfg *cloud.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build one constrained sequence and print the plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, cfg)
		},
	}
	cmd.Flags().String("out", "", "Write the plan as CSV to this path")
	return cmd
}

// newAnalyzeCmd builds the verb that reports feasibility without building.
func newAnalyzeCmd(cfg *cloud.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Report whether the requested sequence shape is feasible",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, cfg)
		},
	}
}

// newVariationCmd builds the verb that generates a batch of sequences and
// grades how much they resemble each other.
func newVariationCmd(cfg *cloud.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variation",
		Short: "Generate several sequences and grade their similarity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVariation(cmd, cfg)
		},
	}
	cmd.Flags().Int("variations", 3, "How many sequences to generate and compare")
	return cmd
}

// newRenderCmd builds the verb that runs a complete render in-process: plan,
// fetch, standardize, concatenate, and upload.
func newRenderCmd(cfg *cloud.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a sequence into a stitched video in the bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, cfg)
		},
	}
	cmd.Flags().String("output-prefix", "", "Object name prefix for the render and its manifest")
	return cmd
}

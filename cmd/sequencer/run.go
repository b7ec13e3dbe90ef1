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

// This file, `run.go`, contains the execution logic behind the sequencer
// verbs. It turns parsed flags into engine calls: assembling the request,
// choosing the inventory (a local CSV file or the configured BigQuery table),
// running the requested operation, and printing results to stdout. Logs stay
// on stderr so output can be piped.
//
// Functions:
//   - loadConfig: Loads the TOML configuration, tolerating a bare checkout.
//   - runGenerate: Builds one sequence, prints it, optionally exports CSV.
//   - runAnalyze: Prints the feasibility report without building.
//   - runVariation: Builds a batch and prints the similarity study.
//   - runRender: Runs a full render job in-process and prints its outputs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/spf13/cobra"

	"github.com/dex-codes/ffmpeg-processor/internal/cloud"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/dex-codes/ffmpeg-processor/internal/core/sequence"
	"github.com/dex-codes/ffmpeg-processor/internal/core/services"
	"github.com/dex-codes/ffmpeg-processor/internal/core/workflow"
)

// renderTimeout caps an in-process render. Encoder invocations carry their
// own watchdogs; this is the ceiling for the whole job so a wedged download
// cannot hold the terminal forever.
const renderTimeout = 3 * time.Hour

var errTargetLength = errors.New("a target length is required: set --length or configure sequence.target_length")

// loadConfig loads the TOML configuration the same way the server does,
// defaulting the config directory to "configs" when the environment does not
// name one. Missing files leave the zero values in place, so the generation
// verbs work against a bare checkout with flags alone.
func loadConfig() *cloud.Config {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		_ = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	}
	cfg := cloud.NewConfig()
	cloud.LoadConfig(cfg)
	return cfg
}

// sequenceParams assembles the generation request from the flag set. The
// seed is only pinned when the flag was actually given, so unseeded runs
// stay random.
func sequenceParams(cmd *cobra.Command) *model.SequenceParams {
	categories, _ := cmd.Flags().GetStringSlice("categories")
	colors, _ := cmd.Flags().GetStringSlice("colors")
	length, _ := cmd.Flags().GetInt("length")
	spacing, _ := cmd.Flags().GetInt("spacing")
	relaxed, _ := cmd.Flags().GetBool("relaxed")

	params := &model.SequenceParams{
		Categories:   categories,
		Colors:       colors,
		TargetLength: length,
		MinSpacing:   spacing,
		Relaxed:      relaxed,
	}
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetInt64("seed")
		params.Seed = &seed
	}
	return params
}

// csvInventory adapts a local CSV file to the pool provider the sequence
// service expects. Each load opens the file fresh so repeated calls see
// edits made between runs; Load closes the source.
type csvInventory struct {
	path   string
	schema sequence.Schema
	fields sequence.FieldMap
}

func (c *csvInventory) LoadPool(_ context.Context, filter sequence.Filter) (*sequence.Pool, error) {
	src, err := sequence.NewCSVSource(c.path)
	if err != nil {
		return nil, err
	}
	return sequence.Load(src, c.schema, filter, c.fields)
}

// newSequenceService builds the planning service over the requested
// inventory: a local CSV file when --source is given, the configured
// BigQuery table otherwise. A non-nil shared client is reused for BigQuery;
// otherwise one is opened and the returned closer releases it.
func newSequenceService(ctx context.Context, cfg *cloud.Config, cmd *cobra.Command, shared *bigquery.Client) (*services.SequenceService, func(), error) {
	columns, _ := cmd.Flags().GetStringSlice("schema")
	schema := sequence.Schema(columns)
	if err := schema.Validate(); err != nil {
		return nil, nil, err
	}
	attempts, _ := cmd.Flags().GetInt("attempts")

	svc := &services.SequenceService{
		Schema:        schema,
		TargetLength:  cfg.Sequence.TargetLength,
		MinSpacing:    cfg.Sequence.MinSpacing,
		MaxAttempts:   attempts,
		HistorySize:   cfg.Sequence.HistorySize,
		CompareWindow: cfg.Sequence.CompareWindow,
	}
	noop := func() {}

	if source, _ := cmd.Flags().GetString("source"); source != "" {
		nameColumn, _ := cmd.Flags().GetString("name-column")
		linkColumn, _ := cmd.Flags().GetString("link-column")
		svc.Inventory = &csvInventory{
			path:   source,
			schema: schema,
			fields: sequence.FieldMap{Name: nameColumn, Link: linkColumn},
		}
		return svc, noop, nil
	}

	inventory := &services.InventoryService{
		DatasetName: cfg.Inventory.DatasetName,
		ClipTable:   cfg.Inventory.ClipTable,
		NameColumn:  cfg.Inventory.NameColumn,
		LinkColumn:  cfg.Inventory.LinkColumn,
		Schema:      schema,
	}
	if shared != nil {
		inventory.BigqueryClient = shared
		svc.Inventory = inventory
		return svc, noop, nil
	}
	if cfg.Application.GoogleProjectId == "" {
		return nil, nil, fmt.Errorf("no inventory available: pass --source <csv> or configure a Google project")
	}
	client, err := bigquery.NewClient(ctx, cfg.Application.GoogleProjectId)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create the BigQuery client: %w", err)
	}
	inventory.BigqueryClient = client
	svc.Inventory = inventory
	return svc, func() { _ = client.Close() }, nil
}

func runGenerate(cmd *cobra.Command, cfg *cloud.Config) error {
	ctx := context.Background()
	params := sequenceParams(cmd)
	if params.TargetLength <= 0 {
		return errTargetLength
	}
	svc, done, err := newSequenceService(ctx, cfg, cmd, nil)
	if err != nil {
		return err
	}
	defer done()

	outcome, err := svc.Plan(ctx, params)
	if err != nil {
		return err
	}
	printPlan(cmd, outcome.Plan)

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		warning, err := sequence.ExportFile(out, outcome.Result.Items, outcome.Pool)
		if err != nil {
			return err
		}
		if warning != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), warning.Error())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, cfg *cloud.Config) error {
	ctx := context.Background()
	params := sequenceParams(cmd)
	if params.TargetLength <= 0 {
		return errTargetLength
	}
	svc, done, err := newSequenceService(ctx, cfg, cmd, nil)
	if err != nil {
		return err
	}
	defer done()

	report, err := svc.Analyze(ctx, params)
	if err != nil {
		return err
	}
	printReport(cmd, report)
	return nil
}

func runVariation(cmd *cobra.Command, cfg *cloud.Config) error {
	ctx := context.Background()
	params := sequenceParams(cmd)
	if params.TargetLength <= 0 {
		return errTargetLength
	}
	params.Variations, _ = cmd.Flags().GetInt("variations")

	svc, done, err := newSequenceService(ctx, cfg, cmd, nil)
	if err != nil {
		return err
	}
	defer done()

	plan, err := svc.PlanBatch(ctx, params)
	if err != nil {
		return err
	}
	printVariation(cmd, plan)
	return nil
}

// runRender plans and renders a sequence in-process with the same wiring the
// server uses, minus the job queue: the work runs synchronously under this
// command. The plan can come from a CSV source while the footage still comes
// from the clip bucket, so spreadsheet-driven renders work too.
func runRender(cmd *cobra.Command, cfg *cloud.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()

	params := sequenceParams(cmd)
	if prefix, _ := cmd.Flags().GetString("output-prefix"); prefix != "" {
		params.OutputPrefix = prefix
	}
	if params.TargetLength <= 0 {
		return errTargetLength
	}

	cloudClients, err := cloud.NewCloudServiceClients(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create the cloud service clients: %w", err)
	}
	defer cloudClients.Close()

	svc, done, err := newSequenceService(ctx, cfg, cmd, cloudClients.BigQueryClient)
	if err != nil {
		return err
	}
	defer done()

	store := &services.StorageService{
		StorageClient:   cloudClients.StorageClient,
		IAMClient:       cloudClients.IAMClient,
		SignerEmail:     cfg.Application.SignerServiceAccountEmail,
		ClipBucket:      cfg.Storage.ClipBucket,
		RenderBucket:    cfg.Storage.RenderBucket,
		RawFolder:       cfg.Storage.RawFolder,
		ProcessedFolder: cfg.Storage.ProcessedFolder,
		TempFolder:      cfg.Storage.TempFolder,
	}
	downloader := cloud.NewQuotaAwareDownloader(store.DownloadToFile, cloud.NewPacerPolicy(&cfg.Downloads))
	render := workflow.NewSequenceRenderWorkflow(cfg, cloudClients, svc, downloader, cfg.Encoder.BinaryPath)

	// The job record is kept locally rather than in the job store; the
	// lifecycle stamps normally applied by the dispatcher happen here.
	job := model.NewJob(model.JobTypeVideoSequence, params)
	fmt.Fprintf(cmd.OutOrStdout(), "render job %s started\n", job.Id)
	job.Start()
	if err := render.Run(ctx, job); err != nil {
		job.Fail(err)
		return err
	}
	job.Complete()

	bucket := cfg.Storage.RenderBucket
	if bucket == "" {
		bucket = cfg.Storage.ClipBucket
	}
	w := cmd.OutOrStdout()
	for _, output := range job.Outputs {
		line := fmt.Sprintf("%s: gs://%s/%s", output.Kind, bucket, output.Object)
		if output.Note != "" {
			line += " (" + output.Note + ")"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "finished in %s\n", job.Runtime().Round(time.Second))
	return nil
}

// printPlan writes the resolved slots as aligned rows, one clip per line.
func printPlan(cmd *cobra.Command, plan *model.SequencePlan) {
	w := cmd.OutOrStdout()
	notes := ""
	if plan.Clamped {
		notes += ", clamped to supply"
	}
	if plan.BestEffort {
		notes += ", best effort"
	}
	fmt.Fprintf(w, "sequence of %d clips (attempts %d%s)\n", len(plan.Items), plan.Attempts, notes)
	for _, item := range plan.Items {
		label := item.Category
		if item.Color != "" {
			label += "/" + item.Color
		}
		marker := ""
		if item.Synthesized {
			marker = "  [no inventory row]"
		}
		fmt.Fprintf(w, "%4d  %-24s %s%s\n", item.Position, label, item.Name, marker)
	}
	if plan.Similarity > 0 {
		fmt.Fprintf(w, "similarity to recent runs: %.2f\n", plan.Similarity)
	}
}

// printReport writes the feasibility study: overall supply, the per-group
// safety margins, and the recommendation line.
func printReport(cmd *cobra.Command, report *sequence.Report) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "target %d, spacing %d, %d clips available\n",
		report.TargetLength, report.MinSpacing, report.TotalAvailable)
	for _, g := range report.Groups {
		fmt.Fprintf(w, "  %-20s available %4d  needed %6.1f  safety %.2f\n",
			g.Value, g.Available, g.Needed, g.SafetyRatio)
	}
	if len(report.Bottlenecks) > 0 {
		fmt.Fprintf(w, "bottlenecks: %s\n", strings.Join(report.Bottlenecks, ", "))
	}
	fmt.Fprintln(w, report.Recommendation)
}

// printVariation writes each generated sequence as a name list, then the
// pairwise similarity figures and the batch grade.
func printVariation(cmd *cobra.Command, plan *model.VariationPlan) {
	w := cmd.OutOrStdout()
	for i, seq := range plan.Sequences {
		names := make([]string, 0, len(seq.Items))
		for _, item := range seq.Items {
			names = append(names, item.Name)
		}
		fmt.Fprintf(w, "sequence %d: %s\n", i+1, strings.Join(names, ", "))
	}
	batch := plan.Similarity
	if batch == nil {
		return
	}
	for _, pair := range batch.Pairwise {
		fmt.Fprintf(w, "  %-16s positional %.2f  content %.2f  category %.2f\n",
			pair.Label, pair.Report.Positional, pair.Report.Content, pair.Report.Category)
	}
	if batch.ExactDuplicates > 0 {
		fmt.Fprintf(w, "exact duplicates: %d\n", batch.ExactDuplicates)
	}
	fmt.Fprintf(w, "variation quality: %s (average content similarity %.2f)\n",
		batch.Quality, batch.AvgContent)
}

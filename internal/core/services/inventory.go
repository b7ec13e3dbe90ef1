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

// Package services contains the business logic for interacting with data sources.
// This file, `inventory.go`, defines the InventoryService, which reads the clip
// inventory table in BigQuery and exposes it two ways: as a row source feeding
// the sequence loader, and as aggregate views (bucket counts, distinct column
// values) backing the dashboard API.
package services

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dex-codes/ffmpeg-processor/internal/core/model"
	"github.com/dex-codes/ffmpeg-processor/internal/core/sequence"
	"google.golang.org/api/iterator"
)

// InventoryService encapsulates access to the BigQuery table that catalogs the
// clip library. Each row describes one physical clip: its attribute columns
// (category and color), a human-readable name, and the storage link the render
// pipeline downloads from.
type InventoryService struct {
	BigqueryClient *bigquery.Client // Client for interacting with Google BigQuery.
	DatasetName    string           // The name of the BigQuery dataset.
	ClipTable      string           // The name of the table holding the clip inventory.
	NameColumn     string           // The column holding the clip display name.
	LinkColumn     string           // The column holding the clip's download link.
	Schema         sequence.Schema  // The attribute columns, outermost grouping first.
}

// GetFQN returns the fully qualified name of the clip inventory table in the
// dot-separated form BigQuery SQL expects (`project.dataset.table`). The
// client library's FullyQualifiedName puts a colon between project and
// dataset, so the colon is replaced before the name is spliced into a query.
func (s *InventoryService) GetFQN() string {
	return strings.Replace(s.BigqueryClient.Dataset(s.DatasetName).Table(s.ClipTable).FullyQualifiedName(), ":", ".", -1)
}

// FieldMap binds the configured display columns for the sequence loader.
func (s *InventoryService) FieldMap() sequence.FieldMap {
	return sequence.FieldMap{Name: s.NameColumn, Link: s.LinkColumn}
}

// NewRowSource executes the inventory listing query and adapts the resulting
// iterator to the loader's RowSource contract. Rows arrive sorted by the
// clip-name column so ordinal assignment is stable across reloads.
//
// Inputs:
//   - ctx: The context for the request, used for cancellation, deadlines, and tracing.
//
// Outputs:
//   - *BigQueryRowSource: A row source positioned before the first inventory row.
//   - error: An error if the query could not be started.
func (s *InventoryService) NewRowSource(ctx context.Context) (*BigQueryRowSource, error) {
	queryText := fmt.Sprintf(QryListClips, s.GetFQN(), s.NameColumn)
	q := s.BigqueryClient.Query(queryText)
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read from BigQuery: %w", err)
	}
	return &BigQueryRowSource{name: s.GetFQN(), itr: itr}, nil
}

// LoadPool reads the full inventory and groups the rows admitted by the
// filter into a pool ready for feasibility analysis and sequence builds.
func (s *InventoryService) LoadPool(ctx context.Context, filter sequence.Filter) (*sequence.Pool, error) {
	src, err := s.NewRowSource(ctx)
	if err != nil {
		return nil, err
	}
	return sequence.Load(src, s.Schema, filter, s.FieldMap())
}

// CategoryTotals returns the clip count for every category and color bucket
// present in the inventory. The dashboard renders these counts next to the
// feasibility report so a thin bucket is visible before a build fails on it.
//
// Inputs:
//   - ctx: The context for the request, used for cancellation, deadlines, and tracing.
//
// Outputs:
//   - []*model.BucketCount: One entry per category and color pairing, sorted by both.
//   - error: An error if the query or row scanning fails.
func (s *InventoryService) CategoryTotals(ctx context.Context) (out []*model.BucketCount, err error) {
	// Initialize the output slice to ensure it's not nil, even if the table is empty.
	out = make([]*model.BucketCount, 0)
	if len(s.Schema) < 2 {
		return out, fmt.Errorf("inventory schema needs category and color columns, got %d", len(s.Schema))
	}
	category, color := s.Schema[0], s.Schema[1]

	queryText := fmt.Sprintf(QryCategoryTotals, category, color, s.GetFQN(), category, color)
	q := s.BigqueryClient.Query(queryText)
	itr, err := q.Read(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to read from BigQuery: %w", err)
	}

	for {
		r := &model.BucketCount{}
		err := itr.Next(r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to iterate results: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// DistinctValues lists the distinct non-null values of one inventory column,
// typically to populate the category and color pickers in request forms. The
// column must be one the configuration names; the check keeps caller-supplied
// strings out of the query text.
func (s *InventoryService) DistinctValues(ctx context.Context, column string) (out []string, err error) {
	out = make([]string, 0)
	if !s.knownColumn(column) {
		return out, fmt.Errorf("unknown inventory column %q", column)
	}

	queryText := fmt.Sprintf(QryDistinctValues, column, s.GetFQN(), column)
	q := s.BigqueryClient.Query(queryText)
	itr, err := q.Read(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to read from BigQuery: %w", err)
	}

	for {
		var r distinctRow
		err := itr.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to iterate results: %w", err)
		}
		out = append(out, r.Value)
	}
	return out, nil
}

// knownColumn reports whether the column is one of the configured schema or
// display columns.
func (s *InventoryService) knownColumn(column string) bool {
	if column == s.NameColumn || column == s.LinkColumn {
		return true
	}
	for _, attr := range s.Schema {
		if attr == column {
			return true
		}
	}
	return false
}

// distinctRow is the scan target for QryDistinctValues.
type distinctRow struct {
	Value string `bigquery:"value"`
}

// BigQueryRowSource adapts a BigQuery row iterator to the sequence loader's
// RowSource interface. Column values are flattened to strings because the
// loader trims and matches them textually, mirroring the spreadsheet exports
// the inventory table is built from.
type BigQueryRowSource struct {
	name string
	itr  *bigquery.RowIterator
}

// Name returns the fully qualified table name for error reporting.
func (s *BigQueryRowSource) Name() string { return s.name }

// Next returns the next inventory row keyed by column name. The iterator's
// Done sentinel passes through untouched, which is what the loader treats as
// end-of-input. Null columns are left unset so the loader's missing-value
// handling applies to them.
func (s *BigQueryRowSource) Next() (sequence.Row, error) {
	var values map[string]bigquery.Value
	if err := s.itr.Next(&values); err != nil {
		return nil, err
	}
	row := make(sequence.Row, len(values))
	for col, v := range values {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			row[col] = str
			continue
		}
		row[col] = fmt.Sprint(v)
	}
	return row, nil
}

// Close is a no-op. BigQuery row iterators hold no resources that outlive
// their request context.
func (s *BigQueryRowSource) Close() error { return nil }

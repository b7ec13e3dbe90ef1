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

// This file implements the inventory loader: it walks a row-oriented tabular
// source, keeps the rows admitted by the filter, and groups them into an
// immutable Pool with per-leaf ordinals assigned in encounter order.
//
// Logic Flow:
//  1. Validate the schema and pull rows one at a time from the RowSource.
//  2. A row is admitted only when every schema attribute is present,
//     non-blank, and explicitly allowed by the filter. Anything else is
//     silently dropped; sparse or messy inventories are expected, not errors.
//  3. Admitted rows receive a 1-based ordinal within their attribute-value
//     group, making every physical item independently addressable.
//
// Only a failure of the source itself (missing file, malformed header,
// broken read) surfaces as a DataSourceError. An empty pool is a valid
// result.

package sequence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"google.golang.org/api/iterator"
)

// Row is one record of a tabular source, keyed by column name.
type Row map[string]string

// RowSource abstracts a row-oriented tabular input. Next returns
// iterator.Done after the final row, mirroring the Google Cloud client
// iterators, so BigQuery-backed sources plug in without an adapter layer.
type RowSource interface {
	// Next returns the next row, or iterator.Done when the source is
	// exhausted. Any other error aborts the load.
	Next() (Row, error)
	// Close releases the underlying handle. The loader always closes the
	// source before returning.
	Close() error
}

// Load reads every row from src and builds the grouped pool for the given
// schema and filter. Display columns are bound through fields (zero value
// binds the conventional "name"/"link" columns). The source is closed before
// Load returns, success or not.
func Load(src RowSource, schema Schema, filter Filter, fields FieldMap) (*Pool, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	defer func() { _ = src.Close() }()

	if err := schema.Validate(); err != nil {
		return nil, err
	}
	fields = fields.withDefaults()
	allowed := filter.allowSets()

	pool := newPool(schema)
	values := make([]string, len(schema))

	for {
		row, err := src.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, &DataSourceError{Source: sourceName(src), Err: err}
		}

		if !bindAttributes(row, schema, allowed, values) {
			continue
		}

		extra := passthrough(row, schema, fields)
		pool.add(values, strings.TrimSpace(row[fields.Name]), strings.TrimSpace(row[fields.Link]), extra)
	}
	return pool, nil
}

// bindAttributes fills values with the row's schema attributes and reports
// whether the row is admitted. A missing column, a blank value, or a value
// outside the filter's allowed set all reject the row.
func bindAttributes(row Row, schema Schema, allowed map[string]map[string]struct{}, values []string) bool {
	for i, attr := range schema {
		raw, ok := row[attr]
		if !ok {
			return false
		}
		v := strings.TrimSpace(raw)
		if v == "" {
			return false
		}
		set, ok := allowed[attr]
		if !ok {
			return false
		}
		if _, ok := set[v]; !ok {
			return false
		}
		values[i] = v
	}
	return true
}

// passthrough collects the non-schema, non-display columns so exports can
// carry them forward untouched.
func passthrough(row Row, schema Schema, fields FieldMap) map[string]string {
	skip := map[string]struct{}{fields.Name: {}, fields.Link: {}}
	for _, attr := range schema {
		skip[attr] = struct{}{}
	}
	var extra map[string]string
	for col, v := range row {
		if _, ok := skip[col]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[col] = strings.TrimSpace(v)
	}
	return extra
}

// sourceName asks the source for a display identity when it has one.
func sourceName(src RowSource) string {
	if n, ok := src.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", src)
}

// CSVSource reads rows from a local CSV file with a header line. Header
// names are trimmed; duplicate header names keep the last column, matching
// the permissive behavior of the inventories this service ingests.
type CSVSource struct {
	path   string
	file   *os.File
	reader *csv.Reader
	header []string
}

// NewCSVSource opens the file and consumes its header. A missing file, an
// empty file, or an unparsable header line is a DataSourceError.
func NewCSVSource(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataSourceError{Source: path, Err: err}
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		return nil, &DataSourceError{Source: path, Err: fmt.Errorf("reading header: %w", err)}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return &CSVSource{path: path, file: f, reader: r, header: header}, nil
}

// Name returns the backing file path.
func (s *CSVSource) Name() string { return s.path }

// Header returns the column names in file order.
func (s *CSVSource) Header() []string {
	return append([]string(nil), s.header...)
}

// Next returns the next data row keyed by header name. Short records leave
// the remaining columns unset; long records drop the unnamed overflow.
func (s *CSVSource) Next() (Row, error) {
	record, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, iterator.Done
	}
	if err != nil {
		return nil, err
	}
	row := make(Row, len(s.header))
	for i, col := range s.header {
		if i < len(record) {
			row[col] = record[i]
		}
	}
	return row, nil
}

// Close releases the file handle.
func (s *CSVSource) Close() error { return s.file.Close() }

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

package sequence

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for malformed engine input. These are wrapped with context
// by the functions that return them; match with errors.Is.
var (
	ErrEmptySchema        = errors.New("sequence: schema must name at least one attribute")
	ErrBlankAttribute     = errors.New("sequence: schema attribute name is blank")
	ErrDuplicateAttribute = errors.New("sequence: schema attribute repeated")
	ErrNilSource          = errors.New("sequence: nil row source")
	ErrNilPool            = errors.New("sequence: nil pool")
	ErrLengthMismatch     = errors.New("sequence: sequences must have equal length to compare")
	ErrSchemaMismatch     = errors.New("sequence: item arity does not match pool schema")
)

// DataSourceError reports that the tabular source itself could not be read:
// a missing file, an unreadable stream, or a malformed header. Rows that are
// merely filtered out never produce this error.
type DataSourceError struct {
	Source string // human-readable identity of the source (path, table, ...)
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("sequence: data source %s unreadable: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// InfeasibleSequenceError reports that no valid sequence can be produced for
// the requested parameters: either the feasibility gate rejected the pool, or
// the builder exhausted its attempt budget in strict mode.
type InfeasibleSequenceError struct {
	Target     int
	MinSpacing int
	Attempts   int     // restarts consumed, 0 when the feasibility gate fired
	Report     *Report // populated when the feasibility gate rejected the request
}

func (e *InfeasibleSequenceError) Error() string {
	if e.Report != nil && !e.Report.Feasible {
		return fmt.Sprintf("sequence: infeasible request (target=%d spacing=%d): %s",
			e.Target, e.MinSpacing, e.Report.Recommendation)
	}
	return fmt.Sprintf("sequence: no valid ordering found for target=%d spacing=%d after %d attempts",
		e.Target, e.MinSpacing, e.Attempts)
}

// PartialExportWarning reports that one or more sequence items could not be
// resolved against the pool lookup during export. The export still completes
// with synthesized display names for the missing entries; this value exists
// so callers can log or surface the degradation.
type PartialExportWarning struct {
	Missing []Item
}

func (e *PartialExportWarning) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, it := range e.Missing {
		names = append(names, it.String())
	}
	return fmt.Sprintf("sequence: %d item(s) missing from pool lookup, synthesized names used: %s",
		len(e.Missing), strings.Join(names, ", "))
}

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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Export writes one CSV row per sequence item, in order: a 1-based item_no,
// the resolved display name and link, then one column per schema attribute.
// An item missing from the pool lookup does not fail the export; its name is
// synthesized from the attribute values and ordinal, and the degradation is
// reported through the returned PartialExportWarning (nil when every item
// resolved).
func Export(w io.Writer, seq []Item, pool *Pool) (*PartialExportWarning, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	schema := pool.Schema()

	cw := csv.NewWriter(w)
	header := append([]string{"item_no", "name", "link"}, schema...)
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	var missing []Item
	for i, it := range seq {
		if err := pool.checkArity(it); err != nil {
			return nil, err
		}
		name, link := "", ""
		if item, ok := pool.Lookup(it); ok {
			name, link = item.Name, item.Link
		} else {
			name = FallbackName(it)
			missing = append(missing, it)
		}
		record := append([]string{strconv.Itoa(i + 1), name, link}, it.Values...)
		if err := cw.Write(record); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flushing export: %w", err)
	}

	if len(missing) > 0 {
		return &PartialExportWarning{Missing: missing}, nil
	}
	return nil, nil
}

// ExportFile is the file-destination convenience over Export.
func ExportFile(path string, seq []Item, pool *Pool) (*PartialExportWarning, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating export file %s: %w", path, err)
	}
	warn, exportErr := Export(f, seq, pool)
	if closeErr := f.Close(); exportErr == nil && closeErr != nil {
		exportErr = fmt.Errorf("closing export file %s: %w", path, closeErr)
	}
	return warn, exportErr
}

// FallbackName builds the synthesized display name used when an item has no
// lookup entry: the attribute values joined by underscores plus the
// zero-padded ordinal, e.g. "dance_red_item07".
func FallbackName(it Item) string {
	return fmt.Sprintf("%s_item%02d", strings.Join(it.Values, "_"), it.Ordinal)
}

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

// Package sequence implements the constrained clip-ordering engine: it loads
// a tagged clip inventory from a tabular source, analyzes whether a spaced
// sequence of a requested length can exist, builds such a sequence with a
// randomized balance-aware placement algorithm, and exports the result back
// to tabular form.
//
// The engine is attribute-generic. A Schema names one or more categorical
// attributes in nesting order; the first attribute is the "primary" dimension
// used for the spacing constraint and for balance. The historical two-level
// (category, color) call paths are thin wrappers over this model, see
// convenience.go.
//
// Everything in this package is synchronous and CPU bound. Randomness is
// always drawn from an explicitly provided *rand.Rand so callers and tests
// can inject seeded sources; there is no package-level random state.
package sequence

import (
	"fmt"
	"strconv"
	"strings"
)

// keySep separates the encoded fields of an Item key. It is a control
// character so it cannot collide with attribute values from real inventories.
const keySep = "\x1f"

// Schema is an ordered list of attribute names defining the grouping depth.
// Order is significant: the first attribute is the primary dimension checked
// by the spacing invariant and targeted by the balance heuristic.
type Schema []string

// Primary returns the name of the primary attribute.
func (s Schema) Primary() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// Validate reports whether the schema is usable: it must name at least one
// attribute, names must be non-blank, and names must not repeat.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return ErrEmptySchema
	}
	seen := make(map[string]struct{}, len(s))
	for _, attr := range s {
		if strings.TrimSpace(attr) == "" {
			return fmt.Errorf("%w: %q", ErrBlankAttribute, attr)
		}
		if _, dup := seen[attr]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateAttribute, attr)
		}
		seen[attr] = struct{}{}
	}
	return nil
}

// Filter maps an attribute name to the set of values admitted for that
// attribute. Attributes without an entry admit nothing: the loader only
// accepts rows whose value for every schema attribute is explicitly allowed.
type Filter map[string][]string

// allowSets converts the filter into set form for constant-time membership
// checks during loading.
func (f Filter) allowSets() map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(f))
	for attr, values := range f {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		out[attr] = set
	}
	return out
}

// FieldMap names the source columns that carry an item's display fields.
// Zero values fall back to the conventional "name" and "link" columns, so a
// FieldMap{} is a valid default binding.
type FieldMap struct {
	Name string // column holding the display name
	Link string // column holding an optional link, may be absent from the source
}

// withDefaults fills unset columns with the conventional names.
func (m FieldMap) withDefaults() FieldMap {
	if m.Name == "" {
		m.Name = "name"
	}
	if m.Link == "" {
		m.Link = "link"
	}
	return m
}

// Item is the atomic placement unit: the attribute values of one inventory
// item in schema order plus its 1-based ordinal within that leaf group. Two
// Items are the same placement unit iff all values and the ordinal match.
type Item struct {
	Values  []string
	Ordinal int
}

// Primary returns the item's value for the primary attribute.
func (it Item) Primary() string {
	if len(it.Values) == 0 {
		return ""
	}
	return it.Values[0]
}

// Equal reports structural equality with another item.
func (it Item) Equal(other Item) bool {
	if it.Ordinal != other.Ordinal || len(it.Values) != len(other.Values) {
		return false
	}
	for i := range it.Values {
		if it.Values[i] != other.Values[i] {
			return false
		}
	}
	return true
}

// Key encodes the item as a flat string suitable for map keys. The encoding
// is injective for a fixed schema depth.
func (it Item) Key() string {
	var b strings.Builder
	for _, v := range it.Values {
		b.WriteString(v)
		b.WriteString(keySep)
	}
	b.WriteString(strconv.Itoa(it.Ordinal))
	return b.String()
}

// String renders the item for logs and error messages.
func (it Item) String() string {
	return fmt.Sprintf("(%s #%d)", strings.Join(it.Values, "/"), it.Ordinal)
}

// InventoryItem is one source row that matched the filter. The attribute
// values and ordinal identify it; the remaining fields are opaque passthrough
// display data never consulted by placement logic.
type InventoryItem struct {
	Values  []string
	Ordinal int
	Name    string
	Link    string
	Extra   map[string]string
}

// Ref returns the placement unit addressing this inventory item.
func (ii *InventoryItem) Ref() Item {
	return Item{Values: ii.Values, Ordinal: ii.Ordinal}
}

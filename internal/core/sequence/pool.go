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
	"fmt"
	"sort"
)

// GroupNode is one level of the recursive grouping tree. Interior nodes key
// their children by the attribute value at that depth; leaf nodes (at depth
// len(schema)) carry the count of items in that fully-qualified group. The
// schema, not the node, decides which levels are leaves.
type GroupNode struct {
	Children map[string]*GroupNode
	Count    int
}

func newGroupNode() *GroupNode {
	return &GroupNode{Children: make(map[string]*GroupNode)}
}

// child returns the node for value, creating it on first use.
func (n *GroupNode) child(value string) *GroupNode {
	c, ok := n.Children[value]
	if !ok {
		c = newGroupNode()
		n.Children[value] = c
	}
	return c
}

// Pool is the immutable grouped inventory a generation request operates on.
// It owns the grouping tree, the flat placement units in load order, and the
// lookup from placement unit to source row.
type Pool struct {
	schema  Schema
	root    *GroupNode
	items   map[string]*InventoryItem
	order   []Item
	primary map[string]int
	total   int
}

// newPool returns an empty pool for the given schema. The loader is the only
// intended producer; everything after load is read-only.
func newPool(schema Schema) *Pool {
	return &Pool{
		schema:  append(Schema(nil), schema...),
		root:    newGroupNode(),
		items:   make(map[string]*InventoryItem),
		primary: make(map[string]int),
	}
}

// add registers one accepted row and assigns its ordinal in encounter order.
// It returns the stored inventory item.
func (p *Pool) add(values []string, name, link string, extra map[string]string) *InventoryItem {
	node := p.root
	for _, v := range values {
		node = node.child(v)
	}
	node.Count++

	item := &InventoryItem{
		Values:  append([]string(nil), values...),
		Ordinal: node.Count,
		Name:    name,
		Link:    link,
		Extra:   extra,
	}
	ref := item.Ref()
	p.items[ref.Key()] = item
	p.order = append(p.order, ref)
	p.primary[ref.Primary()]++
	p.total++
	return item
}

// Schema returns a copy of the schema the pool was grouped under.
func (p *Pool) Schema() Schema {
	return append(Schema(nil), p.schema...)
}

// Total returns the number of items admitted by the filter.
func (p *Pool) Total() int { return p.total }

// Items returns all placement units in load order. The slice is a copy; the
// caller may shuffle or reorder it freely.
func (p *Pool) Items() []Item {
	return append([]Item(nil), p.order...)
}

// Lookup resolves a placement unit back to its source row.
func (p *Pool) Lookup(it Item) (*InventoryItem, bool) {
	item, ok := p.items[it.Key()]
	return item, ok
}

// PrimaryValues returns the distinct primary-attribute values present in the
// pool, sorted for deterministic reporting.
func (p *Pool) PrimaryValues() []string {
	values := make([]string, 0, len(p.primary))
	for v := range p.primary {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// AvailableByPrimary returns the item count per primary-attribute value,
// summed across all deeper attribute combinations.
func (p *Pool) AvailableByPrimary() map[string]int {
	out := make(map[string]int, len(p.primary))
	for v, n := range p.primary {
		out[v] = n
	}
	return out
}

// GroupCount returns the leaf count for a fully-qualified attribute-value
// path, or the subtree total for a partial path. Unknown paths count zero.
func (p *Pool) GroupCount(values ...string) int {
	node := p.root
	for _, v := range values {
		c, ok := node.Children[v]
		if !ok {
			return 0
		}
		node = c
	}
	return subtreeCount(node)
}

func subtreeCount(n *GroupNode) int {
	if len(n.Children) == 0 {
		return n.Count
	}
	total := 0
	for _, c := range n.Children {
		total += subtreeCount(c)
	}
	return total
}

// checkArity guards pool operations that accept caller-provided items.
func (p *Pool) checkArity(it Item) error {
	if len(it.Values) != len(p.schema) {
		return fmt.Errorf("%w: item %s against schema %v", ErrSchemaMismatch, it, p.schema)
	}
	return nil
}

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

// The historical generators were hardwired to two attributes, category and
// color. These wrappers keep that call path as a thin veneer over the
// attribute-generic engine: they only supply the two-element schema and the
// corresponding filter shape.

// CategoryColorSchema returns the classic two-level schema.
func CategoryColorSchema() Schema {
	return Schema{"category", "color"}
}

// CategoryColorFilter builds the filter admitting the given categories and
// colors.
func CategoryColorFilter(categories, colors []string) Filter {
	return Filter{
		"category": categories,
		"color":    colors,
	}
}

// LoadCategoryColor loads a pool grouped by (category, color).
func LoadCategoryColor(src RowSource, categories, colors []string, fields FieldMap) (*Pool, error) {
	return Load(src, CategoryColorSchema(), CategoryColorFilter(categories, colors), fields)
}

// CategoryColorItem addresses one item in a (category, color) pool.
func CategoryColorItem(category, color string, ordinal int) Item {
	return Item{Values: []string{category, color}, Ordinal: ordinal}
}

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
// This file, `queries.go`, centralizes all the BigQuery SQL query strings used
// by the application's services. Storing queries as constants in a dedicated
// file improves maintainability, readability, and reusability. The queries use
// `fmt.Sprintf` format verbs (e.g., %s, %d) as placeholders for dynamic values
// that will be injected at runtime.
package services

const (
	// QryListClips defines the query that reads the full clip inventory used to
	// build sequences.
	//
	// How it works:
	// - `SELECT *`: Every column is returned so the row source can map whichever
	//   columns the configured schema names (category, color, clip name, link)
	//   without this file needing to know the table shape.
	// - `ORDER BY %s`: Rows are sorted by the clip-name column so that repeated
	//   loads of an unchanged table always assign the same ordinal to the same
	//   clip. Seeded sequence runs are only reproducible when the load order is
	//   stable.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the clip inventory table.
	// - `%s`: The name of the clip-name column to sort by.
	QryListClips = "SELECT * FROM `%s` ORDER BY %s"

	// QryCategoryTotals defines the aggregation query behind the inventory
	// dashboard. It counts how many clips exist for every category and color
	// pairing, which is exactly the per-bucket supply the feasibility analyzer
	// reasons about.
	//
	// Placeholders:
	// - `%s`: The category column name (aliased to `category`).
	// - `%s`: The color column name (aliased to `color`).
	// - `%s`: The fully qualified name of the clip inventory table.
	// - `%s`: The category column again, for grouping.
	// - `%s`: The color column again, for grouping.
	QryCategoryTotals = "SELECT %s AS category, %s AS color, COUNT(*) AS total FROM `%s` GROUP BY %s, %s ORDER BY category, color"

	// QryDistinctValues defines a lookup of the distinct non-null values in a
	// single column. The API uses it to list the categories and colors that
	// actually exist in the inventory so request forms can offer real choices.
	//
	// Placeholders:
	// - `%s`: The column to read (aliased to `value`).
	// - `%s`: The fully qualified name of the clip inventory table.
	// - `%s`: The column again, for the null filter.
	QryDistinctValues = "SELECT DISTINCT %s AS value FROM `%s` WHERE %s IS NOT NULL ORDER BY value"
)

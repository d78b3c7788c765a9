// Copyright 2025 Supabase, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlconn

import (
	"database/sql"
	"fmt"
)

// Result is the fully materialized output of one query execution. A Conn
// owns exactly one Result at a time and replaces it wholesale on every
// result-producing execution, so a Result obtained from Conn.Result() must
// not be retained across executions.
//
// Rows are captured as raw driver values (int64, float64, []byte, string,
// bool, time.Time, nil); the binder converts them into caller types on
// extraction. Column indexes are 1-based throughout, matching SQL result
// set conventions.
type Result struct {
	columns []string
	rows    [][]any
}

// collectResult drains rows into a Result and closes them, so the session
// is immediately free for the next statement.
func collectResult(rows *sql.Rows) (*Result, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		dests := make([]any, len(columns))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		res.rows = append(res.rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Len returns the number of rows in the result set.
func (r *Result) Len() uint64 {
	return uint64(len(r.rows))
}

// Columns returns the column names in result order.
func (r *Result) Columns() []string {
	return r.columns
}

// Value returns the raw driver value at the given row (0-based) and column
// (1-based). The second return is false when either index is out of range.
func (r *Result) Value(row, col int) (any, bool) {
	v, err := r.value(row, col)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *Result) value(row, col int) (any, error) {
	if row < 0 || row >= len(r.rows) {
		return nil, fmt.Errorf("row %d: %w", row, ErrRowOutOfRange)
	}
	if col < 1 || col > len(r.columns) {
		return nil, fmt.Errorf("column %d of %d: %w", col, len(r.columns), ErrColumnOutOfRange)
	}
	return r.rows[row][col-1], nil
}

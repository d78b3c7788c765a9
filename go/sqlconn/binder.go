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
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Value is the closed set of types the result binder extracts. Extraction
// for any other type is rejected at compile time; extend the binder by
// adding a type here and a case to bindValue, never by generic coercion.
//
// Each type maps to one of four accessor families: float32/float64 use the
// float accessor, int/int32/int64 the signed accessor, uint/uint32/uint64
// the unsigned accessor, and string the string accessor.
type Value interface {
	float32 | float64 | int | int32 | int64 | uint | uint32 | uint64 | string
}

// QueryValue runs a query that must return exactly one row, binding its
// first column into out. Zero rows is a "not found" false; more than one
// row is a row-count-mismatch failure, logged — the first row is never
// silently picked.
func QueryValue[T Value](ctx context.Context, c *Conn, stmt string, out *T) bool {
	res, ok := querySingleRow(ctx, c, stmt)
	if !ok {
		return false
	}
	return bindValue(c.logger, res, 0, 1, out)
}

// QueryColumn runs a query expected to return a single column across many
// rows, appending column 1 of every row to out in result order. It returns
// true iff at least one row extracted successfully; rows that fail
// extraction are skipped but do not fail the call.
func QueryColumn[T Value](ctx context.Context, c *Conn, stmt string, out *[]T) bool {
	res, err := c.runQuery(ctx, stmt)
	if err != nil {
		logStatementFailure(c.logger, stmt, err)
		return false
	}
	if res.Len() == 0 {
		c.logger.Debug("query returned no rows", "conn_id", c.id, "stmt", stmt)
		return false
	}

	*out = (*out)[:0]
	extracted := false
	for row := range res.rows {
		var v T
		if bindValue(c.logger, res, row, 1, &v) {
			*out = append(*out, v)
			extracted = true
		}
	}
	return extracted
}

// Slot binds one result column into a caller-supplied variable. Build one
// per output with Bind; QueryValues assigns columns to slots in order.
type Slot interface {
	bind(logger *slog.Logger, res *Result, row, col int) bool
}

type slot[T Value] struct {
	out *T
}

func (s slot[T]) bind(logger *slog.Logger, res *Result, row, col int) bool {
	return bindValue(logger, res, row, col, s.out)
}

// Bind wraps a typed output variable into a Slot for QueryValues.
func Bind[T Value](out *T) Slot {
	return slot[T]{out: out}
}

// QueryValues runs a query that must return exactly one row and extracts
// one column per slot: slot 1 from column 1, slot 2 from column 2, and so
// on. The first failed extraction short-circuits the call; earlier slots
// keep their extracted values, later slots are untouched. Supplying more
// slots than the result has columns fails from the accessor, not a crash.
func QueryValues(ctx context.Context, c *Conn, stmt string, slots ...Slot) bool {
	res, ok := querySingleRow(ctx, c, stmt)
	if !ok {
		return false
	}
	for i, s := range slots {
		if !s.bind(c.logger, res, 0, i+1) {
			return false
		}
	}
	return true
}

// querySingleRow runs stmt and enforces the exactly-one-row contract shared
// by QueryValue and QueryValues.
func querySingleRow(ctx context.Context, c *Conn, stmt string) (*Result, bool) {
	res, err := c.runQuery(ctx, stmt)
	if err != nil {
		logStatementFailure(c.logger, stmt, err)
		return nil, false
	}
	if res.Len() == 0 {
		c.logger.Debug("query returned no rows", "conn_id", c.id, "stmt", stmt)
		return nil, false
	}
	if res.Len() != 1 {
		c.logger.Error("unexpected row count",
			"conn_id", c.id,
			"stmt", stmt,
			"rows", res.Len(),
			"err", ErrRowCountMismatch.Error(),
		)
		return nil, false
	}
	return res, true
}

// bindValue extracts the 1-based column col of row into out using the
// accessor family for T. Failures are logged and reported as false; they
// never panic.
func bindValue[T Value](logger *slog.Logger, res *Result, row, col int, out *T) bool {
	raw, err := res.value(row, col)
	if err != nil {
		logger.Error("column extraction failed", "column", col, "err", err.Error())
		return false
	}

	ok := false
	switch dst := any(out).(type) {
	case *float32:
		var f float64
		if f, ok = asFloat64(raw); ok {
			*dst = float32(f)
		}
	case *float64:
		*dst, ok = asFloat64(raw)
	case *int:
		var i int64
		if i, ok = asInt64(raw); ok {
			*dst = int(i)
		}
	case *int32:
		var i int64
		if i, ok = asInt64(raw); ok {
			*dst = int32(i)
		}
	case *int64:
		*dst, ok = asInt64(raw)
	case *uint:
		var u uint64
		if u, ok = asUint64(raw); ok {
			*dst = uint(u)
		}
	case *uint32:
		var u uint64
		if u, ok = asUint64(raw); ok {
			*dst = uint32(u)
		}
	case *uint64:
		*dst, ok = asUint64(raw)
	case *string:
		*dst, ok = asString(raw)
	default:
		// Unreachable while the Value constraint and this switch agree.
		logger.Error("unsupported extraction type", "type", fmt.Sprintf("%T", out))
		return false
	}

	if !ok {
		convErr := &ConvertError{
			Column: col,
			From:   fmt.Sprintf("%T", raw),
			To:     fmt.Sprintf("%T", *out),
		}
		logger.Error("column extraction failed", "column", col, "err", convErr.Error())
		return false
	}
	return true
}

// The accessor families. Each coerces only from the raw driver
// representations of its own family (numerics arrive from lib/pq as int64,
// float64 or []byte depending on column type); anything else is an
// unsupported conversion.

func asFloat64(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case []byte:
		i, err := strconv.ParseInt(string(v), 10, 64)
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func asUint64(raw any) (uint64, bool) {
	switch v := raw.(type) {
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint64:
		return v, true
	case []byte:
		u, err := strconv.ParseUint(string(v), 10, 64)
		return u, err == nil
	case string:
		u, err := strconv.ParseUint(v, 10, 64)
		return u, err == nil
	}
	return 0, false
}

func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

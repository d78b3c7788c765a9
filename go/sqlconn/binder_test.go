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
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multigres/sqlconn/go/tools/fakesqldb"
)

func TestQueryValueRoundTrip(t *testing.T) {
	db := fakesqldb.New(t)
	conn := newTestConn(t, db)
	ctx := context.Background()

	// One registered query per supported type, with the raw driver
	// representations lib/pq actually produces.
	db.AddQuery("SELECT i", &fakesqldb.ExpectedResult{
		Columns: []string{"i"}, Rows: [][]any{{int64(-12345)}},
	})
	db.AddQuery("SELECT f", &fakesqldb.ExpectedResult{
		Columns: []string{"f"}, Rows: [][]any{{float64(2.5)}},
	})
	db.AddQuery("SELECT n", &fakesqldb.ExpectedResult{
		Columns: []string{"n"}, Rows: [][]any{{[]byte("3.25")}}, // numeric comes back as bytes
	})
	db.AddQuery("SELECT s", &fakesqldb.ExpectedResult{
		Columns: []string{"s"}, Rows: [][]any{{"hello"}},
	})
	db.AddQuery("SELECT b", &fakesqldb.ExpectedResult{
		Columns: []string{"b"}, Rows: [][]any{{[]byte("world")}},
	})

	var i int
	require.True(t, QueryValue(ctx, conn, "SELECT i", &i))
	assert.Equal(t, -12345, i)

	var i64 int64
	require.True(t, QueryValue(ctx, conn, "SELECT i", &i64))
	assert.Equal(t, int64(-12345), i64)

	var u uint64
	assert.False(t, QueryValue(ctx, conn, "SELECT f", &u))
	assert.False(t, QueryValue(ctx, conn, "SELECT s", &u))

	var f64 float64
	require.True(t, QueryValue(ctx, conn, "SELECT f", &f64))
	assert.Equal(t, 2.5, f64)

	var f32 float32
	require.True(t, QueryValue(ctx, conn, "SELECT n", &f32))
	assert.Equal(t, float32(3.25), f32)

	// The float accessor also serves integer columns.
	require.True(t, QueryValue(ctx, conn, "SELECT i", &f64))
	assert.Equal(t, float64(-12345), f64)

	var s string
	require.True(t, QueryValue(ctx, conn, "SELECT s", &s))
	assert.Equal(t, "hello", s)
	require.True(t, QueryValue(ctx, conn, "SELECT b", &s))
	assert.Equal(t, "world", s)
}

func TestQueryValueUnsigned(t *testing.T) {
	db := fakesqldb.New(t)
	conn := newTestConn(t, db)
	ctx := context.Background()

	db.AddQuery("SELECT pos", &fakesqldb.ExpectedResult{
		Columns: []string{"pos"}, Rows: [][]any{{int64(7)}},
	})
	db.AddQuery("SELECT neg", &fakesqldb.ExpectedResult{
		Columns: []string{"neg"}, Rows: [][]any{{int64(-7)}},
	})

	var u uint
	require.True(t, QueryValue(ctx, conn, "SELECT pos", &u))
	assert.Equal(t, uint(7), u)

	var u32 uint32
	require.True(t, QueryValue(ctx, conn, "SELECT pos", &u32))
	assert.Equal(t, uint32(7), u32)

	// Negative values do not fit the unsigned accessor.
	var u64 uint64
	assert.False(t, QueryValue(ctx, conn, "SELECT neg", &u64))
	assert.Equal(t, uint64(0), u64)
}

func TestQueryValueNoRows(t *testing.T) {
	db := fakesqldb.New(t)
	db.AddQuery("SELECT name FROM t WHERE id = 99", &fakesqldb.ExpectedResult{
		Columns: []string{"name"},
	})
	conn := newTestConn(t, db)

	out := "sentinel"
	assert.False(t, QueryValue(context.Background(), conn, "SELECT name FROM t WHERE id = 99", &out))
	assert.Equal(t, "sentinel", out)
}

func TestQueryValueRowCountMismatch(t *testing.T) {
	db := fakesqldb.New(t)
	db.AddQuery("SELECT name FROM t", &fakesqldb.ExpectedResult{
		Columns: []string{"name"},
		Rows:    [][]any{{"a"}, {"b"}},
	})
	conn := newTestConn(t, db)

	// More than one row never silently yields the first row.
	out := "sentinel"
	assert.False(t, QueryValue(context.Background(), conn, "SELECT name FROM t", &out))
	assert.Equal(t, "sentinel", out)
}

func TestQueryColumn(t *testing.T) {
	db := fakesqldb.New(t)
	db.AddQuery("SELECT id FROM t ORDER BY id", &fakesqldb.ExpectedResult{
		Columns: []string{"id"},
		Rows:    [][]any{{int64(1)}, {int64(2)}, {int64(3)}},
	})
	db.AddQuery("SELECT id FROM empty", &fakesqldb.ExpectedResult{
		Columns: []string{"id"},
	})
	conn := newTestConn(t, db)
	ctx := context.Background()

	var ids []int64
	require.True(t, QueryColumn(ctx, conn, "SELECT id FROM t ORDER BY id", &ids))
	assert.Equal(t, []int64{1, 2, 3}, ids)

	// The output is cleared before refilling.
	require.True(t, QueryColumn(ctx, conn, "SELECT id FROM t ORDER BY id", &ids))
	assert.Equal(t, []int64{1, 2, 3}, ids)

	assert.False(t, QueryColumn(ctx, conn, "SELECT id FROM empty", &ids))
}

func TestQueryColumnPartialSuccess(t *testing.T) {
	db := fakesqldb.New(t)
	db.AddQuery("SELECT v FROM t", &fakesqldb.ExpectedResult{
		Columns: []string{"v"},
		Rows:    [][]any{{int64(1)}, {[]byte("not a number")}, {int64(3)}},
	})
	conn := newTestConn(t, db)

	// Rows that fail extraction are skipped; the call still succeeds.
	var vals []int
	require.True(t, QueryColumn(context.Background(), conn, "SELECT v FROM t", &vals))
	assert.Equal(t, []int{1, 3}, vals)
}

func TestQueryColumnAllRowsFail(t *testing.T) {
	db := fakesqldb.New(t)
	db.AddQuery("SELECT v FROM t", &fakesqldb.ExpectedResult{
		Columns: []string{"v"},
		Rows:    [][]any{{[]byte("x")}, {[]byte("y")}},
	})
	conn := newTestConn(t, db)

	// When no row extracts, the call fails and the output stays cleared.
	vals := []int{99}
	assert.False(t, QueryColumn(context.Background(), conn, "SELECT v FROM t", &vals))
	assert.Empty(t, vals)
}

func TestQueryValues(t *testing.T) {
	db := fakesqldb.New(t)
	db.AddQuery("SELECT a, b, c FROM t WHERE id = 1", &fakesqldb.ExpectedResult{
		Columns: []string{"a", "b", "c"},
		Rows:    [][]any{{int64(10), "x", float64(1.5)}},
	})
	conn := newTestConn(t, db)

	var (
		a int
		b string
		c float64
	)
	require.True(t, QueryValues(context.Background(), conn, "SELECT a, b, c FROM t WHERE id = 1",
		Bind(&a), Bind(&b), Bind(&c)))
	assert.Equal(t, 10, a)
	assert.Equal(t, "x", b)
	assert.Equal(t, 1.5, c)
}

func TestQueryValuesShortCircuit(t *testing.T) {
	db := fakesqldb.New(t)
	db.AddQuery("SELECT a, b, c FROM t WHERE id = 1", &fakesqldb.ExpectedResult{
		Columns: []string{"a", "b", "c"},
		Rows:    [][]any{{int64(10), []byte("not a number"), int64(30)}},
	})
	conn := newTestConn(t, db)

	// Column 2 fails: slot 1 is already bound, slot 3 must stay untouched.
	var (
		a = -1
		b = -1
		c = -1
	)
	assert.False(t, QueryValues(context.Background(), conn, "SELECT a, b, c FROM t WHERE id = 1",
		Bind(&a), Bind(&b), Bind(&c)))
	assert.Equal(t, 10, a)
	assert.Equal(t, -1, b)
	assert.Equal(t, -1, c)
}

func TestQueryValuesTooManySlots(t *testing.T) {
	db := fakesqldb.New(t)
	db.AddQuery("SELECT a FROM t WHERE id = 1", &fakesqldb.ExpectedResult{
		Columns: []string{"a"},
		Rows:    [][]any{{int64(10)}},
	})
	conn := newTestConn(t, db)

	// More slots than columns fails from the accessor, never a crash.
	var a, b int
	assert.False(t, QueryValues(context.Background(), conn, "SELECT a FROM t WHERE id = 1",
		Bind(&a), Bind(&b)))
	assert.Equal(t, 10, a)
	assert.Equal(t, 0, b)
}

func TestQueryValuesRowCountMismatch(t *testing.T) {
	db := fakesqldb.New(t)
	db.AddQuery("SELECT a, b FROM t", &fakesqldb.ExpectedResult{
		Columns: []string{"a", "b"},
		Rows:    [][]any{{int64(1), "x"}, {int64(2), "y"}},
	})
	conn := newTestConn(t, db)

	var (
		a int
		b string
	)
	assert.False(t, QueryValues(context.Background(), conn, "SELECT a, b FROM t", Bind(&a), Bind(&b)))
	assert.Equal(t, 0, a)
	assert.Empty(t, b)
}

func TestUnsupportedConversionLogged(t *testing.T) {
	db := fakesqldb.New(t)
	db.AddQuery("SELECT v", &fakesqldb.ExpectedResult{
		Columns: []string{"v"},
		Rows:    [][]any{{[]byte("abc")}},
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	conn, err := New(context.Background(), nil, 1, Params{Connector: db}, logger)
	require.NoError(t, err)
	defer conn.Close()

	var out int
	assert.False(t, QueryValue(context.Background(), conn, "SELECT v", &out))
	assert.Contains(t, buf.String(), "cannot convert column 1")
	assert.Contains(t, buf.String(), "int")
}

func TestBindValueAccessorFamilies(t *testing.T) {
	logger := slog.Default()
	res := &Result{
		columns: []string{"a", "b", "c", "d"},
		rows:    [][]any{{int64(5), float64(5.5), []byte("6"), "seven"}},
	}

	var i int64
	require.True(t, bindValue(logger, res, 0, 1, &i))
	assert.Equal(t, int64(5), i)

	require.True(t, bindValue(logger, res, 0, 3, &i))
	assert.Equal(t, int64(6), i)

	var f float64
	require.True(t, bindValue(logger, res, 0, 2, &f))
	assert.Equal(t, 5.5, f)

	var s string
	require.True(t, bindValue(logger, res, 0, 4, &s))
	assert.Equal(t, "seven", s)

	// The string accessor does not stringify numbers.
	assert.False(t, bindValue(logger, res, 0, 1, &s))

	// Out-of-range column.
	assert.False(t, bindValue(logger, res, 0, 5, &i))
}

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

// Package fakesqldb provides a fake SQL database for tests. Expected
// queries are registered up front with their results; the fake then serves
// them through a database/sql/driver implementation, so code under test
// runs against a real *sql.DB without a server.
//
// Connection failures can be simulated with EnableConnFail, which makes
// live sessions report driver.ErrBadConn on ping and new dials fail; this
// is how reconnect behavior is exercised.
package fakesqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// DB is a fake SQL database. All methods are thread-safe. It implements
// driver.Connector so it can be injected wherever a connector is accepted
// or opened directly with sql.OpenDB.
type DB struct {
	// t is our testing.TB instance
	t testing.TB

	// name is the name of this DB
	name string

	// connFail makes pings report driver.ErrBadConn and dials fail
	connFail atomic.Bool

	// connCount counts dial attempts, including failed ones
	connCount atomic.Int64

	// neverFail makes unmatched queries return empty results instead of errors
	neverFail atomic.Bool

	// mu protects all the following fields
	mu sync.Mutex

	// data maps tolower(query) to a result
	data map[string]*ExpectedResult

	// rejectedData maps tolower(query) to an error
	rejectedData map[string]error

	// patternData is a map of regexp queries to results
	patternData map[string]exprResult

	// queryCalled keeps track of how many times a query was called
	queryCalled map[string]int

	// querylog keeps track of all called queries
	querylog []string
}

// ExpectedResult holds the data for a matched query. Row values must be
// raw driver values (int64, float64, []byte, string, bool, time.Time, nil).
type ExpectedResult struct {
	Columns []string
	Rows    [][]any
}

type exprResult struct {
	expr   *regexp.Regexp
	result *ExpectedResult
	err    error
}

// New creates a new fake SQL database for testing.
func New(t testing.TB) *DB {
	return &DB{
		t:            t,
		name:         "fakesqldb",
		data:         make(map[string]*ExpectedResult),
		rejectedData: make(map[string]error),
		patternData:  make(map[string]exprResult),
		queryCalled:  make(map[string]int),
	}
}

// Name returns the name of the DB.
func (db *DB) Name() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.name
}

// SetName sets the name of the DB.
func (db *DB) SetName(name string) *DB {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.name = name
	return db
}

// Connect returns a driver.Conn implementation, or an error while
// connection failures are enabled. Every call counts as a dial attempt.
func (db *DB) Connect(ctx context.Context) (driver.Conn, error) {
	db.connCount.Add(1)
	if db.connFail.Load() {
		return nil, fmt.Errorf("%s: forced connection failure", db.Name())
	}
	return &fakeConn{db: db}, nil
}

// Driver returns a driver.Driver implementation.
func (db *DB) Driver() driver.Driver {
	return &fakeDriver{db: db}
}

// OpenDB returns a *sql.DB connected to this fake database.
func (db *DB) OpenDB() *sql.DB {
	return sql.OpenDB(db)
}

// EnableConnFail makes live sessions report driver.ErrBadConn on ping and
// new dials fail.
func (db *DB) EnableConnFail() {
	db.connFail.Store(true)
}

// DisableConnFail restores normal connection behavior.
func (db *DB) DisableConnFail() {
	db.connFail.Store(false)
}

// ConnCount returns the number of dial attempts so far, failed ones
// included.
func (db *DB) ConnCount() int64 {
	return db.connCount.Load()
}

// SetNeverFail makes unmatched queries return empty results instead of errors.
func (db *DB) SetNeverFail(neverFail bool) {
	db.neverFail.Store(neverFail)
}

//
// Methods to add expected queries and results.
//

// AddQuery adds a query and its expected result.
func (db *DB) AddQuery(query string, expectedResult *ExpectedResult) *ExpectedResult {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := strings.ToLower(query)
	r := &ExpectedResult{
		Columns: expectedResult.Columns,
		Rows:    expectedResult.Rows,
	}
	db.data[key] = r
	db.queryCalled[key] = 0
	return r
}

// AddQueryPattern adds an expected result for a set of queries. Patterns
// are checked if no exact match from AddQuery() is found. Begin/end anchors
// (^$) are added and case-insensitive matching is turned on.
func (db *DB) AddQueryPattern(queryPattern string, expectedResult *ExpectedResult) {
	expr := regexp.MustCompile("(?is)^" + queryPattern + "$")
	db.mu.Lock()
	defer db.mu.Unlock()
	db.patternData[queryPattern] = exprResult{
		expr:   expr,
		result: expectedResult,
	}
}

// RejectQueryPattern makes queries matching the pattern fail with err.
func (db *DB) RejectQueryPattern(queryPattern string, err error) {
	expr := regexp.MustCompile("(?is)^" + queryPattern + "$")
	db.mu.Lock()
	defer db.mu.Unlock()
	db.patternData[queryPattern] = exprResult{
		expr: expr,
		err:  err,
	}
}

// AddRejectedQuery adds a query which will be rejected at execution time.
func (db *DB) AddRejectedQuery(query string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rejectedData[strings.ToLower(query)] = err
}

// DeleteQuery deletes query from the fake DB.
func (db *DB) DeleteQuery(query string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := strings.ToLower(query)
	delete(db.data, key)
	delete(db.queryCalled, key)
}

// DeleteAllQueries deletes all expected queries from the fake DB.
func (db *DB) DeleteAllQueries() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data = make(map[string]*ExpectedResult)
	db.rejectedData = make(map[string]error)
	db.patternData = make(map[string]exprResult)
	db.queryCalled = make(map[string]int)
}

// GetQueryCalledNum returns how many times db executed a certain query.
func (db *DB) GetQueryCalledNum(query string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.queryCalled[strings.ToLower(query)]
}

// QueryLog returns the query log as a semicolon separated string.
func (db *DB) QueryLog() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return strings.Join(db.querylog, ";")
}

// ResetQueryLog resets the query log.
func (db *DB) ResetQueryLog() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.querylog = nil
}

// handleQuery handles a query and returns the result.
func (db *DB) handleQuery(query string) (*ExpectedResult, error) {
	key := strings.ToLower(query)
	db.mu.Lock()
	db.queryCalled[key]++
	db.querylog = append(db.querylog, key)

	// Check if we should reject it
	if err, ok := db.rejectedData[key]; ok {
		db.mu.Unlock()
		return nil, err
	}

	// Check explicit queries from AddQuery()
	if result, ok := db.data[key]; ok {
		db.mu.Unlock()
		return result, nil
	}

	// Check query patterns from AddQueryPattern()
	for _, pat := range db.patternData {
		if pat.expr.MatchString(query) {
			db.mu.Unlock()
			if pat.err != nil {
				return nil, pat.err
			}
			return pat.result, nil
		}
	}
	db.mu.Unlock()

	if db.neverFail.Load() {
		return &ExpectedResult{}, nil
	}

	// Nothing matched
	db.t.Logf("%v: unmatched query: %v", db.Name(), query)
	return nil, fmt.Errorf("fakesqldb: query '%s' is not supported on %v", query, db.Name())
}

var _ driver.Connector = (*DB)(nil)

// ErrForcedFailure can be registered with AddRejectedQuery when the test
// only cares that the query fails.
var ErrForcedFailure = errors.New("forced query failure")

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
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
)

var (
	// ErrRowCountMismatch indicates a single-row extraction was attempted
	// against a result set with more than one row.
	ErrRowCountMismatch = errors.New("result set has more than one row")

	// ErrColumnOutOfRange indicates a binder was asked for a column the
	// result set does not have.
	ErrColumnOutOfRange = errors.New("column index out of range")

	// ErrRowOutOfRange indicates a row index outside the result set.
	ErrRowOutOfRange = errors.New("row index out of range")

	// ErrNoPrepared indicates a prepared execution was requested before
	// CreatePrepared.
	ErrNoPrepared = errors.New("no prepared statement created")

	// ErrClosed indicates the connection has been closed.
	ErrClosed = errors.New("connection is closed")
)

// ConvertError reports a column value the accessor family for the target
// type could not represent.
type ConvertError struct {
	Column int
	From   string // Go type of the raw driver value
	To     string // Go type of the caller's output slot
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("cannot convert column %d from %s to %s", e.Column, e.From, e.To)
}

// sqlstate returns the driver error code name and SQLSTATE when err carries
// a PostgreSQL error, empty strings otherwise.
func sqlstate(err error) (code string, state string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name(), string(pqErr.Code)
	}
	return "", ""
}

// logStatementFailure emits the fixed diagnostic shape for a failed
// statement: statement text, driver message, driver error code, SQL state.
func logStatementFailure(logger *slog.Logger, stmt string, err error) {
	code, state := sqlstate(err)
	logger.Error("statement failed",
		"stmt", stmt,
		"err", err.Error(),
		"code", code,
		"sqlstate", state,
	)
}

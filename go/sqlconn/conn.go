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

// Package sqlconn wraps one logical database connection: it manages the
// session's lifecycle (connect, validity check, reconnect, teardown) and
// exposes a type-directed mechanism for extracting query results into
// caller-supplied typed variables.
//
// Every execute method verifies the native session is alive before
// dispatching the statement, reconnecting once with the parameters captured
// at construction if it is not; callers never manage liveness themselves.
// Driver failures never escape the public surface: they are logged with the
// statement text, driver message, error code and SQL state, and converted
// to a false or zero return.
//
// A Conn is built for exclusive use by one caller at a time, typically
// borrowed from a connmanage pool and returned after a sequence of
// executions. It provides no internal locking; concurrent calls on the same
// Conn are not supported.
package sqlconn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Manager is the pool-side contract a Conn keeps a non-owning reference to.
// It exists for identity and future lifecycle callbacks; neither side
// controls the other's lifetime through this reference.
type Manager interface {
	// Name identifies the owning pool in logs.
	Name() string
}

// Params are the connection parameters captured at construction and reused
// verbatim for every reconnect.
type Params struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Connector, when set, overrides the lib/pq DSN path. Tests inject a
	// fake database here; alternative drivers can do the same.
	Connector driver.Connector
}

// dsn renders the lib/pq key=value connection string.
func (p Params) dsn() string {
	host := p.Host
	if host == "" {
		host = "localhost"
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}

	parts := []string{
		fmt.Sprintf("host=%s", host),
		fmt.Sprintf("port=%d", port),
	}
	if p.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", p.User))
	}
	if p.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", p.Password))
	}
	if p.Database != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", p.Database))
	}
	parts = append(parts, "sslmode=disable")
	return strings.Join(parts, " ")
}

// Conn owns exactly one native database session, one optional prepared
// statement handle, and the most recent result set. The result set is
// replaced wholesale on every result-producing execution; at most one valid
// Result exists per Conn at any time.
type Conn struct {
	id      uint64
	params  Params
	manager Manager // non-owning back-reference, identity only
	logger  *slog.Logger

	db       *sql.DB
	session  *sql.Conn
	prepared *sql.Stmt
	result   *Result
}

// New establishes a connection with the given pool-assigned identifier and
// parameters. The manager reference may be nil when the Conn is used
// without a pool. Construction failure is the one path that reports an
// error rather than a boolean: the pool must know the dial failed.
func New(ctx context.Context, manager Manager, id uint64, params Params, logger *slog.Logger) (*Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var db *sql.DB
	if params.Connector != nil {
		db = sql.OpenDB(params.Connector)
	} else {
		var err error
		db, err = sql.Open("postgres", params.dsn())
		if err != nil {
			return nil, fmt.Errorf("failed to open database handle: %w", err)
		}
	}
	// The handle backs exactly one native session.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &Conn{
		id:      id,
		params:  params,
		manager: manager,
		logger:  logger,
		db:      db,
	}
	if err := c.ensureSession(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	logger.Info("connection established",
		"conn_id", id,
		"host", params.Host,
		"database", params.Database,
		"pool", managerName(manager),
	)
	return c, nil
}

func managerName(m Manager) string {
	if m == nil {
		return ""
	}
	return m.Name()
}

// ID returns the pool-assigned identifier.
func (c *Conn) ID() uint64 {
	return c.id
}

// SetID reassigns the identifier. Only the owning pool should call this.
func (c *Conn) SetID(id uint64) {
	c.id = id
}

// Manager returns the non-owning pool back-reference, nil for pool-less use.
func (c *Conn) Manager() Manager {
	return c.manager
}

// Close releases the owned handles in reverse-acquisition order: prepared
// statement, session, driver handle.
func (c *Conn) Close() error {
	var errs []error
	if c.prepared != nil {
		errs = append(errs, c.prepared.Close())
		c.prepared = nil
	}
	if c.session != nil {
		err := c.session.Close()
		// The session may already have been torn down by a failed ping.
		if err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, err)
		}
		c.session = nil
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
		c.db = nil
	}
	c.result = nil
	return errors.Join(errs...)
}

// ensureSession verifies the native session is alive and reconnects once
// with the original parameters if it is not. A failure here fails the
// calling execution; there is no further retry.
func (c *Conn) ensureSession(ctx context.Context) error {
	if c.db == nil {
		return ErrClosed
	}
	if c.session != nil {
		if err := c.session.PingContext(ctx); err == nil {
			return nil
		}
		_ = c.session.Close()
		c.session = nil
		c.logger.Warn("native session lost, reconnecting", "conn_id", c.id)
	}

	session, err := c.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to establish session: %w", err)
	}
	c.session = session
	return nil
}

// ExecuteCommand runs a statement that produces no result set (DDL/DML).
// The current result set is left untouched.
func (c *Conn) ExecuteCommand(ctx context.Context, stmt string) bool {
	if err := c.ensureSession(ctx); err != nil {
		logStatementFailure(c.logger, stmt, err)
		return false
	}
	if _, err := c.session.ExecContext(ctx, stmt); err != nil {
		logStatementFailure(c.logger, stmt, err)
		return false
	}
	return true
}

// runQuery executes a result-producing statement and replaces the current
// result set with its output. The previous Result is dropped before the
// new one becomes readable.
func (c *Conn) runQuery(ctx context.Context, stmt string) (*Result, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	rows, err := c.session.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	res, err := collectResult(rows)
	if err != nil {
		return nil, err
	}
	c.result = res
	return res, nil
}

// ExecuteQuery runs a result-producing statement. An empty result set is
// reported as false: a negative "not found" signal, not a failure. The two
// cases are distinguishable in the logs (debug versus error).
func (c *Conn) ExecuteQuery(ctx context.Context, stmt string) bool {
	res, err := c.runQuery(ctx, stmt)
	if err != nil {
		logStatementFailure(c.logger, stmt, err)
		return false
	}
	if res.Len() == 0 {
		c.logger.Debug("query returned no rows", "conn_id", c.id, "stmt", stmt)
		return false
	}
	return true
}

// ExecuteQueryCount runs a query and returns its row count. Failures
// return zero after logging.
func (c *Conn) ExecuteQueryCount(ctx context.Context, stmt string) uint64 {
	res, err := c.runQuery(ctx, stmt)
	if err != nil {
		logStatementFailure(c.logger, stmt, err)
		return 0
	}
	return res.Len()
}

// ExecuteCheckExist runs a query and reports whether it returned at least
// one row.
func (c *Conn) ExecuteCheckExist(ctx context.Context, stmt string) bool {
	res, err := c.runQuery(ctx, stmt)
	if err != nil {
		logStatementFailure(c.logger, stmt, err)
		return false
	}
	return res.Len() > 0
}

// Result returns the current result set for manual row access. The handle
// is read-only and must not be retained beyond the next execution.
func (c *Conn) Result() *Result {
	return c.result
}

// CreatePrepared compiles stmt into the connection's prepared handle,
// replacing any previously prepared statement. The prepared handle and the
// ad-hoc execution path are independent: neither invalidates the other.
func (c *Conn) CreatePrepared(ctx context.Context, stmt string) bool {
	if err := c.ensureSession(ctx); err != nil {
		logStatementFailure(c.logger, stmt, err)
		return false
	}
	prepared, err := c.session.PrepareContext(ctx, stmt)
	if err != nil {
		logStatementFailure(c.logger, stmt, err)
		return false
	}
	if c.prepared != nil {
		_ = c.prepared.Close()
	}
	c.prepared = prepared
	return true
}

// Prepared returns the prepared statement handle, nil before CreatePrepared.
func (c *Conn) Prepared() *sql.Stmt {
	return c.prepared
}

// ExecutePreparedCommand runs the prepared statement as a command. A
// prepared handle is bound to the session it was compiled on; if the
// session was replaced by a reconnect, execution fails and the caller must
// re-prepare.
func (c *Conn) ExecutePreparedCommand(ctx context.Context, args ...any) bool {
	if err := c.ensureSession(ctx); err != nil {
		logStatementFailure(c.logger, "(prepared)", err)
		return false
	}
	if c.prepared == nil {
		logStatementFailure(c.logger, "(prepared)", ErrNoPrepared)
		return false
	}
	if _, err := c.prepared.ExecContext(ctx, args...); err != nil {
		logStatementFailure(c.logger, "(prepared)", err)
		return false
	}
	return true
}

// ExecutePreparedQuery runs the prepared statement as a query, refreshing
// the current result set exactly like the ad-hoc query path. Same boolean
// contract as ExecuteQuery: an empty result set is false.
func (c *Conn) ExecutePreparedQuery(ctx context.Context, args ...any) bool {
	if err := c.ensureSession(ctx); err != nil {
		logStatementFailure(c.logger, "(prepared)", err)
		return false
	}
	if c.prepared == nil {
		logStatementFailure(c.logger, "(prepared)", ErrNoPrepared)
		return false
	}
	rows, err := c.prepared.QueryContext(ctx, args...)
	if err != nil {
		logStatementFailure(c.logger, "(prepared)", err)
		return false
	}
	res, err := collectResult(rows)
	if err != nil {
		logStatementFailure(c.logger, "(prepared)", err)
		return false
	}
	c.result = res
	if res.Len() == 0 {
		c.logger.Debug("prepared query returned no rows", "conn_id", c.id)
		return false
	}
	return true
}

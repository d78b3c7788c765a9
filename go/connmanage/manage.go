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

// Package connmanage owns a fixed set of sqlconn connections: it dials
// them, assigns their identifiers, and hands them out for exclusive use,
// one borrower at a time per connection.
//
// Usage:
//
//	cfg := connmanage.NewConfig(reg)
//	cfg.RegisterFlags(cmd.Flags())
//	// ... parse flags ...
//	mgr, err := connmanage.NewManage(ctx, logger, cfg.Params(), cfg.Capacity())
//	defer mgr.Close()
//
//	conn, err := mgr.Acquire(ctx)
//	defer mgr.Release(conn)
package connmanage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/multigres/sqlconn/go/sqlconn"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("connection pool is closed")

// Stats reports pool occupancy.
type Stats struct {
	Capacity int
	Free     int
}

// Manage is the connection pool. It implements sqlconn.Manager, serving as
// the non-owning back-reference each connection carries.
type Manage struct {
	name     string
	logger   *slog.Logger
	capacity int

	// conns holds the free connections; checked-out ones live with their
	// borrowers until Release.
	conns chan *sqlconn.Conn

	// done is closed by Close so a blocked Acquire unblocks immediately.
	done chan struct{}

	mu     sync.Mutex
	closed bool

	// owned is the fixed membership set dialed at construction; the value
	// records whether the connection is currently checked out. Release
	// refuses connections outside the set.
	owned map[*sqlconn.Conn]bool
}

// NewManage dials capacity connections with the given parameters. Every
// connection gets a randomly assigned identifier. If any dial fails, the
// already-established connections are torn down and the error returned.
func NewManage(ctx context.Context, logger *slog.Logger, params sqlconn.Params, capacity int) (*Manage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity < 1 {
		return nil, fmt.Errorf("pool capacity must be at least 1, got %d", capacity)
	}

	name := "connmanage"
	if params.Database != "" {
		name += "/" + params.Database
	}
	m := &Manage{
		name:     name,
		logger:   logger,
		capacity: capacity,
		conns:    make(chan *sqlconn.Conn, capacity),
		done:     make(chan struct{}),
		owned:    make(map[*sqlconn.Conn]bool, capacity),
	}

	for i := 0; i < capacity; i++ {
		conn, err := sqlconn.New(ctx, m, rand.Uint64(), params, logger)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to establish connection %d of %d: %w", i+1, capacity, err)
		}
		m.owned[conn] = false
		m.conns <- conn
	}

	logger.Info("connection pool ready", "pool", m.name, "capacity", capacity)
	return m, nil
}

// Name identifies the pool in connection logs.
func (m *Manage) Name() string {
	return m.name
}

// Acquire hands out a free connection for exclusive use, blocking until
// one is released, the pool is closed, or ctx is done.
func (m *Manage) Acquire(ctx context.Context) (*sqlconn.Conn, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case conn := <-m.conns:
		m.mu.Lock()
		m.owned[conn] = true
		m.mu.Unlock()
		return conn, nil
	case <-m.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a borrowed connection to the pool. After Close the
// connection is torn down instead.
func (m *Manage) Release(conn *sqlconn.Conn) {
	if conn == nil {
		return
	}
	m.mu.Lock()
	borrowed, owned := m.owned[conn]
	if owned {
		m.owned[conn] = false
	}
	closed := m.closed
	m.mu.Unlock()

	// A connection the pool never handed out; it must not enter the
	// free list even while there is spare capacity.
	if !owned {
		m.logger.Warn("released connection does not belong to pool, closing it", "conn_id", conn.ID())
		_ = conn.Close()
		return
	}
	if closed {
		if err := conn.Close(); err != nil {
			m.logger.Warn("failed to close connection", "conn_id", conn.ID(), "err", err)
		}
		return
	}
	if !borrowed {
		m.logger.Warn("connection released twice", "conn_id", conn.ID())
		return
	}

	// Never blocks: the channel has one slot per owned connection.
	m.conns <- conn
}

// Close tears down all free connections. Borrowed connections are closed
// as they come back through Release. Safe to call more than once.
func (m *Manage) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	for {
		select {
		case conn := <-m.conns:
			if err := conn.Close(); err != nil {
				m.logger.Warn("failed to close connection", "conn_id", conn.ID(), "err", err)
			}
		default:
			m.logger.Info("connection pool closed", "pool", m.name)
			return
		}
	}
}

// Stats returns current pool occupancy.
func (m *Manage) Stats() Stats {
	return Stats{
		Capacity: m.capacity,
		Free:     len(m.conns),
	}
}

var _ sqlconn.Manager = (*Manage)(nil)

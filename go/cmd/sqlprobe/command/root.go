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

// Package command implements the sqlprobe CLI: ad-hoc statements and
// probes against a PostgreSQL database through a sqlconn pool.
package command

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/multigres/sqlconn/go/connmanage"
	"github.com/multigres/sqlconn/go/sqlconn"
	"github.com/multigres/sqlconn/go/viperutil"
)

// probeState carries the configuration registry and logger shared by all
// subcommands.
type probeState struct {
	reg *viperutil.Registry
	cfg *connmanage.Config

	logLevel  string
	logFormat string
	logger    *slog.Logger
}

// Root creates the sqlprobe root command with all subcommands attached.
func Root() *cobra.Command {
	reg := viperutil.NewRegistry()
	st := &probeState{
		reg: reg,
		cfg: connmanage.NewConfig(reg),
	}

	root := &cobra.Command{
		Use:   "sqlprobe",
		Short: "Run ad-hoc statements and probes against a PostgreSQL database",
		Long: `sqlprobe dials a small connection pool with the configured credentials
and runs a single statement, query, count, or existence probe on one of
its connections.

Configuration is resolved from flags, SQLCONN_* environment variables,
and an optional sqlprobe config file in the working directory.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Silence usage for application errors; flag errors still show it.
			cmd.SilenceUsage = true

			if err := st.reg.LoadConfig("sqlprobe", "."); err != nil {
				return err
			}
			st.logger = newLogger(st.logLevel, st.logFormat)
			slog.SetDefault(st.logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&st.logFormat, "log-format", "json", "Log format (json, text)")
	st.cfg.RegisterFlags(root.PersistentFlags())

	addExecCommand(root, st)
	addQueryCommand(root, st)
	addCountCommand(root, st)
	addExistCommand(root, st)
	return root
}

func newLogger(logLevel, logFormat string) *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// withConn builds the pool, borrows one connection, and runs f with it.
func (st *probeState) withConn(cmd *cobra.Command, f func(ctx context.Context, conn *sqlconn.Conn) error) error {
	ctx := cmd.Context()

	pool, err := connmanage.NewManage(ctx, st.logger, st.cfg.Params(), st.cfg.Capacity())
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer pool.Release(conn)

	return f(ctx, conn)
}

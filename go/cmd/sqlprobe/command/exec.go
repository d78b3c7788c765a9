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

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/multigres/sqlconn/go/sqlconn"
)

func addExecCommand(root *cobra.Command, st *probeState) {
	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run a statement that produces no result set (DDL/DML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withConn(cmd, func(ctx context.Context, conn *sqlconn.Conn) error {
				if !conn.ExecuteCommand(ctx, args[0]) {
					return errors.New("statement failed, see log for details")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "OK")
				return nil
			})
		},
	}
	root.AddCommand(cmd)
}

func addCountCommand(root *cobra.Command, st *probeState) {
	cmd := &cobra.Command{
		Use:   "count <sql>",
		Short: "Run a query and print its row count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withConn(cmd, func(ctx context.Context, conn *sqlconn.Conn) error {
				fmt.Fprintln(cmd.OutOrStdout(), conn.ExecuteQueryCount(ctx, args[0]))
				return nil
			})
		},
	}
	root.AddCommand(cmd)
}

func addExistCommand(root *cobra.Command, st *probeState) {
	cmd := &cobra.Command{
		Use:   "exist <sql>",
		Short: "Run a query and report whether it returns any rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withConn(cmd, func(ctx context.Context, conn *sqlconn.Conn) error {
				if conn.ExecuteCheckExist(ctx, args[0]) {
					fmt.Fprintln(cmd.OutOrStdout(), "true")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "false")
				}
				return nil
			})
		},
	}
	root.AddCommand(cmd)
}

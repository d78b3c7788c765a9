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
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/multigres/sqlconn/go/sqlconn"
)

func addQueryCommand(root *cobra.Command, st *probeState) {
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a query and print its result set as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withConn(cmd, func(ctx context.Context, conn *sqlconn.Conn) error {
				if !conn.ExecuteQuery(ctx, args[0]) {
					fmt.Fprintln(cmd.OutOrStdout(), "(no results)")
					return nil
				}
				renderResult(cmd, conn.Result())
				return nil
			})
		},
	}
	root.AddCommand(cmd)
}

func renderResult(cmd *cobra.Command, res *sqlconn.Result) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(res.Columns())
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)

	rows := [][]string{}
	for i := 0; i < int(res.Len()); i++ {
		row := []string{}
		for j := 1; j <= len(res.Columns()); j++ {
			v, _ := res.Value(i, j)
			row = append(row, formatValue(v))
		}
		rows = append(rows, row)
	}
	table.AppendBulk(rows)
	table.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "(%d rows)\n", res.Len())
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

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

package connmanage

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multigres/sqlconn/go/sqlconn"
	"github.com/multigres/sqlconn/go/viperutil"
)

func TestConfigDefaults(t *testing.T) {
	reg := viperutil.NewRegistry()
	cfg := NewConfig(reg)

	assert.Equal(t, sqlconn.Params{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "",
		Database: "postgres",
	}, cfg.Params())
	assert.Equal(t, 5, cfg.Capacity())
}

func TestConfigFlags(t *testing.T) {
	reg := viperutil.NewRegistry()
	cfg := NewConfig(reg)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--db-host=db1.internal",
		"--db-port=6432",
		"--db-user=app",
		"--db-password=secret",
		"--db-name=orders",
		"--pool-capacity=3",
	}))

	assert.Equal(t, sqlconn.Params{
		Host:     "db1.internal",
		Port:     6432,
		User:     "app",
		Password: "secret",
		Database: "orders",
	}, cfg.Params())
	assert.Equal(t, 3, cfg.Capacity())
}

func TestConfigEnvVars(t *testing.T) {
	reg := viperutil.NewRegistry()
	cfg := NewConfig(reg)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	t.Setenv("SQLCONN_DB_HOST", "db2.internal")
	t.Setenv("SQLCONN_POOL_CAPACITY", "7")

	assert.Equal(t, "db2.internal", cfg.Params().Host)
	assert.Equal(t, 7, cfg.Capacity())
}

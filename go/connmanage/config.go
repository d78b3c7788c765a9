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
	"github.com/spf13/pflag"

	"github.com/multigres/sqlconn/go/sqlconn"
	"github.com/multigres/sqlconn/go/viperutil"
)

// Config holds viper-backed configuration for the pool and the connections
// it dials. Create with NewConfig, register flags with RegisterFlags, then
// build the pool with NewManage once flags are parsed.
type Config struct {
	host     *viperutil.Value[string]
	port     *viperutil.Value[int]
	user     *viperutil.Value[string]
	password *viperutil.Value[string]
	database *viperutil.Value[string]
	capacity *viperutil.Value[int]
}

// NewConfig declares the pool settings in the given registry.
func NewConfig(reg *viperutil.Registry) *Config {
	return &Config{
		host: viperutil.Configure(reg, "db.host", viperutil.Options[string]{
			Default:  "localhost",
			FlagName: "db-host",
			EnvVars:  []string{"SQLCONN_DB_HOST"},
		}),
		port: viperutil.Configure(reg, "db.port", viperutil.Options[int]{
			Default:  5432,
			FlagName: "db-port",
			EnvVars:  []string{"SQLCONN_DB_PORT"},
		}),
		user: viperutil.Configure(reg, "db.user", viperutil.Options[string]{
			Default:  "postgres",
			FlagName: "db-user",
			EnvVars:  []string{"SQLCONN_DB_USER"},
		}),
		password: viperutil.Configure(reg, "db.password", viperutil.Options[string]{
			Default:  "",
			FlagName: "db-password",
			EnvVars:  []string{"SQLCONN_DB_PASSWORD"},
		}),
		database: viperutil.Configure(reg, "db.database", viperutil.Options[string]{
			Default:  "postgres",
			FlagName: "db-name",
			EnvVars:  []string{"SQLCONN_DB_NAME"},
		}),
		capacity: viperutil.Configure(reg, "pool.capacity", viperutil.Options[int]{
			Default:  5,
			FlagName: "pool-capacity",
			EnvVars:  []string{"SQLCONN_POOL_CAPACITY"},
		}),
	}
}

// RegisterFlags registers the pool's command line flags and binds them to
// the declared config values.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.String("db-host", c.host.Default(), "Database host to connect to.")
	fs.Int("db-port", c.port.Default(), "Database port to connect to.")
	fs.String("db-user", c.user.Default(), "Database user to connect as.")
	fs.String("db-password", c.password.Default(), "Password for the database user.")
	fs.String("db-name", c.database.Default(), "Database name to connect to.")
	fs.Int("pool-capacity", c.capacity.Default(), "Number of connections the pool keeps open.")

	viperutil.BindFlags(fs, c.host, c.port, c.user, c.password, c.database, c.capacity)
}

// Params resolves the connection parameters the pool dials with.
func (c *Config) Params() sqlconn.Params {
	return sqlconn.Params{
		Host:     c.host.Get(),
		Port:     c.port.Get(),
		User:     c.user.Get(),
		Password: c.password.Get(),
		Database: c.database.Get(),
	}
}

// Capacity resolves the configured pool size.
func (c *Config) Capacity() int {
	return c.capacity.Get()
}

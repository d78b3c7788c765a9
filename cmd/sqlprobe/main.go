/*
Copyright 2025 The Multigres Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// sqlprobe runs ad-hoc statements and probes against a PostgreSQL database
// through a sqlconn connection pool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/multigres/sqlconn/go/cmd/sqlprobe/command"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := command.Root().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

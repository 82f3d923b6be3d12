// Copyright 2026 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/recall/internal/bootstrap"
	"github.com/kraklabs/recall/internal/errors"
	"github.com/kraklabs/recall/internal/server"
	"github.com/kraklabs/recall/internal/ui"
)

// runServe executes the 'serve' CLI command: assemble the engine from
// configuration and serve it over HTTP until SIGINT/SIGTERM.
func runServe(args []string, configPath string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	host := fs.String("host", "", "Override the configured listen host")
	port := fs.Int("port", 0, "Override the configured listen port")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: recall serve [options]

Description:
  Start the recall HTTP service: document upload and deletion, ingestion
  status, search, grounded question answering, and Prometheus metrics.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  recall serve
  recall serve --config recall.yaml --port 9001
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, uerr := loadConfig(configPath)
	if uerr != nil {
		errors.FatalError(uerr, false)
	}
	if *host != "" {
		cfg.Service.Host = *host
	}
	if *port != 0 {
		cfg.Service.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := bootstrap.NewEngine(ctx, cfg)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot assemble the recall engine",
			err.Error(),
			"Check the backend sections of your configuration",
			err,
		), false)
	}
	defer func() { _ = engine.Close() }()

	ui.Infof("recall %s listening on %s", version, cfg.ListenAddr())

	if err := server.New(engine).Run(ctx); err != nil {
		errors.FatalError(errors.NewInternalError(
			"HTTP server failed",
			err.Error(),
			"Check the service logs for details",
			err,
		), false)
	}
}

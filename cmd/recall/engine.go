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

	"github.com/kraklabs/recall/internal/bootstrap"
	"github.com/kraklabs/recall/internal/config"
	"github.com/kraklabs/recall/internal/errors"
)

// loadConfig resolves the configuration for a command. Without --config the
// built-in local defaults apply, so one-shot commands work out of the box.
func loadConfig(configPath string) (*config.Config, *errors.UserError) {
	if configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot load recall configuration",
			err.Error(),
			"Check the file path and YAML syntax of "+configPath,
			err,
		)
	}
	return cfg, nil
}

// newEngine assembles an engine for a one-shot command.
func newEngine(ctx context.Context, configPath string) (*bootstrap.Engine, *errors.UserError) {
	cfg, uerr := loadConfig(configPath)
	if uerr != nil {
		return nil, uerr
	}
	engine, err := bootstrap.NewEngine(ctx, cfg)
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot assemble the recall engine",
			err.Error(),
			"Check the backend sections of your configuration",
			err,
		)
	}
	return engine, nil
}

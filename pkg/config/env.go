// Copyright 2025 UMH Systems GmbH
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

package config

import (
	"fmt"

	"github.com/united-manufacturing-hub/umh-utils/env"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/machine-states/pkg/constants"
	"github.com/united-manufacturing-hub/machine-states/pkg/sentry"
)

// LoadConfigWithEnvOverrides loads the params file and applies environment overrides.
//
// Order of precedence (highest to lowest):
//  1. Environment variables (TICK_RATE_HZ, SIGNAL_DIR, STATUS_FILE, METRICS_PORT, DEBUG)
//  2. The machine_states group of the params file
//  3. Defaults
//
// The params file path is path if non-empty, else MACHINE_STATES_CONFIG, else
// the default path. The code group is MACHINE_STATES_PARAM_GROUP or goal_mode.
// State codes cannot be overridden from the environment.
//
// An environment value that does not parse is reported as a warning and ignored.
// Any problem with the file or the resulting config is returned as an error.
func LoadConfigWithEnvOverrides(path string, log *zap.SugaredLogger) (FullConfig, error) {
	if path == "" {
		var err error

		path, err = env.GetAsString("MACHINE_STATES_CONFIG", false, constants.DefaultConfigPath)
		if err != nil {
			return FullConfig{}, err
		}
	}

	group, err := env.GetAsString("MACHINE_STATES_PARAM_GROUP", false, constants.DefaultParamGroup)
	if err != nil {
		return FullConfig{}, err
	}

	cfg, err := Load(path, group)
	if err != nil {
		return FullConfig{}, err
	}

	cfg.Runtime = applyEnvOverrides(cfg.Runtime, log)

	if err := cfg.Validate(); err != nil {
		return FullConfig{}, fmt.Errorf("config after environment overrides is invalid: %w", err)
	}

	cfg.Hash = cfg.fingerprint()

	return cfg, nil
}

func applyEnvOverrides(r RuntimeConfig, log *zap.SugaredLogger) RuntimeConfig {
	var err error

	if r.TickRateHz, err = env.GetAsFloat64("TICK_RATE_HZ", false, r.TickRateHz); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Ignoring TICK_RATE_HZ: %v", err)
	}

	if r.SignalDir, err = env.GetAsString("SIGNAL_DIR", false, r.SignalDir); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Ignoring SIGNAL_DIR: %v", err)
	}

	if r.StatusFile, err = env.GetAsString("STATUS_FILE", false, r.StatusFile); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Ignoring STATUS_FILE: %v", err)
	}

	if r.MetricsPort, err = env.GetAsInt("METRICS_PORT", false, r.MetricsPort); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Ignoring METRICS_PORT: %v", err)
	}

	if r.Debug, err = env.GetAsBool("DEBUG", false, r.Debug); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Ignoring DEBUG: %v", err)
	}

	return r
}

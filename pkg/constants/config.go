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

package constants

import "time"

const (
	// DefaultConfigPath is where the params file is read from unless overridden.
	DefaultConfigPath = "/data/params.yaml"

	// DefaultParamGroup is the YAML group holding the state code mapping.
	DefaultParamGroup = "goal_mode"

	// RuntimeSection is the YAML group holding the optional runtime settings.
	RuntimeSection = "machine_states"

	// DefaultSignalDir is the directory watched for signal files.
	DefaultSignalDir = "/run/machine-states/signals"

	// DefaultStatusFile is where the file publisher writes the latest status.
	// An empty status file disables the file publisher.
	DefaultStatusFile = "/run/machine-states/robot_state.json"

	// DefaultMetricsPort of 0 disables the metrics and health endpoint.
	DefaultMetricsPort = 0

	// SignalDirWaitTimeout bounds how long startup waits for the signal directory to appear.
	SignalDirWaitTimeout = 30 * time.Second

	// SignalDirWaitMaxInterval caps the backoff interval while waiting for the signal directory.
	SignalDirWaitMaxInterval = 2 * time.Second
)

const (
	// DefaultAppVersion is the version reported by builds without ldflags.
	DefaultAppVersion = "0.0.0-dev"

	// DefaultDevelopmentEnvironment is the sentry environment for prerelease builds.
	DefaultDevelopmentEnvironment = "development"

	// DefaultProductionEnvironment is the sentry environment for release builds.
	DefaultProductionEnvironment = "production"
)

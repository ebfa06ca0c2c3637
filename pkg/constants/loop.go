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
	// DefaultTickRateHz is the rate at which the robot state is arbitrated and published.
	DefaultTickRateHz = 1.0

	// MaxTickRateHz bounds the configured tick rate. Faster rates leave the
	// publishers no room to finish within a tick.
	MaxTickRateHz = 100.0

	// StarvationTickMultiplier is the number of missed ticks after which the
	// control loop is considered starved.
	StarvationTickMultiplier = 5

	// MinStarvationThreshold is the lower bound for the starvation threshold,
	// so fast tick rates do not produce warnings on every GC pause.
	MinStarvationThreshold = 5 * time.Second

	// StarvationCheckInterval is how often the background starvation check runs.
	StarvationCheckInterval = time.Second

	// DefaultInstanceName is the instance label used for metrics of the single arbiter.
	DefaultInstanceName = "robot"

	// StatusLoggerInterval is the interval of the periodic status log line in main.
	StatusLoggerInterval = 10 * time.Second

	// ShutdownTimeout is the time the HTTP endpoint gets to drain on shutdown.
	ShutdownTimeout = 3 * time.Second
)

// TickerTime converts a tick rate in Hz into the ticker interval.
func TickerTime(rateHz float64) time.Duration {
	if rateHz <= 0 {
		rateHz = DefaultTickRateHz
	}

	return time.Duration(float64(time.Second) / rateHz)
}

// StarvationThreshold returns the starvation threshold for the given ticker interval.
func StarvationThreshold(tickerTime time.Duration) time.Duration {
	threshold := tickerTime * StarvationTickMultiplier
	if threshold < MinStarvationThreshold {
		return MinStarvationThreshold
	}

	return threshold
}

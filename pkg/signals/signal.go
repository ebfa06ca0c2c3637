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

package signals

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownSignal is returned for a channel name that is not one of the seven signals.
	ErrUnknownSignal = errors.New("unknown signal")
	// ErrMalformedSignal is returned for a payload that is not a boolean.
	ErrMalformedSignal = errors.New("malformed signal payload")
)

// Signal identifies one of the seven input channels.
type Signal int

const (
	JoyConnected Signal = iota
	AbortCommand
	CollisionAlert
	MissionCompleted
	GoalReached
	ResetRequested
	SwitchModeRequested

	signalCount
)

// All lists every signal in declaration order.
var All = []Signal{
	JoyConnected,
	AbortCommand,
	CollisionAlert,
	MissionCompleted,
	GoalReached,
	ResetRequested,
	SwitchModeRequested,
}

var names = [signalCount]string{
	JoyConnected:        "joy_connected",
	AbortCommand:        "abort_command",
	CollisionAlert:      "collision_alert",
	MissionCompleted:    "mission_completed",
	GoalReached:         "goal_reached",
	ResetRequested:      "reset",
	SwitchModeRequested: "switch_mode",
}

// topics are the channel names used by the robot's message bus.
var topics = [signalCount]string{
	JoyConnected:        "/joy/controler/connected",
	AbortCommand:        "/safety/abort/user_command",
	CollisionAlert:      "/safety/abort/collision_alert",
	MissionCompleted:    "/goal_manager/goal/mission_completed",
	GoalReached:         "/goal_manager/goal/reached",
	ResetRequested:      "/odom/reset",
	SwitchModeRequested: "/joy/machine_states/switch_mode",
}

// String returns the short channel name, which is also the signal file name.
func (s Signal) String() string {
	if s < 0 || s >= signalCount {
		return fmt.Sprintf("Signal(%d)", int(s))
	}

	return names[s]
}

// Topic returns the bus topic the signal is published on.
func (s Signal) Topic() string {
	if s < 0 || s >= signalCount {
		return ""
	}

	return topics[s]
}

// ParseSignal resolves a short name or a bus topic.
func ParseSignal(name string) (Signal, error) {
	name = strings.TrimSpace(name)

	for _, s := range All {
		if name == names[s] || name == topics[s] {
			return s, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
}

// ParseValue decodes a boolean payload. Accepted are true/false, 1/0, on/off
// and yes/no, case-insensitive, with surrounding whitespace ignored.
func ParseValue(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "true", "1", "on", "yes":
		return true, nil
	case "false", "0", "off", "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrMalformedSignal, truncate(string(payload), 32))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}

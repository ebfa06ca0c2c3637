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

package models

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the operator-selected operating mode. It persists across ticks.
type Mode int

const (
	ModeManual Mode = iota
	ModeAutonomous
)

// AllModes lists every mode in declaration order.
var AllModes = []Mode{ModeManual, ModeAutonomous}

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "MANUAL"
	case ModeAutonomous:
		return "AUTONOMOUS"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Toggled returns the other mode.
func (m Mode) Toggled() Mode {
	if m == ModeAutonomous {
		return ModeManual
	}

	return ModeAutonomous
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode accepts the upper or lower case mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range AllModes {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}

	return ModeManual, fmt.Errorf("unknown mode %q", s)
}

// State is the published robot state, derived on every tick.
type State int

const (
	StateEmergency State = iota
	StateManual
	StateAutonomous
	StateInGoal
	StateMissionCompleted
)

// AllStates lists every state in declaration order.
var AllStates = []State{StateEmergency, StateManual, StateAutonomous, StateInGoal, StateMissionCompleted}

func (s State) String() string {
	switch s {
	case StateEmergency:
		return "EMERGENCY"
	case StateManual:
		return "MANUAL"
	case StateAutonomous:
		return "AUTONOMOUS"
	case StateInGoal:
		return "IN_GOAL"
	case StateMissionCompleted:
		return "MISSION_COMPLETED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState accepts the state name case-insensitively, e.g. "in_goal" or "IN_GOAL".
func ParseState(s string) (State, error) {
	for _, st := range AllStates {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}

	return StateEmergency, fmt.Errorf("unknown state %q", s)
}

// StateNames returns the names of AllStates, for metric label sets.
func StateNames() []string {
	names := make([]string, 0, len(AllStates))
	for _, s := range AllStates {
		names = append(names, s.String())
	}

	return names
}

// ModeNames returns the names of AllModes.
func ModeNames() []string {
	names := make([]string, 0, len(AllModes))
	for _, m := range AllModes {
		names = append(names, m.String())
	}

	return names
}

// Status is what gets published on every tick.
type Status struct {
	Timestamp  time.Time       `json:"timestamp"`
	Signals    map[string]bool `json:"signals"`
	RunID      string          `json:"run_id"`
	ConfigHash string          `json:"config_hash"`
	Tick       uint64          `json:"tick"`
	Mode       Mode            `json:"mode"`
	State      State           `json:"state"`
	Code       int16           `json:"code"`
}

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

package robotstate

import (
	"github.com/united-manufacturing-hub/machine-states/pkg/models"
	"github.com/united-manufacturing-hub/machine-states/pkg/signals"
)

// DeriveState maps the current mode and signals to the published state.
//
// Safety dominates: a missing joystick, an abort command or a collision alert
// yield EMERGENCY in any mode. Otherwise manual mode yields MANUAL, and
// autonomous mode yields AUTONOMOUS refined by goal progress, where
// mission_completed outranks goal_reached.
func DeriveState(mode models.Mode, snap signals.Snapshot) models.State {
	if snap.Unsafe() {
		return models.StateEmergency
	}

	if mode != models.ModeAutonomous {
		return models.StateManual
	}

	switch {
	case snap.MissionCompleted:
		return models.StateMissionCompleted
	case snap.GoalReached:
		return models.StateInGoal
	default:
		return models.StateAutonomous
	}
}

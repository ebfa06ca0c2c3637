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
	"context"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	internalfsm "github.com/united-manufacturing-hub/machine-states/internal/fsm"
	"github.com/united-manufacturing-hub/machine-states/pkg/models"
)

// Mode machine states.
const (
	ModeStateManual     = "manual"
	ModeStateAutonomous = "autonomous"
)

// Mode machine events.
const (
	// EventSwitchMode toggles between manual and autonomous.
	EventSwitchMode = "switch_mode"
	// EventReset returns to manual. It is only defined in autonomous.
	EventReset = "reset"
)

// ModeMachine holds the operating mode.
//
//	manual --switch_mode--> autonomous
//	autonomous --switch_mode--> manual
//	autonomous --reset--> manual
type ModeMachine struct {
	base   *internalfsm.BaseMachine
	logger *zap.SugaredLogger
}

// NewModeMachine creates a mode machine in manual mode.
func NewModeMachine(id string, logger *zap.SugaredLogger) *ModeMachine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	cfg := internalfsm.BaseMachineConfig{
		ID:           id,
		InitialState: ModeStateManual,
		Transitions: []fsm.EventDesc{
			{Name: EventSwitchMode, Src: []string{ModeStateManual}, Dst: ModeStateAutonomous},
			{Name: EventSwitchMode, Src: []string{ModeStateAutonomous}, Dst: ModeStateManual},
			{Name: EventReset, Src: []string{ModeStateAutonomous}, Dst: ModeStateManual},
		},
	}

	m := &ModeMachine{
		base:   internalfsm.NewBaseMachine(cfg, logger),
		logger: logger,
	}
	m.registerCallbacks()

	return m
}

// Mode returns the current mode.
func (m *ModeMachine) Mode() models.Mode {
	if m.base.Current() == ModeStateAutonomous {
		return models.ModeAutonomous
	}

	return models.ModeManual
}

// Toggle fires EventSwitchMode.
func (m *ModeMachine) Toggle(ctx context.Context) (bool, error) {
	return m.base.SendEvent(ctx, EventSwitchMode)
}

// Reset fires EventReset. In manual mode it is a no-op.
func (m *ModeMachine) Reset(ctx context.Context) (bool, error) {
	return m.base.SendEvent(ctx, EventReset)
}

func modeStateName(mode models.Mode) string {
	if mode == models.ModeAutonomous {
		return ModeStateAutonomous
	}

	return ModeStateManual
}

// SetMode forces the mode without callbacks. This should only be called in tests.
func (m *ModeMachine) SetMode(mode models.Mode) {
	m.base.SetCurrent(modeStateName(mode))
}

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

package fsm

import (
	"context"
	"errors"
	"sync"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// BaseMachineConfig holds parameters for setting up a BaseMachine.
type BaseMachineConfig struct {
	ID           string
	InitialState string
	Transitions  []fsm.EventDesc
}

// BaseMachine wraps a looplab FSM with per-state enter callbacks and a
// SendEvent that treats "event not possible in this state" as a no-op.
type BaseMachine struct {
	cfg BaseMachineConfig

	mu  sync.RWMutex
	fsm *fsm.FSM

	// Registered "enter_<state>" callbacks, purely for logging or minor side-effects.
	callbacks map[string]fsm.Callback

	logger *zap.SugaredLogger
}

// NewBaseMachine creates the machine in cfg.InitialState.
func NewBaseMachine(cfg BaseMachineConfig, logger *zap.SugaredLogger) *BaseMachine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	m := &BaseMachine{
		cfg:       cfg,
		callbacks: make(map[string]fsm.Callback),
		logger:    logger,
	}

	m.fsm = fsm.NewFSM(
		cfg.InitialState,
		fsm.Events(cfg.Transitions),
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				m.mu.RLock()
				cb, ok := m.callbacks["enter_"+e.Dst]
				m.mu.RUnlock()

				if ok {
					cb(ctx, e)
				}
			},
		},
	)

	return m
}

// AddCallback registers a callback under a key such as "enter_autonomous".
func (m *BaseMachine) AddCallback(name string, callback fsm.Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callbacks[name] = callback
}

// ID returns the machine ID.
func (m *BaseMachine) ID() string {
	return m.cfg.ID
}

// Current returns the current state.
func (m *BaseMachine) Current() string {
	return m.fsm.Current()
}

// Can reports whether event is possible in the current state.
func (m *BaseMachine) Can(event string) bool {
	return m.fsm.Can(event)
}

// SetCurrent forces the current state without running callbacks.
// This should only be called in tests.
func (m *BaseMachine) SetCurrent(state string) {
	m.fsm.SetState(state)
}

// SendEvent fires event if it is possible in the current state and reports
// whether a transition happened. The transition is not bound to ctx's
// cancellation: once started it always completes, so a shutdown in the
// middle of a tick cannot leave the machine half-transitioned.
func (m *BaseMachine) SendEvent(ctx context.Context, event string, args ...interface{}) (bool, error) {
	if !m.fsm.Can(event) {
		m.logger.Debugf("Event %s ignored in state %s of %s", event, m.fsm.Current(), m.cfg.ID)

		return false, nil
	}

	err := m.fsm.Event(context.WithoutCancel(ctx), event, args...)
	if err == nil {
		return true, nil
	}

	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return false, nil
	}

	return false, err
}

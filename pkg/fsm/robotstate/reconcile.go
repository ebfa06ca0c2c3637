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

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/machine-states/pkg/constants"
	"github.com/united-manufacturing-hub/machine-states/pkg/logger"
	"github.com/united-manufacturing-hub/machine-states/pkg/metrics"
	"github.com/united-manufacturing-hub/machine-states/pkg/models"
	"github.com/united-manufacturing-hub/machine-states/pkg/sentry"
	"github.com/united-manufacturing-hub/machine-states/pkg/signals"
)

// Result is the outcome of one tick.
type Result struct {
	// Mode is the mode after the tick, i.e. the one the next tick starts from.
	Mode          models.Mode
	State         models.State
	PreviousMode  models.Mode
	PreviousState models.State
}

// ModeChanged reports whether the tick toggled or reset the mode.
func (r Result) ModeChanged() bool { return r.Mode != r.PreviousMode }

// StateChanged reports whether the published state differs from the last tick.
func (r Result) StateChanged() bool { return r.State != r.PreviousState }

// Arbiter owns the operating mode and the edge detector for switch_mode.
// It is driven by a single goroutine and is not safe for concurrent Tick calls.
type Arbiter struct {
	mode   *ModeMachine
	logger *zap.SugaredLogger

	prevSwitchModeRequested bool
	state                   models.State
}

// NewArbiter returns an arbiter in the boot posture: MANUAL mode, EMERGENCY state.
func NewArbiter() *Arbiter {
	log := logger.For(logger.ComponentArbiter)

	return &Arbiter{
		mode:   NewModeMachine(constants.DefaultInstanceName, logger.For(logger.ComponentModeFSM)),
		logger: log,
		state:  models.StateEmergency,
	}
}

// Mode returns the current mode.
func (a *Arbiter) Mode() models.Mode { return a.mode.Mode() }

// State returns the state derived by the last tick.
func (a *Arbiter) State() models.State { return a.state }

// Tick evaluates one snapshot:
//
//  1. a rising edge of switch_mode toggles the mode,
//  2. unsafe signals force EMERGENCY and end the tick,
//  3. otherwise the state is derived from the mode and goal signals,
//  4. finally reset returns the mode to manual for the next tick.
//
// Tick never fails. The mode is kept while in EMERGENCY, so the robot resumes
// in the mode it had once the safety condition clears.
func (a *Arbiter) Tick(ctx context.Context, snap signals.Snapshot) Result {
	res := Result{PreviousMode: a.mode.Mode(), PreviousState: a.state}

	rising := snap.SwitchModeRequested && !a.prevSwitchModeRequested
	a.prevSwitchModeRequested = snap.SwitchModeRequested

	if rising {
		a.fire(ctx, EventSwitchMode)
	}

	a.state = DeriveState(a.mode.Mode(), snap)

	if a.state != models.StateEmergency && snap.ResetRequested {
		a.fire(ctx, EventReset)
	}

	res.Mode = a.mode.Mode()
	res.State = a.state

	if res.StateChanged() {
		metrics.RecordStateTransition(res.PreviousState.String(), res.State.String())
		a.logger.Infof("State %s -> %s (mode %s)", res.PreviousState, res.State, res.Mode)
	}

	return res
}

// fire sends a mode event. A failure leaves the mode unchanged.
func (a *Arbiter) fire(ctx context.Context, event string) {
	var err error

	switch event {
	case EventSwitchMode:
		_, err = a.mode.Toggle(ctx)
	case EventReset:
		_, err = a.mode.Reset(ctx)
	}

	if err != nil {
		metrics.IncErrorCount(metrics.ComponentArbiter, constants.DefaultInstanceName)
		sentry.ReportFSMErrorf(a.logger, constants.DefaultInstanceName, "mode", event, "mode event %s failed: %v", event, err)
	}
}

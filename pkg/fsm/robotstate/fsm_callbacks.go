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
	"strings"

	"github.com/looplab/fsm"

	"github.com/united-manufacturing-hub/machine-states/pkg/metrics"
)

// registerCallbacks sets up logging and metrics for mode changes.
// Callbacks must stay fail-free and quick.
func (m *ModeMachine) registerCallbacks() {
	onEnter := func(ctx context.Context, e *fsm.Event) {
		from, to := strings.ToUpper(e.Src), strings.ToUpper(e.Dst)
		metrics.RecordModeTransition(from, to)
		m.logger.Infof("Mode %s -> %s (event %s)", from, to, e.Event)
	}

	m.base.AddCallback("enter_"+ModeStateManual, onEnter)
	m.base.AddCallback("enter_"+ModeStateAutonomous, onEnter)
}

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

// Package signals holds the latest value of every input signal of the arbiter.
//
// Writers (bus adapters, the signal watcher) call the setters from any
// goroutine. The control loop reads a Snapshot once per tick. Each field is
// individually atomic; a snapshot is not atomic across fields, which is fine
// because every tick re-evaluates from scratch and safety takes precedence.
package signals

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/machine-states/pkg/logger"
	"github.com/united-manufacturing-hub/machine-states/pkg/metrics"
)

// Snapshot is a per-tick copy of all signals.
type Snapshot struct {
	JoyConnected        bool
	AbortCommand        bool
	CollisionAlert      bool
	MissionCompleted    bool
	GoalReached         bool
	ResetRequested      bool
	SwitchModeRequested bool
}

// Unsafe reports whether the snapshot forces EMERGENCY.
func (s Snapshot) Unsafe() bool {
	return !s.JoyConnected || s.AbortCommand || s.CollisionAlert
}

// Get returns the value of one signal.
func (s Snapshot) Get(sig Signal) bool {
	switch sig {
	case JoyConnected:
		return s.JoyConnected
	case AbortCommand:
		return s.AbortCommand
	case CollisionAlert:
		return s.CollisionAlert
	case MissionCompleted:
		return s.MissionCompleted
	case GoalReached:
		return s.GoalReached
	case ResetRequested:
		return s.ResetRequested
	case SwitchModeRequested:
		return s.SwitchModeRequested
	default:
		return false
	}
}

// AsMap returns the snapshot keyed by signal name.
func (s Snapshot) AsMap() map[string]bool {
	out := make(map[string]bool, len(All))
	for _, sig := range All {
		out[sig.String()] = s.Get(sig)
	}

	return out
}

// Store is the last-writer-wins signal store. The zero value is not usable, use NewStore.
type Store struct {
	values [signalCount]atomic.Bool
	logger *zap.SugaredLogger
}

// NewStore returns a store in the boot posture: abort_command is true so the
// robot stays in EMERGENCY until the abort channel reports otherwise, all other
// signals are false.
func NewStore() *Store {
	s := &Store{logger: logger.For(logger.ComponentSignalStore)}
	s.values[AbortCommand].Store(true)

	return s
}

// Set overwrites one signal. Unknown signals are ignored.
func (s *Store) Set(sig Signal, value bool) {
	if sig < 0 || sig >= signalCount {
		return
	}

	s.values[sig].Store(value)
	metrics.IncSignalUpdate(sig.String())
}

func (s *Store) SetJoyConnected(v bool)        { s.Set(JoyConnected, v) }
func (s *Store) SetAbortCommand(v bool)        { s.Set(AbortCommand, v) }
func (s *Store) SetCollisionAlert(v bool)      { s.Set(CollisionAlert, v) }
func (s *Store) SetMissionCompleted(v bool)    { s.Set(MissionCompleted, v) }
func (s *Store) SetGoalReached(v bool)         { s.Set(GoalReached, v) }
func (s *Store) SetResetRequested(v bool)      { s.Set(ResetRequested, v) }
func (s *Store) SetSwitchModeRequested(v bool) { s.Set(SwitchModeRequested, v) }

// ApplyRaw decodes an untyped payload for the channel called name and stores it.
// Unknown names and malformed payloads are rejected and leave the store unchanged.
func (s *Store) ApplyRaw(name string, payload []byte) error {
	sig, err := ParseSignal(name)
	if err != nil {
		metrics.IncSignalRejected("unknown")

		return err
	}

	value, err := ParseValue(payload)
	if err != nil {
		metrics.IncSignalRejected(sig.String())
		s.logger.Warnf("Rejected update for %s, keeping %t: %v", sig, s.values[sig].Load(), err)

		return err
	}

	s.Set(sig, value)

	return nil
}

// Snapshot reads every signal once.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		JoyConnected:        s.values[JoyConnected].Load(),
		AbortCommand:        s.values[AbortCommand].Load(),
		CollisionAlert:      s.values[CollisionAlert].Load(),
		MissionCompleted:    s.values[MissionCompleted].Load(),
		GoalReached:         s.values[GoalReached].Load(),
		ResetRequested:      s.values[ResetRequested].Load(),
		SwitchModeRequested: s.values[SwitchModeRequested].Load(),
	}
}

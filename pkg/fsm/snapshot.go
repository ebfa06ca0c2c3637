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
	"sync"

	"github.com/tiendc/go-deepcopy"

	"github.com/united-manufacturing-hub/machine-states/pkg/models"
)

// SnapshotManager keeps the last published status for readers outside the
// control loop (status logger, readiness check).
type SnapshotManager struct {
	mu         sync.RWMutex
	lastStatus *models.Status
}

// NewSnapshotManager creates an empty snapshot manager.
func NewSnapshotManager() *SnapshotManager {
	return &SnapshotManager{}
}

// UpdateSnapshot stores status. The caller must not modify it afterwards.
func (s *SnapshotManager) UpdateSnapshot(status *models.Status) {
	if s == nil || status == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastStatus = status
}

// HasSnapshot reports whether at least one status was stored.
func (s *SnapshotManager) HasSnapshot() bool {
	if s == nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastStatus != nil
}

// GetDeepCopySnapshot returns a deep copy of the last status, or false if none exists yet.
func (s *SnapshotManager) GetDeepCopySnapshot() (models.Status, bool) {
	if s == nil {
		return models.Status{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastStatus == nil {
		return models.Status{}, false
	}

	var statusCopy models.Status
	if err := deepcopy.Copy(&statusCopy, s.lastStatus); err != nil {
		return models.Status{}, false
	}

	return statusCopy, true
}

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

package fsm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/machine-states/pkg/fsm"
	"github.com/united-manufacturing-hub/machine-states/pkg/models"
)

var _ = Describe("SnapshotManager", func() {
	It("has no snapshot before the first update", func() {
		sm := fsm.NewSnapshotManager()
		Expect(sm.HasSnapshot()).To(BeFalse())

		_, ok := sm.GetDeepCopySnapshot()
		Expect(ok).To(BeFalse())
	})

	It("returns copies that do not share the signal map", func() {
		sm := fsm.NewSnapshotManager()
		sm.UpdateSnapshot(&models.Status{
			Tick:    3,
			Mode:    models.ModeAutonomous,
			State:   models.StateInGoal,
			Code:    3,
			Signals: map[string]bool{"goal_reached": true},
		})

		first, ok := sm.GetDeepCopySnapshot()
		Expect(ok).To(BeTrue())
		Expect(first.State).To(Equal(models.StateInGoal))
		Expect(first.Tick).To(Equal(uint64(3)))

		first.Signals["goal_reached"] = false

		second, ok := sm.GetDeepCopySnapshot()
		Expect(ok).To(BeTrue())
		Expect(second.Signals).To(HaveKeyWithValue("goal_reached", true))
	})

	It("ignores nil updates", func() {
		sm := fsm.NewSnapshotManager()
		sm.UpdateSnapshot(nil)
		Expect(sm.HasSnapshot()).To(BeFalse())
	})
})

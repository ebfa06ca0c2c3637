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

package robotstate_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/machine-states/pkg/fsm/robotstate"
	"github.com/united-manufacturing-hub/machine-states/pkg/models"
	"github.com/united-manufacturing-hub/machine-states/pkg/signals"
)

// safe returns a snapshot in which no safety condition holds.
func safe() signals.Snapshot {
	return signals.Snapshot{JoyConnected: true}
}

// snapshotFromBits builds one of the 128 possible snapshots.
func snapshotFromBits(bits int) signals.Snapshot {
	return signals.Snapshot{
		JoyConnected:        bits&(1<<0) != 0,
		AbortCommand:        bits&(1<<1) != 0,
		CollisionAlert:      bits&(1<<2) != 0,
		MissionCompleted:    bits&(1<<3) != 0,
		GoalReached:         bits&(1<<4) != 0,
		ResetRequested:      bits&(1<<5) != 0,
		SwitchModeRequested: bits&(1<<6) != 0,
	}
}

var _ = Describe("Arbiter", func() {
	var (
		ctx     context.Context
		arbiter *robotstate.Arbiter
	)

	BeforeEach(func() {
		ctx = context.Background()
		arbiter = robotstate.NewArbiter()
	})

	// toAutonomous drives the arbiter into autonomous mode with a rising edge followed by a release.
	toAutonomous := func() {
		snap := safe()
		snap.SwitchModeRequested = true
		res := arbiter.Tick(ctx, snap)
		Expect(res.Mode).To(Equal(models.ModeAutonomous))
		arbiter.Tick(ctx, safe())
	}

	It("boots in MANUAL mode and EMERGENCY state", func() {
		Expect(arbiter.Mode()).To(Equal(models.ModeManual))
		Expect(arbiter.State()).To(Equal(models.StateEmergency))
	})

	It("stays in EMERGENCY with the default signals", func() {
		res := arbiter.Tick(ctx, signals.NewStore().Snapshot())
		Expect(res.State).To(Equal(models.StateEmergency))
		Expect(res.Mode).To(Equal(models.ModeManual))
	})

	It("yields EMERGENCY for every unsafe snapshot in both modes", func() {
		for _, startAutonomous := range []bool{false, true} {
			for bits := 0; bits < 128; bits++ {
				a := robotstate.NewArbiter()
				if startAutonomous {
					snap := safe()
					snap.SwitchModeRequested = true
					a.Tick(ctx, snap)
					a.Tick(ctx, safe())
					Expect(a.Mode()).To(Equal(models.ModeAutonomous))
				}

				snap := snapshotFromBits(bits)
				res := a.Tick(ctx, snap)

				if snap.Unsafe() {
					Expect(res.State).To(Equal(models.StateEmergency), "bits=%07b autonomous=%t", bits, startAutonomous)
				} else {
					Expect(res.State).NotTo(Equal(models.StateEmergency), "bits=%07b autonomous=%t", bits, startAutonomous)
				}
			}
		}
	})

	Describe("mode switching", func() {
		It("switches to AUTONOMOUS on a rising edge in the same tick", func() {
			snap := safe()
			snap.SwitchModeRequested = true

			res := arbiter.Tick(ctx, snap)
			Expect(res.Mode).To(Equal(models.ModeAutonomous))
			Expect(res.State).To(Equal(models.StateAutonomous))
			Expect(res.ModeChanged()).To(BeTrue())
		})

		It("toggles once per rising edge while the request is held", func() {
			snap := safe()
			snap.SwitchModeRequested = true

			for i := 0; i < 5; i++ {
				res := arbiter.Tick(ctx, snap)
				Expect(res.Mode).To(Equal(models.ModeAutonomous))
			}

			arbiter.Tick(ctx, safe())
			Expect(arbiter.Mode()).To(Equal(models.ModeAutonomous))

			res := arbiter.Tick(ctx, snap)
			Expect(res.Mode).To(Equal(models.ModeManual))
			Expect(res.State).To(Equal(models.StateManual))
		})

		It("does not toggle on a falling edge", func() {
			toAutonomous()
			Expect(arbiter.Mode()).To(Equal(models.ModeAutonomous))
		})

		It("still toggles the mode while in EMERGENCY", func() {
			unsafe := signals.Snapshot{JoyConnected: true, CollisionAlert: true, SwitchModeRequested: true}
			res := arbiter.Tick(ctx, unsafe)
			Expect(res.State).To(Equal(models.StateEmergency))
			Expect(res.Mode).To(Equal(models.ModeAutonomous))
		})
	})

	Describe("goal progress", func() {
		BeforeEach(toAutonomous)

		It("yields IN_GOAL when the goal is reached", func() {
			snap := safe()
			snap.GoalReached = true
			Expect(arbiter.Tick(ctx, snap).State).To(Equal(models.StateInGoal))
		})

		DescribeTable("MISSION_COMPLETED overrides IN_GOAL",
			func(goalReached bool) {
				snap := safe()
				snap.GoalReached = goalReached
				snap.MissionCompleted = true
				Expect(arbiter.Tick(ctx, snap).State).To(Equal(models.StateMissionCompleted))
			},
			Entry("goal reached", true),
			Entry("goal not reached", false),
		)

		It("ignores goal signals in MANUAL mode", func() {
			a := robotstate.NewArbiter()
			snap := safe()
			snap.GoalReached = true
			snap.MissionCompleted = true
			Expect(a.Tick(ctx, snap).State).To(Equal(models.StateManual))
		})
	})

	Describe("reset", func() {
		BeforeEach(toAutonomous)

		It("forces MANUAL from the next tick on without affecting the current state", func() {
			snap := safe()
			snap.ResetRequested = true
			snap.GoalReached = true

			res := arbiter.Tick(ctx, snap)
			Expect(res.State).To(Equal(models.StateInGoal))
			Expect(res.Mode).To(Equal(models.ModeManual))

			res = arbiter.Tick(ctx, safe())
			Expect(res.State).To(Equal(models.StateManual))
		})

		It("is ignored while in EMERGENCY", func() {
			snap := signals.Snapshot{JoyConnected: true, AbortCommand: true, ResetRequested: true}
			res := arbiter.Tick(ctx, snap)
			Expect(res.State).To(Equal(models.StateEmergency))
			Expect(res.Mode).To(Equal(models.ModeAutonomous))
		})

		It("is a no-op in MANUAL mode", func() {
			a := robotstate.NewArbiter()
			snap := safe()
			snap.ResetRequested = true
			res := a.Tick(ctx, snap)
			Expect(res.Mode).To(Equal(models.ModeManual))
			Expect(res.State).To(Equal(models.StateManual))
		})
	})

	It("keeps the mode through EMERGENCY and resumes in it", func() {
		toAutonomous()

		collision := safe()
		collision.CollisionAlert = true
		Expect(arbiter.Tick(ctx, collision).State).To(Equal(models.StateEmergency))
		Expect(arbiter.Mode()).To(Equal(models.ModeAutonomous))

		Expect(arbiter.Tick(ctx, safe()).State).To(Equal(models.StateAutonomous))
	})

	It("is idempotent for an unchanged snapshot", func() {
		snap := safe()
		snap.SwitchModeRequested = true
		snap.GoalReached = true

		first := arbiter.Tick(ctx, snap)
		for i := 0; i < 10; i++ {
			res := arbiter.Tick(ctx, snap)
			Expect(res.Mode).To(Equal(first.Mode))
			Expect(res.State).To(Equal(first.State))
			Expect(res.StateChanged()).To(BeFalse())
		}
	})

	It("completes mode transitions with a cancelled context", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		snap := safe()
		snap.SwitchModeRequested = true
		Expect(arbiter.Tick(cancelled, snap).Mode).To(Equal(models.ModeAutonomous))
	})

	It("follows the reference five tick scenario", func() {
		store := signals.NewStore()

		res := arbiter.Tick(ctx, store.Snapshot())
		Expect(res.State).To(Equal(models.StateEmergency))

		store.SetJoyConnected(true)
		store.SetAbortCommand(false)
		store.SetCollisionAlert(false)
		store.SetSwitchModeRequested(true)
		res = arbiter.Tick(ctx, store.Snapshot())
		Expect(res.Mode).To(Equal(models.ModeAutonomous))
		Expect(res.State).To(Equal(models.StateAutonomous))

		store.SetGoalReached(true)
		res = arbiter.Tick(ctx, store.Snapshot())
		Expect(res.State).To(Equal(models.StateInGoal))

		store.SetMissionCompleted(true)
		res = arbiter.Tick(ctx, store.Snapshot())
		Expect(res.State).To(Equal(models.StateMissionCompleted))

		store.SetCollisionAlert(true)
		res = arbiter.Tick(ctx, store.Snapshot())
		Expect(res.State).To(Equal(models.StateEmergency))
		Expect(res.Mode).To(Equal(models.ModeAutonomous))
	})
})

var _ = Describe("DeriveState", func() {
	DescribeTable("maps mode and signals",
		func(mode models.Mode, snap signals.Snapshot, want models.State) {
			Expect(robotstate.DeriveState(mode, snap)).To(Equal(want))
		},
		Entry("joystick lost", models.ModeAutonomous, signals.Snapshot{}, models.StateEmergency),
		Entry("abort", models.ModeManual, signals.Snapshot{JoyConnected: true, AbortCommand: true}, models.StateEmergency),
		Entry("collision beats mission", models.ModeAutonomous, signals.Snapshot{JoyConnected: true, CollisionAlert: true, MissionCompleted: true}, models.StateEmergency),
		Entry("manual", models.ModeManual, signals.Snapshot{JoyConnected: true}, models.StateManual),
		Entry("autonomous", models.ModeAutonomous, signals.Snapshot{JoyConnected: true}, models.StateAutonomous),
		Entry("in goal", models.ModeAutonomous, signals.Snapshot{JoyConnected: true, GoalReached: true}, models.StateInGoal),
		Entry("mission completed", models.ModeAutonomous, signals.Snapshot{JoyConnected: true, GoalReached: true, MissionCompleted: true}, models.StateMissionCompleted),
	)
})

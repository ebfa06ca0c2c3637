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
package control

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/united-manufacturing-hub/machine-states/pkg/config"
	"github.com/united-manufacturing-hub/machine-states/pkg/metrics"
	"github.com/united-manufacturing-hub/machine-states/pkg/models"
	"github.com/united-manufacturing-hub/machine-states/pkg/publisher"
	"github.com/united-manufacturing-hub/machine-states/pkg/signals"
)

type recordingPublisher struct {
	err      error
	name     string
	received []models.Status
	mu       sync.Mutex
}

func (r *recordingPublisher) Name() string { return r.name }

func (r *recordingPublisher) Publish(_ context.Context, status models.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.received = append(r.received, status)

	return r.err
}

func (r *recordingPublisher) statuses() []models.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]models.Status(nil), r.received...)
}

func (r *recordingPublisher) last() models.Status {
	s := r.statuses()
	Expect(s).NotTo(BeEmpty())

	return s[len(s)-1]
}

func testConfig() config.FullConfig {
	codes, err := config.NewStateCodes(map[models.State]int16{
		models.StateManual:           0,
		models.StateAutonomous:       1,
		models.StateEmergency:        2,
		models.StateInGoal:           3,
		models.StateMissionCompleted: 4,
	})
	Expect(err).NotTo(HaveOccurred())

	runtime := config.DefaultRuntimeConfig()
	runtime.TickRateHz = 100

	return config.FullConfig{Codes: codes, Runtime: runtime, Hash: "test-hash"}
}

var _ = Describe("ControlLoop", func() {
	var (
		store *signals.Store
		pub   *recordingPublisher
		loop  *ControlLoop
		ctx   context.Context
	)

	BeforeEach(func() {
		store = signals.NewStore()
		pub = &recordingPublisher{name: "recorder"}
		ctx = context.Background()

		var err error
		loop, err = NewControlLoop(testConfig(), store, pub)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		loop.Stop()
	})

	Describe("NewControlLoop", func() {
		It("rejects an incomplete code table", func() {
			cfg := testConfig()
			cfg.Codes = config.StateCodes{}

			_, err := NewControlLoop(cfg, store, pub)
			Expect(err).To(MatchError(config.ErrMissingStateCode))
		})

		It("rejects a missing store or publisher", func() {
			_, err := NewControlLoop(testConfig(), nil, pub)
			Expect(err).To(HaveOccurred())

			_, err = NewControlLoop(testConfig(), store, nil)
			Expect(err).To(HaveOccurred())
		})

		It("derives the ticker interval from the tick rate", func() {
			Expect(loop.TickerTime()).To(Equal(10 * time.Millisecond))
			Expect(loop.RunID()).NotTo(BeEmpty())
		})
	})

	Describe("Reconcile", func() {
		It("publishes EMERGENCY in the boot posture", func() {
			Expect(loop.Reconcile(ctx, 1)).To(Succeed())

			status := pub.last()
			Expect(status.State).To(Equal(models.StateEmergency))
			Expect(status.Mode).To(Equal(models.ModeManual))
			Expect(status.Code).To(Equal(int16(2)))
			Expect(status.Tick).To(Equal(uint64(1)))
			Expect(status.RunID).To(Equal(loop.RunID()))
			Expect(status.ConfigHash).To(Equal("test-hash"))
			Expect(status.Signals).To(HaveKeyWithValue("abort_command", true))
		})

		It("publishes on every tick even if the state is unchanged", func() {
			for tick := uint64(1); tick <= 3; tick++ {
				Expect(loop.Reconcile(ctx, tick)).To(Succeed())
			}

			statuses := pub.statuses()
			Expect(statuses).To(HaveLen(3))

			for _, s := range statuses {
				Expect(s.Code).To(Equal(int16(2)))
			}
		})

		It("encodes the derived state with the configured codes", func() {
			store.SetJoyConnected(true)
			store.SetAbortCommand(false)

			Expect(loop.Reconcile(ctx, 1)).To(Succeed())
			Expect(pub.last().Code).To(Equal(int16(0)))

			store.SetSwitchModeRequested(true)
			Expect(loop.Reconcile(ctx, 2)).To(Succeed())
			Expect(pub.last().State).To(Equal(models.StateAutonomous))
			Expect(pub.last().Code).To(Equal(int16(1)))

			store.SetGoalReached(true)
			Expect(loop.Reconcile(ctx, 3)).To(Succeed())
			Expect(pub.last().Code).To(Equal(int16(3)))

			store.SetMissionCompleted(true)
			Expect(loop.Reconcile(ctx, 4)).To(Succeed())
			Expect(pub.last().Code).To(Equal(int16(4)))

			store.SetCollisionAlert(true)
			Expect(loop.Reconcile(ctx, 5)).To(Succeed())
			Expect(pub.last().Code).To(Equal(int16(2)))
			Expect(pub.last().Mode).To(Equal(models.ModeAutonomous))
		})

		It("absorbs publisher failures and counts them", func() {
			broken := &recordingPublisher{name: "broken", err: errors.New("unreachable")}
			healthy := &recordingPublisher{name: "healthy"}

			failing, err := NewControlLoop(testConfig(), store, publisher.NewMultiPublisher(broken, healthy))
			Expect(err).NotTo(HaveOccurred())
			defer failing.Stop()

			before := testutil.ToFloat64(metrics.PublishFailures().WithLabelValues("broken"))

			Expect(failing.Reconcile(ctx, 1)).To(Succeed())
			Expect(failing.Reconcile(ctx, 2)).To(Succeed())

			Expect(testutil.ToFloat64(metrics.PublishFailures().WithLabelValues("broken"))).To(Equal(before + 2))
			Expect(healthy.statuses()).To(HaveLen(2))
			Expect(failing.ReadinessCheck()).To(Succeed())
		})

		It("does nothing when the context is already done", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			Expect(loop.Reconcile(cancelled, 1)).To(MatchError(context.Canceled))
			Expect(pub.statuses()).To(BeEmpty())
		})

		It("keeps a copy of the last status for readers", func() {
			Expect(loop.ReadinessCheck()).To(MatchError(ErrNotReady))

			Expect(loop.Reconcile(ctx, 1)).To(Succeed())
			Expect(loop.ReadinessCheck()).To(Succeed())
			Expect(loop.LivenessCheck()).To(Succeed())

			snapshot, ok := loop.GetSnapshotManager().GetDeepCopySnapshot()
			Expect(ok).To(BeTrue())
			Expect(snapshot.Tick).To(Equal(uint64(1)))
			Expect(snapshot.State).To(Equal(models.StateEmergency))
		})
	})

	Describe("Execute", func() {
		It("ticks until the context is cancelled", func() {
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)

			go func() {
				defer GinkgoRecover()
				done <- loop.Execute(runCtx)
			}()

			Eventually(func() int { return len(pub.statuses()) }, time.Second, 5*time.Millisecond).Should(BeNumerically(">=", 3))

			store.SetJoyConnected(true)
			store.SetAbortCommand(false)
			Eventually(func() models.State { return pub.last().State }, time.Second, 5*time.Millisecond).Should(Equal(models.StateManual))

			cancel()
			Eventually(done, time.Second).Should(Receive(BeNil()))

			ticks := pub.statuses()
			for i := 1; i < len(ticks); i++ {
				Expect(ticks[i].Tick).To(Equal(ticks[i-1].Tick + 1))
			}
		})
	})
})

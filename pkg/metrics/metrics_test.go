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

package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/heptiolabs/healthcheck"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/united-manufacturing-hub/machine-states/pkg/metrics"
)

var _ = Describe("Metrics", func() {
	It("exports the current state one-hot and the numeric code", func() {
		states := []string{"EMERGENCY", "MANUAL", "AUTONOMOUS"}

		metrics.SetRobotState("MANUAL", 0, states)
		Expect(testutil.ToFloat64(metrics.RobotStateCode())).To(Equal(0.0))

		metrics.SetRobotState("EMERGENCY", 2, states)
		Expect(testutil.ToFloat64(metrics.RobotStateCode())).To(Equal(2.0))
	})

	It("counts signal updates per signal", func() {
		before := testutil.ToFloat64(metrics.SignalUpdates().WithLabelValues("metrics_test_signal"))
		metrics.IncSignalUpdate("metrics_test_signal")
		metrics.IncSignalUpdate("metrics_test_signal")
		Expect(testutil.ToFloat64(metrics.SignalUpdates().WithLabelValues("metrics_test_signal"))).To(Equal(before + 2))
	})

	Describe("endpoint", func() {
		var (
			server *http.Server
			health healthcheck.Handler
			ready  error
		)

		BeforeEach(func() {
			ready = errors.New("no tick yet")
			health = healthcheck.NewHandler()
			health.AddReadinessCheck("first-tick", func() error { return ready })
			server = metrics.SetupMetricsEndpoint("127.0.0.1:0", health)
		})

		AfterEach(func() {
			Expect(server.Shutdown(context.Background())).To(Succeed())
		})

		get := func(path string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			return rec
		}

		It("serves prometheus metrics", func() {
			metrics.IncTick()
			rec := get("/metrics")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("fred2_machine_states_ticks_total"))
		})

		It("reports readiness from the registered checks", func() {
			Expect(get("/ready").Code).To(Equal(http.StatusServiceUnavailable))

			ready = nil
			Expect(get("/ready").Code).To(Equal(http.StatusOK))
			Expect(get("/live").Code).To(Equal(http.StatusOK))
		})
	})
})

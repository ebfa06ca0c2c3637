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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/united-manufacturing-hub/machine-states/pkg/logger"
	"github.com/united-manufacturing-hub/machine-states/pkg/sentry"
)

// NewHealthHandler returns a health handler whose check results are also
// exported as prometheus gauges. It always carries a goroutine-threshold liveness check.
func NewHealthHandler() healthcheck.Handler {
	health := healthcheck.NewMetricsHandler(prometheus.DefaultRegisterer, namespace)
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))

	return health
}

// SetupMetricsEndpoint starts an HTTP server exposing /metrics, /live and /ready.
// It should be called once at startup and shut down by the caller.
func SetupMetricsEndpoint(addr string, health healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	if health != nil {
		mux.HandleFunc("/live", health.LiveEndpoint)
		mux.HandleFunc("/ready", health.ReadyEndpoint)
	}

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeError, logger.For(logger.ComponentMetrics))
		}
	}()

	return server
}

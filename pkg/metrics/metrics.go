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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	// Component labels.
	ComponentControlLoop   = "control_loop"
	ComponentArbiter       = "arbiter"
	ComponentSignalStore   = "signal_store"
	ComponentSignalWatcher = "signal_watcher"
	ComponentPublisher     = "publisher"
)

var (
	namespace = "fred2"
	subsystem = "machine_states"

	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	reconcileTime = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_duration_milliseconds",
			Help:      "Time taken for one arbitration tick including publishing (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.99: 0.01,
			},
		},
		[]string{"component", "instance"},
	)

	starvationSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_starved_total_seconds",
			Help:      "Total seconds the control loop was starved",
		},
	)

	ticksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ticks_total",
			Help:      "Total number of arbitration ticks",
		},
	)

	robotStateCode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "robot_state_code",
			Help:      "Numeric code of the last published robot state",
		},
	)

	robotState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "robot_state",
			Help:      "1 for the current robot state, 0 for all others",
		},
		[]string{"state"},
	)

	robotMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "robot_mode",
			Help:      "1 for the current operating mode, 0 for the other",
		},
		[]string{"mode"},
	)

	stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Total number of robot state changes",
		},
		[]string{"from", "to"},
	)

	modeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "mode_transitions_total",
			Help:      "Total number of operating mode changes",
		},
		[]string{"from", "to"},
	)

	signalUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "signal_updates_total",
			Help:      "Total number of accepted signal writes",
		},
		[]string{"signal"},
	)

	signalRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "signal_rejected_total",
			Help:      "Total number of signal writes rejected as malformed or unknown",
		},
		[]string{"signal"},
	)

	publishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "publish_failures_total",
			Help:      "Total number of failed publish attempts by publisher",
		},
		[]string{"publisher"},
	)
)

// IncErrorCountAndLog increments the error counter for a component and logs at debug level.
func IncErrorCountAndLog(component, instance string, err error, logger *zap.SugaredLogger) {
	IncErrorCount(component, instance)

	if logger != nil {
		logger.Debugf("Component %s instance %s failed: %v", component, instance, err)
	}
}

// IncErrorCount increments the error counter for a component.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// InitErrorCounter initializes the error counter for a component so it is exported as 0.
func InitErrorCounter(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Add(0)
}

// ObserveReconcileTime records the time taken for one tick.
func ObserveReconcileTime(component, instance string, duration time.Duration) {
	reconcileTime.WithLabelValues(component, instance).Observe(float64(duration.Milliseconds()))
}

// AddStarvationTime increases the starvation counter by the specified seconds.
func AddStarvationTime(seconds float64) {
	starvationSeconds.Add(seconds)
}

// IncTick counts one arbitration tick.
func IncTick() {
	ticksTotal.Inc()
}

// SetRobotState exports the published state. allStates lists every state name
// so the previous one is reset to 0.
func SetRobotState(current string, code int16, allStates []string) {
	robotStateCode.Set(float64(code))

	for _, s := range allStates {
		if s == current {
			robotState.WithLabelValues(s).Set(1)
		} else {
			robotState.WithLabelValues(s).Set(0)
		}
	}
}

// SetRobotMode exports the current mode in the same one-hot form as SetRobotState.
func SetRobotMode(current string, allModes []string) {
	for _, m := range allModes {
		if m == current {
			robotMode.WithLabelValues(m).Set(1)
		} else {
			robotMode.WithLabelValues(m).Set(0)
		}
	}
}

// RecordStateTransition counts a change of the derived robot state.
func RecordStateTransition(from, to string) {
	stateTransitions.WithLabelValues(from, to).Inc()
}

// RecordModeTransition counts a change of the operating mode.
func RecordModeTransition(from, to string) {
	modeTransitions.WithLabelValues(from, to).Inc()
}

// IncSignalUpdate counts an accepted signal write.
func IncSignalUpdate(signal string) {
	signalUpdates.WithLabelValues(signal).Inc()
}

// IncSignalRejected counts a rejected signal write.
func IncSignalRejected(signal string) {
	signalRejected.WithLabelValues(signal).Inc()
}

// IncPublishFailure counts a failed publish.
func IncPublishFailure(publisher string) {
	publishFailures.WithLabelValues(publisher).Inc()
}

// The accessors below return the underlying collectors for assertions with
// prometheus/testutil.

func SignalUpdates() *prometheus.CounterVec    { return signalUpdates }
func SignalRejected() *prometheus.CounterVec   { return signalRejected }
func StateTransitions() *prometheus.CounterVec { return stateTransitions }
func ModeTransitions() *prometheus.CounterVec  { return modeTransitions }
func PublishFailures() *prometheus.CounterVec  { return publishFailures }
func RobotStateCode() prometheus.Gauge         { return robotStateCode }
func Ticks() prometheus.Counter                { return ticksTotal }
func StarvationSeconds() prometheus.Counter    { return starvationSeconds }

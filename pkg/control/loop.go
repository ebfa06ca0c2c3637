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

// Package control drives the arbiter at a fixed rate.
//
// On every tick the control loop:
// - reads one snapshot from the signal store
// - runs the arbiter on it
// - encodes the resulting state with the configured codes
// - hands the status to the publisher, whether or not it changed
//
// Publisher failures never stop the loop. Downstream consumers keep the last
// value they received, which is stale but was safe when it was published.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/machine-states/pkg/config"
	"github.com/united-manufacturing-hub/machine-states/pkg/constants"
	"github.com/united-manufacturing-hub/machine-states/pkg/fsm"
	"github.com/united-manufacturing-hub/machine-states/pkg/fsm/robotstate"
	"github.com/united-manufacturing-hub/machine-states/pkg/logger"
	"github.com/united-manufacturing-hub/machine-states/pkg/metrics"
	"github.com/united-manufacturing-hub/machine-states/pkg/models"
	"github.com/united-manufacturing-hub/machine-states/pkg/publisher"
	"github.com/united-manufacturing-hub/machine-states/pkg/sentry"
	"github.com/united-manufacturing-hub/machine-states/pkg/signals"
	"github.com/united-manufacturing-hub/machine-states/pkg/starvationchecker"
)

// ErrNotReady is returned by ReadinessCheck until the first status was published.
var ErrNotReady = errors.New("no status published yet")

// ControlLoop owns the arbiter and is the only goroutine that ticks it.
type ControlLoop struct {
	store             *signals.Store
	arbiter           *robotstate.Arbiter
	publisher         publisher.Publisher
	logger            *zap.SugaredLogger
	starvationChecker *starvationchecker.StarvationChecker
	snapshotManager   *fsm.SnapshotManager
	codes             config.StateCodes
	runID             string
	configHash        string
	tickerTime        time.Duration
	currentTick       uint64
}

// NewControlLoop validates the configuration and creates a control loop in the
// boot posture. Invalid state codes are rejected here so that no tick can ever
// publish an unmapped state.
func NewControlLoop(cfg config.FullConfig, store *signals.Store, pub publisher.Publisher) (*ControlLoop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if store == nil {
		return nil, errors.New("signal store is nil")
	}

	if pub == nil {
		return nil, errors.New("publisher is nil")
	}

	log := logger.For(logger.ComponentControlLoop)
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	tickerTime := constants.TickerTime(cfg.Runtime.TickRateHz)

	metrics.InitErrorCounter(metrics.ComponentControlLoop, constants.DefaultInstanceName)

	return &ControlLoop{
		store:             store,
		arbiter:           robotstate.NewArbiter(),
		publisher:         pub,
		logger:            log,
		starvationChecker: starvationchecker.NewStarvationChecker(constants.StarvationThreshold(tickerTime)),
		snapshotManager:   fsm.NewSnapshotManager(),
		codes:             cfg.Codes,
		runID:             uuid.NewString(),
		configHash:        cfg.Hash,
		tickerTime:        tickerTime,
	}, nil
}

// Execute ticks until ctx is cancelled. A tick that takes longer than the
// ticker interval is logged, the loop keeps going.
func (c *ControlLoop) Execute(ctx context.Context) error {
	ticker := time.NewTicker(c.tickerTime)
	defer ticker.Stop()

	c.logger.Infof("Control loop started (run %s, tick every %s)", c.runID, c.tickerTime)

	for {
		select {
		case <-ctx.Done():
			c.logger.Infof("Control loop stopped after %d ticks", c.currentTick)

			return nil
		case <-ticker.C:
			c.currentTick++

			start := time.Now()

			timeoutCtx, cancel := context.WithTimeout(ctx, c.tickerTime)
			err := c.Reconcile(timeoutCtx, c.currentTick)
			cancel()

			cycleTime := time.Since(start)
			if cycleTime > c.tickerTime {
				c.logger.Warnf("Control loop cycle time is greater than ticker time: %v", cycleTime)

				if cycleTime > 2*c.tickerTime {
					c.logger.Errorf("Control loop cycle time is greater than 2*ticker time: %v", cycleTime)
				}
			}

			metrics.ObserveReconcileTime(metrics.ComponentControlLoop, constants.DefaultInstanceName, cycleTime)

			if err != nil {
				if errors.Is(err, context.Canceled) {
					c.logger.Infof("Control loop cancelled")

					return nil
				}

				metrics.IncErrorCountAndLog(metrics.ComponentControlLoop, constants.DefaultInstanceName, err, c.logger)
				sentry.ReportIssuef(sentry.IssueTypeError, c.logger, "Control loop error: %v", err)

				return err
			}
		}
	}
}

// Reconcile runs one tick. It only fails if ctx is already done when the tick
// starts; publisher errors are reported and absorbed.
func (c *ControlLoop) Reconcile(ctx context.Context, tick uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	snap := c.store.Snapshot()
	res := c.arbiter.Tick(ctx, snap)

	status := &models.Status{
		RunID:      c.runID,
		Tick:       tick,
		Timestamp:  time.Now().UTC(),
		Mode:       res.Mode,
		State:      res.State,
		Code:       c.codes.MustCode(res.State),
		Signals:    snap.AsMap(),
		ConfigHash: c.configHash,
	}

	if err := c.publisher.Publish(ctx, *status); err != nil {
		c.reportPublishError(tick, err)
	}

	metrics.IncTick()
	metrics.SetRobotState(status.State.String(), status.Code, models.StateNames())
	metrics.SetRobotMode(status.Mode.String(), models.ModeNames())

	c.starvationChecker.Reconcile()
	c.snapshotManager.UpdateSnapshot(status)

	return nil
}

// reportPublishError counts one failure per failed publisher. Errors joined by
// a MultiPublisher are split up again.
func (c *ControlLoop) reportPublishError(tick uint64, err error) {
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	for _, e := range errs {
		name := c.publisher.Name()

		var pubErr *publisher.PublishError
		if errors.As(e, &pubErr) {
			name = pubErr.Publisher
		}

		metrics.IncPublishFailure(name)
		sentry.ReportPublisherWarning(c.logger, name, tick, e)
	}
}

// GetSnapshotManager returns the manager holding the last published status.
func (c *ControlLoop) GetSnapshotManager() *fsm.SnapshotManager {
	return c.snapshotManager
}

// RunID identifies this process run in every published status.
func (c *ControlLoop) RunID() string {
	return c.runID
}

// TickerTime returns the interval between ticks.
func (c *ControlLoop) TickerTime() time.Duration {
	return c.tickerTime
}

// LivenessCheck fails while the loop is starved.
func (c *ControlLoop) LivenessCheck() error {
	return c.starvationChecker.Check()
}

// ReadinessCheck fails until the first status was published.
func (c *ControlLoop) ReadinessCheck() error {
	if !c.snapshotManager.HasSnapshot() {
		return ErrNotReady
	}

	return nil
}

// Stop releases background resources. Execute must have returned.
func (c *ControlLoop) Stop() {
	c.starvationChecker.Stop()
}

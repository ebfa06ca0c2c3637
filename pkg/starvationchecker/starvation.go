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

package starvationchecker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/machine-states/pkg/constants"
	"github.com/united-manufacturing-hub/machine-states/pkg/logger"
	"github.com/united-manufacturing-hub/machine-states/pkg/metrics"
	"github.com/united-manufacturing-hub/machine-states/pkg/sentry"
)

// StarvationChecker detects periods in which the control loop did not tick.
// A starved loop means downstream consumers see a stale robot state, so it is
// reported through metrics, Sentry and the liveness check.
//
// The control loop calls Reconcile on every tick. A background goroutine
// compares the time since the last tick against the threshold.
type StarvationChecker struct {
	lastReconcileTime   time.Time
	ctx                 context.Context //nolint:containedctx // This is intentional for background service lifecycle
	logger              *zap.SugaredLogger
	cancel              context.CancelFunc
	wg                  sync.WaitGroup
	starvationThreshold time.Duration
	checkInterval       time.Duration
	mutex               sync.RWMutex
}

// NewStarvationChecker creates a checker and starts its background goroutine.
// It must be stopped with Stop.
func NewStarvationChecker(threshold time.Duration) *StarvationChecker {
	return NewStarvationCheckerWithInterval(threshold, constants.StarvationCheckInterval)
}

// NewStarvationCheckerWithInterval is NewStarvationChecker with a custom check interval.
func NewStarvationCheckerWithInterval(threshold, interval time.Duration) *StarvationChecker {
	ctx, cancel := context.WithCancel(context.Background())
	checker := &StarvationChecker{
		starvationThreshold: threshold,
		checkInterval:       interval,
		lastReconcileTime:   time.Now(),
		logger:              logger.For(logger.ComponentStarvationChecker),
		ctx:                 ctx,
		cancel:              cancel,
	}

	checker.wg.Add(1)

	go checker.checkStarvationLoop()

	checker.logger.Infof("Starvation checker created with threshold %s", threshold)

	return checker
}

func (s *StarvationChecker) checkStarvationLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			since := time.Since(s.GetLastReconcileTime())
			if since > s.starvationThreshold {
				metrics.AddStarvationTime(s.checkInterval.Seconds())
				sentry.ReportIssuef(sentry.IssueTypeWarning, s.logger,
					"[StarvationChecker.checkStarvationLoop] Control loop starvation detected: %.2f seconds since last tick", since.Seconds())
			} else {
				s.logger.Debugf("Control loop is healthy, last tick was %.2f seconds ago", since.Seconds())
			}
		}
	}
}

// Stop terminates the background goroutine. It is safe to call more than once.
func (s *StarvationChecker) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Debug("Starvation checker stopped")
}

// Reconcile marks the current tick as done.
func (s *StarvationChecker) Reconcile() {
	s.UpdateLastReconcileTime()
}

// UpdateLastReconcileTime marks the current time as the most recent tick.
func (s *StarvationChecker) UpdateLastReconcileTime() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastReconcileTime = time.Now()
}

// GetLastReconcileTime returns the timestamp of the most recent tick.
func (s *StarvationChecker) GetLastReconcileTime() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.lastReconcileTime
}

// Check returns an error if the loop is currently starved. It is used as a liveness check.
func (s *StarvationChecker) Check() error {
	since := time.Since(s.GetLastReconcileTime())
	if since > s.starvationThreshold {
		return fmt.Errorf("control loop starved: last tick %.2f seconds ago (threshold %s)", since.Seconds(), s.starvationThreshold)
	}

	return nil
}

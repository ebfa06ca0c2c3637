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
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/united-manufacturing-hub/machine-states/pkg/config"
	"github.com/united-manufacturing-hub/machine-states/pkg/constants"
	"github.com/united-manufacturing-hub/machine-states/pkg/control"
	"github.com/united-manufacturing-hub/machine-states/pkg/logger"
	"github.com/united-manufacturing-hub/machine-states/pkg/metrics"
	"github.com/united-manufacturing-hub/machine-states/pkg/publisher"
	"github.com/united-manufacturing-hub/machine-states/pkg/sentry"
	"github.com/united-manufacturing-hub/machine-states/pkg/signals"
	"github.com/united-manufacturing-hub/machine-states/pkg/signalwatcher"
	"github.com/united-manufacturing-hub/machine-states/pkg/version"
)

func main() {
	debugFlag := flag.Bool("debug", false, "log every tick with all signal values")
	configPath := flag.String("config", "", "path to the params file (default $MACHINE_STATES_CONFIG or "+constants.DefaultConfigPath+")")
	flag.Parse()

	logger.Initialize()
	defer func() { _ = logger.Sync() }()

	sentry.InitSentry(version.GetAppVersion(), true)

	log := logger.For(logger.ComponentCore)
	log.Infof("Starting machine-states %s...", version.GetAppVersion())

	cfg, err := config.LoadConfigWithEnvOverrides(*configPath, logger.For(logger.ComponentConfig))
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to load config: %v", err)
		os.Exit(1)
	}

	// Debug mode only adds the per-tick status line. Use LOGGING_LEVEL for
	// general verbosity.
	debug := *debugFlag || cfg.Runtime.Debug

	log.Infof("Loaded config %s: codes %v, tick rate %g Hz, signal dir %s",
		cfg.Hash, cfg.Codes.Map(), cfg.Runtime.TickRateHz, cfg.Runtime.SignalDir)

	store := signals.NewStore()

	pub, err := buildPublisher(cfg.Runtime, debug)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to create publisher: %v", err)
		os.Exit(1)
	}

	controlLoop, err := control.NewControlLoop(cfg, store, pub)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to create control loop: %v", err)
		os.Exit(1)
	}
	defer controlLoop.Stop()

	sentry.SetRunContext(controlLoop.RunID(), cfg.Hash)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Runtime.MetricsPort > 0 {
		health := metrics.NewHealthHandler()
		health.AddLivenessCheck("control-loop-starvation", controlLoop.LivenessCheck)
		health.AddReadinessCheck("first-status-published", controlLoop.ReadinessCheck)

		server := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.Runtime.MetricsPort), health)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown metrics server: %v", err)
			}
		}()

		log.Infof("Metrics and health endpoints listening on :%d", cfg.Runtime.MetricsPort)
	}

	watcher := signalwatcher.NewWatcher(cfg.Runtime.SignalDir, store)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return controlLoop.Execute(groupCtx) })
	group.Go(func() error {
		// Without signal input the store keeps its fail-safe values and the
		// loop keeps publishing EMERGENCY, so a watcher failure does not stop the process.
		if err := watcher.Run(groupCtx); err != nil {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Signal watcher stopped: %v", err)
		}

		return nil
	})
	group.Go(func() error {
		StatusLogger(groupCtx, controlLoop)

		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		sentry.ReportIssuef(sentry.IssueTypeError, log, "machine-states stopped with error: %v", err)
		os.Exit(1) //nolint:gocritic // deferred cleanup is best effort here
	}

	log.Info("machine-states completed")
}

// buildPublisher always logs the status and additionally writes it to the
// status file if one is configured.
func buildPublisher(runtime config.RuntimeConfig, debug bool) (publisher.Publisher, error) {
	publishers := []publisher.Publisher{
		publisher.NewLogPublisher(logger.For(logger.ComponentPublisher), debug),
	}

	if runtime.StatusFile != "" {
		filePublisher, err := publisher.NewFilePublisher(runtime.StatusFile)
		if err != nil {
			return nil, err
		}

		publishers = append(publishers, filePublisher)
	}

	return publisher.NewMultiPublisher(publishers...), nil
}

// StatusLogger logs the last published status at a fixed interval.
func StatusLogger(ctx context.Context, controlLoop *control.ControlLoop) {
	ticker := time.NewTicker(constants.StatusLoggerInterval)
	defer ticker.Stop()

	statusLogger := logger.For(logger.ComponentStatusLogger)
	if statusLogger == nil {
		statusLogger = zap.NewNop().Sugar()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, ok := controlLoop.GetSnapshotManager().GetDeepCopySnapshot()
			if !ok {
				sentry.ReportIssuef(sentry.IssueTypeWarning, statusLogger, "[StatusLogger] No status published yet")

				continue
			}

			statusLogger.Infof("Tick %d: state %s (code %d), mode %s, age %s",
				status.Tick, status.State, status.Code, status.Mode, time.Since(status.Timestamp).Round(time.Millisecond))
		}
	}
}

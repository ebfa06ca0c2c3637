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
// Package signalwatcher feeds input signals from a directory of files into
// the signal store. Each file is named after a signal, e.g. "joy_connected",
// and holds a single boolean such as "true" or "0". Writing a file is the same
// as receiving a message on the corresponding channel.
package signalwatcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/machine-states/pkg/constants"
	"github.com/united-manufacturing-hub/machine-states/pkg/logger"
	"github.com/united-manufacturing-hub/machine-states/pkg/metrics"
)

// Sink receives raw signal payloads. *signals.Store implements it.
type Sink interface {
	ApplyRaw(name string, payload []byte) error
}

// ErrSignalDirMissing is returned when the directory did not appear in time.
var ErrSignalDirMissing = errors.New("signal directory not available")

// Watcher applies the signal files of one directory to a Sink.
type Watcher struct {
	sink            Sink
	logger          *zap.SugaredLogger
	dir             string
	waitTimeout     time.Duration
	waitMaxInterval time.Duration
}

// NewWatcher returns a watcher for dir. Nothing is read until Run is called.
func NewWatcher(dir string, sink Sink) *Watcher {
	return &Watcher{
		dir:             dir,
		sink:            sink,
		logger:          logger.For(logger.ComponentSignalWatcher),
		waitTimeout:     constants.SignalDirWaitTimeout,
		waitMaxInterval: constants.SignalDirWaitMaxInterval,
	}
}

// Run waits for the directory, applies every file already present and then
// applies each created or written file until ctx is done. It returns nil on
// cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.waitForDir(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	defer func() {
		if err := fsw.Close(); err != nil {
			w.logger.Warnf("Failed to close watcher: %v", err)
		}
	}()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch signal directory %s: %w", w.dir, err)
	}

	// Files written before Add are only seen by the scan.
	w.scan()

	w.logger.Infof("Watching %s for signal updates", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.applyFile(event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			metrics.IncErrorCountAndLog(metrics.ComponentSignalWatcher, w.dir, err, w.logger)
			w.logger.Warnf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) waitForDir(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = w.waitMaxInterval
	b.MaxElapsedTime = w.waitTimeout

	op := func() error {
		info, err := os.Stat(w.dir)
		if err != nil {
			return err
		}

		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", w.dir)
		}

		return nil
	}

	notify := func(err error, next time.Duration) {
		w.logger.Infof("Waiting for signal directory %s (retry in %s): %v", w.dir, next, err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSignalDirMissing, w.dir, err)
	}

	return nil
}

func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warnf("Failed to scan %s: %v", w.dir, err)

		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		w.applyFile(filepath.Join(w.dir, entry.Name()))
	}
}

// ignored reports whether a file name belongs to a temporary or hidden file,
// e.g. one written by an editor or by an atomic rename in progress.
func ignored(name string) bool {
	return name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, "~")
}

func (w *Watcher) applyFile(path string) {
	name := filepath.Base(path)
	if ignored(name) {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		w.logger.Debugf("Failed to read %s: %v", path, err)

		return
	}

	// Empty payloads show up between truncate and write.
	if len(strings.TrimSpace(string(payload))) == 0 {
		return
	}

	if err := w.sink.ApplyRaw(name, payload); err != nil {
		w.logger.Warnf("Ignoring signal file %s: %v", name, err)

		return
	}

	w.logger.Debugf("Applied %s=%s", name, strings.TrimSpace(string(payload)))
}

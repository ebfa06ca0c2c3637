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

package sentry

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// debounceWindow is the minimum time between two Sentry events with the same title.
// Logging is never debounced.
const debounceWindow = 2 * time.Hour

type debouncer struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
}

var (
	warningDebouncer = &debouncer{lastSent: make(map[string]time.Time)}
	errorDebouncer   = &debouncer{lastSent: make(map[string]time.Time)}
)

// allow reports whether an event with this key may be sent now and records it if so.
func (d *debouncer) allow(key string) bool {
	if !shouldDebounceErrors {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.lastSent[key]; ok && time.Since(last) < debounceWindow {
		return false
	}

	d.lastSent[key] = time.Now()

	return true
}

// reportFatal sends a fatal error to Sentry, logs it together with the stack and panics.
func reportFatal(err error, log *zap.SugaredLogger, context map[string]interface{}) {
	log.Error("The machine-states arbiter has encountered a fatal error and will now terminate.")
	log.Errorf("Error: %s", err)
	log.Debugf("Stack trace: %s", string(debug.Stack()))

	sendSentryEvent(createSentryEventWithContext(sentry.LevelFatal, err, context))
	sentry.Flush(5 * time.Second)

	log.Panic("Fatal error")
}

func reportError(err error, log *zap.SugaredLogger, context map[string]interface{}) {
	log.Error(err)

	if errorDebouncer.allow(getMeaningfulErrorTitle(err)) {
		sendSentryEvent(createSentryEventWithContext(sentry.LevelError, err, context))
	}
}

func reportWarning(err error, log *zap.SugaredLogger, context map[string]interface{}) {
	log.Warn(err)

	if warningDebouncer.allow(getMeaningfulErrorTitle(err)) {
		sendSentryEvent(createSentryEventWithContext(sentry.LevelWarning, err, context))
	}
}

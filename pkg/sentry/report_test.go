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
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ = Describe("Issue reporting", func() {
	var (
		log  *zap.SugaredLogger
		logs *observer.ObservedLogs
	)

	BeforeEach(func() {
		var core zapcore.Core
		core, logs = observer.New(zapcore.DebugLevel)
		log = zap.New(core).Sugar()
		DisableTestMode()
	})

	AfterEach(func() {
		DisableTestMode()
	})

	It("always logs warnings even when the Sentry event is debounced", func() {
		err := errors.New("publish failed: disk full")
		ReportIssue(err, IssueTypeWarning, log)
		ReportIssue(err, IssueTypeWarning, log)

		Expect(logs.FilterLevelExact(zapcore.WarnLevel).Len()).To(Equal(2))
	})

	It("logs errors with the formatted message", func() {
		ReportIssuef(IssueTypeError, log, "tick %d failed: %s", 7, "boom")

		entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Message).To(Equal("tick 7 failed: boom"))
	})

	It("panics on fatal issues", func() {
		Expect(func() {
			ReportIssue(errors.New("config invalid"), IssueTypeFatal, log)
		}).To(Panic())
	})

	It("tolerates a nil logger", func() {
		Expect(func() {
			ReportIssue(errors.New("no logger"), IssueTypeWarning, nil)
		}).NotTo(Panic())
	})

	Describe("debouncer", func() {
		It("suppresses repeated keys inside the window", func() {
			d := &debouncer{lastSent: make(map[string]time.Time)}
			Expect(d.allow("a")).To(BeTrue())
			Expect(d.allow("a")).To(BeFalse())
			Expect(d.allow("b")).To(BeTrue())
		})

		It("lets everything through in test mode", func() {
			EnableTestMode()
			d := &debouncer{lastSent: make(map[string]time.Time)}
			Expect(d.allow("a")).To(BeTrue())
			Expect(d.allow("a")).To(BeTrue())
		})
	})

	Describe("event creation", func() {
		It("uses the first phrase of the error as title", func() {
			Expect(getMeaningfulErrorTitle(errors.New("missing state code: EMERGENCY"))).To(Equal("missing state code"))
		})

		It("adds scalar context as tags and fingerprint keys", func() {
			event := createSentryEventWithContext("warning", errors.New("publish failed"), map[string]interface{}{
				"publisher": "file",
				"tick":      uint64(3),
				"details":   []string{"x"},
			})

			Expect(event.Tags).To(HaveKeyWithValue("publisher", "file"))
			Expect(event.Tags).To(HaveKeyWithValue("tick", "3"))
			Expect(event.Extra).To(HaveKey("details"))
			Expect(event.Fingerprint).To(ContainElement("publisher: file"))
		})
	})
})

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

package publisher

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/machine-states/pkg/models"
)

// LogPublisher writes every status to the log. In debug mode the state and
// all signal values are logged at info level, otherwise at debug level.
type LogPublisher struct {
	logger *zap.SugaredLogger
	debug  bool
}

func NewLogPublisher(logger *zap.SugaredLogger, debug bool) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &LogPublisher{logger: logger, debug: debug}
}

func (p *LogPublisher) Name() string {
	return "log"
}

func (p *LogPublisher) Publish(_ context.Context, status models.Status) error {
	if !p.debug {
		p.logger.Debugf("Robot state %s (code %d, mode %s, tick %d)", status.State, status.Code, status.Mode, status.Tick)

		return nil
	}

	p.logger.Infof("Robot state %s (code %d, mode %s, tick %d) signals: %s",
		status.State, status.Code, status.Mode, status.Tick, formatSignals(status.Signals))

	return nil
}

// formatSignals renders signals sorted by name as name=value pairs.
func formatSignals(signals map[string]bool) string {
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}

	sort.Strings(names)

	var b strings.Builder

	for i, name := range names {
		if i > 0 {
			b.WriteByte(' ')
		}

		b.WriteString(name)
		b.WriteByte('=')

		if signals[name] {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	}

	return b.String()
}

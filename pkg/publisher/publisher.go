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

// Package publisher delivers the robot status produced on every tick.
package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/united-manufacturing-hub/machine-states/pkg/models"
)

// Publisher hands a status to a downstream consumer. Publish is called once per
// tick from the control loop and should return well within one tick interval.
type Publisher interface {
	Publish(ctx context.Context, status models.Status) error
	// Name identifies the publisher in logs and metrics.
	Name() string
}

// PublishError carries the name of the publisher that failed.
type PublishError struct {
	Err       error
	Publisher string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publisher %s: %v", e.Publisher, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// MultiPublisher fans a status out to several publishers. A failing publisher
// does not prevent the others from receiving the status.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher returns a publisher for all non-nil publishers given.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}

	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}

	return m
}

func (m *MultiPublisher) Name() string {
	return "multi"
}

// Publish calls every publisher in order. The returned error joins one
// *PublishError per failed publisher.
func (m *MultiPublisher) Publish(ctx context.Context, status models.Status) error {
	var errs []error

	for _, p := range m.publishers {
		if err := p.Publish(ctx, status); err != nil {
			errs = append(errs, &PublishError{Publisher: p.Name(), Err: err})
		}
	}

	return errors.Join(errs...)
}

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

package fsm

import (
	"context"

	"github.com/looplab/fsm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BaseMachine", func() {
	var (
		m       *BaseMachine
		entered []string
	)

	BeforeEach(func() {
		entered = nil
		m = NewBaseMachine(BaseMachineConfig{
			ID:           "door",
			InitialState: "closed",
			Transitions: []fsm.EventDesc{
				{Name: "open", Src: []string{"closed"}, Dst: "open"},
				{Name: "close", Src: []string{"open"}, Dst: "closed"},
			},
		}, nil)
		m.AddCallback("enter_open", func(_ context.Context, e *fsm.Event) {
			entered = append(entered, e.Dst)
		})
	})

	It("runs the enter callback of the destination state", func() {
		changed, err := m.SendEvent(context.Background(), "open")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(m.Current()).To(Equal("open"))
		Expect(entered).To(Equal([]string{"open"}))
	})

	It("treats events that are not possible as no-ops", func() {
		changed, err := m.SendEvent(context.Background(), "close")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
		Expect(m.Current()).To(Equal("closed"))
		Expect(entered).To(BeEmpty())
	})

	It("completes a transition even when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		changed, err := m.SendEvent(ctx, "open")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(m.Current()).To(Equal("open"))
	})

	It("allows forcing the state in tests without callbacks", func() {
		m.SetCurrent("open")
		Expect(m.Current()).To(Equal("open"))
		Expect(entered).To(BeEmpty())
		Expect(m.Can("close")).To(BeTrue())
	})
})

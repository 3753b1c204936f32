// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package telemetry

import (
	"context"
	"sync"

	"github.com/foundriesio/edgeagent/internal/events"
)

// Fake is an in-memory Client double for tests, grounded on the teacher's
// hand-rolled mockHttpOperations in test/integration/device_gw_mock.go: it
// records every published event batch and lets a test push synthetic
// inbound commands without a real HTTP server.
type Fake struct {
	mu        sync.Mutex
	published []events.OTAEvent
	commands  chan Request
}

// NewFake returns a ready-to-use Fake.
func NewFake() *Fake {
	return &Fake{commands: make(chan Request, 8)}
}

// PublishEvents implements events.Publisher.
func (f *Fake) PublishEvents(_ context.Context, evs []events.OTAEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, evs...)
	return nil
}

// Commands implements Client.
func (f *Fake) Commands() <-chan Request {
	return f.commands
}

// Push enqueues a command as if the backend had sent it.
func (f *Fake) Push(r Request) {
	f.commands <- r
}

// Published returns every event batch flushed so far.
func (f *Fake) Published() []events.OTAEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.OTAEvent, len(f.published))
	copy(out, f.published)
	return out
}

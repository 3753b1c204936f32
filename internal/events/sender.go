// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Publisher delivers a batch of events to the device gateway. pkg/telemetry
// implements this against the real long-poll transport; tests substitute an
// in-memory double.
type Publisher interface {
	PublishEvents(ctx context.Context, events []OTAEvent) error
}

// Sender drains an Outbox through a Publisher, grounded on the teacher's
// FlushEvents: queue first so a crash mid-send never loses an event, only
// ack (delete) once the publish round-trip succeeds.
type Sender struct {
	outbox    *Outbox
	publisher Publisher
}

// NewSender returns a Sender pairing outbox with publisher.
func NewSender(outbox *Outbox, publisher Publisher) *Sender {
	return &Sender{outbox: outbox, publisher: publisher}
}

// Emit enqueues ev and immediately attempts to flush the whole outbox. A
// flush failure is logged, not returned: the event is safely queued and
// will be retried on the next Emit or explicit Flush.
func (s *Sender) Emit(ctx context.Context, ev OTAEvent) {
	if err := s.outbox.Enqueue(ev); err != nil {
		log.Err(err).Str("requestUUID", ev.RequestUUID).Msg("events: failed to enqueue event")
		return
	}
	if err := s.Flush(ctx); err != nil {
		log.Err(err).Msg("events: flush failed, will retry on next emit")
	}
}

// Flush publishes every pending event and acknowledges them on success.
func (s *Sender) Flush(ctx context.Context) error {
	pending, maxID, err := s.outbox.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	if err := s.publisher.PublishEvents(ctx, pending); err != nil {
		return err
	}
	return s.outbox.Ack(maxID)
}

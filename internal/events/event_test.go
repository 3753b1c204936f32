// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package events

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/edgeagent/internal/otaerr"
)

func TestOutbox_EnqueuePendingAck(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	ob, err := NewOutbox(dbPath)
	require.NoError(t, err)

	ev1 := New("req-1", StatusDownloading, 10, otaerr.KindOK, "")
	ev2 := New("req-1", StatusDownloading, 20, otaerr.KindOK, "")
	require.NoError(t, ob.Enqueue(ev1))
	require.NoError(t, ob.Enqueue(ev2))

	pending, maxID, err := ob.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, int32(10), pending[0].StatusProgress)
	require.Equal(t, int32(20), pending[1].StatusProgress)

	require.NoError(t, ob.Ack(maxID))
	pending, _, err = ob.Pending()
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestOutbox_AckIsPartial(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	ob, err := NewOutbox(dbPath)
	require.NoError(t, err)

	require.NoError(t, ob.Enqueue(New("req-1", StatusAcknowledged, 0, otaerr.KindOK, "")))
	pending, firstID, err := ob.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, ob.Enqueue(New("req-1", StatusDeployed, 0, otaerr.KindOK, "")))
	require.NoError(t, ob.Ack(firstID))

	pending, _, err = ob.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, StatusDeployed, pending[0].Status)
}

type fakePublisher struct {
	err      error
	received [][]OTAEvent
}

func (f *fakePublisher) PublishEvents(ctx context.Context, evs []OTAEvent) error {
	f.received = append(f.received, evs)
	return f.err
}

func TestSender_FlushAcksOnSuccess(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	ob, err := NewOutbox(dbPath)
	require.NoError(t, err)

	pub := &fakePublisher{}
	s := NewSender(ob, pub)
	s.Emit(context.Background(), New("req-1", StatusAcknowledged, 0, otaerr.KindOK, ""))

	require.Len(t, pub.received, 1)
	pending, _, err := ob.Pending()
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestSender_EmitLeavesEventQueuedOnPublishFailure(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	ob, err := NewOutbox(dbPath)
	require.NoError(t, err)

	pub := &fakePublisher{err: errors.New("gateway unreachable")}
	s := NewSender(ob, pub)
	s.Emit(context.Background(), New("req-1", StatusAcknowledged, 0, otaerr.KindOK, ""))

	pending, _, err := ob.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	pub.err = nil
	require.NoError(t, s.Flush(context.Background()))
	pending, _, err = ob.Pending()
	require.NoError(t, err)
	require.Empty(t, pending)
}

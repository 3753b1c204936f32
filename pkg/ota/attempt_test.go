// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package ota

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/edgeagent/internal/events"
	"github.com/foundriesio/edgeagent/internal/otaerr"
	"github.com/foundriesio/edgeagent/internal/settings"
)

func TestAttemptLoop_RetriesThenSucceeds(t *testing.T) {
	var requestCount atomic.Int32
	payload := []byte("firmware-payload-after-retries")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestCount.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	rig := newTestRig(t)
	rig.engine.runBit.Store(true)
	require.NoError(t, settings.SaveReqID(rig.engine.store, testUUID))

	kind := rig.engine.attemptLoop(context.Background(), testUUID, srv.URL)
	require.Equal(t, otaerr.KindOK, kind)
	require.EqualValues(t, len(payload), rig.engine.lastImageSize)
	require.EqualValues(t, 3, requestCount.Load())

	errorEvents := 0
	for _, ev := range rig.fake.Published() {
		if ev.Status == events.StatusError {
			errorEvents++
		}
	}
	require.Equal(t, 2, errorEvents)
}

func TestAttemptLoop_CancelStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rig := newTestRig(t)
	rig.engine.attemptDelay = 50 * time.Millisecond
	rig.engine.runBit.Store(true)

	go func() {
		time.Sleep(20 * time.Millisecond)
		rig.engine.runBit.Store(false)
	}()

	kind := rig.engine.attemptLoop(context.Background(), testUUID, srv.URL)
	require.Equal(t, otaerr.KindCanceled, kind)
}

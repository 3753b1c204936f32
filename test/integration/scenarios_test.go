// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/foundriesio/edgeagent/internal/bootloader"
	"github.com/foundriesio/edgeagent/internal/events"
	"github.com/foundriesio/edgeagent/pkg/ota"
	"github.com/foundriesio/edgeagent/pkg/telemetry"
)

const scenarioTimeout = 5 * time.Second

// runUntil polls until cond returns true or scenarioTimeout elapses.
func runUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(scenarioTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func lastEventStatus(gw *deviceGatewayMock) events.Status {
	evs := gw.publishedEvents()
	if len(evs) == 0 {
		return ""
	}
	return evs[len(evs)-1].Status
}

func countStatus(gw *deviceGatewayMock, status events.Status) int {
	n := 0
	for _, ev := range gw.publishedEvents() {
		if ev.Status == status {
			n++
		}
	}
	return n
}

// S1: happy path end to end — update request in, image downloaded and
// flashed, reboot requested, reconciliation on the next boot confirms it.
func TestScenario_HappyPathThenReboot(t *testing.T) {
	payload := []byte("a complete firmware image, end to end")
	fw := firmwareServer(payload)
	defer fw.Close()

	gw := newDeviceGatewayMock()
	defer gw.Close()

	e := newEnv(t, gw)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.engine.Run(ctx)

	reqID := uuid.New().String()
	e.engine.Dispatch(ctx, telemetry.Request{UUID: reqID, Operation: telemetry.OperationUpdate, URL: fw.URL})

	runUntil(t, func() bool {
		select {
		case <-e.rebooter.rebooted:
			return true
		default:
			return false
		}
	})

	require.GreaterOrEqual(t, countStatus(gw, events.StatusDeployed), 1)
	require.GreaterOrEqual(t, countStatus(gw, events.StatusRebooting), 1)

	// The new image boots and the bootloader completes the test swap.
	require.NoError(t, bootloader.New(e.bootStatePath, e.primaryBank, e.secondaryBank, e.rebooter).SimulateBoot(true))
	e.reconstruct()
	e.engine.Reconcile(context.Background())

	runUntil(t, func() bool {
		return lastEventStatus(gw) == events.StatusSuccess
	})
}

// S2: the firmware server flakes twice before succeeding; the attempt
// loop's retry/backoff absorbs it without the request ever failing.
func TestScenario_TransientNetworkFlakeRecoversViaRetry(t *testing.T) {
	payload := []byte("firmware delivered on the third attempt")
	fw := flakyFirmwareServer(payload, 2)
	defer fw.Close()

	gw := newDeviceGatewayMock()
	defer gw.Close()

	e := newEnv(t, gw)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.engine.Run(ctx)

	reqID := uuid.New().String()
	e.engine.Dispatch(ctx, telemetry.Request{UUID: reqID, Operation: telemetry.OperationUpdate, URL: fw.URL})

	runUntil(t, func() bool {
		select {
		case <-e.rebooter.rebooted:
			return true
		default:
			return false
		}
	})
	require.Equal(t, 2, countStatus(gw, events.StatusError))
}

// S3: every attempt fails; the request is reported Failure and the worker
// ends in its terminal state.
func TestScenario_RetriesExhaustedReportsFailure(t *testing.T) {
	fw := flakyFirmwareServer(nil, ota.MaxOTARetry+1)
	defer fw.Close()

	gw := newDeviceGatewayMock()
	defer gw.Close()

	e := newEnv(t, gw)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.engine.Run(ctx)

	reqID := uuid.New().String()
	e.engine.Dispatch(ctx, telemetry.Request{UUID: reqID, Operation: telemetry.OperationUpdate, URL: fw.URL})

	runUntil(t, func() bool {
		return lastEventStatus(gw) == events.StatusFailure
	})
	require.Equal(t, ota.WorkerTerminal, e.engine.CurrentState())
}

// S4: cancel mid-download stops the worker without it ever reaching deploy.
func TestScenario_CancelDuringDownloadStopsWorker(t *testing.T) {
	payload := make([]byte, 256*1024)
	fw := slowFirmwareServer(payload, 8*1024, 20*time.Millisecond)
	defer fw.Close()

	gw := newDeviceGatewayMock()
	defer gw.Close()

	e := newEnv(t, gw)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.engine.Run(ctx)

	reqID := uuid.New().String()
	e.engine.Dispatch(ctx, telemetry.Request{UUID: reqID, Operation: telemetry.OperationUpdate, URL: fw.URL})

	runUntil(t, func() bool {
		return e.engine.CurrentState() == ota.WorkerDownloading
	})

	cancelID := uuid.New().String()
	e.engine.Dispatch(ctx, telemetry.Request{UUID: cancelID, Operation: telemetry.OperationCancel})

	runUntil(t, func() bool {
		return e.engine.CurrentState() == ota.WorkerTerminal
	})
	select {
	case <-e.rebooter.rebooted:
		t.Fatal("canceled update should never reach reboot")
	default:
	}
}

// S5: a second update request while one is already running is rejected
// without disturbing the first.
func TestScenario_DuplicateUpdateRejectedWhileInProgress(t *testing.T) {
	payload := make([]byte, 256*1024)
	fw := slowFirmwareServer(payload, 8*1024, 20*time.Millisecond)
	defer fw.Close()

	gw := newDeviceGatewayMock()
	defer gw.Close()

	e := newEnv(t, gw)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.engine.Run(ctx)

	firstID := uuid.New().String()
	e.engine.Dispatch(ctx, telemetry.Request{UUID: firstID, Operation: telemetry.OperationUpdate, URL: fw.URL})

	runUntil(t, func() bool {
		return e.engine.CurrentState() == ota.WorkerDownloading
	})

	secondID := uuid.New().String()
	err := e.engine.Dispatch(ctx, telemetry.Request{UUID: secondID, Operation: telemetry.OperationUpdate, URL: fw.URL})
	require.ErrorIs(t, err, ota.ErrUpdateAlreadyInProgress)

	runUntil(t, func() bool {
		for _, ev := range gw.publishedEvents() {
			if ev.RequestUUID == secondID && ev.Status == events.StatusFailure {
				return true
			}
		}
		return false
	})
}

// S6: the bootloader reverts the unconfirmed image; reconciliation on the
// next boot reports SystemRollback, not a generic failure.
func TestScenario_RebootRevertsSurfacesSystemRollback(t *testing.T) {
	payload := []byte("an image the bootloader will revert")
	fw := firmwareServer(payload)
	defer fw.Close()

	gw := newDeviceGatewayMock()
	defer gw.Close()

	e := newEnv(t, gw)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.engine.Run(ctx)

	reqID := uuid.New().String()
	e.engine.Dispatch(ctx, telemetry.Request{UUID: reqID, Operation: telemetry.OperationUpdate, URL: fw.URL})

	runUntil(t, func() bool {
		select {
		case <-e.rebooter.rebooted:
			return true
		default:
			return false
		}
	})

	require.NoError(t, e.simulateBootRevert())
	e.reconstruct()
	e.engine.Reconcile(context.Background())

	runUntil(t, func() bool {
		evs := gw.publishedEvents()
		return len(evs) > 0 && evs[len(evs)-1].StatusCode == "SystemRollback"
	})
}

// simulateBootRevert flips the boot-state file directly to mirror what a
// real bootloader would leave behind after reverting an unconfirmed swap,
// without the test needing to drive flash.Writer again.
func (e *env) simulateBootRevert() error {
	return os.WriteFile(e.bootStatePath, []byte(`{"swap":"revert","confirmed":true,"image_size":0}`), 0o600)
}

// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package integration

import (
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/edgeagent/internal/bootloader"
	"github.com/foundriesio/edgeagent/internal/events"
	"github.com/foundriesio/edgeagent/internal/settings"
	"github.com/foundriesio/edgeagent/pkg/ota"
	"github.com/foundriesio/edgeagent/pkg/telemetry"
)

// recordingRebooter stands in for a warm reboot: it records that a reboot
// was requested instead of exiting the test process (spec.md §9.1
// decision, same rationale as internal/bootloader's test double).
type recordingRebooter struct {
	rebooted chan struct{}
}

func newRecordingRebooter() *recordingRebooter {
	return &recordingRebooter{rebooted: make(chan struct{}, 1)}
}

func (r *recordingRebooter) RebootWarm() {
	select {
	case r.rebooted <- struct{}{}:
	default:
	}
}

// env bundles one agent instance's collaborators: settings, bootloader,
// event sender against the mock gateway, and the engine itself. Built
// fresh per scenario and reconstructible with reconstruct() to simulate
// a reboot into a new agent process sharing the same on-disk state.
type env struct {
	t             *testing.T
	dir           string
	gateway       *deviceGatewayMock
	storePath     string
	bootStatePath string
	primaryBank   string
	secondaryBank string

	engine   *ota.Engine
	rebooter *recordingRebooter
}

func newEnv(t *testing.T, gateway *deviceGatewayMock) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		t:             t,
		dir:           dir,
		gateway:       gateway,
		storePath:     filepath.Join(dir, "settings.db"),
		bootStatePath: filepath.Join(dir, "boot_state.json"),
		primaryBank:   filepath.Join(dir, "slot0.img"),
		secondaryBank: filepath.Join(dir, "slot1.img"),
	}
	e.reconstruct()
	return e
}

// reconstruct rebuilds the engine against the same on-disk state,
// simulating a fresh agent process starting after a reboot.
func (e *env) reconstruct() {
	e.t.Helper()
	store, err := settings.Open(e.storePath)
	require.NoError(e.t, err)

	outbox, err := events.NewOutbox(filepath.Join(e.dir, "events.db"))
	require.NoError(e.t, err)

	gwURL, err := url.Parse(e.gateway.URL())
	require.NoError(e.t, err)
	gw := telemetry.NewGatewayClient(gwURL, http.DefaultClient, "integration-test", 20*time.Millisecond)
	sender := events.NewSender(outbox, gw)

	e.rebooter = newRecordingRebooter()
	boot := bootloader.New(e.bootStatePath, e.primaryBank, e.secondaryBank, e.rebooter)

	e.engine = ota.NewEngine(store, boot, sender, gw, http.DefaultClient, e.secondaryBank,
		ota.WithAttemptDelay(10*time.Millisecond),
		ota.WithRebootDelay(10*time.Millisecond),
		ota.WithDownloadTimeout(2*time.Second),
	)
}

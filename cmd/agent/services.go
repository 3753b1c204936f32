// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"net/http"

	"github.com/foundriesio/edgeagent/internal/bootloader"
	"github.com/foundriesio/edgeagent/internal/events"
	"github.com/foundriesio/edgeagent/internal/settings"
	"github.com/foundriesio/edgeagent/pkg/ota"
	"github.com/foundriesio/edgeagent/pkg/telemetry"
)

// services bundles the collaborators every subcommand needs, wired from
// the loaded config (spec.md §3.1/§4.6).
type services struct {
	store   *settings.Store
	gateway *telemetry.GatewayClient
	engine  *ota.Engine
}

// newServices opens the settings/event stores and wires the gateway client
// and OTA engine. Callers that only need the settings store (status) can
// ignore gateway/engine.
func newServices() (*services, error) {
	store, err := settings.Open(cfg.SettingsDBPath())
	if err != nil {
		return nil, err
	}

	outbox, err := events.NewOutbox(cfg.EventsDBPath())
	if err != nil {
		return nil, err
	}

	gw := telemetry.NewGatewayClient(cfg.GatewayBaseURL(), http.DefaultClient, cfg.DeviceTag(), cfg.PollingInterval())
	sender := events.NewSender(outbox, gw)

	boot := bootloader.New(cfg.BootStatePath(), cfg.PrimaryBankPath(), cfg.SecondaryBankPath(), nil)
	engine := ota.NewEngine(store, boot, sender, gw, http.DefaultClient, cfg.SecondaryBankPath())

	return &services{store: store, gateway: gw, engine: engine}, nil
}

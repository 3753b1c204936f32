// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package telemetry is the seam between the OTA engine and the device
// gateway backend (spec.md §6): it carries inbound OTARequest commands in
// and outbound OTAEvents out. Wire-format and transport concerns live here
// so pkg/ota never depends on either.
package telemetry

import (
	"github.com/foundriesio/edgeagent/internal/events"
)

// Request mirrors spec.md §6's inbound OTARequest.
type Request struct {
	UUID      string `json:"uuid"`
	Operation string `json:"operation"`
	URL       string `json:"url,omitempty"`
}

const (
	OperationUpdate = "Update"
	OperationCancel = "Cancel"
)

// Client is the minimal device-gateway collaborator the OTA engine needs:
// a stream of inbound commands, and a sink for outbound events. It
// satisfies events.Publisher so the same client backs the event Sender.
type Client interface {
	events.Publisher
	Commands() <-chan Request
}

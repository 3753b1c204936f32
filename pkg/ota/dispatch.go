// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package ota

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/foundriesio/edgeagent/internal/events"
	"github.com/foundriesio/edgeagent/internal/otaerr"
	"github.com/foundriesio/edgeagent/pkg/telemetry"
)

// Dispatch validates and routes one inbound command (spec.md §4.7).
// Callbacks from the telemetry task MUST return quickly, so Dispatch only
// ever blocks long enough to admit or reject; the actual update runs on a
// spawned worker goroutine. The returned error reports admission-time
// outcomes only (e.g. ErrUpdateAlreadyInProgress) for callers that invoke
// Dispatch directly (the CLI) rather than through the telemetry channel;
// the command-loop caller (Run) ignores it, since the OTAEvent already
// carries the same information to the device gateway.
func (e *Engine) Dispatch(ctx context.Context, req telemetry.Request) error {
	if req.UUID == "" || req.Operation == "" {
		e.emit(ctx, req.UUID, otaerr.KindInvalidRequest, "missing uuid or operation")
		return otaerr.New(otaerr.KindInvalidRequest, "ota: dispatch", nil)
	}
	if _, err := uuid.Parse(req.UUID); err != nil || len(req.UUID) != reqIDLength {
		e.emit(ctx, req.UUID, otaerr.KindInvalidRequest, "malformed uuid")
		return otaerr.New(otaerr.KindInvalidRequest, "ota: dispatch", err)
	}

	switch req.Operation {
	case telemetry.OperationUpdate:
		if req.URL == "" {
			e.emit(ctx, req.UUID, otaerr.KindInvalidRequest, "missing url")
			return otaerr.New(otaerr.KindInvalidRequest, "ota: dispatch", nil)
		}
		return e.handleUpdate(ctx, req.UUID, req.URL)
	case telemetry.OperationCancel:
		return e.handleCancel(ctx, req.UUID)
	default:
		slog.Warn("ota: unrecognized operation", "operation", req.Operation)
		e.emit(ctx, req.UUID, otaerr.KindInvalidRequest, "unrecognized operation")
		return otaerr.New(otaerr.KindInvalidRequest, "ota: dispatch", nil)
	}
}

func (e *Engine) emit(ctx context.Context, requestUUID string, kind otaerr.Kind, message string) {
	status := events.StatusFailure
	if kind == otaerr.KindOK {
		status = events.StatusSuccess
	}
	e.sender.Emit(ctx, events.New(requestUUID, status, 0, kind, message))
}

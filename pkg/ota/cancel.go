// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package ota

import (
	"context"
	"log/slog"

	"github.com/foundriesio/edgeagent/internal/otaerr"
	"github.com/foundriesio/edgeagent/internal/settings"
)

// handleCancel implements spec.md §4.6's Cancel handling. The uuid carried
// by the cancel command is not required to match the in-flight request —
// the engine cancels whatever worker is currently running (an inherited
// behavior, see SPEC_FULL.md §9). On a successful cancel that uuid is only
// logged next to the running request id; the Failure/Canceled event the
// worker then emits carries the running request's uuid and does not
// mention the cancel uuid.
func (e *Engine) handleCancel(ctx context.Context, requestUUID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.runBit.Load() {
		e.emit(ctx, requestUUID, otaerr.KindInvalidRequest, "no update in progress")
		return ErrNoUpdateInProgress
	}

	rec, err := settings.LoadOTARecord(e.store)
	if err != nil || rec.ReqID == "" {
		slog.Error("ota: cancel found no in-flight request id", "error", err)
		e.emit(ctx, requestUUID, otaerr.KindInternal, "no request id recorded for the running update")
		if err != nil {
			return ErrSettingsUnavailable
		}
		return ErrNoUpdateInProgress
	}

	slog.Info("ota: cancel requested", "runningReqID", rec.ReqID, "cancelUUID", requestUUID)
	e.runBit.Store(false)
	return nil
}

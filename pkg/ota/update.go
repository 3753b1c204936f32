// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package ota

import (
	"context"
	"log/slog"

	"github.com/foundriesio/edgeagent/internal/otaerr"
)

// handleUpdate implements spec.md §4.6's Update handling steps 1-2:
// admission against the run-bit, then a spawned worker for the rest.
func (e *Engine) handleUpdate(ctx context.Context, requestUUID, url string) error {
	e.mu.Lock()
	if !e.runBit.CompareAndSwap(false, true) {
		e.mu.Unlock()
		slog.Info("ota: update rejected, already in progress", "requestUUID", requestUUID)
		e.emit(ctx, requestUUID, otaerr.KindAlreadyInProgress, "an update is already in progress")
		return ErrUpdateAlreadyInProgress
	}
	e.mu.Unlock()

	go e.runWorker(ctx, requestUUID, url)
	return nil
}

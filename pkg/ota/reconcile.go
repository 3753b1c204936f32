// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package ota

import (
	"context"
	"log/slog"

	"github.com/foundriesio/edgeagent/internal/bootloader"
	"github.com/foundriesio/edgeagent/internal/events"
	"github.com/foundriesio/edgeagent/internal/otaerr"
	"github.com/foundriesio/edgeagent/internal/settings"
)

const reqIDLength = 36

// Reconcile runs once at agent start, before the command dispatch loop
// (spec.md §4.6 boot-time reconciliation). It resolves whatever the
// previous run left behind in the persisted record against the
// bootloader's verdict for the boot that just happened.
func (e *Engine) Reconcile(ctx context.Context) {
	rec, err := settings.LoadOTARecord(e.store)
	if err != nil {
		slog.Error("ota: reconcile failed to load settings", "error", err)
		return
	}
	if len(rec.ReqID) != reqIDLength {
		return
	}

	if rec.State != settings.StateReboot {
		e.reconcileFail(ctx, rec.ReqID, otaerr.KindInternal, "agent restarted mid-update without reaching reboot")
		return
	}

	swap, err := e.boot.CurrentSwapType()
	if err != nil {
		e.reconcileFail(ctx, rec.ReqID, otaerr.KindInternal, "failed to read bootloader swap verdict")
		return
	}
	if swap == bootloader.SwapRevert {
		e.reconcileFail(ctx, rec.ReqID, otaerr.KindSystemRollback, "bootloader reverted the unconfirmed image")
		return
	}
	if swap != bootloader.SwapNone {
		e.reconcileFail(ctx, rec.ReqID, otaerr.KindSwapFail, "bootloader did not complete the expected swap")
		return
	}

	confirmed, err := e.boot.IsImageConfirmed()
	if err != nil {
		e.reconcileFail(ctx, rec.ReqID, otaerr.KindInternal, "failed to read bootloader confirmation state")
		return
	}
	if confirmed {
		e.reconcileFail(ctx, rec.ReqID, otaerr.KindSwapFail, "running a confirmed image, not the freshly swapped one")
		return
	}

	if err := e.boot.ConfirmCurrentImage(); err != nil {
		e.reconcileFail(ctx, rec.ReqID, otaerr.KindInternal, "failed to confirm new image")
		return
	}

	e.sender.Emit(ctx, events.New(rec.ReqID, events.StatusSuccess, 0, otaerr.KindOK, ""))
	if err := settings.ClearRecord(e.store); err != nil {
		slog.Error("ota: reconcile failed to clear record after success", "error", err)
	}
}

func (e *Engine) reconcileFail(ctx context.Context, requestUUID string, kind otaerr.Kind, message string) {
	e.sender.Emit(ctx, events.New(requestUUID, events.StatusFailure, 0, kind, message))
	if err := settings.ClearRecord(e.store); err != nil {
		slog.Error("ota: reconcile failed to clear record after failure", "error", err)
	}
}

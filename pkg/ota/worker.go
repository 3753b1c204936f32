// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package ota

import (
	"context"
	"log/slog"
	"time"

	"github.com/foundriesio/edgeagent/internal/downloader"
	"github.com/foundriesio/edgeagent/internal/events"
	"github.com/foundriesio/edgeagent/internal/flash"
	"github.com/foundriesio/edgeagent/internal/otaerr"
	"github.com/foundriesio/edgeagent/internal/settings"
)

// runWorker is the OTA worker (spec.md §4.6 step 3): acknowledge, persist
// pending-update state, run the attempt loop, then either deploy-and-reboot
// or report failure and self-destruct. It owns the run-bit for its entire
// lifetime and clears it on every exit path except a successful deploy,
// where the process is about to reboot anyway.
func (e *Engine) runWorker(ctx context.Context, requestUUID, url string) {
	e.setState(WorkerAcknowledging)
	e.sender.Emit(ctx, events.New(requestUUID, events.StatusAcknowledged, 0, otaerr.KindOK, ""))

	if _, err := settings.LoadOTARecord(e.store); err != nil {
		slog.Error("ota: failed to initialize settings", "error", err)
		e.fail(ctx, requestUUID, otaerr.KindSettingsInit, "failed to initialize settings store")
		return
	}
	if err := settings.SaveState(e.store, settings.StateInProgress); err != nil {
		e.fail(ctx, requestUUID, otaerr.KindOf(err), "failed to persist in-progress state")
		return
	}
	if err := settings.SaveReqID(e.store, requestUUID); err != nil {
		e.fail(ctx, requestUUID, otaerr.KindOf(err), "failed to persist request id")
		return
	}

	kind := e.attemptLoop(ctx, requestUUID, url)

	switch kind {
	case otaerr.KindOK:
		e.deployAndReboot(ctx, requestUUID)
	default:
		e.fail(ctx, requestUUID, kind, "update attempt loop exhausted or aborted")
	}
}

// attemptLoop runs up to MaxOTARetry download attempts (spec.md §4.6 step
// 5), returning KindOK on success, KindCanceled if the run-bit was cleared
// mid-flight, or the last attempt's Kind if retries are exhausted.
func (e *Engine) attemptLoop(ctx context.Context, requestUUID, url string) otaerr.Kind {
	var lastKind otaerr.Kind = otaerr.KindNetwork

	for attempt := 1; attempt <= e.maxRetry; attempt++ {
		if !e.runBit.Load() {
			return otaerr.KindCanceled
		}

		e.setState(WorkerDownloading)
		e.sender.Emit(ctx, events.New(requestUUID, events.StatusDownloading, 0, otaerr.KindOK, ""))

		if err := e.boot.EraseSecondary(); err != nil {
			lastKind = otaerr.KindOf(err)
			e.retryBackoff(ctx, requestUUID, attempt, lastKind)
			continue
		}

		writer := flash.NewWriter(e.secondaryBankPath())
		if err := writer.Init(); err != nil {
			lastKind = otaerr.KindOf(err)
			e.retryBackoff(ctx, requestUUID, attempt, lastKind)
			continue
		}

		kind, imageSize := e.downloadOnce(ctx, requestUUID, url, writer)
		if kind != otaerr.KindOK {
			writer.Close()
		}
		switch kind {
		case otaerr.KindOK:
			e.lastImageSize = imageSize
			return otaerr.KindOK
		case otaerr.KindCanceled:
			return otaerr.KindCanceled
		default:
			lastKind = kind
			e.retryBackoff(ctx, requestUUID, attempt, kind)
		}
	}
	return lastKind
}

func (e *Engine) retryBackoff(ctx context.Context, requestUUID string, attempt int, kind otaerr.Kind) {
	e.sender.Emit(ctx, events.New(requestUUID, events.StatusError, 0, kind, "attempt failed, retrying"))
	delay := time.Duration(attempt) * e.attemptDelay
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// downloadOnce streams url into writer, reporting Downloading progress in
// 10% steps, and returns the Kind classifying the outcome plus the
// declared image size on success.
func (e *Engine) downloadOnce(ctx context.Context, requestUUID, url string, writer *flash.Writer) (otaerr.Kind, int64) {
	var downloadSize, imageSize int64
	// attemptLoop has already emitted Downloading(0) for this attempt.
	lastPercent := int32(0)

	e.dlCurrent.Store(0)
	e.dlTotal.Store(0)

	err := downloader.Download(ctx, e.http, url, nil, e.dlTimeout, func(c downloader.Chunk) error {
		if !e.runBit.Load() {
			return downloader.ErrAbort
		}
		if werr := writer.Write(c.Data, c.LastChunk); werr != nil {
			return werr
		}
		downloadSize += int64(len(c.Data))
		imageSize = c.TotalSize
		e.dlCurrent.Store(downloadSize)
		e.dlTotal.Store(imageSize)

		if imageSize > 0 {
			percent := int32(100*downloadSize/imageSize/ProgressStep) * ProgressStep
			if percent != lastPercent {
				lastPercent = percent
				e.sender.Emit(ctx, events.New(requestUUID, events.StatusDownloading, percent, otaerr.KindOK, ""))
			}
		}
		return nil
	})

	if err == downloader.ErrAbort || !e.runBit.Load() {
		return otaerr.KindCanceled, 0
	}
	if err != nil {
		return otaerr.KindOf(err), 0
	}
	if writer.BytesWritten() == 0 || writer.BytesWritten() != imageSize {
		return otaerr.KindNetwork, 0
	}
	return otaerr.KindOK, imageSize
}

// deployAndReboot implements spec.md §4.6 step 6: the persisted state is
// flushed to REBOOT before the bootloader is mutated, so a crash between
// the two still leaves enough breadcrumb for boot-time reconciliation to
// notice an interrupted update.
func (e *Engine) deployAndReboot(ctx context.Context, requestUUID string) {
	e.setState(WorkerDeploying)
	e.sender.Emit(ctx, events.New(requestUUID, events.StatusDeploying, 0, otaerr.KindOK, ""))

	if err := settings.SaveState(e.store, settings.StateReboot); err != nil {
		e.fail(ctx, requestUUID, otaerr.KindOf(err), "failed to persist reboot-pending state")
		return
	}
	if _, err := e.boot.ReadSecondaryHeader(e.lastImageSize); err != nil {
		e.fail(ctx, requestUUID, otaerr.KindInternal, "secondary bank header sanity check failed")
		return
	}
	if err := e.boot.RequestUpgradeTest(e.lastImageSize); err != nil {
		e.fail(ctx, requestUUID, otaerr.KindInternal, "failed to request bootloader test swap")
		return
	}

	e.sender.Emit(ctx, events.New(requestUUID, events.StatusDeployed, 0, otaerr.KindOK, ""))
	e.setState(WorkerRebooting)
	e.sender.Emit(ctx, events.New(requestUUID, events.StatusRebooting, 0, otaerr.KindOK, ""))

	select {
	case <-time.After(e.rebootDelay):
	case <-ctx.Done():
	}
	e.setState(WorkerTerminal)
	e.boot.RebootWarm()
}

// fail implements spec.md §4.6 step 7: emit Failure, unwind the persisted
// record, clear the run-bit, and let the worker goroutine return.
func (e *Engine) fail(ctx context.Context, requestUUID string, kind otaerr.Kind, message string) {
	e.sender.Emit(ctx, events.New(requestUUID, events.StatusFailure, 0, kind, message))
	if err := settings.ClearRecord(e.store); err != nil {
		slog.Error("ota: failed to clear ota record after failure", "error", err)
	}
	e.setState(WorkerTerminal)
	e.runBit.Store(false)
}

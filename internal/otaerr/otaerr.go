// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package otaerr defines the OTA error taxonomy shared by the settings store,
// flash writer, downloader, bootloader adapter and state machine, and the
// mapping from that taxonomy to the external status codes reported in OTA
// events.
package otaerr

import (
	"errors"
	"fmt"
)

// Kind is the internal OTA error taxonomy. It is deliberately coarser than
// the Go error chain that produced it: the state machine only ever switches
// on Kind, never on the wrapped cause.
type Kind int

const (
	// KindOK is not a real error; it exists so zero-value Kind never aliases
	// a real failure.
	KindOK Kind = iota
	KindInvalidRequest
	KindAlreadyInProgress
	KindNetwork
	KindHTTPRequest
	KindSettingsInit
	KindSettingsSave
	KindSettingsLoad
	KindSettingsDelete
	KindEraseSecondSlot
	KindInitFlash
	KindWriteFlash
	KindInvalidImage
	KindSwapFail
	KindSystemRollback
	KindCanceled
	KindOutOfMemory
	KindThreadCreate
	KindInternal
)

// Error is a Kind paired with the Go error that caused it. It implements the
// standard error interface and supports errors.Is/errors.As against both the
// wrapped cause and sentinel *Error values built from the same Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, allowing
// callers to write errors.Is(err, otaerr.New(otaerr.KindCanceled, "", nil)).
func (e *Error) Is(target error) bool {
	var o *Error
	if errors.As(target, &o) {
		return o.Kind == e.Kind
	}
	return false
}

// New builds an *Error. Err may be nil.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for any
// error that did not originate in this package.
func KindOf(err error) Kind {
	var o *Error
	if errors.As(err, &o) {
		return o.Kind
	}
	if err == nil {
		return KindOK
	}
	return KindInternal
}

// StatusCode maps a Kind to the external status code vocabulary used in
// OTAEvent.statusCode (spec.md §6/§7). The mapping is intentionally lossy:
// several internal kinds collapse onto the same external code, mirroring the
// original device agent's edgehog_result_t -> statusCode switch.
func StatusCode(kind Kind) string {
	switch kind {
	case KindOK:
		return ""
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindAlreadyInProgress:
		return "UpdateAlreadyInProgress"
	case KindNetwork, KindHTTPRequest:
		return "ErrorNetwork"
	case KindSettingsInit, KindSettingsSave, KindSettingsLoad, KindSettingsDelete:
		return "IOError"
	case KindInvalidImage:
		return "InvalidBaseImage"
	case KindSystemRollback:
		return "SystemRollback"
	case KindCanceled:
		return "Canceled"
	default:
		// KindSwapFail, KindEraseSecondSlot, KindInitFlash, KindWriteFlash,
		// KindOutOfMemory, KindThreadCreate, KindInternal all surface as
		// InternalError to the backend; some of them additionally drive a
		// retry before they ever reach this mapping (see pkg/ota).
		return "InternalError"
	}
}

// Retryable reports whether an attempt that failed with this Kind should be
// retried by the attempt loop (spec.md §4.6 step 5) rather than surfaced
// immediately as a terminal Failure.
func Retryable(kind Kind) bool {
	switch kind {
	case KindOK, KindCanceled:
		return false
	default:
		return true
	}
}

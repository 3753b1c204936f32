// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package ota

import "github.com/pkg/errors"

// Sentinel terminal conditions a caller (the CLI, the daemon loop) may
// need to branch on directly, the same role the teacher's
// state.ErrCheckNoUpdate/state.ErrNewerVersionIsAvailable play for its
// own daemon loop (spec.md §7).
var (
	ErrUpdateAlreadyInProgress = errors.New("update already in progress")
	ErrNoUpdateInProgress      = errors.New("no update in progress")
	ErrSettingsUnavailable     = errors.New("settings store unavailable")
)

// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package status builds the CLI-facing status reports (spec.md §5) from
// the persisted OTA record and the in-memory worker state.
package status

import (
	"github.com/foundriesio/edgeagent/internal/settings"
	"github.com/foundriesio/edgeagent/pkg/ota"
)

type (
	// CurrentStatus reports the persisted, crash-safe OTA phase — what a
	// freshly started agent would reconcile against at boot.
	CurrentStatus struct {
		State   string `json:"state"`
		ReqID   string `json:"req_id,omitempty"`
		Running bool   `json:"running"`
	}

	// UpdateStatus reports the live, in-memory worker state of whatever the
	// worker goroutine is doing right now, if anything. GetUpdateStatus does
	// not fill Progress; it is always zero.
	UpdateStatus struct {
		ReqID    string           `json:"req_id,omitempty"`
		Worker   ota.WorkerState  `json:"worker_state"`
		Progress int              `json:"progress"`
	}
)

// GetCurrentStatus reads the persisted record straight from the settings
// store, independent of whether an Engine is currently running.
func GetCurrentStatus(store *settings.Store) (*CurrentStatus, error) {
	rec, err := settings.LoadOTARecord(store)
	if err != nil {
		return nil, err
	}
	return &CurrentStatus{
		State:   stateName(rec.State),
		ReqID:   rec.ReqID,
		Running: rec.State != settings.StateIdle,
	}, nil
}

// GetUpdateStatus reports the running Engine's live worker state alongside
// the persisted request id, for a CLI invoked against a live daemon.
func GetUpdateStatus(store *settings.Store, engine *ota.Engine) (*UpdateStatus, error) {
	rec, err := settings.LoadOTARecord(store)
	if err != nil {
		return nil, err
	}
	s := &UpdateStatus{ReqID: rec.ReqID}
	if engine != nil {
		s.Worker = engine.CurrentState()
	} else {
		s.Worker = ota.WorkerIdle
	}
	return s, nil
}

func stateName(state byte) string {
	switch state {
	case settings.StateIdle:
		return "IDLE"
	case settings.StateInProgress:
		return "IN_PROGRESS"
	case settings.StateReboot:
		return "REBOOT"
	default:
		return "UNKNOWN"
	}
}

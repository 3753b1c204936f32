// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package settings

import "fmt"

// OTA state byte values, persisted under the "ota" namespace, key "state"
// (spec.md §3). The numeric values match the original device agent's
// ota_state_t so a settings file written by either implementation reads the
// same way.
const (
	StateIdle       byte = 1
	StateInProgress byte = 2
	StateReboot     byte = 3
)

const (
	otaNamespace = "ota"
	stateKey     = "state"
	reqIDKey     = "req_id"
)

// OTARecord is the persisted OTA record: the current phase and, if any, the
// UUID of the request that put it there.
type OTARecord struct {
	State byte
	ReqID string
}

// LoadOTARecord reads the persisted OTA record. An empty namespace (no
// state and no req_id key) is reported as State: StateIdle, ReqID: ""
// rather than an error; a missing req_id alone leaves ReqID empty and the
// State as stored.
func LoadOTARecord(store *Store) (OTARecord, error) {
	rec := OTARecord{State: StateIdle}
	err := store.Load(otaNamespace, func(key string, value []byte) error {
		switch key {
		case stateKey:
			if len(value) == 1 {
				rec.State = value[0]
			}
		case reqIDKey:
			rec.ReqID = string(value)
		}
		return nil
	})
	if err != nil {
		return OTARecord{}, err
	}
	return rec, nil
}

// SaveState persists just the state byte, leaving req_id untouched.
func SaveState(store *Store, state byte) error {
	return store.Save(otaNamespace, stateKey, []byte{state})
}

// SaveReqID persists the in-flight request UUID.
func SaveReqID(store *Store, uuid string) error {
	return store.Save(otaNamespace, reqIDKey, []byte(uuid))
}

// ClearRecord deletes req_id and persists state = IDLE, the "clear record"
// operation referenced throughout spec.md §4.6.
func ClearRecord(store *Store) error {
	if err := store.Delete(otaNamespace, reqIDKey); err != nil {
		return err
	}
	return SaveState(store, StateIdle)
}

func (r OTARecord) String() string {
	name := map[byte]string{StateIdle: "IDLE", StateInProgress: "IN_PROGRESS", StateReboot: "REBOOT"}[r.State]
	if name == "" {
		name = fmt.Sprintf("UNKNOWN(%d)", r.State)
	}
	if r.ReqID == "" {
		return name
	}
	return fmt.Sprintf("%s req_id=%s", name, r.ReqID)
}

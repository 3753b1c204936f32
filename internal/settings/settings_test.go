// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	return store
}

func TestStore_SaveLoadDelete(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save("ota", "state", []byte{StateInProgress}))
	require.NoError(t, store.Save("ota", "req_id", []byte("11111111-1111-1111-1111-111111111111")))

	got := map[string][]byte{}
	require.NoError(t, store.Load("ota", func(key string, value []byte) error {
		cp := make([]byte, len(value))
		copy(cp, value)
		got[key] = cp
		return nil
	}))
	require.Equal(t, []byte{StateInProgress}, got["state"])
	require.Equal(t, []byte("11111111-1111-1111-1111-111111111111"), got["req_id"])

	require.NoError(t, store.Delete("ota", "req_id"))
	got = map[string][]byte{}
	require.NoError(t, store.Load("ota", func(key string, value []byte) error {
		got[key] = value
		return nil
	}))
	_, present := got["req_id"]
	require.False(t, present)
}

func TestStore_DeleteMissingKeyIsNotError(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Delete("ota", "req_id"))
}

func TestStore_SaveOverwritesAtomically(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save("ota", "state", []byte{StateIdle}))
	require.NoError(t, store.Save("ota", "state", []byte{StateInProgress}))

	var got byte
	require.NoError(t, store.Load("ota", func(key string, value []byte) error {
		if key == "state" {
			got = value[0]
		}
		return nil
	}))
	require.Equal(t, StateInProgress, got)
}

func TestStore_LoadVisitorStopsEarly(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save("ota", "a", []byte("1")))
	require.NoError(t, store.Save("ota", "b", []byte("2")))

	calls := 0
	sentinel := errStop{}
	err := store.Load("ota", func(key string, value []byte) error {
		calls++
		return sentinel
	})
	require.Equal(t, sentinel, err)
	require.Equal(t, 1, calls)
}

type errStop struct{}

func (errStop) Error() string { return "stop" }

func TestOTARecord_RoundTrip(t *testing.T) {
	store := openTestStore(t)

	rec, err := LoadOTARecord(store)
	require.NoError(t, err)
	require.Equal(t, StateIdle, rec.State)
	require.Empty(t, rec.ReqID)

	require.NoError(t, SaveState(store, StateInProgress))
	require.NoError(t, SaveReqID(store, "22222222-2222-2222-2222-222222222222"))

	rec, err = LoadOTARecord(store)
	require.NoError(t, err)
	require.Equal(t, StateInProgress, rec.State)
	require.Equal(t, "22222222-2222-2222-2222-222222222222", rec.ReqID)

	require.NoError(t, ClearRecord(store))
	rec, err = LoadOTARecord(store)
	require.NoError(t, err)
	require.Equal(t, StateIdle, rec.State)
	require.Empty(t, rec.ReqID)
}

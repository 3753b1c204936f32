// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package settings implements the crash-safe key/value store the OTA state
// machine uses to persist its state across reboots (spec.md §4.1). It is
// backed by a single SQLite table so that the "old value or new value, never
// torn" guarantee comes from SQLite's own transaction log instead of a
// hand-rolled journaled file format, the same tradeoff the teacher agent
// makes for its report_events and installed_versions tables.
package settings

import (
	"database/sql"
	"fmt"

	"github.com/foundriesio/edgeagent/internal/otaerr"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Visitor is invoked once per key found under a namespace during Load. A
// non-nil return stops iteration early, mirroring the "non-zero return
// stops further subtree searching" contract of the original settings_load.
type Visitor func(key string, value []byte) error

// Store is a namespaced key/value store on top of a single SQLite file.
type Store struct {
	dbPath string
}

// Open prepares the store's schema. It is safe to call from multiple
// processes pointed at the same file; CREATE TABLE IF NOT EXISTS makes Open
// idempotent.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, otaerr.New(otaerr.KindSettingsInit, "settings: open", err)
	}
	defer closeDB(db)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		namespace TEXT NOT NULL,
		key       TEXT NOT NULL,
		value     BLOB NOT NULL,
		PRIMARY KEY (namespace, key)
	);`); err != nil {
		return nil, otaerr.New(otaerr.KindSettingsInit, "settings: create table", err)
	}

	return &Store{dbPath: dbPath}, nil
}

// Save writes value under (namespace, key). The write is atomic at the key
// level: a crash mid-write leaves either the previous value or the new one,
// never a torn mix of both.
func (s *Store) Save(namespace, key string, value []byte) error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return otaerr.New(otaerr.KindSettingsSave, "settings: open", err)
	}
	defer closeDB(db)

	_, err = db.Exec(
		`INSERT INTO settings (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value;`,
		namespace, key, value,
	)
	if err != nil {
		return otaerr.New(otaerr.KindSettingsSave, fmt.Sprintf("settings: save %s/%s", namespace, key), err)
	}
	return nil
}

// Load enumerates every key stored under namespace and invokes visitor for
// each. A non-nil error from visitor stops iteration and is returned as-is.
func (s *Store) Load(namespace string, visitor Visitor) error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return otaerr.New(otaerr.KindSettingsLoad, "settings: open", err)
	}
	defer closeDB(db)

	rows, err := db.Query(`SELECT key, value FROM settings WHERE namespace = ?;`, namespace)
	if err != nil {
		return otaerr.New(otaerr.KindSettingsLoad, fmt.Sprintf("settings: load %s", namespace), err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Err(cerr).Msg("settings: failed to close rows")
		}
	}()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return otaerr.New(otaerr.KindSettingsLoad, "settings: scan", err)
		}
		if verr := visitor(key, value); verr != nil {
			return verr
		}
	}
	if err := rows.Err(); err != nil {
		return otaerr.New(otaerr.KindSettingsLoad, "settings: iterate", err)
	}
	return nil
}

// Delete removes (namespace, key). Deleting a missing key is not an error.
func (s *Store) Delete(namespace, key string) error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return otaerr.New(otaerr.KindSettingsDelete, "settings: open", err)
	}
	defer closeDB(db)

	if _, err := db.Exec(`DELETE FROM settings WHERE namespace = ? AND key = ?;`, namespace, key); err != nil {
		return otaerr.New(otaerr.KindSettingsDelete, fmt.Sprintf("settings: delete %s/%s", namespace, key), err)
	}
	return nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Err(err).Msg("settings: failed to close database")
	}
}

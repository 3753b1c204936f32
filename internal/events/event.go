// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package events defines the OTAEvent wire schema the state machine reports
// and a crash-safe SQLite outbox for delivering it, mirroring the teacher's
// internal/events package adapted from its compose-app DgUpdateEvent shape
// to spec.md §6's OTAEvent shape.
package events

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/foundriesio/edgeagent/internal/otaerr"
)

// Status is the outer OTAEvent.status vocabulary (spec.md §6).
type Status string

const (
	StatusAcknowledged Status = "Acknowledged"
	StatusDownloading  Status = "Downloading"
	StatusDeploying    Status = "Deploying"
	StatusDeployed     Status = "Deployed"
	StatusRebooting    Status = "Rebooting"
	StatusSuccess      Status = "Success"
	StatusFailure      Status = "Failure"
	StatusError        Status = "Error"
)

// OTAEvent is the aggregated object emitted on the OTAEvent channel
// (spec.md §6).
type OTAEvent struct {
	RequestUUID    string `json:"requestUUID"`
	Status         Status `json:"status"`
	StatusProgress int32  `json:"statusProgress"`
	StatusCode     string `json:"statusCode"`
	Message        string `json:"message"`
	Timestamp      int64  `json:"timestamp"`
}

// New builds an OTAEvent stamped with the current time.
func New(requestUUID string, status Status, progress int32, kind otaerr.Kind, message string) OTAEvent {
	return OTAEvent{
		RequestUUID:    requestUUID,
		Status:         status,
		StatusProgress: progress,
		StatusCode:     otaerr.StatusCode(kind),
		Message:        message,
		Timestamp:      time.Now().Unix(),
	}
}

// Outbox persists OTAEvents that could not be delivered immediately so they
// survive a restart and are retried on the next successful gateway
// connection, grounded on the teacher's report_events table and
// FlushEvents retry loop.
type Outbox struct {
	dbPath string
}

// NewOutbox returns an Outbox backed by dbPath, creating the backing table
// if it does not already exist.
func NewOutbox(dbPath string) (*Outbox, error) {
	o := &Outbox{dbPath: dbPath}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, otaerr.New(otaerr.KindSettingsInit, "events: open outbox", err)
	}
	defer closeLogged(db)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS report_events (id INTEGER PRIMARY KEY, json_string TEXT NOT NULL)`); err != nil {
		return nil, otaerr.New(otaerr.KindSettingsInit, "events: create outbox table", err)
	}
	return o, nil
}

func closeLogged(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Err(err).Msg("events: failed to close outbox database")
	}
}

// Enqueue appends ev to the outbox.
func (o *Outbox) Enqueue(ev OTAEvent) error {
	db, err := sql.Open("sqlite", o.dbPath)
	if err != nil {
		return otaerr.New(otaerr.KindSettingsSave, "events: open outbox", err)
	}
	defer closeLogged(db)

	payload, err := json.Marshal(ev)
	if err != nil {
		return otaerr.New(otaerr.KindSettingsSave, "events: marshal event", err)
	}
	if _, err := db.Exec(`INSERT INTO report_events (json_string) VALUES (?)`, string(payload)); err != nil {
		return otaerr.New(otaerr.KindSettingsSave, "events: insert event", err)
	}
	return nil
}

// Pending returns every queued event along with the highest row id among
// them, so a caller can acknowledge exactly the batch it drained even if
// more events are enqueued concurrently.
func (o *Outbox) Pending() ([]OTAEvent, int64, error) {
	db, err := sql.Open("sqlite", o.dbPath)
	if err != nil {
		return nil, 0, otaerr.New(otaerr.KindSettingsLoad, "events: open outbox", err)
	}
	defer closeLogged(db)

	rows, err := db.Query(`SELECT id, json_string FROM report_events ORDER BY id ASC`)
	if err != nil {
		return nil, 0, otaerr.New(otaerr.KindSettingsLoad, "events: query outbox", err)
	}
	defer rows.Close()

	var maxID int64
	var out []OTAEvent
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, 0, otaerr.New(otaerr.KindSettingsLoad, "events: scan outbox row", err)
		}
		var ev OTAEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, 0, otaerr.New(otaerr.KindSettingsLoad, "events: decode outbox row", err)
		}
		out = append(out, ev)
		if id > maxID {
			maxID = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, otaerr.New(otaerr.KindSettingsLoad, "events: iterate outbox rows", err)
	}
	return out, maxID, nil
}

// Ack deletes every queued event with id <= throughID, acknowledging a
// batch previously returned by Pending.
func (o *Outbox) Ack(throughID int64) error {
	db, err := sql.Open("sqlite", o.dbPath)
	if err != nil {
		return otaerr.New(otaerr.KindSettingsDelete, "events: open outbox", err)
	}
	defer closeLogged(db)

	if _, err := db.Exec(`DELETE FROM report_events WHERE id <= ?`, throughID); err != nil {
		return otaerr.New(otaerr.KindSettingsDelete, "events: delete acked events", err)
	}
	return nil
}

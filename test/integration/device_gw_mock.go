// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package integration exercises the agent end to end: a real
// *http.Client talking to an httptest device gateway double, a real
// Engine, real SQLite-backed settings/event stores, and a simulated
// bootloader/flash bank pair, grounded on the teacher's
// test/integration/device_gw_mock.go mock transport.
package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/foundriesio/edgeagent/internal/events"
	"github.com/foundriesio/edgeagent/pkg/telemetry"
)

// deviceGatewayMock stands in for the real device gateway backend: it
// serves GET /commands from a queue the test fills, and records every
// POST /events batch, mirroring the teacher's mockHttpOperations split
// between HttpGet (fetch-some-resource) and HttpDo (POST events).
type deviceGatewayMock struct {
	mu       sync.Mutex
	commands []telemetry.Request
	events   []events.OTAEvent
	srv      *httptest.Server
}

func newDeviceGatewayMock() *deviceGatewayMock {
	m := &deviceGatewayMock{}
	mux := http.NewServeMux()
	mux.HandleFunc("/commands", m.handleCommands)
	mux.HandleFunc("/events", m.handleEvents)
	m.srv = httptest.NewServer(mux)
	return m
}

func (m *deviceGatewayMock) URL() string {
	return m.srv.URL
}

func (m *deviceGatewayMock) Close() {
	m.srv.Close()
}

// pushCommand enqueues a command the next poll will return.
func (m *deviceGatewayMock) pushCommand(req telemetry.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, req)
}

func (m *deviceGatewayMock) handleCommands(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commands) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	pending := m.commands
	m.commands = nil
	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(pending)
}

func (m *deviceGatewayMock) handleEvents(w http.ResponseWriter, r *http.Request) {
	var batch []events.OTAEvent
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.events = append(m.events, batch...)
	m.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// publishedEvents returns a snapshot of every event batch received so far.
func (m *deviceGatewayMock) publishedEvents() []events.OTAEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.OTAEvent, len(m.events))
	copy(out, m.events)
	return out
}

// firmwareServer serves payload as the OTA image download target.
func firmwareServer(payload []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
}

// slowFirmwareServer streams payload a chunk at a time with a short pause
// between writes, giving a test time to observe the download in flight
// before it completes.
func slowFirmwareServer(payload []byte, chunkSize int, pause time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		for offset := 0; offset < len(payload); offset += chunkSize {
			end := offset + chunkSize
			if end > len(payload) {
				end = len(payload)
			}
			w.Write(payload[offset:end])
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(pause)
		}
	}))
}

// flakyFirmwareServer fails the first failCount requests, then serves payload.
func flakyFirmwareServer(payload []byte, failCount int) *httptest.Server {
	var count int
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		attempt := count
		mu.Unlock()
		if attempt <= failCount {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(payload)
	}))
}

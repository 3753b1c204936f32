// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package ota is the central OTA state machine (spec.md §4.6): it owns the
// run-bit, admits or rejects Update/Cancel commands, drives the
// acknowledge/download/deploy/reboot worker, and performs boot-time
// reconciliation. It supersedes the teacher's multi-stage compose-app
// UpdateRunner (pkg/state) with a single linear attempt loop over a
// monolithic firmware image; the per-concern file layout (state types,
// runner, start/stop-equivalent lifecycle) is kept, the compose-app
// semantics are not.
package ota

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foundriesio/edgeagent/internal/bootloader"
	"github.com/foundriesio/edgeagent/internal/events"
	"github.com/foundriesio/edgeagent/internal/settings"
	"github.com/foundriesio/edgeagent/pkg/telemetry"
)

// Tunables mirroring the original device agent's constants (spec.md §4.6,
// §6 HTTP contract).
const (
	MaxOTARetry       = 5
	AttemptRetryDelay = 2 * time.Second
	DownloadTimeout   = 60 * time.Second
	RebootDelay       = 5 * time.Second
	ProgressStep      = 10
)

// runToken is the sole cancellation/admission primitive: a single bit
// shared between the dispatcher (admit/reject Update, accept Cancel) and
// the worker (poll for cancellation). Wrapping atomic.Bool rather than
// embedding it bare gives the bit a name at call sites (spec.md §9).
type runToken struct {
	atomic.Bool
}

// WorkerState is the in-memory per-worker state (spec.md §4.6).
type WorkerState string

const (
	WorkerIdle          WorkerState = "IDLE"
	WorkerAcknowledging WorkerState = "ACKNOWLEDGING"
	WorkerDownloading   WorkerState = "DOWNLOADING"
	WorkerDeploying     WorkerState = "DEPLOYING"
	WorkerRebooting     WorkerState = "REBOOTING"
	WorkerTerminal      WorkerState = "TERMINAL"
)

// Engine is the OTA state machine. One Engine exists per agent process; it
// is safe for concurrent use by the command dispatcher and the boot-time
// reconciler (spec.md §5 shared-resource policy — by construction these
// never run concurrently).
type Engine struct {
	store         *settings.Store
	boot          *bootloader.Adapter
	sender        *events.Sender
	telemetry     telemetry.Client
	http          *http.Client
	secondaryBank string

	maxRetry     int
	attemptDelay time.Duration
	dlTimeout    time.Duration
	rebootDelay  time.Duration

	runBit        runToken
	mu            sync.Mutex   // serializes admission/cancel against each other
	state         atomic.Value // holds WorkerState
	lastImageSize int64        // set by attemptLoop on success, read by deployAndReboot

	dlCurrent atomic.Int64 // bytes downloaded so far in the current attempt
	dlTotal   atomic.Int64 // declared size of the image being downloaded
}

// Option tunes an Engine's retry/timeout knobs away from their spec.md
// §4.6 defaults, mirroring the teacher's functional-options style
// (pkg/api's WithMaxAttempts/WithEventSender/etc.).
type Option func(*Engine)

// WithMaxRetry overrides MaxOTARetry.
func WithMaxRetry(n int) Option { return func(e *Engine) { e.maxRetry = n } }

// WithAttemptDelay overrides the per-attempt linear backoff unit.
func WithAttemptDelay(d time.Duration) Option { return func(e *Engine) { e.attemptDelay = d } }

// WithDownloadTimeout overrides the per-attempt download deadline.
func WithDownloadTimeout(d time.Duration) Option { return func(e *Engine) { e.dlTimeout = d } }

// WithRebootDelay overrides the pause between Deployed and the warm reboot.
func WithRebootDelay(d time.Duration) Option { return func(e *Engine) { e.rebootDelay = d } }

// NewEngine wires an Engine from its collaborators. httpClient defaults to
// http.DefaultClient when nil. secondaryBankPath is the flash.Writer target
// for the inactive image bank.
func NewEngine(store *settings.Store, boot *bootloader.Adapter, sender *events.Sender, tc telemetry.Client, httpClient *http.Client, secondaryBankPath string, opts ...Option) *Engine {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	e := &Engine{
		store:         store,
		boot:          boot,
		sender:        sender,
		telemetry:     tc,
		http:          httpClient,
		secondaryBank: secondaryBankPath,
		maxRetry:      MaxOTARetry,
		attemptDelay:  AttemptRetryDelay,
		dlTimeout:     DownloadTimeout,
		rebootDelay:   RebootDelay,
	}
	e.state.Store(WorkerIdle)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) secondaryBankPath() string {
	return e.secondaryBank
}

// CurrentState reports the in-memory worker state, for the status CLI.
func (e *Engine) CurrentState() WorkerState {
	return e.state.Load().(WorkerState)
}

// DownloadProgress reports bytes downloaded so far and the declared total
// size of the image currently (or most recently) being downloaded, for a
// foreground CLI to render a progress bar against.
func (e *Engine) DownloadProgress() (current, total int64) {
	return e.dlCurrent.Load(), e.dlTotal.Load()
}

func (e *Engine) setState(s WorkerState) {
	e.state.Store(s)
}

// Run drives the command dispatch loop, reading inbound requests from the
// telemetry client until ctx is canceled (spec.md §5 main supervisor /
// telemetry task split — here collapsed onto one goroutine per command
// since dispatch itself is a quick hand-off to the worker).
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-e.telemetry.Commands():
			if !ok {
				return
			}
			e.Dispatch(ctx, req)
		}
	}
}

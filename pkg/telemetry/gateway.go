// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/foundriesio/edgeagent/internal/events"
	"github.com/foundriesio/edgeagent/internal/otaerr"
)

const userAgent = "edgeagent/1.0.0"

// GatewayClient is the production Client, polling the device gateway's
// commands resource on a fixed cadence and POSTing events as they're
// published. It is grounded on pkg/client/gateway_client.go's
// header-carrying *http.Client shape, built directly on net/http rather
// than the teacher's fioconfig/transport helper (see DESIGN.md).
type GatewayClient struct {
	baseURL     *url.URL
	httpClient  *http.Client
	headers     map[string]string
	pollEvery   time.Duration
	commandsOut chan Request
	stop        chan struct{}
}

// NewGatewayClient builds a GatewayClient rooted at baseURL. pollEvery
// governs the commands long-poll cadence (spec.md §5's ~100ms task).
func NewGatewayClient(baseURL *url.URL, httpClient *http.Client, deviceTag string, pollEvery time.Duration) *GatewayClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GatewayClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		headers: map[string]string{
			"user-agent": userAgent,
			"x-ats-tags": deviceTag,
		},
		pollEvery:   pollEvery,
		commandsOut: make(chan Request, 8),
		stop:        make(chan struct{}),
	}
}

// Run drives the polling loop until ctx is canceled or Close is called.
// It is meant to be run in its own goroutine (spec.md §5 telemetry task).
func (c *GatewayClient) Run(ctx context.Context) {
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			reqs, err := c.pollCommands(ctx)
			if err != nil {
				log.Err(err).Msg("telemetry: poll commands failed")
				continue
			}
			for _, r := range reqs {
				select {
				case c.commandsOut <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Close stops Run. The commands channel is left open.
func (c *GatewayClient) Close() {
	close(c.stop)
}

// Commands implements Client.
func (c *GatewayClient) Commands() <-chan Request {
	return c.commandsOut
}

func (c *GatewayClient) pollCommands(ctx context.Context) ([]Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.JoinPath("commands").String(), nil)
	if err != nil {
		return nil, otaerr.New(otaerr.KindNetwork, "telemetry: build commands request", err)
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, otaerr.New(otaerr.KindNetwork, "telemetry: poll commands", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, otaerr.New(otaerr.KindHTTPRequest, fmt.Sprintf("telemetry: poll commands HTTP %d", resp.StatusCode), nil)
	}

	var reqs []Request
	if err := json.NewDecoder(resp.Body).Decode(&reqs); err != nil {
		return nil, otaerr.New(otaerr.KindNetwork, "telemetry: decode commands", err)
	}
	return reqs, nil
}

// PublishEvents implements events.Publisher by POSTing the batch to the
// gateway's events resource.
func (c *GatewayClient) PublishEvents(ctx context.Context, evs []events.OTAEvent) error {
	body, err := json.Marshal(evs)
	if err != nil {
		return otaerr.New(otaerr.KindNetwork, "telemetry: marshal events", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath("events").String(), bytes.NewReader(body))
	if err != nil {
		return otaerr.New(otaerr.KindNetwork, "telemetry: build events request", err)
	}
	req.Header.Set("content-type", "application/json")
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return otaerr.New(otaerr.KindNetwork, "telemetry: publish events", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return otaerr.New(otaerr.KindHTTPRequest, fmt.Sprintf("telemetry: publish events HTTP %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *GatewayClient) applyHeaders(req *http.Request) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package downloader implements the chunked HTTP downloader the OTA engine
// uses to stream a firmware image into the flash writer (spec.md §4.3). It
// sits directly on net/http, the same base layer pkg/client/gateway_client.go
// sits on; the teacher's fioconfig/transport helper returns a whole decoded
// response body and has no hook for aborting mid-read, which this package
// needs for cooperative cancellation (spec.md §5).
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/foundriesio/edgeagent/internal/otaerr"
)

// Chunk is delivered to the sink for every read from the response body.
type Chunk struct {
	ChunkStart int64
	ChunkSize  int
	TotalSize  int64
	LastChunk  bool
	Data       []byte
}

// Sink receives chunks as they arrive. Returning a non-nil error aborts the
// download; the downloader stops reading and returns that error unchanged.
// ErrAbort is the sentinel sinks return to request a clean, non-error
// unwind (spec.md §4.3 "accept abort from inside the sink").
type Sink func(Chunk) error

// ErrAbort, when returned from a Sink, stops the download cleanly without
// being treated as a failure by the caller; the state machine uses this to
// implement run-bit cancellation without fabricating a network error.
var ErrAbort = fmt.Errorf("downloader: aborted by sink")

const chunkBufferSize = 32 * 1024

// Download issues a single GET to url, following redirects up to net/http's
// default limit, and invokes sink for each chunk read from the body. The
// whole operation (connect, TLS handshake, read-to-completion) is bounded
// by timeout.
func Download(ctx context.Context, client *http.Client, url string, headers map[string]string, timeout time.Duration, sink Sink) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return otaerr.New(otaerr.KindNetwork, "downloader: build request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return otaerr.New(otaerr.KindNetwork, "downloader: do request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return otaerr.New(otaerr.KindHTTPRequest, fmt.Sprintf("downloader: HTTP %d", resp.StatusCode), nil)
	}

	totalSize := resp.ContentLength

	buf := make([]byte, chunkBufferSize)
	var offset int64
	// lastDelivered records whether the last Read that returned data also
	// carried LastChunk == true, so Download doesn't emit a spurious empty
	// trailing chunk when the final Read already reported EOF together with
	// data.
	var lastDelivered bool
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			last := rerr == io.EOF
			chunk := Chunk{
				ChunkStart: offset,
				ChunkSize:  n,
				TotalSize:  totalSize,
				LastChunk:  last,
				Data:       buf[:n],
			}
			if serr := sink(chunk); serr != nil {
				if serr == ErrAbort {
					return ErrAbort
				}
				return serr
			}
			offset += int64(n)
			lastDelivered = last
		}
		if rerr == io.EOF {
			if !lastDelivered {
				if serr := sink(Chunk{ChunkStart: offset, ChunkSize: 0, TotalSize: totalSize, LastChunk: true}); serr != nil {
					if serr == ErrAbort {
						return ErrAbort
					}
					return serr
				}
			}
			return nil
		}
		if rerr != nil {
			return otaerr.New(otaerr.KindNetwork, "downloader: read body", rerr)
		}
	}
}

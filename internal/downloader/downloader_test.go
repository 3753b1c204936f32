// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/edgeagent/internal/otaerr"
)

func TestDownload_HappyPath(t *testing.T) {
	payload := make([]byte, 256*1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "bearer-token", r.Header.Get("Authorization"))
		w.Write(payload)
	}))
	defer srv.Close()

	var got []byte
	var sawFinal bool
	err := Download(context.Background(), srv.Client(), srv.URL, map[string]string{"Authorization": "bearer-token"}, 5*time.Second, func(c Chunk) error {
		got = append(got, c.Data...)
		if c.LastChunk {
			sawFinal = true
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.True(t, sawFinal)
}

func TestDownload_SinkAbortStopsCleanly(t *testing.T) {
	payload := make([]byte, 256*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	calls := 0
	err := Download(context.Background(), srv.Client(), srv.URL, nil, 5*time.Second, func(c Chunk) error {
		calls++
		return ErrAbort
	})
	require.ErrorIs(t, err, ErrAbort)
	require.Equal(t, 1, calls)
}

func TestDownload_HTTPErrorStatusMapsToHTTPRequestKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := Download(context.Background(), srv.Client(), srv.URL, nil, 5*time.Second, func(c Chunk) error {
		return nil
	})
	require.Error(t, err)
	require.Equal(t, otaerr.KindHTTPRequest, otaerr.KindOf(err))
}

func TestDownload_UnreachableHostMapsToNetworkKind(t *testing.T) {
	err := Download(context.Background(), http.DefaultClient, "http://127.0.0.1:1", nil, 2*time.Second, func(c Chunk) error {
		return nil
	})
	require.Error(t, err)
	require.Equal(t, otaerr.KindNetwork, otaerr.KindOf(err))
}

func TestDownload_ReportsTotalSizeFromContentLength(t *testing.T) {
	payload := make([]byte, 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	var total int64
	err := Download(context.Background(), srv.Client(), srv.URL, nil, 5*time.Second, func(c Chunk) error {
		total = c.TotalSize
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, len(payload), total)
}

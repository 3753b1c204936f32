// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package flash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriter_HappyPath(t *testing.T) {
	bankPath := filepath.Join(t.TempDir(), "bank1.img")
	w := NewWriter(bankPath)

	require.NoError(t, w.EraseSecondary())
	require.NoError(t, w.Init())

	payload := []byte("firmware-image-bytes")
	require.NoError(t, w.Write(payload[:10], false))
	require.NoError(t, w.Write(payload[10:], true))

	require.EqualValues(t, len(payload), w.BytesWritten())

	got, err := os.ReadFile(bankPath)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriter_WriteBeforeInitFails(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "bank1.img"))
	err := w.Write([]byte("x"), false)
	require.Error(t, err)
}

func TestWriter_CloseWithoutFinalWriteReleasesHandle(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "bank1.img"))
	require.NoError(t, w.EraseSecondary())
	require.NoError(t, w.Init())
	require.NoError(t, w.Write([]byte("partial"), false))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestReadSecondaryHeader_SizeMismatch(t *testing.T) {
	bankPath := filepath.Join(t.TempDir(), "bank1.img")
	require.NoError(t, os.WriteFile(bankPath, []byte("short"), 0o600))

	_, err := ReadSecondaryHeader(bankPath, 1024)
	require.Error(t, err)
}

func TestReadSecondaryHeader_OK(t *testing.T) {
	bankPath := filepath.Join(t.TempDir(), "bank1.img")
	payload := make([]byte, 128)
	require.NoError(t, os.WriteFile(bankPath, payload, 0o600))

	hdr, err := ReadSecondaryHeader(bankPath, 128)
	require.NoError(t, err)
	require.EqualValues(t, 128, hdr.Size)
}

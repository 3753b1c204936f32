// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package flash streams a downloaded firmware image into the secondary
// image bank (spec.md §4.2). A real build targets a raw flash partition
// device node; this implementation targets a plain file standing in for
// the bank, which is the only substitution a hosted (non-embedded) Go build
// can make for a concern that is hardware by definition. See DESIGN.md for
// why no corpus library fits this role.
package flash

import (
	"fmt"
	"os"

	"github.com/foundriesio/edgeagent/internal/otaerr"
)

// Writer streams sequential writes into a secondary bank file. Out-of-order
// writes are not supported, matching the original flash_img_buffered_write
// contract: callers must write the whole image front-to-back.
type Writer struct {
	path    string
	file    *os.File
	written int64
}

// NewWriter returns a Writer bound to the given bank path. It does not
// touch the filesystem until EraseSecondary/Init are called.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// EraseSecondary synchronously erases the inactive bank, truncating any
// previous image contents.
func (w *Writer) EraseSecondary() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return otaerr.New(otaerr.KindEraseSecondSlot, "flash: erase secondary", err)
	}
	if err := f.Close(); err != nil {
		return otaerr.New(otaerr.KindEraseSecondSlot, "flash: erase secondary", err)
	}
	return nil
}

// Init prepares a streaming writer at the bank start. It must be called
// after EraseSecondary and before the first Write.
func (w *Writer) Init() error {
	f, err := os.OpenFile(w.path, os.O_WRONLY, 0o600)
	if err != nil {
		return otaerr.New(otaerr.KindInitFlash, "flash: init", err)
	}
	w.file = f
	w.written = 0
	return nil
}

// Write appends buf to the bank. When last is true, the tail is flushed and
// the underlying file descriptor is closed; subsequent Writes without a new
// Init will fail.
func (w *Writer) Write(buf []byte, last bool) error {
	if w.file == nil {
		return otaerr.New(otaerr.KindWriteFlash, "flash: write before init", nil)
	}
	n, err := w.file.Write(buf)
	if err != nil {
		return otaerr.New(otaerr.KindWriteFlash, "flash: write", err)
	}
	w.written += int64(n)
	if last {
		if err := w.file.Sync(); err != nil {
			return otaerr.New(otaerr.KindWriteFlash, "flash: flush tail", err)
		}
		if err := w.file.Close(); err != nil {
			return otaerr.New(otaerr.KindWriteFlash, "flash: close", err)
		}
		w.file = nil
	}
	return nil
}

// BytesWritten returns the cumulative byte count successfully written since
// the last Init.
func (w *Writer) BytesWritten() int64 {
	return w.written
}

// Close releases the underlying file descriptor without flushing, for a
// caller unwinding an attempt that failed before reaching a final Write.
// It is a no-op if the writer was never initialized or was already closed
// by a final Write.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return otaerr.New(otaerr.KindWriteFlash, "flash: close", err)
	}
	return nil
}

// Header is what ReadSecondaryHeader reports about the secondary bank after
// a successful write, checked before request_upgrade_test is issued
// (spec.md §4.6 step 6). Size is the bank file's size; Magic is always
// imageMagic, since the bank's contents are not read.
type Header struct {
	Magic   [4]byte
	Size    int64
}

// imageMagic is the fixed Magic value ReadSecondaryHeader reports in this
// reference implementation; a real bootloader adapter reads its own
// vendor-specific header instead (spec.md §4.4 read_secondary_header).
var imageMagic = [4]byte{'E', 'O', 'T', 'A'}

// ReadSecondaryHeader is a plausibility check: it fails unless the bank
// file's size equals imageSize. It does not read the bank's contents and
// does not validate a cryptographic signature (spec.md Non-goals).
func ReadSecondaryHeader(path string, imageSize int64) (Header, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Header{}, otaerr.New(otaerr.KindInternal, "flash: stat secondary bank", err)
	}
	if info.Size() != imageSize {
		return Header{}, otaerr.New(otaerr.KindInvalidImage,
			fmt.Sprintf("flash: secondary bank size %d does not match declared image size %d", info.Size(), imageSize), nil)
	}
	return Header{Magic: imageMagic, Size: info.Size()}, nil
}

// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package bootloader is a thin, synchronous abstraction over the bootloader
// operations the OTA engine invokes (spec.md §4.4): querying the swap
// verdict, requesting a test upgrade, confirming the running image, and
// reading the secondary bank header. Like internal/flash, the production
// shape of this package targets a vendor bootloader (e.g. MCUboot); this
// reference implementation simulates the verdict with a small state file so
// the reboot/reconcile cycle in pkg/ota can be exercised and tested on a
// hosted Go runtime without real hardware.
package bootloader

import (
	"encoding/json"
	"os"

	"github.com/foundriesio/edgeagent/internal/flash"
	"github.com/foundriesio/edgeagent/internal/otaerr"
)

// SwapType is the bootloader's verdict at boot, mirroring BOOT_SWAP_TYPE_*.
type SwapType string

const (
	SwapNone   SwapType = "none"
	SwapTest   SwapType = "test"
	SwapPerm   SwapType = "perm"
	SwapRevert SwapType = "revert"
	SwapFail   SwapType = "fail"
)

// Rebooter performs the actual warm reboot. Production wires this to the
// platform's restart mechanism; tests wire it to a no-op recorder so
// pkg/ota's worker can be exercised without killing the test process
// (spec.md §9.1 decision).
type Rebooter interface {
	RebootWarm()
}

// ProcessExitRebooter calls os.Exit(0), the closest a hosted process gets to
// "warm reboot": supervisors (systemd, an init script) are expected to
// restart it.
type ProcessExitRebooter struct{}

func (ProcessExitRebooter) RebootWarm() { os.Exit(0) }

type state struct {
	Swap      SwapType `json:"swap"`
	Confirmed bool     `json:"confirmed"`
	ImageSize int64    `json:"image_size"`
}

// Adapter implements the bootloader operations against a JSON state file
// standing in for the real bootloader's shared state region.
type Adapter struct {
	statePath     string
	secondaryBank string
	primaryBank   string
	rebooter      Rebooter
}

// New returns an Adapter. statePath holds the simulated swap verdict;
// secondaryBank/primaryBank are the flash bank files from package flash.
func New(statePath, primaryBank, secondaryBank string, rebooter Rebooter) *Adapter {
	if rebooter == nil {
		rebooter = ProcessExitRebooter{}
	}
	return &Adapter{statePath: statePath, primaryBank: primaryBank, secondaryBank: secondaryBank, rebooter: rebooter}
}

func (a *Adapter) load() (state, error) {
	b, err := os.ReadFile(a.statePath)
	if os.IsNotExist(err) {
		return state{Swap: SwapNone, Confirmed: true}, nil
	}
	if err != nil {
		return state{}, otaerr.New(otaerr.KindInternal, "bootloader: read state", err)
	}
	var s state
	if err := json.Unmarshal(b, &s); err != nil {
		return state{}, otaerr.New(otaerr.KindInternal, "bootloader: decode state", err)
	}
	return s, nil
}

func (a *Adapter) save(s state) error {
	b, err := json.Marshal(s)
	if err != nil {
		return otaerr.New(otaerr.KindInternal, "bootloader: encode state", err)
	}
	if err := os.WriteFile(a.statePath, b, 0o600); err != nil {
		return otaerr.New(otaerr.KindInternal, "bootloader: write state", err)
	}
	return nil
}

// CurrentSwapType returns the bootloader's verdict for the current boot.
func (a *Adapter) CurrentSwapType() (SwapType, error) {
	s, err := a.load()
	if err != nil {
		return "", err
	}
	return s.Swap, nil
}

// IsImageConfirmed reports whether the running image has already called
// ConfirmCurrentImage.
func (a *Adapter) IsImageConfirmed() (bool, error) {
	s, err := a.load()
	if err != nil {
		return false, err
	}
	return s.Confirmed, nil
}

// ConfirmCurrentImage makes the current swap permanent, preventing a
// revert on the next reboot.
func (a *Adapter) ConfirmCurrentImage() error {
	s, err := a.load()
	if err != nil {
		return err
	}
	s.Confirmed = true
	s.Swap = SwapNone
	return a.save(s)
}

// ReadSecondaryHeader sanity-checks the secondary bank against the declared
// image size (spec.md §4.6 step 6, §4.2).
func (a *Adapter) ReadSecondaryHeader(imageSize int64) (flash.Header, error) {
	return flash.ReadSecondaryHeader(a.secondaryBank, imageSize)
}

// EraseSecondary erases the inactive bank before a new download begins.
func (a *Adapter) EraseSecondary() error {
	return flash.NewWriter(a.secondaryBank).EraseSecondary()
}

// RequestUpgradeTest marks the secondary bank image pending for a one-shot
// test boot: the bootloader will boot it once, and revert to the primary
// bank if ConfirmCurrentImage is not called before the next reboot.
func (a *Adapter) RequestUpgradeTest(imageSize int64) error {
	s, err := a.load()
	if err != nil {
		return err
	}
	s.Swap = SwapTest
	s.Confirmed = false
	s.ImageSize = imageSize
	return a.save(s)
}

// RebootWarm asks the platform to restart into the pending swap.
func (a *Adapter) RebootWarm() {
	a.rebooter.RebootWarm()
}

// SimulateBoot advances the simulated bootloader verdict the way a real
// MCUboot-class bootloader would at the boot immediately following
// RequestUpgradeTest: if the image was never confirmed, it reverts;
// otherwise the swap becomes permanent and CurrentSwapType reads NONE with
// Confirmed == false until the agent calls ConfirmCurrentImage (spec.md
// §4.4's "at the boot immediately after a successful OTA" semantics). This
// is test/bench tooling only — real hardware performs this transition in
// the bootloader itself, invisibly to the agent.
func (a *Adapter) SimulateBoot(confirmedByNewImage bool) error {
	s, err := a.load()
	if err != nil {
		return err
	}
	if s.Swap != SwapTest {
		return nil
	}
	if confirmedByNewImage {
		s.Swap = SwapNone
		s.Confirmed = false
	} else {
		s.Swap = SwapRevert
		s.Confirmed = true
	}
	return a.save(s)
}

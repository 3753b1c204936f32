// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foundriesio/edgeagent/internal/settings"
	"github.com/foundriesio/edgeagent/pkg/status"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted OTA state and in-flight request id",
		Run: func(cmd *cobra.Command, args []string) {
			doStatus()
		},
		Args: cobra.NoArgs,
	}
	rootCmd.AddCommand(cmd)
}

func doStatus() {
	store, err := settings.Open(cfg.SettingsDBPath())
	DieNotNil(err, "Failed to open settings store")

	current, err := status.GetCurrentStatus(store)
	DieNotNil(err, "Failed to get status information")

	out, err := json.MarshalIndent(current, "", "  ")
	DieNotNil(err, "Failed to format status")
	fmt.Println(string(out))
}

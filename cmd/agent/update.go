// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/foundriesio/edgeagent/pkg/ota"
	"github.com/foundriesio/edgeagent/pkg/telemetry"
)

const updatePollInterval = 500 * time.Millisecond

func init() {
	cmd := &cobra.Command{
		Use:   "update <uuid> <url>",
		Short: "Issue an Update command directly to the state machine, bypassing the telemetry channel, and wait for it to finish",
		Run: func(cmd *cobra.Command, args []string) {
			doUpdate(cmd.Context(), args[0], args[1])
		},
		Args: cobra.ExactArgs(2),
	}
	rootCmd.AddCommand(cmd)
}

func doUpdate(ctx context.Context, reqUUID, url string) {
	svc, err := newServices()
	DieNotNil(err, "Failed to initialize services")

	DieNotNil(svc.engine.Dispatch(ctx, telemetry.Request{UUID: reqUUID, Operation: telemetry.OperationUpdate, URL: url}),
		"Failed to start update")

	fmt.Println("Requested update", reqUUID)

	var bar *progressbar.ProgressBar
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(updatePollInterval):
		}

		state := svc.engine.CurrentState()
		if state == ota.WorkerDownloading {
			current, total := svc.engine.DownloadProgress()
			if bar == nil && total > 0 {
				bar = progressbar.DefaultBytes(total, "downloading")
			}
			if bar != nil {
				_ = bar.Set64(current)
			}
			continue
		}

		fmt.Println("state:", state)
		if state == ota.WorkerTerminal {
			return
		}
	}
}

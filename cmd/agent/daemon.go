// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start the OTA agent daemon",
		Run: func(cmd *cobra.Command, args []string) {
			doDaemon(cmd.Context())
		},
		Args: cobra.NoArgs,
	}
	rootCmd.AddCommand(cmd)
}

func doDaemon(ctx context.Context) {
	svc, err := newServices()
	DieNotNil(err, "Failed to initialize services")

	svc.engine.Reconcile(ctx)

	gatewayDone := make(chan struct{})
	go func() {
		svc.gateway.Run(ctx)
		close(gatewayDone)
	}()
	defer svc.gateway.Close()

	slog.Info("Agent started, waiting for commands from the device gateway")
	svc.engine.Run(ctx)

	<-gatewayDone
}

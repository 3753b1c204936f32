// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/foundriesio/edgeagent/pkg/telemetry"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the current update operation",
		Run: func(cmd *cobra.Command, args []string) {
			doCancel(cmd)
		},
		Args: cobra.NoArgs,
	}
	rootCmd.AddCommand(cmd)
}

func doCancel(cmd *cobra.Command) {
	svc, err := newServices()
	DieNotNil(err, "Failed to initialize services")

	DieNotNil(svc.engine.Dispatch(cmd.Context(), telemetry.Request{UUID: uuid.New().String(), Operation: telemetry.OperationCancel}),
		"Failed to cancel update")
	log.Info().Msg("Cancel operation complete")
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/updown_controller/internal/app"
	"github.com/relabs-tech/updown_controller/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller with its MQTT bridge and web server",
	Long: `Run the controller on the configured output until interrupted.

Setpoints arrive on TOPIC_SETPOINT or through POST /api/setpoint. State is
published retained on TOPIC_STATE and served on /api/status and /ws.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := config.InitGlobal(configPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.RunDevice(ctx, config.Get())
}

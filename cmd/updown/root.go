// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "updown",
	Short: "Sensorless up/down position controller",
	Long: `updown drives a two-line actuator (blind, shutter, awning, window opener)
to a requested position without any position sensor.

The position is estimated from run times alone. Moves to the fully open or
fully closed position overdrive into the end stop to recalibrate, and the
device recalibrates by itself once the estimate gets too uncertain.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "updown_config.txt", "Configuration file")
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/updown_controller/internal/app"
	"github.com/relabs-tech/updown_controller/internal/config"
	"github.com/relabs-tech/updown_controller/internal/positioner"
)

var (
	simFrom        float64
	simUncertainty float64
	simDefaults    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [SETPOINT[@OFFSET]]...",
	Short: "Replay setpoints against a virtual clock",
	Long: `Run the controller against a virtual clock and print every tick.
No hardware is touched.

Each argument is a setpoint (a ratio, or "none") with an optional offset
from the start, e.g.:

  updown simulate --from 0.5 0.8 none@5s 0@10s

Without --from the simulation starts uncalibrated. Timings come from the
configuration file, or from the built-in defaults with --defaults.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().Float64Var(&simFrom, "from", -1, "Initial position in [0, 1], uncalibrated when omitted")
	simulateCmd.Flags().Float64Var(&simUncertainty, "uncertainty", 0, "Uncertainty of the initial position")
	simulateCmd.Flags().BoolVar(&simDefaults, "defaults", false, "Use built-in timings instead of the configuration file")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	schedule, err := app.ParseSchedule(args)
	if err != nil {
		return err
	}

	cfg := positioner.DefaultConfiguration()
	if !simDefaults {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config (use --defaults to skip it): %w", err)
		}
		cfg = loaded.Positioner()
	}

	initial, err := startPosition(cmd.Flags().Changed("from"), cmd.Flags().Changed("uncertainty"), simFrom, simUncertainty)
	if err != nil {
		return err
	}

	state, err := app.Simulate(cmd.OutOrStdout(), cfg, initial, schedule)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "settled: %v\n", state)
	return nil
}

// startPosition builds the initial position from the --from and
// --uncertainty flags, nil when the simulation starts uncalibrated.
func startPosition(hasFrom, hasUncertainty bool, from, uncertainty float64) (*positioner.Position, error) {
	if !hasFrom {
		if hasUncertainty {
			return nil, errors.New("--uncertainty requires --from")
		}
		return nil, nil
	}
	return &positioner.Position{
		Position:    positioner.Ratio(from),
		Uncertainty: positioner.Ratio(uncertainty),
	}, nil
}

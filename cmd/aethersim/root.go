package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aethersim",
	Short: "Atmospheric anomaly coordination simulator",
	Long:  "aethersim runs a tick-driven simulator that scores atmospheric instability,\ncoordinates agent squads onto unstable cells, and syncs state between clusters.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetward/spark/internal/persistence/sqlite"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the server's sqlite database file directly",
}

var dbVerifyMode string

func init() {
	dbVerifyCmd.Flags().StringVar(&dbVerifyMode, "mode", "quick", "check depth: quick or full")
	dbCmd.AddCommand(dbVerifyCmd)
}

var dbVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run a SQLite integrity check against --db without locking out the live server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		problems, err := sqlite.VerifyIntegrity(dbPath, dbVerifyMode)
		if err != nil {
			return fmt.Errorf("integrity check failed to run: %w", err)
		}
		if len(problems) == 0 {
			fmt.Println("ok")
			return nil
		}
		for _, p := range problems {
			fmt.Println(p)
		}
		return fmt.Errorf("%d integrity problem(s) found", len(problems))
	},
}

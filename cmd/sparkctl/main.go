// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// sparkctl is the offline admin tool: token and session lifecycle operate
// directly on the sqlite database (the same store packages the HTTP surface
// uses), while conn/route operate against a running server's admin API
// since live connections exist only in that process's memory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "sparkctl",
		Short: "Administer a spark fleet control plane",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "spark.db", "path to the server's sqlite database")
	root.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "base URL of the server's HTTP API")
	root.PersistentFlags().StringVar(&adminToken, "token", "", "admin bearer token (env: SPARKCTL_TOKEN)")

	root.AddCommand(tokenCmd, sessionCmd, connCmd, routeCmd, dbCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	dbPath     string
	serverAddr string
	adminToken string
)

func resolveToken() string {
	if adminToken != "" {
		return adminToken
	}
	return os.Getenv("SPARKCTL_TOKEN")
}

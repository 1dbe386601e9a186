// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/sessionstore"
	"github.com/fleetward/spark/internal/storage"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Mint or revoke a delegated music session",
}

var sessionMintExpiresAt string

func init() {
	sessionMintCmd.Flags().StringVar(&sessionMintExpiresAt, "expires-at", "", "RFC3339 expiry override (default: spec TTL from now)")
	sessionCmd.AddCommand(sessionMintCmd, sessionRevokeCmd)
}

var sessionMintCmd = &cobra.Command{
	Use:   "mint HOSTNAME",
	Short: "Create (or refresh) a music session id for HOSTNAME",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hostname, err := domain.ParseHostname(args[0])
		if err != nil {
			return fmt.Errorf("invalid hostname: %w", err)
		}

		var expiresAt time.Time
		if sessionMintExpiresAt != "" {
			expiresAt, err = time.Parse(time.RFC3339, sessionMintExpiresAt)
			if err != nil {
				return fmt.Errorf("invalid --expires-at: %w", err)
			}
		}

		ctx := context.Background()
		db, err := storage.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := sessionstore.New(db).Create(ctx, hostname, expiresAt)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		fmt.Printf("music session created for %s: %s\n", hostname, id.String())
		return nil
	},
}

var sessionRevokeCmd = &cobra.Command{
	Use:   "revoke SESSION_ID",
	Short: "Delete a music session outright",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := domain.ParseMusicSessionID(args[0])
		if err != nil {
			return fmt.Errorf("invalid session id: %w", err)
		}

		ctx := context.Background()
		db, err := storage.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if _, err := sessionstore.New(db).Delete(ctx, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		fmt.Printf("music session %s revoked\n", id.String())
		return nil
	},
}

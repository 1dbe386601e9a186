// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/storage"
	"github.com/fleetward/spark/internal/tokenstore"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint or revoke a hostname's bearer token",
}

var tokenRole string

func init() {
	tokenMintCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleAdmin), "role to mint (admin|music)")
	tokenRevokeCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleAdmin), "role to revoke (admin|music)")
	tokenCmd.AddCommand(tokenMintCmd, tokenRevokeCmd)
}

var tokenMintCmd = &cobra.Command{
	Use:   "mint HOSTNAME",
	Short: "Insert a new token for HOSTNAME, replacing any existing one for the same role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hostname, err := domain.ParseHostname(args[0])
		if err != nil {
			return fmt.Errorf("invalid hostname: %w", err)
		}
		role := domain.Role(tokenRole)
		if !role.Valid() {
			return fmt.Errorf("invalid role %q", tokenRole)
		}

		ctx := context.Background()
		db, err := storage.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		token, err := tokenstore.New(db).Insert(ctx, hostname, role)
		if err != nil {
			return fmt.Errorf("insert token: %w", err)
		}
		fmt.Printf("token created for %s (%s): %s\n", hostname, role, token.String())
		return nil
	},
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke HOSTNAME",
	Short: "Delete HOSTNAME's token for the given role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hostname, err := domain.ParseHostname(args[0])
		if err != nil {
			return fmt.Errorf("invalid hostname: %w", err)
		}
		role := domain.Role(tokenRole)
		if !role.Valid() {
			return fmt.Errorf("invalid role %q", tokenRole)
		}

		ctx := context.Background()
		db, err := storage.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := tokenstore.New(db).Delete(ctx, hostname, role); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
		fmt.Printf("token revoked for %s (%s)\n", hostname, role)
		return nil
	},
}

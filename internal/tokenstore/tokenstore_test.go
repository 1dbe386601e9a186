// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tokenstore_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/fleetward/spark/internal/apperr"
	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/storage"
	"github.com/fleetward/spark/internal/tokenstore"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "spark.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore_AdminTokenSatisfiesMusicRequirement(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.New(openTestDB(t))
	hostname, _ := domain.ParseHostname("alpha")

	token, err := store.Insert(ctx, hostname, domain.RoleAdmin)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.Verify(ctx, token, domain.RoleMusic)
	if err != nil {
		t.Fatalf("Verify(music): %v", err)
	}
	if got.String() != "alpha" {
		t.Errorf("hostname = %q, want alpha", got.String())
	}

	if _, err := store.Verify(ctx, token, domain.RoleAdmin); err != nil {
		t.Fatalf("Verify(admin) for admin token: %v", err)
	}
}

func TestStore_MusicTokenDoesNotSatisfyAdminRequirement(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.New(openTestDB(t))
	hostname, _ := domain.ParseHostname("alpha")

	token, err := store.Insert(ctx, hostname, domain.RoleMusic)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, err := store.Verify(ctx, token, domain.RoleMusic); err != nil {
		t.Fatalf("Verify(music) for music token: %v", err)
	}

	_, err = store.Verify(ctx, token, domain.RoleAdmin)
	if apperr.HTTPStatus(err) != 401 {
		t.Fatalf("expected unauthorized verifying admin-required route with music token, got %v", err)
	}
}

func TestStore_UnknownTokenIsUnauthorized(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.New(openTestDB(t))

	_, err := store.Verify(ctx, domain.NewToken(), domain.RoleAdmin)
	if apperr.HTTPStatus(err) != 401 {
		t.Fatalf("expected unauthorized for unknown token, got %v", err)
	}
}

func TestStore_DeleteRemovesOnlyMatchingRole(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.New(openTestDB(t))
	hostname, _ := domain.ParseHostname("alpha")

	adminTok, _ := store.Insert(ctx, hostname, domain.RoleAdmin)
	musicTok, _ := store.Insert(ctx, hostname, domain.RoleMusic)

	if err := store.Delete(ctx, hostname, domain.RoleMusic); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := store.Verify(ctx, adminTok, domain.RoleAdmin); err != nil {
		t.Fatalf("admin token should still verify: %v", err)
	}
	if _, err := store.Verify(ctx, musicTok, domain.RoleMusic); apperr.HTTPStatus(err) != 401 {
		t.Fatalf("deleted music token should no longer verify, got %v", err)
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen_RunsMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "spark.db")

	db, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var tables []string
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		tables = append(tables, name)
	}

	want := map[string]bool{"api_tokens": false, "music_sessions": false}
	for _, tbl := range tables {
		if _, ok := want[tbl]; ok {
			want[tbl] = true
		}
	}
	for tbl, found := range want {
		if !found {
			t.Errorf("expected table %q to exist after migration, tables were: %v", tbl, tables)
		}
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "spark.db")

	db1, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db1.Close()

	db2, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	db2.Close()
}

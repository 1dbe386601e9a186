// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package statusstore_test

import (
	"context"
	"database/sql"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/statusstore"
	"github.com/fleetward/spark/internal/storage"
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

func TestStore_PutThenGetAll(t *testing.T) {
	ctx := context.Background()
	s := statusstore.New(openTestDB(t))
	hostname, _ := domain.ParseHostname("alpha")
	now := time.Unix(1000, 0).UTC()

	if err := s.Put(ctx, domain.MachineStatus{Hostname: hostname, ExternalIP: net.ParseIP("1.2.3.4")}, now); err != nil {
		t.Fatalf("Put: %v", err)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	row, ok := all[hostname]
	if !ok {
		t.Fatal("expected row to be present")
	}
	if !row.LastHeartbeat.Equal(now) {
		t.Fatalf("expected stamped heartbeat %v, got %v", now, row.LastHeartbeat)
	}
	if !row.ExternalIP.Equal(net.ParseIP("1.2.3.4")) {
		t.Fatalf("expected external ip to round-trip, got %v", row.ExternalIP)
	}
}

func TestStore_PutOverwritesPreviousRow(t *testing.T) {
	ctx := context.Background()
	s := statusstore.New(openTestDB(t))
	hostname, _ := domain.ParseHostname("alpha")

	if err := s.Put(ctx, domain.MachineStatus{Hostname: hostname, ExternalIP: net.ParseIP("1.1.1.1")}, time.Unix(1, 0).UTC()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, domain.MachineStatus{Hostname: hostname, ExternalIP: net.ParseIP("2.2.2.2")}, time.Unix(2, 0).UTC()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	row, ok, err := s.Get(ctx, hostname)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected row")
	}
	if !row.ExternalIP.Equal(net.ParseIP("2.2.2.2")) {
		t.Fatalf("expected latest write to win, got %v", row.ExternalIP)
	}
}

func TestStore_PutPersistsSSHAndIPConnections(t *testing.T) {
	ctx := context.Background()
	s := statusstore.New(openTestDB(t))
	hostname, _ := domain.ParseHostname("alpha")
	port := uint16(2222)

	status := domain.MachineStatus{
		Hostname:   hostname,
		ExternalIP: net.ParseIP("203.0.113.9"),
		SSH:        &port,
		IPConnections: []domain.IPConnection{
			{LocalIP: net.ParseIP("10.0.0.5"), GatewayIP: net.ParseIP("10.0.0.1")},
		},
	}
	if err := s.Put(ctx, status, time.Unix(3, 0).UTC()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	row, ok, err := s.Get(ctx, hostname)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected row")
	}
	if row.SSH == nil || *row.SSH != port {
		t.Fatalf("expected ssh port %d to round-trip, got %v", port, row.SSH)
	}
	if len(row.IPConnections) != 1 || !row.IPConnections[0].LocalIP.Equal(net.ParseIP("10.0.0.5")) {
		t.Fatalf("expected ip_connections to round-trip, got %+v", row.IPConnections)
	}
}

func TestStore_GetUnknownHostIsMissing(t *testing.T) {
	ctx := context.Background()
	s := statusstore.New(openTestDB(t))
	hostname, _ := domain.ParseHostname("ghost")
	if _, ok, err := s.Get(ctx, hostname); err != nil {
		t.Fatalf("Get: %v", err)
	} else if ok {
		t.Fatal("expected missing row")
	}
}

func TestMachineStatus_StaleAfterTTL(t *testing.T) {
	hostname, _ := domain.ParseHostname("alpha")
	status := domain.MachineStatus{Hostname: hostname, LastHeartbeat: time.Unix(0, 0)}
	if status.Stale(time.Unix(5, 0), time.Minute) {
		t.Fatal("expected fresh within ttl")
	}
	if !status.Stale(time.Unix(120, 0), time.Minute) {
		t.Fatal("expected stale after ttl")
	}
}

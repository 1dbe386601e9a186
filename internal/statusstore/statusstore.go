// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package statusstore persists the most recent heartbeat snapshot published
// by each agent against the machine_status table, mirroring tokenstore's and
// sessionstore's sqlite-backed shape.
package statusstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/fleetward/spark/internal/apperr"
	"github.com/fleetward/spark/internal/domain"
)

// Store is a sqlite-backed machine_status table.
type Store struct {
	db *sql.DB
}

// New wraps an already-migrated database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Put upserts the row for status.Hostname and stamps LastHeartbeat to now.
func (s *Store) Put(ctx context.Context, status domain.MachineStatus, now time.Time) error {
	status.LastHeartbeat = now

	ipConns, err := json.Marshal(status.IPConnections)
	if err != nil {
		return apperr.New(apperr.CodeSerialization, fmt.Errorf("statusstore: marshal ip_connections: %w", err))
	}

	var externalIP sql.NullString
	if status.ExternalIP != nil {
		externalIP = sql.NullString{String: status.ExternalIP.String(), Valid: true}
	}
	var ssh sql.NullInt64
	if status.SSH != nil {
		ssh = sql.NullInt64{Int64: int64(*status.SSH), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO machine_status (hostname, external_ip, ssh, last_heartbeat, ip_connections_json)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (hostname) DO UPDATE SET
		   external_ip = excluded.external_ip,
		   ssh = excluded.ssh,
		   last_heartbeat = excluded.last_heartbeat,
		   ip_connections_json = excluded.ip_connections_json`,
		status.Hostname.String(), externalIP, ssh, status.LastHeartbeat, string(ipConns),
	)
	if err != nil {
		return apperr.New(apperr.CodeDB, fmt.Errorf("statusstore: put: %w", err))
	}
	return nil
}

// GetAll returns a snapshot of every row, keyed by hostname. Callers decide
// what "stale" means for their own purposes via MachineStatus.Stale.
func (s *Store) GetAll(ctx context.Context) (map[domain.Hostname]domain.MachineStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hostname, external_ip, ssh, last_heartbeat, ip_connections_json FROM machine_status`)
	if err != nil {
		return nil, apperr.New(apperr.CodeDB, fmt.Errorf("statusstore: get all: %w", err))
	}
	defer rows.Close()

	out := make(map[domain.Hostname]domain.MachineStatus)
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out[status.Hostname] = status
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.CodeDB, fmt.Errorf("statusstore: get all: %w", err))
	}
	return out, nil
}

// Get returns a single row and whether it exists.
func (s *Store) Get(ctx context.Context, hostname domain.Hostname) (domain.MachineStatus, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hostname, external_ip, ssh, last_heartbeat, ip_connections_json FROM machine_status WHERE hostname = ?`,
		hostname.String(),
	)
	status, err := scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MachineStatus{}, false, nil
	}
	if err != nil {
		return domain.MachineStatus{}, false, err
	}
	return status, true, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanStatus(sc scanner) (domain.MachineStatus, error) {
	var (
		rawHostname   string
		externalIP    sql.NullString
		ssh           sql.NullInt64
		lastHeartbeat time.Time
		ipConnsJSON   string
	)
	if err := sc.Scan(&rawHostname, &externalIP, &ssh, &lastHeartbeat, &ipConnsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MachineStatus{}, err
		}
		return domain.MachineStatus{}, apperr.New(apperr.CodeDB, fmt.Errorf("statusstore: scan: %w", err))
	}

	hostname, err := domain.ParseHostname(rawHostname)
	if err != nil {
		return domain.MachineStatus{}, apperr.New(apperr.CodeDB, fmt.Errorf("statusstore: stored hostname %q: %w", rawHostname, err))
	}

	status := domain.MachineStatus{Hostname: hostname, LastHeartbeat: lastHeartbeat}
	if externalIP.Valid {
		status.ExternalIP = net.ParseIP(externalIP.String)
	}
	if ssh.Valid {
		port := uint16(ssh.Int64)
		status.SSH = &port
	}
	if err := json.Unmarshal([]byte(ipConnsJSON), &status.IPConnections); err != nil {
		return domain.MachineStatus{}, apperr.New(apperr.CodeDB, fmt.Errorf("statusstore: unmarshal ip_connections: %w", err))
	}
	return status, nil
}

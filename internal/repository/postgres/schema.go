package postgres

import (
	"context"
	"fmt"
)

// schema creates the tables the dispatch service needs. Every statement is
// idempotent so it can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ambulances (
		id             TEXT PRIMARY KEY,
		vehicle_number TEXT NOT NULL UNIQUE,
		driver_name    TEXT,
		phone          TEXT NOT NULL UNIQUE,
		device_token   TEXT,
		status         TEXT NOT NULL CHECK (status IN ('AVAILABLE', 'DISPATCHED', 'OFFLINE')),
		base_address   TEXT,
		last_latitude  DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS emergency_bookings (
		id                  TEXT PRIMARY KEY,
		emergency_type      TEXT NOT NULL CHECK (emergency_type IN ('cardiac', 'stroke', 'accident', 'breathing', 'other')),
		latitude            DOUBLE PRECISION NOT NULL,
		longitude           DOUBLE PRECISION NOT NULL,
		address             TEXT NOT NULL,
		vehicle_id          TEXT NOT NULL,
		driver_contact      TEXT NOT NULL,
		candidate_address   TEXT NOT NULL DEFAULT '',
		candidate_latitude  DOUBLE PRECISION NOT NULL DEFAULT 0,
		candidate_longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		device_token        TEXT NOT NULL DEFAULT '',
		status              TEXT NOT NULL CHECK (status IN ('PENDING', 'ACCEPTED', 'REJECTED', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED')),
		status_history      JSONB NOT NULL DEFAULT '[]'::jsonb,
		round               INTEGER NOT NULL DEFAULT 1,
		excluded_vehicles   JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_emergency_bookings_open_contact
		ON emergency_bookings (driver_contact, created_at DESC)
		WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS idx_emergency_bookings_created_at
		ON emergency_bookings (created_at DESC)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, q Querier) error {
	for _, stmt := range schema {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

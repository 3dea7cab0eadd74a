package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createCategoriesTable,
		createGatesTable,
		createZonesTable,
		createRushHoursTable,
		createVacationsTable,
		createSubscriptionsTable,
		createSubscriptionCarsTable,
		addSubscriptionCarsPosition,
		createTicketsTable,
		createAuditLogTable,
		createTicketsOpenIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    username VARCHAR(100) UNIQUE NOT NULL,
    password_hash VARCHAR(100) NOT NULL,
    role VARCHAR(20) NOT NULL CHECK (role IN ('admin', 'employee')),
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createCategoriesTable = `
CREATE TABLE IF NOT EXISTS categories (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    rate_normal NUMERIC(10,2) NOT NULL CHECK (rate_normal >= 0),
    rate_special NUMERIC(10,2) NOT NULL CHECK (rate_special >= 0)
);`

const createGatesTable = `
CREATE TABLE IF NOT EXISTS gates (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    location VARCHAR(200) NOT NULL DEFAULT ''
);`

const createZonesTable = `
CREATE TABLE IF NOT EXISTS zones (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    category_id VARCHAR(64) NOT NULL REFERENCES categories(id),
    gate_ids TEXT[] NOT NULL DEFAULT '{}',
    total_slots INTEGER NOT NULL CHECK (total_slots >= 0),
    reserved_slots INTEGER NOT NULL DEFAULT 0 CHECK (reserved_slots >= 0),
    occupied INTEGER NOT NULL DEFAULT 0 CHECK (occupied >= 0),
    free INTEGER NOT NULL DEFAULT 0 CHECK (free >= 0),
    reserved INTEGER NOT NULL DEFAULT 0 CHECK (reserved >= 0),
    available_for_visitors INTEGER NOT NULL DEFAULT 0 CHECK (available_for_visitors >= 0),
    available_for_subscribers INTEGER NOT NULL DEFAULT 0 CHECK (available_for_subscribers >= 0),
    open BOOLEAN NOT NULL DEFAULT TRUE,
    version BIGINT NOT NULL DEFAULT 1,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createRushHoursTable = `
CREATE TABLE IF NOT EXISTS rush_hours (
    id VARCHAR(64) PRIMARY KEY,
    week_day SMALLINT NOT NULL CHECK (week_day BETWEEN 0 AND 6),
    from_time VARCHAR(5) NOT NULL,
    to_time VARCHAR(5) NOT NULL
);`

const createVacationsTable = `
CREATE TABLE IF NOT EXISTS vacations (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    from_date DATE NOT NULL,
    to_date DATE NOT NULL CHECK (to_date >= from_date)
);`

const createSubscriptionsTable = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id VARCHAR(64) PRIMARY KEY,
    user_name VARCHAR(200) NOT NULL,
    category_id VARCHAR(64) NOT NULL REFERENCES categories(id),
    active BOOLEAN NOT NULL DEFAULT TRUE,
    starts_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);`

const createSubscriptionCarsTable = `
CREATE TABLE IF NOT EXISTS subscription_cars (
    subscription_id VARCHAR(64) NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    plate VARCHAR(32) NOT NULL,
    brand VARCHAR(100) NOT NULL DEFAULT '',
    model VARCHAR(100) NOT NULL DEFAULT '',
    color VARCHAR(50) NOT NULL DEFAULT '',
    position INT NOT NULL DEFAULT 0,
    PRIMARY KEY (subscription_id, plate)
);`

const addSubscriptionCarsPosition = `
ALTER TABLE subscription_cars ADD COLUMN IF NOT EXISTS position INT NOT NULL DEFAULT 0;`

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id VARCHAR(64) PRIMARY KEY,
    gate_id VARCHAR(64) NOT NULL REFERENCES gates(id),
    zone_id VARCHAR(64) NOT NULL REFERENCES zones(id),
    type VARCHAR(20) NOT NULL CHECK (type IN ('visitor', 'subscriber')),
    subscription_id VARCHAR(64) REFERENCES subscriptions(id),
    checkin_at TIMESTAMPTZ NOT NULL,
    checkout_at TIMESTAMPTZ,
    total_amount NUMERIC(12,2),
    breakdown JSONB
);`

const createAuditLogTable = `
CREATE TABLE IF NOT EXISTS audit_log (
    id VARCHAR(64) PRIMARY KEY,
    action VARCHAR(100) NOT NULL,
    admin_id VARCHAR(64) NOT NULL,
    target_type VARCHAR(50) NOT NULL DEFAULT '',
    target_id VARCHAR(64) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createTicketsOpenIndex = `
CREATE INDEX IF NOT EXISTS idx_tickets_open ON tickets(zone_id, type) WHERE checkout_at IS NULL;`

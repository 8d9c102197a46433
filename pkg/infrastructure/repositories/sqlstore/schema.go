package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// sqliteSchema stores decimals and dates as TEXT so values round-trip exactly
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		part_number     TEXT PRIMARY KEY,
		description     TEXT NOT NULL,
		make_buy        TEXT NOT NULL,
		material_cost   TEXT NOT NULL,
		labour_cost     TEXT NOT NULL,
		overhead_cost   TEXT NOT NULL,
		unit_of_measure TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS structure_edges (
		parent         TEXT NOT NULL,
		component      TEXT NOT NULL,
		qty_per        TEXT NOT NULL,
		sequence       INTEGER NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to   TEXT NOT NULL,
		work_centre    TEXT,
		auto_issue     INTEGER NOT NULL DEFAULT 0,
		remark         TEXT,
		PRIMARY KEY (parent, component, effective_from)
	)`,
	`CREATE TABLE IF NOT EXISTS order_sequence (
		id      INTEGER PRIMARY KEY CHECK (id = 1),
		next_id INTEGER NOT NULL
	)`,
	`INSERT INTO order_sequence (id, next_id) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS production_orders (
		id          INTEGER PRIMARY KEY,
		top_item    TEXT NOT NULL,
		location    TEXT NOT NULL,
		quantity    TEXT NOT NULL,
		required_by TEXT NOT NULL,
		start_date  TEXT NOT NULL,
		reference   TEXT,
		remark      TEXT,
		closed      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		order_id      INTEGER NOT NULL REFERENCES production_orders (id),
		line_no       INTEGER NOT NULL,
		part_number   TEXT NOT NULL,
		kind          INTEGER NOT NULL,
		qty_per       TEXT NOT NULL,
		auto_issue    INTEGER NOT NULL DEFAULT 0,
		required      TEXT NOT NULL,
		issued        TEXT NOT NULL,
		received      TEXT NOT NULL,
		standard_cost TEXT NOT NULL,
		PRIMARY KEY (order_id, part_number)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		part_number TEXT NOT NULL,
		location    TEXT NOT NULL,
		reference   TEXT NOT NULL,
		quantity    TEXT NOT NULL,
		cost        TEXT NOT NULL,
		memo        TEXT NOT NULL,
		batch_id    TEXT,
		serial_id   TEXT,
		auto_cost   INTEGER NOT NULL DEFAULT 0,
		posted_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS stock_movements_reference_idx ON stock_movements (reference)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		part_number     TEXT PRIMARY KEY,
		description     TEXT NOT NULL,
		make_buy        TEXT NOT NULL,
		material_cost   NUMERIC NOT NULL,
		labour_cost     NUMERIC NOT NULL,
		overhead_cost   NUMERIC NOT NULL,
		unit_of_measure TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS structure_edges (
		parent         TEXT NOT NULL,
		component      TEXT NOT NULL,
		qty_per        NUMERIC NOT NULL,
		sequence       INTEGER NOT NULL,
		effective_from DATE NOT NULL,
		effective_to   DATE NOT NULL,
		work_centre    TEXT,
		auto_issue     BOOLEAN NOT NULL DEFAULT FALSE,
		remark         TEXT,
		PRIMARY KEY (parent, component, effective_from)
	)`,
	`CREATE TABLE IF NOT EXISTS order_sequence (
		id      INTEGER PRIMARY KEY CHECK (id = 1),
		next_id BIGINT NOT NULL
	)`,
	`INSERT INTO order_sequence (id, next_id) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS production_orders (
		id          BIGINT PRIMARY KEY,
		top_item    TEXT NOT NULL,
		location    TEXT NOT NULL,
		quantity    NUMERIC NOT NULL,
		required_by DATE NOT NULL,
		start_date  DATE NOT NULL,
		reference   TEXT,
		remark      TEXT,
		closed      BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		order_id      BIGINT NOT NULL REFERENCES production_orders (id),
		line_no       INTEGER NOT NULL,
		part_number   TEXT NOT NULL,
		kind          INTEGER NOT NULL,
		qty_per       NUMERIC NOT NULL,
		auto_issue    BOOLEAN NOT NULL DEFAULT FALSE,
		required      NUMERIC NOT NULL,
		issued        NUMERIC NOT NULL,
		received      NUMERIC NOT NULL,
		standard_cost NUMERIC NOT NULL,
		PRIMARY KEY (order_id, part_number)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		seq         BIGSERIAL PRIMARY KEY,
		id          TEXT NOT NULL UNIQUE,
		part_number TEXT NOT NULL,
		location    TEXT NOT NULL,
		reference   TEXT NOT NULL,
		quantity    NUMERIC NOT NULL,
		cost        NUMERIC NOT NULL,
		memo        TEXT NOT NULL,
		batch_id    TEXT,
		serial_id   TEXT,
		auto_cost   BOOLEAN NOT NULL DEFAULT FALSE,
		posted_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS stock_movements_reference_idx ON stock_movements (reference)`,
}

// Migrate creates the tables for the database's dialect. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	statements := sqliteSchema
	if db.DriverName() == "postgres" {
		statements = postgresSchema
	}
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

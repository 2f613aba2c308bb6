package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the certledger store (SQLite).
var Migrations = migrate.NewGroup("certledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_certledger_entries",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS certledger_entries (
    idx            INTEGER PRIMARY KEY,
    external_id    TEXT    NOT NULL DEFAULT '',
    title          TEXT    NOT NULL DEFAULT '',
    description    TEXT    NOT NULL DEFAULT '',
    teacher        TEXT    NOT NULL DEFAULT '',
    price_amount   INTEGER NOT NULL DEFAULT 0,
    price_currency TEXT    NOT NULL DEFAULT '',
    quantity       INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_certledger_entries_external_id ON certledger_entries (external_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS certledger_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_certledger_orders",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS certledger_orders (
    id              INTEGER PRIMARY KEY,
    entry_idx       INTEGER NOT NULL REFERENCES certledger_entries (idx),
    external_id     TEXT    NOT NULL DEFAULT '',
    customer        TEXT    NOT NULL,
    amount          INTEGER NOT NULL DEFAULT 0,
    amount_currency TEXT    NOT NULL DEFAULT '',
    receipt_id      TEXT    NOT NULL DEFAULT '',
    ordered_at      INTEGER NOT NULL,
    status          TEXT    NOT NULL DEFAULT 'paid',
    delivered_at    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_certledger_orders_customer ON certledger_orders (customer);
CREATE INDEX IF NOT EXISTS idx_certledger_orders_entry ON certledger_orders (entry_idx);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS certledger_orders`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_certledger_meta",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS certledger_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS certledger_meta`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_certledger_nonces",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS certledger_nonces (
    sender     TEXT    NOT NULL,
    nonce      TEXT    NOT NULL,
    claimed_at INTEGER NOT NULL,
    PRIMARY KEY (sender, nonce)
)`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS certledger_nonces`)
				return err
			},
		},
	)
}

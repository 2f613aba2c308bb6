package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the certledger store.
var Migrations = migrate.NewGroup("certledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_certledger_counters",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS certledger_counters (
    name  TEXT PRIMARY KEY,
    value BIGINT NOT NULL DEFAULT 0
);

INSERT INTO certledger_counters (name, value) VALUES ('entries', 0), ('orders', 0)
ON CONFLICT (name) DO NOTHING;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS certledger_counters`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_certledger_entries",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS certledger_entries (
    idx            BIGINT PRIMARY KEY,
    external_id    TEXT NOT NULL DEFAULT '',
    title          TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    teacher        TEXT NOT NULL DEFAULT '',
    price_amount   BIGINT NOT NULL DEFAULT 0,
    price_currency TEXT NOT NULL DEFAULT '',
    quantity       BIGINT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS certledger_orders (
    id              BIGINT PRIMARY KEY,
    entry_idx       BIGINT NOT NULL REFERENCES certledger_entries (idx),
    external_id     TEXT NOT NULL DEFAULT '',
    customer        TEXT NOT NULL,
    amount          BIGINT NOT NULL DEFAULT 0,
    amount_currency TEXT NOT NULL DEFAULT '',
    receipt_id      TEXT NOT NULL DEFAULT '',
    ordered_at      TIMESTAMPTZ NOT NULL,
    status          TEXT NOT NULL DEFAULT 'paid',
    delivered_at    TIMESTAMPTZ
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
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS certledger_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS certledger_meta`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_certledger_nonces",
			Version: "20260101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS certledger_nonces (
    sender     TEXT        NOT NULL,
    nonce      TEXT        NOT NULL,
    claimed_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (sender, nonce)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS certledger_nonces`)
				return err
			},
		},
	)
}

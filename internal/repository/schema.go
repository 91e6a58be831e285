package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// schema is applied on startup. Money columns are unscaled NUMERIC so stored
// values are exactly the decimals the service computed.
const schema = `
CREATE TABLE IF NOT EXISTS customers (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT        NOT NULL,
    email       TEXT        NOT NULL UNIQUE,
    phone       TEXT        NOT NULL DEFAULT '',
    address     TEXT        NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS products (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT        NOT NULL,
    description TEXT        NOT NULL DEFAULT '',
    price       NUMERIC     NOT NULL CHECK (price >= 0),
    cost        NUMERIC     NOT NULL DEFAULT 0 CHECK (cost >= 0),
    stock       INTEGER     NOT NULL DEFAULT 0 CHECK (stock >= 0),
    category    TEXT        NOT NULL DEFAULT '',
    supplier    TEXT        NOT NULL DEFAULT '',
    status      TEXT        NOT NULL DEFAULT 'active',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);

CREATE TABLE IF NOT EXISTS orders (
    id              BIGSERIAL PRIMARY KEY,
    customer_id     BIGINT      NOT NULL REFERENCES customers(id),
    status          TEXT        NOT NULL DEFAULT 'pending',
    payment_status  TEXT        NOT NULL DEFAULT 'pending',
    subtotal        NUMERIC     NOT NULL CHECK (subtotal >= 0),
    tax             NUMERIC     NOT NULL DEFAULT 0 CHECK (tax >= 0),
    shipping        NUMERIC     NOT NULL DEFAULT 0 CHECK (shipping >= 0),
    total           NUMERIC     NOT NULL CHECK (total = subtotal + tax + shipping),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS order_items (
    id          BIGSERIAL PRIMARY KEY,
    order_id    BIGINT  NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id  BIGINT  NOT NULL REFERENCES products(id),
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    price       NUMERIC NOT NULL CHECK (price >= 0),
    total       NUMERIC NOT NULL CHECK (total >= 0)
);

CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
`

// Migrate creates the tables the service needs if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// WaitForDatabase pings db until it answers, trying retries+1 times with
// delay between attempts. Postgres often starts after the service does.
func WaitForDatabase(ctx context.Context, db pinger, retries int, delay time.Duration, logger *logrus.Entry) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}

		logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Database not ready")

		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database not reachable after %d attempts: %w", retries+1, err)
}

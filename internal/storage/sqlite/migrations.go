package sqlite

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
    code           TEXT    PRIMARY KEY,
    name           TEXT    NOT NULL,
    price          TEXT    NOT NULL,
    stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
    is_active      INTEGER NOT NULL DEFAULT 1,
    updated_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS carts (
    code       TEXT    PRIMARY KEY,
    user_code  TEXT    NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cart_items (
    code         TEXT    PRIMARY KEY,
    cart_code    TEXT    NOT NULL REFERENCES carts (code) ON DELETE CASCADE,
    product_code TEXT    NOT NULL REFERENCES products (code),
    quantity     INTEGER NOT NULL CHECK (quantity > 0),
    size         TEXT    NOT NULL DEFAULT '',
    color        TEXT    NOT NULL DEFAULT '',
    seq          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cart_items_cart ON cart_items (cart_code);

CREATE TABLE IF NOT EXISTS addresses (
    code         TEXT    PRIMARY KEY,
    user_code    TEXT    NOT NULL,
    address_line TEXT    NOT NULL CHECK (length(address_line) <= 255),
    city         TEXT    NOT NULL DEFAULT '',
    is_default   INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    code            TEXT    PRIMARY KEY,
    user_code       TEXT    NOT NULL,
    address_code    TEXT    NOT NULL REFERENCES addresses (code),
    coupon_code     TEXT    NOT NULL DEFAULT '',
    order_date      INTEGER NOT NULL,
    total_amount    TEXT    NOT NULL,
    shipping_fee    TEXT    NOT NULL,
    discount_amount TEXT    NOT NULL,
    final_amount    TEXT    NOT NULL,
    status          TEXT    NOT NULL,
    cancel_reason   TEXT    NOT NULL DEFAULT '',
    updated_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_code, order_date);

CREATE TABLE IF NOT EXISTS order_items (
    code           TEXT    PRIMARY KEY,
    order_code     TEXT    NOT NULL REFERENCES orders (code),
    product_code   TEXT    NOT NULL REFERENCES products (code),
    quantity       INTEGER NOT NULL CHECK (quantity > 0),
    price_at_order TEXT    NOT NULL,
    size           TEXT    NOT NULL DEFAULT '',
    color          TEXT    NOT NULL DEFAULT '',
    seq            INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items (order_code);

CREATE TABLE IF NOT EXISTS payments (
    code           TEXT    PRIMARY KEY,
    order_code     TEXT    NOT NULL UNIQUE REFERENCES orders (code),
    amount         TEXT    NOT NULL,
    method         TEXT    NOT NULL,
    status         TEXT    NOT NULL,
    transaction_id TEXT,
    payment_date   INTEGER,
    created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    topic           TEXT    NOT NULL,
    key             TEXT    NOT NULL,
    event_type      TEXT    NOT NULL,
    payload         BLOB    NOT NULL,
    headers         TEXT    NOT NULL DEFAULT '{}',
    retry_count     INTEGER NOT NULL DEFAULT 0,
    last_error      TEXT,
    created_at      INTEGER NOT NULL,
    next_attempt_at INTEGER NOT NULL DEFAULT 0,
    published_at    INTEGER
);
`

// columnAdditions upgrade databases created before the column existed.
var columnAdditions = []struct{ table, column, ddl string }{
	{"outbox", "next_attempt_at", `ALTER TABLE outbox ADD COLUMN next_attempt_at INTEGER NOT NULL DEFAULT 0`},
}

func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	for _, c := range columnAdditions {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.column).Scan(&n)
		if err != nil {
			return fmt.Errorf("inspect %s.%s: %w", c.table, c.column, err)
		}
		if n > 0 {
			continue
		}
		if _, err = s.db.ExecContext(ctx, c.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

package pg

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
    code           VARCHAR(32)    PRIMARY KEY,
    name           TEXT           NOT NULL,
    price          NUMERIC(18, 2) NOT NULL CHECK (price >= 0),
    stock_quantity INTEGER        NOT NULL CHECK (stock_quantity >= 0),
    is_active      BOOLEAN        NOT NULL DEFAULT TRUE,
    updated_at     TIMESTAMPTZ    NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS carts (
    code       VARCHAR(32) PRIMARY KEY,
    user_code  VARCHAR(32) NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cart_items (
    code         VARCHAR(32) PRIMARY KEY,
    cart_code    VARCHAR(32) NOT NULL REFERENCES carts (code) ON DELETE CASCADE,
    product_code VARCHAR(32) NOT NULL REFERENCES products (code),
    quantity     INTEGER     NOT NULL CHECK (quantity > 0),
    size         TEXT        NOT NULL DEFAULT '',
    color        TEXT        NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cart_items_cart ON cart_items (cart_code);

CREATE TABLE IF NOT EXISTS addresses (
    code         VARCHAR(32)  PRIMARY KEY,
    user_code    VARCHAR(32)  NOT NULL,
    address_line VARCHAR(255) NOT NULL,
    city         TEXT         NOT NULL DEFAULT '',
    is_default   BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
    code            VARCHAR(32)    PRIMARY KEY,
    user_code       VARCHAR(32)    NOT NULL,
    address_code    VARCHAR(32)    NOT NULL REFERENCES addresses (code),
    coupon_code     TEXT           NOT NULL DEFAULT '',
    order_date      TIMESTAMPTZ    NOT NULL,
    total_amount    NUMERIC(18, 2) NOT NULL,
    shipping_fee    NUMERIC(18, 2) NOT NULL,
    discount_amount NUMERIC(18, 2) NOT NULL,
    final_amount    NUMERIC(18, 2) NOT NULL CHECK (final_amount >= 0),
    status          VARCHAR(32)    NOT NULL,
    cancel_reason   TEXT           NOT NULL DEFAULT '',
    updated_at      TIMESTAMPTZ    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_code, order_date DESC);

CREATE TABLE IF NOT EXISTS order_items (
    code           VARCHAR(32)    PRIMARY KEY,
    order_code     VARCHAR(32)    NOT NULL REFERENCES orders (code),
    product_code   VARCHAR(32)    NOT NULL REFERENCES products (code),
    quantity       INTEGER        NOT NULL CHECK (quantity > 0),
    price_at_order NUMERIC(18, 2) NOT NULL,
    size           TEXT           NOT NULL DEFAULT '',
    color          TEXT           NOT NULL DEFAULT '',
    position       INTEGER        NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items (order_code);

CREATE TABLE IF NOT EXISTS payments (
    code           VARCHAR(32)    PRIMARY KEY,
    order_code     VARCHAR(32)    NOT NULL UNIQUE REFERENCES orders (code),
    amount         NUMERIC(18, 2) NOT NULL,
    method         TEXT           NOT NULL,
    status         VARCHAR(32)    NOT NULL,
    transaction_id TEXT,
    payment_date   TIMESTAMPTZ,
    created_at     TIMESTAMPTZ    NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
    id              BIGSERIAL   PRIMARY KEY,
    topic           TEXT        NOT NULL,
    key             TEXT        NOT NULL,
    event_type      TEXT        NOT NULL,
    payload         JSONB       NOT NULL,
    headers         JSONB       NOT NULL DEFAULT '{}',
    retry_count     INTEGER     NOT NULL DEFAULT 0,
    last_error      TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    published_at    TIMESTAMPTZ
);

ALTER TABLE outbox ADD COLUMN IF NOT EXISTS next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now();

CREATE INDEX IF NOT EXISTS idx_outbox_due ON outbox (next_attempt_at) WHERE published_at IS NULL;
`

// Migrate creates the schema if it does not exist yet.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

package db

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stock_levels (
		product_id TEXT PRIMARY KEY,
		available_units BIGINT NOT NULL DEFAULT 0 CHECK (available_units >= 0),
		reserved_units BIGINT NOT NULL DEFAULT 0 CHECK (reserved_units >= 0),
		stock_status TEXT NOT NULL,
		low_stock_threshold BIGINT NOT NULL DEFAULT 0,
		max_stock_level BIGINT NOT NULL DEFAULT 0,
		last_restocked_at TIMESTAMPTZ,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		seq BIGSERIAL PRIMARY KEY,
		id UUID NOT NULL UNIQUE,
		product_id TEXT NOT NULL REFERENCES stock_levels(product_id),
		movement_type TEXT NOT NULL,
		quantity_change BIGINT NOT NULL,
		quantity_before BIGINT NOT NULL,
		quantity_after BIGINT NOT NULL,
		reference_id TEXT NOT NULL DEFAULT '',
		reference_type TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS stock_movements_product_idx ON stock_movements (product_id, seq)`,
	`CREATE TABLE IF NOT EXISTS inventory_alerts (
		seq BIGSERIAL PRIMARY KEY,
		id UUID NOT NULL UNIQUE,
		product_id TEXT NOT NULL REFERENCES stock_levels(product_id),
		alert_type TEXT NOT NULL,
		alert_level TEXT NOT NULL,
		current_stock BIGINT NOT NULL,
		threshold_value BIGINT NOT NULL,
		message TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
		acknowledged_by TEXT NOT NULL DEFAULT '',
		acknowledged_at TIMESTAMPTZ,
		resolved_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS inventory_alerts_active_idx ON inventory_alerts (product_id, alert_type) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS cart_reservations (
		id UUID PRIMARY KEY,
		cart_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		user_id TEXT,
		product_id TEXT NOT NULL REFERENCES stock_levels(product_id),
		quantity_reserved BIGINT NOT NULL CHECK (quantity_reserved > 0),
		expires_at TIMESTAMPTZ NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		converted_to_order BOOLEAN NOT NULL DEFAULT FALSE,
		order_id TEXT,
		released_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS cart_reservations_cart_idx ON cart_reservations (cart_id) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS cart_reservations_expiry_idx ON cart_reservations (expires_at) WHERE is_active AND NOT converted_to_order`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		fulfillment_status TEXT NOT NULL,
		total_amount NUMERIC(14,2) NOT NULL,
		customer_email TEXT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		cart_id TEXT NOT NULL DEFAULT '',
		shipping_address JSONB,
		billing_address JSONB,
		notes TEXT NOT NULL DEFAULT '',
		confirmed_at TIMESTAMPTZ,
		shipped_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		refunded_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id UUID NOT NULL REFERENCES orders(id),
		line_no INT NOT NULL,
		product_id TEXT NOT NULL,
		quantity BIGINT NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(14,2) NOT NULL,
		stock_before_order BIGINT NOT NULL,
		stock_after_order BIGINT NOT NULL,
		PRIMARY KEY (order_id, line_no)
	)`,
	`CREATE TABLE IF NOT EXISTS order_status_history (
		seq BIGSERIAL PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		from_status TEXT NOT NULL DEFAULT '',
		to_status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		changed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS order_status_history_order_idx ON order_status_history (order_id, seq)`,
}

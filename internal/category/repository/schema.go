package repository

import (
	"context"
	"fmt"
)

// The DDL is written to run unchanged on Postgres and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
        id          VARCHAR(64)  PRIMARY KEY,
        merchant_id VARCHAR(64)  NOT NULL,
        parent_id   VARCHAR(64)  NULL REFERENCES categories (id),
        name        VARCHAR(255) NOT NULL,
        slug        VARCHAR(255) NOT NULL,
        description TEXT         NULL,
        image_url   TEXT         NULL,
        lft         INTEGER      NOT NULL,
        rgt         INTEGER      NOT NULL,
        depth       INTEGER      NOT NULL DEFAULT 0,
        is_active   BOOLEAN      NOT NULL DEFAULT TRUE,
        created_at  TIMESTAMP    NOT NULL,
        updated_at  TIMESTAMP    NOT NULL,
        CHECK (lft < rgt)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_categories_tree ON categories (merchant_id, lft, rgt, depth)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_parent ON categories (merchant_id, parent_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_categories_merchant_slug ON categories (merchant_id, slug)`,
}

// Migrate creates the categories table and its indices if they are missing.
func (r *PGRepository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate categories: %w", err)
		}
	}
	return nil
}

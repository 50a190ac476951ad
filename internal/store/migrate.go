package store

import (
	"context"
	"fmt"
)

// schema covers the marketing tables only. The spree_* commerce tables are
// owned by the shop and read as they are.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS marketing_lists (
		id               BIGSERIAL PRIMARY KEY,
		uid              TEXT,
		name             TEXT NOT NULL,
		kind             TEXT NOT NULL,
		entity_id        BIGINT,
		entity_type      TEXT,
		searched_keyword TEXT,
		active           BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE marketing_lists ALTER COLUMN uid DROP NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS marketing_lists_uid_key ON marketing_lists (lower(uid))`,
	`CREATE TABLE IF NOT EXISTS marketing_contacts (
		id         BIGSERIAL PRIMARY KEY,
		uid        TEXT NOT NULL UNIQUE,
		email      TEXT NOT NULL,
		user_id    BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS marketing_contacts_lists (
		id         BIGSERIAL PRIMARY KEY,
		list_id    BIGINT NOT NULL REFERENCES marketing_lists (id) ON DELETE CASCADE,
		contact_id BIGINT NOT NULL REFERENCES marketing_contacts (id) ON DELETE CASCADE,
		UNIQUE (list_id, contact_id)
	)`,
	`CREATE TABLE IF NOT EXISTS marketing_campaigns (
		id                    BIGSERIAL PRIMARY KEY,
		uid                   TEXT,
		request_key           TEXT,
		name                  TEXT NOT NULL,
		mailchimp_type        TEXT NOT NULL,
		list_id               BIGINT NOT NULL REFERENCES marketing_lists (id) ON DELETE RESTRICT,
		scheduled_at          TIMESTAMPTZ NOT NULL,
		stats                 JSONB,
		reports               JSONB,
		checkpoints_scheduled BOOLEAN NOT NULL DEFAULT false,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE marketing_campaigns ALTER COLUMN uid DROP NOT NULL`,
	`ALTER TABLE marketing_campaigns ADD COLUMN IF NOT EXISTS request_key TEXT`,
	`ALTER TABLE marketing_campaigns ADD COLUMN IF NOT EXISTS checkpoints_scheduled BOOLEAN NOT NULL DEFAULT false`,
	`CREATE UNIQUE INDEX IF NOT EXISTS marketing_campaigns_uid_key ON marketing_campaigns (lower(uid))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS marketing_campaigns_request_key ON marketing_campaigns (request_key)`,
	`CREATE TABLE IF NOT EXISTS marketing_recipients (
		id              BIGSERIAL PRIMARY KEY,
		campaign_id     BIGINT NOT NULL REFERENCES marketing_campaigns (id) ON DELETE CASCADE,
		contact_id      BIGINT NOT NULL REFERENCES marketing_contacts (id) ON DELETE CASCADE,
		email_opened_at TIMESTAMPTZ,
		UNIQUE (campaign_id, contact_id)
	)`,
}

// Migrate creates the marketing tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

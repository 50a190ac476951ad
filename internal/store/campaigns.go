package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mutter0815/ListSync/internal/campaign"
)

const campaignColumns = `id, COALESCE(uid, ''), name, mailchimp_type, list_id, scheduled_at, stats, reports, checkpoints_scheduled, created_at`

func scanCampaign(r rowScanner) (campaign.Campaign, error) {
	var (
		c              campaign.Campaign
		stats, reports []byte
	)
	if err := r.Scan(&c.ID, &c.UID, &c.Name, &c.Type, &c.SegmentID, &c.ScheduledAt, &stats, &reports, &c.CheckpointsScheduled, &c.CreatedAt); err != nil {
		return campaign.Campaign{}, err
	}
	if len(stats) > 0 {
		var st campaign.Stats
		if err := json.Unmarshal(stats, &st); err != nil {
			return campaign.Campaign{}, fmt.Errorf("decode stats of campaign %d: %w", c.ID, err)
		}
		c.Stats = &st
	}
	if len(reports) > 0 {
		if err := json.Unmarshal(reports, &c.Reports); err != nil {
			return campaign.Campaign{}, fmt.Errorf("decode reports of campaign %d: %w", c.ID, err)
		}
	}
	return c, nil
}

func (s *Store) GetCampaign(ctx context.Context, id int64) (campaign.Campaign, error) {
	return s.getCampaign(ctx, s.DB, `SELECT `+campaignColumns+` FROM marketing_campaigns WHERE id = $1`, id)
}

// GetCampaignByUID matches uid case-insensitively.
func (s *Store) GetCampaignByUID(ctx context.Context, uid string) (campaign.Campaign, error) {
	return s.getCampaign(ctx, s.DB, `SELECT `+campaignColumns+` FROM marketing_campaigns WHERE lower(uid) = lower($1)`, uid)
}

func (s *Store) getCampaign(ctx context.Context, q queryer, query string, arg any) (campaign.Campaign, error) {
	c, err := scanCampaign(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.Campaign{}, fmt.Errorf("get campaign %v: %w", arg, campaign.ErrCampaignNotFound)
	}
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// SaveCampaign inserts c keyed by uid. When the uid already exists the
// stored row is returned with created=false and recipients are not touched.
// Recipients whose contact is unknown are skipped.
func (s *Store) SaveCampaign(ctx context.Context, c campaign.Campaign, recipients []campaign.RecipientOpen) (campaign.Campaign, bool, error) {
	var created bool
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO marketing_campaigns (uid, name, mailchimp_type, list_id, scheduled_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT ((lower(uid))) DO NOTHING
			RETURNING id, created_at
		`, c.UID, c.Name, c.Type, c.SegmentID, c.ScheduledAt).Scan(&c.ID, &c.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			existing, err := s.getCampaign(ctx, tx,
				`SELECT `+campaignColumns+` FROM marketing_campaigns WHERE lower(uid) = lower($1)`, c.UID)
			if err != nil {
				return err
			}
			c = existing
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert campaign: %w", err)
		}
		created = true

		for _, r := range recipients {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO marketing_recipients (campaign_id, contact_id, email_opened_at)
				SELECT $1, c.id, $3 FROM marketing_contacts c WHERE c.uid = $2
				ON CONFLICT (campaign_id, contact_id) DO NOTHING
			`, c.ID, r.ContactUID, r.OpenedAt); err != nil {
				return fmt.Errorf("insert recipient: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return campaign.Campaign{}, false, err
	}
	return c, created, nil
}

// ReserveCampaign inserts a campaign without a platform uid, keyed by the
// request that asked for it. A second call with the same key returns the
// row from the first one, uid included once it has been attached.
func (s *Store) ReserveCampaign(ctx context.Context, requestKey string, c campaign.Campaign) (campaign.Campaign, error) {
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO marketing_campaigns (request_key, name, mailchimp_type, list_id, scheduled_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (request_key) DO NOTHING
		RETURNING id, created_at
	`, requestKey, c.Name, c.Type, c.SegmentID, c.ScheduledAt).Scan(&c.ID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.getCampaign(ctx, s.DB, `SELECT `+campaignColumns+` FROM marketing_campaigns WHERE request_key = $1`, requestKey)
	}
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("reserve campaign: %w", err)
	}
	return c, nil
}

// AttachCampaignUID records the platform id of a reserved campaign.
func (s *Store) AttachCampaignUID(ctx context.Context, id int64, uid string) error {
	return s.updateCampaign(ctx, id, `UPDATE marketing_campaigns SET uid = $2 WHERE id = $1`, uid)
}

func (s *Store) MarkCheckpointsScheduled(ctx context.Context, id int64) error {
	return s.updateCampaign(ctx, id, `UPDATE marketing_campaigns SET checkpoints_scheduled = true WHERE id = $1`)
}

func (s *Store) UpdateCampaignStats(ctx context.Context, id int64, st campaign.Stats) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	return s.updateCampaign(ctx, id, `UPDATE marketing_campaigns SET stats = $2 WHERE id = $1`, raw)
}

func (s *Store) UpdateCampaignReports(ctx context.Context, id int64, r campaign.Reports) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reports: %w", err)
	}
	return s.updateCampaign(ctx, id, `UPDATE marketing_campaigns SET reports = $2 WHERE id = $1`, raw)
}

func (s *Store) updateCampaign(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update campaign %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update campaign %d: %w", id, campaign.ErrCampaignNotFound)
	}
	return nil
}

// UpdateRecipientOpens sets email_opened_at where it differs and returns the
// number of recipients changed.
func (s *Store) UpdateRecipientOpens(ctx context.Context, campaignID int64, opens []campaign.RecipientOpen) (int, error) {
	var changed int
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, o := range opens {
			res, err := tx.ExecContext(ctx, `
				UPDATE marketing_recipients r
				SET email_opened_at = $3
				FROM marketing_contacts c
				WHERE r.contact_id = c.id AND r.campaign_id = $1 AND c.uid = $2
				  AND r.email_opened_at IS DISTINCT FROM $3
			`, campaignID, o.ContactUID, o.OpenedAt)
			if err != nil {
				return fmt.Errorf("update recipient open: %w", err)
			}
			n, _ := res.RowsAffected()
			changed += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// RecipientUserIDs returns the users linked to the campaign's recipients.
func (s *Store) RecipientUserIDs(ctx context.Context, campaignID int64) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT DISTINCT c.user_id
		FROM marketing_recipients r
		JOIN marketing_contacts c ON c.id = r.contact_id
		WHERE r.campaign_id = $1 AND c.user_id IS NOT NULL
		ORDER BY c.user_id
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("recipient users: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recipient user: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

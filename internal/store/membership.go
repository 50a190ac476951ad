package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Mutter0815/ListSync/internal/audience"
)

// CurrentMembership returns the segment's members that are linked to a user.
func (s *Store) CurrentMembership(ctx context.Context, segmentID int64) (audience.Audience, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT c.email, c.user_id
		FROM marketing_contacts_lists m
		JOIN marketing_contacts c ON c.id = m.contact_id
		WHERE m.list_id = $1 AND c.user_id IS NOT NULL
	`, segmentID)
	if err != nil {
		return nil, fmt.Errorf("current membership: %w", err)
	}
	defer rows.Close()

	out := make(audience.Audience)
	for rows.Next() {
		var (
			email  string
			userID int64
		)
		if err := rows.Scan(&email, &userID); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out[email] = userID
	}
	return out, rows.Err()
}

// ContactUIDsByEmails returns the platform ids of the segment's members with
// one of emails.
func (s *Store) ContactUIDsByEmails(ctx context.Context, segmentID int64, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT c.uid
		FROM marketing_contacts_lists m
		JOIN marketing_contacts c ON c.id = m.contact_id
		WHERE m.list_id = $1 AND c.email = ANY($2)
		ORDER BY c.uid
	`, segmentID, pq.Array(emails))
	if err != nil {
		return nil, fmt.Errorf("contact uids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan contact uid: %w", err)
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

// CommitListSync records the outcome of a successful platform update in one
// transaction. Contacts are upserted by platform id and linked to the
// segment; members whose email is in removalEmails are unlinked. Both steps
// are no-ops for rows already in the target state.
func (s *Store) CommitListSync(ctx context.Context, segmentID int64, contacts []audience.Contact, removalEmails []string) (added, removed int, err error) {
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, c := range contacts {
			var contactID int64
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO marketing_contacts (uid, email, user_id)
				VALUES ($1,$2,$3)
				ON CONFLICT (uid) DO UPDATE
				SET email = EXCLUDED.email,
				    user_id = COALESCE(EXCLUDED.user_id, marketing_contacts.user_id),
				    updated_at = now()
				RETURNING id
			`, c.UID, c.Email, nullInt64(c.UserID)).Scan(&contactID); err != nil {
				return fmt.Errorf("upsert contact: %w", err)
			}

			res, err := tx.ExecContext(ctx, `
				INSERT INTO marketing_contacts_lists (list_id, contact_id)
				VALUES ($1,$2)
				ON CONFLICT (list_id, contact_id) DO NOTHING
			`, segmentID, contactID)
			if err != nil {
				return fmt.Errorf("add membership: %w", err)
			}
			n, _ := res.RowsAffected()
			added += int(n)
		}

		if len(removalEmails) == 0 {
			return nil
		}
		res, err := tx.ExecContext(ctx, `
			DELETE FROM marketing_contacts_lists m
			USING marketing_contacts c
			WHERE m.contact_id = c.id AND m.list_id = $1 AND c.email = ANY($2)
		`, segmentID, pq.Array(removalEmails))
		if err != nil {
			return fmt.Errorf("remove memberships: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = int(n)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return added, removed, nil
}

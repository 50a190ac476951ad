package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Mutter0815/ListSync/internal/audience"
)

const segmentColumns = `id, COALESCE(uid, ''), name, kind, entity_id, entity_type, searched_keyword, active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSegment(r rowScanner) (audience.Segment, error) {
	var (
		seg        audience.Segment
		kind       string
		entityID   sql.NullInt64
		entityType sql.NullString
		keyword    sql.NullString
	)
	if err := r.Scan(&seg.ID, &seg.UID, &seg.Name, &kind, &entityID, &entityType, &keyword, &seg.Active, &seg.CreatedAt); err != nil {
		return audience.Segment{}, err
	}
	seg.Kind = audience.Kind(kind)
	seg.Entity = audience.Entity{ID: entityID.Int64, Type: entityType.String, Keyword: keyword.String}
	return seg, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullEntityID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// CreateSegment inserts seg as an active segment. An empty uid is stored as
// NULL until AttachSegmentUID sets it.
func (s *Store) CreateSegment(ctx context.Context, seg audience.Segment) (audience.Segment, error) {
	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO marketing_lists (uid, name, kind, entity_id, entity_type, searched_keyword, active)
		VALUES ($1,$2,$3,$4,$5,$6,TRUE)
		RETURNING id, created_at
	`, nullString(seg.UID), seg.Name, string(seg.Kind), nullEntityID(seg.Entity.ID), nullString(seg.Entity.Type), nullString(seg.Entity.Keyword))

	if err := row.Scan(&seg.ID, &seg.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return audience.Segment{}, fmt.Errorf("create segment %s: %w", seg.UID, audience.ErrDuplicateUID)
		}
		return audience.Segment{}, fmt.Errorf("create segment: %w", err)
	}
	seg.Active = true
	return seg, nil
}

// AttachSegmentUID links a pending segment to its platform list.
func (s *Store) AttachSegmentUID(ctx context.Context, id int64, uid string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE marketing_lists SET uid = $2, updated_at = now() WHERE id = $1`, id, uid)
	if isUniqueViolation(err) {
		return fmt.Errorf("attach uid %s to segment %d: %w", uid, id, audience.ErrDuplicateUID)
	}
	if err != nil {
		return fmt.Errorf("attach uid to segment %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attach uid to segment %d: %w", id, audience.ErrSegmentNotFound)
	}
	return nil
}

func (s *Store) GetSegment(ctx context.Context, id int64) (audience.Segment, error) {
	seg, err := scanSegment(s.DB.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM marketing_lists WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return audience.Segment{}, fmt.Errorf("get segment %d: %w", id, audience.ErrSegmentNotFound)
	}
	if err != nil {
		return audience.Segment{}, fmt.Errorf("get segment: %w", err)
	}
	return seg, nil
}

// FindSegmentByUID matches uid case-insensitively.
func (s *Store) FindSegmentByUID(ctx context.Context, uid string) (audience.Segment, error) {
	seg, err := scanSegment(s.DB.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM marketing_lists WHERE lower(uid) = lower($1)`, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return audience.Segment{}, fmt.Errorf("find segment %s: %w", uid, audience.ErrSegmentNotFound)
	}
	if err != nil {
		return audience.Segment{}, fmt.Errorf("find segment: %w", err)
	}
	return seg, nil
}

// FindSegmentByScope returns the oldest segment of kind scoped to e.
func (s *Store) FindSegmentByScope(ctx context.Context, kind audience.Kind, e audience.Entity) (audience.Segment, error) {
	seg, err := scanSegment(s.DB.QueryRowContext(ctx, `
		SELECT `+segmentColumns+` FROM marketing_lists
		WHERE kind = $1 AND COALESCE(entity_id, 0) = $2 AND COALESCE(searched_keyword, '') = $3
		ORDER BY id LIMIT 1
	`, string(kind), e.ID, e.Keyword))
	if errors.Is(err, sql.ErrNoRows) {
		return audience.Segment{}, fmt.Errorf("find %s segment: %w", kind, audience.ErrSegmentNotFound)
	}
	if err != nil {
		return audience.Segment{}, fmt.Errorf("find segment by scope: %w", err)
	}
	return seg, nil
}

// ListSegments returns segments of kind, or of every kind when kind is empty.
func (s *Store) ListSegments(ctx context.Context, kind audience.Kind, activeOnly bool) ([]audience.Segment, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+segmentColumns+` FROM marketing_lists
		WHERE ($1 = '' OR kind = $1) AND (NOT $2 OR active)
		ORDER BY id
	`, string(kind), activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []audience.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func (s *Store) SetSegmentActive(ctx context.Context, id int64, active bool) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE marketing_lists SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set segment active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set segment %d active: %w", id, audience.ErrSegmentNotFound)
	}
	return nil
}

// DeleteSegment refuses while campaigns reference the segment. Memberships
// go with it.
func (s *Store) DeleteSegment(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var inUse bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM marketing_campaigns WHERE list_id = $1)`, id).Scan(&inUse); err != nil {
			return fmt.Errorf("check segment campaigns: %w", err)
		}
		if inUse {
			return fmt.Errorf("delete segment %d: %w", id, audience.ErrSegmentInUse)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM marketing_lists WHERE id = $1`, id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("delete segment %d: %w", id, audience.ErrSegmentInUse)
			}
			return fmt.Errorf("delete segment: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("delete segment %d: %w", id, audience.ErrSegmentNotFound)
		}
		return nil
	})
}

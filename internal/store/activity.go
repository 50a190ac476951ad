package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Mutter0815/ListSync/internal/audience"
)

// PageViewCounts groups page events since the given time by actor.
func (s *Store) PageViewCounts(ctx context.Context, since time.Time) ([]audience.ActorCount, error) {
	return s.actorCounts(ctx, `
		SELECT actor_id, actor_type, COUNT(id)
		FROM spree_page_events
		WHERE created_at >= $1
		GROUP BY actor_id, actor_type
	`, since)
}

func (s *Store) SearchCounts(ctx context.Context, keyword string, since time.Time) ([]audience.ActorCount, error) {
	return s.actorCounts(ctx, `
		SELECT actor_id, actor_type, COUNT(id)
		FROM spree_page_events
		WHERE created_at >= $1 AND search_keywords = $2
		GROUP BY actor_id, actor_type
	`, since, keyword)
}

func (s *Store) actorCounts(ctx context.Context, query string, args ...any) ([]audience.ActorCount, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("actor counts: %w", err)
	}
	defer rows.Close()

	var out []audience.ActorCount
	for rows.Next() {
		var (
			actorID   sql.NullInt64
			actorType sql.NullString
			c         audience.ActorCount
		)
		if err := rows.Scan(&actorID, &actorType, &c.Count); err != nil {
			return nil, fmt.Errorf("scan actor count: %w", err)
		}
		c.ActorID = int64Ptr(actorID)
		c.ActorType = actorType.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ProductBuyers(ctx context.Context, productID int64, since time.Time) ([]audience.UserCount, error) {
	return s.userCounts(ctx, `
		SELECT o.user_id, COUNT(DISTINCT o.id)
		FROM spree_orders o
		JOIN spree_line_items li ON li.order_id = o.id
		JOIN spree_variants v ON v.id = li.variant_id
		WHERE o.completed_at >= $1 AND v.product_id = $2
		GROUP BY o.user_id
	`, since, productID)
}

func (s *Store) DiscountedOrderCounts(ctx context.Context, since time.Time) ([]audience.UserCount, error) {
	return s.userCounts(ctx, `
		SELECT o.user_id, COUNT(DISTINCT o.id)
		FROM spree_orders o
		JOIN spree_order_promotions op ON op.order_id = o.id
		WHERE o.completed_at >= $1
		GROUP BY o.user_id
		ORDER BY COUNT(DISTINCT o.id) DESC
	`, since)
}

func (s *Store) PaymentMethodOrderCounts(ctx context.Context, paymentMethodID int64, since time.Time) ([]audience.UserCount, error) {
	return s.userCounts(ctx, `
		SELECT o.user_id, COUNT(DISTINCT o.id)
		FROM spree_orders o
		JOIN spree_payments p ON p.order_id = o.id
		WHERE o.completed_at >= $1 AND p.payment_method_id = $2 AND p.state = 'completed'
		GROUP BY o.user_id
	`, since, paymentMethodID)
}

func (s *Store) userCounts(ctx context.Context, query string, args ...any) ([]audience.UserCount, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("user counts: %w", err)
	}
	defer rows.Close()

	var out []audience.UserCount
	for rows.Next() {
		var (
			userID sql.NullInt64
			c      audience.UserCount
		)
		if err := rows.Scan(&userID, &c.Count); err != nil {
			return nil, fmt.Errorf("scan user count: %w", err)
		}
		c.UserID = int64Ptr(userID)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ProductSales(ctx context.Context, since time.Time) ([]audience.EntityCount, error) {
	return s.entityCounts(ctx, `
		SELECT pr.id, pr.name, COUNT(DISTINCT o.id)
		FROM spree_orders o
		JOIN spree_line_items li ON li.order_id = o.id
		JOIN spree_variants v ON v.id = li.variant_id
		JOIN spree_products pr ON pr.id = v.product_id
		WHERE o.completed_at >= $1
		GROUP BY pr.id, pr.name
	`, since)
}

func (s *Store) PaymentMethodUsage(ctx context.Context, since time.Time) ([]audience.EntityCount, error) {
	return s.entityCounts(ctx, `
		SELECT pm.id, pm.name, COUNT(DISTINCT o.id)
		FROM spree_orders o
		JOIN spree_payments p ON p.order_id = o.id
		JOIN spree_payment_methods pm ON pm.id = p.payment_method_id
		WHERE o.completed_at >= $1 AND p.state = 'completed'
		GROUP BY pm.id, pm.name
	`, since)
}

func (s *Store) entityCounts(ctx context.Context, query string, since time.Time) ([]audience.EntityCount, error) {
	rows, err := s.DB.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("entity counts: %w", err)
	}
	defer rows.Close()

	var out []audience.EntityCount
	for rows.Next() {
		var c audience.EntityCount
		if err := rows.Scan(&c.EntityID, &c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("scan entity count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UserEmails resolves registered users only.
func (s *Store) UserEmails(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, email FROM spree_users WHERE id = ANY($1) AND email <> ''
	`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("user emails: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			email string
		)
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("scan user email: %w", err)
		}
		out[id] = email
	}
	return out, rows.Err()
}

// ReportCounts counts distinct users among userIDs per behaviour since the
// given time.
func (s *Store) ReportCounts(ctx context.Context, userIDs []int64, since time.Time) (map[audience.Report]int, error) {
	var logIns, purchases, cartAdditions, productViews int
	out := func() map[audience.Report]int {
		return map[audience.Report]int{
			audience.ReportLogIns:        logIns,
			audience.ReportPurchases:     purchases,
			audience.ReportCartAdditions: cartAdditions,
			audience.ReportProductViews:  productViews,
		}
	}
	if len(userIDs) == 0 {
		return out(), nil
	}
	err := s.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(DISTINCT actor_id) FROM spree_page_events
			  WHERE actor_type = $3 AND actor_id = ANY($1) AND created_at >= $2 AND activity = 'login'),
			(SELECT COUNT(DISTINCT user_id) FROM spree_orders
			  WHERE user_id = ANY($1) AND completed_at >= $2),
			(SELECT COUNT(DISTINCT actor_id) FROM spree_page_events
			  WHERE actor_type = $3 AND actor_id = ANY($1) AND created_at >= $2 AND activity = 'cart_addition'),
			(SELECT COUNT(DISTINCT actor_id) FROM spree_page_events
			  WHERE actor_type = $3 AND actor_id = ANY($1) AND created_at >= $2 AND activity = 'view' AND target_type = $4)
	`, pq.Array(userIDs), since, audience.UserPrincipalType, audience.EntityProduct).
		Scan(&logIns, &purchases, &cartAdditions, &productViews)
	if err != nil {
		return nil, fmt.Errorf("report counts: %w", err)
	}
	return out(), nil
}

package audience

import (
	"context"
	"time"
)

// ActorCount is a per-actor event count. ActorID is nil for anonymous events.
type ActorCount struct {
	ActorID   *int64
	ActorType string
	Count     int
}

// UserCount is a per-user order count. UserID is nil for guest orders.
type UserCount struct {
	UserID *int64
	Count  int
}

// EntityCount is a completed-order count grouped by product or payment method.
type EntityCount struct {
	EntityID int64
	Name     string
	Count    int
}

// ActivitySource runs the windowed aggregate queries over commerce activity.
// Thresholds and actor filters are applied by the variants, not the source.
type ActivitySource interface {
	PageViewCounts(ctx context.Context, since time.Time) ([]ActorCount, error)
	SearchCounts(ctx context.Context, keyword string, since time.Time) ([]ActorCount, error)
	ProductBuyers(ctx context.Context, productID int64, since time.Time) ([]UserCount, error)
	DiscountedOrderCounts(ctx context.Context, since time.Time) ([]UserCount, error)
	PaymentMethodOrderCounts(ctx context.Context, paymentMethodID int64, since time.Time) ([]UserCount, error)
	ProductSales(ctx context.Context, since time.Time) ([]EntityCount, error)
	PaymentMethodUsage(ctx context.Context, since time.Time) ([]EntityCount, error)
	// UserEmails returns emails of registered users only; unknown ids are absent.
	UserEmails(ctx context.Context, userIDs []int64) (map[int64]string, error)
}

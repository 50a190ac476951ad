package audience

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	maxPageEventCount        = 5
	minDiscountedOrderCount  = 5
	minPaymentMethodOrders   = 5
	minSearchCount           = 5
	topPaymentMethodCount    = 5
	topFavourableProductSize = 10
)

// LeastActiveUsers selects registered users with fewer than five page views
// in the window.
type LeastActiveUsers struct{ Base }

func (LeastActiveUsers) Kind() Kind          { return KindLeastActiveUsers }
func (LeastActiveUsers) DisplayName() string { return "Least Active Users" }

func (LeastActiveUsers) Candidates(ctx context.Context, src ActivitySource, w Window, _ Entity) ([]int64, error) {
	counts, err := src.PageViewCounts(ctx, w.Start)
	if err != nil {
		return nil, fmt.Errorf("page view counts: %w", err)
	}
	return userActors(counts, func(n int) bool { return n < maxPageEventCount }), nil
}

func (LeastActiveUsers) AvailableReports() []Report {
	return []Report{ReportLogIns, ReportPurchases, ReportProductViews, ReportCartAdditions}
}

// FavourableProducts selects buyers of one product. Its ranking picks the
// best selling products, one segment each.
type FavourableProducts struct{ Base }

func (FavourableProducts) Kind() Kind               { return KindFavourableProducts }
func (FavourableProducts) DisplayName() string      { return "Most Selling Products" }
func (FavourableProducts) Timeframe() time.Duration { return month }
func (FavourableProducts) EntityType() string       { return EntityProduct }

func (FavourableProducts) Candidates(ctx context.Context, src ActivitySource, w Window, e Entity) ([]int64, error) {
	buyers, err := src.ProductBuyers(ctx, e.ID, w.Start)
	if err != nil {
		return nil, fmt.Errorf("product buyers: %w", err)
	}
	return registered(buyers, func(int) bool { return true }), nil
}

func (FavourableProducts) TopEntities(ctx context.Context, src ActivitySource, w Window) ([]EntityCount, error) {
	sales, err := src.ProductSales(ctx, w.Start)
	if err != nil {
		return nil, fmt.Errorf("product sales: %w", err)
	}
	return TopEntities(sales, topFavourableProductSize), nil
}

func (FavourableProducts) AvailableReports() []Report {
	return []Report{ReportCartAdditions, ReportPurchases, ReportProductViews}
}

// MostDiscountedOrders selects registered users with more than five
// promotion-discounted completed orders.
type MostDiscountedOrders struct{ Base }

func (MostDiscountedOrders) Kind() Kind               { return KindMostDiscountedOrders }
func (MostDiscountedOrders) DisplayName() string      { return "Discount Seekers" }
func (MostDiscountedOrders) Timeframe() time.Duration { return month }

func (MostDiscountedOrders) Candidates(ctx context.Context, src ActivitySource, w Window, _ Entity) ([]int64, error) {
	counts, err := src.DiscountedOrderCounts(ctx, w.Start)
	if err != nil {
		return nil, fmt.Errorf("discounted order counts: %w", err)
	}
	sorted := append([]UserCount(nil), counts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	return registered(sorted, func(n int) bool { return n > minDiscountedOrderCount }), nil
}

func (MostDiscountedOrders) AvailableReports() []Report {
	return []Report{ReportCartAdditions, ReportPurchases, ReportProductViews}
}

// MostUsedPaymentMethods selects registered users with more than five
// completed orders paid with one payment method.
type MostUsedPaymentMethods struct{ Base }

func (MostUsedPaymentMethods) Kind() Kind               { return KindMostUsedPaymentMethods }
func (MostUsedPaymentMethods) DisplayName() string      { return "Most Used Payment Methods" }
func (MostUsedPaymentMethods) Timeframe() time.Duration { return month }
func (MostUsedPaymentMethods) EntityType() string       { return EntityPaymentMethod }

func (MostUsedPaymentMethods) Candidates(ctx context.Context, src ActivitySource, w Window, e Entity) ([]int64, error) {
	counts, err := src.PaymentMethodOrderCounts(ctx, e.ID, w.Start)
	if err != nil {
		return nil, fmt.Errorf("payment method order counts: %w", err)
	}
	return registered(counts, func(n int) bool { return n > minPaymentMethodOrders }), nil
}

func (MostUsedPaymentMethods) TopEntities(ctx context.Context, src ActivitySource, w Window) ([]EntityCount, error) {
	usage, err := src.PaymentMethodUsage(ctx, w.Start)
	if err != nil {
		return nil, fmt.Errorf("payment method usage: %w", err)
	}
	return TopEntities(usage, topPaymentMethodCount), nil
}

func (MostUsedPaymentMethods) AvailableReports() []Report {
	return []Report{ReportPurchases}
}

// MostSearchedKeyword selects registered users who searched one keyword more
// than five times.
type MostSearchedKeyword struct{ Base }

func (MostSearchedKeyword) Kind() Kind               { return KindMostSearchedKeyword }
func (MostSearchedKeyword) DisplayName() string      { return "Most Searched Keyword" }
func (MostSearchedKeyword) Timeframe() time.Duration { return month }

func (MostSearchedKeyword) Candidates(ctx context.Context, src ActivitySource, w Window, e Entity) ([]int64, error) {
	counts, err := src.SearchCounts(ctx, e.Keyword, w.Start)
	if err != nil {
		return nil, fmt.Errorf("search counts: %w", err)
	}
	return userActors(counts, func(n int) bool { return n > minSearchCount }), nil
}

// userActors keeps non-anonymous actors of the user principal type whose
// count passes keep.
func userActors(counts []ActorCount, keep func(int) bool) []int64 {
	out := make([]int64, 0, len(counts))
	for _, c := range counts {
		if c.ActorID == nil || c.ActorType != UserPrincipalType {
			continue
		}
		if keep(c.Count) {
			out = append(out, *c.ActorID)
		}
	}
	return out
}

// registered drops guest rows and rows whose count fails keep.
func registered(counts []UserCount, keep func(int) bool) []int64 {
	out := make([]int64, 0, len(counts))
	for _, c := range counts {
		if c.UserID == nil {
			continue
		}
		if keep(c.Count) {
			out = append(out, *c.UserID)
		}
	}
	return out
}

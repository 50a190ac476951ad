package audience

import (
	"context"
	"fmt"
	"time"
)

// Report names a post-send behaviour count a segment's campaigns can carry.
type Report string

const (
	ReportLogIns        Report = "log_ins_by"
	ReportPurchases     Report = "purchases_by"
	ReportCartAdditions Report = "cart_additions_by"
	ReportProductViews  Report = "product_views_by"
)

const month = 30 * 24 * time.Hour

// Variant is one audience selection rule.
type Variant interface {
	Kind() Kind
	DisplayName() string
	// Timeframe is the lookback; zero means the configured default.
	Timeframe() time.Duration
	Candidates(ctx context.Context, src ActivitySource, w Window, e Entity) ([]int64, error)
	AvailableReports() []Report
}

// EntityRanker is implemented by variants that keep one segment per top entity.
type EntityRanker interface {
	Variant
	EntityType() string
	TopEntities(ctx context.Context, src ActivitySource, w Window) ([]EntityCount, error)
}

// Base is the abstract variant every concrete rule overrides.
type Base struct{}

func (Base) Kind() Kind               { return KindList }
func (Base) DisplayName() string      { return "List" }
func (Base) Timeframe() time.Duration { return 0 }

func (Base) Candidates(context.Context, ActivitySource, Window, Entity) ([]int64, error) {
	return nil, ErrNotImplemented
}

func (Base) AvailableReports() []Report {
	return []Report{ReportCartAdditions, ReportLogIns, ReportProductViews, ReportPurchases}
}

var variants = map[Kind]Variant{
	KindList:                   Base{},
	KindLeastActiveUsers:       LeastActiveUsers{},
	KindFavourableProducts:     FavourableProducts{},
	KindMostDiscountedOrders:   MostDiscountedOrders{},
	KindMostUsedPaymentMethods: MostUsedPaymentMethods{},
	KindMostSearchedKeyword:    MostSearchedKeyword{},
}

// Lookup returns the variant registered for kind.
func Lookup(kind Kind) (Variant, error) {
	v, ok := variants[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	return v, nil
}

// Generated lists the concrete kinds the periodic generation pass maintains.
// Keyword segments are only created on request.
func Generated() []Variant {
	return []Variant{
		LeastActiveUsers{},
		MostDiscountedOrders{},
		FavourableProducts{},
		MostUsedPaymentMethods{},
	}
}

// DisplayName builds the list name shown on the platform.
func DisplayName(v Variant, qualifier string) string {
	if qualifier == "" {
		return v.DisplayName()
	}
	return v.DisplayName() + " - " + qualifier
}

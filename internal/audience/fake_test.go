package audience

import (
	"context"
	"time"
)

type pageEvent struct {
	actorID   *int64
	actorType string
	keyword   string
	at        time.Time
}

// fakeSource aggregates raw events the way the store's GROUP BY queries do.
type fakeSource struct {
	events          []pageEvent
	productBuyers   map[int64][]UserCount
	discounted      []UserCount
	paymentOrders   map[int64][]UserCount
	productSales    []EntityCount
	paymentUsage    []EntityCount
	emails          map[int64]string
	err             error
	gotSince        time.Time
	gotPaymentID    int64
	gotKeyword      string
	resolveRequests [][]int64
}

func id(v int64) *int64 { return &v }

func (f *fakeSource) group(since time.Time, match func(pageEvent) bool) []ActorCount {
	type key struct {
		id   int64
		typ  string
		anon bool
	}
	idx := map[key]int{}
	var out []ActorCount
	for _, e := range f.events {
		if e.at.Before(since) || !match(e) {
			continue
		}
		k := key{typ: e.actorType, anon: e.actorID == nil}
		if e.actorID != nil {
			k.id = *e.actorID
		}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, ActorCount{ActorID: e.actorID, ActorType: e.actorType})
		}
		out[i].Count++
	}
	return out
}

func (f *fakeSource) PageViewCounts(_ context.Context, since time.Time) ([]ActorCount, error) {
	f.gotSince = since
	return f.group(since, func(pageEvent) bool { return true }), f.err
}

func (f *fakeSource) SearchCounts(_ context.Context, keyword string, since time.Time) ([]ActorCount, error) {
	f.gotSince, f.gotKeyword = since, keyword
	return f.group(since, func(e pageEvent) bool { return e.keyword == keyword }), f.err
}

func (f *fakeSource) ProductBuyers(_ context.Context, productID int64, since time.Time) ([]UserCount, error) {
	f.gotSince = since
	return f.productBuyers[productID], f.err
}

func (f *fakeSource) DiscountedOrderCounts(_ context.Context, since time.Time) ([]UserCount, error) {
	f.gotSince = since
	return f.discounted, f.err
}

func (f *fakeSource) PaymentMethodOrderCounts(_ context.Context, paymentMethodID int64, since time.Time) ([]UserCount, error) {
	f.gotSince, f.gotPaymentID = since, paymentMethodID
	return f.paymentOrders[paymentMethodID], f.err
}

func (f *fakeSource) ProductSales(_ context.Context, since time.Time) ([]EntityCount, error) {
	f.gotSince = since
	return f.productSales, f.err
}

func (f *fakeSource) PaymentMethodUsage(_ context.Context, since time.Time) ([]EntityCount, error) {
	f.gotSince = since
	return f.paymentUsage, f.err
}

func (f *fakeSource) UserEmails(_ context.Context, ids []int64) (map[int64]string, error) {
	f.resolveRequests = append(f.resolveRequests, ids)
	out := map[int64]string{}
	for _, i := range ids {
		if e, ok := f.emails[i]; ok {
			out[i] = e
		}
	}
	return out, nil
}

package audience

import (
	"fmt"
	"strings"
	"time"
)

// Kind tags the selection rule of a segment.
type Kind string

const (
	KindList                   Kind = "list"
	KindLeastActiveUsers       Kind = "least_active_users"
	KindFavourableProducts     Kind = "favourable_products"
	KindMostDiscountedOrders   Kind = "most_discounted_orders"
	KindMostUsedPaymentMethods Kind = "most_used_payment_methods"
	KindMostSearchedKeyword    Kind = "most_searched_keyword"
)

const (
	EntityProduct       = "Spree::Product"
	EntityPaymentMethod = "Spree::PaymentMethod"

	// UserPrincipalType is the actor type recorded on events made by registered users.
	UserPrincipalType = "Spree::User"
)

// Entity scopes a segment to one product, payment method or search keyword.
type Entity struct {
	ID      int64  `json:"entity_id,omitempty"`
	Type    string `json:"entity_type,omitempty"`
	Keyword string `json:"searched_keyword,omitempty"`
}

func (e Entity) IsZero() bool { return e.ID == 0 && e.Type == "" && e.Keyword == "" }

// Segment mirrors one list on the marketing platform.
type Segment struct {
	ID        int64     `json:"id"`
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Entity    Entity    `json:"entity"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Pending reports whether the platform list of s has not been created yet.
func (s Segment) Pending() bool { return s.UID == "" }

// Validate checks a segment linked to its platform list.
func (s Segment) Validate() error {
	if strings.TrimSpace(s.UID) == "" {
		return fmt.Errorf("%w: uid is required", ErrInvalidSegment)
	}
	return s.ValidateFields()
}

// ValidateFields checks everything Validate does except the uid, which a
// pending segment does not have yet.
func (s Segment) ValidateFields() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSegment)
	}
	return ValidateScope(s.Kind, s.Entity)
}

// ValidateScope checks that kind is known and carries the entity it needs.
func ValidateScope(kind Kind, e Entity) error {
	switch kind {
	case KindLeastActiveUsers, KindMostDiscountedOrders:
		return nil
	case KindFavourableProducts, KindMostUsedPaymentMethods:
		if e.ID <= 0 {
			return fmt.Errorf("%w: %s requires entity_id", ErrInvalidSegment, kind)
		}
		return nil
	case KindMostSearchedKeyword:
		if strings.TrimSpace(e.Keyword) == "" {
			return fmt.Errorf("%w: %s requires searched_keyword", ErrInvalidSegment, kind)
		}
		return nil
	case KindList:
		return fmt.Errorf("%w: %s is abstract", ErrInvalidSegment, kind)
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidSegment, ErrUnknownKind, kind)
	}
}

// Contact is the platform-side record of an email on a list.
type Contact struct {
	ID     int64
	UID    string
	Email  string
	UserID *int64
}

// Audience maps email to internal user id.
type Audience map[string]int64

func (a Audience) Emails() []string {
	out := make([]string, 0, len(a))
	for e := range a {
		out = append(out, e)
	}
	return out
}

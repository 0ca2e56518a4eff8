package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// InteractionType enumerates the product events the tracker records.
type InteractionType string

const (
	InteractionView       InteractionType = "view"
	InteractionCartAdd    InteractionType = "cart_add"
	InteractionCartRemove InteractionType = "cart_remove"
	InteractionFavorite   InteractionType = "favorite"
	InteractionPurchase   InteractionType = "purchase"
)

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionView, InteractionCartAdd, InteractionCartRemove, InteractionFavorite, InteractionPurchase:
		return true
	}
	return false
}

// InteractionMetadata is the closed set of optional attributes an interaction
// may carry. Which fields apply depends on the interaction type:
//
//	view:        From
//	cart_add:    Quantity, Source
//	cart_remove: Reason
//	purchase:    OrderID, Quantity, Price
type InteractionMetadata struct {
	From     string  `json:"from,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
	Source   string  `json:"source,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	OrderID  string  `json:"order_id,omitempty"`
	Price    float64 `json:"price,omitempty"`
}

// ForType returns a copy holding only the fields meaningful for t, with
// defaults applied.
func (m InteractionMetadata) ForType(t InteractionType) InteractionMetadata {
	switch t {
	case InteractionView:
		from := m.From
		if from == "" {
			from = "direct"
		}
		return InteractionMetadata{From: from}
	case InteractionCartAdd:
		qty := m.Quantity
		if qty <= 0 {
			qty = 1
		}
		return InteractionMetadata{Quantity: qty, Source: m.Source}
	case InteractionCartRemove:
		return InteractionMetadata{Reason: m.Reason}
	case InteractionPurchase:
		return InteractionMetadata{OrderID: m.OrderID, Quantity: m.Quantity, Price: m.Price}
	default:
		return InteractionMetadata{}
	}
}

// Value implements driver.Valuer so metadata is stored as jsonb.
func (m InteractionMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *InteractionMetadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = InteractionMetadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
}

// ProductInteraction is one recorded user or session action on a product.
// Records are immutable except for a view's Duration and ScrollDepth, which
// the matching page-exit event fills in once.
type ProductInteraction struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id,omitempty"`
	SessionID   string              `json:"session_id"`
	ProductID   string              `json:"product_id"`
	Type        InteractionType     `json:"interaction_type"`
	Duration    *int                `json:"duration,omitempty"`
	ScrollDepth *int                `json:"scroll_depth,omitempty"`
	Metadata    InteractionMetadata `json:"metadata"`
	CreatedAt   time.Time           `json:"created_at"`
}

// InteractionEvent is published on the event bus after an interaction is
// stored.
type InteractionEvent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	SessionID string          `json:"session_id"`
	ProductID string          `json:"product_id"`
	Type      InteractionType `json:"interaction_type"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewInteractionEvent builds the bus event for a stored interaction.
func NewInteractionEvent(i *ProductInteraction) *InteractionEvent {
	return &InteractionEvent{
		ID:        i.ID,
		UserID:    i.UserID,
		SessionID: i.SessionID,
		ProductID: i.ProductID,
		Type:      i.Type,
		Timestamp: i.CreatedAt,
	}
}

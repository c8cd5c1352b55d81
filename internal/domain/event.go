package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated    = "order.created"
	EventOrderCancelled  = "order.cancelled"
	EventPaymentVerified = "payment.verified"
	EventPaymentFailed   = "payment.failed"
)

// OrderEvent is an outbox row waiting to be published.
type OrderEvent struct {
	ID          string     `bson:"_id"`
	AggregateID string     `bson:"aggregate_id"`
	EventType   string     `bson:"event_type"`
	Payload     []byte     `bson:"payload"`
	CreatedAt   time.Time  `bson:"created_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty"`
}

func NewOrderEvent(eventType string, order *Order) (*OrderEvent, error) {
	payload, err := json.Marshal(map[string]any{
		"order_id":       order.ID,
		"user_id":        order.UserID,
		"items":          order.Items,
		"total_amount":   order.TotalAmount,
		"order_status":   order.OrderStatus,
		"payment_status": order.PaymentStatus,
		"occurred_at":    time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &OrderEvent{
		ID:          uuid.NewString(),
		AggregateID: order.ID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now(),
	}, nil
}

package domain

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "Pending"
	OrderStatusPaid           OrderStatus = "Paid"
	OrderStatusShipped        OrderStatus = "Shipped"
	OrderStatusDelivered      OrderStatus = "Delivered"
	OrderStatusCancelled      OrderStatus = "Cancelled"
	OrderStatusCashOnDelivery OrderStatus = "Cash on Delivery"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusPaid, OrderStatusCashOnDelivery, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusCashOnDelivery: {OrderStatusPaid, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusPaid:           {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusDelivered, OrderStatusCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusCashOnDelivery:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether an administrator may move an order from s
// to next. Staying in the same status is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s == PaymentStatusPaid || s == PaymentStatusFailed
}

type Address struct {
	Street  string `bson:"street" json:"street"`
	City    string `bson:"city" json:"city"`
	Zip     string `bson:"zip" json:"zip"`
	Country string `bson:"country" json:"country"`
}

// Missing lists the names of blank address fields.
func (a Address) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"street", a.Street},
		{"city", a.City},
		{"zip", a.Zip},
		{"country", a.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// OrderItem is a snapshot taken at checkout; it never follows catalog changes.
type OrderItem struct {
	ProductID    string  `bson:"product_id" json:"productId"`
	Quantity     int     `bson:"quantity" json:"quantity"`
	PriceAtOrder float64 `bson:"price_at_order" json:"priceAtOrder"`
	Title        string  `bson:"title" json:"title"`
}

type Order struct {
	ID            string        `bson:"_id" json:"id"`
	UserID        string        `bson:"user_id" json:"userId"`
	Items         []OrderItem   `bson:"items" json:"items"`
	TotalAmount   float64       `bson:"total_amount" json:"totalAmount"`
	Address       Address       `bson:"address" json:"address"`
	OrderStatus   OrderStatus   `bson:"order_status" json:"orderStatus"`
	PaymentStatus PaymentStatus `bson:"payment_status" json:"paymentStatus"`
	PaymentID     string        `bson:"payment_id,omitempty" json:"paymentId,omitempty"`
	// CheckoutKey names the cart version the order was built from; it is
	// unique, so one cart state yields at most one order.
	CheckoutKey   string        `bson:"checkout_key,omitempty" json:"-"`
	CreatedAt     time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updated_at" json:"updatedAt"`
}

// OrderUpdate carries an administrative override; nil fields are left as is.
type OrderUpdate struct {
	OrderStatus   *OrderStatus   `json:"orderStatus,omitempty"`
	PaymentStatus *PaymentStatus `json:"paymentStatus,omitempty"`
}

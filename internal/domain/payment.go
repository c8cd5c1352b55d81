package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinorUnits converts an amount to the smallest currency unit, rounding half
// away from zero.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

type PaymentRecordStatus string

const (
	PaymentCreated  PaymentRecordStatus = "created"
	PaymentVerified PaymentRecordStatus = "verified"
	PaymentFailed   PaymentRecordStatus = "failed"
)

func (s PaymentRecordStatus) IsTerminal() bool {
	return s == PaymentVerified || s == PaymentFailed
}

// Payment tracks one gateway intent for one order. It leaves PaymentCreated
// exactly once.
type Payment struct {
	ID               string              `bson:"_id" json:"id"`
	OrderID          string              `bson:"order_id" json:"orderId"`
	Amount           float64             `bson:"amount" json:"amount"`
	AmountMinor      int64               `bson:"amount_minor" json:"amountMinor"`
	Currency         string              `bson:"currency" json:"currency"`
	GatewayOrderID   string              `bson:"gateway_order_id" json:"gatewayOrderId"`
	GatewayPaymentID string              `bson:"gateway_payment_id,omitempty" json:"gatewayPaymentId,omitempty"`
	Signature        string              `bson:"signature,omitempty" json:"-"`
	Status           PaymentRecordStatus `bson:"status" json:"status"`
	CreatedAt        time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updated_at" json:"updatedAt"`
}

// VerifyCallback is what the client relays back after completing payment.
type VerifyCallback struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

type Intent struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

type VerifyResult struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
}

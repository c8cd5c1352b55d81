package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PaymentGateway opens payment intents with the external provider.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount int64, currency, reference string) (*Intent, error)
}

// Intent is the provider-side handle. Amount is in minor currency units.
type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status,omitempty"`
}

// Sign returns hex(HMAC_SHA256(secret, gatewayOrderID + "|" + gatewayPaymentID)),
// the value the provider attaches to a completed payment.
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := Sign(secret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

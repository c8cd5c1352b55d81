package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type paymentRepository struct {
	collection *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) PaymentRepository {
	return &paymentRepository{
		collection: db.Collection(paymentsCollection),
	}
}

func (m *paymentRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if _, err := m.collection.InsertOne(ctx, payment); err != nil {
		return duplicateAware(err, "failed to create payment")
	}
	return nil
}

func (m *paymentRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error) {
	return m.findOne(ctx, bson.M{"gateway_order_id": gatewayOrderID})
}

func (m *paymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return m.findOne(ctx, bson.M{"order_id": orderID})
}

func (m *paymentRepository) findOne(ctx context.Context, filter bson.M) (*domain.Payment, error) {
	var payment domain.Payment
	err := m.collection.FindOne(ctx, filter).Decode(&payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (m *paymentRepository) MarkVerified(ctx context.Context, paymentID, gatewayPaymentID, signature string) error {
	return m.transition(ctx, paymentID, bson.M{
		"status":             domain.PaymentVerified,
		"gateway_payment_id": gatewayPaymentID,
		"signature":          signature,
	})
}

func (m *paymentRepository) MarkFailed(ctx context.Context, paymentID string) error {
	return m.transition(ctx, paymentID, bson.M{"status": domain.PaymentFailed})
}

// transition moves a payment out of "created"; the status filter makes the
// first writer win.
func (m *paymentRepository) transition(ctx context.Context, paymentID string, set bson.M) error {
	set["updated_at"] = time.Now()
	filter := bson.M{"_id": paymentID, "status": domain.PaymentCreated}

	result, err := m.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return duplicateAware(err, "failed to update payment")
	}
	if result.MatchedCount == 1 {
		return nil
	}

	count, err := m.collection.CountDocuments(ctx, bson.M{"_id": paymentID})
	if err != nil {
		return fmt.Errorf("failed to check payment: %w", err)
	}
	if count == 0 {
		return ErrPaymentNotFound
	}
	return ErrStatusConflict
}

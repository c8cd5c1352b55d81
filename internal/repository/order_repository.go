package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type orderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) OrderRepository {
	return &orderRepository{
		collection: db.Collection(ordersCollection),
	}
}

func (m *orderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	if _, err := m.collection.InsertOne(ctx, order); err != nil {
		return duplicateAware(err, "failed to create order")
	}
	return nil
}

func (m *orderRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := m.collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (m *orderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return m.find(ctx, bson.M{"user_id": userID})
}

func (m *orderRepository) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	return m.find(ctx, bson.M{})
}

func (m *orderRepository) find(ctx context.Context, filter bson.M) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]*domain.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (m *orderRepository) SetPayment(ctx context.Context, orderID, paymentID string) error {
	update := bson.M{
		"$set": bson.M{
			"payment_id": paymentID,
			"updated_at": time.Now(),
		},
	}
	return m.updateOne(ctx, bson.M{"_id": orderID}, update, "failed to link payment")
}

// payableStatuses are the order statuses a verified payment may advance to
// Paid. Later fulfillment statuses keep their value.
var payableStatuses = bson.A{domain.OrderStatusPending, domain.OrderStatusCashOnDelivery}

func (m *orderRepository) MarkPaid(ctx context.Context, orderID string) error {
	filter := bson.M{
		"_id":          orderID,
		"order_status": bson.M{"$ne": domain.OrderStatusCancelled},
	}
	advance := bson.M{"$cond": bson.A{
		bson.M{"$in": bson.A{"$order_status", payableStatuses}},
		domain.OrderStatusPaid,
		"$order_status",
	}}
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"payment_status": domain.PaymentStatusPaid,
		"order_status":   advance,
		"updated_at":     time.Now(),
	}}}}
	return m.guardedUpdate(ctx, orderID, filter, update, "failed to mark order paid")
}

func (m *orderRepository) MarkPaymentFailed(ctx context.Context, orderID string) error {
	filter := bson.M{
		"_id":            orderID,
		"payment_status": domain.PaymentStatusPending,
		"order_status":   bson.M{"$ne": domain.OrderStatusCancelled},
	}
	update := bson.M{"$set": bson.M{
		"payment_status": domain.PaymentStatusFailed,
		"updated_at":     time.Now(),
	}}
	return m.guardedUpdate(ctx, orderID, filter, update, "failed to mark order payment failed")
}

func (m *orderRepository) UpdateStatus(ctx context.Context, orderID string, from domain.OrderStatus, update domain.OrderUpdate) (*domain.Order, error) {
	set := bson.M{"updated_at": time.Now()}
	if update.OrderStatus != nil {
		set["order_status"] = *update.OrderStatus
	}
	if update.PaymentStatus != nil {
		set["payment_status"] = *update.PaymentStatus
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var order domain.Order
	err := m.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": orderID, "order_status": from},
		bson.M{"$set": set},
		opts,
	).Decode(&order)
	if err == nil {
		return &order, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if _, getErr := m.GetOrder(ctx, orderID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrStatusConflict
}

// guardedUpdate tells a missing order apart from one the filter rejected.
func (m *orderRepository) guardedUpdate(ctx context.Context, orderID string, filter bson.M, update any, op string) error {
	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if result.MatchedCount > 0 {
		return nil
	}
	if _, err := m.GetOrder(ctx, orderID); err != nil {
		return err
	}
	return ErrStatusConflict
}

func (m *orderRepository) updateOne(ctx context.Context, filter, update bson.M, op string) error {
	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if result.MatchedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

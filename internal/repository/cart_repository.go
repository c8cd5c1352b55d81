package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type cartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) CartRepository {
	return &cartRepository{
		collection: db.Collection(cartsCollection),
	}
}

func (m *cartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart
	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

func (m *cartRepository) CreateCart(ctx context.Context, cart *domain.Cart) error {
	if cart.ID == "" {
		cart.ID = uuid.NewString()
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	if _, err := m.collection.InsertOne(ctx, cart); err != nil {
		return duplicateAware(err, "failed to create cart")
	}
	return nil
}

func (m *cartRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	filter := bson.M{"user_id": cart.UserID, "version": cart.Version}
	if cart.Version == 0 {
		// carts written before versioning have no field yet
		filter["version"] = bson.M{"$in": bson.A{0, nil}}
	}

	updatedAt := time.Now()
	update := bson.M{
		"$set": bson.M{
			"items":          cart.Items,
			"total_quantity": cart.TotalQuantity,
			"total_amount":   cart.TotalAmount,
			"updated_at":     updatedAt,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	if result.MatchedCount == 0 {
		n, err := m.collection.CountDocuments(ctx, bson.M{"user_id": cart.UserID})
		if err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}
		if n == 0 {
			return ErrCartNotFound
		}
		return ErrStatusConflict
	}

	cart.UpdatedAt = updatedAt
	cart.Version++
	return nil
}

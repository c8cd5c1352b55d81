package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type eventRepository struct {
	collection *mongo.Collection
}

func NewEventRepository(db *mongo.Database) EventRepository {
	return &eventRepository{
		collection: db.Collection(eventsCollection),
	}
}

func (m *eventRepository) AppendEvent(ctx context.Context, event *domain.OrderEvent) error {
	if _, err := m.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (m *eventRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OrderEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := m.collection.Find(ctx, bson.M{"processed_at": bson.M{"$exists": false}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]*domain.OrderEvent, 0, limit)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

func (m *eventRepository) MarkEventAsProcessed(ctx context.Context, eventID string) error {
	update := bson.M{"$set": bson.M{"processed_at": time.Now()}}
	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": eventID}, update); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}

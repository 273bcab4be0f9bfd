package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"stockwatch_backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB database and collection names
const (
	MongoDBName             = "stockwatch"
	MongoEndpointCollection = "push_endpoints"
)

// EndpointRegistry is the MongoDB-backed push endpoint store. Endpoints are
// written by the device-registration flow; this backend reads them per user
// and deletes the ones the push transport reports as permanently invalid.
type EndpointRegistry struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewEndpointRegistry connects to MongoDB and returns the endpoint registry.
func NewEndpointRegistry(ctx context.Context, uri string) (*EndpointRegistry, error) {
	if uri == "" {
		return nil, fmt.Errorf("MONGODB_URI not configured")
	}

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("MongoDB ping failed: %w", err)
	}

	log.Println("Push endpoint registry connected to MongoDB")
	return &EndpointRegistry{
		client:     client,
		collection: client.Database(MongoDBName).Collection(MongoEndpointCollection),
	}, nil
}

// ListByUser returns all registered push endpoints for a user.
func (r *EndpointRegistry) ListByUser(ctx context.Context, userID uint) ([]models.PushEndpoint, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints for user %d: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var endpoints []models.PushEndpoint
	if err := cursor.All(ctx, &endpoints); err != nil {
		return nil, fmt.Errorf("failed to decode endpoints for user %d: %w", userID, err)
	}
	return endpoints, nil
}

// DeleteByTokens removes the given tokens from a user's endpoint set.
func (r *EndpointRegistry) DeleteByTokens(ctx context.Context, userID uint, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	result, err := r.collection.DeleteMany(ctx, bson.M{
		"user_id": userID,
		"token":   bson.M{"$in": tokens},
	})
	if err != nil {
		return fmt.Errorf("failed to delete endpoints for user %d: %w", userID, err)
	}

	log.Printf("Removed %d invalid push endpoints for user %d", result.DeletedCount, userID)
	return nil
}

// Close disconnects the MongoDB client.
func (r *EndpointRegistry) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hive-api/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collUsers    = "users"
	collSessions = "sessions"
	collOTPs     = "otps"
)

// NewClient connects to MongoDB and pings the primary. Friend-edge writes use
// multi-document transactions, so the deployment must be a replica set.
func NewClient(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Bootstrap creates the indexes every repository relies on. Existing indexes
// with the same definition are left alone.
func Bootstrap(ctx context.Context, db *mongo.Database) {
	createIndexes(ctx, db.Collection(collUsers),
		mongo.IndexModel{
			Keys:    bson.D{{Key: fieldUsernameLower, Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_lower_unique"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: fieldEmail, Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
	)
	createIndexes(ctx, db.Collection(collSessions),
		mongo.IndexModel{
			Keys:    bson.D{{Key: fieldUserID, Value: 1}},
			Options: options.Index().SetName("user_id_idx"),
		},
	)
	createIndexes(ctx, db.Collection(collOTPs),
		mongo.IndexModel{
			Keys:    bson.D{{Key: fieldExpiresAt, Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
		},
	)
}

func createIndexes(ctx context.Context, coll *mongo.Collection, models ...mongo.IndexModel) {
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		slog.Warn("could not create indexes", "collection", coll.Name(), "err", err)
		return
	}
	slog.Info("indexes ready", "collection", coll.Name())
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hive-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type SessionRepo struct {
	coll *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) *SessionRepo {
	return &SessionRepo{coll: db.Collection(collSessions)}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	if _, err := r.coll.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s domain.Session
	if err := r.coll.FindOne(ctx, bson.M{fieldID: sessionID}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) Disable(ctx context.Context, sessionID string) error {
	_, err := r.coll.UpdateByID(ctx, sessionID, disableUpdate())
	return err
}

// SoftDeleteByUser disables every session belonging to userID.
func (r *SessionRepo) SoftDeleteByUser(ctx context.Context, userID string) error {
	_, err := r.coll.UpdateMany(ctx, bson.M{fieldUserID: userID}, disableUpdate())
	return err
}

func disableUpdate() bson.M {
	return bson.M{"$set": bson.M{fieldEnable: false, fieldUpdatedAt: time.Now().UTC()}}
}

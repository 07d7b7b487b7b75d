package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/hive-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// addRequestFilter matches the receiver only while it holds no entry from
// senderID and is not already friends with them.
func addRequestFilter(receiverID, senderID string) bson.M {
	return bson.M{
		fieldID:               bson.M{"$eq": receiverID},
		requestPath(senderID): bson.M{"$exists": false},
		fieldFriends:          bson.M{"$ne": senderID},
	}
}

func pendingRequestFilter(userID, senderID string) bson.M {
	return bson.M{
		fieldID: userID,
		requestPath(senderID) + "." + fieldStatus: domain.RequestPending,
	}
}

func acceptUpdate(senderID string, now time.Time) bson.M {
	return bson.M{
		"$unset":    bson.M{requestPath(senderID): ""},
		"$addToSet": bson.M{fieldFriends: senderID},
		"$set":      bson.M{fieldUpdatedAt: now},
	}
}

func membershipUpdate(op, attr, member string, now time.Time) bson.M {
	return bson.M{
		op:     bson.M{attr: member},
		"$set": bson.M{fieldUpdatedAt: now},
	}
}

// AddFriendRequest stores a pending request on the receiver. It fails with
// ErrConflict when an entry from the sender already exists, the two are
// already friends, or the receiver is gone.
func (r *UserRepo) AddFriendRequest(ctx context.Context, receiverID string, req domain.FriendRequest) error {
	res, err := r.coll.UpdateOne(ctx, addRequestFilter(receiverID, req.Sender), bson.M{
		"$set": bson.M{
			requestPath(req.Sender): req,
			fieldUpdatedAt:          time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("add friend request: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("friend request from %s: %w", req.Sender, domain.ErrConflict)
	}
	return nil
}

// AcceptFriendRequest removes the pending entry and creates the symmetric
// edge in one transaction.
func (r *UserRepo) AcceptFriendRequest(ctx context.Context, userID, senderID string) error {
	return r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		now := time.Now().UTC()
		res, err := r.coll.UpdateOne(sc, pendingRequestFilter(userID, senderID), acceptUpdate(senderID, now))
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("pending request from %s: %w", senderID, domain.ErrNotFound)
		}
		res, err = r.coll.UpdateByID(sc, senderID, membershipUpdate("$addToSet", fieldFriends, userID, now))
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("sender %s: %w", senderID, domain.ErrNotFound)
		}
		return nil
	})
}

func (r *UserRepo) RemoveFriendRequest(ctx context.Context, userID, senderID string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{fieldID: userID, requestPath(senderID): bson.M{"$exists": true}},
		bson.M{
			"$unset": bson.M{requestPath(senderID): ""},
			"$set":   bson.M{fieldUpdatedAt: time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("remove friend request: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("request from %s: %w", senderID, domain.ErrNotFound)
	}
	return nil
}

// RemoveFriend drops the edge from both sides in one transaction. Removing a
// non-existent edge is not an error.
func (r *UserRepo) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		now := time.Now().UTC()
		for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
			res, err := r.coll.UpdateByID(sc, pair[0], membershipUpdate("$pull", fieldFriends, pair[1], now))
			if err != nil {
				return err
			}
			if res.MatchedCount == 0 {
				return fmt.Errorf("user %s: %w", pair[0], domain.ErrNotFound)
			}
		}
		return nil
	})
}

func (r *UserRepo) Block(ctx context.Context, userID, blockedID string) error {
	return r.updateMembership(ctx, userID, membershipUpdate("$addToSet", fieldBlocked, blockedID, time.Now().UTC()))
}

func (r *UserRepo) Unblock(ctx context.Context, userID, blockedID string) error {
	return r.updateMembership(ctx, userID, membershipUpdate("$pull", fieldBlocked, blockedID, time.Now().UTC()))
}

func (r *UserRepo) updateMembership(ctx context.Context, userID string, update bson.M) error {
	res, err := r.coll.UpdateByID(ctx, userID, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepo) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

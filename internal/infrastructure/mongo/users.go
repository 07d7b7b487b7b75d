package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hive-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepo stores users in the users collection. Friend-graph mutations
// live in friends.go on the same type.
type UserRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewUserRepo(client *mongo.Client, db *mongo.Database) *UserRepo {
	return &UserRepo{client: client, coll: db.Collection(collUsers)}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	// $addToSet and $pull reject null fields, so collections start empty.
	if u.Friends == nil {
		u.Friends = []string{}
	}
	if u.Blocked == nil {
		u.Blocked = []string{}
	}
	if u.FriendRequests == nil {
		u.FriendRequests = map[string]domain.FriendRequest{}
	}
	_, err := r.coll.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("user %s: %w", u.Username, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{fieldID: userID})
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{fieldUsernameLower: strings.ToLower(username)})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{fieldEmail: strings.ToLower(email)})
}

func (r *UserRepo) GetMany(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{fieldID: bson.M{"$in": ids}}, nil)
}

// SearchByUsername returns up to limit users whose username contains query,
// ignoring case. query is matched literally.
func (r *UserRepo) SearchByUsername(ctx context.Context, query string, limit int) ([]domain.User, error) {
	return r.find(ctx, searchFilter(query), options.Find().SetLimit(int64(limit)))
}

func searchFilter(query string) bson.M {
	return bson.M{fieldUsernameLower: bson.M{
		"$regex":   regexp.QuoteMeta(strings.ToLower(query)),
		"$options": "i",
	}}
}

func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	set := bson.M{fieldUpdatedAt: time.Now().UTC()}
	for k, v := range updates {
		set[k] = v
	}
	res, err := r.coll.UpdateByID(ctx, userID, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepo) SetStatus(ctx context.Context, userID string, status domain.PresenceStatus) error {
	return r.Update(ctx, userID, map[string]interface{}{fieldStatus: status})
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var u domain.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.User, error) {
	var findOpts []*options.FindOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}
	cur, err := r.coll.Find(ctx, filter, findOpts...)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cur.Close(ctx)

	var users []domain.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

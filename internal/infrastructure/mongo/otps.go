package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hive-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// otpDoc keeps expires_at as a BSON date so the TTL index can reap it.
type otpDoc struct {
	Email         string    `bson:"_id"`
	Code          string    `bson:"code"`
	Mode          string    `bson:"mode"`
	ExpiresAt     time.Time `bson:"expires_at"`
	ExpiresAtNano int64     `bson:"expires_at_ns"`
}

func toOTPDoc(o *domain.OTP) otpDoc {
	return otpDoc{Email: o.Email, Code: o.Code, Mode: o.Mode, ExpiresAt: time.Unix(o.ExpiresAt, 0).UTC(), ExpiresAtNano: o.ExpiresAtNano}
}

func (d otpDoc) toDomain() *domain.OTP {
	return &domain.OTP{Email: d.Email, Code: d.Code, Mode: d.Mode, ExpiresAt: d.ExpiresAt.Unix(), ExpiresAtNano: d.ExpiresAtNano}
}

type OTPRepo struct {
	coll *mongo.Collection
}

func NewOTPRepo(db *mongo.Database) *OTPRepo {
	return &OTPRepo{coll: db.Collection(collOTPs)}
}

// Put upserts the record, replacing any previous one for the same email.
func (r *OTPRepo) Put(ctx context.Context, o *domain.OTP) error {
	doc := toOTPDoc(o)
	_, err := r.coll.ReplaceOne(ctx, bson.M{fieldID: doc.Email}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert otp: %w", err)
	}
	return nil
}

func (r *OTPRepo) Get(ctx context.Context, email string) (*domain.OTP, error) {
	var doc otpDoc
	if err := r.coll.FindOne(ctx, bson.M{fieldID: email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *OTPRepo) Delete(ctx context.Context, email string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{fieldID: email})
	return err
}

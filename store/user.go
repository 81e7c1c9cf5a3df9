package store

import (
	"context"
	"time"

	"github.com/media-gallery/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.Users().FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := db.Users().FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	res, err := db.Users().InsertOne(ctx, user, options.InsertOne())
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db *DB) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Users().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	cur, err := db.Users().Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetOTP stores a pending OTP on the user, replacing any prior one.
func (db *DB) SetOTP(ctx context.Context, id primitive.ObjectID, code string, expiresAt time.Time) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"otp": bson.M{"code": code, "expiresAt": expiresAt}},
	})
	return err
}

// MarkVerified flips the user to verified and clears the pending OTP.
func (db *DB) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"verified": true},
		"$unset": bson.M{"otp": ""},
	})
	return err
}

// SetResetToken stores the hash of a password reset token, replacing any
// prior pending token.
func (db *DB) SetResetToken(ctx context.Context, id primitive.ObjectID, hash string, expiresAt time.Time) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"resetTokenHash": hash, "resetTokenExpiry": expiresAt},
	})
	return err
}

// ClearResetToken removes a pending reset token, used to roll back a
// ForgotPassword whose email dispatch failed.
func (db *DB) ClearResetToken(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$unset": bson.M{"resetTokenHash": "", "resetTokenExpiry": ""},
	})
	return err
}

// UserByResetTokenHash finds the user holding the given reset token hash.
// Expiry is the caller's concern.
func (db *DB) UserByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	var u models.User
	err := db.Users().FindOne(ctx, bson.M{"resetTokenHash": hash}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ResetPassword replaces the password hash and clears the reset fields in
// one write, so a used token cannot be replayed.
func (db *DB) ResetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"password": passwordHash},
		"$unset": bson.M{"resetTokenHash": "", "resetTokenExpiry": ""},
	})
	return err
}

func (db *DB) UpdateUserRole(ctx context.Context, id primitive.ObjectID, role string) error {
	res, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertOAuthUser creates a verified user for a first OAuth login, or
// backfills the provider fields on an existing account. The returned bool
// reports whether a new user was created.
func (db *DB) UpsertOAuthUser(ctx context.Context, name, email, googleID, avatar, passwordHash string) (*models.User, bool, error) {
	existing, err := db.UserByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		u := &models.User{
			Name:      name,
			Email:     email,
			Password:  passwordHash,
			Role:      models.RoleUser,
			GoogleID:  googleID,
			Avatar:    avatar,
			Verified:  true,
			CreatedAt: time.Now().UTC(),
		}
		id, err := db.CreateUser(ctx, u)
		if err != nil {
			return nil, false, err
		}
		u.ID = id
		return u, true, nil
	}

	set := bson.M{"verified": true}
	if existing.GoogleID == "" {
		set["googleId"] = googleID
		existing.GoogleID = googleID
	}
	if existing.Avatar == "" && avatar != "" {
		set["avatar"] = avatar
		existing.Avatar = avatar
	}
	if _, err := db.Users().UpdateOne(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": set}); err != nil {
		return nil, false, err
	}
	existing.Verified = true
	return existing, false, nil
}

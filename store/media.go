package store

import (
	"context"

	"github.com/media-gallery/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) InsertMedia(ctx context.Context, media *models.Media) (primitive.ObjectID, error) {
	res, err := db.Media().InsertOne(ctx, media, options.InsertOne())
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db *DB) MediaByID(ctx context.Context, id primitive.ObjectID) (*models.Media, error) {
	var m models.Media
	err := db.Media().FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MediaPage is one page of a media listing query.
type MediaPage struct {
	Items []models.Media
	Total int64
}

func mediaFilter(base bson.M, tags []string) bson.M {
	if len(tags) > 0 {
		base["tags"] = bson.M{"$in": tags}
	}
	return base
}

// ListOwnMedia returns the owner's media, newest first, paginated. Page is
// 1-based.
func (db *DB) ListOwnMedia(ctx context.Context, owner primitive.ObjectID, tags []string, page, limit int64) (*MediaPage, error) {
	return db.listMedia(ctx, mediaFilter(bson.M{"uploadedBy": owner}, tags), page, limit)
}

// ListSharedMedia returns media marked shared, newest first, paginated.
func (db *DB) ListSharedMedia(ctx context.Context, tags []string, page, limit int64) (*MediaPage, error) {
	return db.listMedia(ctx, mediaFilter(bson.M{"shared": true}, tags), page, limit)
}

func (db *DB) listMedia(ctx context.Context, filter bson.M, page, limit int64) (*MediaPage, error) {
	opts := options.Find().
		SetSort(bson.M{"createdAt": -1}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cur, err := db.Media().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	items := []models.Media{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	total, err := db.Media().CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &MediaPage{Items: items, Total: total}, nil
}

// AccessibleMedia resolves the requested ids to records the requester may
// read: their own uploads plus anything marked shared. Order of the result
// is unspecified; callers needing input order must reorder.
func (db *DB) AccessibleMedia(ctx context.Context, ids []primitive.ObjectID, requester primitive.ObjectID) ([]models.Media, error) {
	filter := bson.M{
		"_id": bson.M{"$in": ids},
		"$or": []bson.M{
			{"uploadedBy": requester},
			{"shared": true},
		},
	}
	cur, err := db.Media().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var items []models.Media
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// MediaUpdate carries the mutable metadata fields. Nil fields are left
// untouched.
type MediaUpdate struct {
	Title       *string
	Description *string
	Tags        []string
	Shared      *bool
}

func (db *DB) UpdateMedia(ctx context.Context, id primitive.ObjectID, upd MediaUpdate) error {
	set := bson.M{}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Tags != nil {
		set["tags"] = upd.Tags
	}
	if upd.Shared != nil {
		set["shared"] = *upd.Shared
	}
	if len(set) == 0 {
		return nil
	}
	res, err := db.Media().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMedia removes the record and returns its storage key so the caller
// can delete the remote copy.
func (db *DB) DeleteMedia(ctx context.Context, id primitive.ObjectID) (storageKey string, err error) {
	var m models.Media
	err = db.Media().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return m.StorageKey, nil
}

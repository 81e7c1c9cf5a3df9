package store

import (
	"context"

	"github.com/media-gallery/backend/models"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertEmailLog records that a verification or reset email was dispatched.
func (db *DB) InsertEmailLog(ctx context.Context, log *models.EmailLog) error {
	_, err := db.EmailLogs().InsertOne(ctx, log, options.InsertOne())
	return err
}

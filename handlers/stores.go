package handlers

import (
	"context"
	"io"
	"time"

	"github.com/media-gallery/backend/models"
	"github.com/media-gallery/backend/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore is the user persistence surface the auth handlers need.
// Satisfied by *store.DB.
type UserStore interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
	ListUsers(ctx context.Context) ([]models.User, error)
	SetOTP(ctx context.Context, id primitive.ObjectID, code string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id primitive.ObjectID) error
	SetResetToken(ctx context.Context, id primitive.ObjectID, hash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id primitive.ObjectID) error
	UserByResetTokenHash(ctx context.Context, hash string) (*models.User, error)
	ResetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	UpdateUserRole(ctx context.Context, id primitive.ObjectID, role string) error
	UpsertOAuthUser(ctx context.Context, name, email, googleID, avatar, passwordHash string) (*models.User, bool, error)
	InsertEmailLog(ctx context.Context, log *models.EmailLog) error
}

// MediaStore is the media persistence surface. Satisfied by *store.DB.
type MediaStore interface {
	InsertMedia(ctx context.Context, media *models.Media) (primitive.ObjectID, error)
	MediaByID(ctx context.Context, id primitive.ObjectID) (*models.Media, error)
	ListOwnMedia(ctx context.Context, owner primitive.ObjectID, tags []string, page, limit int64) (*store.MediaPage, error)
	ListSharedMedia(ctx context.Context, tags []string, page, limit int64) (*store.MediaPage, error)
	AccessibleMedia(ctx context.Context, ids []primitive.ObjectID, requester primitive.ObjectID) ([]models.Media, error)
	UpdateMedia(ctx context.Context, id primitive.ObjectID, upd store.MediaUpdate) error
	DeleteMedia(ctx context.Context, id primitive.ObjectID) (string, error)
}

// Storage is the remote object store. Satisfied by *service.S3Service.
type Storage interface {
	Upload(ctx context.Context, prefix, originalFilename string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, string, error)
	ObjectURL(key string) string
}

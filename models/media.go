package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Allowed media MIME types.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

// AllowedFileType reports whether the MIME type is in the upload allow-list.
func AllowedFileType(mime string) bool {
	return mime == MIMEJPEG || mime == MIMEPNG
}

type Media struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Tags        []string           `bson:"tags,omitempty" json:"tags"`
	FileURL     string             `bson:"fileUrl" json:"fileUrl"`
	StorageKey  string             `bson:"storageKey" json:"-"` // object key in S3
	UploadedBy  primitive.ObjectID `bson:"uploadedBy" json:"uploadedBy"`
	FileType    string             `bson:"fileType" json:"fileType"` // image/jpeg or image/png
	FileSize    int64              `bson:"fileSize" json:"fileSize"`
	Shared      bool               `bson:"shared" json:"shared"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// ArchiveName is the entry name used when the media is added to a ZIP
// export: title plus an extension inferred from the MIME type. Unrecognized
// types get no extension.
func (m *Media) ArchiveName() string {
	switch m.FileType {
	case MIMEJPEG:
		return m.Title + ".jpg"
	case MIMEPNG:
		return m.Title + ".png"
	default:
		return m.Title
	}
}

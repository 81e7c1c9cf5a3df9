package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Email kinds recorded in the dispatch audit log.
const (
	EmailKindVerification = "verification"
	EmailKindReset        = "reset"
)

// EmailLog records an OTP or reset email dispatched to a user.
type EmailLog struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID  primitive.ObjectID `bson:"userId" json:"userId"`
	ToEmail string             `bson:"toEmail" json:"toEmail"`
	Kind    string             `bson:"kind" json:"kind"` // verification or reset
	SentAt  time.Time          `bson:"sentAt" json:"sentAt"`
}

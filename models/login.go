package models

import (
	"HealthConnect/role"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CodePurpose string

const (
	PurposeRegistration  CodePurpose = "registration"
	PurposeLogin         CodePurpose = "login"
	PurposePasswordReset CodePurpose = "password-reset"
)

// Verifiable reports whether a code of this purpose can be redeemed through verify-otp.
func (p CodePurpose) Verifiable() bool {
	return p == PurposeRegistration || p == PurposeLogin
}

// OneTimeCode stores only the bcrypt hash of the numeric value.
type OneTimeCode struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Email     string             `json:"email" bson:"email"`
	Purpose   CodePurpose        `json:"purpose" bson:"purpose"`
	CodeHash  string             `json:"-" bson:"codeHash"`
	ExpiresAt time.Time          `json:"expiresAt" bson:"expiresAt"`
	Verified  bool               `json:"verified" bson:"verified"`
	Attempts  int                `json:"attempts" bson:"attempts"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

type Device struct {
	Browser string `json:"browser" bson:"browser"`
	OS      string `json:"os" bson:"os"`
	Device  string `json:"device" bson:"device"`
}

type Session struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	AccountID     primitive.ObjectID `json:"accountId" bson:"accountId"`
	Role          role.Role          `json:"role" bson:"role"`
	TokenID       string             `json:"-" bson:"tokenId"`
	Device        Device             `json:"device" bson:"device"`
	IPAddress     string             `json:"ipAddress" bson:"ipAddress"`
	UserAgent     string             `json:"userAgent" bson:"userAgent"`
	LastActivity  time.Time          `json:"lastActivity" bson:"lastActivity"`
	ExpiresAt     time.Time          `json:"expiresAt" bson:"expiresAt"`
	IsActive      bool               `json:"isActive" bson:"isActive"`
	RevokedReason string             `json:"revokedReason,omitempty" bson:"revokedReason,omitempty"`
	RevokedAt     *time.Time         `json:"revokedAt,omitempty" bson:"revokedAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Valid reports whether the session may still authorise requests at now.
func (s *Session) Valid(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

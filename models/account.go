package models

import (
	"HealthConnect/role"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

func (v VerificationStatus) Valid() bool {
	switch v {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

type Suspension struct {
	Reason      string             `json:"reason" bson:"reason"`
	SuspendedAt time.Time          `json:"suspendedAt" bson:"suspendedAt"`
	SuspendedBy primitive.ObjectID `json:"suspendedBy,omitempty" bson:"suspendedBy,omitempty"`
}

// Account is the single identity record for every role. Exactly one of Doctor,
// Patient or Admin is set and it always matches Role.
type Account struct {
	ID                     primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Name                   string              `json:"name" bson:"name"`
	Email                  string              `json:"email" bson:"email"`
	PasswordHash           string              `json:"-" bson:"passwordHash"`
	Role                   role.Role           `json:"role" bson:"role"`
	IsEmailVerified        bool                `json:"isEmailVerified" bson:"isEmailVerified"`
	IsActive               bool                `json:"isActive" bson:"isActive"`
	VerificationStatus     VerificationStatus  `json:"verificationStatus,omitempty" bson:"verificationStatus,omitempty"`
	Suspension             *Suspension         `json:"suspension,omitempty" bson:"suspension,omitempty"`
	VerifiedBy             *primitive.ObjectID `json:"verifiedBy,omitempty" bson:"verifiedBy,omitempty"`
	VerifiedAt             *time.Time          `json:"verifiedAt,omitempty" bson:"verifiedAt,omitempty"`
	PasswordResetTokenHash string              `json:"-" bson:"passwordResetTokenHash,omitempty"`
	PasswordResetExpires   *time.Time          `json:"-" bson:"passwordResetExpires,omitempty"`
	PasswordResetCount     int                 `json:"-" bson:"passwordResetCount"`
	PasswordResetUsedAt    *time.Time          `json:"-" bson:"passwordResetUsedAt,omitempty"`
	PasswordChangedAt      *time.Time          `json:"passwordChangedAt,omitempty" bson:"passwordChangedAt,omitempty"`
	LastLogin              *time.Time          `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	LastLogout             *time.Time          `json:"lastLogout,omitempty" bson:"lastLogout,omitempty"`
	Doctor                 *DoctorProfile      `json:"doctor,omitempty" bson:"doctor,omitempty"`
	Patient                *PatientProfile     `json:"patient,omitempty" bson:"patient,omitempty"`
	Admin                  *AdminProfile       `json:"admin,omitempty" bson:"admin,omitempty"`
	CreatedAt              time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt              time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// Admin roles. Only a super admin may move an account between doctor and patient.
const (
	AdminRoleAdmin = "admin"
	AdminRoleSuper = "super_admin"
)

type AdminProfile struct {
	AdminRole   string   `json:"adminRole" bson:"adminRole"`
	Permissions []string `json:"permissions,omitempty" bson:"permissions,omitempty"`
}

// SwitchRole moves a doctor or patient to r. The old profile is dropped, only the
// contact number carries over.
func (a *Account) SwitchRole(r role.Role) {
	var contact string
	if a.Doctor != nil {
		contact = a.Doctor.ContactNumber
	}
	if a.Patient != nil {
		contact = a.Patient.ContactNumber
	}
	a.Doctor, a.Patient = nil, nil
	switch r {
	case role.Doctor:
		a.Doctor = &DoctorProfile{ContactNumber: contact}
	case role.Patient:
		a.Patient = &PatientProfile{ContactNumber: contact}
	}
	a.Role = r
}

func (a *Account) IsSuperAdmin() bool {
	return a.Role == role.Admin && a.Admin != nil && a.Admin.AdminRole == AdminRoleSuper
}

// ClearResetToken drops the pending reset token without touching the reset counter.
func (a *Account) ClearResetToken() {
	a.PasswordResetTokenHash = ""
	a.PasswordResetExpires = nil
}

// Snapshot is the subset of fields recorded before and after an admin action.
func (a *Account) Snapshot() map[string]interface{} {
	snap := map[string]interface{}{
		"isActive":           a.IsActive,
		"verificationStatus": string(a.VerificationStatus),
	}
	if a.Suspension != nil {
		snap["suspensionReason"] = a.Suspension.Reason
		snap["suspendedAt"] = a.Suspension.SuspendedAt
	}
	return snap
}

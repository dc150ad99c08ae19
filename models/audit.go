package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdminActionType string

const (
	ActionUserVerification AdminActionType = "user_verification"
	ActionUserSuspension   AdminActionType = "user_suspension"
	ActionUserActivation   AdminActionType = "user_activation"
	ActionRoleChange       AdminActionType = "role_change"
)

func (a AdminActionType) Valid() bool {
	switch a {
	case ActionUserVerification, ActionUserSuspension, ActionUserActivation, ActionRoleChange:
		return true
	}
	return false
}

// AdminActionLog is append-only.
type AdminActionLog struct {
	ID             primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	AdminID        primitive.ObjectID     `json:"adminId" bson:"adminId"`
	ActionType     AdminActionType        `json:"actionType" bson:"actionType"`
	TargetUserID   primitive.ObjectID     `json:"targetUserId" bson:"targetUserId"`
	TargetUserType string                 `json:"targetUserType" bson:"targetUserType"`
	PreviousData   map[string]interface{} `json:"previousData,omitempty" bson:"previousData,omitempty"`
	NewData        map[string]interface{} `json:"newData,omitempty" bson:"newData,omitempty"`
	Reason         string                 `json:"reason,omitempty" bson:"reason,omitempty"`
	IPAddress      string                 `json:"ipAddress,omitempty" bson:"ipAddress,omitempty"`
	UserAgent      string                 `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	CreatedAt      time.Time              `json:"createdAt" bson:"createdAt"`
}

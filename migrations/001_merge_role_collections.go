package migrations

import (
	"HealthConnect/repository"
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// legacyCollections maps the old per-role collections to the role they held.
var legacyCollections = map[string]string{
	"doctors":  "doctor",
	"patients": "patient",
	"admins":   "admin",
}

// Fields that stay on the account itself; everything else moves into the role profile.
var accountFields = map[string]bool{
	"_id": true, "name": true, "email": true, "passwordHash": true, "password": true,
	"isEmailVerified": true, "isActive": true, "verificationStatus": true, "suspension": true,
	"verifiedBy": true, "verifiedAt": true, "passwordChangedAt": true, "lastLogin": true,
	"lastLogout": true, "createdAt": true, "updatedAt": true, "passwordResetCount": true,
}

// legacyToAccount reshapes one document from a per-role collection.
func legacyToAccount(doc bson.M, r string) bson.M {
	acc := bson.M{"role": r}
	profile := bson.M{}
	for k, v := range doc {
		switch {
		case k == "password":
			acc["passwordHash"] = v
		case k == "role":
			if r == "admin" {
				profile["adminRole"] = v
			}
		case k == "__v":
		case accountFields[k]:
			acc[k] = v
		default:
			profile[k] = v
		}
	}
	if email, ok := acc["email"].(string); ok {
		acc["email"] = strings.ToLower(strings.TrimSpace(email))
	}
	if _, ok := acc["isActive"]; !ok {
		acc["isActive"] = true
	}
	acc[r] = profile
	return acc
}

/*
* Copy doctors, patients and admins into the accounts collection
* Documents already present by id are left alone
 */
func MergeRoleCollections(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	accounts := db.Collection(repository.ColAccounts)
	for name, r := range legacyCollections {
		cursor, err := db.Collection(name).Find(ctx, bson.M{})
		if err != nil {
			return err
		}
		moved := 0
		for cursor.Next(ctx) {
			var doc bson.M
			if err := cursor.Decode(&doc); err != nil {
				cursor.Close(ctx)
				return err
			}
			_, err := accounts.InsertOne(ctx, legacyToAccount(doc, r))
			if mongo.IsDuplicateKeyError(err) {
				log.Warn("account already present, skipping", zap.String("collection", name), zap.Any("id", doc["_id"]))
				continue
			}
			if err != nil {
				cursor.Close(ctx)
				return err
			}
			moved++
		}
		err = cursor.Err()
		cursor.Close(ctx)
		if err != nil {
			return err
		}
		log.Info("merged role collection", zap.String("collection", name), zap.Int("accounts", moved))
	}
	return nil
}

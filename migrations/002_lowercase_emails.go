package migrations

import (
	"HealthConnect/repository"
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// LowercaseEmails normalises stored emails so lookups can match exactly.
func LowercaseEmails(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	accounts := db.Collection(repository.ColAccounts)
	cursor, err := accounts.Find(ctx, bson.M{"email": bson.M{"$regex": "[A-Z]|^\\s|\\s$"}})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	updated := 0
	for cursor.Next(ctx) {
		var acc struct {
			ID    interface{} `bson:"_id"`
			Email string      `bson:"email"`
		}
		if err := cursor.Decode(&acc); err != nil {
			return err
		}
		email := strings.ToLower(strings.TrimSpace(acc.Email))
		_, err := accounts.UpdateOne(ctx, bson.M{"_id": acc.ID}, bson.M{"$set": bson.M{
			"email":     email,
			"updatedAt": time.Now().UTC(),
		}})
		if mongo.IsDuplicateKeyError(err) {
			log.Warn("email collides after lowercasing, left unchanged", zap.String("email", acc.Email))
			continue
		}
		if err != nil {
			return err
		}
		updated++
	}
	log.Info("lowercased account emails", zap.Int("accounts", updated))
	return cursor.Err()
}

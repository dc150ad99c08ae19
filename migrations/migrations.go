package migrations

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ColMigrations records which migrations have been applied.
const ColMigrations = "migrations"

type Migration struct {
	ID string
	Up func(ctx context.Context, db *mongo.Database, log *zap.Logger) error
}

// All lists the migrations in the order they run.
var All = []Migration{
	{ID: "001_merge_role_collections", Up: MergeRoleCollections},
	{ID: "002_lowercase_emails", Up: LowercaseEmails},
}

/*
* Skip what is already recorded
* Run the rest in order and record each one, stopping at the first failure
 */
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, list []Migration) error {
	col := db.Collection(ColMigrations)
	for _, m := range list {
		n, err := col.CountDocuments(ctx, bson.M{"_id": m.ID})
		if err != nil {
			log.Error("error reading migration state", zap.String("migration", m.ID), zap.Error(err))
			return err
		}
		if n > 0 {
			continue
		}
		log.Info("running migration", zap.String("migration", m.ID))
		if err := m.Up(ctx, db, log); err != nil {
			log.Error("migration failed", zap.String("migration", m.ID), zap.Error(err))
			return err
		}
		if _, err := col.InsertOne(ctx, bson.M{"_id": m.ID, "appliedAt": time.Now().UTC()}); err != nil {
			return err
		}
	}
	return nil
}

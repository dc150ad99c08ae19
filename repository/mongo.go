package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	ColAccounts     = "accounts"
	ColCodes        = "otps"
	ColSessions     = "sessions"
	ColSchedules    = "schedules"
	ColAppointments = "appointments"
	ColAdminLogs    = "adminactionlogs"
)

type MongoStore struct {
	client          *mongo.Client
	db              *mongo.Database
	useTransactions bool
	log             *zap.Logger
}

type MongoOptions struct {
	URI             string
	Database        string
	UseTransactions bool
}

func NewMongoStore(ctx context.Context, opts MongoOptions, log *zap.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("repository: mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("repository: mongo ping: %w", err)
	}

	s := &MongoStore{
		client:          client,
		db:              client.Database(opts.Database),
		useTransactions: opts.UseTransactions,
		log:             log,
	}
	if err := s.EnsureIndexes(connectCtx); err != nil {
		log.Warn("mongo ensure indexes failed", zap.Error(err))
	}
	return s, nil
}

func (s *MongoStore) Database() *mongo.Database {
	return s.db
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *MongoStore) Accounts() AccountRepository         { return mongoAccounts{s.col(ColAccounts)} }
func (s *MongoStore) Codes() CodeRepository               { return mongoCodes{s.col(ColCodes)} }
func (s *MongoStore) Sessions() SessionRepository         { return mongoSessions{s.col(ColSessions)} }
func (s *MongoStore) Schedules() ScheduleRepository       { return mongoSchedules{s.col(ColSchedules)} }
func (s *MongoStore) Appointments() AppointmentRepository { return mongoAppointments{s.col(ColAppointments)} }
func (s *MongoStore) Audit() AuditRepository              { return mongoAudit{s.col(ColAdminLogs)} }

// RunInTransaction uses a multi-document transaction when the deployment supports it
// (replica set or sharded cluster). Otherwise fn runs without one.
func (s *MongoStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.useTransactions {
		return fn(ctx)
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("repository: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
		sparse bool
	}
	indexes := []idx{
		{ColAccounts, bson.D{{Key: "email", Value: 1}}, true, false},
		{ColAccounts, bson.D{{Key: "role", Value: 1}, {Key: "createdAt", Value: -1}}, false, false},
		{ColAccounts, bson.D{{Key: "passwordResetTokenHash", Value: 1}}, false, true},

		{ColCodes, bson.D{{Key: "email", Value: 1}, {Key: "purpose", Value: 1}, {Key: "createdAt", Value: -1}}, false, false},
		{ColCodes, bson.D{{Key: "expiresAt", Value: 1}}, false, false},

		{ColSessions, bson.D{{Key: "tokenId", Value: 1}}, true, false},
		{ColSessions, bson.D{{Key: "accountId", Value: 1}, {Key: "isActive", Value: 1}}, false, false},
		{ColSessions, bson.D{{Key: "expiresAt", Value: 1}}, false, false},

		{ColSchedules, bson.D{{Key: "doctorId", Value: 1}}, true, false},

		{ColAppointments, bson.D{{Key: "activeSlotKey", Value: 1}}, true, true},
		{ColAppointments, bson.D{{Key: "doctorId", Value: 1}, {Key: "date", Value: 1}}, false, false},
		{ColAppointments, bson.D{{Key: "patientId", Value: 1}, {Key: "startsAt", Value: 1}}, false, false},

		{ColAdminLogs, bson.D{{Key: "createdAt", Value: -1}}, false, false},
		{ColAdminLogs, bson.D{{Key: "adminId", Value: 1}}, false, false},
		{ColAdminLogs, bson.D{{Key: "targetUserId", Value: 1}}, false, false},
	}

	var errs []error
	for _, i := range indexes {
		opts := options.Index()
		if i.unique {
			opts.SetUnique(true)
		}
		if i.sparse {
			opts.SetSparse(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: i.keys, Options: opts}); err != nil {
			errs = append(errs, fmt.Errorf("%s %v: %w", i.col, i.keys, err))
		}
	}
	return errors.Join(errs...)
}

// Drop removes the whole database. Only tests call it.
func (s *MongoStore) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter interface{}, opts ...*options.FindOneOptions) (*T, error) {
	var result T
	if err := col.FindOne(ctx, filter, opts...).Decode(&result); err != nil {
		return nil, wrapError(err)
	}
	return &result, nil
}

func findMany[T any](ctx context.Context, col *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]*T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	results := []*T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, &item)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func insertOne(ctx context.Context, col *mongo.Collection, doc interface{}) error {
	_, err := col.InsertOne(ctx, doc)
	return wrapError(err)
}

func replaceByID(ctx context.Context, col *mongo.Collection, id interface{}, doc interface{}) error {
	res, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, col *mongo.Collection, id interface{}) error {
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func pageOptions(skip, limit int) *options.FindOptions {
	opts := options.Find()
	if skip > 0 {
		opts.SetSkip(int64(skip))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

package repository

import (
	"HealthConnect/models"
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ============================================================================
// accounts
// ============================================================================

type mongoAccounts struct{ col *mongo.Collection }

func (r mongoAccounts) Create(ctx context.Context, a *models.Account) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	return insertOne(ctx, r.col, a)
}

func (r mongoAccounts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return findOne[models.Account](ctx, r.col, bson.M{"_id": id})
}

func (r mongoAccounts) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return findOne[models.Account](ctx, r.col, bson.M{"email": email})
}

func (r mongoAccounts) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	return findOne[models.Account](ctx, r.col, bson.M{
		"passwordResetTokenHash": tokenHash,
		"passwordResetExpires":   bson.M{"$gt": now},
	})
}

func (r mongoAccounts) Update(ctx context.Context, a *models.Account) error {
	return replaceByID(ctx, r.col, a.ID, a)
}

func (r mongoAccounts) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

func accountFilter(f AccountFilter) bson.M {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Active != nil {
		filter["isActive"] = *f.Active
	}
	if f.EmailVerified != nil {
		filter["isEmailVerified"] = *f.EmailVerified
	}
	if f.VerificationStatus != "" {
		filter["verificationStatus"] = f.VerificationStatus
	}
	if f.Specialization != "" {
		filter["doctor.specialization"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(f.Specialization) + "$", Options: "i"}
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}}
	}
	if f.CreatedSince != nil {
		filter["createdAt"] = bson.M{"$gte": *f.CreatedSince}
	}
	return filter
}

func (r mongoAccounts) List(ctx context.Context, f AccountFilter) ([]*models.Account, error) {
	opts := pageOptions(f.Skip, f.Limit).SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return findMany[models.Account](ctx, r.col, accountFilter(f), opts)
}

func (r mongoAccounts) Count(ctx context.Context, f AccountFilter) (int64, error) {
	n, err := r.col.CountDocuments(ctx, accountFilter(f))
	return n, wrapError(err)
}

// ============================================================================
// one-time codes
// ============================================================================

type mongoCodes struct{ col *mongo.Collection }

func (r mongoCodes) Create(ctx context.Context, c *models.OneTimeCode) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	return insertOne(ctx, r.col, c)
}

func (r mongoCodes) FindLatestActive(ctx context.Context, email string, purpose models.CodePurpose, now time.Time) (*models.OneTimeCode, error) {
	filter := bson.M{
		"email":     email,
		"purpose":   purpose,
		"verified":  false,
		"expiresAt": bson.M{"$gt": now},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return findOne[models.OneTimeCode](ctx, r.col, filter, opts)
}

func (r mongoCodes) ReserveAttempt(ctx context.Context, id primitive.ObjectID, max int) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": id, "verified": false, "attempts": bson.M{"$lt": max}}
	var updated models.OneTimeCode
	err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"attempts": 1}}, opts).Decode(&updated)
	if err != nil {
		return 0, wrapError(err)
	}
	return updated.Attempts, nil
}

func (r mongoCodes) Consume(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "verified": false})
	if err != nil {
		return false, wrapError(err)
	}
	return res.DeletedCount == 1, nil
}

func (r mongoCodes) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return wrapError(err)
}

func (r mongoCodes) DeleteUnverified(ctx context.Context, email string, purpose models.CodePurpose) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"email": email, "purpose": purpose, "verified": false})
	if err != nil {
		return 0, wrapError(err)
	}
	return res.DeletedCount, nil
}

func (r mongoCodes) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": now}})
	if err != nil {
		return 0, wrapError(err)
	}
	return res.DeletedCount, nil
}

// ============================================================================
// sessions
// ============================================================================

type mongoSessions struct{ col *mongo.Collection }

func (r mongoSessions) Create(ctx context.Context, s *models.Session) error {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	return insertOne(ctx, r.col, s)
}

func (r mongoSessions) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Session, error) {
	return findOne[models.Session](ctx, r.col, bson.M{"_id": id})
}

func (r mongoSessions) FindByTokenID(ctx context.Context, tokenID string) (*models.Session, error) {
	return findOne[models.Session](ctx, r.col, bson.M{"tokenId": tokenID})
}

func (r mongoSessions) ListActive(ctx context.Context, accountID primitive.ObjectID, now time.Time) ([]*models.Session, error) {
	filter := bson.M{"accountId": accountID, "isActive": true, "expiresAt": bson.M{"$gt": now}}
	opts := options.Find().SetSort(bson.D{{Key: "lastActivity", Value: -1}})
	return findMany[models.Session](ctx, r.col, filter, opts)
}

func (r mongoSessions) Touch(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastActivity": now}})
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func revokeUpdate(reason string, now time.Time) bson.M {
	return bson.M{"$set": bson.M{
		"isActive":      false,
		"revokedReason": reason,
		"revokedAt":     now,
		"updatedAt":     now,
	}}
}

func (r mongoSessions) Revoke(ctx context.Context, id primitive.ObjectID, reason string, now time.Time) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, revokeUpdate(reason, now))
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r mongoSessions) RevokeAll(ctx context.Context, accountID primitive.ObjectID, exceptTokenID, reason string, now time.Time) (int64, error) {
	filter := bson.M{"accountId": accountID, "isActive": true}
	if exceptTokenID != "" {
		filter["tokenId"] = bson.M{"$ne": exceptTokenID}
	}
	res, err := r.col.UpdateMany(ctx, filter, revokeUpdate(reason, now))
	if err != nil {
		return 0, wrapError(err)
	}
	return res.ModifiedCount, nil
}

func (r mongoSessions) RevokeExpired(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{"isActive": true, "expiresAt": bson.M{"$lte": now}}
	res, err := r.col.UpdateMany(ctx, filter, revokeUpdate("Session expired", now))
	if err != nil {
		return 0, wrapError(err)
	}
	return res.ModifiedCount, nil
}

func (r mongoSessions) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"isActive": false, "updatedAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, wrapError(err)
	}
	return res.DeletedCount, nil
}

// ============================================================================
// schedules
// ============================================================================

type mongoSchedules struct{ col *mongo.Collection }

func (r mongoSchedules) Get(ctx context.Context, doctorID primitive.ObjectID) (*models.WeeklySchedule, error) {
	return findOne[models.WeeklySchedule](ctx, r.col, bson.M{"doctorId": doctorID})
}

func (r mongoSchedules) Upsert(ctx context.Context, w *models.WeeklySchedule) error {
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	update := bson.M{
		"$set": bson.M{"days": w.Days, "updatedAt": w.UpdatedAt},
		"$setOnInsert": bson.M{
			"_id":       w.ID,
			"createdAt": w.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored models.WeeklySchedule
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"doctorId": w.DoctorID}, update, opts).Decode(&stored); err != nil {
		return wrapError(err)
	}
	w.ID = stored.ID
	w.CreatedAt = stored.CreatedAt
	return nil
}

func (r mongoSchedules) Delete(ctx context.Context, doctorID primitive.ObjectID) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"doctorId": doctorID})
	return wrapError(err)
}

// ============================================================================
// appointments
// ============================================================================

type mongoAppointments struct{ col *mongo.Collection }

func (r mongoAppointments) Create(ctx context.Context, a *models.Appointment) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	return insertOne(ctx, r.col, a)
}

func (r mongoAppointments) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	return findOne[models.Appointment](ctx, r.col, bson.M{"_id": id})
}

func (r mongoAppointments) Update(ctx context.Context, a *models.Appointment, expected models.AppointmentStatus) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": a.ID, "status": expected}, a)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		// gone or moved on since it was read
		return ErrConflict
	}
	return nil
}

func (r mongoAppointments) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

func appointmentFilter(f AppointmentFilter) bson.M {
	filter := bson.M{}
	if f.DoctorID != nil {
		filter["doctorId"] = *f.DoctorID
	}
	if f.PatientID != nil {
		filter["patientId"] = *f.PatientID
	}
	if f.Date != "" {
		filter["date"] = f.Date
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	starts := bson.M{}
	if f.StartsFrom != nil {
		starts["$gte"] = *f.StartsFrom
	}
	if f.StartsBefore != nil {
		starts["$lt"] = *f.StartsBefore
	}
	if len(starts) > 0 {
		filter["startsAt"] = starts
	}
	return filter
}

func (r mongoAppointments) List(ctx context.Context, f AppointmentFilter) ([]*models.Appointment, error) {
	opts := pageOptions(f.Skip, f.Limit).SetSort(bson.D{{Key: "startsAt", Value: 1}, {Key: "_id", Value: 1}})
	return findMany[models.Appointment](ctx, r.col, appointmentFilter(f), opts)
}

func (r mongoAppointments) Count(ctx context.Context, f AppointmentFilter) (int64, error) {
	n, err := r.col.CountDocuments(ctx, appointmentFilter(f))
	return n, wrapError(err)
}

func (r mongoAppointments) HeldSlots(ctx context.Context, doctorID primitive.ObjectID, date string) ([]int, error) {
	filter := bson.M{
		"doctorId": doctorID,
		"date":     date,
		"status":   bson.M{"$ne": models.StatusCancelled},
	}
	opts := options.Find().SetProjection(bson.M{"slotNumber": 1}).SetSort(bson.D{{Key: "slotNumber", Value: 1}})
	rows, err := findMany[models.Appointment](ctx, r.col, filter, opts)
	if err != nil {
		return nil, err
	}
	held := make([]int, 0, len(rows))
	for _, row := range rows {
		held = append(held, row.SlotNumber)
	}
	return held, nil
}

func (r mongoAppointments) CancelFuture(ctx context.Context, f AppointmentFilter, from time.Time, by, reason string, now time.Time) (int64, error) {
	f.Statuses = []models.AppointmentStatus{models.StatusPending, models.StatusScheduled}
	f.StartsFrom = &from
	update := bson.M{
		"$set": bson.M{
			"status":             models.StatusCancelled,
			"cancelledBy":        by,
			"cancellationReason": reason,
			"cancelledAt":        now,
			"updatedAt":          now,
		},
		"$unset": bson.M{"activeSlotKey": ""},
	}
	res, err := r.col.UpdateMany(ctx, appointmentFilter(f), update)
	if err != nil {
		return 0, wrapError(err)
	}
	return res.ModifiedCount, nil
}

// ============================================================================
// audit
// ============================================================================

type mongoAudit struct{ col *mongo.Collection }

func (r mongoAudit) Append(ctx context.Context, l *models.AdminActionLog) error {
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	return insertOne(ctx, r.col, l)
}

func auditFilter(f AuditFilter) bson.M {
	filter := bson.M{}
	if f.AdminID != nil {
		filter["adminId"] = *f.AdminID
	}
	if f.TargetUserID != nil {
		filter["targetUserId"] = *f.TargetUserID
	}
	if f.ActionType != "" {
		filter["actionType"] = f.ActionType
	}
	return filter
}

func (r mongoAudit) List(ctx context.Context, f AuditFilter) ([]*models.AdminActionLog, error) {
	opts := pageOptions(f.Skip, f.Limit).SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return findMany[models.AdminActionLog](ctx, r.col, auditFilter(f), opts)
}

func (r mongoAudit) Count(ctx context.Context, f AuditFilter) (int64, error) {
	n, err := r.col.CountDocuments(ctx, auditFilter(f))
	return n, wrapError(err)
}

package services

import (
	"HealthConnect/models"
	"HealthConnect/repository"
	"HealthConnect/role"
	"HealthConnect/util"
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type DoctorService struct {
	deps *Deps
}

type DoctorQuery struct {
	Specialization string
	Search         string
	Page           int
	Limit          int
}

func boolPtr(b bool) *bool { return &b }

// bookableDoctor returns the doctor only while patients may see and book them.
func bookableDoctor(ctx context.Context, d *Deps, id primitive.ObjectID) (*models.Account, error) {
	acc, err := d.Store.Accounts().FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.NewError(util.KindNotFound, util.DOCTOR_NOT_FOUND)
	}
	if err != nil {
		d.Logger.Error("error loading doctor", zap.Error(err))
		return nil, util.InternalError(err)
	}
	if acc.Role != role.Doctor || !acc.IsActive || !acc.IsEmailVerified {
		return nil, util.NewError(util.KindNotFound, util.DOCTOR_NOT_FOUND)
	}
	return acc, nil
}

/*
* Active doctors with a verified email
* Optional specialization and name search
 */
func (s *DoctorService) List(ctx context.Context, q DoctorQuery) (Page[models.PublicDoctor], error) {
	page, limit, skip := normalizePage(q.Page, q.Limit)
	f := repository.AccountFilter{
		Role:           role.Doctor,
		Active:         boolPtr(true),
		EmailVerified:  boolPtr(true),
		Specialization: strings.TrimSpace(q.Specialization),
		Search:         strings.TrimSpace(q.Search),
	}
	total, err := s.deps.Store.Accounts().Count(ctx, f)
	if err != nil {
		s.deps.Logger.Error("error counting doctors", zap.Error(err))
		return Page[models.PublicDoctor]{}, util.InternalError(err)
	}
	f.Skip, f.Limit = skip, limit
	list, err := s.deps.Store.Accounts().List(ctx, f)
	if err != nil {
		s.deps.Logger.Error("error listing doctors", zap.Error(err))
		return Page[models.PublicDoctor]{}, util.InternalError(err)
	}
	items := make([]models.PublicDoctor, 0, len(list))
	for _, a := range list {
		items = append(items, models.NewPublicDoctor(a))
	}
	return newPage(items, page, limit, total), nil
}

func (s *DoctorService) Get(ctx context.Context, id primitive.ObjectID) (*models.PublicDoctor, error) {
	acc, err := bookableDoctor(ctx, s.deps, id)
	if err != nil {
		return nil, err
	}
	d := models.NewPublicDoctor(acc)
	return &d, nil
}

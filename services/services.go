// Package services holds the booking domain: accounts and authentication, one-time
// codes, sessions, schedules, appointments and admin oversight.
package services

import (
	"HealthConnect/authorization"
	"HealthConnect/cache"
	"HealthConnect/config"
	"HealthConnect/notification"
	"HealthConnect/ratelimit"
	"HealthConnect/repository"
	"HealthConnect/util"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
)

// Deps is everything the services need from the outside world.
type Deps struct {
	Store       repository.Store
	CodeLimiter ratelimit.Limiter
	Notifier    notification.Dispatcher
	Tokens      *authorization.TokenManager
	Cache       cache.Cache
	Config      config.Config
	Logger      *zap.Logger
	// Now and GenerateCode are swapped in tests.
	Now          func() time.Time
	GenerateCode func(length int) (string, error)
}

type Services struct {
	Auth         *AuthService
	OTP          *OTPService
	Sessions     *SessionService
	Doctors      *DoctorService
	Schedules    *ScheduleService
	Appointments *AppointmentService
	Admin        *AdminService
}

func New(d Deps) *Services {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.GenerateCode == nil {
		d.GenerateCode = GenerateNumericCode
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Cache == nil {
		d.Cache = cache.NewMemory(d.Now)
	}
	if d.CodeLimiter == nil {
		d.CodeLimiter = ratelimit.NewMemory(ratelimit.Rule{Limit: 1, Window: d.Config.OTP.ResendCooldown}, d.Now)
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLogDispatcher(d.Logger)
	}
	if d.Tokens == nil {
		d.Tokens = authorization.NewTokenManager(d.Config.JWT.Secret, d.Config.JWT.Issuer)
	}

	dp := &d
	otp := &OTPService{deps: dp}
	sessions := &SessionService{deps: dp}
	schedules := &ScheduleService{deps: dp}
	return &Services{
		Auth:         &AuthService{deps: dp, otp: otp, sessions: sessions},
		OTP:          otp,
		Sessions:     sessions,
		Doctors:      &DoctorService{deps: dp},
		Schedules:    schedules,
		Appointments: &AppointmentService{deps: dp, schedules: schedules},
		Admin:        &AdminService{deps: dp},
	}
}

// GenerateNumericCode returns a uniformly random decimal string of the given length.
func GenerateNumericCode(length int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// RequestMeta describes the client behind a request.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Page is a paginated slice of results.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// normalizePage applies defaults and returns the skip offset.
func normalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit, (page - 1) * limit
}

func newPage[T any](items []T, page, limit int, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return Page[T]{Items: items, Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// storeError maps a repository failure to the client-facing error kind.
func storeError(err error, notFoundMessage string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return util.WrapError(util.KindNotFound, notFoundMessage, err)
	}
	return util.InternalError(err)
}

// inTx runs fn inside the store's transactional boundary.
func (d *Deps) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.Store.RunInTransaction(ctx, fn)
}

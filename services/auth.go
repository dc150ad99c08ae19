package services

import (
	"HealthConnect/metrics"
	"HealthConnect/models"
	"HealthConnect/repository"
	"HealthConnect/role"
	"HealthConnect/util"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var validate = validator.New()

type AuthService struct {
	deps     *Deps
	otp      *OTPService
	sessions *SessionService

	dummyOnce sync.Once
	dummyHash []byte
}

type DoctorFields struct {
	Specialization string
	Qualification  string
	Experience     *int
	About          string
	ContactNumber  string
}

type PatientFields struct {
	DateOfBirth   *time.Time
	Gender        string
	ContactNumber string
	BloodGroup    string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Doctor   DoctorFields
	Patient  PatientFields
}

type RegisterResult struct {
	Email                string    `json:"email"`
	Role                 role.Role `json:"role"`
	RequiresVerification bool      `json:"requiresVerification"`
}

type LoginResult struct {
	Email       string `json:"email"`
	RequiresOTP bool   `json:"requiresOTP"`
}

type LoginInfo struct {
	PreviousLogin           *time.Time    `json:"previousLogin"`
	CurrentLogin            time.Time     `json:"currentLogin"`
	PreviousDeviceLoggedOut bool          `json:"previousDeviceLoggedOut"`
	Device                  models.Device `json:"device"`
}

type VerifyResult struct {
	Purpose   models.CodePurpose `json:"purpose"`
	Account   *models.Account    `json:"user"`
	Token     string             `json:"-"`
	ExpiresAt time.Time          `json:"-"`
	LoginInfo *LoginInfo         `json:"loginInfo,omitempty"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// dummy is compared against when the account does not exist so a miss costs the same as a hit.
func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("healthconnect-absent-account"), s.deps.Config.BcryptCost)
		if err != nil {
			s.deps.Logger.Error("error building dummy hash", zap.Error(err))
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *AuthService) hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.deps.Config.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func validateRegister(in *RegisterInput) (role.Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Role == "" {
		return "", util.ValidationError(util.ALL_FIELDS_REQUIRED)
	}
	if !validEmail(in.Email) {
		return "", util.ValidationError(util.INVALID_EMAIL)
	}
	r, ok := role.Parse(in.Role)
	if !ok || !r.SelfRegistrable() {
		return "", util.ValidationError(util.INVALID_ROLE)
	}
	if len(in.Password) < minPasswordLength {
		return "", util.ValidationError(util.PASSWORD_TOO_SHORT)
	}
	if r == role.Doctor {
		d := in.Doctor
		if strings.TrimSpace(d.Specialization) == "" || strings.TrimSpace(d.Qualification) == "" || d.Experience == nil {
			return "", util.ValidationError(util.MISSING_DOCTOR_FIELDS)
		}
		if *d.Experience < 0 {
			return "", util.ValidationError(util.INVALID_EXPERIENCE)
		}
	}
	return r, nil
}

/*
* Validate the input and the doctor specific fields
* Email must be free across every role
* Create the unverified account and send the registration code
 */
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	log := s.deps.Logger
	r, err := validateRegister(&in)
	if err != nil {
		return nil, err
	}

	_, err = s.deps.Store.Accounts().FindByEmail(ctx, in.Email)
	if err == nil {
		return nil, util.ErrDuplicateAccount
	}
	if !errors.Is(err, repository.ErrNotFound) {
		log.Error("error checking email", zap.Error(err))
		return nil, util.InternalError(err)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		log.Error("error hashing password", zap.Error(err))
		return nil, util.InternalError(err)
	}
	now := s.deps.Now()
	acc := &models.Account{
		Name:               in.Name,
		Email:              in.Email,
		PasswordHash:       hash,
		Role:               r,
		IsActive:           true,
		VerificationStatus: models.VerificationPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	switch r {
	case role.Doctor:
		acc.Doctor = &models.DoctorProfile{
			Specialization: strings.TrimSpace(in.Doctor.Specialization),
			Qualification:  strings.TrimSpace(in.Doctor.Qualification),
			Experience:     *in.Doctor.Experience,
			About:          in.Doctor.About,
			ContactNumber:  in.Doctor.ContactNumber,
		}
	case role.Patient:
		acc.Patient = &models.PatientProfile{
			DateOfBirth:   in.Patient.DateOfBirth,
			Gender:        in.Patient.Gender,
			ContactNumber: in.Patient.ContactNumber,
			BloodGroup:    in.Patient.BloodGroup,
		}
	}
	if err := s.deps.Store.Accounts().Create(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, util.ErrDuplicateAccount
		}
		log.Error("error creating account", zap.Error(err))
		return nil, util.InternalError(err)
	}
	log.Info("account registered", zap.String("email", acc.Email), zap.String("role", string(r)))

	s.sendCode(ctx, acc, models.PurposeRegistration)
	return &RegisterResult{Email: acc.Email, Role: r, RequiresVerification: true}, nil
}

// sendCode issues and mails a code where failure only warrants a warning.
func (s *AuthService) sendCode(ctx context.Context, acc *models.Account, purpose models.CodePurpose) {
	code, err := s.otp.Issue(ctx, acc.Email, purpose)
	if err != nil {
		s.deps.Logger.Warn("could not issue code", zap.String("email", acc.Email), zap.Error(err))
		return
	}
	if err := s.deps.Notifier.SendOTP(ctx, acc.Email, acc.Name, code, purpose); err != nil {
		s.deps.Logger.Warn("could not send code", zap.String("email", acc.Email), zap.Error(err))
	}
}

/*
* Compare the password even for unknown emails
* Role, email verification and suspension are checked in that order
* Issue the login code, a recent code means the caller has to wait
 */
func (s *AuthService) Login(ctx context.Context, email, password, roleName string) (*LoginResult, error) {
	log := s.deps.Logger
	email = normalizeEmail(email)
	if email == "" || password == "" || roleName == "" {
		return nil, util.ValidationError(util.ALL_FIELDS_REQUIRED)
	}
	r, ok := role.Parse(roleName)
	if !ok {
		return nil, util.ValidationError(util.INVALID_LOGIN_ROLE)
	}

	acc, err := s.deps.Store.Accounts().FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, util.ErrInvalidCredentials
	}
	if err != nil {
		log.Error("error loading account", zap.Error(err))
		return nil, util.InternalError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil || acc.Role != r {
		log.Info("login rejected", zap.String("email", email))
		return nil, util.ErrInvalidCredentials
	}
	if !acc.IsEmailVerified {
		return nil, util.ErrEmailNotVerified
	}
	if !acc.IsActive {
		return nil, suspendedError(acc)
	}

	code, err := s.otp.Issue(ctx, acc.Email, models.PurposeLogin)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Notifier.SendOTP(ctx, acc.Email, acc.Name, code, models.PurposeLogin); err != nil {
		log.Warn("could not send login code", zap.String("email", acc.Email), zap.Error(err))
	}
	return &LoginResult{Email: acc.Email, RequiresOTP: true}, nil
}

func suspendedError(acc *models.Account) error {
	e := util.ErrAccountSuspended
	if acc.Suspension != nil {
		e = e.WithDetail("reason", acc.Suspension.Reason).WithDetail("suspendedAt", acc.Suspension.SuspendedAt)
	} else {
		e = e.WithDetail("reason", util.DEFAULT_SUSPENSION_REASON)
	}
	return e
}

/*
* Only registration and login codes are redeemable here
* Registration marks the email verified
* Login consumes the code, revokes every other session and opens a new one in one transaction
 */
func (s *AuthService) VerifyCode(ctx context.Context, email, code, roleName, purposeName string, meta RequestMeta) (*VerifyResult, error) {
	log := s.deps.Logger
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" || roleName == "" || purposeName == "" {
		return nil, util.ValidationError(util.OTP_REQUIRED)
	}
	purpose := models.CodePurpose(purposeName)
	if !purpose.Verifiable() {
		return nil, util.ValidationError(util.INVALID_OTP_PURPOSE)
	}
	r, ok := role.Parse(roleName)
	if !ok {
		return nil, util.ValidationError(util.INVALID_LOGIN_ROLE)
	}

	acc, err := s.deps.Store.Accounts().FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.ErrInvalidOrExpiredCode
	}
	if err != nil {
		log.Error("error loading account", zap.Error(err))
		return nil, util.InternalError(err)
	}
	if acc.Role != r {
		return nil, util.ErrInvalidOrExpiredCode
	}

	if purpose == models.PurposeRegistration {
		return s.verifyRegistration(ctx, acc, code)
	}
	return s.verifyLogin(ctx, acc, code, meta)
}

func (s *AuthService) verifyRegistration(ctx context.Context, acc *models.Account, code string) (*VerifyResult, error) {
	if acc.IsEmailVerified {
		return nil, util.ValidationError(util.EMAIL_ALREADY_VERIFIED)
	}
	rec, err := s.otp.Check(ctx, acc.Email, code, models.PurposeRegistration)
	if err != nil {
		return nil, err
	}
	err = s.deps.inTx(ctx, func(ctx context.Context) error {
		if err := s.otp.Consume(ctx, rec); err != nil {
			return err
		}
		acc.IsEmailVerified = true
		acc.UpdatedAt = s.deps.Now()
		return s.deps.Store.Accounts().Update(ctx, acc)
	})
	if err != nil {
		return nil, txError(s.deps.Logger, "error verifying registration", err)
	}
	s.deps.Logger.Info("email verified", zap.String("email", acc.Email))
	if err := s.deps.Notifier.SendWelcome(ctx, acc.Email, acc.Name, acc.Role); err != nil {
		s.deps.Logger.Warn("could not send welcome mail", zap.String("email", acc.Email), zap.Error(err))
	}
	return &VerifyResult{Purpose: models.PurposeRegistration, Account: acc}, nil
}

func (s *AuthService) verifyLogin(ctx context.Context, acc *models.Account, code string, meta RequestMeta) (*VerifyResult, error) {
	if !acc.IsEmailVerified {
		return nil, util.ErrEmailNotVerified
	}
	if !acc.IsActive {
		return nil, suspendedError(acc)
	}
	rec, err := s.otp.Check(ctx, acc.Email, code, models.PurposeLogin)
	if err != nil {
		return nil, err
	}

	previous := acc.LastLogin
	var (
		sess    *models.Session
		revoked int64
		now     = s.deps.Now()
	)
	err = s.deps.inTx(ctx, func(ctx context.Context) error {
		if err := s.otp.Consume(ctx, rec); err != nil {
			return err
		}
		n, err := s.deps.Store.Sessions().RevokeAll(ctx, acc.ID, "", RevokeSingleDevice, now)
		if err != nil {
			return err
		}
		revoked = n
		sess, err = s.sessions.create(ctx, acc, meta)
		if err != nil {
			return err
		}
		acc.LastLogin = &now
		acc.UpdatedAt = now
		return s.deps.Store.Accounts().Update(ctx, acc)
	})
	if err != nil {
		return nil, txError(s.deps.Logger, "error completing login", err)
	}
	countRevoked(RevokeSingleDevice, revoked)

	token, err := s.deps.Tokens.Generate(acc, sess.TokenID, now, sess.ExpiresAt)
	if err != nil {
		s.deps.Logger.Error("error signing token", zap.Error(err))
		return nil, util.InternalError(err)
	}
	metrics.Logins.WithLabelValues(string(acc.Role)).Inc()
	s.deps.Logger.Info("login completed", zap.String("email", acc.Email), zap.Int64("revokedSessions", revoked))

	return &VerifyResult{
		Purpose:   models.PurposeLogin,
		Account:   acc,
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		LoginInfo: &LoginInfo{
			PreviousLogin:           previous,
			CurrentLogin:            now,
			PreviousDeviceLoggedOut: revoked > 0,
			Device:                  sess.Device,
		},
	}, nil
}

// txError passes domain errors through and hides storage failures.
func txError(log *zap.Logger, msg string, err error) error {
	var appErr *util.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	log.Error(msg, zap.Error(err))
	return util.InternalError(err)
}

/*
* Registration codes only for unverified emails
* Login codes only for verified, active accounts
 */
func (s *AuthService) ResendCode(ctx context.Context, email, purposeName string) error {
	email = normalizeEmail(email)
	if email == "" || purposeName == "" {
		return util.ValidationError(util.OTP_REQUIRED)
	}
	purpose := models.CodePurpose(purposeName)
	if !purpose.Verifiable() {
		return util.ValidationError(util.INVALID_OTP_PURPOSE)
	}
	acc, err := s.deps.Store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.deps.Logger.Error("error loading account", zap.Error(err))
		}
		return storeError(err, util.USER_NOT_FOUND)
	}
	switch purpose {
	case models.PurposeRegistration:
		if acc.IsEmailVerified {
			return util.ValidationError(util.EMAIL_ALREADY_VERIFIED)
		}
	case models.PurposeLogin:
		if !acc.IsEmailVerified {
			return util.ErrEmailNotVerified
		}
		if !acc.IsActive {
			return suspendedError(acc)
		}
	}
	code, err := s.otp.Issue(ctx, acc.Email, purpose)
	if err != nil {
		return err
	}
	if err := s.deps.Notifier.SendOTP(ctx, acc.Email, acc.Name, code, purpose); err != nil {
		s.deps.Logger.Warn("could not resend code", zap.String("email", acc.Email), zap.Error(err))
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, accountID primitive.ObjectID) (*models.Account, error) {
	acc, err := s.deps.Store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return nil, storeError(err, util.USER_NOT_FOUND)
	}
	return acc, nil
}

// Logout revokes the current session and records the time.
func (s *AuthService) Logout(ctx context.Context, accountID, sessionID primitive.ObjectID) error {
	log := s.deps.Logger
	now := s.deps.Now()
	if err := s.deps.Store.Sessions().Revoke(ctx, sessionID, RevokeLogout, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Error("error revoking session", zap.Error(err))
		return util.InternalError(err)
	}
	countRevoked(RevokeLogout, 1)
	acc, err := s.deps.Store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		log.Warn("logout for missing account", zap.Error(err))
		return nil
	}
	acc.LastLogout = &now
	acc.UpdatedAt = now
	if err := s.deps.Store.Accounts().Update(ctx, acc); err != nil {
		log.Warn("error recording logout", zap.Error(err))
	}
	return nil
}

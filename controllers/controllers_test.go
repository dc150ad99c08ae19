package controllers_test

import (
	"HealthConnect/authorization"
	"HealthConnect/config"
	"HealthConnect/controllers"
	"HealthConnect/models"
	"HealthConnect/notification"
	"HealthConnect/ratelimit"
	"HealthConnect/repository"
	"HealthConnect/role"
	"HealthConnect/routes"
	"HealthConnect/services"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const (
	code     = "654321"
	password = "Pass123!"
)

type envelope struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
	Data    json.RawMessage        `json:"data"`
}

type api struct {
	t      *testing.T
	router *gin.Engine
	store  *repository.MemoryStore
	mail   *notification.Recorder
}

func newAPI(t *testing.T, authRequests int) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	controllers.RegisterValidators()

	cfg := config.Default()
	cfg.Env = "test"
	cfg.BcryptCost = bcrypt.MinCost
	cfg.Booking.TimeZone = "UTC"
	cfg.RateLimit.AuthRequests = authRequests
	require.NoError(t, cfg.Validate())

	log := zaptest.NewLogger(t)
	a := &api{t: t, store: repository.NewMemoryStore(), mail: notification.NewRecorder()}
	tokens := authorization.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer)
	svc := services.New(services.Deps{
		Store:        a.store,
		Notifier:     a.mail,
		Tokens:       tokens,
		Config:       cfg,
		Logger:       log,
		GenerateCode: func(int) (string, error) { return code, nil },
	})
	limiter := ratelimit.NewMemory(ratelimit.Rule{Limit: authRequests, Window: time.Minute}, time.Now)

	a.router = gin.New()
	routes.Routes(a.router, controllers.NewHandlers(svc, cfg, log),
		authorization.JWTAuth(tokens, svc.Sessions),
		ratelimit.PerIP(limiter, "auth", log))
	return a
}

func (a *api) do(method, path string, body interface{}, cookie *http.Cookie) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func tokenCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == authorization.CookieName {
			assert.True(t, c.HttpOnly)
			assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
			return c
		}
	}
	t.Fatalf("no %s cookie in response", authorization.CookieName)
	return nil
}

/*
* register, confirm the email, then log in through the emailed code
 */
func (a *api) signUp(email, r string, extra map[string]interface{}) *http.Cookie {
	a.t.Helper()
	body := map[string]interface{}{"name": "User " + email, "email": email, "password": password, "role": r}
	for k, v := range extra {
		body[k] = v
	}
	w, _ := a.do(http.MethodPost, "/auth/register", body, nil)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	w, env := a.do(http.MethodPost, "/auth/verify-otp", map[string]string{
		"email": email, "otp": code, "role": r, "purpose": string(models.PurposeRegistration),
	}, nil)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(a.t, "email verified successfully", env.Message)

	return a.logIn(email, r)
}

func (a *api) logIn(email, r string) *http.Cookie {
	a.t.Helper()
	w, _ := a.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password, "role": r}, nil)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	w, _ = a.do(http.MethodPost, "/auth/verify-otp", map[string]string{
		"email": email, "otp": code, "role": r, "purpose": string(models.PurposeLogin),
	}, nil)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return tokenCookie(a.t, w)
}

// adminLogIn seeds an admin account, admins cannot register, then logs it in.
func (a *api) adminLogIn(email, adminRole string) *http.Cookie {
	a.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(a.t, err)
	now := time.Now().UTC()
	require.NoError(a.t, a.store.Accounts().Create(context.Background(), &models.Account{
		Name: "Admin " + email, Email: email, PasswordHash: string(hash), Role: role.Admin,
		IsEmailVerified: true, IsActive: true,
		Admin:     &models.AdminProfile{AdminRole: adminRole},
		CreatedAt: now, UpdatedAt: now,
	}))
	return a.logIn(email, "admin")
}

func doctorFields() map[string]interface{} {
	return map[string]interface{}{"specialization": "Dermatology", "qualification": "MD", "experience": 8}
}

func TestHealthIsPublic(t *testing.T) {
	a := newAPI(t, 50)
	w, env := a.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestSignUpAndMe(t *testing.T) {
	a := newAPI(t, 50)
	cookie := a.signUp("pat@example.com", "patient", nil)

	w, env := a.do(http.MethodGet, "/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.Account
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "pat@example.com", me.Email)
	assert.NotContains(t, string(env.Data), "passwordHash")

	w, env = a.do(http.MethodGet, "/auth/sessions", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []models.Session
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	assert.Len(t, sessions, 1)
}

func TestPrivateRoutesNeedToken(t *testing.T) {
	a := newAPI(t, 50)
	w, env := a.do(http.MethodGet, "/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Unauthenticated", env.Code)

	w, _ = a.do(http.MethodGet, "/auth/me", nil, &http.Cookie{Name: authorization.CookieName, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutEndsSession(t *testing.T) {
	a := newAPI(t, 50)
	cookie := a.signUp("out@example.com", "patient", nil)

	w, _ := a.do(http.MethodPost, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := tokenCookie(t, w)
	assert.Empty(t, cleared.Value)

	w, _ = a.do(http.MethodGet, "/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRefuseOtherRoles(t *testing.T) {
	a := newAPI(t, 50)
	cookie := a.signUp("nosy@example.com", "patient", nil)

	w, env := a.do(http.MethodGet, "/admin/users", nil, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NotAuthorized", env.Code)

	w, _ = a.do(http.MethodGet, "/doctor/schedule", nil, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBindErrors(t *testing.T) {
	a := newAPI(t, 50)
	tests := []struct {
		name string
		body interface{}
		rule string
	}{
		{"bad role", map[string]string{"name": "X", "email": "x@example.com", "password": password, "role": "nurse"}, "role"},
		{"bad email", map[string]string{"name": "X", "email": "not-an-email", "password": password, "role": "patient"}, "email"},
		{"missing name", map[string]string{"email": "x@example.com", "password": password, "role": "patient"}, "required"},
		{"malformed", "{not json", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := a.do(http.MethodPost, "/auth/register", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "ValidationError", env.Code)
			if tt.rule != "" {
				assert.Equal(t, tt.rule, env.Details["rule"])
			}
		})
	}
}

func TestInvalidPathID(t *testing.T) {
	a := newAPI(t, 50)
	cookie := a.signUp("path@example.com", "patient", nil)
	w, env := a.do(http.MethodGet, "/appointments/not-an-id", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "not-an-id", env.Details["id"])
}

func TestAuthEndpointsRateLimited(t *testing.T) {
	a := newAPI(t, 2)
	body := map[string]string{"email": "ghost@example.com", "password": password, "role": "patient"}
	for i := 0; i < 2; i++ {
		w, _ := a.do(http.MethodPost, "/auth/login", body, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w, env := a.do(http.MethodPost, "/auth/login", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RateLimited", env.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// registration is not throttled
	w, _ = a.do(http.MethodPost, "/auth/register", map[string]string{
		"name": "Late", "email": "late@example.com", "password": password, "role": "patient",
	}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

/*
* the doctor publishes a week, the patient books a slot
* the same slot is refused to a second patient and disappears from the free list
 */
func TestBookingFlow(t *testing.T) {
	a := newAPI(t, 50)
	doctorCookie := a.signUp("doc@example.com", "doctor", doctorFields())
	patientCookie := a.signUp("pat@example.com", "patient", nil)
	otherCookie := a.signUp("other@example.com", "patient", nil)

	week := make([]map[string]interface{}, 0, len(models.Weekdays))
	for _, d := range models.Weekdays {
		week = append(week, map[string]interface{}{
			"day":   d,
			"slots": []map[string]interface{}{{"slotNumber": 11}, {"slotNumber": 12}},
		})
	}
	w, env := a.do(http.MethodPut, "/doctor/schedule", map[string]interface{}{"schedule": week}, doctorCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sched models.WeeklySchedule
	require.NoError(t, json.Unmarshal(env.Data, &sched))
	doctorID := sched.DoctorID.Hex()

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	w, env = a.do(http.MethodGet, "/doctors/"+doctorID+"/slots?date="+tomorrow, nil, patientCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, strings.Count(string(env.Data), "slotNumber"))

	booking := map[string]interface{}{"doctorId": doctorID, "date": tomorrow, "slotNumber": 12, "reason": "rash"}
	w, env = a.do(http.MethodPost, "/appointments", booking, patientCookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var appt models.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.Equal(t, models.StatusPending, appt.Status)

	w, env = a.do(http.MethodPost, "/appointments", booking, otherCookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SlotUnavailable", env.Code)

	w, _ = a.do(http.MethodPost, "/appointments", booking, doctorCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = a.do(http.MethodGet, "/doctors/"+doctorID+"/slots?date="+tomorrow, nil, patientCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, strings.Count(string(env.Data), "slotNumber"))

	w, _ = a.do(http.MethodGet, "/appointments/"+appt.ID.Hex(), nil, otherCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = a.do(http.MethodPatch, "/appointments/"+appt.ID.Hex()+"/status", map[string]string{"status": "scheduled"}, doctorCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.Equal(t, models.StatusScheduled, appt.Status)

	w, env = a.do(http.MethodPatch, "/appointments/"+appt.ID.Hex()+"/status", map[string]string{"status": "completed"}, patientCookie)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w, _ = a.do(http.MethodGet, "/appointments", nil, patientCookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateProfileRejectsEmptyBody(t *testing.T) {
	a := newAPI(t, 50)
	cookie := a.signUp("prof@example.com", "patient", nil)

	w, env := a.do(http.MethodPut, "/auth/profile", map[string]string{}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ValidationError", env.Code)

	w, env = a.do(http.MethodPut, "/auth/profile", map[string]string{"gender": "female"}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "profile updated successfully", env.Message)
}

func TestForgotPasswordSendsLink(t *testing.T) {
	a := newAPI(t, 50)
	a.signUp("lost@example.com", "patient", nil)

	w, _ := a.do(http.MethodPost, "/auth/forgot-password", map[string]string{"email": "lost@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, a.mail.Count(notification.TemplatePasswordReset, "lost@example.com"))

	w, env := a.do(http.MethodPost, "/auth/reset-password/bogus", map[string]string{"password": "New123!x", "confirmPassword": "New123!x"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidOrExpiredCode", env.Code)
}

func TestChangeUserRole(t *testing.T) {
	a := newAPI(t, 50)
	a.signUp("pat@example.com", "patient", nil)
	pat, err := a.store.Accounts().FindByEmail(context.Background(), "pat@example.com")
	require.NoError(t, err)
	path := "/admin/users/" + pat.ID.Hex() + "/role"
	body := map[string]string{"userType": "patient", "newRole": "doctor", "reason": "licensed"}

	ops := a.adminLogIn("ops@example.com", models.AdminRoleAdmin)
	w, env := a.do(http.MethodPut, path, body, ops)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "only super admin can change user roles", env.Message)

	root := a.adminLogIn("root@example.com", models.AdminRoleSuper)
	w, _ = a.do(http.MethodPut, path, map[string]string{"userType": "patient"}, root)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = a.do(http.MethodPut, path, body, root)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "user role updated successfully", env.Message)
	var res struct {
		User struct {
			Role               string `json:"role"`
			VerificationStatus string `json:"verificationStatus"`
		} `json:"user"`
		RevokedSessions int64 `json:"revokedSessions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "doctor", res.User.Role)
	assert.Equal(t, "pending", res.User.VerificationStatus)
	assert.Equal(t, int64(1), res.RevokedSessions)

	w, env = a.do(http.MethodGet, "/admin/logs?actionType=role_change", nil, root)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var logs struct {
		Items []models.AdminActionLog `json:"items"`
		Total int64                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	require.Equal(t, int64(1), logs.Total)
	assert.Equal(t, "licensed", logs.Items[0].Reason)
	assert.Equal(t, "Patient", logs.Items[0].TargetUserType)
}

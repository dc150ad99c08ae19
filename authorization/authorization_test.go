package authorization

import (
	"HealthConnect/models"
	"HealthConnect/role"
	"HealthConnect/util"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeSessions struct {
	sessions map[string]*models.Session
}

func (f fakeSessions) Authenticate(_ context.Context, tokenID string) (*models.Session, error) {
	s, ok := f.sessions[tokenID]
	if !ok {
		return nil, util.NewError(util.KindUnauthenticated, util.SESSION_EXPIRED)
	}
	return s, nil
}

func testAccount(r role.Role) *models.Account {
	return &models.Account{ID: primitive.NewObjectID(), Email: "a@x.com", Role: r}
}

func TestTokenRoundTripAndTamper(t *testing.T) {
	tm := NewTokenManager("secret", "healthconnect")
	acc := testAccount(role.Patient)
	now := time.Now()

	raw, err := tm.Generate(acc, "tok-1", now, now.Add(time.Hour))
	require.NoError(t, err)

	claims, err := tm.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", claims.ID)
	assert.Equal(t, acc.ID.Hex(), claims.Subject)
	assert.Equal(t, role.Patient, claims.Role)

	other := NewTokenManager("other-secret", "healthconnect")
	_, err = other.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := tm.Generate(acc, "tok-2", now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = tm.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	tm := NewTokenManager("secret", "healthconnect")
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "tok", Issuer: "healthconnect"},
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.Parse(raw)
	assert.Error(t, err)
}

func newRouter(tm *TokenManager, checker SessionChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	private := r.Group("/", JWTAuth(tm, checker))
	private.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentAccountID(c).Hex(), "role": CurrentRole(c), "tokenId": CurrentTokenID(c)})
	})
	private.GET("/admin", AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	tm := NewTokenManager("secret", "healthconnect")
	patient := testAccount(role.Patient)
	now := time.Now()
	raw, err := tm.Generate(patient, "live", now, now.Add(time.Hour))
	require.NoError(t, err)
	revoked, err := tm.Generate(patient, "revoked", now, now.Add(time.Hour))
	require.NoError(t, err)

	checker := fakeSessions{sessions: map[string]*models.Session{
		"live": {ID: primitive.NewObjectID(), AccountID: patient.ID, Role: role.Patient, TokenID: "live"},
	}}
	r := newRouter(tm, checker)

	tests := []struct {
		name   string
		path   string
		setup  func(req *http.Request)
		status int
	}{
		{"missing token", "/me", func(*http.Request) {}, http.StatusUnauthorized},
		{"garbage token", "/me", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"revoked session", "/me", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+revoked) }, http.StatusUnauthorized},
		{"bearer ok", "/me", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+raw) }, http.StatusOK},
		{"cookie ok", "/me", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: CookieName, Value: raw}) }, http.StatusOK},
		{"patient on admin route", "/admin", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+raw) }, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), patient.ID.Hex())
			}
		})
	}
}

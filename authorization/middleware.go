package authorization

import (
	"HealthConnect/models"
	"HealthConnect/role"
	"HealthConnect/util"
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CookieName = "token"

	ctxAccountID = "accountId"
	ctxRole      = "role"
	ctxEmail     = "email"
	ctxTokenID   = "tokenId"
	ctxSessionID = "sessionId"
)

// SessionChecker resolves a token id to a live session.
type SessionChecker interface {
	Authenticate(ctx context.Context, tokenID string) (*models.Session, error)
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

/*
* Read the token from cookie or bearer header
* Verify signature and the session behind it
* Put the caller in the context
 */
func JWTAuth(tm *TokenManager, sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			abort(c, util.ErrUnauthenticated)
			return
		}
		claims, err := tm.Parse(raw)
		if err != nil {
			abort(c, util.NewError(util.KindUnauthenticated, util.SESSION_EXPIRED))
			return
		}
		session, err := sessions.Authenticate(c.Request.Context(), claims.ID)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(ctxAccountID, session.AccountID)
		c.Set(ctxRole, session.Role)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxTokenID, claims.ID)
		c.Set(ctxSessionID, session.ID)
		c.Next()
	}
}

// Authorize lets only the given roles through. It must run after JWTAuth.
func Authorize(roles ...role.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := CurrentRole(c)
		for _, r := range roles {
			if r == current {
				c.Next()
				return
			}
		}
		if len(roles) == 1 && roles[0] == role.Admin {
			abort(c, util.NewError(util.KindNotAuthorized, util.ADMIN_ACCESS_REQUIRED))
			return
		}
		abort(c, util.ErrNotAuthorized)
	}
}

func AdminOnly() gin.HandlerFunc {
	return Authorize(role.Admin)
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(util.StatusFor(err), util.FailedResponse(err))
}

func CurrentAccountID(c *gin.Context) primitive.ObjectID {
	id, _ := c.Get(ctxAccountID)
	oid, _ := id.(primitive.ObjectID)
	return oid
}

func CurrentRole(c *gin.Context) role.Role {
	r, _ := c.Get(ctxRole)
	rr, _ := r.(role.Role)
	return rr
}

func CurrentTokenID(c *gin.Context) string {
	return c.GetString(ctxTokenID)
}

func CurrentSessionID(c *gin.Context) primitive.ObjectID {
	id, _ := c.Get(ctxSessionID)
	oid, _ := id.(primitive.ObjectID)
	return oid
}

// Package controllers binds HTTP requests to the booking services and writes the
// JSON envelopes.
package controllers

import (
	"HealthConnect/authorization"
	"HealthConnect/config"
	"HealthConnect/services"
	"HealthConnect/util"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handlers struct {
	svc *services.Services
	cfg config.Config
	log *zap.Logger
}

func NewHandlers(svc *services.Services, cfg config.Config, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{svc: svc, cfg: cfg, log: log}
}

// fail writes err with the status of its kind. Internal errors are logged here once.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := util.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, util.FailedResponse(err))
}

func (h *Handlers) bind(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		h.fail(c, bindError(err))
		return false
	}
	return true
}

func (h *Handlers) pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		h.fail(c, util.ValidationError("invalid "+name).WithDetail(name, c.Param(name)))
		return primitive.NilObjectID, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func actor(c *gin.Context) services.Actor {
	return services.Actor{ID: authorization.CurrentAccountID(c), Role: authorization.CurrentRole(c)}
}

func (h *Handlers) setTokenCookie(c *gin.Context, token string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(authorization.CookieName, token, maxAge, "/", "", h.cfg.Server.CookieSecure, true)
}

func (h *Handlers) clearTokenCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(authorization.CookieName, "", -1, "/", "", h.cfg.Server.CookieSecure, true)
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, util.SuccessResponse(gin.H{"status": "ok"}))
}

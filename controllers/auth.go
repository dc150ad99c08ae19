package controllers

import (
	"HealthConnect/authorization"
	"HealthConnect/models"
	"HealthConnect/services"
	"HealthConnect/util"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Auth registers the unauthenticated account routes. limit throttles the code-sending
// and credential-checking endpoints per client IP.
func Auth(router *gin.Engine, h *Handlers, limit gin.HandlerFunc) {
	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", limit, h.Login)
		auth.POST("/verify-otp", limit, h.VerifyOTP)
		auth.POST("/resend-otp", limit, h.ResendOTP)
		auth.POST("/forgot-password", limit, h.ForgotPassword)
		auth.POST("/reset-password/:token", h.ResetPassword)
	}
}

// Account registers the routes that act on the caller's own account.
func Account(router *gin.Engine, h *Handlers) {
	auth := router.Group("/auth")
	{
		auth.GET("/me", h.Me)
		auth.POST("/logout", h.Logout)
		auth.POST("/change-password", h.ChangePassword)
		auth.GET("/sessions", h.ListSessions)
		auth.DELETE("/sessions/:id", h.RevokeSession)
		auth.PUT("/profile", h.UpdateProfile)
		auth.DELETE("/account", h.DeleteAccount)
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required,role"`

	Specialization string     `json:"specialization"`
	Qualification  string     `json:"qualification"`
	Experience     *int       `json:"experience"`
	About          string     `json:"about"`
	ContactNumber  string     `json:"contactNumber"`
	DateOfBirth    *time.Time `json:"dateOfBirth"`
	Gender         string     `json:"gender"`
	BloodGroup     string     `json:"bloodGroup"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type verifyRequest struct {
	Email   string `json:"email" binding:"required"`
	OTP     string `json:"otp" binding:"required"`
	Role    string `json:"role" binding:"required"`
	Purpose string `json:"purpose" binding:"required"`
}

type resendRequest struct {
	Email   string `json:"email" binding:"required"`
	Purpose string `json:"purpose" binding:"required"`
}

type forgotRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetRequest struct {
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

/*
* Bind the registration fields, role specific ones included
* Pass to the services, the code goes out by mail
 */
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.Auth.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Doctor: services.DoctorFields{
			Specialization: req.Specialization,
			Qualification:  req.Qualification,
			Experience:     req.Experience,
			About:          req.About,
			ContactNumber:  req.ContactNumber,
		},
		Patient: services.PatientFields{
			DateOfBirth:   req.DateOfBirth,
			Gender:        req.Gender,
			ContactNumber: req.ContactNumber,
			BloodGroup:    req.BloodGroup,
		},
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, util.MessageResponse(util.REGISTRATION_CODE_SENT, res))
}

func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.Auth.Login(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.LOGIN_CODE_SENT, res))
}

/*
* Registration codes confirm the email
* Login codes open the session, the token goes into the cookie and the body
 */
func (h *Handlers) VerifyOTP(c *gin.Context) {
	var req verifyRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.Auth.VerifyCode(c.Request.Context(), req.Email, req.OTP, req.Role, req.Purpose, requestMeta(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Purpose == models.PurposeRegistration {
		c.JSON(http.StatusOK, util.MessageResponse(util.EMAIL_VERIFIED, gin.H{"user": res.Account}))
		return
	}
	h.setTokenCookie(c, res.Token, res.ExpiresAt)
	c.JSON(http.StatusOK, util.MessageResponse(util.LOGIN_SUCCESSFUL, gin.H{
		"user":      res.Account,
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
		"loginInfo": res.LoginInfo,
	}))
}

func (h *Handlers) ResendOTP(c *gin.Context) {
	var req resendRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.Auth.ResendCode(c.Request.Context(), req.Email, req.Purpose); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.CODE_RESENT, nil))
}

func (h *Handlers) ForgotPassword(c *gin.Context) {
	var req forgotRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.Auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.RESET_LINK_SENT, nil))
}

func (h *Handlers) ResetPassword(c *gin.Context) {
	var req resetRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.Auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password, req.ConfirmPassword); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.PASSWORD_RESET_SUCCESSFUL, nil))
}

/*
* The current session survives, every other one is signed out
 */
func (h *Handlers) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !h.bind(c, &req) {
		return
	}
	err := h.svc.Auth.ChangePassword(c.Request.Context(), authorization.CurrentAccountID(c), authorization.CurrentTokenID(c),
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.PASSWORD_CHANGED, nil))
}

func (h *Handlers) Me(c *gin.Context) {
	acc, err := h.svc.Auth.Me(c.Request.Context(), authorization.CurrentAccountID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.SuccessResponse(acc))
}

func (h *Handlers) Logout(c *gin.Context) {
	if err := h.svc.Auth.Logout(c.Request.Context(), authorization.CurrentAccountID(c), authorization.CurrentSessionID(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.clearTokenCookie(c)
	c.JSON(http.StatusOK, util.MessageResponse(util.LOGGED_OUT, nil))
}

func (h *Handlers) ListSessions(c *gin.Context) {
	list, err := h.svc.Sessions.List(c.Request.Context(), authorization.CurrentAccountID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	current := authorization.CurrentSessionID(c)
	out := make([]gin.H, 0, len(list))
	for _, s := range list {
		out = append(out, gin.H{
			"id":           s.ID,
			"device":       s.Device,
			"ipAddress":    s.IPAddress,
			"lastActivity": s.LastActivity,
			"expiresAt":    s.ExpiresAt,
			"current":      s.ID == current,
		})
	}
	c.JSON(http.StatusOK, util.SuccessResponse(out))
}

func (h *Handlers) RevokeSession(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Sessions.Revoke(c.Request.Context(), authorization.CurrentAccountID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.SESSION_REVOKED, nil))
}

package controllers

import (
	"HealthConnect/authorization"
	"HealthConnect/services"
	"HealthConnect/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

func Admin(router *gin.Engine, h *Handlers) {
	admin := router.Group("/admin", authorization.AdminOnly())
	{
		admin.GET("/dashboard/stats", h.DashboardStats)
		admin.GET("/users", h.ListUsers)
		admin.PUT("/users/:id/verify", h.VerifyUser)
		admin.PUT("/users/:id/toggle-status", h.ToggleUserStatus)
		admin.PUT("/users/:id/role", h.UpdateUserRole)
		admin.GET("/logs", h.ListLogs)
	}
}

type toggleRequest struct {
	UserType string `json:"userType" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Reason   string `json:"reason"`
}

type roleChangeRequest struct {
	UserType string `json:"userType" binding:"required"`
	NewRole  string `json:"newRole" binding:"required"`
	Reason   string `json:"reason"`
}

type verifyUserRequest struct {
	UserType           string `json:"userType" binding:"required"`
	VerificationStatus string `json:"verificationStatus" binding:"required"`
	Reason             string `json:"reason"`
}

func (h *Handlers) DashboardStats(c *gin.Context) {
	stats, err := h.svc.Admin.DashboardStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.SuccessResponse(stats))
}

func (h *Handlers) ListUsers(c *gin.Context) {
	page, err := h.svc.Admin.ListUsers(c.Request.Context(), services.UserQuery{
		Role:               c.Query("role"),
		Status:             c.Query("status"),
		VerificationStatus: c.Query("verificationStatus"),
		Search:             c.Query("search"),
		Page:               queryInt(c, "page"),
		Limit:              queryInt(c, "limit"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.SuccessResponse(page))
}

func (h *Handlers) VerifyUser(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req verifyUserRequest
	if !h.bind(c, &req) {
		return
	}
	acc, err := h.svc.Admin.VerifyUser(c.Request.Context(), authorization.CurrentAccountID(c), id, services.VerifyInput{
		UserType: req.UserType,
		Status:   req.VerificationStatus,
		Reason:   req.Reason,
	}, requestMeta(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.USER_VERIFICATION_UPDATED, acc))
}

/*
* Suspend or activate a doctor or patient
* The response carries how many appointments and sessions were ended
 */
func (h *Handlers) ToggleUserStatus(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req toggleRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.Admin.ToggleUserStatus(c.Request.Context(), authorization.CurrentAccountID(c), id, services.ToggleInput{
		UserType: req.UserType,
		Action:   req.Action,
		Reason:   req.Reason,
	}, requestMeta(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.USER_STATUS_UPDATED, res))
}

func (h *Handlers) ListLogs(c *gin.Context) {
	page, err := h.svc.Admin.ListLogs(c.Request.Context(), services.LogQuery{
		ActionType:   c.Query("actionType"),
		TargetUserID: c.Query("targetUserId"),
		AdminID:      c.Query("adminId"),
		Page:         queryInt(c, "page"),
		Limit:        queryInt(c, "limit"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.SuccessResponse(page))
}

func (h *Handlers) UpdateUserRole(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req roleChangeRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.Admin.UpdateUserRole(c.Request.Context(), authorization.CurrentAccountID(c), id, services.RoleChangeInput{
		UserType: req.UserType,
		NewRole:  req.NewRole,
		Reason:   req.Reason,
	}, requestMeta(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.USER_ROLE_UPDATED, res))
}

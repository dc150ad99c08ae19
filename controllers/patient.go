package controllers

import (
	"HealthConnect/authorization"
	"HealthConnect/util"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

/*
* Bind the raw fields so unknown keys reach the allow-list check
* Pass to the services
 */
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var fields map[string]json.RawMessage
	if !h.bind(c, &fields) {
		return
	}
	if len(fields) == 0 {
		h.fail(c, util.ValidationError("no fields to update"))
		return
	}
	acc, err := h.svc.Auth.UpdateProfile(c.Request.Context(), authorization.CurrentAccountID(c), fields)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.PROFILE_UPDATED, acc))
}

// DeleteAccount removes the calling patient and clears the cookie.
func (h *Handlers) DeleteAccount(c *gin.Context) {
	if err := h.svc.Auth.DeleteAccount(c.Request.Context(), authorization.CurrentAccountID(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.clearTokenCookie(c)
	c.JSON(http.StatusOK, util.MessageResponse(util.ACCOUNT_DELETED, nil))
}

package controllers

import (
	"HealthConnect/authorization"
	"HealthConnect/role"
	"HealthConnect/services"
	"HealthConnect/util"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func Appointment(router *gin.Engine, h *Handlers) {
	appointment := router.Group("/appointments")
	{
		appointment.GET("", h.ListAppointments)
		appointment.POST("", authorization.Authorize(role.Patient), h.BookAppointment)
		appointment.GET("/:id", h.GetAppointment)
		appointment.PATCH("/:id/status", authorization.Authorize(role.Doctor, role.Patient), h.UpdateAppointmentStatus)
		appointment.PATCH("/:id", authorization.Authorize(role.Doctor, role.Patient), h.UpdateAppointment)
		appointment.DELETE("/:id", authorization.Authorize(role.Doctor, role.Patient), h.DeleteAppointment)
	}
}

type bookRequest struct {
	DoctorID   string `json:"doctorId" binding:"required"`
	Date       string `json:"date" binding:"required"`
	SlotNumber int    `json:"slotNumber"`
	Reason     string `json:"reason"`
}

type statusRequest struct {
	Status             string `json:"status" binding:"required"`
	Comment            string `json:"comment"`
	Notes              string `json:"notes"`
	CancellationReason string `json:"cancellationReason"`
}

/*
* Bind the doctor, date and slot
* Pass to the services, a taken slot is reported as unavailable
 */
func (h *Handlers) BookAppointment(c *gin.Context) {
	var req bookRequest
	if !h.bind(c, &req) {
		return
	}
	doctorID, err := primitive.ObjectIDFromHex(req.DoctorID)
	if err != nil {
		h.fail(c, util.ValidationError("invalid doctorId").WithDetail("doctorId", req.DoctorID))
		return
	}
	appt, err := h.svc.Appointments.Book(c.Request.Context(), authorization.CurrentAccountID(c), services.BookInput{
		DoctorID:   doctorID,
		Date:       req.Date,
		SlotNumber: req.SlotNumber,
		Reason:     req.Reason,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, util.MessageResponse(util.APPOINTMENT_BOOKED, appt))
}

func (h *Handlers) ListAppointments(c *gin.Context) {
	page, err := h.svc.Appointments.List(c.Request.Context(), actor(c), services.AppointmentQuery{
		Status:   c.Query("status"),
		Date:     c.Query("date"),
		Upcoming: c.Query("upcoming") == "true",
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.SuccessResponse(page))
}

func (h *Handlers) GetAppointment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	appt, err := h.svc.Appointments.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.SuccessResponse(appt))
}

func (h *Handlers) UpdateAppointmentStatus(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !h.bind(c, &req) {
		return
	}
	appt, err := h.svc.Appointments.UpdateStatus(c.Request.Context(), actor(c), id, services.StatusInput{
		Status:             req.Status,
		Comment:            req.Comment,
		Notes:              req.Notes,
		CancellationReason: req.CancellationReason,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.APPOINTMENT_UPDATED, appt))
}

/*
* Raw fields so anything outside the allow-list is refused by name
 */
func (h *Handlers) UpdateAppointment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var fields map[string]json.RawMessage
	if !h.bind(c, &fields) {
		return
	}
	appt, err := h.svc.Appointments.UpdateDetails(c.Request.Context(), actor(c), id, fields)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.APPOINTMENT_UPDATED, appt))
}

func (h *Handlers) DeleteAppointment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Appointments.Delete(c.Request.Context(), actor(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.APPOINTMENT_DELETED, nil))
}

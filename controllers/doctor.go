package controllers

import (
	"HealthConnect/authorization"
	"HealthConnect/role"
	"HealthConnect/services"
	"HealthConnect/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

func Doctor(router *gin.Engine, h *Handlers) {
	doctors := router.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
		doctors.GET("/:id/slots", h.AvailableSlots)
		doctors.GET("/:id/schedule", h.GetSchedule)
	}
	doctor := router.Group("/doctor", authorization.Authorize(role.Doctor))
	{
		doctor.GET("/schedule", h.MySchedule)
		doctor.PUT("/schedule", h.SetSchedule)
	}
}

type slotRequest struct {
	SlotNumber  int   `json:"slotNumber"`
	IsAvailable *bool `json:"isAvailable"`
}

type dayRequest struct {
	Day   string        `json:"day" binding:"required,weekday"`
	Slots []slotRequest `json:"slots" binding:"dive"`
}

type scheduleRequest struct {
	Schedule []dayRequest `json:"schedule" binding:"dive"`
}

func (h *Handlers) ListDoctors(c *gin.Context) {
	page, err := h.svc.Doctors.List(c.Request.Context(), services.DoctorQuery{
		Specialization: c.Query("specialization"),
		Search:         c.Query("search"),
		Page:           queryInt(c, "page"),
		Limit:          queryInt(c, "limit"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.SuccessResponse(page))
}

func (h *Handlers) GetDoctor(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	doc, err := h.svc.Doctors.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.SuccessResponse(doc))
}

/*
* The date comes from the query string
* Free slots of that day are returned in slot order
 */
func (h *Handlers) AvailableSlots(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	date := c.Query("date")
	slots, err := h.svc.Schedules.GetAvailableSlots(c.Request.Context(), id, date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.SuccessResponse(gin.H{"date": date, "slots": slots}))
}

func (h *Handlers) GetSchedule(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	sched, err := h.svc.Schedules.GetSchedule(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.SuccessResponse(sched))
}

func (h *Handlers) MySchedule(c *gin.Context) {
	sched, err := h.svc.Schedules.GetSchedule(c.Request.Context(), authorization.CurrentAccountID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.SuccessResponse(sched))
}

/*
* Bind the weekly template
* The whole template is replaced
 */
func (h *Handlers) SetSchedule(c *gin.Context) {
	var req scheduleRequest
	if !h.bind(c, &req) {
		return
	}
	days := make([]services.DayInput, 0, len(req.Schedule))
	for _, d := range req.Schedule {
		day := services.DayInput{Day: d.Day}
		for _, s := range d.Slots {
			day.Slots = append(day.Slots, services.SlotInput{SlotNumber: s.SlotNumber, IsAvailable: s.IsAvailable})
		}
		days = append(days, day)
	}
	sched, err := h.svc.Schedules.SetSchedule(c.Request.Context(), authorization.CurrentAccountID(c), days)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, util.MessageResponse(util.SCHEDULE_SAVED, sched))
}

package routes

import (
	"HealthConnect/controllers"
	"HealthConnect/metrics"

	"github.com/gin-gonic/gin"
)

// Routes wires every endpoint. auth authenticates the caller, limit throttles the
// public credential endpoints per IP.
func Routes(r *gin.Engine, h *controllers.Handlers, auth, limit gin.HandlerFunc) {

	//public
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	controllers.Auth(r, h, limit)
	//privateroutes
	r.Use(auth)
	controllers.Account(r, h)
	controllers.Doctor(r, h)
	controllers.Appointment(r, h)
	controllers.Admin(r, h)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"agency-hub/internal/api/middleware"
	"agency-hub/internal/notify"
)

// Notifications streams toasts and refresh requests to the actor.
func Notifications(hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.Serve(c.Writer, c.Request, middleware.ActorFrom(c).UserID)
	}
}

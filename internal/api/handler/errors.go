package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"agency-hub/internal/panel"
)

var logger = loggo.GetLogger("agencyhub.api")

// statusFor maps an error kind to the HTTP status returned for it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.NotValid), errors.Is(err, errors.BadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errors.NotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.AlreadyExists), errors.Is(err, panel.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, errors.Forbidden):
		return http.StatusForbidden
	case errors.Is(err, errors.Unauthorized), errors.Is(err, panel.ErrNoUserContext):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), errors.Details(err))
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

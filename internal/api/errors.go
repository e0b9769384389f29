package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/foxseedlab/studentize/internal/advisor"
	"github.com/foxseedlab/studentize/internal/auth"
	"github.com/foxseedlab/studentize/internal/session"
	"github.com/foxseedlab/studentize/internal/signaling"
	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, session.ErrNotFound), errors.Is(err, advisor.ErrUnknownAdvisor):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, signaling.ErrEmptyOffer):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrScheduledSessionEnded), errors.Is(err, session.ErrMeetingBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoTranscript), errors.Is(err, session.ErrNoMeetingLink):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders {"error": "..."}; internal errors are logged and masked.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey))
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type startAutoJoinRequest struct {
	ScheduledSessionID string `json:"scheduledSessionId"`
}

type startSummaryRequest struct {
	SessionID string `json:"sessionId"`
}

// handleStartAutoJoin enqueues the auto-join workflow with the caller's own token,
// which the workflow reuses when it wakes up.
func (s *Server) handleStartAutoJoin(c *gin.Context) {
	var req startAutoJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ScheduledSessionID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduledSessionId is required"})
		return
	}
	p, _ := principal(c)
	if err := s.workflows.StartAutoJoin(c.Request.Context(), strings.TrimSpace(req.ScheduledSessionID), p.Token); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStartSummary(c *gin.Context) {
	var req startSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}
	if err := s.workflows.StartSummary(c.Request.Context(), strings.TrimSpace(req.SessionID)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

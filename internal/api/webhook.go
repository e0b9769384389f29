package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/foxseedlab/studentize/internal/auth"
	"github.com/foxseedlab/studentize/internal/session"
	"github.com/gin-gonic/gin"
)

const webhookSecretHeader = "X-Webhook-Secret"

type meetingBotWebhookRequest struct {
	BotID      string                  `json:"botId"`
	DeliveryID string                  `json:"deliveryId"`
	Segments   []session.IngestSegment `json:"segments"`
}

// handleMeetingBotWebhook accepts transcripts pushed by the vendor bot. The shared
// secret stands in for a bearer token, so the call runs as the service principal.
func (s *Server) handleMeetingBotWebhook(c *gin.Context) {
	secret := s.cfg.MeetingBotWebhookSecret
	if secret == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	got := c.GetHeader(webhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}
	var req meetingBotWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := auth.WithPrincipal(c.Request.Context(), &auth.Principal{Kind: auth.PrincipalService})
	result, err := s.sessions.IngestBotTranscript(ctx, req.BotID, req.DeliveryID, req.Segments)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxOfferBytes = 64 << 10

// handleSignaling forwards a raw SDP offer and returns the upstream answer with
// its status code unchanged.
func (s *Server) handleSignaling(c *gin.Context) {
	offer, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxOfferBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "sdp offer is too large"})
		return
	}
	answer, err := s.signaling.Exchange(c.Request.Context(), c.Param("advisor"), offer)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			slog.Error("realtime signaling failed", "error", err, "advisor", c.Param("advisor"))
			c.JSON(http.StatusBadGateway, gin.H{"error": "realtime session could not be created"})
			return
		}
		writeError(c, err)
		return
	}
	c.Data(answer.StatusCode, answer.ContentType, answer.Body)
}

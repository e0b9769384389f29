package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/foxseedlab/studentize/internal/auth"
	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.RecordRequest(c.Request.Method, route, strconv.Itoa(status), elapsed)

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// requireAuth resolves the bearer token into an auth.Principal on the request context.
func requireAuth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.ParseBearer(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		principal, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			slog.Debug("bearer token rejected", "error", err, "request_id", c.GetString(requestIDKey))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

func principal(c *gin.Context) (*auth.Principal, bool) {
	return auth.PrincipalFrom(c.Request.Context())
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/foxseedlab/studentize/internal/session"
	"github.com/gin-gonic/gin"
)

const maxRPCBodyBytes = 1 << 20

type rpcHandler func(ctx context.Context, input json.RawMessage) (any, error)

type idInput struct {
	ID string `json:"id"`
}

type scheduledSessionIDInput struct {
	ScheduledSessionID string `json:"scheduledSessionId"`
}

type sessionIDInput struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) procedures() map[string]rpcHandler {
	return map[string]rpcHandler{
		"scheduledSessions.create": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in session.CreateScheduledSessionInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.sessions.CreateScheduledSession(ctx, in)
		},
		"scheduledSessions.get": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in idInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.sessions.GetScheduledSession(ctx, in.ID)
		},
		"scheduledSessions.end": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in idInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.sessions.EndScheduledSession(ctx, in.ID)
		},
		"sessions.create": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in session.CreateSessionInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.sessions.CreateSession(ctx, in)
		},
		"sessions.get": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in idInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.sessions.GetSession(ctx, in.ID)
		},
		"sessions.delete": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in idInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			if err := s.sessions.DeleteSession(ctx, in.ID); err != nil {
				return nil, err
			}
			return gin.H{"status": "ok"}, nil
		},
		"sessions.sendBotToMeeting": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in scheduledSessionIDInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.sessions.SendBotToMeeting(ctx, in.ScheduledSessionID)
		},
		"sessions.summarizeTranscription": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in sessionIDInput
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return s.sessions.SummarizeTranscription(ctx, in.SessionID)
		},
	}
}

func decodeInput(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: request body is required", session.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", session.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) handleRPC(c *gin.Context) {
	procedure := c.Param("procedure")
	handler, ok := s.procedures()[procedure]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown procedure " + procedure})
		return
	}
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxRPCBodyBytes)).Decode(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
		return
	}
	out, err := handler(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

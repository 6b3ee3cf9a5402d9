package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnstream/server/internal/auth"
	"learnstream/server/internal/lifecycle"
	"learnstream/server/internal/provider"
	"learnstream/server/internal/store"
)

type APIError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

func writeData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"data":     data,
		"trace_id": traceIDFromContext(c),
	})
}

func writeError(c *gin.Context, status int, code, message string, retryable bool, details map[string]any) {
	c.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			Retryable: retryable,
			Details:   details,
		},
		"trace_id": traceIDFromContext(c),
	})
}

func writeUnauthorized(c *gin.Context) {
	writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", false, nil)
}

// writeAuthError maps auth.Service errors. Anything unrecognized is a
// backend failure rather than a rejected credential.
func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired", false, nil)
	case errors.Is(err, auth.ErrUserInactive):
		writeError(c, http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is not active", false, nil)
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, store.ErrNotFound):
		writeUnauthorized(c)
	default:
		writeError(c, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication temporarily unavailable", true, nil)
	}
}

// webhookAck is the provider-facing 200 body. It skips the data envelope.
type webhookAck struct {
	Status string `json:"status"`
	Event  string `json:"event"`
	Reason string `json:"reason,omitempty"`
}

func writeAck(c *gin.Context, res lifecycle.Result) {
	c.JSON(http.StatusOK, webhookAck{Status: string(res.Status), Event: res.Event, Reason: res.Reason})
}

func (s *Server) writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(c, http.StatusNotFound, "LESSON_NOT_FOUND", "Lesson not found", false, nil)
	case errors.Is(err, store.ErrConflict):
		writeError(c, http.StatusConflict, "ASSET_ALREADY_LINKED", "Upload or asset already belongs to a lesson", false, nil)
	default:
		s.log.Error("lesson_store_failed", "trace_id", traceIDFromContext(c), "error", err.Error())
		writeError(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Lesson store unavailable", true, nil)
	}
}

// writeProviderError passes the provider's code and retryability through.
// Only a missing asset is the caller's problem; the rest is a bad gateway.
func (s *Server) writeProviderError(c *gin.Context, event string, err error) {
	var pe *provider.Error
	if !errors.As(err, &pe) {
		s.log.Error(event, "trace_id", traceIDFromContext(c), "error", err.Error())
		writeError(c, http.StatusBadGateway, "UPSTREAM_ERROR", "Video provider request failed", true, nil)
		return
	}
	s.log.Error(event,
		"trace_id", traceIDFromContext(c),
		"code", pe.Code,
		"status", pe.StatusCode,
		"error", pe.InternalMessage,
	)
	status := http.StatusBadGateway
	switch {
	case pe.Code == "NOT_FOUND":
		status = http.StatusNotFound
	case pe.Category == "request":
		status = http.StatusBadRequest
	}
	writeError(c, status, pe.Code, pe.UserMessage, pe.Retryable, nil)
}

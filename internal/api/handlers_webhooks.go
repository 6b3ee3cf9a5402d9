package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"learnstream/server/internal/lifecycle"
	"learnstream/server/internal/model"
	"learnstream/server/internal/webhook"
)

const maxWebhookBody = 1 << 20

func signatureHeader(c *gin.Context) string {
	if h := c.GetHeader("Mux-Signature"); h != "" {
		return h
	}
	return c.GetHeader("X-Mux-Signature")
}

func (s *Server) muxWebhook(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Webhook body too large", false, nil)
			return
		}
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Could not read webhook body", false, nil)
		return
	}

	if !s.verifier.Verify(raw, signatureHeader(c)) {
		s.metrics.ObserveSignatureFailure()
		s.log.Warn("webhook_signature_rejected",
			"trace_id", traceIDFromContext(c),
			"body_bytes", len(raw),
		)
		writeError(c, http.StatusUnauthorized, "INVALID_SIGNATURE", "Invalid webhook signature", false, nil)
		return
	}

	evt, err := webhook.Normalize(raw)
	if err != nil {
		s.metrics.ObserveWebhook("malformed", string(lifecycle.StatusIgnored))
		s.log.Warn("webhook_ignored",
			"trace_id", traceIDFromContext(c),
			"reason", "malformed envelope",
			"error", err.Error(),
		)
		res := lifecycle.Result{Status: lifecycle.StatusIgnored, Reason: "malformed envelope"}
		s.recordIgnored(c, res, "", raw)
		writeAck(c, res)
		return
	}

	s.log.Info("webhook_received",
		"trace_id", traceIDFromContext(c),
		"event", evt.Type(),
		"event_id", evt.EventID(),
		"body_bytes", len(raw),
	)

	res, err := s.reconciler.Apply(c.Request.Context(), evt)
	if err != nil {
		s.metrics.ObserveWebhook(evt.Type(), "failed")
		var retry *lifecycle.RetryableError
		retryable := errors.As(err, &retry)
		s.log.Error("webhook_failed",
			"trace_id", traceIDFromContext(c),
			"event", evt.Type(),
			"event_id", evt.EventID(),
			"retryable", retryable,
			"error", err.Error(),
		)
		writeError(c, http.StatusInternalServerError, "WEBHOOK_PROCESSING_FAILED", "Webhook processing failed", true, nil)
		return
	}

	s.metrics.ObserveWebhook(evt.Type(), string(res.Status))
	if res.Status == lifecycle.StatusIgnored {
		s.log.Info("webhook_ignored",
			"trace_id", traceIDFromContext(c),
			"event", evt.Type(),
			"event_id", evt.EventID(),
			"reason", res.Reason,
		)
		s.recordIgnored(c, res, evt.EventID(), raw)
	}
	writeAck(c, res)
}

// recordIgnored keeps a copy of deliveries that changed nothing. A failed
// write is logged and never turns the ack into an error.
func (s *Server) recordIgnored(c *gin.Context, res lifecycle.Result, eventID string, raw []byte) {
	if s.webhookLog == nil {
		return
	}
	err := s.webhookLog.LogWebhook(c.Request.Context(), model.WebhookLog{
		ReceivedAt: time.Now().UTC(),
		EventType:  res.Event,
		EventID:    eventID,
		Reason:     res.Reason,
		Payload:    raw,
	})
	if err != nil {
		s.log.Warn("webhook_log_failed", "trace_id", traceIDFromContext(c), "event", res.Event, "error", err.Error())
	}
}

package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"paypal-bridge/internal/logger"
	"paypal-bridge/internal/metrics"
	"paypal-bridge/internal/notification"
	"paypal-bridge/internal/payment"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// SignatureVerifier checks webhook transmissions against PayPal.
type SignatureVerifier interface {
	WebhookVerificationEnabled() bool
	AccessToken(ctx context.Context) (string, error)
	VerifyWebhookSignature(ctx context.Context, token string, h http.Header, body []byte) (bool, error)
}

type Handler struct {
	reconciler notification.Reconciler[Event]
	payments   payment.Repository
	verifier   SignatureVerifier
	metrics    *metrics.Registry
}

// NewHandler wires the webhook endpoint. verifier may be nil.
func NewHandler(
	reconciler notification.Reconciler[Event],
	payments payment.Repository,
	verifier SignatureVerifier,
	m *metrics.Registry,
) *Handler {
	return &Handler{
		reconciler: reconciler,
		payments:   payments,
		verifier:   verifier,
		metrics:    m,
	}
}

// ServeHTTP answers 200 for every event it could read, even when nothing
// matched, and 500 when PayPal should deliver again.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	log := logger.FromCtx(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("Failed to read webhook body", zap.Error(err))
		http.Error(w, "failed to read body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error("Unparseable webhook payload", zap.Error(err))
		http.Error(w, "invalid JSON payload", http.StatusInternalServerError)
		return
	}
	h.metrics.Inc(metrics.WebhookReceived)

	log = log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	signatureValid := false
	if h.verifier != nil && h.verifier.WebhookVerificationEnabled() {
		ok, err := h.verify(ctx, r.Header, body)
		if err != nil {
			log.Error("Webhook signature verification failed", zap.Error(err))
			http.Error(w, "verification unavailable", http.StatusInternalServerError)
			return
		}
		if !ok {
			log.Warn("Invalid webhook signature")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		signatureValid = true
	}

	var auditID int64
	if ev.ID != "" {
		id, dup, err := h.payments.SaveWebhookEvent(ctx, payment.WebhookEvent{
			EventID:        ev.ID,
			EventType:      ev.Type,
			ResourceID:     ev.ProviderOrderID(),
			Payload:        body,
			SignatureValid: signatureValid,
		})
		if err != nil {
			log.Error("Failed to store webhook event", zap.Error(err))
			http.Error(w, "failed to store event", http.StatusInternalServerError)
			return
		}
		if dup {
			h.metrics.Inc(metrics.WebhookDuplicate)
			log.Info("Duplicate webhook delivery ignored")
			w.WriteHeader(http.StatusOK)
			return
		}
		auditID = id
	}

	handled, err := h.reconciler.Reconcile(ctx, ev)
	if err != nil {
		log.Error("Failed to reconcile webhook", zap.Error(err))
		if auditID != 0 {
			_ = h.payments.MarkWebhookFailed(ctx, auditID, err.Error())
		}
		http.Error(w, "failed to process event", http.StatusInternalServerError)
		return
	}
	if !handled {
		h.metrics.Inc(metrics.WebhookIgnored)
		log.Info("Ignoring webhook event type")
	}

	if auditID != 0 {
		if err := h.payments.MarkWebhookProcessed(ctx, auditID); err != nil {
			log.Warn("Failed to mark webhook processed", zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) verify(ctx context.Context, header http.Header, body []byte) (bool, error) {
	token, err := h.verifier.AccessToken(ctx)
	if err != nil {
		return false, err
	}
	return h.verifier.VerifyWebhookSignature(ctx, token, header, body)
}

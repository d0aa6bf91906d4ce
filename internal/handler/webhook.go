package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v79"

	"gemchat/internal/reconciler"
)

// maxWebhookBody bounds the webhook payload we will read. Stripe events are
// far smaller than this.
const maxWebhookBody = 1 << 20

// WebhookVerifier checks the Stripe signature and returns the parsed event.
type WebhookVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// EventApplier applies one parsed billing event to subscription state.
type EventApplier interface {
	Apply(ctx context.Context, event reconciler.Event) error
}

// WebhookHandler receives Stripe webhook deliveries and feeds them to the
// reconciler.
type WebhookHandler struct {
	verifier WebhookVerifier
	applier  EventApplier
	logger   *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(verifier WebhookVerifier, applier EventApplier, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		applier:  applier,
		logger:   logger,
	}
}

// HandleStripe handles POST /api/v1/webhook/stripe.
//
// Only signature failures are reported back to Stripe as errors. Once an
// event is verified, the response is 200 regardless of the apply outcome:
// handler failures are isolated per event, and a Stripe retry would replay
// against idempotent handlers anyway.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("Failed to read webhook payload", "error", err)
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	stripeEvent, err := h.verifier.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("Webhook signature verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	event := reconciler.ParseStripeEvent(stripeEvent)
	if err := h.applier.Apply(r.Context(), event); err != nil {
		h.logger.Error("Billing event apply failed",
			"event_kind", event.Kind.String(),
			"stripe_event_id", stripeEvent.ID,
			"error", err,
		)
	}

	w.WriteHeader(http.StatusOK)
}

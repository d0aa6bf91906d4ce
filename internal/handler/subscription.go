package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"gemchat/internal/auth"
	"gemchat/internal/domain"
)

// SubscriptionService is the slice of the service layer the subscription
// handler calls.
type SubscriptionService interface {
	CreateProCheckoutSession(ctx context.Context, userID uuid.UUID) (string, error)
	Status(ctx context.Context, userID uuid.UUID) (domain.SubscriptionTier, error)
}

// SubscriptionHandler serves the PRO upgrade checkout and tier status.
type SubscriptionHandler struct {
	subscriptions SubscriptionService
	logger        *slog.Logger
}

// NewSubscriptionHandler creates a SubscriptionHandler.
func NewSubscriptionHandler(subscriptions SubscriptionService, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, logger: logger}
}

// SubscribePro handles POST /api/v1/subscribe/pro (authenticated). Returns
// the Stripe Checkout URL; the actual upgrade lands later via webhook.
func (h *SubscriptionHandler) SubscribePro(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	url, err := h.subscriptions.CreateProCheckoutSession(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"checkoutUrl": url})
}

// Status handles GET /api/v1/subscription/status (authenticated).
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	tier, err := h.subscriptions.Status(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"tier": string(tier)})
}

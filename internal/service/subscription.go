package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gemchat/internal/billing"
	"gemchat/internal/domain"
)

// SubscriptionStore is the slice of the persistence layer the subscription
// service needs.
type SubscriptionStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	EarliestSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)
	CreateSubscription(ctx context.Context, sub *domain.Subscription) error
	SetStripeCustomerID(ctx context.Context, subscriptionID uuid.UUID, customerID string) error
}

// CheckoutConfig carries the static checkout parameters from configuration.
type CheckoutConfig struct {
	ProPriceID string
	ClientURL  string
}

// SubscriptionService starts PRO upgrades through Stripe Checkout and reports
// the user's effective tier. Subscription state itself is written only by the
// webhook reconciler; this service never mutates tier or status.
type SubscriptionService struct {
	store    SubscriptionStore
	billing  billing.Service
	checkout CheckoutConfig
	logger   *slog.Logger
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(store SubscriptionStore, billingSvc billing.Service, checkout CheckoutConfig, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		store:    store,
		billing:  billingSvc,
		checkout: checkout,
		logger:   logger,
	}
}

// CreateProCheckoutSession creates (or reuses) the user's Stripe customer and
// returns a Checkout URL for the PRO plan. The user ID travels on the session
// as client_reference_id and as subscription metadata, which is what the
// webhook reconciler later correlates on.
func (s *SubscriptionService) CreateProCheckoutSession(ctx context.Context, userID uuid.UUID) (string, error) {
	const op = "SubscriptionService.CreateProCheckoutSession"

	if s.checkout.ProPriceID == "" {
		return "", domain.Unavailable(nil, op, "Billing is not configured")
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	customerID, err := s.ensureStripeCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	successURL := s.checkout.ClientURL + "/success?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := s.checkout.ClientURL + "/cancel"

	url, err := s.billing.CreateCheckoutSession(customerID, s.checkout.ProPriceID, user.ID.String(), successURL, cancelURL)
	if err != nil {
		return "", domain.Provider(err, op, "Failed to create checkout session")
	}

	s.logger.Info("Checkout session created", "user_id", user.ID, "customer_id", customerID)
	return url, nil
}

// ensureStripeCustomer returns the user's Stripe customer ID, creating the
// customer on first use and recording it on the earliest subscription row so
// later checkouts reuse it.
func (s *SubscriptionService) ensureStripeCustomer(ctx context.Context, user *domain.User) (string, error) {
	const op = "SubscriptionService.ensureStripeCustomer"

	if user.Subscription != nil && user.Subscription.StripeCustomerID != "" {
		return user.Subscription.StripeCustomerID, nil
	}

	// Stripe requires an email; users are keyed by mobile number, so a
	// synthetic address stands in, with the real identity in metadata.
	email := fmt.Sprintf("%s@example.com", user.MobileNumber)
	customerID, err := s.billing.CreateCustomer(email, map[string]string{
		"userId":       user.ID.String(),
		"mobileNumber": user.MobileNumber,
	})
	if err != nil {
		return "", domain.Provider(err, op, "Failed to create billing customer")
	}

	first, err := s.store.EarliestSubscription(ctx, user.ID)
	switch {
	case err == nil:
		if err := s.store.SetStripeCustomerID(ctx, first.ID, customerID); err != nil {
			return "", err
		}
	case domain.ErrorCode(err) == domain.ENOTFOUND:
		// Signup always creates a subscription, but recover if it is missing.
		sub := &domain.Subscription{
			UserID:           user.ID,
			Tier:             domain.SubscriptionTierBasic,
			Status:           domain.SubscriptionStatusActive,
			StripeCustomerID: customerID,
		}
		if err := s.store.CreateSubscription(ctx, sub); err != nil {
			return "", err
		}
	default:
		return "", err
	}

	return customerID, nil
}

// Status returns the user's effective tier right now.
func (s *SubscriptionService) Status(ctx context.Context, userID uuid.UUID) (domain.SubscriptionTier, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.EffectiveTier(time.Now()), nil
}

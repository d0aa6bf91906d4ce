// Package billing provides Stripe billing integration for subscription management.
package billing

import (
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Period is a subscription's current billing window.
type Period struct {
	Start time.Time
	End   time.Time
}

// Service defines the interface for billing operations.
type Service interface {
	// CreateCustomer creates a new Stripe customer and returns its ID.
	// Metadata carries the correlation back to our user.
	CreateCustomer(email string, metadata map[string]string) (string, error)

	// CreateCheckoutSession creates a Checkout session for the PRO upgrade.
	// Returns the checkout URL to redirect the user to. The user ID rides
	// along as client_reference_id and as subscription metadata so webhook
	// events can be correlated back.
	CreateCheckoutSession(customerID, priceID, userID, successURL, cancelURL string) (string, error)

	// GetSubscriptionPeriod retrieves the current billing window for a
	// Stripe subscription.
	GetSubscriptionPeriod(subscriptionID string) (Period, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string) Service {
	stripe.Key = secretKey

	return &stripeService{
		webhookSecret: webhookSecret,
	}
}

func (s *stripeService) CreateCustomer(email string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(customerID, priceID, userID, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(customerID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(userID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"userId": userID},
		},
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) GetSubscriptionPeriod(subscriptionID string) (Period, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return Period{}, fmt.Errorf("stripe get subscription: %w", err)
	}
	if sub.CurrentPeriodStart == 0 || sub.CurrentPeriodEnd == 0 {
		return Period{}, fmt.Errorf("stripe subscription %s has no billing period", subscriptionID)
	}
	return Period{
		Start: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		End:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

// Package reconciler keeps Subscription State consistent with the billing
// provider's asynchronous, possibly out-of-order and redelivered
// notifications. Each handler is idempotent, keyed by the provider's
// subscription identifier, and an error in one event never blocks later ones.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gemchat/internal/billing"
	"gemchat/internal/domain"
	"gemchat/internal/metrics"
)

// Store is the slice of the persistence layer the reconciler writes through.
type Store interface {
	UpgradeBasicToPro(ctx context.Context, userID uuid.UUID, stripeSubscriptionID string, periodStart, periodEnd time.Time) (int64, error)
	RefreshBillingPeriod(ctx context.Context, stripeSubscriptionID string, periodStart, periodEnd time.Time) (int64, error)
	DeactivateSubscription(ctx context.Context, stripeSubscriptionID string) (int64, error)
}

// Billing is the slice of the billing provider the reconciler reads from.
type Billing interface {
	GetSubscriptionPeriod(subscriptionID string) (billing.Period, error)
}

// Reconciler applies billing events to subscription state.
type Reconciler struct {
	store   Store
	billing Billing
	logger  *slog.Logger
}

// New creates a Reconciler.
func New(store Store, billingSvc Billing, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		billing: billingSvc,
		logger:  logger,
	}
}

// Apply runs one event through the state machine. The returned error reports
// what went wrong for the caller's log; the webhook endpoint still
// acknowledges the delivery, because retrying a failed event is the
// provider's job and a failure here must not abort other events.
func (r *Reconciler) Apply(ctx context.Context, event Event) error {
	logger := r.logger.With(
		"event_kind", event.Kind.String(),
		"provider_type", event.ProviderType,
		"provider_event_id", event.ProviderID,
	)
	metrics.BillingEventReceived(event.Kind.String())

	switch event.Kind {
	case EventCheckoutCompleted, EventSubscriptionCreated:
		return r.applyUpgrade(ctx, event, logger)
	case EventInvoicePaymentSucceeded:
		return r.applyPeriodRefresh(ctx, event, logger)
	case EventInvoicePaymentFailed, EventSubscriptionDeleted:
		return r.applyDeactivation(ctx, event, logger)
	case EventUnknown:
		logger.Info("ignoring unhandled billing event")
		return nil
	}
	return nil
}

// applyUpgrade transitions the user's currently-ACTIVE BASIC row to
// PRO/ACTIVE with the provider's billing window. Replaying the event once the
// row is already PRO matches no row and is a no-op.
func (r *Reconciler) applyUpgrade(ctx context.Context, event Event, logger *slog.Logger) error {
	const op = "reconciler.upgrade"

	if event.SubscriptionID == "" || event.UserID == "" {
		logger.Warn("billing event missing subscription or user correlation, skipping")
		return nil
	}
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		logger.Warn("billing event carries malformed user ID, skipping", "user_id", event.UserID)
		return nil
	}

	period, err := r.billing.GetSubscriptionPeriod(event.SubscriptionID)
	if err != nil {
		return domain.Provider(err, op, "failed to fetch billing period")
	}

	rows, err := r.store.UpgradeBasicToPro(ctx, userID, event.SubscriptionID, period.Start, period.End)
	if err != nil {
		return err
	}
	if rows == 0 {
		logger.Debug("upgrade matched no active BASIC row, treating as replay",
			"user_id", userID, "subscription_id", event.SubscriptionID)
		return nil
	}

	logger.Info("upgraded user to PRO",
		"user_id", userID,
		"subscription_id", event.SubscriptionID,
		"period_end", period.End,
	)
	return nil
}

// applyPeriodRefresh updates the billing window on the matching ACTIVE row.
// Tier never changes here.
func (r *Reconciler) applyPeriodRefresh(ctx context.Context, event Event, logger *slog.Logger) error {
	const op = "reconciler.refresh_period"

	if event.SubscriptionID == "" {
		logger.Warn("invoice event missing subscription correlation, skipping")
		return nil
	}

	period, err := r.billing.GetSubscriptionPeriod(event.SubscriptionID)
	if err != nil {
		return domain.Provider(err, op, "failed to fetch billing period")
	}

	rows, err := r.store.RefreshBillingPeriod(ctx, event.SubscriptionID, period.Start, period.End)
	if err != nil {
		return err
	}
	if rows == 0 {
		logger.Debug("period refresh matched no active row", "subscription_id", event.SubscriptionID)
		return nil
	}

	logger.Info("refreshed billing period",
		"subscription_id", event.SubscriptionID,
		"period_end", period.End,
	)
	return nil
}

// applyDeactivation flips the matching row to INACTIVE. Tier is preserved.
// Applying the same deactivation twice leaves the state unchanged.
func (r *Reconciler) applyDeactivation(ctx context.Context, event Event, logger *slog.Logger) error {
	if event.SubscriptionID == "" {
		logger.Warn("billing event missing subscription correlation, skipping")
		return nil
	}

	rows, err := r.store.DeactivateSubscription(ctx, event.SubscriptionID)
	if err != nil {
		return err
	}

	logger.Warn("subscription deactivated",
		"subscription_id", event.SubscriptionID,
		"rows", rows,
	)
	return nil
}

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gemchat/internal/domain"
)

// EarliestSubscription returns the user's oldest subscription row, which is
// the one that tracks the Stripe customer identity.
func (s *Store) EarliestSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	const op = "store.earliest_subscription"

	var sub domain.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		First(&sub).Error
	if err != nil {
		return nil, translate(err, op, "subscription", userID.String())
	}
	return &sub, nil
}

// CreateSubscription inserts a subscription row directly. Only used when a
// user somehow has no row at checkout time; signup normally creates it.
func (s *Store) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	const op = "store.create_subscription"

	err := s.db.WithContext(ctx).Create(sub).Error
	return translate(err, op, "subscription", sub.UserID.String())
}

// SetStripeCustomerID records the Stripe customer identity on a subscription row.
func (s *Store) SetStripeCustomerID(ctx context.Context, subscriptionID uuid.UUID, customerID string) error {
	const op = "store.set_stripe_customer"

	err := s.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("id = ?", subscriptionID).
		Update("stripe_customer_id", customerID).Error
	return translate(err, op, "subscription", subscriptionID.String())
}

// UpgradeBasicToPro flips the user's currently-ACTIVE BASIC row to PRO in
// place, recording the provider subscription ID and the billing window. The
// row keeps its identity (same ID, same created-at). Returns the number of
// rows changed: replaying the upgrade after it has applied matches nothing
// and is a no-op, which is what makes the checkout events idempotent.
func (s *Store) UpgradeBasicToPro(ctx context.Context, userID uuid.UUID, stripeSubscriptionID string, periodStart, periodEnd time.Time) (int64, error) {
	const op = "store.upgrade_basic_to_pro"

	res := s.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("user_id = ? AND tier = ? AND status = ?",
			userID, domain.SubscriptionTierBasic, domain.SubscriptionStatusActive).
		Updates(map[string]interface{}{
			"tier":                   domain.SubscriptionTierPro,
			"status":                 domain.SubscriptionStatusActive,
			"stripe_subscription_id": stripeSubscriptionID,
			"current_period_start":   periodStart,
			"current_period_end":     periodEnd,
		})
	if res.Error != nil {
		return 0, translate(res.Error, op, "subscription", userID.String())
	}
	return res.RowsAffected, nil
}

// RefreshBillingPeriod updates the billing window on the ACTIVE row matching
// the provider subscription ID. Tier is untouched. Reactivates a row that an
// earlier payment failure flipped to INACTIVE only via the explicit status
// write on the matching ACTIVE row, so a stale replay cannot resurrect a
// deleted subscription.
func (s *Store) RefreshBillingPeriod(ctx context.Context, stripeSubscriptionID string, periodStart, periodEnd time.Time) (int64, error) {
	const op = "store.refresh_billing_period"

	res := s.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("stripe_subscription_id = ? AND status = ?",
			stripeSubscriptionID, domain.SubscriptionStatusActive).
		Updates(map[string]interface{}{
			"current_period_start": periodStart,
			"current_period_end":   periodEnd,
		})
	if res.Error != nil {
		return 0, translate(res.Error, op, "subscription", stripeSubscriptionID)
	}
	return res.RowsAffected, nil
}

// DeactivateSubscription flips rows matching the provider subscription ID to
// INACTIVE. Tier is preserved so a later reactivation is a status flip plus a
// fresh billing period. Applying it twice leaves the same state.
func (s *Store) DeactivateSubscription(ctx context.Context, stripeSubscriptionID string) (int64, error) {
	const op = "store.deactivate_subscription"

	res := s.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Update("status", domain.SubscriptionStatusInactive)
	if res.Error != nil {
		return 0, translate(res.Error, op, "subscription", stripeSubscriptionID)
	}
	return res.RowsAffected, nil
}

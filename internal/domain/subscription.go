package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionTier represents the pricing tier of a subscription.
type SubscriptionTier string

const (
	SubscriptionTierBasic SubscriptionTier = "BASIC"
	SubscriptionTierPro   SubscriptionTier = "PRO"
)

// SubscriptionStatus represents the possible states of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusInactive SubscriptionStatus = "INACTIVE"
)

// Subscription is the authoritative billing state for a user. At most one row
// per user is authoritative at a time; a BASIC→PRO upgrade mutates the row in
// place so the created-at identity survives the upgrade. Lapsed subscriptions
// are flipped to INACTIVE, never deleted and never downgraded in tier, so a
// reactivation is a status flip plus a fresh billing period.
type Subscription struct {
	ID                   uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID               uuid.UUID          `gorm:"type:uuid;not null;index" json:"-"`
	Tier                 SubscriptionTier   `gorm:"size:10;not null;default:'BASIC'" json:"tier"`
	Status               SubscriptionStatus `gorm:"size:10;not null;default:'ACTIVE'" json:"status"`
	StripeCustomerID     string             `gorm:"size:255;index" json:"-"`
	StripeSubscriptionID string             `gorm:"size:255;index" json:"-"`
	CurrentPeriodStart   *time.Time         `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd     *time.Time         `json:"currentPeriodEnd,omitempty"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

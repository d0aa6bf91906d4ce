// Package domain contains core business types and the pure quota ledger.
//
// The structs here double as GORM models; the store package owns all query
// mechanics, services and the worker only see these types.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user, identified by mobile number.
//
// DailyPromptCount and LastPromptReset form the quota ledger state for BASIC
// users. They are mutated only through RecordUsage inside a store transaction
// holding a row lock on the user; everything else treats them as read-only.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	MobileNumber string    `gorm:"size:20;uniqueIndex;not null" json:"mobileNumber"`
	PasswordHash string    `gorm:"size:100" json:"-"`

	// One-time password state, owned by the auth flow.
	OTP         string     `gorm:"size:6" json:"-"`
	OTPExpireAt *time.Time `json:"-"`

	DailyPromptCount int        `gorm:"not null;default:0" json:"-"`
	LastPromptReset  *time.Time `json:"-"`

	Subscription *Subscription `json:"-"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// ActiveSubscription returns the user's subscription if it is ACTIVE, nil otherwise.
func (u *User) ActiveSubscription() *Subscription {
	if u.Subscription != nil && u.Subscription.Status == SubscriptionStatusActive {
		return u.Subscription
	}
	return nil
}

// EffectiveTier returns the tier that gates the user's usage right now.
// PRO requires an ACTIVE subscription with a billing period end in the future;
// any other combination is treated as BASIC.
func (u *User) EffectiveTier(now time.Time) SubscriptionTier {
	sub := u.ActiveSubscription()
	if sub == nil {
		return SubscriptionTierBasic
	}
	if sub.Tier == SubscriptionTierPro && sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now) {
		return SubscriptionTierPro
	}
	return SubscriptionTierBasic
}

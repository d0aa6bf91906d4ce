package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemchat/internal/billing"
	"gemchat/internal/domain"
)

type fakeSub struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Tier      domain.SubscriptionTier
	Status    domain.SubscriptionStatus
	StripeSub string
	Start     time.Time
	End       time.Time
	CreatedAt time.Time
}

// fakeStore mirrors the matching semantics of the real store's subscription
// updates: row selection by user/tier/status or by provider subscription ID.
type fakeStore struct {
	subs []*fakeSub
}

func (s *fakeStore) UpgradeBasicToPro(_ context.Context, userID uuid.UUID, stripeSubID string, start, end time.Time) (int64, error) {
	var n int64
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.Tier == domain.SubscriptionTierBasic && sub.Status == domain.SubscriptionStatusActive {
			sub.Tier = domain.SubscriptionTierPro
			sub.Status = domain.SubscriptionStatusActive
			sub.StripeSub = stripeSubID
			sub.Start, sub.End = start, end
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) RefreshBillingPeriod(_ context.Context, stripeSubID string, start, end time.Time) (int64, error) {
	var n int64
	for _, sub := range s.subs {
		if sub.StripeSub == stripeSubID && sub.Status == domain.SubscriptionStatusActive {
			sub.Start, sub.End = start, end
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) DeactivateSubscription(_ context.Context, stripeSubID string) (int64, error) {
	var n int64
	for _, sub := range s.subs {
		if sub.StripeSub == stripeSubID {
			sub.Status = domain.SubscriptionStatusInactive
			n++
		}
	}
	return n, nil
}

type fakeBilling struct {
	period billing.Period
	err    error
	calls  int
}

func (b *fakeBilling) GetSubscriptionPeriod(string) (billing.Period, error) {
	b.calls++
	return b.period, b.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApply_CheckoutUpgradesInPlace(t *testing.T) {
	userID := uuid.New()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	row := &fakeSub{
		ID:        uuid.New(),
		UserID:    userID,
		Tier:      domain.SubscriptionTierBasic,
		Status:    domain.SubscriptionStatusActive,
		CreatedAt: created,
	}
	store := &fakeStore{subs: []*fakeSub{row}}

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	bill := &fakeBilling{period: billing.Period{Start: start, End: end}}

	r := New(store, bill, testLogger())
	err := r.Apply(context.Background(), Event{
		Kind:           EventCheckoutCompleted,
		SubscriptionID: "sub_123",
		UserID:         userID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionTierPro, row.Tier)
	assert.Equal(t, domain.SubscriptionStatusActive, row.Status)
	assert.Equal(t, "sub_123", row.StripeSub)
	assert.Equal(t, start, row.Start)
	assert.Equal(t, end, row.End)
	// Same row, same identity: the upgrade mutates in place.
	assert.Equal(t, created, row.CreatedAt)
	assert.Len(t, store.subs, 1)
}

func TestApply_CheckoutReplayIsNoOp(t *testing.T) {
	userID := uuid.New()
	row := &fakeSub{
		UserID: userID,
		Tier:   domain.SubscriptionTierBasic,
		Status: domain.SubscriptionStatusActive,
	}
	store := &fakeStore{subs: []*fakeSub{row}}
	end := time.Now().AddDate(0, 1, 0)
	bill := &fakeBilling{period: billing.Period{Start: time.Now(), End: end}}

	r := New(store, bill, testLogger())
	event := Event{Kind: EventSubscriptionCreated, SubscriptionID: "sub_abc", UserID: userID.String()}

	require.NoError(t, r.Apply(context.Background(), event))
	after := *row

	require.NoError(t, r.Apply(context.Background(), event))
	assert.Equal(t, after, *row)
}

func TestApply_SubscriptionDeletedIsIdempotent(t *testing.T) {
	row := &fakeSub{
		Tier:      domain.SubscriptionTierPro,
		Status:    domain.SubscriptionStatusActive,
		StripeSub: "sub_del",
	}
	store := &fakeStore{subs: []*fakeSub{row}}
	r := New(store, &fakeBilling{}, testLogger())

	event := Event{Kind: EventSubscriptionDeleted, SubscriptionID: "sub_del"}

	require.NoError(t, r.Apply(context.Background(), event))
	assert.Equal(t, domain.SubscriptionStatusInactive, row.Status)
	// Tier survives the deactivation.
	assert.Equal(t, domain.SubscriptionTierPro, row.Tier)
	after := *row

	require.NoError(t, r.Apply(context.Background(), event))
	assert.Equal(t, after, *row)
}

func TestApply_PaymentFailedDeactivatesKeepingTier(t *testing.T) {
	row := &fakeSub{
		Tier:      domain.SubscriptionTierPro,
		Status:    domain.SubscriptionStatusActive,
		StripeSub: "sub_pf",
	}
	store := &fakeStore{subs: []*fakeSub{row}}
	r := New(store, &fakeBilling{}, testLogger())

	require.NoError(t, r.Apply(context.Background(), Event{
		Kind:           EventInvoicePaymentFailed,
		SubscriptionID: "sub_pf",
	}))

	assert.Equal(t, domain.SubscriptionStatusInactive, row.Status)
	assert.Equal(t, domain.SubscriptionTierPro, row.Tier)
}

func TestApply_PaymentSucceededRefreshesActiveRowOnly(t *testing.T) {
	active := &fakeSub{Status: domain.SubscriptionStatusActive, StripeSub: "sub_ok", Tier: domain.SubscriptionTierPro}
	inactive := &fakeSub{Status: domain.SubscriptionStatusInactive, StripeSub: "sub_ok", Tier: domain.SubscriptionTierPro}
	store := &fakeStore{subs: []*fakeSub{active, inactive}}

	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	r := New(store, &fakeBilling{period: billing.Period{Start: start, End: end}}, testLogger())

	require.NoError(t, r.Apply(context.Background(), Event{
		Kind:           EventInvoicePaymentSucceeded,
		SubscriptionID: "sub_ok",
	}))

	assert.Equal(t, end, active.End)
	assert.True(t, inactive.End.IsZero())
	// Refresh never changes tier.
	assert.Equal(t, domain.SubscriptionTierPro, active.Tier)
}

func TestApply_MissingCorrelationSkips(t *testing.T) {
	store := &fakeStore{subs: []*fakeSub{{
		Tier:   domain.SubscriptionTierBasic,
		Status: domain.SubscriptionStatusActive,
	}}}
	bill := &fakeBilling{}
	r := New(store, bill, testLogger())

	tests := []struct {
		name  string
		event Event
	}{
		{"checkout without user", Event{Kind: EventCheckoutCompleted, SubscriptionID: "sub_1"}},
		{"checkout without subscription", Event{Kind: EventCheckoutCompleted, UserID: uuid.NewString()}},
		{"checkout with malformed user", Event{Kind: EventCheckoutCompleted, SubscriptionID: "sub_1", UserID: "not-a-uuid"}},
		{"invoice without subscription", Event{Kind: EventInvoicePaymentSucceeded}},
		{"delete without subscription", Event{Kind: EventSubscriptionDeleted}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, r.Apply(context.Background(), tt.event))
		})
	}
	// Nothing was mutated and billing was never consulted.
	assert.Equal(t, domain.SubscriptionTierBasic, store.subs[0].Tier)
	assert.Equal(t, 0, bill.calls)
}

func TestApply_BillingFailureLeavesStateUntouched(t *testing.T) {
	userID := uuid.New()
	row := &fakeSub{
		UserID: userID,
		Tier:   domain.SubscriptionTierBasic,
		Status: domain.SubscriptionStatusActive,
	}
	store := &fakeStore{subs: []*fakeSub{row}}
	r := New(store, &fakeBilling{err: errors.New("stripe down")}, testLogger())

	err := r.Apply(context.Background(), Event{
		Kind:           EventCheckoutCompleted,
		SubscriptionID: "sub_x",
		UserID:         userID.String(),
	})
	require.Error(t, err)
	assert.Equal(t, domain.EPROVIDER, domain.ErrorCode(err))
	assert.Equal(t, domain.SubscriptionTierBasic, row.Tier)
}

func TestApply_UnknownEventIsNoOp(t *testing.T) {
	store := &fakeStore{}
	r := New(store, &fakeBilling{}, testLogger())
	assert.NoError(t, r.Apply(context.Background(), Event{Kind: EventUnknown, ProviderType: "customer.updated"}))
}

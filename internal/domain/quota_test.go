package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(t time.Time) *time.Time { return &t }

func TestAuthorizePrompt(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	today := StartOfUTCDay(now)
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name      string
		tier      SubscriptionTier
		count     int
		lastReset *time.Time
		limit     int
		wantErr   bool
	}{
		{"pro always allowed", SubscriptionTierPro, 9999, ptr(today), 50, false},
		{"pro allowed with nil reset", SubscriptionTierPro, 0, nil, 50, false},
		{"basic under limit", SubscriptionTierBasic, 49, ptr(today), 50, false},
		{"basic at limit same day", SubscriptionTierBasic, 50, ptr(today), 50, true},
		{"basic over limit same day", SubscriptionTierBasic, 73, ptr(today), 50, true},
		{"basic at limit but reset due", SubscriptionTierBasic, 50, ptr(yesterday), 50, false},
		{"basic never prompted", SubscriptionTierBasic, 0, nil, 50, false},
		// A stale counter is logically zero even when the stored value is
		// absurdly high.
		{"basic stale huge counter", SubscriptionTierBasic, 100000, nil, 1, false},
		{"basic limit one exhausted", SubscriptionTierBasic, 1, ptr(today), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AuthorizePrompt(tt.tier, tt.count, tt.lastReset, now, tt.limit)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ERATELIMIT, ErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthorizePrompt_SequentialLimit(t *testing.T) {
	// N submissions succeed, the (N+1)th is rejected, and the next UTC day
	// the counter restarts at 1.
	const limit = 5
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	count := 0
	var lastReset *time.Time
	for i := 0; i < limit; i++ {
		require.NoError(t, AuthorizePrompt(SubscriptionTierBasic, count, lastReset, now, limit))
		c, r := RecordUsage(count, lastReset, now)
		count, lastReset = c, &r
	}
	assert.Equal(t, limit, count)

	err := AuthorizePrompt(SubscriptionTierBasic, count, lastReset, now, limit)
	require.Error(t, err)
	assert.Equal(t, ERATELIMIT, ErrorCode(err))

	tomorrow := now.AddDate(0, 0, 1)
	require.NoError(t, AuthorizePrompt(SubscriptionTierBasic, count, lastReset, tomorrow, limit))
	c, r := RecordUsage(count, lastReset, tomorrow)
	assert.Equal(t, 1, c)
	assert.Equal(t, StartOfUTCDay(tomorrow), r)
}

func TestRecordUsage(t *testing.T) {
	now := time.Date(2025, 6, 15, 23, 59, 59, 0, time.UTC)
	today := StartOfUTCDay(now)
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name      string
		count     int
		lastReset *time.Time
		wantCount int
		wantReset time.Time
	}{
		{"first ever prompt", 0, nil, 1, today},
		{"reset due from yesterday", 42, ptr(yesterday), 1, today},
		{"increment same day", 3, ptr(today), 4, today},
		{"increment preserves marker", 49, ptr(today), 50, today},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, reset := RecordUsage(tt.count, tt.lastReset, now)
			assert.Equal(t, tt.wantCount, count)
			assert.Equal(t, tt.wantReset, reset)
		})
	}
}

func TestStartOfUTCDay(t *testing.T) {
	// A timestamp late in the local day must map to its UTC calendar date.
	loc := time.FixedZone("UTC+9", 9*3600)
	local := time.Date(2025, 6, 16, 2, 0, 0, 0, loc) // 2025-06-15 17:00 UTC

	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), StartOfUTCDay(local))
}

func TestAuthorizeRecordOrderIndependence(t *testing.T) {
	// Authorize-then-record and record-after-authorize agree on the final
	// state for the same now; the pair never double-counts.
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := StartOfUTCDay(now).AddDate(0, 0, -1)

	count := 7
	lastReset := ptr(yesterday)

	require.NoError(t, AuthorizePrompt(SubscriptionTierBasic, count, lastReset, now, 50))
	c1, r1 := RecordUsage(count, lastReset, now)

	c2, r2 := RecordUsage(count, lastReset, now)
	require.NoError(t, AuthorizePrompt(SubscriptionTierBasic, count, lastReset, now, 50))

	assert.Equal(t, c1, c2)
	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, c1)
}

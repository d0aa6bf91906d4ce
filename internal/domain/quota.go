package domain

import "time"

// DefaultDailyPromptLimit is the daily prompt allowance for BASIC users when
// no limit is configured.
const DefaultDailyPromptLimit = 50

// StartOfUTCDay normalizes t to midnight of its UTC calendar day. Day-boundary
// decisions use UTC date components only, never wall-clock time-of-day, so two
// requests in different timezones agree on whether a reset is due.
func StartOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// resetDue reports whether the daily counter is stale for the UTC day of now.
// A nil lastReset means the user has never consumed a prompt.
func resetDue(lastReset *time.Time, now time.Time) bool {
	return lastReset == nil || lastReset.Before(StartOfUTCDay(now))
}

// AuthorizePrompt decides whether a user may submit a new chat message.
//
// PRO users are always allowed. For BASIC users the stored counter is treated
// as zero when a reset is due for the current UTC day, regardless of the
// stored value; otherwise the stored counter is compared against limit.
// Returns a QuotaExceeded (ERATELIMIT) error on rejection, nil otherwise.
//
// Callers must invoke this inside the same transaction/lock scope that later
// applies RecordUsage for the user, or two concurrent requests can both
// observe a stale counter and both pass.
func AuthorizePrompt(tier SubscriptionTier, dailyPromptCount int, lastPromptReset *time.Time, now time.Time, limit int) error {
	const op = "quota.authorize"

	if tier == SubscriptionTierPro {
		return nil
	}

	effective := dailyPromptCount
	if resetDue(lastPromptReset, now) {
		effective = 0
	}
	if effective >= limit {
		return QuotaExceeded(op, limit)
	}
	return nil
}

// RecordUsage computes the counter state after one successful generation.
// If a reset is due for the UTC day of now, the counter restarts at 1 and the
// reset marker moves to today; otherwise the counter increments in place and
// the marker is unchanged.
func RecordUsage(dailyPromptCount int, lastPromptReset *time.Time, now time.Time) (count int, reset time.Time) {
	if resetDue(lastPromptReset, now) {
		return 1, StartOfUTCDay(now)
	}
	return dailyPromptCount + 1, *lastPromptReset
}

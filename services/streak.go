package services

import (
	"time"

	"net2077-arena-system/models"
)

// Streak rules, shared by every XP-earning action on the platform (quiz
// answers, terminal commands, daily challenge, simulations, arena):
//   - first ever event: current=1
//   - second event same calendar day: no-op
//   - event exactly one day after the last: current+1
//   - gap of 2+ days: current resets to 1
// Dates are the server's local calendar date, not per-user timezone.

// dateOnly normalizes t to its calendar date, re-anchored in UTC so that
// day gaps divide evenly by 24h regardless of DST.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole calendar days from a to b (b after a → positive).
func daysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)) / (24 * time.Hour))
}

// TouchStreak records an XP-earning event at now against st.
// Returns false when the day was already counted (same-day no-op).
func TouchStreak(st *models.Streak, now time.Time) bool {
	today := dateOnly(now)

	if st.LastActivityDate == nil {
		st.Current = 1
		if st.Max < 1 {
			st.Max = 1
		}
		st.LastActivityDate = &today
		st.LastActivityAt = &now
		return true
	}

	switch gap := daysBetween(*st.LastActivityDate, now); {
	case gap == 0:
		return false // already counted today
	case gap == 1:
		st.Current++
		if st.Current > st.Max {
			st.Max = st.Current
		}
	default:
		st.Current = 1
	}

	st.LastActivityDate = &today
	st.LastActivityAt = &now
	return true
}

// StreakActive reports whether the streak is unbroken as of now: the last
// activity was today or yesterday, even if today's activity hasn't happened yet.
func StreakActive(st models.Streak, now time.Time) bool {
	if st.LastActivityDate == nil {
		return false
	}
	gap := daysBetween(*st.LastActivityDate, now)
	return gap >= 0 && gap <= 1
}

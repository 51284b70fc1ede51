package conversation

import (
	"time"

	"github.com/recruai/interview-sync/internal/models"
)

// DefaultJoinLead is how long before the scheduled start a session opens.
const DefaultJoinLead = 15 * time.Minute

// CanJoin reports whether now falls in the join window of a session starting at
// scheduledAt and lasting duration: from lead before the start until the end.
// The lead side is inclusive, the end is exclusive.
func CanJoin(scheduledAt time.Time, duration, lead time.Duration, now time.Time) bool {
	if scheduledAt.IsZero() {
		return false
	}

	untilStart := scheduledAt.Sub(now)
	if untilStart >= 0 && untilStart <= lead {
		return true
	}

	return now.After(scheduledAt) && now.Before(scheduledAt.Add(duration))
}

// Joinable applies CanJoin to an interview; closed interviews are never joinable.
func Joinable(interview models.Interview, lead time.Duration, now time.Time) bool {
	if interview.Closed() {
		return false
	}
	return CanJoin(interview.ScheduledAt, interview.Duration(), lead, now)
}

// Ended reports whether the session can no longer become joinable.
func Ended(interview models.Interview, now time.Time) bool {
	if interview.Closed() {
		return true
	}
	return !interview.ScheduledAt.IsZero() && !now.Before(interview.EndsAt())
}

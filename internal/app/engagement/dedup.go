package engagement

import (
	"fmt"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

// Dedup keys make a repeated sweep an insert-or-skip instead of a
// duplicate notification. Each key names the recipient's event, never the
// sweep that produced it.

func completionKey(instanceID string) string {
	return "complete:" + instanceID
}

// warningKey is unique per warning kind within one run of an instance.
func warningKey(userID string, kind domain.NotificationType, instanceID string, startedAt time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d", kind, userID, instanceID, startedAt.UnixMilli())
}

// reminderKey buckets reminders by whole hours since the first reminder
// became due.
func reminderKey(userID, instanceID string, bucket int) string {
	return fmt.Sprintf("reminder:%s:%s:%d", userID, instanceID, bucket)
}

func dailyKey(challengeID string, day int) string {
	return fmt.Sprintf("daily:%s:%d", challengeID, day)
}

func motivationKey(challengeID string, day int) string {
	return fmt.Sprintf("motivation:%s:%d", challengeID, day)
}

func milestoneKey(challengeID string, day int) string {
	return fmt.Sprintf("milestone:%s:%d", challengeID, day)
}

func suggestionKey(suggestionID string) string {
	return "suggestion:" + suggestionID
}

func responseKey(suggestionID string) string {
	return "suggestion-response:" + suggestionID
}

package domain

import "time"

// ─── Challenge Types ────────────────────────────────────────────────────────

// ChallengeLength is the number of days in a structured challenge.
const ChallengeLength = 100

// Challenge is a 100-day program for one user in one category.
type Challenge struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	StartDate time.Time `json:"start_date"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// DayStatus tracks how far one challenge day got.
type DayStatus string

const (
	DayPending   DayStatus = "PENDING"   // record exists, no quest started yet
	DayActive    DayStatus = "ACTIVE"    // quest generated and started
	DayQueued    DayStatus = "QUEUED"    // quest generated, waiting on the active cap
	DayCompleted DayStatus = "COMPLETED" // linked quest completed
)

// ChallengeDayRecord binds one challenge day to its generated quest.
// Unique per (ChallengeID, Day).
type ChallengeDayRecord struct {
	ChallengeID string    `json:"challenge_id"`
	Day         int       `json:"day"`
	QuestID     string    `json:"quest_id,omitempty"`
	UserQuestID string    `json:"user_quest_id,omitempty"`
	Status      DayStatus `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MilestoneDays are the days that receive a motivational message.
var MilestoneDays = []int{7, 14, 21, 30, 50, 75, 90, 100}

// IsMilestoneDay reports whether day is one of MilestoneDays.
func IsMilestoneDay(day int) bool {
	for _, d := range MilestoneDays {
		if d == day {
			return true
		}
	}
	return false
}

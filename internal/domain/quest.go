// Package domain holds the engine's pure types: quests, challenges,
// notifications, suggestions, live sessions and badges.
// Domain types carry no infrastructure dependency.
package domain

import "time"

// ─── Quest Types ────────────────────────────────────────────────────────────

// GoalType names the counter a quest is judged on.
type GoalType string

const (
	GoalCollectNos GoalType = "COLLECT_NOS"
	GoalCollectYes GoalType = "COLLECT_YES"
	GoalTakeAction GoalType = "TAKE_ACTION"
)

// Valid reports whether g is a known goal type.
func (g GoalType) Valid() bool {
	switch g {
	case GoalCollectNos, GoalCollectYes, GoalTakeAction:
		return true
	}
	return false
}

// Difficulty is the tier of a quest template.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
	DifficultyExpert Difficulty = "EXPERT"
)

// QuestStatus is the lifecycle state of a quest instance.
// QUEUED → ACTIVE → COMPLETED; never reverts.
type QuestStatus string

const (
	QuestQueued    QuestStatus = "QUEUED"
	QuestActive    QuestStatus = "ACTIVE"
	QuestCompleted QuestStatus = "COMPLETED"
)

// Action is one recorded interaction while attempting a quest.
type Action string

const (
	ActionYes    Action = "YES"
	ActionNo     Action = "NO"
	ActionAction Action = "ACTION"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionYes, ActionNo, ActionAction:
		return true
	}
	return false
}

// GoalAction returns the action that advances a quest of this goal type.
func (g GoalType) GoalAction() Action {
	switch g {
	case GoalCollectNos:
		return ActionNo
	case GoalCollectYes:
		return ActionYes
	default:
		return ActionAction
	}
}

// QuestTemplate is a quest's content. Immutable once created.
type QuestTemplate struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Difficulty  Difficulty `json:"difficulty"`
	GoalType    GoalType   `json:"goal_type"`
	GoalCount   int        `json:"goal_count"`
	XPReward    int64      `json:"xp_reward"`
	PointReward int64      `json:"point_reward"`
	Location    string     `json:"location,omitempty"`
	TimeContext string     `json:"time_context,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"` // empty for generated quests
	Generated   bool       `json:"generated"`
	CreatedAt   time.Time  `json:"created_at"`
}

// QuestInstance is one user's attempt at a template.
type QuestInstance struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	QuestID     string      `json:"quest_id"`
	Status      QuestStatus `json:"status"`
	NoCount     int         `json:"no_count"`
	YesCount    int         `json:"yes_count"`
	ActionCount int         `json:"action_count"`
	StartedAt   time.Time   `json:"started_at,omitempty"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Count returns the counter that the given goal type is judged on.
func (q QuestInstance) Count(g GoalType) int {
	switch g {
	case GoalCollectNos:
		return q.NoCount
	case GoalCollectYes:
		return q.YesCount
	default:
		return q.ActionCount
	}
}

// ActiveQuest joins an ACTIVE instance with the template fields the
// monitors need.
type ActiveQuest struct {
	Instance   QuestInstance
	Title      string
	Difficulty Difficulty
	GoalType   GoalType
	GoalCount  int
}

// ProgressResult is the outcome of recording one action.
type ProgressResult struct {
	Instance         QuestInstance `json:"instance"`
	Template         QuestTemplate `json:"-"`
	Completed        bool          `json:"completed"`         // this action completed the quest
	AlreadyCompleted bool          `json:"already_completed"` // action arrived after completion
}

// UserStats accumulates quest rewards per user.
type UserStats struct {
	UserID          string `json:"user_id"`
	TotalXP         int64  `json:"total_xp"`
	QuestsCompleted int    `json:"quests_completed"`
}

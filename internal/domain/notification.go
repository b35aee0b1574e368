package domain

import "time"

// ─── Notification Types ─────────────────────────────────────────────────────

// NotificationType categorizes notifications. Preferences opt out per type.
type NotificationType string

const (
	NotifyDailyChallenge NotificationType = "daily_challenge"
	NotifyMotivation     NotificationType = "motivation"
	NotifyMilestone      NotificationType = "milestone"
	NotifyWarning5Min    NotificationType = "time_warning_5min"
	NotifyWarning1Min    NotificationType = "time_warning_1min"
	NotifyReminder       NotificationType = "quest_reminder"
	NotifyQuestComplete  NotificationType = "quest_complete"
	NotifySuggestion     NotificationType = "quest_suggestion"
	NotifySuggestionDone NotificationType = "suggestion_response"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyDailyChallenge, NotifyMotivation, NotifyMilestone, NotifyWarning5Min,
		NotifyWarning1Min, NotifyReminder, NotifyQuestComplete, NotifySuggestion,
		NotifySuggestionDone:
		return true
	}
	return false
}

// Notification is a user-facing event record.
// DedupKey, when set, is unique in the store: a second insert with the same
// key is skipped instead of duplicated.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	SenderID  string           `json:"sender_id,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      map[string]any   `json:"data,omitempty"`
	DedupKey  string           `json:"-"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// DeviceToken is a push destination registered by a user.
type DeviceToken struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}

// PushMessage is the payload handed to a push gateway.
type PushMessage struct {
	Token string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushResult reports the outcome of one push send.
type PushResult struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Transport bool   `json:"transport,omitempty"` // the gateway itself failed, not the device
}

// DispatchResult summarizes what happened to one notification.
type DispatchResult struct {
	Notification Notification `json:"notification"`
	Recorded     bool         `json:"recorded"` // false when skipped by dedup key
	OptedOut     bool         `json:"opted_out"`
	PushSent     int          `json:"push_sent"`
	PushFailed   int          `json:"push_failed"`
}

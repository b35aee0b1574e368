package domain

import "time"

// ─── Live Sessions & Suggestions ────────────────────────────────────────────

// LiveSession is a streamer's broadcast. Owned by the live component; the
// engine only reads it and links an accepted quest onto it.
type LiveSession struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	IsActive    bool      `json:"is_active"`
	ViewerCount int       `json:"viewer_count"`
	UserQuestID string    `json:"user_quest_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
}

// SuggestionStatus: pending → accepted | declined (terminal).
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionDeclined SuggestionStatus = "declined"
)

// ResponseAction is the streamer's answer to a suggestion.
type ResponseAction string

const (
	RespondAccept  ResponseAction = "accept"
	RespondDecline ResponseAction = "decline"
)

// QuestSuggestion is a viewer's proposal of a template to a live streamer.
type QuestSuggestion struct {
	ID            string           `json:"id"`
	LiveSessionID string           `json:"live_session_id"`
	SuggesterID   string           `json:"suggester_id"`
	QuestID       string           `json:"quest_id"`
	BoostAmount   int64            `json:"boost_amount"`
	Message       string           `json:"message,omitempty"`
	Status        SuggestionStatus `json:"status"`
	UserQuestID   string           `json:"user_quest_id,omitempty"` // set on accept
	CreatedAt     time.Time        `json:"created_at"`
	RespondedAt   time.Time        `json:"responded_at,omitempty"`
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// Badges are derived from completion context and never persisted.
type Badges struct {
	Silver bool `json:"silver"`
	Gold   bool `json:"gold"`
	Bronze bool `json:"bronze"`
	Blue   bool `json:"blue"`
}

// BadgeFacts are the raw facts the classifier reads for one instance.
type BadgeFacts struct {
	Verifications     int  // independent verification records
	PostWithImage     bool // community post referencing the instance has an image
	LiveEnded         bool // a referencing live session has ended
	LiveHadViewers    bool // a referencing live session had viewerCount > 0
	GroupCompleted    bool // linked to a completed group-quest participation
	GroupParticipants int  // participants in that group quest
	CoCompleted       bool // another user completed the same template within ±1h
}

package engagement

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rejectly/rejectly/internal/domain"
	"github.com/rejectly/rejectly/internal/infra/metrics"
	"github.com/rejectly/rejectly/internal/infra/sqlite"
)

// SuggestionQueue lets live viewers propose quests to a streamer, with an
// optional boost that raises the proposal's priority.
type SuggestionQueue struct {
	db              *sqlite.DB
	tracker         *Tracker
	notifier        Notifier
	messages        *Messages
	refundOnDecline bool
	now             func() time.Time
}

// NewSuggestionQueue creates a queue. When refundOnDecline is set, a
// declined suggestion's boost goes back to the viewer.
func NewSuggestionQueue(db *sqlite.DB, tracker *Tracker, notifier Notifier, messages *Messages, refundOnDecline bool) *SuggestionQueue {
	if messages == nil {
		messages = DefaultMessages()
	}
	return &SuggestionQueue{
		db:              db,
		tracker:         tracker,
		notifier:        notifier,
		messages:        messages,
		refundOnDecline: refundOnDecline,
		now:             time.Now,
	}
}

// SuggestRequest is a viewer's proposal.
type SuggestRequest struct {
	SessionID   string `json:"live_session_id"`
	SuggesterID string `json:"-"`
	QuestID     string `json:"quest_id"`
	Boost       int64  `json:"boost_amount"`
	Message     string `json:"message"`
}

// Suggest queues a proposal. A positive boost is debited in the same
// transaction that stores the suggestion.
func (q *SuggestionQueue) Suggest(ctx context.Context, req SuggestRequest) (*domain.QuestSuggestion, error) {
	if req.SuggesterID == "" {
		return nil, domain.ErrMissingUser
	}
	if req.Boost < 0 {
		return nil, domain.ErrInvalidBoost
	}
	session, err := q.db.GetLiveSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	if !session.IsActive {
		return nil, domain.ErrSessionNotActive
	}
	if session.UserID == req.SuggesterID {
		return nil, domain.ErrSelfSuggestion
	}
	tmpl, err := q.db.GetTemplate(ctx, req.QuestID)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return nil, domain.ErrQuestNotFound
	}

	s := domain.QuestSuggestion{
		ID:            uuid.NewString(),
		LiveSessionID: req.SessionID,
		SuggesterID:   req.SuggesterID,
		QuestID:       req.QuestID,
		BoostAmount:   req.Boost,
		Message:       req.Message,
		Status:        domain.SuggestionPending,
		CreatedAt:     q.now(),
	}
	if err := q.db.InsertSuggestion(ctx, s); err != nil {
		return nil, err
	}
	metrics.Suggestions.WithLabelValues(string(domain.SuggestionPending)).Inc()
	if s.BoostAmount > 0 {
		metrics.BoostSpent.Add(float64(s.BoostAmount))
	}

	title, body := q.messages.Render(domain.NotifySuggestion, map[string]string{
		"title": tmpl.Title,
		"boost": strconv.FormatInt(s.BoostAmount, 10),
	})
	q.notify(ctx, domain.Notification{
		UserID:   session.UserID,
		SenderID: s.SuggesterID,
		Type:     domain.NotifySuggestion,
		Title:    title,
		Message:  body,
		Data: map[string]any{
			"suggestion_id": s.ID, "live_session_id": s.LiveSessionID,
			"quest_id": s.QuestID, "boost_amount": s.BoostAmount,
		},
		DedupKey: suggestionKey(s.ID),
	})
	return &s, nil
}

// ListPending returns a session's pending suggestions, highest boost
// first, earlier submissions winning ties. Only the owner may list.
func (q *SuggestionQueue) ListPending(ctx context.Context, callerID, sessionID string) ([]domain.QuestSuggestion, error) {
	session, err := q.ownedSession(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	return q.db.ListPendingSuggestions(ctx, session.ID)
}

// Respond accepts or declines a pending suggestion on the caller's
// session. Accepting starts the quest for the streamer under the
// active-quest cap; a failed accept leaves everything unchanged.
func (q *SuggestionQueue) Respond(ctx context.Context, callerID, suggestionID string, action domain.ResponseAction) (*domain.QuestSuggestion, error) {
	if action != domain.RespondAccept && action != domain.RespondDecline {
		return nil, domain.ErrInvalidResponse
	}
	s, err := q.db.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, fmt.Errorf("get suggestion: %w", err)
	}
	if s == nil {
		return nil, domain.ErrSuggestionNotFound
	}
	session, err := q.ownedSession(ctx, callerID, s.LiveSessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.SuggestionPending {
		return nil, domain.ErrSuggestionNotPending
	}

	now := q.now()
	switch action {
	case domain.RespondAccept:
		inst := domain.QuestInstance{
			ID:        uuid.NewString(),
			UserID:    session.UserID,
			QuestID:   s.QuestID,
			Status:    domain.QuestActive,
			StartedAt: now,
			CreatedAt: now,
		}
		if err := q.db.AcceptSuggestion(ctx, s.ID, inst, q.tracker.MaxActive(), now); err != nil {
			return nil, err
		}
		metrics.QuestsStarted.WithLabelValues(string(domain.QuestActive)).Inc()
		metrics.Suggestions.WithLabelValues(string(domain.SuggestionAccepted)).Inc()
		log.Printf("[suggest] %s accepted %s as %s", session.UserID, s.ID, inst.ID)
	case domain.RespondDecline:
		if err := q.db.DeclineSuggestion(ctx, s.ID, q.refundOnDecline, now); err != nil {
			return nil, err
		}
		metrics.Suggestions.WithLabelValues(string(domain.SuggestionDeclined)).Inc()
	}

	updated, err := q.db.GetSuggestion(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("reload suggestion: %w", err)
	}

	var questTitle string
	if tmpl, err := q.db.GetTemplate(ctx, s.QuestID); err == nil && tmpl != nil {
		questTitle = tmpl.Title
	}
	title, body := q.messages.Render(domain.NotifySuggestionDone, map[string]string{
		"status": string(updated.Status),
		"title":  questTitle,
	})
	q.notify(ctx, domain.Notification{
		UserID:   s.SuggesterID,
		SenderID: session.UserID,
		Type:     domain.NotifySuggestionDone,
		Title:    title,
		Message:  body,
		Data: map[string]any{
			"suggestion_id": s.ID, "status": string(updated.Status),
		},
		DedupKey: responseKey(s.ID),
	})
	return updated, nil
}

func (q *SuggestionQueue) ownedSession(ctx context.Context, callerID, sessionID string) (*domain.LiveSession, error) {
	if callerID == "" {
		return nil, domain.ErrMissingUser
	}
	session, err := q.db.GetLiveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	if session.UserID != callerID {
		return nil, domain.ErrNotSessionOwner
	}
	return session, nil
}

func (q *SuggestionQueue) notify(ctx context.Context, n domain.Notification) {
	if q.notifier == nil {
		return
	}
	if _, err := q.notifier.Dispatch(ctx, n); err != nil {
		log.Printf("[suggest] notify %s: %v", n.UserID, err)
	}
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

// ─── Live Sessions ──────────────────────────────────────────────────────────

// UpsertLiveSession creates or replaces a live session record.
func (d *DB) UpsertLiveSession(ctx context.Context, s domain.LiveSession) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO live_sessions (id, user_id, is_active, viewer_count, user_quest_id, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			is_active = excluded.is_active,
			viewer_count = excluded.viewer_count,
			user_quest_id = COALESCE(excluded.user_quest_id, live_sessions.user_quest_id),
			ended_at = excluded.ended_at`,
		s.ID, s.UserID, s.IsActive, s.ViewerCount, nullableString(s.UserQuestID),
		millis(s.StartedAt), nullableMillis(s.EndedAt),
	)
	return err
}

// GetLiveSession retrieves a session by ID. Returns nil, nil when absent.
func (d *DB) GetLiveSession(ctx context.Context, id string) (*domain.LiveSession, error) {
	return getLiveSession(ctx, d.db, id)
}

func getLiveSession(ctx context.Context, q querier, id string) (*domain.LiveSession, error) {
	var s domain.LiveSession
	var instanceID sql.NullString
	var started int64
	var ended sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, is_active, viewer_count, user_quest_id, started_at, ended_at
		 FROM live_sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.IsActive, &s.ViewerCount, &instanceID, &started, &ended)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.UserQuestID = instanceID.String
	s.StartedAt = fromMillis(started)
	s.EndedAt = fromNullMillis(ended)
	return &s, nil
}

// EndLiveSession marks a session inactive at the given time.
func (d *DB) EndLiveSession(ctx context.Context, id string, at time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE live_sessions SET is_active = 0, ended_at = ? WHERE id = ?`, millis(at), id)
	return err
}

// ─── Quest Suggestions ──────────────────────────────────────────────────────

const suggestionColumns = `id, live_session_id, suggester_id, quest_id, boost_amount, message,
	status, user_quest_id, created_at, responded_at`

// InsertSuggestion stores a pending suggestion. A positive boost is moved
// from the suggester to the system pool in the same transaction, so the
// suggestion exists if and only if the boost was paid.
func (d *DB) InsertSuggestion(ctx context.Context, s domain.QuestSuggestion) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if s.BoostAmount > 0 {
			err := applyTransfer(ctx, tx, Transfer{
				From:         domain.UserAccount(s.SuggesterID),
				To:           domain.SystemAccount,
				Amount:       s.BoostAmount,
				Type:         domain.TxBoost,
				Reference:    s.ID,
				Description:  "suggestion boost",
				RequireFunds: true,
				At:           s.CreatedAt,
			})
			if err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO quest_suggestions (`+suggestionColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.LiveSessionID, s.SuggesterID, s.QuestID, s.BoostAmount, s.Message,
			string(domain.SuggestionPending), nullableString(s.UserQuestID),
			millis(s.CreatedAt), nullableMillis(s.RespondedAt),
		)
		return err
	})
}

// GetSuggestion retrieves a suggestion by ID. Returns nil, nil when absent.
func (d *DB) GetSuggestion(ctx context.Context, id string) (*domain.QuestSuggestion, error) {
	return getSuggestion(ctx, d.db, id)
}

func getSuggestion(ctx context.Context, q querier, id string) (*domain.QuestSuggestion, error) {
	row := q.QueryRowContext(ctx, `SELECT `+suggestionColumns+` FROM quest_suggestions WHERE id = ?`, id)
	return scanSuggestion(row)
}

// ListPendingSuggestions returns a session's pending suggestions ordered by
// boost descending, then creation time, then insertion order.
func (d *DB) ListPendingSuggestions(ctx context.Context, sessionID string) ([]domain.QuestSuggestion, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+suggestionColumns+` FROM quest_suggestions
		 WHERE live_session_id = ? AND status = 'pending'
		 ORDER BY boost_amount DESC, created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QuestSuggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// AcceptSuggestion starts inst for the streamer, marks the suggestion
// accepted and links the instance onto the live session, all or nothing.
// The pending → accepted update is guarded, so of two concurrent accepts
// only one succeeds.
func (d *DB) AcceptSuggestion(ctx context.Context, suggestionID string, inst domain.QuestInstance, maxActive int, at time.Time) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		s, err := getSuggestion(ctx, tx, suggestionID)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.ErrSuggestionNotFound
		}
		if s.Status != domain.SuggestionPending {
			return domain.ErrSuggestionNotPending
		}

		if err := insertInstance(ctx, tx, inst, maxActive); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE quest_suggestions SET status = 'accepted', user_quest_id = ?, responded_at = ?
			 WHERE id = ? AND status = 'pending'`,
			inst.ID, millis(at), suggestionID,
		)
		if err != nil {
			return fmt.Errorf("accept suggestion: %w", err)
		}
		if n, _ := result.RowsAffected(); n != 1 {
			return domain.ErrSuggestionNotPending
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE live_sessions SET user_quest_id = ? WHERE id = ?`, inst.ID, s.LiveSessionID)
		return err
	})
}

// DeclineSuggestion marks a pending suggestion declined. When refund is set
// a positive boost is returned to the suggester in the same transaction.
func (d *DB) DeclineSuggestion(ctx context.Context, suggestionID string, refund bool, at time.Time) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		s, err := getSuggestion(ctx, tx, suggestionID)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.ErrSuggestionNotFound
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE quest_suggestions SET status = 'declined', responded_at = ?
			 WHERE id = ? AND status = 'pending'`,
			millis(at), suggestionID,
		)
		if err != nil {
			return fmt.Errorf("decline suggestion: %w", err)
		}
		if n, _ := result.RowsAffected(); n != 1 {
			return domain.ErrSuggestionNotPending
		}

		if refund && s.BoostAmount > 0 {
			return applyTransfer(ctx, tx, Transfer{
				From:        domain.SystemAccount,
				To:          domain.UserAccount(s.SuggesterID),
				Amount:      s.BoostAmount,
				Type:        domain.TxRefund,
				Reference:   s.ID,
				Description: "declined suggestion refund",
				At:          at,
			})
		}
		return nil
	})
}

func scanSuggestion(s scanner) (*domain.QuestSuggestion, error) {
	var q domain.QuestSuggestion
	var status string
	var instanceID sql.NullString
	var created int64
	var responded sql.NullInt64
	err := s.Scan(&q.ID, &q.LiveSessionID, &q.SuggesterID, &q.QuestID, &q.BoostAmount,
		&q.Message, &status, &instanceID, &created, &responded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	q.Status = domain.SuggestionStatus(status)
	q.UserQuestID = instanceID.String
	q.CreatedAt = fromMillis(created)
	q.RespondedAt = fromNullMillis(responded)
	return &q, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

// ─── Challenges ─────────────────────────────────────────────────────────────

const challengeColumns = `id, user_id, category, start_date, is_active, created_at`

// InsertChallenge enrolls a user. Returns ErrChallengeExists when the user
// already has an active challenge in the category.
func (d *DB) InsertChallenge(ctx context.Context, c domain.Challenge) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM challenges WHERE user_id = ? AND category = ? AND is_active = 1`,
			c.UserID, c.Category,
		).Scan(&n)
		if err != nil {
			return err
		}
		if n > 0 && c.IsActive {
			return domain.ErrChallengeExists
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO challenges (`+challengeColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.UserID, c.Category, millis(c.StartDate), c.IsActive, millis(c.CreatedAt),
		)
		return err
	})
}

// GetChallenge retrieves a challenge by ID. Returns nil, nil when absent.
func (d *DB) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	return scanChallenge(row)
}

// ListActiveChallenges returns every active challenge, oldest first.
func (d *DB) ListActiveChallenges(ctx context.Context) ([]domain.Challenge, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE is_active = 1 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeactivateChallenge marks a challenge finished.
func (d *DB) DeactivateChallenge(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, `UPDATE challenges SET is_active = 0 WHERE id = ?`, id)
	return err
}

func scanChallenge(s scanner) (*domain.Challenge, error) {
	var c domain.Challenge
	var start, created int64
	err := s.Scan(&c.ID, &c.UserID, &c.Category, &start, &c.IsActive, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.StartDate = fromMillis(start)
	c.CreatedAt = fromMillis(created)
	return &c, nil
}

// ─── Challenge Days ─────────────────────────────────────────────────────────

// GetChallengeDay returns the record for (challengeID, day), or nil, nil.
func (d *DB) GetChallengeDay(ctx context.Context, challengeID string, day int) (*domain.ChallengeDayRecord, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT challenge_id, day, quest_id, user_quest_id, status, updated_at
		 FROM challenge_days WHERE challenge_id = ? AND day = ?`, challengeID, day)
	return scanChallengeDay(row)
}

// ListChallengeDays returns all recorded days of a challenge in day order.
func (d *DB) ListChallengeDays(ctx context.Context, challengeID string) ([]domain.ChallengeDayRecord, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT challenge_id, day, quest_id, user_quest_id, status, updated_at
		 FROM challenge_days WHERE challenge_id = ? ORDER BY day ASC`, challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChallengeDayRecord
	for rows.Next() {
		r, err := scanChallengeDay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpsertChallengeDay creates or updates the (challenge, day) record. Empty
// quest and instance ids keep whatever is already stored.
func (d *DB) UpsertChallengeDay(ctx context.Context, r domain.ChallengeDayRecord) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO challenge_days (challenge_id, day, quest_id, user_quest_id, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(challenge_id, day) DO UPDATE SET
			quest_id = COALESCE(excluded.quest_id, challenge_days.quest_id),
			user_quest_id = COALESCE(excluded.user_quest_id, challenge_days.user_quest_id),
			status = excluded.status,
			updated_at = excluded.updated_at`,
		r.ChallengeID, r.Day, nullableString(r.QuestID), nullableString(r.UserQuestID),
		string(r.Status), millis(r.UpdatedAt),
	)
	return err
}

// SetDayStatusByInstance updates the status of the day linked to an
// instance. Reports whether any day matched.
func (d *DB) SetDayStatusByInstance(ctx context.Context, userQuestID string, status domain.DayStatus, at time.Time) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`UPDATE challenge_days SET status = ?, updated_at = ? WHERE user_quest_id = ?`,
		string(status), millis(at), userQuestID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func scanChallengeDay(s scanner) (*domain.ChallengeDayRecord, error) {
	var r domain.ChallengeDayRecord
	var questID, instanceID sql.NullString
	var status string
	var updated int64
	err := s.Scan(&r.ChallengeID, &r.Day, &questID, &instanceID, &status, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.QuestID = questID.String
	r.UserQuestID = instanceID.String
	r.Status = domain.DayStatus(status)
	r.UpdatedAt = fromMillis(updated)
	return &r, nil
}

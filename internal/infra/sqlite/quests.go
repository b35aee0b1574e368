package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

// ─── Quest Templates ────────────────────────────────────────────────────────

const templateColumns = `id, title, description, category, difficulty, goal_type, goal_count,
	xp_reward, point_reward, location, time_context, created_by, generated, created_at`

// InsertTemplate stores a new quest template.
func (d *DB) InsertTemplate(ctx context.Context, t domain.QuestTemplate) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO quest_templates (`+templateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.Category, string(t.Difficulty), string(t.GoalType),
		t.GoalCount, t.XPReward, t.PointReward, t.Location, t.TimeContext, t.CreatedBy,
		t.Generated, millis(t.CreatedAt),
	)
	return err
}

// GetTemplate retrieves a template by ID. Returns nil, nil when absent.
func (d *DB) GetTemplate(ctx context.Context, id string) (*domain.QuestTemplate, error) {
	return getTemplate(ctx, d.db, id)
}

func getTemplate(ctx context.Context, q querier, id string) (*domain.QuestTemplate, error) {
	row := q.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM quest_templates WHERE id = ?`, id)
	var t domain.QuestTemplate
	var difficulty, goalType string
	var createdAt int64
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Category, &difficulty, &goalType,
		&t.GoalCount, &t.XPReward, &t.PointReward, &t.Location, &t.TimeContext, &t.CreatedBy,
		&t.Generated, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Difficulty = domain.Difficulty(difficulty)
	t.GoalType = domain.GoalType(goalType)
	t.CreatedAt = fromMillis(createdAt)
	return &t, nil
}

// ─── Quest Instances ────────────────────────────────────────────────────────

const instanceColumns = `id, user_id, quest_id, status, no_count, yes_count, action_count,
	started_at, completed_at, created_at`

// GetInstance retrieves an instance by ID. Returns nil, nil when absent.
func (d *DB) GetInstance(ctx context.Context, id string) (*domain.QuestInstance, error) {
	return getInstance(ctx, d.db, id)
}

func getInstance(ctx context.Context, q querier, id string) (*domain.QuestInstance, error) {
	row := q.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM quest_instances WHERE id = ?`, id)
	return scanInstance(row)
}

func scanInstance(s scanner) (*domain.QuestInstance, error) {
	var q domain.QuestInstance
	var status string
	var startedAt, completedAt sql.NullInt64
	var createdAt int64

	err := s.Scan(&q.ID, &q.UserID, &q.QuestID, &status, &q.NoCount, &q.YesCount,
		&q.ActionCount, &startedAt, &completedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}
	q.Status = domain.QuestStatus(status)
	q.StartedAt = fromNullMillis(startedAt)
	q.CompletedAt = fromNullMillis(completedAt)
	q.CreatedAt = fromMillis(createdAt)
	return &q, nil
}

// ListInstancesByUser returns a user's instances, newest first.
func (d *DB) ListInstancesByUser(ctx context.Context, userID string) ([]domain.QuestInstance, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM quest_instances WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QuestInstance
	for rows.Next() {
		q, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// CountActive returns how many ACTIVE instances a user holds.
func (d *DB) CountActive(ctx context.Context, userID string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quest_instances WHERE user_id = ? AND status = 'ACTIVE'`, userID,
	).Scan(&n)
	return n, err
}

// InsertInstance creates an instance, enforcing in one statement that the
// user does not already hold the template and, for ACTIVE instances, that
// the user stays within maxActive. Returns ErrQuestAlreadyHeld or
// ErrActiveQuestCap without writing anything when a rule fails.
func (d *DB) InsertInstance(ctx context.Context, inst domain.QuestInstance, maxActive int) error {
	return insertInstance(ctx, d.db, inst, maxActive)
}

func insertInstance(ctx context.Context, q querier, inst domain.QuestInstance, maxActive int) error {
	limit := maxActive
	if inst.Status != domain.QuestActive {
		limit = 0 // queued instances do not count against the cap
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO quest_instances (id, user_id, quest_id, status, started_at, created_at)
		 SELECT ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (
			SELECT 1 FROM quest_instances
			WHERE user_id = ? AND quest_id = ? AND status IN ('QUEUED', 'ACTIVE'))
		   AND (? <= 0 OR (
			SELECT COUNT(*) FROM quest_instances
			WHERE user_id = ? AND status = 'ACTIVE') < ?)`,
		inst.ID, inst.UserID, inst.QuestID, string(inst.Status),
		nullableMillis(inst.StartedAt), millis(inst.CreatedAt),
		inst.UserID, inst.QuestID,
		limit, inst.UserID, limit,
	)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}

	var held int
	err = q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quest_instances
		 WHERE user_id = ? AND quest_id = ? AND status IN ('QUEUED', 'ACTIVE')`,
		inst.UserID, inst.QuestID,
	).Scan(&held)
	if err != nil {
		return err
	}
	if held > 0 {
		return domain.ErrQuestAlreadyHeld
	}
	return domain.ErrActiveQuestCap
}

// RecordAction increments the counter for action on an ACTIVE instance and
// completes it when the goal counter reaches the template's goal count.
// The completion update is conditional on status, so CompletedAt is stamped
// exactly once. A COMPLETED instance is returned untouched.
func (d *DB) RecordAction(ctx context.Context, instanceID string, action domain.Action, now time.Time) (*domain.ProgressResult, error) {
	var column string
	switch action {
	case domain.ActionNo:
		column = "no_count"
	case domain.ActionYes:
		column = "yes_count"
	case domain.ActionAction:
		column = "action_count"
	default:
		return nil, domain.ErrInvalidAction
	}

	var res domain.ProgressResult
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		inst, err := getInstance(ctx, tx, instanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return domain.ErrInstanceNotFound
		}
		tmpl, err := getTemplate(ctx, tx, inst.QuestID)
		if err != nil {
			return err
		}
		if tmpl == nil {
			return domain.ErrQuestNotFound
		}
		res.Template = *tmpl

		switch inst.Status {
		case domain.QuestCompleted:
			res.Instance = *inst
			res.AlreadyCompleted = true
			return nil
		case domain.QuestActive:
		default:
			return domain.ErrQuestNotActive
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE quest_instances SET `+column+` = `+column+` + 1 WHERE id = ? AND status = 'ACTIVE'`,
			instanceID,
		); err != nil {
			return fmt.Errorf("increment %s: %w", column, err)
		}

		inst, err = getInstance(ctx, tx, instanceID)
		if err != nil {
			return err
		}

		if inst.Count(tmpl.GoalType) >= tmpl.GoalCount {
			result, err := tx.ExecContext(ctx,
				`UPDATE quest_instances SET status = 'COMPLETED', completed_at = ?
				 WHERE id = ? AND status = 'ACTIVE'`,
				millis(now), instanceID,
			)
			if err != nil {
				return fmt.Errorf("complete instance: %w", err)
			}
			if n, _ := result.RowsAffected(); n == 1 {
				res.Completed = true
				inst.Status = domain.QuestCompleted
				inst.CompletedAt = fromMillis(millis(now))
			}
		}
		res.Instance = *inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListActiveQuests returns every ACTIVE instance with a start time, joined
// with its template.
func (d *DB) ListActiveQuests(ctx context.Context) ([]domain.ActiveQuest, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT i.id, i.user_id, i.quest_id, i.status, i.no_count, i.yes_count, i.action_count,
		        i.started_at, i.completed_at, i.created_at,
		        t.title, t.difficulty, t.goal_type, t.goal_count
		 FROM quest_instances i JOIN quest_templates t ON t.id = i.quest_id
		 WHERE i.status = 'ACTIVE' AND i.started_at IS NOT NULL
		 ORDER BY i.started_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActiveQuest
	for rows.Next() {
		var a domain.ActiveQuest
		var status, difficulty, goalType string
		var startedAt, completedAt sql.NullInt64
		var createdAt int64
		err := rows.Scan(&a.Instance.ID, &a.Instance.UserID, &a.Instance.QuestID, &status,
			&a.Instance.NoCount, &a.Instance.YesCount, &a.Instance.ActionCount,
			&startedAt, &completedAt, &createdAt,
			&a.Title, &difficulty, &goalType, &a.GoalCount)
		if err != nil {
			return nil, err
		}
		a.Instance.Status = domain.QuestStatus(status)
		a.Instance.StartedAt = fromNullMillis(startedAt)
		a.Instance.CompletedAt = fromNullMillis(completedAt)
		a.Instance.CreatedAt = fromMillis(createdAt)
		a.Difficulty = domain.Difficulty(difficulty)
		a.GoalType = domain.GoalType(goalType)
		out = append(out, a)
	}
	return out, rows.Err()
}

// PromoteQueued activates the user's oldest QUEUED instance if the user is
// below maxActive. Returns nil, nil when nothing was promoted.
func (d *DB) PromoteQueued(ctx context.Context, userID string, maxActive int, now time.Time) (*domain.QuestInstance, error) {
	var promoted *domain.QuestInstance
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM quest_instances WHERE user_id = ? AND status = 'QUEUED'
			 ORDER BY created_at ASC, rowid ASC LIMIT 1`, userID,
		).Scan(&id)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE quest_instances SET status = 'ACTIVE', started_at = ?
			 WHERE id = ? AND status = 'QUEUED'
			   AND (SELECT COUNT(*) FROM quest_instances WHERE user_id = ? AND status = 'ACTIVE') < ?`,
			millis(now), id, userID, maxActive,
		)
		if err != nil {
			return err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil
		}
		promoted, err = getInstance(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// ─── User Stats ─────────────────────────────────────────────────────────────

// AddCompletionStats adds XP and one completed quest to a user's stats.
func (d *DB) AddCompletionStats(ctx context.Context, userID string, xp int64) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO user_stats (user_id, total_xp, quests_completed) VALUES (?, ?, 1)
		 ON CONFLICT(user_id) DO UPDATE SET
			total_xp = total_xp + excluded.total_xp,
			quests_completed = quests_completed + 1`,
		userID, xp,
	)
	return err
}

// GetUserStats returns a user's stats; zero values when none recorded.
func (d *DB) GetUserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	stats := domain.UserStats{UserID: userID}
	err := d.db.QueryRowContext(ctx,
		`SELECT total_xp, quests_completed FROM user_stats WHERE user_id = ?`, userID,
	).Scan(&stats.TotalXP, &stats.QuestsCompleted)
	if err == sql.ErrNoRows {
		return stats, nil
	}
	return stats, err
}

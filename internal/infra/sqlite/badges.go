package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

// ─── Badge Facts ────────────────────────────────────────────────────────────

// maxInArgs keeps IN (...) lists under SQLite's bound-parameter limit.
const maxInArgs = 500

// BadgeFacts loads the classifier inputs for every id with one grouped
// query per rule (per chunk of maxInArgs ids). Rules whose tables are not
// provisioned contribute zero facts. coWindow bounds co-completion.
func (d *DB) BadgeFacts(ctx context.Context, ids []string, coWindow time.Duration) (map[string]domain.BadgeFacts, error) {
	facts := make(map[string]domain.BadgeFacts, len(ids))
	for _, id := range ids {
		facts[id] = domain.BadgeFacts{}
	}

	for start := 0; start < len(ids); start += maxInArgs {
		end := start + maxInArgs
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		loaders := []func(context.Context, []string, map[string]domain.BadgeFacts) error{
			d.loadLiveFacts,
			func(ctx context.Context, ids []string, f map[string]domain.BadgeFacts) error {
				return d.loadCoCompletion(ctx, ids, coWindow, f)
			},
		}
		if d.features.Verifications {
			loaders = append(loaders, d.loadVerifications)
		}
		if d.features.Posts {
			loaders = append(loaders, d.loadPosts)
		}
		if d.features.GroupQuests {
			loaders = append(loaders, d.loadGroupFacts)
		}
		for _, load := range loaders {
			if err := load(ctx, chunk, facts); err != nil {
				return nil, err
			}
		}
	}
	return facts, nil
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")", args
}

func (d *DB) loadVerifications(ctx context.Context, ids []string, facts map[string]domain.BadgeFacts) error {
	in, args := inClause(ids)
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_quest_id, COUNT(DISTINCT verifier_id) FROM quest_verifications
		 WHERE user_quest_id IN `+in+` GROUP BY user_quest_id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return err
		}
		f := facts[id]
		f.Verifications = n
		facts[id] = f
	}
	return rows.Err()
}

func (d *DB) loadPosts(ctx context.Context, ids []string, facts map[string]domain.BadgeFacts) error {
	in, args := inClause(ids)
	rows, err := d.db.QueryContext(ctx,
		`SELECT DISTINCT user_quest_id FROM posts
		 WHERE user_quest_id IN `+in+` AND image_count > 0`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		f := facts[id]
		f.PostWithImage = true
		facts[id] = f
	}
	return rows.Err()
}

func (d *DB) loadLiveFacts(ctx context.Context, ids []string, facts map[string]domain.BadgeFacts) error {
	in, args := inClause(ids)
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_quest_id,
			MAX(CASE WHEN is_active = 0 AND ended_at IS NOT NULL THEN 1 ELSE 0 END),
			MAX(CASE WHEN viewer_count > 0 THEN 1 ELSE 0 END)
		 FROM live_sessions WHERE user_quest_id IN `+in+` GROUP BY user_quest_id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var ended, viewers int
		if err := rows.Scan(&id, &ended, &viewers); err != nil {
			return err
		}
		f := facts[id]
		f.LiveEnded = ended == 1
		f.LiveHadViewers = viewers == 1
		facts[id] = f
	}
	return rows.Err()
}

func (d *DB) loadGroupFacts(ctx context.Context, ids []string, facts map[string]domain.BadgeFacts) error {
	in, args := inClause(ids)
	rows, err := d.db.QueryContext(ctx,
		`SELECT p.user_quest_id,
			(SELECT COUNT(*) FROM group_quest_participants g WHERE g.group_quest_id = p.group_quest_id)
		 FROM group_quest_participants p
		 WHERE p.user_quest_id IN `+in+` AND p.status = 'completed'`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return err
		}
		f := facts[id]
		f.GroupCompleted = true
		if n > f.GroupParticipants {
			f.GroupParticipants = n
		}
		facts[id] = f
	}
	return rows.Err()
}

func (d *DB) loadCoCompletion(ctx context.Context, ids []string, window time.Duration, facts map[string]domain.BadgeFacts) error {
	in, args := inClause(ids)
	w := window.Milliseconds()
	args = append(args, w, w)
	rows, err := d.db.QueryContext(ctx,
		`SELECT a.id FROM quest_instances a
		 WHERE a.id IN `+in+` AND a.status = 'COMPLETED' AND a.completed_at IS NOT NULL
		   AND EXISTS (
			SELECT 1 FROM quest_instances b
			WHERE b.quest_id = a.quest_id AND b.user_id <> a.user_id
			  AND b.status = 'COMPLETED'
			  AND b.completed_at BETWEEN a.completed_at - ? AND a.completed_at + ?)`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		f := facts[id]
		f.CoCompleted = true
		facts[id] = f
	}
	return rows.Err()
}

// ─── Social Records ─────────────────────────────────────────────────────────
// Writers for the tables owned by the social components. The engine only
// reads them; these exist for provisioning tools and tests.

// InsertVerification records an independent verification of an instance.
// A repeat by the same verifier is ignored.
func (d *DB) InsertVerification(ctx context.Context, id, userQuestID, verifierID string, at time.Time) error {
	if !d.features.Verifications {
		return domain.ErrFeatureUnavailable
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO quest_verifications (id, user_quest_id, verifier_id, created_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT(user_quest_id, verifier_id) DO NOTHING`,
		id, userQuestID, verifierID, millis(at))
	return err
}

// InsertPost records a community post, optionally referencing an instance.
func (d *DB) InsertPost(ctx context.Context, id, userID, userQuestID string, imageCount int, at time.Time) error {
	if !d.features.Posts {
		return domain.ErrFeatureUnavailable
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, user_quest_id, image_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, nullableString(userQuestID), imageCount, millis(at))
	return err
}

// InsertGroupQuest creates a group quest for a template.
func (d *DB) InsertGroupQuest(ctx context.Context, id, questID string, at time.Time) error {
	if !d.features.GroupQuests {
		return domain.ErrFeatureUnavailable
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO group_quests (id, quest_id, created_at) VALUES (?, ?, ?)`, id, questID, millis(at))
	return err
}

// UpsertGroupParticipant adds or updates a member of a group quest.
func (d *DB) UpsertGroupParticipant(ctx context.Context, groupID, userID, userQuestID, status string) error {
	if !d.features.GroupQuests {
		return domain.ErrFeatureUnavailable
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO group_quest_participants (group_quest_id, user_id, user_quest_id, status)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(group_quest_id, user_id) DO UPDATE SET
			user_quest_id = excluded.user_quest_id, status = excluded.status`,
		groupID, userID, nullableString(userQuestID), status)
	return err
}

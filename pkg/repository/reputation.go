package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/slopscope/slopscope/pkg/domain"
)

// ReputationRepository handles per-user score and scored-comment persistence.
// Every mutation is flushed to the database synchronously; there is no
// batching layer on top.
type ReputationRepository struct {
	db *sqlx.DB
}

// NewReputationRepository creates a new reputation repository
func NewReputationRepository(db *sqlx.DB) *ReputationRepository {
	return &ReputationRepository{db: db}
}

// commentSQL mirrors a row of the comments table
type commentSQL struct {
	Username   string    `db:"username"`
	CommentID  string    `db:"comment_id"`
	IsAI       bool      `db:"is_ai"`
	Confidence float64   `db:"confidence"`
	ScoreDelta int       `db:"score_delta"`
	Model      string    `db:"model"`
	CreatedAt  time.Time `db:"created_at"`
}

// RecordResult records a classified comment for a user and adjusts the
// running score: -1 for an AI verdict, +1 for a human one. The first
// classification of a (username, commentID) pair wins; repeated calls are
// no-ops and return false.
func (r *ReputationRepository) RecordResult(ctx context.Context, username, commentID string, isAI bool, confidence float64, model string) (bool, error) {
	if username == "" || username == domain.DeletedUser || commentID == "" {
		return false, nil
	}

	delta := 1
	if isAI {
		delta = -1
	}

	recorded := false
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	err := retrier.Do(ctx, func() error {
		recorded = false

		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("begin transaction: %w", err)}
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		// user row must exist before the comment row for the FK
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (username) VALUES (?) ON CONFLICT(username) DO NOTHING`, username); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("ensure user: %w", err)}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO comments (username, comment_id, is_ai, confidence, score_delta, model)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(username, comment_id) DO NOTHING`,
			username, commentID, isAI, confidence, delta, model)
		if err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("insert comment: %w", err)}
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("rows affected: %w", err)}
		}
		if affected == 0 {
			// already scored, leave everything untouched
			return tx.Commit()
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET score = score + ?, updated_at = datetime('now') WHERE username = ?`,
			delta, username); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("update score: %w", err)}
		}

		if err := tx.Commit(); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("commit: %w", err)}
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

// GetScore returns the user's running score, zero for unknown users
func (r *ReputationRepository) GetScore(ctx context.Context, username string) (int, error) {
	var score int
	err := r.db.GetContext(ctx, &score, "SELECT score FROM users WHERE username = ?", username)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get score: %w", err)
	}
	return score, nil
}

// IsProcessed reports whether the (username, commentID) pair was already scored
func (r *ReputationRepository) IsProcessed(ctx context.Context, username, commentID string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM comments WHERE username = ? AND comment_id = ?", username, commentID)
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return count > 0, nil
}

// GetCached returns the persisted verdict for a scored comment, nil on miss
func (r *ReputationRepository) GetCached(ctx context.Context, username, commentID string) (*domain.CachedVerdict, error) {
	var row commentSQL
	err := r.db.GetContext(ctx, &row,
		"SELECT * FROM comments WHERE username = ? AND comment_id = ?", username, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached verdict: %w", err)
	}
	return &domain.CachedVerdict{
		IsAI:       row.IsAI,
		Confidence: row.Confidence,
		ScoreDelta: row.ScoreDelta,
		Timestamp:  row.CreatedAt,
	}, nil
}

// UserStats returns aggregated counts for a single user
func (r *ReputationRepository) UserStats(ctx context.Context, username string) (domain.UserStats, error) {
	stats := domain.UserStats{Username: username}
	err := r.db.GetContext(ctx, &stats, `
		SELECT u.username, u.score,
		       COUNT(c.comment_id) AS total,
		       COALESCE(SUM(c.is_ai), 0) AS ai,
		       COUNT(c.comment_id) - COALESCE(SUM(c.is_ai), 0) AS human
		FROM users u
		LEFT JOIN comments c ON c.username = u.username
		WHERE u.username = ?
		GROUP BY u.username`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserStats{Username: username}, nil
	}
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("get user stats: %w", err)
	}
	return stats, nil
}

// AllStats returns aggregated counts for every known user, ordered by name
func (r *ReputationRepository) AllStats(ctx context.Context) ([]domain.UserStats, error) {
	var stats []domain.UserStats
	err := r.db.SelectContext(ctx, &stats, `
		SELECT u.username, u.score,
		       COUNT(c.comment_id) AS total,
		       COALESCE(SUM(c.is_ai), 0) AS ai,
		       COUNT(c.comment_id) - COALESCE(SUM(c.is_ai), 0) AS human
		FROM users u
		LEFT JOIN comments c ON c.username = u.username
		GROUP BY u.username
		ORDER BY u.username`)
	if err != nil {
		return nil, fmt.Errorf("get all stats: %w", err)
	}
	return stats, nil
}

// ClearAll wipes every user record and scored comment. The session-local
// processed set lives elsewhere and is not touched here.
func (r *ReputationRepository) ClearAll(ctx context.Context) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM comments"); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("clear comments: %w", err)}
		}
		if _, err := r.db.ExecContext(ctx, "DELETE FROM users"); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("clear users: %w", err)}
		}
		return nil
	})
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"zudlik/internal/database"
	"zudlik/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type commentRepository struct {
	*BaseRepository
}

// NewCommentRepository creates the comment repository.
func NewCommentRepository(db *database.Manager, logger *zap.Logger) CommentRepository {
	return &commentRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const commentColumns = `
	id, problem_id, user_id, content, is_anonymous, parent_comment_id,
	like_count, is_solution, reply_count, is_edited, is_active,
	created_at, updated_at`

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (problem_id, user_id, content, is_anonymous, parent_comment_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.QueryRowContext(ctx, query,
		comment.ProblemID,
		comment.UserID,
		comment.Content,
		comment.IsAnonymous,
		comment.ParentCommentID,
	).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}

	comment.IsActive = true
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	query := fmt.Sprintf(`SELECT %s FROM comments WHERE id = $1`, commentColumns)
	return r.scanComment(r.QueryRowContext(ctx, query, id))
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	query := `
		UPDATE comments
		SET content = $2, is_edited = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.QueryRowContext(ctx, query, comment.ID, comment.Content, comment.IsEdited).
		Scan(&comment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update comment %d: %w", comment.ID, err)
	}
	return nil
}

func (r *commentRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.ExecContext(ctx,
		`UPDATE comments SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return fmt.Errorf("soft delete comment %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *commentRepository) GetTopLevelByProblem(ctx context.Context, problemID int64, limit, offset int) ([]*models.Comment, error) {
	// Accepted solution first, then most liked, then newest. The trailing id
	// key keeps ties deterministic.
	query := fmt.Sprintf(`
		SELECT %s FROM comments
		WHERE problem_id = $1 AND parent_comment_id IS NULL AND is_active = TRUE
		ORDER BY is_solution DESC, like_count DESC, created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, commentColumns)

	rows, err := r.QueryContext(ctx, query, problemID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get top-level comments for problem %d: %w", problemID, err)
	}
	defer rows.Close()
	return r.scanComments(rows)
}

func (r *commentRepository) CountTopLevelByProblem(ctx context.Context, problemID int64) (int64, error) {
	return r.GetTotalCount(ctx,
		`SELECT COUNT(*) FROM comments WHERE problem_id = $1 AND parent_comment_id IS NULL AND is_active = TRUE`,
		problemID)
}

func (r *commentRepository) GetReplies(ctx context.Context, parentCommentID int64) ([]*models.Comment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM comments
		WHERE parent_comment_id = $1 AND is_active = TRUE
		ORDER BY created_at ASC, id ASC`, commentColumns)

	rows, err := r.QueryContext(ctx, query, parentCommentID)
	if err != nil {
		return nil, fmt.Errorf("get replies of comment %d: %w", parentCommentID, err)
	}
	defer rows.Close()
	return r.scanComments(rows)
}

func (r *commentRepository) GetRepliesForParents(ctx context.Context, parentIDs []int64) (map[int64][]*models.Comment, error) {
	result := make(map[int64][]*models.Comment, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM comments
		WHERE parent_comment_id = ANY($1) AND is_active = TRUE
		ORDER BY created_at ASC, id ASC`, commentColumns)

	rows, err := r.QueryContext(ctx, query, pq.Array(parentIDs))
	if err != nil {
		return nil, fmt.Errorf("get replies for %d parents: %w", len(parentIDs), err)
	}
	defer rows.Close()

	replies, err := r.scanComments(rows)
	if err != nil {
		return nil, err
	}
	for _, reply := range replies {
		parent := *reply.ParentCommentID
		result[parent] = append(result[parent], reply)
	}
	return result, nil
}

func (r *commentRepository) AdjustReplyCount(ctx context.Context, parentCommentID int64, delta int) error {
	// GREATEST floors the decrement so double-delete races never go negative.
	_, err := r.ExecContext(ctx,
		`UPDATE comments SET reply_count = GREATEST(0, reply_count + $2) WHERE id = $1`,
		parentCommentID, delta)
	if err != nil {
		return fmt.Errorf("adjust reply count of comment %d by %d: %w", parentCommentID, delta, err)
	}
	return nil
}

func (r *commentRepository) ToggleLike(ctx context.Context, commentID, userID int64) (bool, int, error) {
	var liked bool
	var likeCount int

	err := r.WithTransaction(ctx, func(tx *sql.Tx) error {
		// The primary key on (comment_id, user_id) gives the liker set its
		// set semantics; ON CONFLICT makes a duplicate add a no-op.
		result, err := tx.ExecContext(ctx,
			`INSERT INTO comment_likes (comment_id, user_id) VALUES ($1, $2)
			 ON CONFLICT (comment_id, user_id) DO NOTHING`,
			commentID, userID)
		if err != nil {
			return fmt.Errorf("add like: %w", err)
		}

		inserted, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if inserted > 0 {
			liked = true
			err = tx.QueryRowContext(ctx,
				`UPDATE comments SET like_count = like_count + 1 WHERE id = $1 RETURNING like_count`,
				commentID).Scan(&likeCount)
		} else {
			liked = false
			if _, err = tx.ExecContext(ctx,
				`DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`,
				commentID, userID); err != nil {
				return fmt.Errorf("remove like: %w", err)
			}
			err = tx.QueryRowContext(ctx,
				`UPDATE comments SET like_count = GREATEST(0, like_count - 1) WHERE id = $1 RETURNING like_count`,
				commentID).Scan(&likeCount)
		}
		return err
	})
	if err != nil {
		return false, 0, err
	}
	return liked, likeCount, nil
}

func (r *commentRepository) HasLiked(ctx context.Context, commentID, userID int64) (bool, error) {
	var exists bool
	err := r.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM comment_likes WHERE comment_id = $1 AND user_id = $2)`,
		commentID, userID).Scan(&exists)
	return exists, err
}

func (r *commentRepository) GetLikedCommentIDs(ctx context.Context, userID int64, commentIDs []int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(commentIDs))
	if len(commentIDs) == 0 {
		return result, nil
	}

	rows, err := r.QueryContext(ctx,
		`SELECT comment_id FROM comment_likes WHERE user_id = $1 AND comment_id = ANY($2)`,
		userID, pq.Array(commentIDs))
	if err != nil {
		return nil, fmt.Errorf("get liked comment ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result[id] = true
	}
	return result, rows.Err()
}

func (r *commentRepository) DesignateSolution(ctx context.Context, problemID, commentID int64) error {
	return r.WithTransaction(ctx, func(tx *sql.Tx) error {
		// Clear the previous acceptance. Zero rows is fine: there may be no
		// previous solution, or it may have been soft-deleted since.
		if _, err := tx.ExecContext(ctx,
			`UPDATE comments SET is_solution = FALSE WHERE problem_id = $1 AND is_solution = TRUE`,
			problemID); err != nil {
			return fmt.Errorf("clear previous solution: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE comments SET is_solution = TRUE WHERE id = $1 AND problem_id = $2 AND is_active = TRUE`,
			commentID, problemID)
		if err != nil {
			return fmt.Errorf("mark solution comment: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE problems SET accepted_comment_id = $2, status = $3, updated_at = NOW() WHERE id = $1`,
			problemID, commentID, models.ProblemStatusSolved); err != nil {
			return fmt.Errorf("update problem acceptance: %w", err)
		}
		return nil
	})
}

// ===============================
// SCAN HELPERS
// ===============================

func (r *commentRepository) scanComment(row *sql.Row) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(
		&c.ID, &c.ProblemID, &c.UserID, &c.Content, &c.IsAnonymous,
		&c.ParentCommentID, &c.LikeCount, &c.IsSolution, &c.ReplyCount,
		&c.IsEdited, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepository) scanComments(rows *sql.Rows) ([]*models.Comment, error) {
	var comments []*models.Comment
	for rows.Next() {
		var c models.Comment
		err := rows.Scan(
			&c.ID, &c.ProblemID, &c.UserID, &c.Content, &c.IsAnonymous,
			&c.ParentCommentID, &c.LikeCount, &c.IsSolution, &c.ReplyCount,
			&c.IsEdited, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan comment row: %w", err)
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

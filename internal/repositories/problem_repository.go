package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"zudlik/internal/database"
	"zudlik/internal/models"

	"go.uber.org/zap"
)

type problemRepository struct {
	*BaseRepository
}

// NewProblemRepository creates the problem repository.
func NewProblemRepository(db *database.Manager, logger *zap.Logger) ProblemRepository {
	return &problemRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const problemColumns = `
	id, user_id, title, description, category, tags, is_anonymous, status,
	accepted_comment_id, view_count, comment_count, is_active,
	created_at, updated_at`

func (r *problemRepository) Create(ctx context.Context, problem *models.Problem) error {
	query := `
		INSERT INTO problems (user_id, title, description, category, tags, is_anonymous)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, status, created_at, updated_at`

	err := r.QueryRowContext(ctx, query,
		problem.UserID,
		problem.Title,
		problem.Description,
		problem.Category,
		problem.Tags,
		problem.IsAnonymous,
	).Scan(&problem.ID, &problem.Status, &problem.CreatedAt, &problem.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create problem: %w", err)
	}

	problem.IsActive = true
	return nil
}

func (r *problemRepository) GetByID(ctx context.Context, id int64) (*models.Problem, error) {
	query := fmt.Sprintf(`SELECT %s FROM problems WHERE id = $1`, problemColumns)
	return r.scanProblem(r.QueryRowContext(ctx, query, id))
}

func (r *problemRepository) Update(ctx context.Context, problem *models.Problem) error {
	query := `
		UPDATE problems
		SET title = $2, description = $3, category = $4, tags = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.QueryRowContext(ctx, query,
		problem.ID, problem.Title, problem.Description, problem.Category, problem.Tags,
	).Scan(&problem.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update problem %d: %w", problem.ID, err)
	}
	return nil
}

func (r *problemRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.ExecContext(ctx,
		`UPDATE problems SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return fmt.Errorf("soft delete problem %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *problemRepository) SetStatus(ctx context.Context, id int64, status string) error {
	result, err := r.ExecContext(ctx,
		`UPDATE problems SET status = $2, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`,
		id, status)
	if err != nil {
		return fmt.Errorf("set status of problem %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *problemRepository) List(ctx context.Context, filter ProblemFilter) ([]*models.Problem, int64, error) {
	where := []string{"is_active = TRUE"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Category != "" {
		where = append(where, "category = "+arg(filter.Category))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if filter.Tag != "" {
		where = append(where, arg(strings.ToLower(filter.Tag))+" = ANY(tags)")
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}

	whereClause := strings.Join(where, " AND ")

	total, err := r.GetTotalCount(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM problems WHERE %s`, whereClause), args...)
	if err != nil {
		return nil, 0, err
	}

	orderBy := "created_at DESC, id DESC"
	switch filter.Sort {
	case "popular":
		orderBy = "comment_count DESC, created_at DESC, id DESC"
	case "most_viewed":
		orderBy = "view_count DESC, created_at DESC, id DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM problems WHERE %s ORDER BY %s LIMIT %s OFFSET %s`,
		problemColumns, whereClause, orderBy,
		arg(filter.Pagination.Limit), arg(filter.Pagination.Offset()))

	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	problems, err := r.scanProblems(rows)
	if err != nil {
		return nil, 0, err
	}
	return problems, total, nil
}

func (r *problemRepository) ListByUser(ctx context.Context, userID int64, params models.PaginationParams) ([]*models.Problem, int64, error) {
	total, err := r.GetTotalCount(ctx,
		`SELECT COUNT(*) FROM problems WHERE user_id = $1 AND is_active = TRUE`, userID)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM problems
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, problemColumns)

	rows, err := r.QueryContext(ctx, query, userID, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list problems of user %d: %w", userID, err)
	}
	defer rows.Close()

	problems, err := r.scanProblems(rows)
	if err != nil {
		return nil, 0, err
	}
	return problems, total, nil
}

func (r *problemRepository) IncrementViewCount(ctx context.Context, id int64) error {
	_, err := r.ExecContext(ctx,
		`UPDATE problems SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment view count of problem %d: %w", id, err)
	}
	return nil
}

func (r *problemRepository) AdjustCommentCount(ctx context.Context, id int64, delta int) error {
	// GREATEST floors the decrement so double-delete races never go negative.
	_, err := r.ExecContext(ctx,
		`UPDATE problems SET comment_count = GREATEST(0, comment_count + $2) WHERE id = $1`,
		id, delta)
	if err != nil {
		return fmt.Errorf("adjust comment count of problem %d by %d: %w", id, delta, err)
	}
	return nil
}

// ===============================
// TAG QUERIES
// ===============================

func (r *problemRepository) PopularTags(ctx context.Context, limit int) ([]TagCount, error) {
	query := `
		SELECT tag, COUNT(*) AS cnt
		FROM problems, unnest(tags) AS tag
		WHERE is_active = TRUE
		GROUP BY tag
		ORDER BY cnt DESC, tag ASC
		LIMIT $1`
	return r.queryTagCounts(ctx, query, limit)
}

func (r *problemRepository) TagsByCategory(ctx context.Context, category string) ([]TagCount, error) {
	query := `
		SELECT tag, COUNT(*) AS cnt
		FROM problems, unnest(tags) AS tag
		WHERE is_active = TRUE AND category = $1
		GROUP BY tag
		ORDER BY cnt DESC, tag ASC`
	return r.queryTagCounts(ctx, query, category)
}

func (r *problemRepository) SearchTags(ctx context.Context, q string, limit int) ([]TagCount, error) {
	query := `
		SELECT tag, COUNT(*) AS cnt
		FROM problems, unnest(tags) AS tag
		WHERE is_active = TRUE AND tag ILIKE $1
		GROUP BY tag
		ORDER BY cnt DESC, tag ASC
		LIMIT $2`
	return r.queryTagCounts(ctx, query, "%"+strings.ToLower(q)+"%", limit)
}

func (r *problemRepository) queryTagCounts(ctx context.Context, query string, args ...interface{}) ([]TagCount, error) {
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tag query: %w", err)
	}
	defer rows.Close()

	var tags []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan tag row: %w", err)
		}
		tags = append(tags, tc)
	}
	return tags, rows.Err()
}

// ===============================
// SCAN HELPERS
// ===============================

func (r *problemRepository) scanProblem(row *sql.Row) (*models.Problem, error) {
	var p models.Problem
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Description, &p.Category, &p.Tags,
		&p.IsAnonymous, &p.Status, &p.AcceptedCommentID, &p.ViewCount,
		&p.CommentCount, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *problemRepository) scanProblems(rows *sql.Rows) ([]*models.Problem, error) {
	var problems []*models.Problem
	for rows.Next() {
		var p models.Problem
		err := rows.Scan(
			&p.ID, &p.UserID, &p.Title, &p.Description, &p.Category, &p.Tags,
			&p.IsAnonymous, &p.Status, &p.AcceptedCommentID, &p.ViewCount,
			&p.CommentCount, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan problem row: %w", err)
		}
		problems = append(problems, &p)
	}
	return problems, rows.Err()
}

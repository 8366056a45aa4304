package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"zudlik/internal/database"
	"zudlik/internal/models"

	"go.uber.org/zap"
)

type notificationRepository struct {
	*BaseRepository
}

// NewNotificationRepository creates the notification repository.
func NewNotificationRepository(db *database.Manager, logger *zap.Logger) NotificationRepository {
	return &notificationRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const notificationColumns = `
	id, recipient_id, sender_id, kind, message, link, is_read,
	problem_id, comment_id, created_at`

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (recipient_id, sender_id, kind, message, link, problem_id, comment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.QueryRowContext(ctx, query,
		n.RecipientID, n.SenderID, n.Kind, n.Message, n.Link, n.ProblemID, n.CommentID,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID int64, params models.PaginationParams) ([]*models.Notification, int64, error) {
	total, err := r.GetTotalCount(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1`, recipientID)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, notificationColumns)

	rows, err := r.QueryContext(ctx, query, recipientID, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications of user %d: %w", recipientID, err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(
			&n.ID, &n.RecipientID, &n.SenderID, &n.Kind, &n.Message, &n.Link,
			&n.IsRead, &n.ProblemID, &n.CommentID, &n.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification row: %w", err)
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id, recipientID int64) error {
	// Scoped to the recipient so nobody can flip another user's inbox.
	result, err := r.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`,
		id, recipientID)
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, recipientID int64) (int64, error) {
	result, err := r.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`,
		recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read for user %d: %w", recipientID, err)
	}
	return result.RowsAffected()
}

func (r *notificationRepository) Delete(ctx context.Context, id, recipientID int64) error {
	result, err := r.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`,
		id, recipientID)
	if err != nil {
		return fmt.Errorf("delete notification %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	return r.GetTotalCount(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`,
		recipientID)
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"zudlik/internal/database"
	"zudlik/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type userRepository struct {
	*BaseRepository
}

// NewUserRepository creates the user repository.
func NewUserRepository(db *database.Manager, logger *zap.Logger) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const userColumns = `
	id, first_name, last_name, email, phone, password_hash, role, avatar_url,
	email_verified, is_active, password_reset_token, password_reset_expires,
	created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (first_name, last_name, email, phone, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, role, created_at, updated_at`

	err := r.QueryRowContext(ctx, query,
		user.FirstName, user.LastName, user.Email, user.Phone, user.PasswordHash,
	).Scan(&user.ID, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	user.IsActive = true
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return r.scanUser(r.QueryRowContext(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE LOWER(email) = LOWER($1)`, userColumns)
	return r.scanUser(r.QueryRowContext(ctx, query, email))
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.User, error) {
	result := make(map[int64]*models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = ANY($1)`, userColumns)
	rows, err := r.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := r.scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		result[user.ID] = user
	}
	return result, rows.Err()
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, phone = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.QueryRowContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Phone,
	).Scan(&user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user %d: %w", user.ID, err)
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password of user %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *userRepository) UpdateAvatar(ctx context.Context, id int64, avatarURL string) error {
	result, err := r.ExecContext(ctx,
		`UPDATE users SET avatar_url = $2, updated_at = NOW() WHERE id = $1`,
		id, avatarURL)
	if err != nil {
		return fmt.Errorf("update avatar of user %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *userRepository) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	_, err := r.ExecContext(ctx,
		`UPDATE users SET password_reset_token = $2, password_reset_expires = $3, updated_at = NOW() WHERE id = $1`,
		id, token, expires)
	if err != nil {
		return fmt.Errorf("set reset token of user %d: %w", id, err)
	}
	return nil
}

func (r *userRepository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM users
		WHERE password_reset_token = $1 AND password_reset_expires > NOW()`, userColumns)
	return r.scanUser(r.QueryRowContext(ctx, query, token))
}

func (r *userRepository) ClearResetToken(ctx context.Context, id int64) error {
	_, err := r.ExecContext(ctx,
		`UPDATE users SET password_reset_token = NULL, password_reset_expires = NULL, updated_at = NOW() WHERE id = $1`,
		id)
	if err != nil {
		return fmt.Errorf("clear reset token of user %d: %w", id, err)
	}
	return nil
}

// ===============================
// SCAN HELPERS
// ===============================

func (r *userRepository) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.PasswordHash,
		&u.Role, &u.AvatarURL, &u.EmailVerified, &u.IsActive,
		&u.PasswordResetToken, &u.PasswordResetExpires, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) scanUserRow(rows *sql.Rows) (*models.User, error) {
	var u models.User
	err := rows.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.PasswordHash,
		&u.Role, &u.AvatarURL, &u.EmailVerified, &u.IsActive,
		&u.PasswordResetToken, &u.PasswordResetExpires, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	return &u, nil
}

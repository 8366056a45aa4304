package repositories

import (
	"context"
	"time"

	"zudlik/internal/models"
)

// CommentRepository persists comments, their liker sets, and the
// solution-designation swap.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id int64) (*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	SoftDelete(ctx context.Context, id int64) error

	// Thread assembly queries. Top-level ordering is the composite sort
	// (is_solution DESC, like_count DESC, created_at DESC); replies are
	// created_at ASC and never paginated.
	GetTopLevelByProblem(ctx context.Context, problemID int64, limit, offset int) ([]*models.Comment, error)
	CountTopLevelByProblem(ctx context.Context, problemID int64) (int64, error)
	GetReplies(ctx context.Context, parentCommentID int64) ([]*models.Comment, error)
	GetRepliesForParents(ctx context.Context, parentIDs []int64) (map[int64][]*models.Comment, error)

	// Counter maintenance. The sole writer of reply_count; decrements are
	// floored at zero.
	AdjustReplyCount(ctx context.Context, parentCommentID int64, delta int) error

	// ToggleLike flips the caller's membership in the liker set and keeps
	// like_count equal to the set size, in one transaction. Returns whether
	// the like was added and the resulting count.
	ToggleLike(ctx context.Context, commentID, userID int64) (liked bool, likeCount int, err error)
	HasLiked(ctx context.Context, commentID, userID int64) (bool, error)
	GetLikedCommentIDs(ctx context.Context, userID int64, commentIDs []int64) (map[int64]bool, error)

	// DesignateSolution clears the previous accepted comment (tolerating a
	// missing one), marks the new comment, and updates the problem row, all
	// in one transaction.
	DesignateSolution(ctx context.Context, problemID, commentID int64) error
}

// ProblemRepository persists problems and the problem-side counters.
type ProblemRepository interface {
	Create(ctx context.Context, problem *models.Problem) error
	GetByID(ctx context.Context, id int64) (*models.Problem, error)
	Update(ctx context.Context, problem *models.Problem) error
	SoftDelete(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, status string) error

	List(ctx context.Context, filter ProblemFilter) ([]*models.Problem, int64, error)
	ListByUser(ctx context.Context, userID int64, params models.PaginationParams) ([]*models.Problem, int64, error)

	// IncrementViewCount is an atomic in-place bump.
	IncrementViewCount(ctx context.Context, id int64) error
	// AdjustCommentCount is the sole writer of comment_count; decrements are
	// floored at zero.
	AdjustCommentCount(ctx context.Context, id int64, delta int) error

	// Tag aggregation queries over the tags array column.
	PopularTags(ctx context.Context, limit int) ([]TagCount, error)
	TagsByCategory(ctx context.Context, category string) ([]TagCount, error)
	SearchTags(ctx context.Context, query string, limit int) ([]TagCount, error)
}

// ProblemFilter narrows and orders a problem listing.
type ProblemFilter struct {
	Category   string
	Status     string
	Tag        string
	Search     string
	Sort       string // "newest", "popular", "most_viewed"
	Pagination models.PaginationParams
}

// TagCount pairs a tag with its usage count.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// NotificationRepository persists notification records.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID int64, params models.PaginationParams) ([]*models.Notification, int64, error)
	MarkAsRead(ctx context.Context, id, recipientID int64) error
	MarkAllAsRead(ctx context.Context, recipientID int64) (int64, error)
	Delete(ctx context.Context, id, recipientID int64) error
	CountUnread(ctx context.Context, recipientID int64) (int64, error)
}

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateAvatar(ctx context.Context, id int64, avatarURL string) error
	SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	ClearResetToken(ctx context.Context, id int64) error
}

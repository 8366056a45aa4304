package services

import (
	"context"
	"io"

	"zudlik/internal/events"
	"zudlik/internal/models"
	"zudlik/internal/repositories"
)

// ===============================
// COMMENT SERVICE
// ===============================

// CreateCommentRequest carries a new comment or reply.
type CreateCommentRequest struct {
	ProblemID       int64  `json:"-"`
	UserID          int64  `json:"-"`
	Content         string `json:"content" validate:"required,min=5,max=2000"`
	ParentCommentID *int64 `json:"parent_comment_id"`
	IsAnonymous     bool   `json:"is_anonymous"`
}

// GetThreadRequest asks for the assembled two-level thread of a problem.
type GetThreadRequest struct {
	ProblemID  int64
	ViewerID   *int64 // nil for unauthenticated viewers
	Pagination models.PaginationParams
}

// UpdateCommentRequest edits a comment's body.
type UpdateCommentRequest struct {
	CommentID int64  `json:"-"`
	UserID    int64  `json:"-"`
	Content   string `json:"content" validate:"required,min=5,max=2000"`
}

// LikeResult reports the outcome of a like toggle.
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// CommentService owns comment lifecycle, thread assembly, the like toggle,
// and solution designation.
type CommentService interface {
	CreateComment(ctx context.Context, req *CreateCommentRequest) (*models.Comment, error)
	GetThread(ctx context.Context, req *GetThreadRequest) (*models.PaginatedResponse[*models.Comment], error)
	UpdateComment(ctx context.Context, req *UpdateCommentRequest) (*models.Comment, error)
	DeleteComment(ctx context.Context, commentID, actorID int64) error
	ToggleLike(ctx context.Context, commentID, userID int64) (*LikeResult, error)
	DesignateSolution(ctx context.Context, problemID, commentID, actorID int64) error
}

// ===============================
// NOTIFICATION SERVICE
// ===============================

// NotificationListResponse pairs a notification page with the unread total.
type NotificationListResponse struct {
	Data        []*models.Notification `json:"data"`
	Pagination  models.PaginationMeta  `json:"pagination"`
	UnreadCount int64                  `json:"unread_count"`
}

// NotificationService owns the pull-only notification inbox and the fan-out
// event handlers.
type NotificationService interface {
	// Subscribe registers the fan-out handlers on the bus at startup.
	Subscribe(bus events.Bus)

	ListNotifications(ctx context.Context, recipientID int64, params models.PaginationParams) (*NotificationListResponse, error)
	MarkAsRead(ctx context.Context, notificationID, recipientID int64) error
	MarkAllAsRead(ctx context.Context, recipientID int64) (int64, error)
	DeleteNotification(ctx context.Context, notificationID, recipientID int64) error
	GetUnreadCount(ctx context.Context, recipientID int64) (int64, error)
}

// ===============================
// PROBLEM SERVICE
// ===============================

// CreateProblemRequest carries a new problem post.
type CreateProblemRequest struct {
	UserID      int64    `json:"-"`
	Title       string   `json:"title" validate:"required,min=10,max=200"`
	Description string   `json:"description" validate:"required,min=20,max=5000"`
	Category    string   `json:"category" validate:"required"`
	Tags        []string `json:"tags"`
	IsAnonymous bool     `json:"is_anonymous"`
}

// UpdateProblemRequest edits an existing problem.
type UpdateProblemRequest struct {
	ProblemID   int64    `json:"-"`
	ActorID     int64    `json:"-"`
	Title       string   `json:"title" validate:"required,min=10,max=200"`
	Description string   `json:"description" validate:"required,min=20,max=5000"`
	Category    string   `json:"category" validate:"required"`
	Tags        []string `json:"tags"`
}

// ListProblemsRequest filters and paginates the problem feed.
type ListProblemsRequest struct {
	Category   string
	Status     string
	Tag        string
	Search     string
	Sort       string
	Pagination models.PaginationParams
}

// ProblemService owns problem lifecycle and tag aggregation.
type ProblemService interface {
	CreateProblem(ctx context.Context, req *CreateProblemRequest) (*models.Problem, error)
	GetProblem(ctx context.Context, problemID int64, viewerID *int64) (*models.Problem, error)
	ListProblems(ctx context.Context, req *ListProblemsRequest) (*models.PaginatedResponse[*models.Problem], error)
	ListUserProblems(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Problem], error)
	UpdateProblem(ctx context.Context, req *UpdateProblemRequest) (*models.Problem, error)
	DeleteProblem(ctx context.Context, problemID, actorID int64) error
	CloseProblem(ctx context.Context, problemID, actorID int64) error

	PopularTags(ctx context.Context, limit int) ([]repositories.TagCount, error)
	TagsByCategory(ctx context.Context, category string) ([]repositories.TagCount, error)
	SearchTags(ctx context.Context, query string, limit int) ([]repositories.TagCount, error)
}

// ===============================
// AUTH SERVICE
// ===============================

// RegisterRequest creates a new account.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,min=2,max=50"`
	LastName  string `json:"last_name" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the issued token and the account it belongs to.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// UpdateProfileRequest edits the caller's own profile.
type UpdateProfileRequest struct {
	UserID    int64  `json:"-"`
	FirstName string `json:"first_name" validate:"required,min=2,max=50"`
	LastName  string `json:"last_name" validate:"required,min=2,max=50"`
	Phone     string `json:"phone" validate:"required"`
}

// ChangePasswordRequest rotates the caller's password.
type ChangePasswordRequest struct {
	UserID      int64  `json:"-"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ResetPasswordRequest completes a forgot-password flow.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// AuthService owns registration, login, and account self-management.
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	GetMe(ctx context.Context, userID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*models.User, error)
	ChangePassword(ctx context.Context, req *ChangePasswordRequest) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req *ResetPasswordRequest) error
	UploadAvatar(ctx context.Context, userID int64, file io.Reader, filename string) (string, error)
}

// ===============================
// COLLABORATOR INTERFACES
// ===============================

// EmailService is the outbound-message sender.
type EmailService interface {
	Send(ctx context.Context, to, subject, body string) error
}

// FileService stores uploaded files and returns their public URL.
type FileService interface {
	Upload(ctx context.Context, file io.Reader, filename string) (string, error)
}

package models

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ===============================
// ENUMS & CONSTANTS
// ===============================

// Problem categories
const (
	CategoryHealth     = "health"
	CategoryFinance    = "finance"
	CategoryEducation  = "education"
	CategoryTechnology = "technology"
	CategoryHousing    = "housing"
	CategoryTransport  = "transport"
	CategoryWork       = "work"
	CategoryPersonal   = "personal"
	CategoryOther      = "other"
)

// Problem statuses
const (
	ProblemStatusOpen   = "open"
	ProblemStatusSolved = "solved"
	ProblemStatusClosed = "closed"
)

// Notification kinds
const (
	NotificationKindComment  = "comment"
	NotificationKindReply    = "reply"
	NotificationKindLike     = "like"
	NotificationKindSolution = "solution"
	NotificationKindSystem   = "system"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Tag constraints
const (
	MaxTagsPerProblem = 5
	MaxTagLength      = 30
)

// ValidCategories lists every accepted problem category.
var ValidCategories = []string{
	CategoryHealth, CategoryFinance, CategoryEducation, CategoryTechnology,
	CategoryHousing, CategoryTransport, CategoryWork, CategoryPersonal,
	CategoryOther,
}

// ===============================
// CORE ENTITIES
// ===============================

// User represents a registered account.
type User struct {
	ID                   int64      `json:"id" db:"id"`
	FirstName            string     `json:"first_name" db:"first_name" validate:"required,min=2,max=50"`
	LastName             string     `json:"last_name" db:"last_name" validate:"required,min=2,max=50"`
	Email                string     `json:"email" db:"email" validate:"required,email"`
	Phone                string     `json:"phone" db:"phone" validate:"required"`
	PasswordHash         string     `json:"-" db:"password_hash"`
	Role                 string     `json:"role" db:"role"`
	AvatarURL            *string    `json:"avatar_url,omitempty" db:"avatar_url"`
	EmailVerified        bool       `json:"email_verified" db:"email_verified"`
	IsActive             bool       `json:"is_active" db:"is_active"`
	PasswordResetToken   *string    `json:"-" db:"password_reset_token"`
	PasswordResetExpires *time.Time `json:"-" db:"password_reset_expires"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Public returns the externally visible identity of the user.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.AvatarURL,
	}
}

// PublicUser is the author payload embedded in problems and comments.
type PublicUser struct {
	ID        int64   `json:"id,omitempty"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	AvatarURL *string `json:"avatar_url"`
}

// AnonymousUser is the fixed placeholder identity used when a problem or
// comment is anonymous and the viewer is not its author. It carries no real
// user id, name, or avatar.
func AnonymousUser() *PublicUser {
	return &PublicUser{
		ID:        0,
		FirstName: "Anonymous",
		LastName:  "User",
		AvatarURL: nil,
	}
}

// Problem is the root content entity users post and discuss.
type Problem struct {
	ID                int64       `json:"id" db:"id"`
	UserID            int64       `json:"user_id,omitempty" db:"user_id"`
	Title             string      `json:"title" db:"title" validate:"required,min=10,max=200"`
	Description       string      `json:"description" db:"description" validate:"required,min=20,max=5000"`
	Category          string      `json:"category" db:"category" validate:"required"`
	Tags              StringArray `json:"tags" db:"tags"`
	IsAnonymous       bool        `json:"is_anonymous" db:"is_anonymous"`
	Status            string      `json:"status" db:"status"`
	AcceptedCommentID *int64      `json:"accepted_comment_id" db:"accepted_comment_id"`
	ViewCount         int         `json:"view_count" db:"view_count"`
	CommentCount      int         `json:"comment_count" db:"comment_count"`
	IsActive          bool        `json:"is_active" db:"is_active"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`

	// Enriched fields (not stored on the problems row)
	Author *PublicUser `json:"author,omitempty" db:"-"`
}

// IsOwnedBy reports whether the given user authored this problem.
func (p *Problem) IsOwnedBy(userID int64) bool { return p.UserID == userID }

// Comment is a response to a problem, optionally a reply to a top-level
// comment (one level deep, enforced at creation).
type Comment struct {
	ID              int64     `json:"id" db:"id"`
	ProblemID       int64     `json:"problem_id" db:"problem_id"`
	UserID          int64     `json:"user_id,omitempty" db:"user_id"`
	Content         string    `json:"content" db:"content" validate:"required,min=5,max=2000"`
	IsAnonymous     bool      `json:"is_anonymous" db:"is_anonymous"`
	ParentCommentID *int64    `json:"parent_comment_id" db:"parent_comment_id"`
	LikeCount       int       `json:"like_count" db:"like_count"`
	IsSolution      bool      `json:"is_solution" db:"is_solution"`
	ReplyCount      int       `json:"reply_count" db:"reply_count"`
	IsEdited        bool      `json:"is_edited" db:"is_edited"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`

	// Enriched fields
	Author       *PublicUser `json:"author,omitempty" db:"-"`
	Replies      []*Comment  `json:"replies,omitempty" db:"-"`
	LikedByUser  bool        `json:"liked_by_user" db:"-"`
}

// IsReply reports whether this comment is a reply to another comment.
func (c *Comment) IsReply() bool { return c.ParentCommentID != nil }

// IsOwnedBy reports whether the given user authored this comment.
func (c *Comment) IsOwnedBy(userID int64) bool { return c.UserID == userID }

// Notification is a pull-only inbox record created by the fan-out handler.
type Notification struct {
	ID          int64     `json:"id" db:"id"`
	RecipientID int64     `json:"recipient_id" db:"recipient_id"`
	SenderID    *int64    `json:"sender_id" db:"sender_id"`
	Kind        string    `json:"kind" db:"kind"`
	Message     string    `json:"message" db:"message"`
	Link        string    `json:"link" db:"link"`
	IsRead      bool      `json:"is_read" db:"is_read"`
	ProblemID   *int64    `json:"problem_id" db:"problem_id"`
	CommentID   *int64    `json:"comment_id" db:"comment_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ValidNotificationKind reports whether the kind is one of the known values.
func ValidNotificationKind(kind string) bool {
	switch kind {
	case NotificationKindComment, NotificationKindReply, NotificationKindLike,
		NotificationKindSolution, NotificationKindSystem:
		return true
	}
	return false
}

// ===============================
// PAGINATION
// ===============================

// PaginationParams carries offset pagination inputs.
type PaginationParams struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps pagination inputs to sane bounds.
func (p *PaginationParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
}

// Offset returns the row offset for the current page.
func (p PaginationParams) Offset() int { return (p.Page - 1) * p.Limit }

// PaginationMeta describes the page window of a paginated response.
type PaginationMeta struct {
	CurrentPage  int   `json:"current_page"`
	ItemsPerPage int   `json:"items_per_page"`
	TotalItems   int64 `json:"total_items"`
	TotalPages   int   `json:"total_pages"`
	HasNext      bool  `json:"has_next"`
	HasPrev      bool  `json:"has_prev"`
}

// PaginatedResponse wraps a page of items with its pagination metadata.
type PaginatedResponse[T any] struct {
	Data       []T            `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewPaginationMeta builds metadata from params and a total row count.
func NewPaginationMeta(params PaginationParams, total int64) PaginationMeta {
	totalPages := int((total + int64(params.Limit) - 1) / int64(params.Limit))
	return PaginationMeta{
		CurrentPage:  params.Page,
		ItemsPerPage: params.Limit,
		TotalItems:   total,
		TotalPages:   totalPages,
		HasNext:      params.Page < totalPages,
		HasPrev:      params.Page > 1,
	}
}

// ===============================
// TAGS
// ===============================

// StringArray maps a PostgreSQL text[] column.
type StringArray []string

// Scan implements sql.Scanner.
func (a *StringArray) Scan(src interface{}) error {
	return pq.Array((*[]string)(a)).Scan(src)
}

// Value implements driver.Valuer.
func (a StringArray) Value() (driver.Value, error) {
	return pq.Array([]string(a)).Value()
}

// NormalizeTags lowercases, trims, deduplicates, and bounds a tag list.
// Tags longer than MaxTagLength are rejected; the list is capped at
// MaxTagsPerProblem after deduplication.
func NormalizeTags(tags []string) ([]string, error) {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if len(t) > MaxTagLength {
			return nil, fmt.Errorf("tag %q exceeds %d characters", t, MaxTagLength)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > MaxTagsPerProblem {
		return nil, fmt.Errorf("at most %d tags are allowed", MaxTagsPerProblem)
	}
	return out, nil
}

// ValidCategory reports whether the category is one of the known values.
func ValidCategory(category string) bool {
	for _, c := range ValidCategories {
		if c == category {
			return true
		}
	}
	return false
}

// ===============================
// FIELD VALIDATION HELPERS
// ===============================

var phoneRegex = regexp.MustCompile(`^\+998\d{9}$`)

// ValidPhone reports whether the phone number matches the +998XXXXXXXXX form.
func ValidPhone(phone string) bool { return phoneRegex.MatchString(phone) }

// ValidPassword requires at least 6 characters including one digit.
func ValidPassword(password string) bool {
	if len(password) < 6 {
		return false
	}
	for _, r := range password {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"zudlik/internal/cache"
	"zudlik/internal/events"
	"zudlik/internal/models"
	"zudlik/internal/repositories"

	"go.uber.org/zap"
)

// NotificationServiceConfig tunes the notification service.
type NotificationServiceConfig struct {
	DefaultPageSize int           `json:"default_page_size"`
	UnreadCountTTL  time.Duration `json:"unread_count_ttl"`
}

// DefaultNotificationServiceConfig returns production defaults.
func DefaultNotificationServiceConfig() *NotificationServiceConfig {
	return &NotificationServiceConfig{
		DefaultPageSize: 20,
		UnreadCountTTL:  30 * time.Second,
	}
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	problemRepo      repositories.ProblemRepository
	commentRepo      repositories.CommentRepository
	cache            cache.Cache
	config           *NotificationServiceConfig
	logger           *zap.Logger
}

// NewNotificationService creates the notification service.
func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	problemRepo repositories.ProblemRepository,
	commentRepo repositories.CommentRepository,
	cacheInstance cache.Cache,
	config *NotificationServiceConfig,
	logger *zap.Logger,
) NotificationService {
	if config == nil {
		config = DefaultNotificationServiceConfig()
	}
	return &notificationService{
		notificationRepo: notificationRepo,
		problemRepo:      problemRepo,
		commentRepo:      commentRepo,
		cache:            cacheInstance,
		config:           config,
		logger:           logger,
	}
}

// ===============================
// INBOX OPERATIONS
// ===============================

func (s *notificationService) ListNotifications(ctx context.Context, recipientID int64, params models.PaginationParams) (*NotificationListResponse, error) {
	if params.Limit == 0 {
		params.Limit = s.config.DefaultPageSize
	}
	params.Normalize()

	notifications, total, err := s.notificationRepo.ListByRecipient(ctx, recipientID, params)
	if err != nil {
		return nil, NewInternalError("failed to load notifications", err)
	}
	unread, err := s.GetUnreadCount(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	return &NotificationListResponse{
		Data:        notifications,
		Pagination:  models.NewPaginationMeta(params, total),
		UnreadCount: unread,
	}, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, notificationID, recipientID int64) error {
	if err := s.notificationRepo.MarkAsRead(ctx, notificationID, recipientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewNotFoundError("notification")
		}
		return NewInternalError("failed to mark notification as read", err)
	}
	s.invalidateUnreadCount(ctx, recipientID)
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, recipientID int64) (int64, error) {
	n, err := s.notificationRepo.MarkAllAsRead(ctx, recipientID)
	if err != nil {
		return 0, NewInternalError("failed to mark notifications as read", err)
	}
	s.invalidateUnreadCount(ctx, recipientID)
	return n, nil
}

func (s *notificationService) DeleteNotification(ctx context.Context, notificationID, recipientID int64) error {
	if err := s.notificationRepo.Delete(ctx, notificationID, recipientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewNotFoundError("notification")
		}
		return NewInternalError("failed to delete notification", err)
	}
	s.invalidateUnreadCount(ctx, recipientID)
	return nil
}

func (s *notificationService) GetUnreadCount(ctx context.Context, recipientID int64) (int64, error) {
	key := unreadCountKey(recipientID)
	if data, ok := s.cache.Get(ctx, key); ok {
		if count, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			return count, nil
		}
	}

	count, err := s.notificationRepo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, NewInternalError("failed to count unread notifications", err)
	}
	if err := s.cache.Set(ctx, key, []byte(strconv.FormatInt(count, 10)), s.config.UnreadCountTTL); err != nil {
		s.logger.Warn("unread count cache write failed", zap.Error(err))
	}
	return count, nil
}

func (s *notificationService) invalidateUnreadCount(ctx context.Context, recipientID int64) {
	if err := s.cache.Delete(ctx, unreadCountKey(recipientID)); err != nil {
		s.logger.Warn("unread count cache invalidation failed",
			zap.Int64("recipient_id", recipientID),
			zap.Error(err),
		)
	}
}

func unreadCountKey(recipientID int64) string {
	return fmt.Sprintf("notifications:unread:%d", recipientID)
}

// ===============================
// FAN-OUT EVENT HANDLERS
// ===============================

// Subscribe registers the notification fan-out handlers on the bus. Fan-out
// is best-effort: every failure is logged by the bus and never reaches the
// publisher.
func (s *notificationService) Subscribe(bus events.Bus) {
	bus.Subscribe(events.TypeCommentCreated,
		events.NewHandlerFunc("notification_fanout_comment", s.handleCommentCreated))
	bus.Subscribe(events.TypeCommentLiked,
		events.NewHandlerFunc("notification_fanout_like", s.handleCommentLiked))
	bus.Subscribe(events.TypeProblemSolved,
		events.NewHandlerFunc("notification_fanout_solution", s.handleProblemSolved))
}

// handleCommentCreated notifies the problem author for a top-level comment
// and the parent comment's author for a reply.
func (s *notificationService) handleCommentCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.CommentCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	var recipientID int64
	var kind, message string

	if e.ParentCommentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *e.ParentCommentID)
		if err != nil {
			return fmt.Errorf("load parent comment %d: %w", *e.ParentCommentID, err)
		}
		recipientID = parent.UserID
		kind = models.NotificationKindReply
		message = "Someone replied to your comment"
	} else {
		problem, err := s.problemRepo.GetByID(ctx, e.ProblemID)
		if err != nil {
			return fmt.Errorf("load problem %d: %w", e.ProblemID, err)
		}
		recipientID = problem.UserID
		kind = models.NotificationKindComment
		message = "Your problem received a new comment"
	}

	return s.createNotification(ctx, &models.Notification{
		RecipientID: recipientID,
		SenderID:    &e.AuthorID,
		Kind:        kind,
		Message:     message,
		Link:        problemLink(e.ProblemID),
		ProblemID:   &e.ProblemID,
		CommentID:   &e.CommentID,
	})
}

func (s *notificationService) handleCommentLiked(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.CommentLikedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	return s.createNotification(ctx, &models.Notification{
		RecipientID: e.AuthorID,
		SenderID:    &e.LikerID,
		Kind:        models.NotificationKindLike,
		Message:     "Someone liked your comment",
		Link:        problemLink(e.ProblemID),
		ProblemID:   &e.ProblemID,
		CommentID:   &e.CommentID,
	})
}

func (s *notificationService) handleProblemSolved(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.ProblemSolvedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	return s.createNotification(ctx, &models.Notification{
		RecipientID: e.CommentAuthorID,
		SenderID:    &e.ProblemAuthorID,
		Kind:        models.NotificationKindSolution,
		Message:     "Your comment was accepted as the solution",
		Link:        problemLink(e.ProblemID),
		ProblemID:   &e.ProblemID,
		CommentID:   &e.CommentID,
	})
}

// createNotification persists a record unless it would notify its own
// sender.
func (s *notificationService) createNotification(ctx context.Context, n *models.Notification) error {
	if n.SenderID != nil && *n.SenderID == n.RecipientID {
		return nil
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("create %s notification for user %d: %w", n.Kind, n.RecipientID, err)
	}
	s.invalidateUnreadCount(ctx, n.RecipientID)

	s.logger.Debug("notification created",
		zap.Int64("recipient_id", n.RecipientID),
		zap.String("kind", n.Kind),
	)
	return nil
}

func problemLink(problemID int64) string {
	return fmt.Sprintf("/problems/%d", problemID)
}

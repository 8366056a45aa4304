package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"zudlik/internal/cache"
	"zudlik/internal/events"
	"zudlik/internal/models"
	"zudlik/internal/repositories"
	"zudlik/internal/validation"

	"go.uber.org/zap"
)

// CommentServiceConfig tunes the comment service.
type CommentServiceConfig struct {
	DefaultPageSize int           `json:"default_page_size"`
	MaxPageSize     int           `json:"max_page_size"`
	ThreadCacheTTL  time.Duration `json:"thread_cache_ttl"`
}

// DefaultCommentServiceConfig returns production defaults.
func DefaultCommentServiceConfig() *CommentServiceConfig {
	return &CommentServiceConfig{
		DefaultPageSize: 10,
		MaxPageSize:     100,
		ThreadCacheTTL:  2 * time.Minute,
	}
}

type commentService struct {
	commentRepo repositories.CommentRepository
	problemRepo repositories.ProblemRepository
	userRepo    repositories.UserRepository
	cache       cache.Cache
	bus         events.Bus
	config      *CommentServiceConfig
	logger      *zap.Logger
}

// NewCommentService creates the comment service.
func NewCommentService(
	commentRepo repositories.CommentRepository,
	problemRepo repositories.ProblemRepository,
	userRepo repositories.UserRepository,
	cacheInstance cache.Cache,
	bus events.Bus,
	config *CommentServiceConfig,
	logger *zap.Logger,
) CommentService {
	if config == nil {
		config = DefaultCommentServiceConfig()
	}
	return &commentService{
		commentRepo: commentRepo,
		problemRepo: problemRepo,
		userRepo:    userRepo,
		cache:       cacheInstance,
		bus:         bus,
		config:      config,
		logger:      logger,
	}
}

// ===============================
// CREATE
// ===============================

func (s *commentService) CreateComment(ctx context.Context, req *CreateCommentRequest) (*models.Comment, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := validation.Struct(req); err != nil {
		return nil, NewValidationError("comment must be between 5 and 2000 characters", err)
	}

	problem, err := s.getActiveProblem(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}

	if req.ParentCommentID != nil {
		parent, err := s.getActiveComment(ctx, *req.ParentCommentID)
		if err != nil {
			return nil, err
		}
		if parent.ProblemID != problem.ID {
			return nil, NewValidationError("parent comment belongs to a different problem", nil)
		}
		// Threads are exactly one level deep.
		if parent.IsReply() {
			return nil, NewValidationError("replies to replies are not allowed", nil)
		}
	}

	comment := &models.Comment{
		ProblemID:       problem.ID,
		UserID:          req.UserID,
		Content:         req.Content,
		IsAnonymous:     req.IsAnonymous,
		ParentCommentID: req.ParentCommentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, NewInternalError("failed to create comment", err)
	}

	// Counter maintenance and notification fan-out live in the event
	// handlers. Their failure never fails the request.
	s.publish(ctx, events.NewCommentCreatedEvent(
		comment.ID, comment.ProblemID, comment.UserID, comment.ParentCommentID))
	s.bumpThreadVersion(ctx, problem.ID)

	s.logger.Info("comment created",
		zap.Int64("comment_id", comment.ID),
		zap.Int64("problem_id", comment.ProblemID),
		zap.Int64("user_id", comment.UserID),
		zap.Bool("is_reply", comment.IsReply()),
	)

	s.enrichAuthors(ctx, []*models.Comment{comment})
	s.maskAnonymous([]*models.Comment{comment}, &req.UserID)
	return comment, nil
}

// ===============================
// THREAD ASSEMBLY
// ===============================

func (s *commentService) GetThread(ctx context.Context, req *GetThreadRequest) (*models.PaginatedResponse[*models.Comment], error) {
	if req.Pagination.Limit == 0 {
		req.Pagination.Limit = s.config.DefaultPageSize
	}
	req.Pagination.Normalize()
	if req.Pagination.Limit > s.config.MaxPageSize {
		req.Pagination.Limit = s.config.MaxPageSize
	}

	if _, err := s.getActiveProblem(ctx, req.ProblemID); err != nil {
		return nil, err
	}

	page, err := s.loadThreadPage(ctx, req.ProblemID, req.Pagination)
	if err != nil {
		return nil, err
	}

	// Viewer-specific decoration happens after the cacheable load.
	all := flattenThread(page.Data)
	if req.ViewerID != nil {
		s.markLikedBy(ctx, all, *req.ViewerID)
	}
	s.maskThread(page.Data, req.ViewerID)
	return page, nil
}

// loadThreadPage assembles (or re-reads from cache) one page of the
// two-level thread with real author identities. The cache key carries a
// per-problem version that every mutation bumps.
func (s *commentService) loadThreadPage(ctx context.Context, problemID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Comment], error) {
	key := s.threadCacheKey(ctx, problemID, params)
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached models.PaginatedResponse[*models.Comment]
		if err := cache.DecodeJSON(data, &cached); err == nil {
			return &cached, nil
		}
	}

	topLevel, err := s.commentRepo.GetTopLevelByProblem(ctx, problemID, params.Limit, params.Offset())
	if err != nil {
		return nil, NewInternalError("failed to load comments", err)
	}
	total, err := s.commentRepo.CountTopLevelByProblem(ctx, problemID)
	if err != nil {
		return nil, NewInternalError("failed to count comments", err)
	}

	parentIDs := make([]int64, 0, len(topLevel))
	for _, c := range topLevel {
		parentIDs = append(parentIDs, c.ID)
	}
	replies, err := s.commentRepo.GetRepliesForParents(ctx, parentIDs)
	if err != nil {
		return nil, NewInternalError("failed to load replies", err)
	}
	for _, c := range topLevel {
		c.Replies = replies[c.ID]
	}

	s.enrichAuthors(ctx, flattenThread(topLevel))

	page := &models.PaginatedResponse[*models.Comment]{
		Data:       topLevel,
		Pagination: models.NewPaginationMeta(params, total),
	}

	if data, err := cache.EncodeJSON(page); err == nil {
		if err := s.cache.Set(ctx, key, data, s.config.ThreadCacheTTL); err != nil {
			s.logger.Warn("thread cache write failed", zap.Error(err))
		}
	}
	return page, nil
}

// ===============================
// UPDATE / DELETE
// ===============================

func (s *commentService) UpdateComment(ctx context.Context, req *UpdateCommentRequest) (*models.Comment, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := validation.Struct(req); err != nil {
		return nil, NewValidationError("comment must be between 5 and 2000 characters", err)
	}

	comment, err := s.getActiveComment(ctx, req.CommentID)
	if err != nil {
		return nil, err
	}
	if !comment.IsOwnedBy(req.UserID) {
		return nil, NewForbiddenError("only the author can edit this comment")
	}

	comment.Content = req.Content
	comment.IsEdited = true
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, NewInternalError("failed to update comment", err)
	}
	s.bumpThreadVersion(ctx, comment.ProblemID)

	s.enrichAuthors(ctx, []*models.Comment{comment})
	s.maskAnonymous([]*models.Comment{comment}, &req.UserID)
	return comment, nil
}

func (s *commentService) DeleteComment(ctx context.Context, commentID, actorID int64) error {
	comment, err := s.getActiveComment(ctx, commentID)
	if err != nil {
		return err
	}

	if !comment.IsOwnedBy(actorID) {
		actor, err := s.userRepo.GetByID(ctx, actorID)
		if err != nil || !actor.IsAdmin() {
			return NewForbiddenError("only the author or an admin can delete this comment")
		}
	}

	if err := s.commentRepo.SoftDelete(ctx, commentID); err != nil {
		return NewInternalError("failed to delete comment", err)
	}

	// Deleting an accepted solution deliberately leaves the problem's
	// acceptance in place as a historical record.
	s.publish(ctx, events.NewCommentDeletedEvent(
		comment.ID, comment.ProblemID, comment.ParentCommentID))
	s.bumpThreadVersion(ctx, comment.ProblemID)

	s.logger.Info("comment deleted",
		zap.Int64("comment_id", commentID),
		zap.Int64("actor_id", actorID),
	)
	return nil
}

// ===============================
// LIKE TOGGLE
// ===============================

func (s *commentService) ToggleLike(ctx context.Context, commentID, userID int64) (*LikeResult, error) {
	comment, err := s.getActiveComment(ctx, commentID)
	if err != nil {
		return nil, err
	}

	liked, likeCount, err := s.commentRepo.ToggleLike(ctx, commentID, userID)
	if err != nil {
		return nil, NewInternalError("failed to toggle like", err)
	}
	s.bumpThreadVersion(ctx, comment.ProblemID)

	if liked {
		s.publish(ctx, events.NewCommentLikedEvent(
			comment.ID, comment.ProblemID, comment.UserID, userID))
	}
	return &LikeResult{Liked: liked, LikeCount: likeCount}, nil
}

// ===============================
// SOLUTION DESIGNATION
// ===============================

func (s *commentService) DesignateSolution(ctx context.Context, problemID, commentID, actorID int64) error {
	problem, err := s.getActiveProblem(ctx, problemID)
	if err != nil {
		return err
	}
	if !problem.IsOwnedBy(actorID) {
		return NewForbiddenError("only the problem author can designate a solution")
	}

	comment, err := s.getActiveComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.ProblemID != problemID {
		return NewValidationError("comment does not belong to this problem", nil)
	}

	if err := s.commentRepo.DesignateSolution(ctx, problemID, commentID); err != nil {
		if s.isNoRows(err) {
			return NewNotFoundError("comment")
		}
		return NewInternalError("failed to designate solution", err)
	}

	s.publish(ctx, events.NewProblemSolvedEvent(
		problemID, commentID, comment.UserID, problem.UserID))
	s.bumpThreadVersion(ctx, problemID)

	s.logger.Info("solution designated",
		zap.Int64("problem_id", problemID),
		zap.Int64("comment_id", commentID),
	)
	return nil
}

// ===============================
// HELPERS
// ===============================

func (s *commentService) getActiveProblem(ctx context.Context, id int64) (*models.Problem, error) {
	problem, err := s.problemRepo.GetByID(ctx, id)
	if err != nil {
		if s.isNoRows(err) {
			return nil, NewNotFoundError("problem")
		}
		return nil, NewInternalError("failed to load problem", err)
	}
	if !problem.IsActive {
		return nil, NewNotFoundError("problem")
	}
	return problem, nil
}

func (s *commentService) getActiveComment(ctx context.Context, id int64) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		if s.isNoRows(err) {
			return nil, NewNotFoundError("comment")
		}
		return nil, NewInternalError("failed to load comment", err)
	}
	if !comment.IsActive {
		return nil, NewNotFoundError("comment")
	}
	return comment, nil
}

func (s *commentService) isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// publish dispatches a domain event, logging instead of failing.
func (s *commentService) publish(ctx context.Context, event events.Event) {
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}

// enrichAuthors attaches public author payloads in one batched lookup.
func (s *commentService) enrichAuthors(ctx context.Context, comments []*models.Comment) {
	ids := make([]int64, 0, len(comments))
	seen := make(map[int64]struct{}, len(comments))
	for _, c := range comments {
		if _, ok := seen[c.UserID]; !ok {
			seen[c.UserID] = struct{}{}
			ids = append(ids, c.UserID)
		}
	}

	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("author enrichment failed", zap.Error(err))
		return
	}
	for _, c := range comments {
		if u, ok := users[c.UserID]; ok {
			c.Author = u.Public()
		}
	}
}

// markLikedBy sets the viewer's liked flag on every comment in one query.
func (s *commentService) markLikedBy(ctx context.Context, comments []*models.Comment, viewerID int64) {
	ids := make([]int64, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	liked, err := s.commentRepo.GetLikedCommentIDs(ctx, viewerID, ids)
	if err != nil {
		s.logger.Warn("liked-flag enrichment failed", zap.Error(err))
		return
	}
	for _, c := range comments {
		c.LikedByUser = liked[c.ID]
	}
}

// maskThread applies anonymity masking to every comment and reply.
func (s *commentService) maskThread(topLevel []*models.Comment, viewerID *int64) {
	s.maskAnonymous(flattenThread(topLevel), viewerID)
}

// maskAnonymous replaces the author identity of anonymous comments with the
// fixed placeholder unless the viewer is the author. The real author id is
// removed from the payload entirely.
func (s *commentService) maskAnonymous(comments []*models.Comment, viewerID *int64) {
	for _, c := range comments {
		if !c.IsAnonymous {
			continue
		}
		if viewerID != nil && *viewerID == c.UserID {
			continue
		}
		c.UserID = 0
		c.Author = models.AnonymousUser()
	}
}

// flattenThread lists top-level comments and their replies as one slice.
func flattenThread(topLevel []*models.Comment) []*models.Comment {
	all := make([]*models.Comment, 0, len(topLevel)*2)
	for _, c := range topLevel {
		all = append(all, c)
		all = append(all, c.Replies...)
	}
	return all
}

// ===============================
// THREAD CACHE VERSIONING
// ===============================

func (s *commentService) threadCacheKey(ctx context.Context, problemID int64, params models.PaginationParams) string {
	version, err := s.cache.Increment(ctx, fmt.Sprintf("thread_ver:%d", problemID), 0, 24*time.Hour)
	if err != nil {
		version = 0
	}
	return fmt.Sprintf("thread:%d:v%d:p%d:l%d", problemID, version, params.Page, params.Limit)
}

// bumpThreadVersion invalidates every cached page of a problem's thread.
func (s *commentService) bumpThreadVersion(ctx context.Context, problemID int64) {
	if _, err := s.cache.Increment(ctx, fmt.Sprintf("thread_ver:%d", problemID), 1, 24*time.Hour); err != nil {
		s.logger.Warn("thread cache invalidation failed",
			zap.Int64("problem_id", problemID),
			zap.Error(err),
		)
	}
}

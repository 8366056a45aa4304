package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"zudlik/internal/models"
	"zudlik/internal/repositories"
	"zudlik/internal/validation"

	"go.uber.org/zap"
)

// ProblemServiceConfig tunes the problem service.
type ProblemServiceConfig struct {
	DefaultPageSize int `json:"default_page_size"`
	MaxPageSize     int `json:"max_page_size"`
	PopularTagLimit int `json:"popular_tag_limit"`
}

// DefaultProblemServiceConfig returns production defaults.
func DefaultProblemServiceConfig() *ProblemServiceConfig {
	return &ProblemServiceConfig{
		DefaultPageSize: 10,
		MaxPageSize:     100,
		PopularTagLimit: 20,
	}
}

type problemService struct {
	problemRepo repositories.ProblemRepository
	userRepo    repositories.UserRepository
	config      *ProblemServiceConfig
	logger      *zap.Logger
}

// NewProblemService creates the problem service.
func NewProblemService(
	problemRepo repositories.ProblemRepository,
	userRepo repositories.UserRepository,
	config *ProblemServiceConfig,
	logger *zap.Logger,
) ProblemService {
	if config == nil {
		config = DefaultProblemServiceConfig()
	}
	return &problemService{
		problemRepo: problemRepo,
		userRepo:    userRepo,
		config:      config,
		logger:      logger,
	}
}

func (s *problemService) CreateProblem(ctx context.Context, req *CreateProblemRequest) (*models.Problem, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := validation.Struct(req); err != nil {
		return nil, NewValidationError(validation.FirstError(err), err)
	}
	if !models.ValidCategory(req.Category) {
		return nil, NewValidationError("unknown category", nil)
	}
	tags, err := models.NormalizeTags(req.Tags)
	if err != nil {
		return nil, NewValidationError(err.Error(), err)
	}

	problem := &models.Problem{
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Tags:        tags,
		IsAnonymous: req.IsAnonymous,
	}
	if err := s.problemRepo.Create(ctx, problem); err != nil {
		return nil, NewInternalError("failed to create problem", err)
	}

	s.logger.Info("problem created",
		zap.Int64("problem_id", problem.ID),
		zap.Int64("user_id", problem.UserID),
		zap.String("category", problem.Category),
	)

	s.enrichAuthor(ctx, problem)
	s.maskAnonymous(problem, &req.UserID)
	return problem, nil
}

func (s *problemService) GetProblem(ctx context.Context, problemID int64, viewerID *int64) (*models.Problem, error) {
	problem, err := s.getActive(ctx, problemID)
	if err != nil {
		return nil, err
	}

	// View counting is an in-place bump; a failure is not worth failing the
	// read for.
	if err := s.problemRepo.IncrementViewCount(ctx, problemID); err != nil {
		s.logger.Warn("view count increment failed",
			zap.Int64("problem_id", problemID),
			zap.Error(err),
		)
	} else {
		problem.ViewCount++
	}

	s.enrichAuthor(ctx, problem)
	s.maskAnonymous(problem, viewerID)
	return problem, nil
}

func (s *problemService) ListProblems(ctx context.Context, req *ListProblemsRequest) (*models.PaginatedResponse[*models.Problem], error) {
	if req.Pagination.Limit == 0 {
		req.Pagination.Limit = s.config.DefaultPageSize
	}
	req.Pagination.Normalize()
	if req.Pagination.Limit > s.config.MaxPageSize {
		req.Pagination.Limit = s.config.MaxPageSize
	}
	if req.Category != "" && !models.ValidCategory(req.Category) {
		return nil, NewValidationError("unknown category", nil)
	}

	problems, total, err := s.problemRepo.List(ctx, repositories.ProblemFilter{
		Category:   req.Category,
		Status:     req.Status,
		Tag:        req.Tag,
		Search:     req.Search,
		Sort:       req.Sort,
		Pagination: req.Pagination,
	})
	if err != nil {
		return nil, NewInternalError("failed to list problems", err)
	}

	s.enrichAuthors(ctx, problems)
	for _, p := range problems {
		s.maskAnonymous(p, nil)
	}
	return &models.PaginatedResponse[*models.Problem]{
		Data:       problems,
		Pagination: models.NewPaginationMeta(req.Pagination, total),
	}, nil
}

func (s *problemService) ListUserProblems(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Problem], error) {
	if params.Limit == 0 {
		params.Limit = s.config.DefaultPageSize
	}
	params.Normalize()

	problems, total, err := s.problemRepo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, NewInternalError("failed to list user problems", err)
	}

	s.enrichAuthors(ctx, problems)
	return &models.PaginatedResponse[*models.Problem]{
		Data:       problems,
		Pagination: models.NewPaginationMeta(params, total),
	}, nil
}

func (s *problemService) UpdateProblem(ctx context.Context, req *UpdateProblemRequest) (*models.Problem, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := validation.Struct(req); err != nil {
		return nil, NewValidationError(validation.FirstError(err), err)
	}
	if !models.ValidCategory(req.Category) {
		return nil, NewValidationError("unknown category", nil)
	}
	tags, err := models.NormalizeTags(req.Tags)
	if err != nil {
		return nil, NewValidationError(err.Error(), err)
	}

	problem, err := s.getActive(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwnerOrAdmin(ctx, problem, req.ActorID, "edit"); err != nil {
		return nil, err
	}

	problem.Title = req.Title
	problem.Description = req.Description
	problem.Category = req.Category
	problem.Tags = tags
	if err := s.problemRepo.Update(ctx, problem); err != nil {
		return nil, NewInternalError("failed to update problem", err)
	}

	s.enrichAuthor(ctx, problem)
	s.maskAnonymous(problem, &req.ActorID)
	return problem, nil
}

func (s *problemService) DeleteProblem(ctx context.Context, problemID, actorID int64) error {
	problem, err := s.getActive(ctx, problemID)
	if err != nil {
		return err
	}
	if err := s.authorizeOwnerOrAdmin(ctx, problem, actorID, "delete"); err != nil {
		return err
	}

	if err := s.problemRepo.SoftDelete(ctx, problemID); err != nil {
		return NewInternalError("failed to delete problem", err)
	}
	s.logger.Info("problem deleted",
		zap.Int64("problem_id", problemID),
		zap.Int64("actor_id", actorID),
	)
	return nil
}

func (s *problemService) CloseProblem(ctx context.Context, problemID, actorID int64) error {
	problem, err := s.getActive(ctx, problemID)
	if err != nil {
		return err
	}
	if !problem.IsOwnedBy(actorID) {
		return NewForbiddenError("only the problem author can close it")
	}
	if problem.Status == models.ProblemStatusClosed {
		return NewBusinessError("problem is already closed", "ALREADY_CLOSED")
	}

	if err := s.problemRepo.SetStatus(ctx, problemID, models.ProblemStatusClosed); err != nil {
		return NewInternalError("failed to close problem", err)
	}
	return nil
}

// ===============================
// TAGS
// ===============================

func (s *problemService) PopularTags(ctx context.Context, limit int) ([]repositories.TagCount, error) {
	if limit <= 0 || limit > s.config.PopularTagLimit {
		limit = s.config.PopularTagLimit
	}
	tags, err := s.problemRepo.PopularTags(ctx, limit)
	if err != nil {
		return nil, NewInternalError("failed to load popular tags", err)
	}
	return tags, nil
}

func (s *problemService) TagsByCategory(ctx context.Context, category string) ([]repositories.TagCount, error) {
	if !models.ValidCategory(category) {
		return nil, NewValidationError("unknown category", nil)
	}
	tags, err := s.problemRepo.TagsByCategory(ctx, category)
	if err != nil {
		return nil, NewInternalError("failed to load category tags", err)
	}
	return tags, nil
}

func (s *problemService) SearchTags(ctx context.Context, query string, limit int) ([]repositories.TagCount, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, NewValidationError("search query is required", nil)
	}
	if limit <= 0 || limit > s.config.PopularTagLimit {
		limit = s.config.PopularTagLimit
	}
	tags, err := s.problemRepo.SearchTags(ctx, query, limit)
	if err != nil {
		return nil, NewInternalError("failed to search tags", err)
	}
	return tags, nil
}

// ===============================
// HELPERS
// ===============================

func (s *problemService) getActive(ctx context.Context, id int64) (*models.Problem, error) {
	problem, err := s.problemRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError("problem")
		}
		return nil, NewInternalError("failed to load problem", err)
	}
	if !problem.IsActive {
		return nil, NewNotFoundError("problem")
	}
	return problem, nil
}

func (s *problemService) authorizeOwnerOrAdmin(ctx context.Context, problem *models.Problem, actorID int64, action string) error {
	if problem.IsOwnedBy(actorID) {
		return nil
	}
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil || !actor.IsAdmin() {
		return NewForbiddenError("only the author or an admin can " + action + " this problem")
	}
	return nil
}

func (s *problemService) enrichAuthor(ctx context.Context, problem *models.Problem) {
	s.enrichAuthors(ctx, []*models.Problem{problem})
}

func (s *problemService) enrichAuthors(ctx context.Context, problems []*models.Problem) {
	ids := make([]int64, 0, len(problems))
	seen := make(map[int64]struct{}, len(problems))
	for _, p := range problems {
		if _, ok := seen[p.UserID]; !ok {
			seen[p.UserID] = struct{}{}
			ids = append(ids, p.UserID)
		}
	}

	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("author enrichment failed", zap.Error(err))
		return
	}
	for _, p := range problems {
		if u, ok := users[p.UserID]; ok {
			p.Author = u.Public()
		}
	}
}

// maskAnonymous hides the author identity of an anonymous problem from
// everyone but its author.
func (s *problemService) maskAnonymous(problem *models.Problem, viewerID *int64) {
	if !problem.IsAnonymous {
		return
	}
	if viewerID != nil && *viewerID == problem.UserID {
		return
	}
	problem.UserID = 0
	problem.Author = models.AnonymousUser()
}

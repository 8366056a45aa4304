package problems

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"zudlik/internal/middleware"
	"zudlik/internal/models"
	"zudlik/internal/response"
	"zudlik/internal/services"

	"go.uber.org/zap"
)

// ProblemController handles the problem lifecycle endpoints.
type ProblemController struct {
	problems services.ProblemService
	logger   *zap.Logger
	builder  *response.Builder
}

// NewProblemController creates the problem controller.
func NewProblemController(problems services.ProblemService, logger *zap.Logger, builder *response.Builder) *ProblemController {
	return &ProblemController{
		problems: problems,
		logger:   logger,
		builder:  builder,
	}
}

// CreateProblem handles POST /api/v1/problems.
func (c *ProblemController) CreateProblem(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}

	var req services.CreateProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.builder.WriteValidationError(w, r, "invalid request body")
		return
	}
	req.UserID = authCtx.UserID

	problem, err := c.problems.CreateProblem(r.Context(), &req)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteCreated(w, r, "problem created", problem)
}

// GetProblem handles GET /api/v1/problems/{id}.
func (c *ProblemController) GetProblem(w http.ResponseWriter, r *http.Request) {
	problemID, err := extractIDFromPath(r.URL.Path, 2)
	if err != nil {
		c.builder.WriteValidationError(w, r, "invalid problem id")
		return
	}

	var viewerID *int64
	if authCtx, ok := middleware.GetAuthContext(r.Context()); ok {
		viewerID = &authCtx.UserID
	}

	problem, err := c.problems.GetProblem(r.Context(), problemID, viewerID)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "problem loaded", problem)
}

// ListProblems handles GET /api/v1/problems.
func (c *ProblemController) ListProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &services.ListProblemsRequest{
		Category:   q.Get("category"),
		Status:     q.Get("status"),
		Tag:        q.Get("tag"),
		Search:     q.Get("search"),
		Sort:       q.Get("sort"),
		Pagination: parsePagination(r),
	}

	page, err := c.problems.ListProblems(r.Context(), req)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WritePaginated(w, r, "problems loaded", page.Data, page.Pagination)
}

// ListMyProblems handles GET /api/v1/problems/my.
func (c *ProblemController) ListMyProblems(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}

	page, err := c.problems.ListUserProblems(r.Context(), authCtx.UserID, parsePagination(r))
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WritePaginated(w, r, "problems loaded", page.Data, page.Pagination)
}

// UpdateProblem handles PUT /api/v1/problems/{id}.
func (c *ProblemController) UpdateProblem(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}
	problemID, err := extractIDFromPath(r.URL.Path, 2)
	if err != nil {
		c.builder.WriteValidationError(w, r, "invalid problem id")
		return
	}

	var req services.UpdateProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.builder.WriteValidationError(w, r, "invalid request body")
		return
	}
	req.ProblemID = problemID
	req.ActorID = authCtx.UserID

	problem, err := c.problems.UpdateProblem(r.Context(), &req)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "problem updated", problem)
}

// DeleteProblem handles DELETE /api/v1/problems/{id}.
func (c *ProblemController) DeleteProblem(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}
	problemID, err := extractIDFromPath(r.URL.Path, 2)
	if err != nil {
		c.builder.WriteValidationError(w, r, "invalid problem id")
		return
	}

	if err := c.problems.DeleteProblem(r.Context(), problemID, authCtx.UserID); err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteNoContent(w)
}

// CloseProblem handles POST /api/v1/problems/{id}/close.
func (c *ProblemController) CloseProblem(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}
	problemID, err := extractIDFromPath(r.URL.Path, 2)
	if err != nil {
		c.builder.WriteValidationError(w, r, "invalid problem id")
		return
	}

	if err := c.problems.CloseProblem(r.Context(), problemID, authCtx.UserID); err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "problem closed", nil)
}

func extractIDFromPath(path string, position int) (int64, error) {
	trimmed := strings.TrimPrefix(path, "/api/v1/")
	segments := strings.Split(strings.Trim(trimmed, "/"), "/")
	if position < 1 || position > len(segments) {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(segments[position-1], 10, 64)
}

func parsePagination(r *http.Request) models.PaginationParams {
	params := models.PaginationParams{}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		params.Page = page
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		params.Limit = limit
	}
	return params
}

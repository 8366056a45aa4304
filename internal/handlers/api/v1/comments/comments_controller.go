package comments

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

// CommentController handles the comment endpoints: creation under a problem,
// thread reads, edits, deletion, the like toggle, and solution designation.
type CommentController struct {
	comments services.CommentService
	logger   *zap.Logger
	builder  *response.Builder
}

// NewCommentController creates the comment controller.
func NewCommentController(comments services.CommentService, logger *zap.Logger, builder *response.Builder) *CommentController {
	return &CommentController{
		comments: comments,
		logger:   logger,
		builder:  builder,
	}
}

// CreateComment handles POST /api/v1/problems/{id}/comments.
func (c *CommentController) CreateComment(w http.ResponseWriter, r *http.Request) {
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

	var req services.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.builder.WriteValidationError(w, r, "invalid request body")
		return
	}
	req.ProblemID = problemID
	req.UserID = authCtx.UserID

	comment, err := c.comments.CreateComment(r.Context(), &req)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteCreated(w, r, "comment created", comment)
}

// GetThread handles GET /api/v1/problems/{id}/comments.
func (c *CommentController) GetThread(w http.ResponseWriter, r *http.Request) {
	problemID, err := extractIDFromPath(r.URL.Path, 2)
	if err != nil {
		c.builder.WriteValidationError(w, r, "invalid problem id")
		return
	}

	req := &services.GetThreadRequest{
		ProblemID:  problemID,
		Pagination: parsePagination(r),
	}
	if authCtx, ok := middleware.GetAuthContext(r.Context()); ok {
		req.ViewerID = &authCtx.UserID
	}

	thread, err := c.comments.GetThread(r.Context(), req)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WritePaginated(w, r, "thread loaded", thread.Data, thread.Pagination)
}

// UpdateComment handles PUT /api/v1/comments/{id}.
func (c *CommentController) UpdateComment(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}
	commentID, err := extractIDFromPath(r.URL.Path, 2)
	if err != nil {
		c.builder.WriteValidationError(w, r, "invalid comment id")
		return
	}

	var req services.UpdateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.builder.WriteValidationError(w, r, "invalid request body")
		return
	}
	req.CommentID = commentID
	req.UserID = authCtx.UserID

	comment, err := c.comments.UpdateComment(r.Context(), &req)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "comment updated", comment)
}

// DeleteComment handles DELETE /api/v1/comments/{id}.
func (c *CommentController) DeleteComment(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}
	commentID, err := extractIDFromPath(r.URL.Path, 2)
	if err != nil {
		c.builder.WriteValidationError(w, r, "invalid comment id")
		return
	}

	if err := c.comments.DeleteComment(r.Context(), commentID, authCtx.UserID); err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteNoContent(w)
}

// ToggleLike handles POST /api/v1/comments/{id}/like.
func (c *CommentController) ToggleLike(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}
	commentID, err := extractIDFromPath(r.URL.Path, 2)
	if err != nil {
		c.builder.WriteValidationError(w, r, "invalid comment id")
		return
	}

	result, err := c.comments.ToggleLike(r.Context(), commentID, authCtx.UserID)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}

	message := "like removed"
	if result.Liked {
		message = "comment liked"
	}
	c.builder.WriteSuccess(w, r, message, result)
}

// DesignateSolution handles POST /api/v1/problems/{problemId}/solution/{commentId}.
func (c *CommentController) DesignateSolution(w http.ResponseWriter, r *http.Request) {
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
	commentID, err := extractIDFromPath(r.URL.Path, 4)
	if err != nil {
		c.builder.WriteValidationError(w, r, "invalid comment id")
		return
	}

	if err := c.comments.DesignateSolution(r.Context(), problemID, commentID, authCtx.UserID); err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "solution accepted", nil)
}

// extractIDFromPath pulls the numeric segment at the given position from an
// /api/v1/... path, counting from 1 after the /api/v1 prefix.
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

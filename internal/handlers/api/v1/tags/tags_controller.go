package tags

import (
	"net/http"
	"strconv"
	"strings"

	"zudlik/internal/models"
	"zudlik/internal/response"
	"zudlik/internal/services"

	"go.uber.org/zap"
)

// TagController handles tag discovery endpoints.
type TagController struct {
	problems services.ProblemService
	logger   *zap.Logger
	builder  *response.Builder
}

// NewTagController creates the tag controller.
func NewTagController(problems services.ProblemService, logger *zap.Logger, builder *response.Builder) *TagController {
	return &TagController{
		problems: problems,
		logger:   logger,
		builder:  builder,
	}
}

// PopularTags handles GET /api/v1/tags/popular.
func (c *TagController) PopularTags(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tags, err := c.problems.PopularTags(r.Context(), limit)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "popular tags loaded", tags)
}

// SearchTags handles GET /api/v1/tags/search.
func (c *TagController) SearchTags(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tags, err := c.problems.SearchTags(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "tags loaded", tags)
}

// TagsByCategory handles GET /api/v1/tags/category/{category}.
func (c *TagController) TagsByCategory(w http.ResponseWriter, r *http.Request) {
	category := pathSegment(r.URL.Path, 3)
	if category == "" {
		c.builder.WriteValidationError(w, r, "category is required")
		return
	}

	tags, err := c.problems.TagsByCategory(r.Context(), category)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "tags loaded", tags)
}

// TagProblems handles GET /api/v1/tags/{tag}/problems.
func (c *TagController) TagProblems(w http.ResponseWriter, r *http.Request) {
	tag := pathSegment(r.URL.Path, 2)
	if tag == "" {
		c.builder.WriteValidationError(w, r, "tag is required")
		return
	}

	q := r.URL.Query()
	req := &services.ListProblemsRequest{
		Tag:        tag,
		Status:     q.Get("status"),
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

// pathSegment returns the segment at the given position after the /api/v1
// prefix, counting from 1.
func pathSegment(path string, position int) string {
	trimmed := strings.TrimPrefix(path, "/api/v1/")
	segments := strings.Split(strings.Trim(trimmed, "/"), "/")
	if position < 1 || position > len(segments) {
		return ""
	}
	return segments[position-1]
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

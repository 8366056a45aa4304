package services

import (
	"testing"

	"zudlik/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProblem_AnonymousAuthorMasked(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)
	viewer := env.users.addUser("Bekzod", "Rashidov", models.RoleUser)
	problem := env.createProblem(t, author.ID, true)

	// Strangers and unauthenticated viewers get the placeholder.
	got, err := env.problemSvc.GetProblem(env.ctx, problem.ID, &viewer.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UserID)
	require.NotNil(t, got.Author)
	assert.Equal(t, "Anonymous", got.Author.FirstName)

	got, err = env.problemSvc.GetProblem(env.ctx, problem.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, got.UserID)

	// The author sees themselves.
	got, err = env.problemSvc.GetProblem(env.ctx, problem.ID, &author.ID)
	require.NoError(t, err)
	assert.Equal(t, author.ID, got.UserID)
	assert.Equal(t, "Aziz", got.Author.FirstName)
}

func TestGetProblem_BumpsViewCount(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)
	problem := env.createProblem(t, author.ID, false)

	for i := 0; i < 3; i++ {
		_, err := env.problemSvc.GetProblem(env.ctx, problem.ID, nil)
		require.NoError(t, err)
	}

	stored, err := env.problems.GetByID(env.ctx, problem.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ViewCount)
}

func TestCreateProblem_RejectsBadTagsAndCategory(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)

	_, err := env.problemSvc.CreateProblem(env.ctx, &CreateProblemRequest{
		UserID:      author.ID,
		Title:       "Valid title over ten chars",
		Description: "Valid description that is long enough to pass validation.",
		Category:    "astrology",
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = env.problemSvc.CreateProblem(env.ctx, &CreateProblemRequest{
		UserID:      author.ID,
		Title:       "Valid title over ten chars",
		Description: "Valid description that is long enough to pass validation.",
		Category:    models.CategoryOther,
		Tags:        []string{"a", "b", "c", "d", "e", "f"},
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestCloseProblem_AuthorOnlyAndIdempotencyGuard(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)
	stranger := env.users.addUser("Bekzod", "Rashidov", models.RoleUser)
	problem := env.createProblem(t, author.ID, false)

	err := env.problemSvc.CloseProblem(env.ctx, problem.ID, stranger.ID)
	require.Error(t, err)
	assert.True(t, IsForbiddenError(err))

	require.NoError(t, env.problemSvc.CloseProblem(env.ctx, problem.ID, author.ID))

	err = env.problemSvc.CloseProblem(env.ctx, problem.ID, author.ID)
	require.Error(t, err)
	svcErr := GetServiceError(err)
	require.NotNil(t, svcErr)
	assert.Equal(t, ErrTypeBusiness, svcErr.Type)
}

func TestDeleteProblem_AdminOverride(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)
	admin := env.users.addUser("Admin", "User", models.RoleAdmin)
	problem := env.createProblem(t, author.ID, false)

	require.NoError(t, env.problemSvc.DeleteProblem(env.ctx, problem.ID, admin.ID))

	_, err := env.problemSvc.GetProblem(env.ctx, problem.ID, nil)
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestListProblems_FiltersByTag(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)
	tagged := env.createProblem(t, author.ID, false) // tags: water, pressure

	_, err := env.problemSvc.CreateProblem(env.ctx, &CreateProblemRequest{
		UserID:      author.ID,
		Title:       "Bus route 52 keeps skipping stops",
		Description: "The morning bus drives past our stop without slowing down at all.",
		Category:    models.CategoryTransport,
		Tags:        []string{"bus"},
	})
	require.NoError(t, err)

	page, err := env.problemSvc.ListProblems(env.ctx, &ListProblemsRequest{Tag: "water"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, tagged.ID, page.Data[0].ID)
	assert.Equal(t, int64(1), page.Pagination.TotalItems)
}

func TestPopularTags_OrderedByUsage(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)
	env.createProblem(t, author.ID, false) // water, pressure
	env.createProblem(t, author.ID, false) // water, pressure

	_, err := env.problemSvc.CreateProblem(env.ctx, &CreateProblemRequest{
		UserID:      author.ID,
		Title:       "Bus route 52 keeps skipping stops",
		Description: "The morning bus drives past our stop without slowing down at all.",
		Category:    models.CategoryTransport,
		Tags:        []string{"bus", "water"},
	})
	require.NoError(t, err)

	tags, err := env.problemSvc.PopularTags(env.ctx, 2)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "water", tags[0].Tag)
	assert.Equal(t, int64(3), tags[0].Count)
}

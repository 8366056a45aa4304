package services

import (
	"testing"

	"zudlik/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListNotifications_PaginatesAndCountsUnread(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)
	problem := env.createProblem(t, author.ID, false)

	for i := 0; i < 3; i++ {
		commenter := env.users.addUser("Commenter", "User", models.RoleUser)
		env.createComment(t, problem.ID, commenter.ID, nil, false)
	}

	inbox, err := env.notificationSvc.ListNotifications(env.ctx, author.ID, models.PaginationParams{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, inbox.Data, 2)
	assert.Equal(t, int64(3), inbox.Pagination.TotalItems)
	assert.Equal(t, int64(3), inbox.UnreadCount)
	assert.True(t, inbox.Pagination.HasNext)

	// Newest first.
	assert.Greater(t, inbox.Data[0].ID, inbox.Data[1].ID)
}

func TestMarkAsRead_ScopedToRecipient(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)
	intruder := env.users.addUser("Bekzod", "Rashidov", models.RoleUser)
	problem := env.createProblem(t, author.ID, false)
	env.createComment(t, problem.ID, intruder.ID, nil, false)

	inbox := env.notifications.forRecipient(author.ID)
	require.Len(t, inbox, 1)

	// Another user cannot touch someone else's notification.
	err := env.notificationSvc.MarkAsRead(env.ctx, inbox[0].ID, intruder.ID)
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))

	require.NoError(t, env.notificationSvc.MarkAsRead(env.ctx, inbox[0].ID, author.ID))

	count, err := env.notificationSvc.GetUnreadCount(env.ctx, author.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkAllAsRead_ReportsUpdatedCount(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)
	problem := env.createProblem(t, author.ID, false)
	for i := 0; i < 2; i++ {
		commenter := env.users.addUser("Commenter", "User", models.RoleUser)
		env.createComment(t, problem.ID, commenter.ID, nil, false)
	}

	updated, err := env.notificationSvc.MarkAllAsRead(env.ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	// Idempotent: a second pass has nothing left to update.
	updated, err = env.notificationSvc.MarkAllAsRead(env.ctx, author.ID)
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestDeleteNotification_ScopedToRecipient(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)
	commenter := env.users.addUser("Bekzod", "Rashidov", models.RoleUser)
	problem := env.createProblem(t, author.ID, false)
	env.createComment(t, problem.ID, commenter.ID, nil, false)

	inbox := env.notifications.forRecipient(author.ID)
	require.Len(t, inbox, 1)

	err := env.notificationSvc.DeleteNotification(env.ctx, inbox[0].ID, commenter.ID)
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))

	require.NoError(t, env.notificationSvc.DeleteNotification(env.ctx, inbox[0].ID, author.ID))
	assert.Empty(t, env.notifications.forRecipient(author.ID))
}

func TestGetUnreadCount_InvalidatedOnNewNotification(t *testing.T) {
	env := newTestEnv(t)
	author := env.users.addUser("Aziz", "Karimov", models.RoleUser)
	problem := env.createProblem(t, author.ID, false)

	count, err := env.notificationSvc.GetUnreadCount(env.ctx, author.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// A new fan-out write must punch through the cached zero.
	commenter := env.users.addUser("Bekzod", "Rashidov", models.RoleUser)
	env.createComment(t, problem.ID, commenter.ID, nil, false)

	count, err = env.notificationSvc.GetUnreadCount(env.ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

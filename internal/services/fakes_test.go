package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"zudlik/internal/models"
	"zudlik/internal/repositories"
)

// The fakes mirror the repository contracts closely enough to exercise the
// services: copies out, sql.ErrNoRows for missing rows, counter floors at
// zero, and the composite thread sort.

// ===============================
// FAKE PROBLEM REPOSITORY
// ===============================

type fakeProblemRepo struct {
	mu       sync.Mutex
	nextID   int64
	problems map[int64]*models.Problem
}

func newFakeProblemRepo() *fakeProblemRepo {
	return &fakeProblemRepo{problems: make(map[int64]*models.Problem)}
}

func (r *fakeProblemRepo) Create(ctx context.Context, p *models.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	p.Status = models.ProblemStatusOpen
	p.IsActive = true
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = p.CreatedAt
	stored := *p
	r.problems[p.ID] = &stored
	return nil
}

func (r *fakeProblemRepo) GetByID(ctx context.Context, id int64) (*models.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProblemRepo) Update(ctx context.Context, p *models.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.problems[p.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Title = p.Title
	stored.Description = p.Description
	stored.Category = p.Category
	stored.Tags = p.Tags
	return nil
}

func (r *fakeProblemRepo) SoftDelete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[id]
	if !ok || !p.IsActive {
		return sql.ErrNoRows
	}
	p.IsActive = false
	return nil
}

func (r *fakeProblemRepo) SetStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status = status
	return nil
}

func (r *fakeProblemRepo) List(ctx context.Context, filter repositories.ProblemFilter) ([]*models.Problem, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.Problem
	for _, p := range r.problems {
		if !p.IsActive {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Tag != "" && !contains(p.Tags, filter.Tag) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Search)) {
			continue
		}
		copied := *p
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Pagination), int64(len(matched)), nil
}

func (r *fakeProblemRepo) ListByUser(ctx context.Context, userID int64, params models.PaginationParams) ([]*models.Problem, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.Problem
	for _, p := range r.problems {
		if p.IsActive && p.UserID == userID {
			copied := *p
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, params), int64(len(matched)), nil
}

func (r *fakeProblemRepo) IncrementViewCount(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.ViewCount++
	return nil
}

func (r *fakeProblemRepo) AdjustCommentCount(ctx context.Context, id int64, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.CommentCount += delta
	if p.CommentCount < 0 {
		p.CommentCount = 0
	}
	return nil
}

func (r *fakeProblemRepo) PopularTags(ctx context.Context, limit int) ([]repositories.TagCount, error) {
	return r.tagCounts(func(p *models.Problem) bool { return true }, "", limit), nil
}

func (r *fakeProblemRepo) TagsByCategory(ctx context.Context, category string) ([]repositories.TagCount, error) {
	return r.tagCounts(func(p *models.Problem) bool { return p.Category == category }, "", 0), nil
}

func (r *fakeProblemRepo) SearchTags(ctx context.Context, query string, limit int) ([]repositories.TagCount, error) {
	return r.tagCounts(func(p *models.Problem) bool { return true }, strings.ToLower(query), limit), nil
}

func (r *fakeProblemRepo) tagCounts(match func(*models.Problem) bool, prefix string, limit int) []repositories.TagCount {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, p := range r.problems {
		if !p.IsActive || !match(p) {
			continue
		}
		for _, t := range p.Tags {
			if prefix != "" && !strings.Contains(t, prefix) {
				continue
			}
			counts[t]++
		}
	}
	out := make([]repositories.TagCount, 0, len(counts))
	for tag, count := range counts {
		out = append(out, repositories.TagCount{Tag: tag, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ===============================
// FAKE COMMENT REPOSITORY
// ===============================

type fakeCommentRepo struct {
	mu       sync.Mutex
	nextID   int64
	comments map[int64]*models.Comment
	likes    map[int64]map[int64]bool // comment id -> liker set
	problems *fakeProblemRepo
}

func newFakeCommentRepo(problems *fakeProblemRepo) *fakeCommentRepo {
	return &fakeCommentRepo{
		comments: make(map[int64]*models.Comment),
		likes:    make(map[int64]map[int64]bool),
		problems: problems,
	}
}

func (r *fakeCommentRepo) Create(ctx context.Context, c *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	c.IsActive = true
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = c.CreatedAt
	stored := *c
	r.comments[c.ID] = &stored
	return nil
}

func (r *fakeCommentRepo) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCommentRepo) Update(ctx context.Context, c *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.comments[c.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Content = c.Content
	stored.IsEdited = c.IsEdited
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakeCommentRepo) SoftDelete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok || !c.IsActive {
		return sql.ErrNoRows
	}
	c.IsActive = false
	return nil
}

func (r *fakeCommentRepo) GetTopLevelByProblem(ctx context.Context, problemID int64, limit, offset int) ([]*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.Comment
	for _, c := range r.comments {
		if c.IsActive && c.ProblemID == problemID && c.ParentCommentID == nil {
			copied := *c
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.IsSolution != b.IsSolution {
			return a.IsSolution
		}
		if a.LikeCount != b.LikeCount {
			return a.LikeCount > b.LikeCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *fakeCommentRepo) CountTopLevelByProblem(ctx context.Context, problemID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.comments {
		if c.IsActive && c.ProblemID == problemID && c.ParentCommentID == nil {
			n++
		}
	}
	return n, nil
}

func (r *fakeCommentRepo) GetReplies(ctx context.Context, parentCommentID int64) ([]*models.Comment, error) {
	byParent, err := r.GetRepliesForParents(ctx, []int64{parentCommentID})
	if err != nil {
		return nil, err
	}
	return byParent[parentCommentID], nil
}

func (r *fakeCommentRepo) GetRepliesForParents(ctx context.Context, parentIDs []int64) (map[int64][]*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[int64]bool, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = true
	}
	out := make(map[int64][]*models.Comment)
	for _, c := range r.comments {
		if c.IsActive && c.ParentCommentID != nil && wanted[*c.ParentCommentID] {
			copied := *c
			out[*c.ParentCommentID] = append(out[*c.ParentCommentID], &copied)
		}
	}
	for parent := range out {
		replies := out[parent]
		sort.Slice(replies, func(i, j int) bool {
			if !replies[i].CreatedAt.Equal(replies[j].CreatedAt) {
				return replies[i].CreatedAt.Before(replies[j].CreatedAt)
			}
			return replies[i].ID < replies[j].ID
		})
	}
	return out, nil
}

func (r *fakeCommentRepo) AdjustReplyCount(ctx context.Context, parentCommentID int64, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[parentCommentID]
	if !ok {
		return sql.ErrNoRows
	}
	c.ReplyCount += delta
	if c.ReplyCount < 0 {
		c.ReplyCount = 0
	}
	return nil
}

func (r *fakeCommentRepo) ToggleLike(ctx context.Context, commentID, userID int64) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[commentID]
	if !ok {
		return false, 0, sql.ErrNoRows
	}
	set := r.likes[commentID]
	if set == nil {
		set = make(map[int64]bool)
		r.likes[commentID] = set
	}
	liked := !set[userID]
	if liked {
		set[userID] = true
	} else {
		delete(set, userID)
	}
	c.LikeCount = len(set)
	return liked, c.LikeCount, nil
}

func (r *fakeCommentRepo) HasLiked(ctx context.Context, commentID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.likes[commentID][userID], nil
}

func (r *fakeCommentRepo) GetLikedCommentIDs(ctx context.Context, userID int64, commentIDs []int64) (map[int64]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]bool)
	for _, id := range commentIDs {
		if r.likes[id][userID] {
			out[id] = true
		}
	}
	return out, nil
}

func (r *fakeCommentRepo) DesignateSolution(ctx context.Context, problemID, commentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.comments[commentID]
	if !ok || !target.IsActive || target.ProblemID != problemID {
		return sql.ErrNoRows
	}
	for _, c := range r.comments {
		if c.ProblemID == problemID && c.IsSolution {
			c.IsSolution = false
		}
	}
	target.IsSolution = true

	r.problems.mu.Lock()
	defer r.problems.mu.Unlock()
	p, ok := r.problems.problems[problemID]
	if !ok {
		return sql.ErrNoRows
	}
	id := commentID
	p.AcceptedCommentID = &id
	p.Status = models.ProblemStatusSolved
	return nil
}

// ===============================
// FAKE USER REPOSITORY
// ===============================

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*models.User)}
}

func (r *fakeUserRepo) addUser(firstName, lastName string, role string) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u := &models.User{
		ID:        r.nextID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     strings.ToLower(firstName) + "@example.com",
		Phone:     "+998901234567",
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = r.nextID
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	r.users[u.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			copied := *u
			out[id] = &copied
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.FirstName = u.FirstName
	stored.LastName = u.LastName
	stored.Phone = u.Phone
	return nil
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) UpdateAvatar(ctx context.Context, id int64, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.AvatarURL = &avatarURL
	return nil
}

func (r *fakeUserRepo) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordResetToken = &token
	u.PasswordResetExpires = &expires
	return nil
}

func (r *fakeUserRepo) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PasswordResetToken != nil && *u.PasswordResetToken == token &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(time.Now()) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeUserRepo) ClearResetToken(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
	return nil
}

// ===============================
// FAKE NOTIFICATION REPOSITORY
// ===============================

type fakeNotificationRepo struct {
	mu            sync.Mutex
	nextID        int64
	notifications []*models.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	n.CreatedAt = time.Now()
	stored := *n
	r.notifications = append(r.notifications, &stored)
	return nil
}

func (r *fakeNotificationRepo) ListByRecipient(ctx context.Context, recipientID int64, params models.PaginationParams) ([]*models.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.Notification
	for _, n := range r.notifications {
		if n.RecipientID == recipientID {
			copied := *n
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := int64(len(matched))
	offset := params.Offset()
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if len(matched) > params.Limit {
		matched = matched[:params.Limit]
	}
	return matched, total, nil
}

func (r *fakeNotificationRepo) MarkAsRead(ctx context.Context, id, recipientID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			n.IsRead = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeNotificationRepo) MarkAllAsRead(ctx context.Context, recipientID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (r *fakeNotificationRepo) Delete(ctx context.Context, id, recipientID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			r.notifications = append(r.notifications[:i], r.notifications[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeNotificationRepo) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, notification := range r.notifications {
		if notification.RecipientID == recipientID && !notification.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) forRecipient(recipientID int64) []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.notifications {
		if n.RecipientID == recipientID {
			copied := *n
			out = append(out, &copied)
		}
	}
	return out
}

// ===============================
// SHARED HELPERS
// ===============================

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func paginate(problems []*models.Problem, params models.PaginationParams) []*models.Problem {
	offset := params.Offset()
	if offset >= len(problems) {
		return nil
	}
	problems = problems[offset:]
	if params.Limit > 0 && len(problems) > params.Limit {
		problems = problems[:params.Limit]
	}
	return problems
}

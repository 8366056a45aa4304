package services

import (
	"context"
	"fmt"

	"zudlik/internal/events"
	"zudlik/internal/repositories"

	"go.uber.org/zap"
)

// CounterHandler keeps the denormalized comment_count and reply_count
// columns synchronized with comment existence. Together with the repository
// methods it calls, it is the only writer of those counters; nothing else in
// the codebase may mutate them.
//
// Counter drift caused by a handler failure after a successful content write
// is a recoverable inconsistency: it is logged by the bus and left for an
// external reconciliation job to resync from source rows.
type CounterHandler struct {
	problemRepo repositories.ProblemRepository
	commentRepo repositories.CommentRepository
	logger      *zap.Logger
}

// NewCounterHandler creates the counter maintenance handler.
func NewCounterHandler(
	problemRepo repositories.ProblemRepository,
	commentRepo repositories.CommentRepository,
	logger *zap.Logger,
) *CounterHandler {
	return &CounterHandler{
		problemRepo: problemRepo,
		commentRepo: commentRepo,
		logger:      logger,
	}
}

// Subscribe registers the counter handlers on the bus.
func (h *CounterHandler) Subscribe(bus events.Bus) {
	bus.Subscribe(events.TypeCommentCreated,
		events.NewHandlerFunc("counter_increment", h.handleCommentCreated))
	bus.Subscribe(events.TypeCommentDeleted,
		events.NewHandlerFunc("counter_decrement", h.handleCommentDeleted))
}

// handleCommentCreated increments exactly one counter: the problem's comment
// count for a top-level comment, the parent's reply count for a reply.
func (h *CounterHandler) handleCommentCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.CommentCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}
	return h.adjust(ctx, e.ProblemID, e.ParentCommentID, +1)
}

// handleCommentDeleted performs the symmetric decrement. The repository
// floors it at zero so double-delete races never produce negative counts.
func (h *CounterHandler) handleCommentDeleted(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.CommentDeletedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}
	return h.adjust(ctx, e.ProblemID, e.ParentCommentID, -1)
}

func (h *CounterHandler) adjust(ctx context.Context, problemID int64, parentCommentID *int64, delta int) error {
	if parentCommentID != nil {
		if err := h.commentRepo.AdjustReplyCount(ctx, *parentCommentID, delta); err != nil {
			return fmt.Errorf("adjust reply count: %w", err)
		}
		h.logger.Debug("reply count adjusted",
			zap.Int64("parent_comment_id", *parentCommentID),
			zap.Int("delta", delta),
		)
		return nil
	}

	if err := h.problemRepo.AdjustCommentCount(ctx, problemID, delta); err != nil {
		return fmt.Errorf("adjust comment count: %w", err)
	}
	h.logger.Debug("comment count adjusted",
		zap.Int64("problem_id", problemID),
		zap.Int("delta", delta),
	)
	return nil
}

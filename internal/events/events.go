package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// ===============================
// EVENT CONTRACT
// ===============================

// Event is a domain event published on the in-process bus.
type Event interface {
	EventID() string
	EventType() string
	OccurredAt() time.Time
	Payload() interface{}
}

// BaseEvent provides the common event fields.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent builds the common fields for a domain event.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// GenerateEventID returns a unique event identifier.
func GenerateEventID() string {
	if id, err := uuid.NewV4(); err == nil {
		return id.String()
	}
	return fmt.Sprintf("evt-%d", time.Now().UnixNano())
}

// Handler consumes events. Returned errors are logged by the bus; they never
// propagate to the publisher.
type Handler interface {
	Handle(ctx context.Context, event Event) error
	Name() string
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	name string
	fn   func(ctx context.Context, event Event) error
}

// NewHandlerFunc wraps fn as a named Handler.
func NewHandlerFunc(name string, fn func(ctx context.Context, event Event) error) Handler {
	return &HandlerFunc{name: name, fn: fn}
}

func (h *HandlerFunc) Handle(ctx context.Context, event Event) error { return h.fn(ctx, event) }
func (h *HandlerFunc) Name() string                                  { return h.name }

// ===============================
// EVENT BUS
// ===============================

// Bus dispatches domain events to subscribed handlers.
type Bus interface {
	// Publish dispatches synchronously to every matching handler. Handler
	// errors and panics are contained and logged; Publish itself only fails
	// when the bus is stopped.
	Publish(ctx context.Context, event Event) error
	// PublishAsync enqueues the event for background dispatch.
	PublishAsync(ctx context.Context, event Event) error
	// Subscribe registers a handler for an event type. A trailing "*" in the
	// type acts as a prefix wildcard ("comment.*").
	Subscribe(eventType string, handler Handler)
	Start() error
	Stop() error
}

// Config controls the in-memory bus.
type Config struct {
	Workers        int           `json:"workers"`
	QueueSize      int           `json:"queue_size"`
	HandlerTimeout time.Duration `json:"handler_timeout"`
}

// DefaultConfig returns production defaults for the in-memory bus.
func DefaultConfig() *Config {
	return &Config{
		Workers:        4,
		QueueSize:      1024,
		HandlerTimeout: 30 * time.Second,
	}
}

type inMemoryBus struct {
	config   *Config
	logger   *zap.Logger
	mu       sync.RWMutex
	handlers map[string][]Handler
	queue    chan Event
	done     chan struct{}
	wg       sync.WaitGroup
	started  bool
	stopped  bool
}

// NewInMemoryBus builds the process-local event bus.
func NewInMemoryBus(config *Config, logger *zap.Logger) Bus {
	if config == nil {
		config = DefaultConfig()
	}
	return &inMemoryBus{
		config:   config,
		logger:   logger,
		handlers: make(map[string][]Handler),
		queue:    make(chan Event, config.QueueSize),
		done:     make(chan struct{}),
	}
}

func (b *inMemoryBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("event handler subscribed",
		zap.String("event_type", eventType),
		zap.String("handler", handler.Name()),
	)
}

func (b *inMemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is stopped")
	}
	matched := b.matchHandlers(event.EventType())
	b.mu.RUnlock()

	for _, h := range matched {
		b.dispatch(ctx, event, h)
	}
	return nil
}

func (b *inMemoryBus) PublishAsync(ctx context.Context, event Event) error {
	b.mu.RLock()
	stopped := b.stopped
	b.mu.RUnlock()
	if stopped {
		return fmt.Errorf("event bus is stopped")
	}

	select {
	case b.queue <- event:
		return nil
	default:
		b.logger.Warn("event queue full, dropping event",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID()),
		)
		return fmt.Errorf("event queue full")
	}
}

func (b *inMemoryBus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	b.started = true

	for i := 0; i < b.config.Workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	b.logger.Info("event bus started", zap.Int("workers", b.config.Workers))
	return nil
}

func (b *inMemoryBus) Stop() error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	close(b.done)
	b.wg.Wait()
	b.logger.Info("event bus stopped")
	return nil
}

func (b *inMemoryBus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case event := <-b.queue:
			b.mu.RLock()
			matched := b.matchHandlers(event.EventType())
			b.mu.RUnlock()
			for _, h := range matched {
				b.dispatch(context.Background(), event, h)
			}
		}
	}
}

// matchHandlers collects handlers for an exact type plus prefix wildcards.
// Caller must hold at least a read lock.
func (b *inMemoryBus) matchHandlers(eventType string) []Handler {
	var matched []Handler
	for pattern, hs := range b.handlers {
		if pattern == eventType {
			matched = append(matched, hs...)
			continue
		}
		if strings.HasSuffix(pattern, "*") && strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*")) {
			matched = append(matched, hs...)
		}
	}
	return matched
}

func (b *inMemoryBus) dispatch(ctx context.Context, event Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("handler", handler.Name()),
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	hctx, cancel := context.WithTimeout(ctx, b.config.HandlerTimeout)
	defer cancel()

	if err := handler.Handle(hctx, event); err != nil {
		b.logger.Warn("event handler failed",
			zap.String("handler", handler.Name()),
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID()),
			zap.Error(err),
		)
	}
}

// ===============================
// DOMAIN EVENTS
// ===============================

// Event type names. Counter maintenance and notification fan-out subscribe
// to these; nothing else writes the denormalized counters.
const (
	TypeCommentCreated = "comment.created"
	TypeCommentDeleted = "comment.deleted"
	TypeCommentLiked   = "comment.liked"
	TypeProblemSolved  = "problem.solved"
)

// CommentCreatedEvent is published after a comment row is durably inserted.
type CommentCreatedEvent struct {
	BaseEvent
	CommentID       int64  `json:"comment_id"`
	ProblemID       int64  `json:"problem_id"`
	AuthorID        int64  `json:"author_id"`
	ParentCommentID *int64 `json:"parent_comment_id,omitempty"`
}

func (e *CommentCreatedEvent) Payload() interface{} { return e }

// NewCommentCreatedEvent builds a comment.created event.
func NewCommentCreatedEvent(commentID, problemID, authorID int64, parentCommentID *int64) *CommentCreatedEvent {
	return &CommentCreatedEvent{
		BaseEvent:       NewBaseEvent(TypeCommentCreated),
		CommentID:       commentID,
		ProblemID:       problemID,
		AuthorID:        authorID,
		ParentCommentID: parentCommentID,
	}
}

// CommentDeletedEvent is published after a comment is soft-deleted.
type CommentDeletedEvent struct {
	BaseEvent
	CommentID       int64  `json:"comment_id"`
	ProblemID       int64  `json:"problem_id"`
	ParentCommentID *int64 `json:"parent_comment_id,omitempty"`
}

func (e *CommentDeletedEvent) Payload() interface{} { return e }

// NewCommentDeletedEvent builds a comment.deleted event.
func NewCommentDeletedEvent(commentID, problemID int64, parentCommentID *int64) *CommentDeletedEvent {
	return &CommentDeletedEvent{
		BaseEvent:       NewBaseEvent(TypeCommentDeleted),
		CommentID:       commentID,
		ProblemID:       problemID,
		ParentCommentID: parentCommentID,
	}
}

// CommentLikedEvent is published when a like toggle adds a like. Unlikes
// publish nothing.
type CommentLikedEvent struct {
	BaseEvent
	CommentID int64 `json:"comment_id"`
	ProblemID int64 `json:"problem_id"`
	AuthorID  int64 `json:"author_id"`
	LikerID   int64 `json:"liker_id"`
}

func (e *CommentLikedEvent) Payload() interface{} { return e }

// NewCommentLikedEvent builds a comment.liked event.
func NewCommentLikedEvent(commentID, problemID, authorID, likerID int64) *CommentLikedEvent {
	return &CommentLikedEvent{
		BaseEvent: NewBaseEvent(TypeCommentLiked),
		CommentID: commentID,
		ProblemID: problemID,
		AuthorID:  authorID,
		LikerID:   likerID,
	}
}

// ProblemSolvedEvent is published after a solution designation commits.
type ProblemSolvedEvent struct {
	BaseEvent
	ProblemID       int64 `json:"problem_id"`
	CommentID       int64 `json:"comment_id"`
	CommentAuthorID int64 `json:"comment_author_id"`
	ProblemAuthorID int64 `json:"problem_author_id"`
}

func (e *ProblemSolvedEvent) Payload() interface{} { return e }

// NewProblemSolvedEvent builds a problem.solved event.
func NewProblemSolvedEvent(problemID, commentID, commentAuthorID, problemAuthorID int64) *ProblemSolvedEvent {
	return &ProblemSolvedEvent{
		BaseEvent:       NewBaseEvent(TypeProblemSolved),
		ProblemID:       problemID,
		CommentID:       commentID,
		CommentAuthorID: commentAuthorID,
		ProblemAuthorID: problemAuthorID,
	}
}

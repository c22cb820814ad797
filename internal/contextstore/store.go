// Package contextstore keeps the current behavioral context of every user,
// a bounded history of prior versions, and notifies subscribers on change.
package contextstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/benvon/smart-coach/internal/logger"
	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/validation"
	"go.uber.org/zap"
)

const (
	// DefaultMaxHistory is the maximum number of archived contexts kept per user
	DefaultMaxHistory = 100
)

// ContextChange is delivered to subscribers after a context write
type ContextChange struct {
	UserID   string
	Previous *models.UserContext
	Current  *models.UserContext
}

// Subscriber receives context changes for one user. A returned error is logged.
type Subscriber func(change ContextChange) error

// Store is an in-memory, per-user context repository
type Store struct {
	mu          sync.RWMutex
	current     map[string]*models.UserContext
	history     map[string][]*models.UserContext
	subscribers map[string]map[uint64]Subscriber
	nextSubID   uint64

	maxHistory int
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used to stamp contexts
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMaxHistory overrides the history bound
func WithMaxHistory(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// New creates a new context store
func New(log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		current:     make(map[string]*models.UserContext),
		history:     make(map[string][]*models.UserContext),
		subscribers: make(map[string]map[uint64]Subscriber),
		maxHistory:  DefaultMaxHistory,
		now:         time.Now,
		logger:      log.Named("context_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetContext validates and replaces the user's current context, archiving the
// previous one into history and notifying subscribers.
func (s *Store) SetContext(userID string, ctx *models.UserContext) error {
	if userID == "" {
		return models.NewValidationError("UserID", "is required")
	}
	if ctx == nil {
		return models.NewValidationError("", "context is required")
	}

	next := ctx.Clone()
	if next.UserID == "" {
		next.UserID = userID
	}
	if next.UserID != userID {
		return models.NewValidationError("UserID", fmt.Sprintf("context user %q does not match %q", next.UserID, userID))
	}
	if err := validation.ValidateMood(next.EmotionalState.Mood); err != nil {
		return err
	}
	if err := validation.Struct(next); err != nil {
		return err
	}

	s.mu.Lock()
	previous := s.current[userID]
	if previous != nil {
		h := append(s.history[userID], previous)
		if len(h) > s.maxHistory {
			h = append([]*models.UserContext(nil), h[len(h)-s.maxHistory:]...)
		}
		s.history[userID] = h
	}
	next.Timestamp = s.now()
	s.current[userID] = next
	subs := make([]Subscriber, 0, len(s.subscribers[userID]))
	for _, fn := range s.subscribers[userID] {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.logger.Debug("context_set",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.String("mood", string(next.EmotionalState.Mood)),
		zap.Bool("had_previous", previous != nil),
	)

	change := ContextChange{UserID: userID, Previous: previous.Clone(), Current: next.Clone()}
	for _, fn := range subs {
		s.notify(fn, change)
	}
	return nil
}

// notify calls a subscriber, logging errors and recovering panics
func (s *Store) notify(fn Subscriber, change ContextChange) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("context_subscriber_panic",
				zap.String("user_id", logger.SanitizeUserID(change.UserID)),
				zap.Any("panic", r),
			)
		}
	}()
	if err := fn(change); err != nil {
		s.logger.Warn("context_subscriber_failed",
			zap.String("user_id", logger.SanitizeUserID(change.UserID)),
			zap.String("error", logger.SanitizeError(err)),
		)
	}
}

// UpdateContext merges a partial update into the current context group by group
func (s *Store) UpdateContext(userID string, update models.ContextUpdate) error {
	s.mu.RLock()
	existing := s.current[userID]
	s.mu.RUnlock()
	if existing == nil {
		return models.NewNotFoundError("context", userID)
	}
	return s.SetContext(userID, update.Apply(existing))
}

// GetContext returns a copy of the user's current context
func (s *Store) GetContext(userID string) (*models.UserContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.current[userID]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// GetHistory returns copies of the archived contexts in insertion order
func (s *Store) GetHistory(userID string) []*models.UserContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[userID]
	out := make([]*models.UserContext, 0, len(h))
	for _, c := range h {
		out = append(out, c.Clone())
	}
	return out
}

// DeleteContext removes the current context, history and subscriptions of a user
func (s *Store) DeleteContext(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.current, userID)
	delete(s.history, userID)
	delete(s.subscribers, userID)
}

// Subscribe registers fn for changes to userID and returns an unsubscribe func
func (s *Store) Subscribe(userID string, fn Subscriber) func() {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	if s.subscribers[userID] == nil {
		s.subscribers[userID] = make(map[uint64]Subscriber)
	}
	s.subscribers[userID][id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			subs := s.subscribers[userID]
			if subs == nil {
				return
			}
			delete(subs, id)
			if len(subs) == 0 {
				delete(s.subscribers, userID)
			}
		})
	}
}

// SubscriberCount returns the number of active subscribers for a user
func (s *Store) SubscriberCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers[userID])
}

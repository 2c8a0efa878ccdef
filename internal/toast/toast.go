package toast

import (
	"context"
	"encoding/json"

	"user_manager/internal/cache"
	"user_manager/internal/observability"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// maxPending caps how many toasts a session can accumulate between page views.
const maxPending = 10

type Toast struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Service stores pending toasts per session until the next page render.
type Service struct {
	store   cache.Store
	metrics *observability.Metrics
}

func NewService(store cache.Store, metrics *observability.Metrics) *Service {
	return &Service{store: store, metrics: metrics}
}

func (s *Service) Success(ctx context.Context, sessionID, message string) {
	s.Push(ctx, sessionID, Toast{Level: LevelSuccess, Message: message})
}

func (s *Service) Error(ctx context.Context, sessionID, message string) {
	s.Push(ctx, sessionID, Toast{Level: LevelError, Message: message})
}

// Push queues t for the session. Storage errors are logged, not returned.
func (s *Service) Push(ctx context.Context, sessionID string, t Toast) {
	if s.metrics != nil {
		s.metrics.ToastsTotal.WithLabelValues(string(t.Level)).Inc()
	}

	pending, err := s.pending(ctx, sessionID)
	if err != nil {
		logrus.WithError(err).Warn("Failed to read pending toasts")
	}
	pending = append(pending, t)
	if len(pending) > maxPending {
		pending = pending[len(pending)-maxPending:]
	}

	if err := s.store.Set(ctx, cache.ToastsKey(sessionID), pending); err != nil {
		logrus.WithError(err).Warn("Failed to store toast")
	}
}

// Drain returns and clears the session's pending toasts.
func (s *Service) Drain(ctx context.Context, sessionID string) []Toast {
	pending, err := s.pending(ctx, sessionID)
	if err != nil {
		logrus.WithError(err).Warn("Failed to read pending toasts")
		return nil
	}
	if len(pending) == 0 {
		return nil
	}
	if err := s.store.Delete(ctx, cache.ToastsKey(sessionID)); err != nil {
		logrus.WithError(err).Warn("Failed to clear toasts")
	}
	return pending
}

func (s *Service) pending(ctx context.Context, sessionID string) ([]Toast, error) {
	data, err := s.store.Get(ctx, cache.ToastsKey(sessionID))
	if err != nil || data == nil {
		return nil, err
	}
	var toasts []Toast
	if err := json.Unmarshal(data, &toasts); err != nil {
		return nil, err
	}
	return toasts, nil
}

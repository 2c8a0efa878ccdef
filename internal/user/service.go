package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"user_manager/internal/cache"
	"user_manager/internal/observability"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrRemote       = errors.New("remote users API request failed")
)

const (
	MsgCreated      = "User created successfully!"
	MsgCreateFailed = "Error creating user."
	MsgUpdated      = "User updated successfully!"
	MsgUpdateFailed = "Error updating user."
	MsgDeleted      = "User deleted successfully!"
	MsgDeleteFailed = "Failed to delete user."
)

// Directory is the remote system of record.
type Directory interface {
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, in User) (*User, error)
	UpdateUser(ctx context.Context, id int, u User) (*User, error)
	DeleteUser(ctx context.Context, id int) error
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

type Notifier interface {
	Success(ctx context.Context, sessionID, message string)
	Error(ctx context.Context, sessionID, message string)
}

type UserServiceInterface interface {
	List(ctx context.Context, sessionID, query string) ([]User, error)
	Get(ctx context.Context, sessionID string, id int) (*User, error)
	Create(ctx context.Context, sessionID string, in CreateUserInput) (*User, error)
	Update(ctx context.Context, sessionID string, id int, in UpdateUserInput) (*User, error)
	Delete(ctx context.Context, sessionID string, id int) error
}

// UserService keeps one user list per session, seeded from the
// directory and reconciled after every remote answer.
type UserService struct {
	directory Directory
	store     cache.Store
	publisher Publisher
	notifier  Notifier
	metrics   *observability.Metrics
	locks     *keyedMutex
	now       func() time.Time
}

func NewUserService(directory Directory, store cache.Store, publisher Publisher, notifier Notifier, metrics *observability.Metrics) *UserService {
	return &UserService{
		directory: directory,
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		metrics:   metrics,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// List returns the session's users whose name matches query.
func (s *UserService) List(ctx context.Context, sessionID, query string) ([]User, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	users, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return Filter(users, query), nil
}

func (s *UserService) Get(ctx context.Context, sessionID string, id int) (*User, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	users, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	idx := indexOf(users, id)
	if idx < 0 {
		return nil, ErrUserNotFound
	}
	u := users[idx]
	return &u, nil
}

// Create validates in, posts it and appends the remote answer.
func (s *UserService) Create(ctx context.Context, sessionID string, in CreateUserInput) (*User, error) {
	in.Normalize()
	if err := ValidateCreate(in); err != nil {
		s.rejected("create", err)
		return nil, err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	users, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	created, err := s.directory.CreateUser(ctx, in.ToUser())
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Error creating user")
		s.failed(ctx, sessionID, "create", MsgCreateFailed)
		return nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}

	created.ID = nextID(users, created.ID)
	users = append(users, *created)
	if err := s.save(ctx, sessionID, users); err != nil {
		return nil, err
	}

	s.succeeded(ctx, sessionID, "create", MsgCreated, ActionCreated, *created)
	return created, nil
}

// Update validates in, puts the merged user and replaces it locally.
func (s *UserService) Update(ctx context.Context, sessionID string, id int, in UpdateUserInput) (*User, error) {
	in.Normalize()
	if err := ValidateUpdate(in); err != nil {
		s.rejected("update", err)
		return nil, err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	users, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	idx := indexOf(users, id)
	if idx < 0 {
		return nil, ErrUserNotFound
	}
	existing := users[idx]

	updated, err := s.directory.UpdateUser(ctx, id, in.Apply(existing))
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"user_id":    id,
		}).Error("Error updating user")
		s.failed(ctx, sessionID, "update", MsgUpdateFailed)
		return nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}

	updated.ID = id
	updated.Username = existing.Username
	users[idx] = *updated
	if err := s.save(ctx, sessionID, users); err != nil {
		return nil, err
	}

	s.succeeded(ctx, sessionID, "update", MsgUpdated, ActionUpdated, *updated)
	return updated, nil
}

// Delete removes the user remotely and then from the session list.
func (s *UserService) Delete(ctx context.Context, sessionID string, id int) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	users, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	idx := indexOf(users, id)
	if idx < 0 {
		return ErrUserNotFound
	}
	deleted := users[idx]

	if err := s.directory.DeleteUser(ctx, id); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"user_id":    id,
		}).Error("Error deleting user")
		s.failed(ctx, sessionID, "delete", MsgDeleteFailed)
		return fmt.Errorf("%w: %w", ErrRemote, err)
	}

	users = append(users[:idx:idx], users[idx+1:]...)
	if err := s.save(ctx, sessionID, users); err != nil {
		return err
	}

	s.succeeded(ctx, sessionID, "delete", MsgDeleted, ActionDeleted, deleted)
	return nil
}

// load returns the cached list, fetching it from the directory on a
// miss. A failed fetch yields an empty list that is not cached.
func (s *UserService) load(ctx context.Context, sessionID string) ([]User, error) {
	key := cache.UsersKey(sessionID)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load session users: %w", err)
	}
	if data != nil {
		var users []User
		if err := json.Unmarshal(data, &users); err == nil {
			s.cacheResult(true)
			return users, nil
		}
		logrus.WithField("session_id", sessionID).Warn("Discarding unreadable session user list")
	}
	s.cacheResult(false)

	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Error fetching users")
		return []User{}, nil
	}
	if users == nil {
		users = []User{}
	}

	if err := s.store.Set(ctx, key, users); err != nil {
		logrus.WithError(err).Warn("Failed to cache session user list")
	}
	return users, nil
}

func (s *UserService) save(ctx context.Context, sessionID string, users []User) error {
	if err := s.store.Set(ctx, cache.UsersKey(sessionID), users); err != nil {
		return fmt.Errorf("save session users: %w", err)
	}
	return nil
}

func (s *UserService) succeeded(ctx context.Context, sessionID, op, message string, action Action, u User) {
	if s.metrics != nil {
		s.metrics.UserOperationsTotal.WithLabelValues(op, "success").Inc()
	}
	s.notifier.Success(ctx, sessionID, message)

	event := Event{
		EventID:    uuid.NewString(),
		Action:     action,
		SessionID:  sessionID,
		UserID:     u.ID,
		UserName:   u.Name,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event.RoutingKey(), event); err != nil {
		logrus.WithError(err).WithField("routing_key", event.RoutingKey()).Warn("Failed to publish user event")
	}
}

func (s *UserService) failed(ctx context.Context, sessionID, op, message string) {
	if s.metrics != nil {
		s.metrics.UserOperationsTotal.WithLabelValues(op, "failed").Inc()
	}
	s.notifier.Error(ctx, sessionID, message)
}

func (s *UserService) rejected(op string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.UserOperationsTotal.WithLabelValues(op, "invalid").Inc()
	var verr *ValidationError
	if errors.As(err, &verr) {
		for field := range verr.Fields {
			s.metrics.ValidationFailures.WithLabelValues(field).Inc()
		}
	}
}

func (s *UserService) cacheResult(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.WithLabelValues("session_users").Inc()
	} else {
		s.metrics.CacheMissesTotal.WithLabelValues("session_users").Inc()
	}
}

// keyedMutex serialises work per session inside this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

package user

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockDirectory is a mock implementation of Directory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) ListUsers(ctx context.Context) ([]User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]User), args.Error(1)
}

func (m *MockDirectory) CreateUser(ctx context.Context, in User) (*User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func(context.Context, User) *User); ok {
		return fn(ctx, in), args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockDirectory) UpdateUser(ctx context.Context, id int, u User) (*User, error) {
	args := m.Called(ctx, id, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockDirectory) DeleteUser(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, v any) error {
	args := m.Called(ctx, routingKey, v)
	return args.Error(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Success(ctx context.Context, sessionID, message string) {
	m.Called(ctx, sessionID, message)
}

func (m *MockNotifier) Error(ctx context.Context, sessionID, message string) {
	m.Called(ctx, sessionID, message)
}

// MockUserService is a mock implementation of UserServiceInterface
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) List(ctx context.Context, sessionID, query string) ([]User, error) {
	args := m.Called(ctx, sessionID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]User), args.Error(1)
}

func (m *MockUserService) Get(ctx context.Context, sessionID string, id int) (*User, error) {
	args := m.Called(ctx, sessionID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserService) Create(ctx context.Context, sessionID string, in CreateUserInput) (*User, error) {
	args := m.Called(ctx, sessionID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserService) Update(ctx context.Context, sessionID string, id int, in UpdateUserInput) (*User, error) {
	args := m.Called(ctx, sessionID, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, sessionID string, id int) error {
	args := m.Called(ctx, sessionID, id)
	return args.Error(0)
}

func seedUsers() []User {
	return []User{
		{ID: 1, Name: "Leanne Graham", Username: "Bret", Email: "Sincere@april.biz", Phone: "1-770-736-8031 x56442", Website: "hildegard.org"},
		{ID: 2, Name: "Ervin Howell", Username: "Antonette", Email: "Shanna@melissa.tv", Phone: "010-692-6593 x09125", Website: "anastasia.net"},
		{ID: 3, Name: "Clementine Bauch", Username: "Samantha", Email: "Nathan@yesenia.net", Phone: "1-463-123-4447", Website: "ramiro.info"},
	}
}

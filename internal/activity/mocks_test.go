package activity

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"
)

// MockActivityRepository is a mock implementation of ActivityRepositoryInterface
type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) Create(ctx context.Context, tx *sql.Tx, entry *Entry) (bool, error) {
	args := m.Called(ctx, tx, entry)
	return args.Bool(0), args.Error(1)
}

func (m *MockActivityRepository) ListRecent(ctx context.Context, db *sql.DB, limit int) ([]*Entry, error) {
	args := m.Called(ctx, db, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Entry), args.Error(1)
}

// MockActivityService is a mock implementation of ActivityServiceInterface
type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) Record(ctx context.Context, entry *Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockActivityService) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Entry), args.Error(1)
}

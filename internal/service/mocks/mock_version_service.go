package mocks

import (
	"context"

	"edms/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockVersionService struct {
	mock.Mock
}

func (m *MockVersionService) Add(ctx context.Context, actorID, documentID string, file *service.FileUpload) (*service.VersionView, error) {
	args := m.Called(ctx, actorID, documentID, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VersionView), args.Error(1)
}

func (m *MockVersionService) List(ctx context.Context, actorID, documentID string) ([]service.VersionView, error) {
	args := m.Called(ctx, actorID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.VersionView), args.Error(1)
}

func (m *MockVersionService) Get(ctx context.Context, actorID string, versionID int64) (*service.VersionView, error) {
	args := m.Called(ctx, actorID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VersionView), args.Error(1)
}

func (m *MockVersionService) Open(ctx context.Context, actorID string, versionID int64) (*service.Download, error) {
	args := m.Called(ctx, actorID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}

func (m *MockVersionService) Delete(ctx context.Context, actorID string, versionID int64) error {
	args := m.Called(ctx, actorID, versionID)
	return args.Error(0)
}

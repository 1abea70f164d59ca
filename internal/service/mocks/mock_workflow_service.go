package mocks

import (
	"context"

	"edms/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) Apply(ctx context.Context, actorID, documentID string, in service.ActionInput) (*service.DocumentView, error) {
	args := m.Called(ctx, actorID, documentID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentView), args.Error(1)
}

package mocks

import (
	"context"

	"edms/internal/model"
	"edms/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.Document, first *model.DocumentVersion) error {
	args := m.Called(ctx, doc, first)
	return args.Error(0)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) List(ctx context.Context, f repository.ListFilter) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

// Mutate runs fn against the document given as the first return value, mirroring a real locked update.
func (m *MockDocumentRepository) Mutate(ctx context.Context, id string, fn func(doc *model.Document) error) (*model.Document, error) {
	args := m.Called(ctx, id, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	doc := *args.Get(0).(*model.Document)
	if err := fn(&doc); err != nil {
		return nil, err
	}
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Replace runs fn like Mutate; the third return value is the stored version.
func (m *MockDocumentRepository) Replace(ctx context.Context, id string, fn func(doc *model.Document) error, next *model.DocumentVersion) (*model.Document, *model.DocumentVersion, error) {
	args := m.Called(ctx, id, fn, next)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	doc := *args.Get(0).(*model.Document)
	if err := fn(&doc); err != nil {
		return nil, nil, err
	}
	if err := args.Error(2); err != nil {
		return nil, nil, err
	}
	v, _ := args.Get(1).(*model.DocumentVersion)
	return &doc, v, nil
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) ([]string, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

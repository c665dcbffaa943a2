package engine

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/walteh/luals/pkg/ast"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Exists(uri string) bool {
	args := m.Called(uri)
	return args.Bool(0)
}

func (m *MockStore) GetAST(ctx context.Context, uri string) (*ast.File, bool) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*ast.File), args.Bool(1)
}

func (m *MockStore) SetText(ctx context.Context, uri string, text string, isOpen bool) {
	m.Called(ctx, uri, text, isOpen)
}

func (m *MockStore) Subscribe(fn func(uri string)) {
	m.Called(fn)
}

func newMockStore() *MockStore {
	m := &MockStore{}
	m.On("Subscribe", mock.Anything).Return()
	return m
}

package protocol_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/walteh/luals/pkg/lsp/protocol"
)

type MockServer struct {
	mock.Mock
}

var _ protocol.Server = (*MockServer)(nil)

func result[T any](args mock.Arguments, i int) T {
	var zero T
	if v := args.Get(i); v != nil {
		return v.(T)
	}
	return zero
}

func (m *MockServer) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	args := m.Called(ctx, params)
	return result[*protocol.InitializeResult](args, 0), args.Error(1)
}

func (m *MockServer) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockServer) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockServer) Exit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockServer) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockServer) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockServer) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockServer) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockServer) DidChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockServer) DidChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockServer) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	args := m.Called(ctx, params)
	return result[*protocol.Hover](args, 0), args.Error(1)
}

func (m *MockServer) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	args := m.Called(ctx, params)
	return result[*protocol.CompletionList](args, 0), args.Error(1)
}

func (m *MockServer) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	args := m.Called(ctx, params)
	return result[[]protocol.Location](args, 0), args.Error(1)
}

func (m *MockServer) Diagnostic(ctx context.Context, params *protocol.DocumentDiagnosticParams) (*protocol.DocumentDiagnosticReport, error) {
	args := m.Called(ctx, params)
	return result[*protocol.DocumentDiagnosticReport](args, 0), args.Error(1)
}

func (m *MockServer) SemanticTokensFull(ctx context.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	args := m.Called(ctx, params)
	return result[*protocol.SemanticTokens](args, 0), args.Error(1)
}

type MockClient struct {
	mock.Mock
}

var _ protocol.Client = (*MockClient)(nil)

func (m *MockClient) PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockClient) LogMessage(ctx context.Context, params *protocol.LogMessageParams) error {
	return m.Called(ctx, params).Error(0)
}

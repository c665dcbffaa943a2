package protocol

import (
	"context"

	"github.com/creachadair/jrpc2/handler"
)

// Server is the set of client to server methods the language server answers.
type Server interface {
	Initialize(ctx context.Context, params *InitializeParams) (*InitializeResult, error)
	Initialized(ctx context.Context, params *InitializedParams) error
	Shutdown(ctx context.Context) error
	Exit(ctx context.Context) error

	DidOpen(ctx context.Context, params *DidOpenTextDocumentParams) error
	DidChange(ctx context.Context, params *DidChangeTextDocumentParams) error
	DidClose(ctx context.Context, params *DidCloseTextDocumentParams) error
	DidSave(ctx context.Context, params *DidSaveTextDocumentParams) error
	DidChangeConfiguration(ctx context.Context, params *DidChangeConfigurationParams) error
	DidChangeWatchedFiles(ctx context.Context, params *DidChangeWatchedFilesParams) error

	Hover(ctx context.Context, params *HoverParams) (*Hover, error)
	Completion(ctx context.Context, params *CompletionParams) (*CompletionList, error)
	Definition(ctx context.Context, params *DefinitionParams) ([]Location, error)
	Diagnostic(ctx context.Context, params *DocumentDiagnosticParams) (*DocumentDiagnosticReport, error)
	SemanticTokensFull(ctx context.Context, params *SemanticTokensParams) (*SemanticTokens, error)
}

// Client is the set of server to client notifications the server sends.
type Client interface {
	PublishDiagnostics(ctx context.Context, params *PublishDiagnosticsParams) error
	LogMessage(ctx context.Context, params *LogMessageParams) error
}

func buildServerDispatchMap(server Server) handler.Map {
	return handler.Map{
		"initialize":  createHandler(server.Initialize),
		"initialized": createEmptyResultHandler(server.Initialized),
		"shutdown":    createEmptyHandler(server.Shutdown),
		"exit":        createEmptyHandler(server.Exit),

		"textDocument/didOpen":             createEmptyResultHandler(server.DidOpen),
		"textDocument/didChange":           createEmptyResultHandler(server.DidChange),
		"textDocument/didClose":            createEmptyResultHandler(server.DidClose),
		"textDocument/didSave":             createEmptyResultHandler(server.DidSave),
		"workspace/didChangeConfiguration": createEmptyResultHandler(server.DidChangeConfiguration),
		"workspace/didChangeWatchedFiles":  createEmptyResultHandler(server.DidChangeWatchedFiles),

		"textDocument/hover":               createHandler(server.Hover),
		"textDocument/completion":          createHandler(server.Completion),
		"textDocument/definition":          createHandler(server.Definition),
		"textDocument/diagnostic":          createHandler(server.Diagnostic),
		"textDocument/semanticTokens/full": createHandler(server.SemanticTokensFull),

		"$/cancelRequest": createIgnoredHandler(),
		"$/setTrace":      createIgnoredHandler(),
	}
}

// Package lsp implements the language server on top of the resolver: document
// sync, workspace watching and the editor feature requests.
package lsp

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/luals/pkg/config"
	"github.com/walteh/luals/pkg/engine"
	"github.com/walteh/luals/pkg/files"
	"github.com/walteh/luals/pkg/lsp/protocol"
	"github.com/walteh/luals/pkg/semtok"
	"github.com/walteh/luals/pkg/uri"
)

const serverName = "luals"

// Server represents an LSP server instance
type Server struct {
	fs      afero.Fs
	files   *files.Manager
	session *engine.Session

	// Server identification
	id      string
	version string

	mu          sync.Mutex
	root        string
	fileConfig  *config.Config
	settings    *config.Config
	initialized bool
	shutdown    bool

	watch   bool
	watcher *watcher

	// LSP client for notifications
	callbackClient protocol.Client
}

var _ protocol.Server = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithFileWatcher watches the workspace on disk for changes made outside the
// editor. Only meaningful for an OS backed filesystem.
func WithFileWatcher() Option {
	return func(s *Server) { s.watch = true }
}

// WithVersion sets the version reported in the initialize result.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

func NewServer(ctx context.Context, fs afero.Fs, opts ...Option) *Server {
	manager := files.NewManager(fs)
	me := &Server{
		fs:      fs,
		files:   manager,
		session: engine.New(manager, config.Default(""), engine.WithFs(fs)),
		id:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(me)
	}
	zerolog.Ctx(ctx).Debug().Str("server_id", me.id).Msg("created server")
	return me
}

func (me *Server) SetCallbackClient(client protocol.Client) {
	me.callbackClient = client
}

// BuildServerInstance binds the server to a jrpc2 server whose callback
// client receives published diagnostics.
func (me *Server) BuildServerInstance(ctx context.Context, opts *jrpc2.ServerOptions) *protocol.ServerInstance {
	instance := protocol.NewServerInstance(ctx, me, opts)
	me.SetCallbackClient(instance.Client())
	return instance
}

// Files returns the document store.
func (me *Server) Files() *files.Manager {
	return me.files
}

// Session returns the resolver session.
func (me *Server) Session() *engine.Session {
	return me.session
}

func (me *Server) ID() string {
	return me.id
}

// workspaceRoot picks the root directory from the initialize parameters.
func workspaceRoot(params *protocol.InitializeParams) string {
	switch {
	case params.RootURI != "":
		return uri.Normalize(params.RootURI.Path())
	case params.RootPath != "":
		return uri.Normalize(params.RootPath)
	case len(params.WorkspaceFolders) > 0:
		return uri.Normalize(params.WorkspaceFolders[0].URI.Path())
	}
	return ""
}

func (me *Server) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("root_uri", string(params.RootURI)).Msg("initializing server")

	root := workspaceRoot(params)

	me.mu.Lock()
	me.root = root
	me.mu.Unlock()

	if err := me.reloadConfig(ctx); err != nil {
		logger.Warn().Err(err).Msg("using default configuration")
	}

	if root != "" {
		cfg := me.session.Config()
		n, err := me.files.Preload(ctx, root, cfg.Ignored)
		if err != nil {
			logger.Warn().Err(err).Msg("preloading workspace")
		}
		logger.Debug().Int("files", n).Str("root", root).Msg("workspace preloaded")

		// watch before answering so nothing created after the preload is missed
		me.startWatcher(ctx, root)
	}

	legend := semtok.GetLegend()
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.Incremental,
				Save:      true,
			},
			HoverProvider:      true,
			DefinitionProvider: true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{".", ":"},
			},
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     legend.TokenTypes,
					TokenModifiers: legend.TokenModifiers,
				},
				Full: true,
			},
			DiagnosticProvider: &protocol.DiagnosticOptions{
				Identifier:            serverName,
				InterFileDependencies: true,
			},
		},
		ServerInfo: &protocol.ServerInfo{Name: serverName, Version: me.version},
	}, nil
}

func (me *Server) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Msg("server initialized")

	me.mu.Lock()
	me.initialized = true
	me.mu.Unlock()
	return nil
}

// startWatcher begins watching root when file watching is enabled. A second
// initialize keeps the first watcher.
func (me *Server) startWatcher(ctx context.Context, root string) {
	logger := zerolog.Ctx(ctx)

	me.mu.Lock()
	skip := !me.watch || me.watcher != nil
	me.mu.Unlock()
	if skip {
		return
	}

	w, err := newWatcher(me)
	if err != nil {
		// diagnostics still work for edited buffers
		logger.Warn().Err(err).Msg("file watching disabled")
		return
	}
	if err := w.Start(ctx, root); err != nil {
		w.Close()
		logger.Warn().Err(err).Msg("file watching disabled")
		return
	}

	me.mu.Lock()
	me.watcher = w
	me.mu.Unlock()
}

func (me *Server) Shutdown(ctx context.Context) error {
	zerolog.Ctx(ctx).Debug().Msg("shutting down")

	me.mu.Lock()
	me.shutdown = true
	w := me.watcher
	me.watcher = nil
	me.mu.Unlock()

	// the watch loop takes mu, so close outside of it
	if w != nil {
		if err := w.Close(); err != nil {
			return errors.Errorf("closing file watcher: %w", err)
		}
	}
	return nil
}

func (me *Server) Exit(ctx context.Context) error {
	me.mu.Lock()
	clean := me.shutdown
	me.mu.Unlock()
	if !clean {
		zerolog.Ctx(ctx).Warn().Msg("exit without shutdown")
		return me.Shutdown(ctx)
	}
	return nil
}

// reloadConfig re-reads the settings file in the workspace root and applies
// it together with any editor settings.
func (me *Server) reloadConfig(ctx context.Context) error {
	me.mu.Lock()
	root := me.root
	me.mu.Unlock()

	cfg, err := config.Load(me.fs, root)
	if err != nil {
		cfg = config.Default(root)
	} else if cfg.Source != "" {
		zerolog.Ctx(ctx).Debug().Str("file", cfg.Source).Msg("loaded settings")
	}

	me.mu.Lock()
	me.fileConfig = cfg
	me.mu.Unlock()

	me.applyConfig(ctx)
	return err
}

// applyConfig merges file settings with editor settings. Editor globals add
// to the configured ones and an editor search depth wins.
func (me *Server) applyConfig(ctx context.Context) {
	me.mu.Lock()
	cfg := me.fileConfig
	if cfg == nil {
		cfg = config.Default(me.root)
	}
	if me.settings != nil {
		cfg = cfg.WithGlobals(append(append([]string{}, cfg.Globals...), me.settings.Globals...))
		if me.settings.SearchDepth != config.DefaultSearchDepth {
			cfg.SearchDepth = me.settings.SearchDepth
		}
	}
	me.mu.Unlock()

	zerolog.Ctx(ctx).Trace().Strs("globals", cfg.Globals).Int("search_depth", cfg.SearchDepth).Msg("applying configuration")
	me.session.SetConfig(cfg)
}

// isConfigFile reports whether p is a settings file of the workspace root.
func (me *Server) isConfigFile(p string) bool {
	me.mu.Lock()
	root := me.root
	me.mu.Unlock()

	if root == "" || uri.Normalize(path.Dir(p)) != root {
		return false
	}
	base := path.Base(p)
	for _, name := range config.FileNames {
		if base == name {
			return true
		}
	}
	return false
}

// relative returns p relative to the workspace root, or "" when p is outside
// of it.
func (me *Server) relative(p string) string {
	me.mu.Lock()
	root := me.root
	me.mu.Unlock()

	p = uri.Normalize(p)
	if root == "" || !strings.HasPrefix(p, root+"/") {
		return ""
	}
	return strings.TrimPrefix(p, root+"/")
}

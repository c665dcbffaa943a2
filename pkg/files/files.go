// Package files is the document store shared by the editor front end and the
// resolver. Documents come either from the editor (open buffers) or from the
// backing filesystem, and are parsed lazily on first request.
package files

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/parser"
	"github.com/walteh/luals/pkg/uri"
)

// Store is the file collaborator used by the resolver.
type Store interface {
	Exists(uri string) bool
	GetAST(ctx context.Context, uri string) (*ast.File, bool)
	SetText(ctx context.Context, uri string, text string, isOpen bool)
	Subscribe(fn func(uri string))
}

// Document is a text document with its lazily parsed syntax tree.
type Document struct {
	URI     string
	Version int32
	Text    string
	Open    bool

	once sync.Once
	file *ast.File
	err  error
}

// AST parses the document on first use.
func (d *Document) AST(ctx context.Context) (*ast.File, error) {
	d.once.Do(func() {
		d.file, d.err = parser.Parse(ctx, d.URI, d.Text)
	})
	return d.file, d.err
}

// Manager is the afero-backed Store implementation.
type Manager struct {
	fs    afero.Fs
	store *sync.Map // map[string]*Document

	mu          sync.RWMutex
	subscribers []func(uri string)
}

var _ Store = (*Manager)(nil)

func NewManager(fs afero.Fs) *Manager {
	return &Manager{
		fs:    fs,
		store: &sync.Map{},
	}
}

// Fs returns the backing filesystem.
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

func (m *Manager) Subscribe(fn func(uri string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

func (m *Manager) notify(u string) {
	m.mu.RLock()
	subs := append([]func(string){}, m.subscribers...)
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(u)
	}
}

// Exists reports whether the document is known in memory or present on the
// backing filesystem as a regular file.
func (m *Manager) Exists(u string) bool {
	if _, ok := m.store.Load(uri.Canonical(u)); ok {
		return true
	}
	info, err := m.fs.Stat(uri.Decode(u))
	return err == nil && !info.IsDir()
}

// GetNoFallback returns an in-memory document without touching the filesystem.
func (m *Manager) GetNoFallback(u string) (*Document, bool) {
	content, ok := m.store.Load(uri.Canonical(u))
	if !ok {
		return nil, false
	}
	return content.(*Document), true
}

// Get returns the document for u, reading it from the filesystem when it is
// not yet known.
func (m *Manager) Get(ctx context.Context, u string) (*Document, bool) {
	key := uri.Canonical(u)
	if doc, ok := m.GetNoFallback(key); ok {
		return doc, true
	}

	data, err := afero.ReadFile(m.fs, uri.Decode(key))
	if err != nil {
		zerolog.Ctx(ctx).Trace().Err(err).Str("uri", key).Msg("document not found on disk")
		return nil, false
	}

	doc := &Document{URI: key, Text: string(data)}
	actual, _ := m.store.LoadOrStore(key, doc)
	return actual.(*Document), true
}

func (m *Manager) GetAST(ctx context.Context, u string) (*ast.File, bool) {
	doc, ok := m.Get(ctx, u)
	if !ok {
		return nil, false
	}
	file, err := doc.AST(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("uri", doc.URI).Msg("parsing document")
		return nil, false
	}
	return file, true
}

func (m *Manager) SetText(ctx context.Context, u string, text string, isOpen bool) {
	m.Store(ctx, &Document{URI: u, Text: text, Open: isOpen})
}

// Store replaces the document and notifies subscribers.
func (m *Manager) Store(ctx context.Context, doc *Document) {
	doc.URI = uri.Canonical(doc.URI)
	m.store.Store(doc.URI, doc)
	zerolog.Ctx(ctx).Trace().Str("uri", doc.URI).Bool("open", doc.Open).Msg("document stored")
	m.notify(doc.URI)
}

// Close marks an editor buffer as closed. The in-memory copy is dropped so the
// next request reads the file from disk again.
func (m *Manager) Close(ctx context.Context, u string) {
	m.Delete(ctx, u)
}

// Delete forgets the document and notifies subscribers.
func (m *Manager) Delete(ctx context.Context, u string) {
	key := uri.Canonical(u)
	m.store.Delete(key)
	zerolog.Ctx(ctx).Trace().Str("uri", key).Msg("document dropped")
	m.notify(key)
}

// Open reports whether u is currently open in the editor.
func (m *Manager) Open(u string) bool {
	doc, ok := m.GetNoFallback(u)
	return ok && doc.Open
}

// URIs lists every document currently held in memory.
func (m *Manager) URIs() []string {
	var out []string
	m.store.Range(func(key, _ any) bool {
		out = append(out, key.(string))
		return true
	})
	return out
}

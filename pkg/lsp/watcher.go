package lsp

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/luals/pkg/uri"
)

func isSource(p string) bool {
	switch path.Ext(p) {
	case ".lua", ".luau":
		return true
	}
	return false
}

// watcher feeds on-disk changes of files the editor does not have open into
// the document store.
type watcher struct {
	server *Server
	fsw    *fsnotify.Watcher

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newWatcher(s *Server) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Errorf("creating file watcher: %w", err)
	}
	return &watcher{server: s, fsw: fsw, done: make(chan struct{})}, nil
}

// Start watches root and its subdirectories. The loop outlives the request
// that started it and ends on Close.
func (w *watcher) Start(ctx context.Context, root string) error {
	ctx = context.WithoutCancel(ctx)
	if err := w.addTree(ctx, root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *watcher) skipDir(p string) bool {
	base := path.Base(p)
	if strings.HasPrefix(base, ".") && base != "." {
		return true
	}
	rel := w.server.relative(p)
	return rel != "" && w.server.session.Config().Ignored(rel)
}

func (w *watcher) addTree(ctx context.Context, root string) error {
	err := afero.Walk(w.server.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		p = uri.Normalize(p)
		if p != uri.Normalize(root) && w.skipDir(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return errors.Errorf("watching %s: %w", p, err)
		}
		zerolog.Ctx(ctx).Trace().Str("dir", p).Msg("watching directory")
		return nil
	})
	if err != nil {
		return errors.Errorf("watching %s: %w", root, err)
	}
	return nil
}

func (w *watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	logger := zerolog.Ctx(ctx)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (w *watcher) handle(ctx context.Context, ev fsnotify.Event) {
	logger := zerolog.Ctx(ctx)
	p := uri.Normalize(ev.Name)
	logger.Trace().Str("path", p).Str("op", ev.Op.String()).Msg("file event")

	if ev.Has(fsnotify.Create) {
		if info, err := w.server.fs.Stat(p); err == nil && info.IsDir() {
			if !w.skipDir(p) {
				if err := w.addTree(ctx, p); err != nil {
					logger.Warn().Err(err).Msg("watching new directory")
				}
			}
			return
		}
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.server.fileChanged(ctx, p, true)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.server.fileChanged(ctx, p, false)
	default:
		return
	}

	if err := w.server.publishOpenDocuments(ctx); err != nil {
		logger.Debug().Err(err).Msg("publishing after file event")
	}
}

// Close stops the loop and releases the watches.
func (w *watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	if err != nil {
		return errors.Errorf("closing watcher: %w", err)
	}
	return nil
}

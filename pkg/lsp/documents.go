package lsp

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/luals/pkg/config"
	"github.com/walteh/luals/pkg/files"
	"github.com/walteh/luals/pkg/lsp/protocol"
	"github.com/walteh/luals/pkg/position"
	"github.com/walteh/luals/pkg/uri"
)

func (me *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("uri", string(params.TextDocument.URI)).Msg("document opened")

	me.files.Store(ctx, &files.Document{
		URI:     string(params.TextDocument.URI),
		Version: params.TextDocument.Version,
		Text:    params.TextDocument.Text,
		Open:    true,
	})

	return me.publishOpenDocuments(ctx)
}

func (me *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("uri", string(params.TextDocument.URI)).Int32("version", params.TextDocument.Version).Msg("document changed")

	if len(params.ContentChanges) == 0 {
		return nil
	}

	doc, ok := me.files.GetNoFallback(string(params.TextDocument.URI))
	if !ok || !doc.Open {
		return errors.Errorf("document not open: %s", params.TextDocument.URI)
	}

	text := doc.Text
	for _, change := range params.ContentChanges {
		if change.Range == nil {
			text = change.Text
			continue
		}
		text = replaceContentFromRange(ctx, text, change.Range, change.Text)
	}

	me.files.Store(ctx, &files.Document{
		URI:     doc.URI,
		Version: params.TextDocument.Version,
		Text:    text,
		Open:    true,
	})

	return me.publishOpenDocuments(ctx)
}

// replaceContentFromRange splices text into content over an LSP range.
func replaceContentFromRange(ctx context.Context, content string, rng *protocol.Range, text string) string {
	lines := position.NewLineIndex(content)
	start := lines.Offset(int(rng.Start.Line), int(rng.Start.Character))
	end := lines.Offset(int(rng.End.Line), int(rng.End.Character))
	if end < start {
		start, end = end, start
	}
	zerolog.Ctx(ctx).Trace().Int("start", start).Int("end", end).Str("text", text).Msg("replacing range")
	return content[:start] + text + content[end:]
}

func (me *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("uri", string(params.TextDocument.URI)).Msg("document closed")

	u := string(params.TextDocument.URI)
	me.files.Close(ctx, u)

	// keep the on-disk copy visible to the other files
	if data, err := afero.ReadFile(me.fs, uri.Decode(u)); err == nil {
		me.files.SetText(ctx, u, string(data), false)
	}

	if err := me.publish(ctx, uri.Canonical(u), nil); err != nil {
		return err
	}
	return me.publishOpenDocuments(ctx)
}

func (me *Server) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("uri", string(params.TextDocument.URI)).Msg("document saved")

	doc, ok := me.files.GetNoFallback(string(params.TextDocument.URI))
	if !ok {
		return errors.Errorf("document not found: %s", params.TextDocument.URI)
	}

	if params.Text != nil && *params.Text != doc.Text {
		me.files.Store(ctx, &files.Document{
			URI:     doc.URI,
			Version: doc.Version,
			Text:    *params.Text,
			Open:    doc.Open,
		})
	}

	if me.isConfigFile(uri.Decode(doc.URI)) {
		if err := me.reloadConfig(ctx); err != nil {
			logger.Warn().Err(err).Msg("reloading settings")
		}
	}

	return me.publishOpenDocuments(ctx)
}

// editorSettings unwraps the section of a didChangeConfiguration payload
// that holds our keys.
func editorSettings(raw json.RawMessage) []byte {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return raw
	}
	for _, key := range []string{serverName, "Lua", "luau"} {
		if inner, ok := sections[key]; ok {
			return inner
		}
	}
	return raw
}

func (me *Server) DidChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
	logger := zerolog.Ctx(ctx)

	data := editorSettings(params.Settings)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	me.mu.Lock()
	root := me.root
	me.mu.Unlock()

	settings, err := config.Parse("settings.json", data, root)
	if err != nil {
		return errors.Errorf("parsing editor settings: %w", err)
	}
	logger.Debug().Strs("globals", settings.Globals).Msg("editor settings changed")

	me.mu.Lock()
	me.settings = settings
	me.mu.Unlock()

	me.applyConfig(ctx)
	return me.publishOpenDocuments(ctx)
}

func (me *Server) DidChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error {
	for _, change := range params.Changes {
		me.fileChanged(ctx, uri.Decode(string(change.URI)), change.Type == protocol.Deleted)
	}
	return me.publishOpenDocuments(ctx)
}

// fileChanged brings the store in line with the disk after an external
// change. Open buffers belong to the editor and are left alone.
func (me *Server) fileChanged(ctx context.Context, p string, deleted bool) {
	logger := zerolog.Ctx(ctx)
	u := uri.Encode(p)

	if me.isConfigFile(p) {
		if err := me.reloadConfig(ctx); err != nil {
			logger.Warn().Err(err).Msg("reloading settings")
		}
		return
	}
	if !isSource(p) || me.files.Open(u) {
		return
	}
	if deleted {
		me.files.Delete(ctx, u)
		return
	}
	data, err := afero.ReadFile(me.fs, p)
	if err != nil {
		logger.Debug().Err(err).Str("path", p).Msg("changed file unreadable")
		me.files.Delete(ctx, u)
		return
	}
	me.files.SetText(ctx, u, string(data), false)
}

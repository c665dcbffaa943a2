package lsp

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/completion"
	"github.com/walteh/luals/pkg/completion/providers"
	"github.com/walteh/luals/pkg/definition"
	"github.com/walteh/luals/pkg/diagnostic"
	"github.com/walteh/luals/pkg/hover"
	"github.com/walteh/luals/pkg/lsp/protocol"
	"github.com/walteh/luals/pkg/position"
	"github.com/walteh/luals/pkg/semtok"
)

// file parses the document behind u, from the editor or from disk.
func (me *Server) file(ctx context.Context, u protocol.DocumentURI) (*ast.File, error) {
	file, ok := me.files.GetAST(ctx, string(u))
	if !ok {
		return nil, errors.Errorf("document not found: %s", u)
	}
	return file, nil
}

func toRange(lines *position.LineIndex, pos position.RawPosition) protocol.Range {
	start := lines.Place(pos.Offset)
	end := lines.Place(pos.Offset + pos.Length())
	return protocol.Range{
		Start: protocol.Position{Line: uint32(start.Line), Character: uint32(start.Character)},
		End:   protocol.Position{Line: uint32(end.Line), Character: uint32(end.Character)},
	}
}

func (me *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	file, err := me.file(ctx, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	offset := file.Lines.Offset(int(params.Position.Line), int(params.Position.Character))
	info := hover.Describe(ctx, me.session, file, offset)
	if info == nil {
		zerolog.Ctx(ctx).Trace().Int("offset", offset).Msg("nothing to describe")
		return nil, nil
	}

	rng := toRange(file.Lines, info.Position)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  "markdown",
			Value: strings.Join(info.Content, "\n\n"),
		},
		Range: &rng,
	}, nil
}

var completionKinds = map[providers.ItemKind]protocol.CompletionItemKind{
	providers.KindField:    protocol.CompletionItemField,
	providers.KindMethod:   protocol.CompletionItemMethod,
	providers.KindFunction: protocol.CompletionItemFunction,
	providers.KindVariable: protocol.CompletionItemVariable,
	providers.KindModule:   protocol.CompletionItemModule,
	providers.KindKeyword:  protocol.CompletionItemKeyword,
}

func (me *Server) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	file, err := me.file(ctx, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	offset := file.Lines.Offset(int(params.Position.Line), int(params.Position.Character))
	items := completion.Complete(ctx, me.session, file, offset)

	list := &protocol.CompletionList{Items: make([]protocol.CompletionItem, 0, len(items))}
	for _, item := range items {
		kind, ok := completionKinds[item.Kind]
		if !ok {
			kind = protocol.CompletionItemText
		}
		out := protocol.CompletionItem{
			Label:    item.Label,
			Kind:     kind,
			Detail:   item.Detail,
			SortText: item.SortText,
		}
		if item.Documentation != "" {
			out.Documentation = &protocol.MarkupContent{Kind: "markdown", Value: item.Documentation}
		}
		list.Items = append(list.Items, out)
	}

	zerolog.Ctx(ctx).Debug().Int("items", len(list.Items)).Msg("completion")
	return list, nil
}

func (me *Server) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	file, err := me.file(ctx, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	offset := file.Lines.Offset(int(params.Position.Line), int(params.Position.Character))
	found := definition.Find(ctx, me.session, file, offset)

	out := make([]protocol.Location, 0, len(found))
	for _, loc := range found {
		target, ok := me.files.GetAST(ctx, loc.URI)
		if !ok {
			out = append(out, protocol.Location{URI: protocol.DocumentURI(loc.URI)})
			continue
		}
		out = append(out, protocol.Location{
			URI:   protocol.DocumentURI(loc.URI),
			Range: toRange(target.Lines, loc.Position),
		})
	}
	return out, nil
}

func (me *Server) Diagnostic(ctx context.Context, params *protocol.DocumentDiagnosticParams) (*protocol.DocumentDiagnosticReport, error) {
	file, err := me.file(ctx, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return &protocol.DocumentDiagnosticReport{
		Kind:  "full",
		Items: me.identifyDiagnosticsForFile(ctx, file),
	}, nil
}

func (me *Server) SemanticTokensFull(ctx context.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	file, err := me.file(ctx, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	tokens := semtok.GetTokensForFile(ctx, file, me.session.Tables())
	zerolog.Ctx(ctx).Debug().Int("token_count", len(tokens)).Msg("generated semantic tokens")

	return &protocol.SemanticTokens{Data: protocol.NonNilSlice(semtok.Encode(tokens, file.Lines))}, nil
}

func (me *Server) identifyDiagnosticsForFile(ctx context.Context, file *ast.File) []protocol.Diagnostic {
	diagnostics := diagnostic.Check(ctx, me.session, file)

	result := make([]protocol.Diagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		result = append(result, protocol.Diagnostic{
			Range:    toRange(file.Lines, d.Location),
			Severity: protocol.DiagnosticSeverity(d.Severity),
			Code:     d.Code,
			Source:   serverName,
			Message:  d.Message,
		})
	}
	return result
}

// publish pushes diagnostics for one document. A nil file clears them.
func (me *Server) publish(ctx context.Context, u string, file *ast.File) error {
	params := &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(u),
		Diagnostics: []protocol.Diagnostic{},
	}
	if file != nil {
		params.Diagnostics = me.identifyDiagnosticsForFile(ctx, file)
		if doc, ok := me.files.GetNoFallback(u); ok {
			params.Version = doc.Version
		}
	}

	if me.callbackClient == nil {
		zerolog.Ctx(ctx).Warn().Msg("no callback client, skipping publish diagnostics")
		return nil
	}
	if err := me.callbackClient.PublishDiagnostics(ctx, params); err != nil {
		return errors.Errorf("publishing diagnostics for %s: %w", u, err)
	}
	return nil
}

// publishOpenDocuments re-checks every open document. Any change can alter
// the diagnostics of files that import the changed one.
func (me *Server) publishOpenDocuments(ctx context.Context) error {
	var open []string
	for _, u := range me.files.URIs() {
		if me.files.Open(u) {
			open = append(open, u)
		}
	}
	sort.Strings(open)

	for _, u := range open {
		file, ok := me.files.GetAST(ctx, u)
		if !ok {
			continue
		}
		if err := me.publish(ctx, u, file); err != nil {
			return err
		}
	}
	return nil
}

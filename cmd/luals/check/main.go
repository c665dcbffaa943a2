package check

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/luals/pkg/config"
	"github.com/walteh/luals/pkg/diagnostic"
	"github.com/walteh/luals/pkg/engine"
	"github.com/walteh/luals/pkg/files"
	"github.com/walteh/luals/pkg/uri"
)

// ErrProblemsFound is returned when the checked tree has diagnostics at or
// above the failing severity.
var ErrProblemsFound = errors.New("problems found")

type Handler struct {
	fs      afero.Fs
	root    string
	strict  bool
	noColor bool
}

func NewCheckCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "report the diagnostics of every source file under a directory",
		Args:  cobra.MaximumNArgs(1),
	}

	cmd.Flags().BoolVar(&me.strict, "strict", false, "fail on warnings as well as errors")
	cmd.Flags().BoolVar(&me.noColor, "no-color", false, "disable colored output")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return errors.Errorf("resolving %s: %w", dir, err)
		}
		me.root = uri.Normalize(filepath.ToSlash(abs))
		return me.Run(cmd.Context(), os.Stdout)
	}

	return cmd
}

type palette struct {
	path, pos, code *color.Color
	severity        map[diagnostic.Severity]*color.Color
}

func newPalette(noColor bool) *palette {
	p := &palette{
		path: color.New(color.Bold),
		pos:  color.New(color.Faint),
		code: color.New(color.Faint),
		severity: map[diagnostic.Severity]*color.Color{
			diagnostic.SeverityError:       color.New(color.FgRed, color.Bold),
			diagnostic.SeverityWarning:     color.New(color.FgYellow, color.Bold),
			diagnostic.SeverityInformation: color.New(color.FgBlue),
			diagnostic.SeverityHint:        color.New(color.FgCyan),
		},
	}
	if noColor {
		for _, c := range append([]*color.Color{p.path, p.pos, p.code}, p.values()...) {
			c.DisableColor()
		}
	}
	return p
}

func (p *palette) values() []*color.Color {
	out := make([]*color.Color, 0, len(p.severity))
	for _, c := range p.severity {
		out = append(out, c)
	}
	return out
}

func (me *Handler) failing(s diagnostic.Severity) bool {
	if me.strict {
		return s <= diagnostic.SeverityWarning
	}
	return s == diagnostic.SeverityError
}

// Run checks every source under the root and writes one line per diagnostic
// to out.
func (me *Handler) Run(ctx context.Context, out io.Writer) error {
	logger := zerolog.Ctx(ctx)

	cfg, err := config.Load(me.fs, me.root)
	if err != nil {
		return errors.Errorf("loading settings: %w", err)
	}

	manager := files.NewManager(me.fs)
	if _, err := manager.Preload(ctx, me.root, cfg.Ignored); err != nil {
		logger.Warn().Err(err).Msg("some files could not be read")
	}
	session := engine.New(manager, cfg, engine.WithFs(me.fs))

	paths, err := files.Discover(me.fs, me.root, cfg.Ignored)
	if err != nil {
		return errors.Errorf("discovering sources: %w", err)
	}

	colors := newPalette(me.noColor)
	counts := map[diagnostic.Severity]int{}
	failures := 0

	for _, p := range paths {
		file, ok := manager.GetAST(ctx, uri.Encode(p))
		if !ok {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, me.root), "/")
		for _, d := range diagnostic.Check(ctx, session, file) {
			place := file.Lines.Place(d.Location.Offset)
			sev, ok := colors.severity[d.Severity]
			if !ok {
				sev = colors.severity[diagnostic.SeverityHint]
			}
			fmt.Fprintf(out, "%s:%s: %s: %s %s\n",
				colors.path.Sprint(rel),
				colors.pos.Sprintf("%d:%d", place.Line+1, place.Character+1),
				sev.Sprint(d.Severity.String()),
				d.Message,
				colors.code.Sprintf("[%s]", d.Code),
			)
			counts[d.Severity]++
			if me.failing(d.Severity) {
				failures++
			}
		}
	}

	logger.Debug().Int("files", len(paths)).Int("failures", failures).Msg("check finished")
	fmt.Fprintf(out, "%d files checked: %d errors, %d warnings\n",
		len(paths), counts[diagnostic.SeverityError], counts[diagnostic.SeverityWarning])

	if failures > 0 {
		return errors.Errorf("%d failing diagnostics: %w", failures, ErrProblemsFound)
	}
	return nil
}

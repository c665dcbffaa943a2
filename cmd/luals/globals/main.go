package globals

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/config"
	"github.com/walteh/luals/pkg/engine"
	"github.com/walteh/luals/pkg/files"
	"github.com/walteh/luals/pkg/uri"
)

type Handler struct {
	fs      afero.Fs
	root    string
	file    string
	runtime bool
	reads   bool
}

func NewGlobalsCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "globals <file>",
		Short: "list the globals visible from a source file and where they come from",
		Args:  cobra.ExactArgs(1),
	}

	cmd.Flags().StringVar(&me.root, "root", ".", "the workspace root")
	cmd.Flags().BoolVar(&me.runtime, "runtime", false, "include the runtime globals")
	cmd.Flags().BoolVar(&me.reads, "reads", false, "also list the globals the file itself only reads")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(me.root)
		if err != nil {
			return errors.Errorf("resolving %s: %w", me.root, err)
		}
		file, err := filepath.Abs(args[0])
		if err != nil {
			return errors.Errorf("resolving %s: %w", args[0], err)
		}
		me.root = uri.Normalize(filepath.ToSlash(root))
		me.file = uri.Normalize(filepath.ToSlash(file))
		return me.Run(cmd.Context(), os.Stdout)
	}

	return cmd
}

type row struct {
	name   string
	origin string
}

func (me *Handler) describe(g *ast.Node) string {
	if g.Special != "" || g.File == nil || g.File.URI == "" {
		return engine.Origin(g)
	}
	p := uri.Decode(g.File.URI)
	if rel := strings.TrimPrefix(p, me.root+"/"); rel != p {
		p = rel
	}
	place := g.File.Lines.Place(g.Start)
	return fmt.Sprintf("%s:%d:%d", p, place.Line+1, place.Character+1)
}

// Run prints one row per visible global, sorted by name.
func (me *Handler) Run(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load(me.fs, me.root)
	if err != nil {
		return errors.Errorf("loading settings: %w", err)
	}

	manager := files.NewManager(me.fs)
	if _, err := manager.Preload(ctx, me.root, cfg.Ignored); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("some files could not be read")
	}

	u := uri.Encode(me.file)
	if !manager.Exists(u) {
		return errors.Errorf("no such source file: %s", me.file)
	}

	session := engine.New(manager, cfg, engine.WithFs(me.fs))

	var rows []row
	seen := map[row]bool{}
	for _, g := range session.Globals(ctx, engine.Wildcard, u, !me.reads) {
		if g.Special == ast.SpecialEnv && !me.runtime {
			continue
		}
		r := row{name: g.Name, origin: me.describe(g)}
		if seen[r] {
			continue
		}
		seen[r] = true
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].name != rows[j].name {
			return rows[i].name < rows[j].name
		}
		return rows[i].origin < rows[j].origin
	})

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.name, r.origin)
	}
	if err := tw.Flush(); err != nil {
		return errors.Errorf("writing globals: %w", err)
	}
	return nil
}
